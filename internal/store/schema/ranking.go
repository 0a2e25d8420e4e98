package schema

import (
	"time"

	"gorm.io/datatypes"
)

// Ranking represents the rankings table - per-user hegemony aggregates,
// recomputed wholesale each pass from territory data and never patched.
type Ranking struct {
	// UserID is the ranked user
	UserID string `gorm:"column:user_id;primaryKey;type:text"`
	// TerritoryCount is the number of territories currently owned
	TerritoryCount int `gorm:"column:territory_count;not null;default:0"`
	// TotalValue is the summed acquisition value of owned territories
	TotalValue int64 `gorm:"column:total_value;not null;default:0"`
	// PixelCount is the summed painted-pixel count over owned territories
	PixelCount int64 `gorm:"column:pixel_count;not null;default:0"`
	// Countries is the JSONB set of distinct country codes held
	Countries datatypes.JSON `gorm:"column:countries;type:jsonb"`
	// Continents is the JSONB set of distinct continents held
	Continents datatypes.JSON `gorm:"column:continents;type:jsonb"`
	// HegemonyScore is the composite ranking score
	HegemonyScore float64 `gorm:"column:hegemony_score;not null;default:0"`
	// UpdatedAt is when this ranking was last committed
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the Ranking model
func (Ranking) TableName() string {
	return "rankings"
}

// RankingAnomaly represents the ranking_anomalies table - quarantined
// ranking updates flagged for manual review instead of being committed.
type RankingAnomaly struct {
	// ID is a ULID, time-sortable
	ID string `gorm:"column:id;primaryKey;type:text"`
	// UserID is the user whose recomputed ranking was withheld
	UserID string `gorm:"column:user_id;not null;type:text;index"`
	// Metric names the triggering aggregate (total_value, territory_count)
	Metric string `gorm:"column:metric;not null;type:text"`
	// PreviousValue and ProposedValue bound the suspicious jump
	PreviousValue int64 `gorm:"column:previous_value;not null"`
	ProposedValue int64 `gorm:"column:proposed_value;not null"`
	// Reviewed marks the record as handled by an operator
	Reviewed bool `gorm:"column:reviewed;not null;default:false"`

	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the RankingAnomaly model
func (RankingAnomaly) TableName() string {
	return "ranking_anomalies"
}
