package schema

import (
	"time"

	"github.com/pixelatlas/conquest-engine/internal/domain"
)

// Report represents the reports table - crowd-sourced abuse reports against
// a territory's content. Resolution is performed by moderators; the report
// trust gate only reads these rows.
type Report struct {
	// ID is a ULID, time-sortable
	ID string `gorm:"column:id;primaryKey;type:text"`
	// TerritoryID is the reported territory
	TerritoryID string `gorm:"column:territory_id;not null;type:text;index"`
	// ReporterID is the reporting user
	ReporterID string `gorm:"column:reporter_id;not null;type:text;index"`
	// Reason is the reporter-supplied category
	Reason string `gorm:"column:reason;not null;type:text"`
	// Status is pending, confirmed, or rejected
	Status domain.ReportStatus `gorm:"column:status;not null;type:text;default:pending"`

	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the Report model
func (Report) TableName() string {
	return "reports"
}
