package schema

import (
	"time"

	"github.com/pixelatlas/conquest-engine/internal/domain"
)

// Territory represents the territories table - the primary entity of the
// conquest economy. Sovereignty transitions are applied with guarded UPDATEs
// that re-assert the expected pre-state in the same statement.
type Territory struct {
	// ID is the map region identifier (e.g., "fr-75", "jp-13")
	ID string `gorm:"column:id;primaryKey;type:text"`
	// SovereigntyState is the lifecycle phase (available, protected, challengeable, permanent, leased)
	SovereigntyState domain.SovereigntyState `gorm:"column:sovereignty_state;not null;type:text;index"`
	// OwnerID is the current owner's user id (nil when unowned)
	OwnerID *string `gorm:"column:owner_id;type:text;index"`
	// OwnerDisplayName is a denormalized copy of the owner's display name
	OwnerDisplayName *string `gorm:"column:owner_display_name;type:text"`
	// OwnerSince is the timestamp of the last ownership change
	OwnerSince *time.Time `gorm:"column:owner_since;type:timestamptz"`
	// ProtectionEndsAt is the end of the post-acquisition protection window
	ProtectionEndsAt *time.Time `gorm:"column:protection_ends_at;type:timestamptz;index"`
	// CurrentAuctionID references the auction currently open for this
	// territory. Non-nil only while that auction is Active.
	CurrentAuctionID *string `gorm:"column:current_auction_id;type:text"`
	// LastActivityAt is the owner's most recent activity on this territory
	LastActivityAt time.Time `gorm:"column:last_activity_at;not null;default:now();type:timestamptz;index"`
	// AbandonedWarning marks a permanent territory as warned for inactivity
	AbandonedWarning bool `gorm:"column:abandoned_warning;not null;default:false"`
	// AbandonedWarningAt is when the abandonment warning was issued
	AbandonedWarningAt *time.Time `gorm:"column:abandoned_warning_at;type:timestamptz"`
	// LeaseKind names the lease product ("weekly", "monthly"); nil when not leased
	LeaseKind *string `gorm:"column:lease_kind;type:text"`
	// LeaseEndsAt is when the lease runs out; mutually exclusive with the abandonment flow
	LeaseEndsAt *time.Time `gorm:"column:lease_ends_at;type:timestamptz;index"`
	// AcquiredPrice is the price paid at the last acquisition
	AcquiredPrice int64 `gorm:"column:acquired_price;not null;default:0"`
	// CountryCode and Continent locate the region for ranking aggregation
	CountryCode string `gorm:"column:country_code;not null;type:text"`
	Continent   string `gorm:"column:continent;not null;type:text"`
	// PixelCount is the number of painted pixels on the territory's canvas
	PixelCount int64 `gorm:"column:pixel_count;not null;default:0"`

	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the Territory model
func (Territory) TableName() string {
	return "territories"
}
