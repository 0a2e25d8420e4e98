package schema

import (
	"time"

	"github.com/pixelatlas/conquest-engine/internal/domain"
)

// OwnershipLog represents the ownership_logs table - the append-only audit
// and idempotency ledger for ownership changes. Rows are never updated or
// deleted by the lifecycle engine.
type OwnershipLog struct {
	// TransactionID is the idempotency key and primary key
	TransactionID string `gorm:"column:transaction_id;primaryKey;type:text"`
	// TerritoryID references the territory that changed hands
	TerritoryID string `gorm:"column:territory_id;not null;type:text;index"`
	// PreviousOwner is the owner before the change (nil when unowned)
	PreviousOwner *string `gorm:"column:previous_owner;type:text"`
	// NewOwner is the owner after the change (nil for lease-expiry clears)
	NewOwner *string `gorm:"column:new_owner;type:text;index"`
	// Price is the amount exchanged (0 for administrative entries)
	Price int64 `gorm:"column:price;not null;default:0"`
	// Reason explains the change
	Reason domain.TransferReason `gorm:"column:reason;not null;type:text"`
	// RequestID is the caller-supplied idempotency key, unique when present
	RequestID *string `gorm:"column:request_id;type:text;uniqueIndex:ux_ownership_logs_request_id,where:request_id IS NOT NULL"`
	// CreatedAt is when the entry was appended
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the OwnershipLog model
func (OwnershipLog) TableName() string {
	return "ownership_logs"
}
