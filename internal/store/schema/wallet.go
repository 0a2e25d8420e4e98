package schema

import (
	"time"

	"github.com/pixelatlas/conquest-engine/internal/domain"
)

// Wallet represents the wallets table. Debited only by the ownership
// transfer service; credits come from out-of-scope top-up flows.
type Wallet struct {
	// UserID is the wallet owner
	UserID string `gorm:"column:user_id;primaryKey;type:text"`
	// Balance is the spendable amount
	Balance int64 `gorm:"column:balance;not null;default:0"`
	// TotalCharged is the lifetime credited amount
	TotalCharged int64 `gorm:"column:total_charged;not null;default:0"`
	// TotalSpent is the lifetime debited amount
	TotalSpent int64 `gorm:"column:total_spent;not null;default:0"`

	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the Wallet model
func (Wallet) TableName() string {
	return "wallets"
}

// Payment represents the payments table, written by the external payment
// provider integration. The transfer service only reads it.
type Payment struct {
	// ID is the payment provider's identifier
	ID string `gorm:"column:id;primaryKey;type:text"`
	// UserID is the paying user
	UserID string `gorm:"column:user_id;not null;type:text;index"`
	// Amount is the paid amount
	Amount int64 `gorm:"column:amount;not null"`
	// Status is pending, completed, or failed
	Status domain.PaymentStatus `gorm:"column:status;not null;type:text"`

	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the Payment model
func (Payment) TableName() string {
	return "payments"
}
