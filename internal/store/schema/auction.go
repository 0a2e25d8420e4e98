package schema

import (
	"time"

	"gorm.io/datatypes"

	"github.com/pixelatlas/conquest-engine/internal/domain"
)

// Auction represents the auctions table. An auction is created by the
// lifecycle sweep or the external bidding flow, accumulates bids while
// Active, and is resolved exactly once at or after ends_at.
type Auction struct {
	// ID is a ULID, time-sortable
	ID string `gorm:"column:id;primaryKey;type:text"`
	// TerritoryID references the territory under challenge
	TerritoryID string `gorm:"column:territory_id;not null;type:text;index"`
	// Status is active, ended, or cancelled
	Status domain.AuctionStatus `gorm:"column:status;not null;type:text;index"`
	// Reason explains why the auction was opened
	Reason domain.AuctionReason `gorm:"column:reason;not null;type:text"`
	// StartingPrice is the floor price at creation
	StartingPrice int64 `gorm:"column:starting_price;not null"`
	// CurrentPrice is the advertised price, updated by the bidding flow.
	// Settlement never trusts it; the winning amount is derived from BidHistory.
	CurrentPrice int64 `gorm:"column:current_price;not null"`
	// HighestBidder is the bidding flow's cached leader (nil when no bids)
	HighestBidder *string `gorm:"column:highest_bidder;type:text"`
	// HighestBidderName is a denormalized copy of the leader's display name
	HighestBidderName *string `gorm:"column:highest_bidder_name;type:text"`
	// BidHistory is the ordered JSONB sequence of {bidder_id, amount, time}
	BidHistory datatypes.JSON `gorm:"column:bid_history;type:jsonb"`
	// EndsAt is when the auction becomes due for settlement
	EndsAt time.Time `gorm:"column:ends_at;not null;type:timestamptz;index"`
	// SettlementReason is recorded at resolution (auction_won, no_bids, ...)
	SettlementReason *domain.AuctionReason `gorm:"column:settlement_reason;type:text"`
	// WinnerID, FinalBid and TransactionID are set when the auction Ends with a winner
	WinnerID      *string `gorm:"column:winner_id;type:text"`
	FinalBid      *int64  `gorm:"column:final_bid"`
	TransactionID *string `gorm:"column:transaction_id;type:text"`
	// OwnershipTransferFailed flags a settled auction whose transfer failed
	// and needs manual reconciliation. Settlement is not retried against it.
	OwnershipTransferFailed bool `gorm:"column:ownership_transfer_failed;not null;default:false"`
	// TransferError captures the transfer failure for reconciliation
	TransferError *string `gorm:"column:transfer_error;type:text"`

	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the Auction model
func (Auction) TableName() string {
	return "auctions"
}
