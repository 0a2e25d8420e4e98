package domain

import (
	"time"
)

// SovereigntyState represents the lifecycle phase of a territory
type SovereigntyState string

const (
	// SovereigntyAvailable indicates the territory has no owner and no open auction
	SovereigntyAvailable SovereigntyState = "available"
	// SovereigntyProtected indicates the territory is inside its post-acquisition protection window
	SovereigntyProtected SovereigntyState = "protected"
	// SovereigntyChallengeable indicates the protection has lapsed and an auction is open (or opening)
	SovereigntyChallengeable SovereigntyState = "challengeable"
	// SovereigntyPermanent indicates the territory is held indefinitely absent further triggers
	SovereigntyPermanent SovereigntyState = "permanent"
	// SovereigntyLeased indicates the territory is held under a time-boxed lease
	SovereigntyLeased SovereigntyState = "leased"
)

// String returns the string representation of the sovereignty state
func (s SovereigntyState) String() string {
	return string(s)
}

// AuctionStatus represents the lifecycle status of an auction
type AuctionStatus string

const (
	// AuctionStatusActive indicates the auction is open for bids
	AuctionStatusActive AuctionStatus = "active"
	// AuctionStatusEnded indicates the auction resolved with a winner
	AuctionStatusEnded AuctionStatus = "ended"
	// AuctionStatusCancelled indicates the auction closed without bids
	AuctionStatusCancelled AuctionStatus = "cancelled"
)

// AuctionReason explains why an auction was opened
type AuctionReason string

const (
	// AuctionReasonManual indicates the auction was started by the external bidding flow
	AuctionReasonManual AuctionReason = "manual"
	// AuctionReasonAuctionWon indicates a follow-up auction after a settled win
	AuctionReasonAuctionWon AuctionReason = "auction_won"
	// AuctionReasonAbandonedReauction indicates the territory was re-auctioned after abandonment
	AuctionReasonAbandonedReauction AuctionReason = "abandoned_reauction"
	// AuctionReasonLeaseExpired indicates the territory was re-auctioned after its lease ran out
	AuctionReasonLeaseExpired AuctionReason = "lease_expired"
	// AuctionReasonNoBids indicates the auction was cancelled for lack of bids
	AuctionReasonNoBids AuctionReason = "no_bids"
)

// TransferReason explains why a territory changed owner
type TransferReason string

const (
	// TransferReasonDirectPurchase indicates a wallet-funded purchase
	TransferReasonDirectPurchase TransferReason = "direct_purchase"
	// TransferReasonAuctionWon indicates settlement of a won auction
	TransferReasonAuctionWon TransferReason = "auction_won"
	// TransferReasonAdminFix indicates an administrative correction
	TransferReasonAdminFix TransferReason = "admin_fix"
	// TransferReasonAutoPermanent indicates the protection window elapsed with no open auction
	TransferReasonAutoPermanent TransferReason = "auto_permanent"
	// TransferReasonAutoReauction indicates an abandonment-driven re-auction
	TransferReasonAutoReauction TransferReason = "auto_reauction"
	// TransferReasonLeaseExpired indicates a lease-expiry re-auction
	TransferReasonLeaseExpired TransferReason = "lease_expired"
)

// Valid reports whether the reason is one accepted by the transfer service.
// The auto_* reasons are minted by the sweeps themselves, never by callers.
func (r TransferReason) Valid() bool {
	switch r {
	case TransferReasonDirectPurchase, TransferReasonAuctionWon, TransferReasonAdminFix:
		return true
	}
	return false
}

// PaymentStatus represents the state of an external payment record
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// ReportStatus represents the resolution state of an abuse report
type ReportStatus string

const (
	// ReportStatusPending indicates the report has not been resolved yet
	ReportStatusPending ReportStatus = "pending"
	// ReportStatusConfirmed indicates the report was resolved as a real violation
	ReportStatusConfirmed ReportStatus = "confirmed"
	// ReportStatusRejected indicates the report was resolved as unfounded
	ReportStatusRejected ReportStatus = "rejected"
)

// TransferRequest is the input to the ownership transfer service
type TransferRequest struct {
	TerritoryID string
	UserID      string
	UserName    string
	Price       int64
	Reason      TransferReason
	// PaymentID is required iff Reason is direct_purchase
	PaymentID string
	// AuctionID is required iff Reason is auction_won
	AuctionID string
	// RequestID is the caller-supplied idempotency key (optional)
	RequestID string
}

// TransferResult is the outcome of a successful ownership transfer
type TransferResult struct {
	TransactionID string
	TerritoryID   string
	UserID        string
	UserName      string
	Price         int64
	// Replayed is true when the result was served from the idempotency ledger
	Replayed bool
}

// OwnershipChangedEvent is published after a successful transfer for
// downstream consumers (notifications, ranking refresh hints)
type OwnershipChangedEvent struct {
	EventID       string         `json:"event_id"`
	TransactionID string         `json:"transaction_id"`
	TerritoryID   string         `json:"territory_id"`
	PreviousOwner *string        `json:"previous_owner"`
	NewOwner      string         `json:"new_owner"`
	Price         int64          `json:"price"`
	Reason        TransferReason `json:"reason"`
	Timestamp     time.Time      `json:"timestamp"`
}
