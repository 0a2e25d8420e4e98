package store

import (
	"context"
	"time"

	"github.com/pixelatlas/conquest-engine/internal/domain"
	"github.com/pixelatlas/conquest-engine/internal/store/schema"
)

// Store defines the interface for ledger store operations. Lookups return
// (nil, nil) when the entity does not exist. Guarded transition methods
// re-assert the expected pre-state inside the same write and return
// domain.ErrStateConflict when a concurrent invocation got there first.
type Store interface {
	// GetTerritory retrieves a territory by id
	GetTerritory(ctx context.Context, id string) (*schema.Territory, error)
	// ListProtectionExpired retrieves protected, unleased territories whose
	// protection window has elapsed, bounded by limit
	ListProtectionExpired(ctx context.Context, now time.Time, limit int) ([]schema.Territory, error)
	// ListAbandonCandidates retrieves permanent, unleased territories with no
	// owner activity since the given instant, bounded by limit
	ListAbandonCandidates(ctx context.Context, inactiveSince time.Time, limit int) ([]schema.Territory, error)
	// ListExpiredLeases retrieves non-permanent territories whose lease has
	// run out, bounded by limit
	ListExpiredLeases(ctx context.Context, now time.Time, limit int) ([]schema.Territory, error)

	// MarkTerritoryPermanent transitions protected -> permanent and appends
	// an auto_permanent ownership log entry in the same transaction
	MarkTerritoryPermanent(ctx context.Context, territoryID string, logTransactionID string, now time.Time) error
	// MarkTerritoryChallengeable transitions protected -> challengeable
	// (protection elapsed while an auction is still in flight)
	MarkTerritoryChallengeable(ctx context.Context, territoryID string, now time.Time) error
	// SetAbandonedWarning flags a permanent territory as warned; fails with
	// ErrStateConflict if the territory left permanent state or was already warned
	SetAbandonedWarning(ctx context.Context, territoryID string, at time.Time) error
	// OpenReauction atomically creates a new auction for a territory, moves
	// the territory to challengeable, and appends an ownership log entry.
	// Used for abandonment re-auctions and lease expiries.
	OpenReauction(ctx context.Context, input OpenReauctionInput) (*schema.Auction, error)

	// GetAuction retrieves an auction by id
	GetAuction(ctx context.Context, id string) (*schema.Auction, error)
	// GetActiveAuctionByTerritory retrieves the active auction referencing a
	// territory, if any
	GetActiveAuctionByTerritory(ctx context.Context, territoryID string) (*schema.Auction, error)
	// CreateAuction creates an auction for the external bidding flow. Fails
	// with ErrActiveAuctionExists when an active auction already references
	// the territory.
	CreateAuction(ctx context.Context, input CreateAuctionInput) (*schema.Auction, error)
	// ListDueAuctions retrieves active auctions whose ends_at has passed,
	// bounded by limit
	ListDueAuctions(ctx context.Context, now time.Time, limit int) ([]schema.Auction, error)
	// CancelAuctionNoBids resolves an active auction without bids: marks it
	// cancelled with reason no_bids and clears the territory's auction
	// reference in the same transaction
	CancelAuctionNoBids(ctx context.Context, auctionID string, territoryID string, now time.Time) error
	// MarkAuctionSettlementFailed ends an active auction whose ownership
	// transfer failed, flagging it for manual reconciliation
	MarkAuctionSettlementFailed(ctx context.Context, auctionID string, winnerID string, finalBid int64, transferErr string, now time.Time) error

	// GetWallet retrieves a wallet by user id
	GetWallet(ctx context.Context, userID string) (*schema.Wallet, error)
	// GetPayment retrieves a payment by id
	GetPayment(ctx context.Context, id string) (*schema.Payment, error)

	// GetOwnershipLogByRequestID retrieves the ownership log entry recorded
	// for a caller-supplied idempotency key, if any
	GetOwnershipLogByRequestID(ctx context.Context, requestID string) (*schema.OwnershipLog, error)
	// ApplyOwnershipTransfer applies a full ownership transfer as a single
	// atomic multi-document write: wallet debit (direct purchases), auction
	// settlement (auction wins), territory owner fields and protection reset,
	// and the ownership log append. All-or-nothing.
	ApplyOwnershipTransfer(ctx context.Context, input ApplyTransferInput) error

	// AggregateOwnerHoldings computes per-owner territory aggregates for the
	// ranking pass, wholesale from current territory rows
	AggregateOwnerHoldings(ctx context.Context) ([]OwnerHoldings, error)
	// GetRanking retrieves the stored ranking for a user
	GetRanking(ctx context.Context, userID string) (*schema.Ranking, error)
	// UpsertRanking commits a recomputed ranking
	UpsertRanking(ctx context.Context, ranking schema.Ranking) error
	// CreateRankingAnomaly records a quarantined ranking update
	CreateRankingAnomaly(ctx context.Context, anomaly schema.RankingAnomaly) error

	// ListPendingReports retrieves unresolved reports for a territory
	ListPendingReports(ctx context.Context, territoryID string) ([]schema.Report, error)
	// GetReporterStats retrieves a reporter's resolved-report history counts
	GetReporterStats(ctx context.Context, reporterID string) (ReporterStats, error)
}

// OpenReauctionInput bundles the atomic effects of a sweep-driven re-auction
type OpenReauctionInput struct {
	TerritoryID string
	// ExpectedState is the pre-state the territory must still be in
	ExpectedState domain.SovereigntyState
	// ClearOwner removes the owner fields (lease expiry)
	ClearOwner bool
	// ClearWarning resets the abandonment warning (abandonment re-auction)
	ClearWarning bool

	AuctionID     string
	AuctionReason domain.AuctionReason
	StartingPrice int64
	EndsAt        time.Time

	LogTransactionID string
	LogReason        domain.TransferReason
	PreviousOwner    *string

	Now time.Time
}

// CreateAuctionInput bundles auction creation for the external bidding flow
type CreateAuctionInput struct {
	AuctionID     string
	TerritoryID   string
	Reason        domain.AuctionReason
	StartingPrice int64
	EndsAt        time.Time
	Now           time.Time
}

// ApplyTransferInput bundles the atomic effects of an ownership transfer
type ApplyTransferInput struct {
	TransactionID string
	RequestID     *string
	TerritoryID   string
	UserID        string
	UserName      string
	Price         int64
	Reason        domain.TransferReason
	PreviousOwner *string
	// DebitWallet debits the user's wallet by Price (direct purchases only)
	DebitWallet bool
	// SettleAuctionID, when non-nil, marks that auction ended with the
	// winner, final bid and transaction recorded (auction wins only)
	SettleAuctionID *string
	// ProtectionEndsAt is the new protection window end (now + protection window)
	ProtectionEndsAt time.Time
	Now              time.Time
}

// OwnerHoldings is a per-owner aggregate over current territory rows
type OwnerHoldings struct {
	OwnerID          string
	OwnerDisplayName string
	TerritoryCount   int
	TotalValue       int64
	PixelCount       int64
	Countries        []string
	Continents       []string
}

// ReporterStats summarizes a reporter's resolved-report history
type ReporterStats struct {
	Confirmed int
	Rejected  int
}

// Resolved returns the total number of resolved reports
func (s ReporterStats) Resolved() int {
	return s.Confirmed + s.Rejected
}
