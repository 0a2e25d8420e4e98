package auction

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/pixelatlas/conquest-engine/internal/adapter"
	"github.com/pixelatlas/conquest-engine/internal/domain"
	"github.com/pixelatlas/conquest-engine/internal/logger"
	"github.com/pixelatlas/conquest-engine/internal/store"
	"github.com/pixelatlas/conquest-engine/internal/store/schema"
)

// Policy carries the auction-side knobs of the conquest economy
type Policy struct {
	// ReauctionDuration is the bidding window of sweep-opened auctions
	ReauctionDuration time.Duration
	// DefaultFloorPrice is the starting price when a territory has no
	// acquisition history
	DefaultFloorPrice int64
	// SweepBatchSize bounds how many due auctions one settlement pass claims
	SweepBatchSize int
}

// Manager owns auction creation. Settlement lives in the Settler so the two
// entry points (external bidding flow, sweep) share one creation path.
type Manager struct {
	store  store.Store
	clock  adapter.Clock
	policy Policy
}

// NewManager creates a new auction manager
func NewManager(s store.Store, clock adapter.Clock, policy Policy) *Manager {
	return &Manager{store: s, clock: clock, policy: policy}
}

// StartRequest is the input to StartAuction
type StartRequest struct {
	TerritoryID   string
	StartingPrice int64
	// Duration overrides the configured re-auction duration when positive
	Duration time.Duration
}

// StartAuction opens an auction for a territory. A territory with an auction
// already Active against it is rejected, never silently overwritten.
func (m *Manager) StartAuction(ctx context.Context, req StartRequest) (*schema.Auction, error) {
	if req.TerritoryID == "" {
		return nil, domain.NewValidationError("territoryId", "required")
	}
	if req.StartingPrice < 0 {
		return nil, domain.NewValidationError("startingPrice", "must not be negative")
	}

	territory, err := m.store.GetTerritory(ctx, req.TerritoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to read territory: %w", err)
	}
	if territory == nil {
		return nil, domain.ErrTerritoryNotFound
	}

	startingPrice := req.StartingPrice
	if startingPrice == 0 {
		startingPrice = FloorPrice(territory, m.policy.DefaultFloorPrice)
	}
	duration := req.Duration
	if duration <= 0 {
		duration = m.policy.ReauctionDuration
	}

	now := m.clock.Now()
	auction, err := m.store.CreateAuction(ctx, store.CreateAuctionInput{
		AuctionID:     ulid.Make().String(),
		TerritoryID:   req.TerritoryID,
		Reason:        domain.AuctionReasonManual,
		StartingPrice: startingPrice,
		EndsAt:        now.Add(duration),
		Now:           now,
	})
	if err != nil {
		return nil, err
	}

	logger.InfoCtx(ctx, "Auction started",
		zap.String("auction_id", auction.ID),
		zap.String("territory_id", req.TerritoryID),
		zap.Int64("starting_price", startingPrice),
		zap.Time("ends_at", auction.EndsAt))

	return auction, nil
}

// FloorPrice derives the starting price of a sweep-opened auction from the
// territory's acquisition history, falling back to the configured floor
func FloorPrice(territory *schema.Territory, defaultFloor int64) int64 {
	if territory.AcquiredPrice > 0 {
		return territory.AcquiredPrice
	}
	return defaultFloor
}
