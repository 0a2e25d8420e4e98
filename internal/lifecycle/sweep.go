package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/pixelatlas/conquest-engine/internal/adapter"
	"github.com/pixelatlas/conquest-engine/internal/auction"
	"github.com/pixelatlas/conquest-engine/internal/domain"
	"github.com/pixelatlas/conquest-engine/internal/logger"
	"github.com/pixelatlas/conquest-engine/internal/store"
	"github.com/pixelatlas/conquest-engine/internal/store/schema"
)

// Policy carries the timed-transition knobs of the territory state machine
type Policy struct {
	// AbandonmentThreshold is the inactivity span after which a permanent
	// territory is warned
	AbandonmentThreshold time.Duration
	// AbandonmentWarningGrace is how long a warned owner has to act before
	// the territory is re-auctioned
	AbandonmentWarningGrace time.Duration
	// ReauctionDuration is the bidding window of sweep-opened auctions
	ReauctionDuration time.Duration
	// DefaultFloorPrice is the starting price when a territory has no
	// acquisition history
	DefaultFloorPrice int64
	// SweepBatchSize bounds how many rows each pass claims per run
	SweepBatchSize int
}

// Stats summarizes one lifecycle sweep run
type Stats struct {
	AutoPermanentCount int `json:"autoPermanentCount"`
	WarnedCount        int `json:"warnedCount"`
	AbandonedCount     int `json:"abandonedCount"`
	ExpiredLeaseCount  int `json:"expiredLeaseCount"`
}

// Sweep drives territories through their timed transitions. It runs three
// independent passes; each matched row is processed on its own, so one
// failure never aborts the batch.
type Sweep struct {
	store  store.Store
	clock  adapter.Clock
	policy Policy
}

// NewSweep creates a new lifecycle sweep
func NewSweep(s store.Store, clock adapter.Clock, policy Policy) *Sweep {
	return &Sweep{store: s, clock: clock, policy: policy}
}

// RunOnce executes the three lifecycle passes once. Per-row failures are
// captured and logged; the returned error covers pass-level failures only.
func (s *Sweep) RunOnce(ctx context.Context) (Stats, error) {
	var stats Stats

	if err := s.sweepProtectionExpiry(ctx, &stats); err != nil {
		return stats, err
	}
	if err := s.sweepAbandonment(ctx, &stats); err != nil {
		return stats, err
	}
	if err := s.sweepLeaseExpiry(ctx, &stats); err != nil {
		return stats, err
	}

	logger.InfoCtx(ctx, "Lifecycle sweep completed",
		zap.Int("auto_permanent", stats.AutoPermanentCount),
		zap.Int("warned", stats.WarnedCount),
		zap.Int("abandoned", stats.AbandonedCount),
		zap.Int("expired_leases", stats.ExpiredLeaseCount))

	return stats, nil
}

// sweepProtectionExpiry resolves protected territories whose window elapsed.
// An in-flight active auction is allowed to resolve normally; otherwise the
// territory is held permanently.
func (s *Sweep) sweepProtectionExpiry(ctx context.Context, stats *Stats) error {
	now := s.clock.Now()
	expired, err := s.store.ListProtectionExpired(ctx, now, s.policy.SweepBatchSize)
	if err != nil {
		return fmt.Errorf("failed to list protection-expired territories: %w", err)
	}

	for _, territory := range expired {
		hasActiveAuction := false
		if territory.CurrentAuctionID != nil {
			auctionRow, err := s.store.GetAuction(ctx, *territory.CurrentAuctionID)
			if err != nil {
				logger.ErrorCtx(ctx, err, zap.String("territory_id", territory.ID))
				continue
			}
			hasActiveAuction = auctionRow != nil && auctionRow.Status == domain.AuctionStatusActive
		}

		if hasActiveAuction {
			err = s.store.MarkTerritoryChallengeable(ctx, territory.ID, now)
		} else {
			err = s.store.MarkTerritoryPermanent(ctx, territory.ID, uuid.NewString(), now)
		}
		if err != nil {
			if errors.Is(err, domain.ErrStateConflict) {
				// Another pass transitioned it first
				continue
			}
			logger.ErrorCtx(ctx, err, zap.String("territory_id", territory.ID))
			continue
		}

		if !hasActiveAuction {
			stats.AutoPermanentCount++
			logger.InfoCtx(ctx, "Territory now held permanently",
				zap.String("territory_id", territory.ID))
		}
	}

	return nil
}

// sweepAbandonment warns inactive permanent territories, then re-auctions
// the ones whose warning grace elapsed
func (s *Sweep) sweepAbandonment(ctx context.Context, stats *Stats) error {
	now := s.clock.Now()
	inactiveSince := now.Add(-s.policy.AbandonmentThreshold)
	candidates, err := s.store.ListAbandonCandidates(ctx, inactiveSince, s.policy.SweepBatchSize)
	if err != nil {
		return fmt.Errorf("failed to list abandon candidates: %w", err)
	}

	for _, territory := range candidates {
		// A fresh protection window or an in-flight auction defers the
		// abandonment flow entirely
		if territory.ProtectionEndsAt != nil && territory.ProtectionEndsAt.After(now) {
			continue
		}
		if territory.CurrentAuctionID != nil {
			active, err := s.store.GetActiveAuctionByTerritory(ctx, territory.ID)
			if err != nil {
				logger.ErrorCtx(ctx, err, zap.String("territory_id", territory.ID))
				continue
			}
			if active != nil {
				continue
			}
		}

		if !territory.AbandonedWarning {
			if err := s.store.SetAbandonedWarning(ctx, territory.ID, now); err != nil {
				if !errors.Is(err, domain.ErrStateConflict) {
					logger.ErrorCtx(ctx, err, zap.String("territory_id", territory.ID))
				}
				continue
			}
			stats.WarnedCount++
			logger.InfoCtx(ctx, "Territory warned for abandonment",
				zap.String("territory_id", territory.ID),
				zap.Time("last_activity_at", territory.LastActivityAt))
			continue
		}

		if territory.AbandonedWarningAt == nil ||
			now.Before(territory.AbandonedWarningAt.Add(s.policy.AbandonmentWarningGrace)) {
			continue
		}

		if err := s.reauction(ctx, territory, reauctionSpec{
			expectedState: domain.SovereigntyPermanent,
			clearWarning:  true,
			auctionReason: domain.AuctionReasonAbandonedReauction,
			logReason:     domain.TransferReasonAutoReauction,
		}, now); err != nil {
			if !errors.Is(err, domain.ErrStateConflict) && !errors.Is(err, domain.ErrActiveAuctionExists) {
				logger.ErrorCtx(ctx, err, zap.String("territory_id", territory.ID))
			}
			continue
		}
		stats.AbandonedCount++
	}

	return nil
}

// sweepLeaseExpiry re-auctions territories whose lease ran out, clearing the
// owner immediately
func (s *Sweep) sweepLeaseExpiry(ctx context.Context, stats *Stats) error {
	now := s.clock.Now()
	expired, err := s.store.ListExpiredLeases(ctx, now, s.policy.SweepBatchSize)
	if err != nil {
		return fmt.Errorf("failed to list expired leases: %w", err)
	}

	for _, territory := range expired {
		if err := s.reauction(ctx, territory, reauctionSpec{
			expectedState: territory.SovereigntyState,
			clearOwner:    true,
			auctionReason: domain.AuctionReasonLeaseExpired,
			logReason:     domain.TransferReasonLeaseExpired,
		}, now); err != nil {
			if !errors.Is(err, domain.ErrStateConflict) && !errors.Is(err, domain.ErrActiveAuctionExists) {
				logger.ErrorCtx(ctx, err, zap.String("territory_id", territory.ID))
			}
			continue
		}
		stats.ExpiredLeaseCount++
	}

	return nil
}

type reauctionSpec struct {
	expectedState domain.SovereigntyState
	clearOwner    bool
	clearWarning  bool
	auctionReason domain.AuctionReason
	logReason     domain.TransferReason
}

func (s *Sweep) reauction(ctx context.Context, territory schema.Territory, spec reauctionSpec, now time.Time) error {
	opened, err := s.store.OpenReauction(ctx, store.OpenReauctionInput{
		TerritoryID:      territory.ID,
		ExpectedState:    spec.expectedState,
		ClearOwner:       spec.clearOwner,
		ClearWarning:     spec.clearWarning,
		AuctionID:        ulid.Make().String(),
		AuctionReason:    spec.auctionReason,
		StartingPrice:    auction.FloorPrice(&territory, s.policy.DefaultFloorPrice),
		EndsAt:           now.Add(s.policy.ReauctionDuration),
		LogTransactionID: uuid.NewString(),
		LogReason:        spec.logReason,
		PreviousOwner:    territory.OwnerID,
		Now:              now,
	})
	if err != nil {
		return err
	}

	logger.InfoCtx(ctx, "Territory re-auctioned",
		zap.String("territory_id", territory.ID),
		zap.String("auction_id", opened.ID),
		zap.String("reason", string(spec.auctionReason)),
		zap.Int64("starting_price", opened.StartingPrice),
		zap.Time("ends_at", opened.EndsAt))

	return nil
}
