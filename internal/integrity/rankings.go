package integrity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/pixelatlas/conquest-engine/internal/adapter"
	"github.com/pixelatlas/conquest-engine/internal/logger"
	"github.com/pixelatlas/conquest-engine/internal/store"
	"github.com/pixelatlas/conquest-engine/internal/store/schema"
)

const rankingFlushMaxRetries = 3

// RankingPolicy bounds a single ranking recompute; breaching either limit
// quarantines the update for manual review instead of committing it
type RankingPolicy struct {
	// ValueJumpFactor flags a total value that grew by this factor or more
	ValueJumpFactor int64
	// TerritoryJumpLimit flags a territory count that grew by more than this
	TerritoryJumpLimit int
}

// RankingResult summarizes one ranking recompute pass
type RankingResult struct {
	Committed   int `json:"committed"`
	Quarantined int `json:"quarantined"`
	Errors      int `json:"errors"`
}

// Rankings recomputes per-user hegemony aggregates wholesale from territory
// data. Suspicious jumps are quarantined; all other users still commit in
// the same pass.
type Rankings struct {
	store  store.Store
	clock  adapter.Clock
	policy RankingPolicy
}

// NewRankings creates a new ranking recompute pass
func NewRankings(s store.Store, clock adapter.Clock, policy RankingPolicy) *Rankings {
	return &Rankings{store: s, clock: clock, policy: policy}
}

// RunOnce recomputes and commits every owner's ranking
func (r *Rankings) RunOnce(ctx context.Context) (RankingResult, error) {
	var result RankingResult

	holdings, err := r.store.AggregateOwnerHoldings(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to aggregate owner holdings: %w", err)
	}

	now := r.clock.Now()
	for _, h := range holdings {
		proposed, err := buildRanking(h, now)
		if err != nil {
			result.Errors++
			logger.ErrorCtx(ctx, err, zap.String("user_id", h.OwnerID))
			continue
		}

		previous, err := r.store.GetRanking(ctx, h.OwnerID)
		if err != nil {
			result.Errors++
			logger.ErrorCtx(ctx, err, zap.String("user_id", h.OwnerID))
			continue
		}

		if metric, prev, next, anomalous := r.checkJump(previous, proposed); anomalous {
			anomaly := schema.RankingAnomaly{
				ID:            ulid.Make().String(),
				UserID:        h.OwnerID,
				Metric:        metric,
				PreviousValue: prev,
				ProposedValue: next,
				CreatedAt:     now,
			}
			if err := r.store.CreateRankingAnomaly(ctx, anomaly); err != nil {
				result.Errors++
				logger.ErrorCtx(ctx, err, zap.String("user_id", h.OwnerID))
				continue
			}
			result.Quarantined++
			logger.WarnCtx(ctx, "Ranking update quarantined",
				zap.String("user_id", h.OwnerID),
				zap.String("metric", metric),
				zap.Int64("previous", prev),
				zap.Int64("proposed", next))
			continue
		}

		if err := r.commitWithRetry(ctx, proposed); err != nil {
			result.Errors++
			logger.ErrorCtx(ctx, fmt.Errorf("failed to commit ranking after retries: %w", err),
				zap.String("user_id", h.OwnerID))
			continue
		}
		result.Committed++
	}

	logger.InfoCtx(ctx, "Ranking pass completed",
		zap.Int("committed", result.Committed),
		zap.Int("quarantined", result.Quarantined),
		zap.Int("errors", result.Errors))

	return result, nil
}

// checkJump compares a recomputed ranking against the stored one. A user
// with no stored ranking has no baseline and always commits.
func (r *Rankings) checkJump(previous *schema.Ranking, proposed schema.Ranking) (metric string, prev, next int64, anomalous bool) {
	if previous == nil {
		return "", 0, 0, false
	}
	if previous.TotalValue > 0 && proposed.TotalValue >= previous.TotalValue*r.policy.ValueJumpFactor {
		return "total_value", previous.TotalValue, proposed.TotalValue, true
	}
	if proposed.TerritoryCount-previous.TerritoryCount > r.policy.TerritoryJumpLimit {
		return "territory_count", int64(previous.TerritoryCount), int64(proposed.TerritoryCount), true
	}
	return "", 0, 0, false
}

func (r *Rankings) commitWithRetry(ctx context.Context, ranking schema.Ranking) error {
	operation := func() error {
		return r.store.UpsertRanking(ctx, ranking)
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), rankingFlushMaxRetries), ctx)
	return backoff.Retry(operation, policy)
}

func buildRanking(h store.OwnerHoldings, now time.Time) (schema.Ranking, error) {
	countries, err := json.Marshal(h.Countries)
	if err != nil {
		return schema.Ranking{}, fmt.Errorf("failed to encode countries: %w", err)
	}
	continents, err := json.Marshal(h.Continents)
	if err != nil {
		return schema.Ranking{}, fmt.Errorf("failed to encode continents: %w", err)
	}

	return schema.Ranking{
		UserID:         h.OwnerID,
		TerritoryCount: h.TerritoryCount,
		TotalValue:     h.TotalValue,
		PixelCount:     h.PixelCount,
		Countries:      countries,
		Continents:     continents,
		HegemonyScore:  hegemonyScore(h),
		UpdatedAt:      now,
	}, nil
}

// hegemonyScore weights held value most, then breadth of conquest, then
// painted surface
func hegemonyScore(h store.OwnerHoldings) float64 {
	return float64(h.TotalValue) +
		100*float64(h.TerritoryCount) +
		250*float64(len(h.Countries)) +
		1000*float64(len(h.Continents)) +
		0.1*float64(h.PixelCount)
}
