package auction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/pixelatlas/conquest-engine/internal/adapter"
	"github.com/pixelatlas/conquest-engine/internal/domain"
	"github.com/pixelatlas/conquest-engine/internal/logger"
	"github.com/pixelatlas/conquest-engine/internal/store"
	"github.com/pixelatlas/conquest-engine/internal/store/schema"
)

// TransferService is the slice of the ownership transfer service settlement
// needs. Satisfied by *transfer.Service.
type TransferService interface {
	Transfer(ctx context.Context, req domain.TransferRequest) (*domain.TransferResult, error)
}

// SettlementResult summarizes one settlement pass
type SettlementResult struct {
	Processed int `json:"processed"`
	Errors    int `json:"errors"`
}

// Settler resolves due auctions exactly once. Each auction is settled
// independently on a worker pool; one failure never aborts the pass.
type Settler struct {
	store     store.Store
	transfers TransferService
	clock     adapter.Clock
	policy    Policy
	poolSize  int
}

// NewSettler creates a new auction settler
func NewSettler(s store.Store, transfers TransferService, clock adapter.Clock, policy Policy, poolSize int) *Settler {
	if poolSize <= 0 {
		poolSize = 1
	}
	return &Settler{
		store:     s,
		transfers: transfers,
		clock:     clock,
		policy:    policy,
		poolSize:  poolSize,
	}
}

// RunOnce settles every auction due at the current instant, bounded by the
// sweep batch size
func (s *Settler) RunOnce(ctx context.Context) (SettlementResult, error) {
	now := s.clock.Now()
	due, err := s.store.ListDueAuctions(ctx, now, s.policy.SweepBatchSize)
	if err != nil {
		return SettlementResult{}, fmt.Errorf("failed to list due auctions: %w", err)
	}
	if len(due) == 0 {
		return SettlementResult{}, nil
	}

	logger.InfoCtx(ctx, "Settling due auctions", zap.Int("count", len(due)))

	var processed, failed atomic.Int32

	pool := pond.NewPool(
		s.poolSize,
		pond.WithQueueSize(len(due)),
		pond.WithContext(ctx),
	)
	for _, auction := range due {
		pool.Submit(func() {
			if err := s.settleOne(ctx, auction); err != nil {
				failed.Add(1)
				logger.ErrorCtx(ctx, err, zap.String("auction_id", auction.ID))
				return
			}
			processed.Add(1)
		})
	}
	pool.StopAndWait()

	result := SettlementResult{
		Processed: int(processed.Load()),
		Errors:    int(failed.Load()),
	}
	logger.InfoCtx(ctx, "Settlement pass completed",
		zap.Int("processed", result.Processed),
		zap.Int("errors", result.Errors))

	return result, nil
}

func (s *Settler) settleOne(ctx context.Context, auction schema.Auction) error {
	if auction.HighestBidder == nil {
		if err := s.store.CancelAuctionNoBids(ctx, auction.ID, auction.TerritoryID, s.clock.Now()); err != nil {
			if errors.Is(err, domain.ErrStateConflict) {
				// Resolved by a concurrent pass, or a late bid landed after
				// the listing; the next pass settles it with the winner
				return nil
			}
			return fmt.Errorf("failed to cancel auction without bids: %w", err)
		}
		logger.InfoCtx(ctx, "Auction cancelled, no bids",
			zap.String("auction_id", auction.ID),
			zap.String("territory_id", auction.TerritoryID))
		return nil
	}

	winner := *auction.HighestBidder
	winnerName := ""
	if auction.HighestBidderName != nil {
		winnerName = *auction.HighestBidderName
	}
	amount := winningAmount(auction)

	_, err := s.transfers.Transfer(ctx, domain.TransferRequest{
		TerritoryID: auction.TerritoryID,
		UserID:      winner,
		UserName:    winnerName,
		Price:       amount,
		Reason:      domain.TransferReasonAuctionWon,
		AuctionID:   auction.ID,
		RequestID:   settlementRequestID(auction.ID),
	})
	if err != nil {
		if errors.Is(err, domain.ErrAuctionNotActive) {
			// Settled by a concurrent pass between the list and this call
			return nil
		}
		// The auction still ends; the failed transfer is flagged for manual
		// reconciliation rather than retried against the same auction forever
		if markErr := s.store.MarkAuctionSettlementFailed(ctx, auction.ID, winner, amount, err.Error(), s.clock.Now()); markErr != nil {
			return fmt.Errorf("failed to flag settlement failure (%v): %w", err, markErr)
		}
		return fmt.Errorf("ownership transfer failed during settlement: %w", err)
	}

	logger.InfoCtx(ctx, "Auction settled",
		zap.String("auction_id", auction.ID),
		zap.String("territory_id", auction.TerritoryID),
		zap.String("winner", winner),
		zap.Int64("final_bid", amount))

	return nil
}

// winningAmount derives the winning amount as the maximum over the bid
// history, never trusting the separately cached current price, so write
// races between bid submission and settlement cannot undercount
func winningAmount(auction schema.Auction) int64 {
	var history []domain.BidEntry
	if len(auction.BidHistory) > 0 {
		if err := json.Unmarshal(auction.BidHistory, &history); err != nil {
			logger.Warn("Failed to decode bid history, falling back to current price",
				zap.String("auction_id", auction.ID),
				zap.Error(err))
		}
	}
	if highest, ok := domain.HighestBid(history); ok {
		return highest.Amount
	}
	return auction.CurrentPrice
}

// settlementRequestID derives the deterministic idempotency key for settling
// an auction, so a retried settlement replays instead of double-applying
func settlementRequestID(auctionID string) string {
	return "settle:" + auctionID
}
