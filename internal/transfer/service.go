package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pixelatlas/conquest-engine/internal/adapter"
	"github.com/pixelatlas/conquest-engine/internal/domain"
	"github.com/pixelatlas/conquest-engine/internal/logger"
	"github.com/pixelatlas/conquest-engine/internal/messaging"
	"github.com/pixelatlas/conquest-engine/internal/store"
)

// Service is the only code path allowed to change a territory's owner. It
// enforces the idempotency contract and the per-reason preconditions, then
// applies all effects as one atomic store write.
type Service struct {
	store            store.Store
	publisher        messaging.Publisher
	clock            adapter.Clock
	protectionWindow time.Duration
}

// NewService creates a new ownership transfer service. The publisher may be
// nil; events are then skipped.
func NewService(s store.Store, publisher messaging.Publisher, clock adapter.Clock, protectionWindow time.Duration) *Service {
	return &Service{
		store:            s,
		publisher:        publisher,
		clock:            clock,
		protectionWindow: protectionWindow,
	}
}

// Transfer performs an ownership transfer. Replayed requests (same requestId)
// return the originally recorded result without re-applying any mutation.
func (s *Service) Transfer(ctx context.Context, req domain.TransferRequest) (*domain.TransferResult, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	// Idempotency check before anything else
	if req.RequestID != "" {
		existing, err := s.store.GetOwnershipLogByRequestID(ctx, req.RequestID)
		if err != nil {
			return nil, fmt.Errorf("failed to check idempotency ledger: %w", err)
		}
		if existing != nil {
			logger.InfoCtx(ctx, "Transfer request replayed from ledger",
				zap.String("request_id", req.RequestID),
				zap.String("transaction_id", existing.TransactionID))
			result := &domain.TransferResult{
				TransactionID: existing.TransactionID,
				TerritoryID:   existing.TerritoryID,
				UserID:        req.UserID,
				UserName:      req.UserName,
				Price:         existing.Price,
				Replayed:      true,
			}
			return result, nil
		}
	}

	territory, err := s.store.GetTerritory(ctx, req.TerritoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to read territory: %w", err)
	}
	if territory == nil {
		return nil, domain.ErrTerritoryNotFound
	}
	if territory.OwnerID != nil && *territory.OwnerID != req.UserID {
		return nil, domain.ErrOwnershipConflict
	}

	now := s.clock.Now()
	input := store.ApplyTransferInput{
		TransactionID:    uuid.NewString(),
		TerritoryID:      req.TerritoryID,
		UserID:           req.UserID,
		UserName:         req.UserName,
		Price:            req.Price,
		Reason:           req.Reason,
		PreviousOwner:    territory.OwnerID,
		ProtectionEndsAt: now.Add(s.protectionWindow),
		Now:              now,
	}
	if req.RequestID != "" {
		requestID := req.RequestID
		input.RequestID = &requestID
	}

	switch req.Reason {
	case domain.TransferReasonDirectPurchase:
		if err := s.checkDirectPurchase(ctx, req); err != nil {
			return nil, err
		}
		input.DebitWallet = true
	case domain.TransferReasonAuctionWon:
		if err := s.checkAuctionWin(ctx, req); err != nil {
			return nil, err
		}
		auctionID := req.AuctionID
		input.SettleAuctionID = &auctionID
	case domain.TransferReasonAdminFix:
		// Administrative corrections carry no payment or auction precondition
	}

	if err := s.store.ApplyOwnershipTransfer(ctx, input); err != nil {
		return nil, err
	}

	logger.InfoCtx(ctx, "Ownership transferred",
		zap.String("territory_id", req.TerritoryID),
		zap.String("user_id", req.UserID),
		zap.String("reason", string(req.Reason)),
		zap.Int64("price", req.Price),
		zap.String("transaction_id", input.TransactionID))

	s.publishEvent(ctx, input)

	return &domain.TransferResult{
		TransactionID: input.TransactionID,
		TerritoryID:   req.TerritoryID,
		UserID:        req.UserID,
		UserName:      req.UserName,
		Price:         req.Price,
	}, nil
}

func (s *Service) checkDirectPurchase(ctx context.Context, req domain.TransferRequest) error {
	payment, err := s.store.GetPayment(ctx, req.PaymentID)
	if err != nil {
		return fmt.Errorf("failed to read payment: %w", err)
	}
	if payment == nil {
		return domain.ErrPaymentNotFound
	}
	if payment.UserID != req.UserID || payment.Status != domain.PaymentStatusCompleted {
		return domain.ErrPaymentIncomplete
	}

	wallet, err := s.store.GetWallet(ctx, req.UserID)
	if err != nil {
		return fmt.Errorf("failed to read wallet: %w", err)
	}
	if wallet == nil {
		return domain.ErrWalletNotFound
	}
	if wallet.Balance < req.Price {
		return domain.ErrInsufficientFunds
	}

	return nil
}

func (s *Service) checkAuctionWin(ctx context.Context, req domain.TransferRequest) error {
	auction, err := s.store.GetAuction(ctx, req.AuctionID)
	if err != nil {
		return fmt.Errorf("failed to read auction: %w", err)
	}
	if auction == nil {
		return domain.ErrAuctionNotFound
	}
	if auction.Status != domain.AuctionStatusActive {
		return domain.ErrAuctionNotActive
	}
	if auction.HighestBidder == nil || *auction.HighestBidder != req.UserID {
		return domain.ErrWrongAuctionWinner
	}

	return nil
}

// publishEvent emits the ownership change to the broker. The transfer is
// already committed; a publish failure is logged and swallowed.
func (s *Service) publishEvent(ctx context.Context, input store.ApplyTransferInput) {
	if s.publisher == nil {
		return
	}

	event := &domain.OwnershipChangedEvent{
		EventID:       uuid.NewString(),
		TransactionID: input.TransactionID,
		TerritoryID:   input.TerritoryID,
		PreviousOwner: input.PreviousOwner,
		NewOwner:      input.UserID,
		Price:         input.Price,
		Reason:        input.Reason,
		Timestamp:     input.Now,
	}
	if err := s.publisher.PublishOwnershipChanged(ctx, event); err != nil {
		logger.WarnCtx(ctx, "Failed to publish ownership change event",
			zap.Error(err),
			zap.String("transaction_id", input.TransactionID))
	}
}

func validate(req domain.TransferRequest) error {
	if req.TerritoryID == "" {
		return domain.NewValidationError("territoryId", "required")
	}
	if req.UserID == "" {
		return domain.NewValidationError("userId", "required")
	}
	if req.Price < 0 {
		return domain.NewValidationError("price", "must not be negative")
	}
	if !req.Reason.Valid() {
		return domain.NewValidationError("reason", fmt.Sprintf("unsupported transfer reason %q", req.Reason))
	}
	if req.Reason == domain.TransferReasonDirectPurchase && req.PaymentID == "" {
		return domain.NewValidationError("paymentId", "required for direct_purchase")
	}
	if req.Reason == domain.TransferReasonAuctionWon && req.AuctionID == "" {
		return domain.NewValidationError("auctionId", "required for auction_won")
	}
	return nil
}
