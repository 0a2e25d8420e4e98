package transfer_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelatlas/conquest-engine/internal/adapter"
	"github.com/pixelatlas/conquest-engine/internal/domain"
	"github.com/pixelatlas/conquest-engine/internal/logger"
	"github.com/pixelatlas/conquest-engine/internal/store"
	"github.com/pixelatlas/conquest-engine/internal/store/schema"
	"github.com/pixelatlas/conquest-engine/internal/transfer"
)

func TestMain(m *testing.M) {
	// Initialize logger for tests
	err := logger.Initialize(logger.Config{
		Debug: false,
	})
	if err != nil {
		panic(err)
	}

	code := m.Run()
	os.Exit(code)
}

// capturePublisher records published events for assertions
type capturePublisher struct {
	mu     sync.Mutex
	events []*domain.OwnershipChangedEvent
	err    error
}

func (p *capturePublisher) PublishOwnershipChanged(_ context.Context, event *domain.OwnershipChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) Close() {}

func (p *capturePublisher) published() []*domain.OwnershipChangedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*domain.OwnershipChangedEvent(nil), p.events...)
}

var testNow = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

const protectionWindow = 7 * 24 * time.Hour

func newTestService(mem *store.MemStore, publisher *capturePublisher) *transfer.Service {
	clock := adapter.NewFakeClock(testNow)
	if publisher == nil {
		return transfer.NewService(mem, nil, clock, protectionWindow)
	}
	return transfer.NewService(mem, publisher, clock, protectionWindow)
}

func seedAvailableTerritory(mem *store.MemStore, id string) {
	mem.PutTerritory(schema.Territory{
		ID:               id,
		SovereigntyState: domain.SovereigntyAvailable,
		CountryCode:      "fr",
		Continent:        "europe",
	})
}

func TestService_Transfer_Validation(t *testing.T) {
	svc := newTestService(store.NewMemStore(), nil)

	cases := []struct {
		name string
		req  domain.TransferRequest
	}{
		{"missing territory", domain.TransferRequest{UserID: "u1", Reason: domain.TransferReasonAdminFix}},
		{"missing user", domain.TransferRequest{TerritoryID: "fr-75", Reason: domain.TransferReasonAdminFix}},
		{"negative price", domain.TransferRequest{TerritoryID: "fr-75", UserID: "u1", Price: -1, Reason: domain.TransferReasonAdminFix}},
		{"unsupported reason", domain.TransferRequest{TerritoryID: "fr-75", UserID: "u1", Reason: domain.TransferReason("lease_expired")}},
		{"purchase without payment", domain.TransferRequest{TerritoryID: "fr-75", UserID: "u1", Reason: domain.TransferReasonDirectPurchase}},
		{"auction win without auction", domain.TransferRequest{TerritoryID: "fr-75", UserID: "u1", Reason: domain.TransferReasonAuctionWon}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Transfer(context.Background(), tc.req)
			assert.True(t, domain.IsValidation(err), "expected validation error, got %v", err)
		})
	}
}

func TestService_Transfer_AdminFix(t *testing.T) {
	mem := store.NewMemStore()
	publisher := &capturePublisher{}
	seedAvailableTerritory(mem, "fr-75")
	svc := newTestService(mem, publisher)

	result, err := svc.Transfer(context.Background(), domain.TransferRequest{
		TerritoryID: "fr-75",
		UserID:      "user-1",
		UserName:    "Napoleon",
		Price:       500,
		Reason:      domain.TransferReasonAdminFix,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.TransactionID)
	assert.False(t, result.Replayed)

	territory, err := mem.GetTerritory(context.Background(), "fr-75")
	require.NoError(t, err)
	require.NotNil(t, territory.OwnerID)
	assert.Equal(t, "user-1", *territory.OwnerID)
	assert.Equal(t, domain.SovereigntyProtected, territory.SovereigntyState)
	require.NotNil(t, territory.ProtectionEndsAt)
	assert.Equal(t, testNow.Add(protectionWindow), *territory.ProtectionEndsAt)
	assert.Equal(t, int64(500), territory.AcquiredPrice)

	logs := mem.OwnershipLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, result.TransactionID, logs[0].TransactionID)
	assert.Equal(t, domain.TransferReasonAdminFix, logs[0].Reason)
	assert.Nil(t, logs[0].PreviousOwner)

	events := publisher.published()
	require.Len(t, events, 1)
	assert.Equal(t, "user-1", events[0].NewOwner)
	assert.Equal(t, result.TransactionID, events[0].TransactionID)
}

func TestService_Transfer_TerritoryNotFound(t *testing.T) {
	svc := newTestService(store.NewMemStore(), nil)

	_, err := svc.Transfer(context.Background(), domain.TransferRequest{
		TerritoryID: "xx-00",
		UserID:      "user-1",
		Reason:      domain.TransferReasonAdminFix,
	})
	assert.ErrorIs(t, err, domain.ErrTerritoryNotFound)
}

func TestService_Transfer_OwnershipConflict(t *testing.T) {
	mem := store.NewMemStore()
	owner := "user-1"
	mem.PutTerritory(schema.Territory{
		ID:               "fr-75",
		SovereigntyState: domain.SovereigntyPermanent,
		OwnerID:          &owner,
	})
	svc := newTestService(mem, nil)

	_, err := svc.Transfer(context.Background(), domain.TransferRequest{
		TerritoryID: "fr-75",
		UserID:      "user-2",
		Reason:      domain.TransferReasonAdminFix,
	})
	assert.ErrorIs(t, err, domain.ErrOwnershipConflict)
}

func TestService_Transfer_IdempotentReplay(t *testing.T) {
	mem := store.NewMemStore()
	seedAvailableTerritory(mem, "fr-75")
	svc := newTestService(mem, nil)

	req := domain.TransferRequest{
		TerritoryID: "fr-75",
		UserID:      "user-1",
		Price:       500,
		Reason:      domain.TransferReasonAdminFix,
		RequestID:   "req-abc",
	}

	first, err := svc.Transfer(context.Background(), req)
	require.NoError(t, err)
	require.False(t, first.Replayed)

	second, err := svc.Transfer(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.TransactionID, second.TransactionID)
	assert.Equal(t, first.Price, second.Price)

	// No second mutation was applied
	assert.Len(t, mem.OwnershipLogs(), 1)
}

func TestService_Transfer_DirectPurchase(t *testing.T) {
	mem := store.NewMemStore()
	seedAvailableTerritory(mem, "fr-75")
	mem.PutPayment(schema.Payment{ID: "pay-1", UserID: "user-1", Amount: 500, Status: domain.PaymentStatusCompleted})
	mem.PutWallet(schema.Wallet{UserID: "user-1", Balance: 750})
	svc := newTestService(mem, nil)

	_, err := svc.Transfer(context.Background(), domain.TransferRequest{
		TerritoryID: "fr-75",
		UserID:      "user-1",
		Price:       500,
		Reason:      domain.TransferReasonDirectPurchase,
		PaymentID:   "pay-1",
	})
	require.NoError(t, err)

	wallet, err := mem.GetWallet(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(250), wallet.Balance)
	assert.Equal(t, int64(500), wallet.TotalSpent)
}

func TestService_Transfer_DirectPurchase_Preconditions(t *testing.T) {
	mem := store.NewMemStore()
	seedAvailableTerritory(mem, "fr-75")
	mem.PutPayment(schema.Payment{ID: "pay-pending", UserID: "user-1", Amount: 500, Status: domain.PaymentStatusPending})
	mem.PutPayment(schema.Payment{ID: "pay-other", UserID: "user-2", Amount: 500, Status: domain.PaymentStatusCompleted})
	mem.PutPayment(schema.Payment{ID: "pay-ok", UserID: "user-1", Amount: 500, Status: domain.PaymentStatusCompleted})
	svc := newTestService(mem, nil)

	base := domain.TransferRequest{
		TerritoryID: "fr-75",
		UserID:      "user-1",
		Price:       500,
		Reason:      domain.TransferReasonDirectPurchase,
	}

	missing := base
	missing.PaymentID = "pay-missing"
	_, err := svc.Transfer(context.Background(), missing)
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)

	pending := base
	pending.PaymentID = "pay-pending"
	_, err = svc.Transfer(context.Background(), pending)
	assert.ErrorIs(t, err, domain.ErrPaymentIncomplete)

	other := base
	other.PaymentID = "pay-other"
	_, err = svc.Transfer(context.Background(), other)
	assert.ErrorIs(t, err, domain.ErrPaymentIncomplete)

	noWallet := base
	noWallet.PaymentID = "pay-ok"
	_, err = svc.Transfer(context.Background(), noWallet)
	assert.ErrorIs(t, err, domain.ErrWalletNotFound)

	mem.PutWallet(schema.Wallet{UserID: "user-1", Balance: 499})
	broke := base
	broke.PaymentID = "pay-ok"
	_, err = svc.Transfer(context.Background(), broke)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	// Nothing was applied along the way
	territory, err := mem.GetTerritory(context.Background(), "fr-75")
	require.NoError(t, err)
	assert.Nil(t, territory.OwnerID)
	assert.Empty(t, mem.OwnershipLogs())
}

func TestService_Transfer_AuctionWon(t *testing.T) {
	mem := store.NewMemStore()
	seedAvailableTerritory(mem, "fr-75")
	winner := "user-1"
	mem.PutAuction(schema.Auction{
		ID:            "auction-1",
		TerritoryID:   "fr-75",
		Status:        domain.AuctionStatusActive,
		HighestBidder: &winner,
		CurrentPrice:  800,
		EndsAt:        testNow,
	})
	svc := newTestService(mem, nil)

	result, err := svc.Transfer(context.Background(), domain.TransferRequest{
		TerritoryID: "fr-75",
		UserID:      "user-1",
		Price:       800,
		Reason:      domain.TransferReasonAuctionWon,
		AuctionID:   "auction-1",
	})
	require.NoError(t, err)

	auction, err := mem.GetAuction(context.Background(), "auction-1")
	require.NoError(t, err)
	assert.Equal(t, domain.AuctionStatusEnded, auction.Status)
	require.NotNil(t, auction.WinnerID)
	assert.Equal(t, "user-1", *auction.WinnerID)
	require.NotNil(t, auction.FinalBid)
	assert.Equal(t, int64(800), *auction.FinalBid)
	require.NotNil(t, auction.TransactionID)
	assert.Equal(t, result.TransactionID, *auction.TransactionID)

	territory, err := mem.GetTerritory(context.Background(), "fr-75")
	require.NoError(t, err)
	assert.Nil(t, territory.CurrentAuctionID)
	assert.Equal(t, domain.SovereigntyProtected, territory.SovereigntyState)
}

func TestService_Transfer_AuctionWon_Preconditions(t *testing.T) {
	mem := store.NewMemStore()
	seedAvailableTerritory(mem, "fr-75")
	winner := "user-1"
	mem.PutAuction(schema.Auction{
		ID:            "auction-ended",
		TerritoryID:   "fr-75",
		Status:        domain.AuctionStatusEnded,
		HighestBidder: &winner,
	})
	mem.PutAuction(schema.Auction{
		ID:            "auction-active",
		TerritoryID:   "fr-75",
		Status:        domain.AuctionStatusActive,
		HighestBidder: &winner,
	})
	svc := newTestService(mem, nil)

	base := domain.TransferRequest{
		TerritoryID: "fr-75",
		UserID:      "user-2",
		Reason:      domain.TransferReasonAuctionWon,
	}

	missing := base
	missing.AuctionID = "auction-missing"
	_, err := svc.Transfer(context.Background(), missing)
	assert.ErrorIs(t, err, domain.ErrAuctionNotFound)

	ended := base
	ended.AuctionID = "auction-ended"
	_, err = svc.Transfer(context.Background(), ended)
	assert.ErrorIs(t, err, domain.ErrAuctionNotActive)

	loser := base
	loser.AuctionID = "auction-active"
	_, err = svc.Transfer(context.Background(), loser)
	assert.ErrorIs(t, err, domain.ErrWrongAuctionWinner)
}

func TestService_Transfer_PublishFailureDoesNotFailTransfer(t *testing.T) {
	mem := store.NewMemStore()
	seedAvailableTerritory(mem, "fr-75")
	publisher := &capturePublisher{err: errors.New("broker down")}
	svc := newTestService(mem, publisher)

	_, err := svc.Transfer(context.Background(), domain.TransferRequest{
		TerritoryID: "fr-75",
		UserID:      "user-1",
		Reason:      domain.TransferReasonAdminFix,
	})
	require.NoError(t, err)
	assert.Len(t, mem.OwnershipLogs(), 1)
}
