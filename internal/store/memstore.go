package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pixelatlas/conquest-engine/internal/domain"
	"github.com/pixelatlas/conquest-engine/internal/store/schema"
)

// MemStore is an in-memory Store used by tests. It mirrors the guarded
// semantics of the PostgreSQL store, including pre-state checks and the
// request-id uniqueness of the ownership log, so lifecycle and settlement
// code can be exercised without a database.
type MemStore struct {
	mu            sync.Mutex
	territories   map[string]*schema.Territory
	auctions      map[string]*schema.Auction
	ownershipLogs []schema.OwnershipLog
	wallets       map[string]*schema.Wallet
	payments      map[string]*schema.Payment
	rankings      map[string]*schema.Ranking
	anomalies     []schema.RankingAnomaly
	reports       map[string]*schema.Report
}

// NewMemStore creates an empty in-memory store
func NewMemStore() *MemStore {
	return &MemStore{
		territories: map[string]*schema.Territory{},
		auctions:    map[string]*schema.Auction{},
		wallets:     map[string]*schema.Wallet{},
		payments:    map[string]*schema.Payment{},
		rankings:    map[string]*schema.Ranking{},
		reports:     map[string]*schema.Report{},
	}
}

// PutTerritory seeds or replaces a territory
func (m *MemStore) PutTerritory(t schema.Territory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := t
	m.territories[t.ID] = &c
}

// PutAuction seeds or replaces an auction
func (m *MemStore) PutAuction(a schema.Auction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := a
	m.auctions[a.ID] = &c
}

// PutWallet seeds or replaces a wallet
func (m *MemStore) PutWallet(w schema.Wallet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := w
	m.wallets[w.UserID] = &c
}

// PutPayment seeds or replaces a payment
func (m *MemStore) PutPayment(p schema.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := p
	m.payments[p.ID] = &c
}

// PutRanking seeds or replaces a ranking
func (m *MemStore) PutRanking(r schema.Ranking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := r
	m.rankings[r.UserID] = &c
}

// PutReport seeds or replaces a report
func (m *MemStore) PutReport(r schema.Report) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := r
	m.reports[r.ID] = &c
}

// OwnershipLogs returns a copy of the append-only ledger
func (m *MemStore) OwnershipLogs() []schema.OwnershipLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]schema.OwnershipLog, len(m.ownershipLogs))
	copy(out, m.ownershipLogs)
	return out
}

// Anomalies returns a copy of the recorded ranking anomalies
func (m *MemStore) Anomalies() []schema.RankingAnomaly {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]schema.RankingAnomaly, len(m.anomalies))
	copy(out, m.anomalies)
	return out
}

func (m *MemStore) GetTerritory(_ context.Context, id string) (*schema.Territory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.territories[id]
	if !ok {
		return nil, nil
	}
	c := *t
	return &c, nil
}

func (m *MemStore) ListProtectionExpired(_ context.Context, now time.Time, limit int) ([]schema.Territory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []schema.Territory
	for _, t := range m.territories {
		if t.SovereigntyState == domain.SovereigntyProtected &&
			t.ProtectionEndsAt != nil && !t.ProtectionEndsAt.After(now) &&
			t.LeaseEndsAt == nil {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProtectionEndsAt.Before(*out[j].ProtectionEndsAt) })
	return capLimit(out, limit), nil
}

func (m *MemStore) ListAbandonCandidates(_ context.Context, inactiveSince time.Time, limit int) ([]schema.Territory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []schema.Territory
	for _, t := range m.territories {
		if t.SovereigntyState == domain.SovereigntyPermanent &&
			!t.LastActivityAt.After(inactiveSince) &&
			t.LeaseEndsAt == nil {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivityAt.Before(out[j].LastActivityAt) })
	return capLimit(out, limit), nil
}

func (m *MemStore) ListExpiredLeases(_ context.Context, now time.Time, limit int) ([]schema.Territory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []schema.Territory
	for _, t := range m.territories {
		if t.LeaseEndsAt != nil && !t.LeaseEndsAt.After(now) &&
			t.SovereigntyState != domain.SovereigntyPermanent {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LeaseEndsAt.Before(*out[j].LeaseEndsAt) })
	return capLimit(out, limit), nil
}

func (m *MemStore) MarkTerritoryPermanent(_ context.Context, territoryID string, logTransactionID string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.territories[territoryID]
	if !ok {
		return domain.ErrTerritoryNotFound
	}
	if t.SovereigntyState != domain.SovereigntyProtected {
		return domain.ErrStateConflict
	}
	t.SovereigntyState = domain.SovereigntyPermanent
	t.UpdatedAt = now
	m.ownershipLogs = append(m.ownershipLogs, schema.OwnershipLog{
		TransactionID: logTransactionID,
		TerritoryID:   territoryID,
		PreviousOwner: t.OwnerID,
		NewOwner:      t.OwnerID,
		Reason:        domain.TransferReasonAutoPermanent,
		CreatedAt:     now,
	})
	return nil
}

func (m *MemStore) MarkTerritoryChallengeable(_ context.Context, territoryID string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.territories[territoryID]
	if !ok || t.SovereigntyState != domain.SovereigntyProtected {
		return domain.ErrStateConflict
	}
	t.SovereigntyState = domain.SovereigntyChallengeable
	t.UpdatedAt = now
	return nil
}

func (m *MemStore) SetAbandonedWarning(_ context.Context, territoryID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.territories[territoryID]
	if !ok || t.SovereigntyState != domain.SovereigntyPermanent || t.AbandonedWarning {
		return domain.ErrStateConflict
	}
	t.AbandonedWarning = true
	warnedAt := at
	t.AbandonedWarningAt = &warnedAt
	t.UpdatedAt = at
	return nil
}

func (m *MemStore) OpenReauction(_ context.Context, input OpenReauctionInput) (*schema.Auction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.territories[input.TerritoryID]
	if !ok {
		return nil, domain.ErrTerritoryNotFound
	}
	if t.SovereigntyState != input.ExpectedState {
		return nil, domain.ErrStateConflict
	}
	for _, a := range m.auctions {
		if a.TerritoryID == input.TerritoryID && a.Status == domain.AuctionStatusActive {
			return nil, domain.ErrActiveAuctionExists
		}
	}

	auction := schema.Auction{
		ID:            input.AuctionID,
		TerritoryID:   input.TerritoryID,
		Status:        domain.AuctionStatusActive,
		Reason:        input.AuctionReason,
		StartingPrice: input.StartingPrice,
		CurrentPrice:  input.StartingPrice,
		BidHistory:    []byte("[]"),
		EndsAt:        input.EndsAt,
		CreatedAt:     input.Now,
		UpdatedAt:     input.Now,
	}
	m.auctions[auction.ID] = &auction

	t.SovereigntyState = domain.SovereigntyChallengeable
	auctionID := input.AuctionID
	t.CurrentAuctionID = &auctionID
	if input.ClearWarning {
		t.AbandonedWarning = false
		t.AbandonedWarningAt = nil
	}
	if input.ClearOwner {
		t.OwnerID = nil
		t.OwnerDisplayName = nil
		t.OwnerSince = nil
		t.LeaseKind = nil
		t.LeaseEndsAt = nil
	}
	t.UpdatedAt = input.Now

	m.ownershipLogs = append(m.ownershipLogs, schema.OwnershipLog{
		TransactionID: input.LogTransactionID,
		TerritoryID:   input.TerritoryID,
		PreviousOwner: input.PreviousOwner,
		Price:         input.StartingPrice,
		Reason:        input.LogReason,
		CreatedAt:     input.Now,
	})

	c := auction
	return &c, nil
}

func (m *MemStore) GetAuction(_ context.Context, id string) (*schema.Auction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.auctions[id]
	if !ok {
		return nil, nil
	}
	c := *a
	return &c, nil
}

func (m *MemStore) GetActiveAuctionByTerritory(_ context.Context, territoryID string) (*schema.Auction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.auctions {
		if a.TerritoryID == territoryID && a.Status == domain.AuctionStatusActive {
			c := *a
			return &c, nil
		}
	}
	return nil, nil
}

func (m *MemStore) CreateAuction(_ context.Context, input CreateAuctionInput) (*schema.Auction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.territories[input.TerritoryID]
	if !ok {
		return nil, domain.ErrTerritoryNotFound
	}
	for _, a := range m.auctions {
		if a.TerritoryID == input.TerritoryID && a.Status == domain.AuctionStatusActive {
			return nil, domain.ErrActiveAuctionExists
		}
	}

	auction := schema.Auction{
		ID:            input.AuctionID,
		TerritoryID:   input.TerritoryID,
		Status:        domain.AuctionStatusActive,
		Reason:        input.Reason,
		StartingPrice: input.StartingPrice,
		CurrentPrice:  input.StartingPrice,
		BidHistory:    []byte("[]"),
		EndsAt:        input.EndsAt,
		CreatedAt:     input.Now,
		UpdatedAt:     input.Now,
	}
	m.auctions[auction.ID] = &auction

	auctionID := input.AuctionID
	t.CurrentAuctionID = &auctionID
	if t.SovereigntyState == domain.SovereigntyAvailable ||
		t.SovereigntyState == domain.SovereigntyPermanent {
		t.SovereigntyState = domain.SovereigntyChallengeable
	}
	t.UpdatedAt = input.Now

	c := auction
	return &c, nil
}

func (m *MemStore) ListDueAuctions(_ context.Context, now time.Time, limit int) ([]schema.Auction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []schema.Auction
	for _, a := range m.auctions {
		if a.Status == domain.AuctionStatusActive && !a.EndsAt.After(now) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndsAt.Before(out[j].EndsAt) })
	return capLimit(out, limit), nil
}

func (m *MemStore) CancelAuctionNoBids(_ context.Context, auctionID string, territoryID string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.auctions[auctionID]
	if !ok || a.Status != domain.AuctionStatusActive || a.HighestBidder != nil {
		return domain.ErrStateConflict
	}
	a.Status = domain.AuctionStatusCancelled
	reason := domain.AuctionReasonNoBids
	a.SettlementReason = &reason
	a.UpdatedAt = now

	if t, ok := m.territories[territoryID]; ok &&
		t.CurrentAuctionID != nil && *t.CurrentAuctionID == auctionID {
		t.CurrentAuctionID = nil
		t.UpdatedAt = now
	}
	return nil
}

func (m *MemStore) MarkAuctionSettlementFailed(_ context.Context, auctionID string, winnerID string, finalBid int64, transferErr string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.auctions[auctionID]
	if !ok {
		return domain.ErrAuctionNotFound
	}
	if a.Status != domain.AuctionStatusActive {
		return domain.ErrStateConflict
	}
	a.Status = domain.AuctionStatusEnded
	reason := domain.AuctionReasonAuctionWon
	a.SettlementReason = &reason
	winner := winnerID
	a.WinnerID = &winner
	bid := finalBid
	a.FinalBid = &bid
	a.OwnershipTransferFailed = true
	msg := transferErr
	a.TransferError = &msg
	a.UpdatedAt = now

	if t, ok := m.territories[a.TerritoryID]; ok &&
		t.CurrentAuctionID != nil && *t.CurrentAuctionID == auctionID {
		t.CurrentAuctionID = nil
		t.UpdatedAt = now
	}
	return nil
}

func (m *MemStore) GetWallet(_ context.Context, userID string) (*schema.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[userID]
	if !ok {
		return nil, nil
	}
	c := *w
	return &c, nil
}

func (m *MemStore) GetPayment(_ context.Context, id string) (*schema.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, nil
	}
	c := *p
	return &c, nil
}

func (m *MemStore) GetOwnershipLogByRequestID(_ context.Context, requestID string) (*schema.OwnershipLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.ownershipLogs {
		if m.ownershipLogs[i].RequestID != nil && *m.ownershipLogs[i].RequestID == requestID {
			c := m.ownershipLogs[i]
			return &c, nil
		}
	}
	return nil, nil
}

func (m *MemStore) ApplyOwnershipTransfer(_ context.Context, input ApplyTransferInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if input.RequestID != nil {
		for i := range m.ownershipLogs {
			if m.ownershipLogs[i].RequestID != nil && *m.ownershipLogs[i].RequestID == *input.RequestID {
				return domain.ErrStateConflict
			}
		}
	}

	if input.DebitWallet {
		w, ok := m.wallets[input.UserID]
		if !ok || w.Balance < input.Price {
			return domain.ErrInsufficientFunds
		}
	}
	t, ok := m.territories[input.TerritoryID]
	if !ok || (t.OwnerID != nil && *t.OwnerID != input.UserID) {
		return domain.ErrOwnershipConflict
	}
	var settled *schema.Auction
	if input.SettleAuctionID != nil {
		a, ok := m.auctions[*input.SettleAuctionID]
		if !ok || a.Status != domain.AuctionStatusActive {
			return domain.ErrAuctionNotActive
		}
		settled = a
	}

	// All preconditions hold; apply every effect
	if input.DebitWallet {
		w := m.wallets[input.UserID]
		w.Balance -= input.Price
		w.TotalSpent += input.Price
		w.UpdatedAt = input.Now
	}
	if settled != nil {
		settled.Status = domain.AuctionStatusEnded
		reason := domain.AuctionReasonAuctionWon
		settled.SettlementReason = &reason
		winner := input.UserID
		settled.WinnerID = &winner
		bid := input.Price
		settled.FinalBid = &bid
		txID := input.TransactionID
		settled.TransactionID = &txID
		settled.UpdatedAt = input.Now
	}

	owner := input.UserID
	name := input.UserName
	since := input.Now
	ends := input.ProtectionEndsAt
	t.OwnerID = &owner
	t.OwnerDisplayName = &name
	t.OwnerSince = &since
	t.SovereigntyState = domain.SovereigntyProtected
	t.ProtectionEndsAt = &ends
	t.CurrentAuctionID = nil
	t.AcquiredPrice = input.Price
	t.LastActivityAt = input.Now
	t.UpdatedAt = input.Now

	m.ownershipLogs = append(m.ownershipLogs, schema.OwnershipLog{
		TransactionID: input.TransactionID,
		TerritoryID:   input.TerritoryID,
		PreviousOwner: input.PreviousOwner,
		NewOwner:      &owner,
		Price:         input.Price,
		Reason:        input.Reason,
		RequestID:     input.RequestID,
		CreatedAt:     input.Now,
	})
	return nil
}

func (m *MemStore) AggregateOwnerHoldings(_ context.Context) ([]OwnerHoldings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byOwner := map[string]*OwnerHoldings{}
	countries := map[string]map[string]struct{}{}
	continents := map[string]map[string]struct{}{}

	for _, t := range m.territories {
		if t.OwnerID == nil {
			continue
		}
		id := *t.OwnerID
		h, ok := byOwner[id]
		if !ok {
			h = &OwnerHoldings{OwnerID: id}
			byOwner[id] = h
			countries[id] = map[string]struct{}{}
			continents[id] = map[string]struct{}{}
		}
		if t.OwnerDisplayName != nil {
			h.OwnerDisplayName = *t.OwnerDisplayName
		}
		h.TerritoryCount++
		h.TotalValue += t.AcquiredPrice
		h.PixelCount += t.PixelCount
		countries[id][t.CountryCode] = struct{}{}
		continents[id][t.Continent] = struct{}{}
	}

	out := make([]OwnerHoldings, 0, len(byOwner))
	for id, h := range byOwner {
		h.Countries = sortedKeys(countries[id])
		h.Continents = sortedKeys(continents[id])
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OwnerID < out[j].OwnerID })
	return out, nil
}

func (m *MemStore) GetRanking(_ context.Context, userID string) (*schema.Ranking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rankings[userID]
	if !ok {
		return nil, nil
	}
	c := *r
	return &c, nil
}

func (m *MemStore) UpsertRanking(_ context.Context, ranking schema.Ranking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := ranking
	m.rankings[ranking.UserID] = &c
	return nil
}

func (m *MemStore) CreateRankingAnomaly(_ context.Context, anomaly schema.RankingAnomaly) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.anomalies = append(m.anomalies, anomaly)
	return nil
}

func (m *MemStore) ListPendingReports(_ context.Context, territoryID string) ([]schema.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []schema.Report
	for _, r := range m.reports {
		if r.TerritoryID == territoryID && r.Status == domain.ReportStatusPending {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemStore) GetReporterStats(_ context.Context, reporterID string) (ReporterStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var stats ReporterStats
	for _, r := range m.reports {
		if r.ReporterID != reporterID {
			continue
		}
		switch r.Status {
		case domain.ReportStatusConfirmed:
			stats.Confirmed++
		case domain.ReportStatusRejected:
			stats.Rejected++
		}
	}
	return stats, nil
}

func capLimit[T any](in []T, limit int) []T {
	if limit > 0 && len(in) > limit {
		return in[:limit]
	}
	return in
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
