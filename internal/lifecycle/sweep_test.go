package lifecycle_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelatlas/conquest-engine/internal/adapter"
	"github.com/pixelatlas/conquest-engine/internal/domain"
	"github.com/pixelatlas/conquest-engine/internal/lifecycle"
	"github.com/pixelatlas/conquest-engine/internal/logger"
	"github.com/pixelatlas/conquest-engine/internal/store"
	"github.com/pixelatlas/conquest-engine/internal/store/schema"
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

var testNow = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

var testPolicy = lifecycle.Policy{
	AbandonmentThreshold:    30 * 24 * time.Hour,
	AbandonmentWarningGrace: 7 * 24 * time.Hour,
	ReauctionDuration:       24 * time.Hour,
	DefaultFloorPrice:       100,
	SweepBatchSize:          50,
}

func newTestSweep(mem *store.MemStore) *lifecycle.Sweep {
	return lifecycle.NewSweep(mem, adapter.NewFakeClock(testNow), testPolicy)
}

func ptr[T any](v T) *T { return &v }

func TestSweep_ProtectionExpiry_BecomesPermanent(t *testing.T) {
	mem := store.NewMemStore()
	mem.PutTerritory(schema.Territory{
		ID:               "fr-75",
		SovereigntyState: domain.SovereigntyProtected,
		OwnerID:          ptr("user-1"),
		ProtectionEndsAt: ptr(testNow.Add(-time.Hour)),
		LastActivityAt:   testNow,
	})
	sweep := newTestSweep(mem)

	stats, err := sweep.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.AutoPermanentCount)

	territory, err := mem.GetTerritory(context.Background(), "fr-75")
	require.NoError(t, err)
	assert.Equal(t, domain.SovereigntyPermanent, territory.SovereigntyState)

	logs := mem.OwnershipLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, domain.TransferReasonAutoPermanent, logs[0].Reason)
}

func TestSweep_ProtectionExpiry_ActiveAuctionBecomesChallengeable(t *testing.T) {
	mem := store.NewMemStore()
	mem.PutAuction(schema.Auction{
		ID:          "auction-1",
		TerritoryID: "fr-75",
		Status:      domain.AuctionStatusActive,
		EndsAt:      testNow.Add(time.Hour),
	})
	mem.PutTerritory(schema.Territory{
		ID:               "fr-75",
		SovereigntyState: domain.SovereigntyProtected,
		OwnerID:          ptr("user-1"),
		ProtectionEndsAt: ptr(testNow.Add(-time.Hour)),
		CurrentAuctionID: ptr("auction-1"),
		LastActivityAt:   testNow,
	})
	sweep := newTestSweep(mem)

	stats, err := sweep.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.AutoPermanentCount)

	territory, err := mem.GetTerritory(context.Background(), "fr-75")
	require.NoError(t, err)
	assert.Equal(t, domain.SovereigntyChallengeable, territory.SovereigntyState)
	assert.Empty(t, mem.OwnershipLogs())
}

func TestSweep_ProtectionExpiry_LeasedTerritoryIsSkipped(t *testing.T) {
	mem := store.NewMemStore()
	mem.PutTerritory(schema.Territory{
		ID:               "fr-75",
		SovereigntyState: domain.SovereigntyProtected,
		OwnerID:          ptr("user-1"),
		ProtectionEndsAt: ptr(testNow.Add(-time.Hour)),
		LeaseKind:        ptr("weekly"),
		LeaseEndsAt:      ptr(testNow.Add(48 * time.Hour)),
		LastActivityAt:   testNow,
	})
	sweep := newTestSweep(mem)

	stats, err := sweep.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.AutoPermanentCount)

	territory, err := mem.GetTerritory(context.Background(), "fr-75")
	require.NoError(t, err)
	assert.Equal(t, domain.SovereigntyProtected, territory.SovereigntyState)
}

func TestSweep_Abandonment_WarnsFirst(t *testing.T) {
	mem := store.NewMemStore()
	mem.PutTerritory(schema.Territory{
		ID:               "fr-75",
		SovereigntyState: domain.SovereigntyPermanent,
		OwnerID:          ptr("user-1"),
		LastActivityAt:   testNow.Add(-31 * 24 * time.Hour),
	})
	sweep := newTestSweep(mem)

	stats, err := sweep.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.WarnedCount)
	assert.Zero(t, stats.AbandonedCount)

	territory, err := mem.GetTerritory(context.Background(), "fr-75")
	require.NoError(t, err)
	assert.True(t, territory.AbandonedWarning)
	require.NotNil(t, territory.AbandonedWarningAt)
	assert.Equal(t, testNow, *territory.AbandonedWarningAt)
	// Still owned and permanent until the grace runs out
	assert.Equal(t, domain.SovereigntyPermanent, territory.SovereigntyState)
}

func TestSweep_Abandonment_ReauctionsAfterGrace(t *testing.T) {
	mem := store.NewMemStore()
	mem.PutTerritory(schema.Territory{
		ID:                 "fr-75",
		SovereigntyState:   domain.SovereigntyPermanent,
		OwnerID:            ptr("user-1"),
		LastActivityAt:     testNow.Add(-40 * 24 * time.Hour),
		AbandonedWarning:   true,
		AbandonedWarningAt: ptr(testNow.Add(-8 * 24 * time.Hour)),
		AcquiredPrice:      700,
	})
	sweep := newTestSweep(mem)

	stats, err := sweep.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.AbandonedCount)

	territory, err := mem.GetTerritory(context.Background(), "fr-75")
	require.NoError(t, err)
	assert.Equal(t, domain.SovereigntyChallengeable, territory.SovereigntyState)
	assert.False(t, territory.AbandonedWarning)
	assert.Nil(t, territory.AbandonedWarningAt)
	// The owner keeps the territory until someone outbids them
	require.NotNil(t, territory.OwnerID)
	assert.Equal(t, "user-1", *territory.OwnerID)
	require.NotNil(t, territory.CurrentAuctionID)

	opened, err := mem.GetAuction(context.Background(), *territory.CurrentAuctionID)
	require.NoError(t, err)
	assert.Equal(t, domain.AuctionStatusActive, opened.Status)
	assert.Equal(t, domain.AuctionReasonAbandonedReauction, opened.Reason)
	assert.Equal(t, int64(700), opened.StartingPrice)
	assert.Equal(t, testNow.Add(testPolicy.ReauctionDuration), opened.EndsAt)

	logs := mem.OwnershipLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, domain.TransferReasonAutoReauction, logs[0].Reason)
}

func TestSweep_Abandonment_GraceNotElapsed(t *testing.T) {
	mem := store.NewMemStore()
	mem.PutTerritory(schema.Territory{
		ID:                 "fr-75",
		SovereigntyState:   domain.SovereigntyPermanent,
		OwnerID:            ptr("user-1"),
		LastActivityAt:     testNow.Add(-40 * 24 * time.Hour),
		AbandonedWarning:   true,
		AbandonedWarningAt: ptr(testNow.Add(-2 * 24 * time.Hour)),
	})
	sweep := newTestSweep(mem)

	stats, err := sweep.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.WarnedCount)
	assert.Zero(t, stats.AbandonedCount)

	territory, err := mem.GetTerritory(context.Background(), "fr-75")
	require.NoError(t, err)
	assert.Equal(t, domain.SovereigntyPermanent, territory.SovereigntyState)
}

func TestSweep_Abandonment_ActiveAuctionDefers(t *testing.T) {
	mem := store.NewMemStore()
	mem.PutAuction(schema.Auction{
		ID:          "auction-1",
		TerritoryID: "fr-75",
		Status:      domain.AuctionStatusActive,
		EndsAt:      testNow.Add(time.Hour),
	})
	mem.PutTerritory(schema.Territory{
		ID:               "fr-75",
		SovereigntyState: domain.SovereigntyPermanent,
		OwnerID:          ptr("user-1"),
		LastActivityAt:   testNow.Add(-40 * 24 * time.Hour),
		CurrentAuctionID: ptr("auction-1"),
	})
	sweep := newTestSweep(mem)

	stats, err := sweep.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.WarnedCount)

	territory, err := mem.GetTerritory(context.Background(), "fr-75")
	require.NoError(t, err)
	assert.False(t, territory.AbandonedWarning)
}

func TestSweep_LeaseExpiry_ClearsOwnerAndReauctions(t *testing.T) {
	mem := store.NewMemStore()
	mem.PutTerritory(schema.Territory{
		ID:               "de-11",
		SovereigntyState: domain.SovereigntyLeased,
		OwnerID:          ptr("user-3"),
		OwnerDisplayName: ptr("Otto"),
		LeaseKind:        ptr("monthly"),
		LeaseEndsAt:      ptr(testNow.Add(-time.Hour)),
		LastActivityAt:   testNow,
		AcquiredPrice:    0,
	})
	sweep := newTestSweep(mem)

	stats, err := sweep.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ExpiredLeaseCount)

	territory, err := mem.GetTerritory(context.Background(), "de-11")
	require.NoError(t, err)
	assert.Equal(t, domain.SovereigntyChallengeable, territory.SovereigntyState)
	assert.Nil(t, territory.OwnerID)
	assert.Nil(t, territory.OwnerDisplayName)
	assert.Nil(t, territory.LeaseKind)
	assert.Nil(t, territory.LeaseEndsAt)
	require.NotNil(t, territory.CurrentAuctionID)

	opened, err := mem.GetAuction(context.Background(), *territory.CurrentAuctionID)
	require.NoError(t, err)
	assert.Equal(t, domain.AuctionReasonLeaseExpired, opened.Reason)
	assert.Equal(t, testPolicy.DefaultFloorPrice, opened.StartingPrice)

	logs := mem.OwnershipLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, domain.TransferReasonLeaseExpired, logs[0].Reason)
	require.NotNil(t, logs[0].PreviousOwner)
	assert.Equal(t, "user-3", *logs[0].PreviousOwner)
}

func TestSweep_RunOnce_CountsAcrossPasses(t *testing.T) {
	mem := store.NewMemStore()
	mem.PutTerritory(schema.Territory{
		ID:               "fr-75",
		SovereigntyState: domain.SovereigntyProtected,
		OwnerID:          ptr("user-1"),
		ProtectionEndsAt: ptr(testNow.Add(-time.Hour)),
		LastActivityAt:   testNow,
	})
	mem.PutTerritory(schema.Territory{
		ID:               "jp-13",
		SovereigntyState: domain.SovereigntyPermanent,
		OwnerID:          ptr("user-2"),
		LastActivityAt:   testNow.Add(-31 * 24 * time.Hour),
	})
	mem.PutTerritory(schema.Territory{
		ID:               "de-11",
		SovereigntyState: domain.SovereigntyLeased,
		OwnerID:          ptr("user-3"),
		LeaseKind:        ptr("weekly"),
		LeaseEndsAt:      ptr(testNow.Add(-time.Hour)),
		LastActivityAt:   testNow,
	})
	sweep := newTestSweep(mem)

	stats, err := sweep.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.AutoPermanentCount)
	assert.Equal(t, 1, stats.WarnedCount)
	assert.Equal(t, 1, stats.ExpiredLeaseCount)
	assert.Zero(t, stats.AbandonedCount)
}
