package auction_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelatlas/conquest-engine/internal/adapter"
	"github.com/pixelatlas/conquest-engine/internal/auction"
	"github.com/pixelatlas/conquest-engine/internal/domain"
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

var testPolicy = auction.Policy{
	ReauctionDuration: 24 * time.Hour,
	DefaultFloorPrice: 100,
	SweepBatchSize:    50,
}

func newTestManager(mem *store.MemStore) *auction.Manager {
	return auction.NewManager(mem, adapter.NewFakeClock(testNow), testPolicy)
}

func TestManager_StartAuction(t *testing.T) {
	mem := store.NewMemStore()
	mem.PutTerritory(schema.Territory{
		ID:               "jp-13",
		SovereigntyState: domain.SovereigntyAvailable,
	})
	mgr := newTestManager(mem)

	opened, err := mgr.StartAuction(context.Background(), auction.StartRequest{
		TerritoryID:   "jp-13",
		StartingPrice: 250,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, opened.ID)
	assert.Equal(t, domain.AuctionStatusActive, opened.Status)
	assert.Equal(t, domain.AuctionReasonManual, opened.Reason)
	assert.Equal(t, int64(250), opened.StartingPrice)
	assert.Equal(t, testNow.Add(testPolicy.ReauctionDuration), opened.EndsAt)

	territory, err := mem.GetTerritory(context.Background(), "jp-13")
	require.NoError(t, err)
	require.NotNil(t, territory.CurrentAuctionID)
	assert.Equal(t, opened.ID, *territory.CurrentAuctionID)
	assert.Equal(t, domain.SovereigntyChallengeable, territory.SovereigntyState)
}

func TestManager_StartAuction_DefaultsToFloorPrice(t *testing.T) {
	mem := store.NewMemStore()
	mem.PutTerritory(schema.Territory{
		ID:               "jp-13",
		SovereigntyState: domain.SovereigntyAvailable,
	})
	mgr := newTestManager(mem)

	opened, err := mgr.StartAuction(context.Background(), auction.StartRequest{TerritoryID: "jp-13"})
	require.NoError(t, err)
	assert.Equal(t, testPolicy.DefaultFloorPrice, opened.StartingPrice)
}

func TestManager_StartAuction_UsesAcquiredPrice(t *testing.T) {
	mem := store.NewMemStore()
	mem.PutTerritory(schema.Territory{
		ID:               "jp-13",
		SovereigntyState: domain.SovereigntyPermanent,
		AcquiredPrice:    900,
	})
	mgr := newTestManager(mem)

	opened, err := mgr.StartAuction(context.Background(), auction.StartRequest{TerritoryID: "jp-13"})
	require.NoError(t, err)
	assert.Equal(t, int64(900), opened.StartingPrice)
}

func TestManager_StartAuction_Validation(t *testing.T) {
	mgr := newTestManager(store.NewMemStore())

	_, err := mgr.StartAuction(context.Background(), auction.StartRequest{})
	assert.True(t, domain.IsValidation(err))

	_, err = mgr.StartAuction(context.Background(), auction.StartRequest{TerritoryID: "jp-13", StartingPrice: -1})
	assert.True(t, domain.IsValidation(err))
}

func TestManager_StartAuction_TerritoryNotFound(t *testing.T) {
	mgr := newTestManager(store.NewMemStore())

	_, err := mgr.StartAuction(context.Background(), auction.StartRequest{TerritoryID: "xx-00"})
	assert.ErrorIs(t, err, domain.ErrTerritoryNotFound)
}

func TestManager_StartAuction_ActiveAuctionExists(t *testing.T) {
	mem := store.NewMemStore()
	mem.PutTerritory(schema.Territory{
		ID:               "jp-13",
		SovereigntyState: domain.SovereigntyAvailable,
	})
	mgr := newTestManager(mem)

	_, err := mgr.StartAuction(context.Background(), auction.StartRequest{TerritoryID: "jp-13"})
	require.NoError(t, err)

	_, err = mgr.StartAuction(context.Background(), auction.StartRequest{TerritoryID: "jp-13"})
	assert.ErrorIs(t, err, domain.ErrActiveAuctionExists)
}
