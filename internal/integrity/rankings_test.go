package integrity_test

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelatlas/conquest-engine/internal/adapter"
	"github.com/pixelatlas/conquest-engine/internal/domain"
	"github.com/pixelatlas/conquest-engine/internal/integrity"
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

var testRankingPolicy = integrity.RankingPolicy{
	ValueJumpFactor:    100,
	TerritoryJumpLimit: 50,
}

func newTestRankings(mem *store.MemStore) *integrity.Rankings {
	return integrity.NewRankings(mem, adapter.NewFakeClock(testNow), testRankingPolicy)
}

func ptr[T any](v T) *T { return &v }

func seedHolding(mem *store.MemStore, id, owner, country, continent string, price, pixels int64) {
	mem.PutTerritory(schema.Territory{
		ID:               id,
		SovereigntyState: domain.SovereigntyPermanent,
		OwnerID:          &owner,
		OwnerDisplayName: ptr("Owner " + owner),
		AcquiredPrice:    price,
		CountryCode:      country,
		Continent:        continent,
		PixelCount:       pixels,
		LastActivityAt:   testNow,
	})
}

func TestRankings_RunOnce_CommitsFreshRanking(t *testing.T) {
	mem := store.NewMemStore()
	seedHolding(mem, "fr-75", "user-1", "fr", "europe", 500, 1000)
	seedHolding(mem, "fr-13", "user-1", "fr", "europe", 300, 400)
	seedHolding(mem, "jp-13", "user-1", "jp", "asia", 200, 600)
	rankings := newTestRankings(mem)

	result, err := rankings.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Committed)
	assert.Zero(t, result.Quarantined)
	assert.Zero(t, result.Errors)

	ranking, err := mem.GetRanking(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, ranking)
	assert.Equal(t, 3, ranking.TerritoryCount)
	assert.Equal(t, int64(1000), ranking.TotalValue)
	assert.Equal(t, int64(2000), ranking.PixelCount)

	var countries []string
	require.NoError(t, json.Unmarshal(ranking.Countries, &countries))
	assert.ElementsMatch(t, []string{"fr", "jp"}, countries)

	var continents []string
	require.NoError(t, json.Unmarshal(ranking.Continents, &continents))
	assert.ElementsMatch(t, []string{"europe", "asia"}, continents)

	// 1000 value + 3*100 territories + 2*250 countries + 2*1000 continents + 2000*0.1 pixels
	assert.InDelta(t, 1000+300+500+2000+200, ranking.HegemonyScore, 0.001)
	assert.Equal(t, testNow, ranking.UpdatedAt)
}

func TestRankings_RunOnce_QuarantinesValueJump(t *testing.T) {
	mem := store.NewMemStore()
	seedHolding(mem, "fr-75", "user-1", "fr", "europe", 5000, 0)
	mem.PutRanking(schema.Ranking{
		UserID:         "user-1",
		TerritoryCount: 1,
		TotalValue:     10,
	})
	rankings := newTestRankings(mem)

	result, err := rankings.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Committed)
	assert.Equal(t, 1, result.Quarantined)

	anomalies := mem.Anomalies()
	require.Len(t, anomalies, 1)
	assert.Equal(t, "user-1", anomalies[0].UserID)
	assert.Equal(t, "total_value", anomalies[0].Metric)
	assert.Equal(t, int64(10), anomalies[0].PreviousValue)
	assert.Equal(t, int64(5000), anomalies[0].ProposedValue)
	assert.False(t, anomalies[0].Reviewed)

	// The stored ranking was not touched
	ranking, err := mem.GetRanking(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), ranking.TotalValue)
}

func TestRankings_RunOnce_QuarantinesTerritoryJump(t *testing.T) {
	mem := store.NewMemStore()
	for i := 0; i < 52; i++ {
		seedHolding(mem, territoryID(i), "user-1", "fr", "europe", 100, 0)
	}
	mem.PutRanking(schema.Ranking{
		UserID:         "user-1",
		TerritoryCount: 1,
		TotalValue:     100000,
	})
	rankings := newTestRankings(mem)

	result, err := rankings.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Quarantined)

	anomalies := mem.Anomalies()
	require.Len(t, anomalies, 1)
	assert.Equal(t, "territory_count", anomalies[0].Metric)
	assert.Equal(t, int64(1), anomalies[0].PreviousValue)
	assert.Equal(t, int64(52), anomalies[0].ProposedValue)
}

func TestRankings_RunOnce_QuarantineDoesNotBlockOthers(t *testing.T) {
	mem := store.NewMemStore()
	seedHolding(mem, "fr-75", "user-1", "fr", "europe", 5000, 0)
	mem.PutRanking(schema.Ranking{UserID: "user-1", TerritoryCount: 1, TotalValue: 10})
	seedHolding(mem, "jp-13", "user-2", "jp", "asia", 120, 0)
	mem.PutRanking(schema.Ranking{UserID: "user-2", TerritoryCount: 1, TotalValue: 100})
	rankings := newTestRankings(mem)

	result, err := rankings.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Committed)
	assert.Equal(t, 1, result.Quarantined)

	ranking, err := mem.GetRanking(context.Background(), "user-2")
	require.NoError(t, err)
	assert.Equal(t, int64(120), ranking.TotalValue)
}

func TestRankings_RunOnce_ZeroBaselineCommits(t *testing.T) {
	mem := store.NewMemStore()
	seedHolding(mem, "fr-75", "user-1", "fr", "europe", 5000, 0)
	// A zero-value baseline has no meaningful ratio to compare against
	mem.PutRanking(schema.Ranking{UserID: "user-1", TerritoryCount: 1, TotalValue: 0})
	rankings := newTestRankings(mem)

	result, err := rankings.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Committed)
	assert.Zero(t, result.Quarantined)
}

func territoryID(i int) string {
	return "fr-" + string(rune('a'+i/26)) + string(rune('a'+i%26))
}
