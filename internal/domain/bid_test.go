package domain_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelatlas/conquest-engine/internal/domain"
)

func TestBidTime_UnmarshalJSON_RFC3339(t *testing.T) {
	var bt domain.BidTime
	err := json.Unmarshal([]byte(`"2026-03-01T12:30:00Z"`), &bt)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC), bt.Time)
}

func TestBidTime_UnmarshalJSON_EpochSeconds(t *testing.T) {
	var bt domain.BidTime
	err := json.Unmarshal([]byte(`1767225600`), &bt)
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1767225600, 0).UTC(), bt.Time)
}

func TestBidTime_UnmarshalJSON_EpochMillis(t *testing.T) {
	var bt domain.BidTime
	err := json.Unmarshal([]byte(`1767225600500`), &bt)
	require.NoError(t, err)
	assert.Equal(t, time.UnixMilli(1767225600500).UTC(), bt.Time)
}

func TestBidTime_UnmarshalJSON_SecondsObject(t *testing.T) {
	var bt domain.BidTime
	err := json.Unmarshal([]byte(`{"seconds": 1767225600, "nanoseconds": 500}`), &bt)
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1767225600, 500).UTC(), bt.Time)

	var underscored domain.BidTime
	err = json.Unmarshal([]byte(`{"_seconds": 1767225600}`), &underscored)
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1767225600, 0).UTC(), underscored.Time)
}

func TestBidTime_UnmarshalJSON_Unsupported(t *testing.T) {
	var bt domain.BidTime
	assert.Error(t, json.Unmarshal([]byte(`true`), &bt))
	assert.Error(t, json.Unmarshal([]byte(`"not-a-time"`), &bt))
	assert.Error(t, json.Unmarshal([]byte(`{"nanoseconds": 5}`), &bt))
}

func TestBidTime_MarshalJSON_Normalizes(t *testing.T) {
	var bt domain.BidTime
	require.NoError(t, json.Unmarshal([]byte(`1767225600`), &bt))

	out, err := json.Marshal(bt)
	require.NoError(t, err)
	assert.Equal(t, `"2026-01-01T00:00:00Z"`, string(out))
}

func TestHighestBid(t *testing.T) {
	history := []domain.BidEntry{
		{BidderID: "user-1", Amount: 100},
		{BidderID: "user-2", Amount: 350},
		{BidderID: "user-1", Amount: 200},
	}

	highest, ok := domain.HighestBid(history)
	require.True(t, ok)
	assert.Equal(t, "user-2", highest.BidderID)
	assert.Equal(t, int64(350), highest.Amount)
}

func TestHighestBid_Empty(t *testing.T) {
	highest, ok := domain.HighestBid(nil)
	assert.False(t, ok)
	assert.Nil(t, highest)
}
