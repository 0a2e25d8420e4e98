package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// BidEntry is one entry in an auction's ordered bid history
type BidEntry struct {
	BidderID   string  `json:"bidder_id"`
	BidderName string  `json:"bidder_name,omitempty"`
	Amount     int64   `json:"amount"`
	Time       BidTime `json:"time"`
}

// BidTime is a timestamp that tolerates the representations bid writers have
// historically produced: RFC3339 strings, epoch seconds, epoch milliseconds,
// and {seconds, nanoseconds} objects. It always marshals back to RFC3339.
// Normalizing here keeps the lifecycle engine free of representation checks.
type BidTime struct {
	time.Time
}

// epochMillisCutoff separates epoch-second from epoch-millisecond numbers.
// Any value above it (year ~33658 in seconds) is treated as milliseconds.
const epochMillisCutoff = 1e12

// UnmarshalJSON decodes any of the supported timestamp shapes
func (t *BidTime) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case string:
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return fmt.Errorf("failed to parse bid time %q: %w", v, err)
		}
		t.Time = parsed
		return nil

	case float64:
		if v >= epochMillisCutoff {
			t.Time = time.UnixMilli(int64(v)).UTC()
		} else {
			t.Time = time.Unix(int64(v), 0).UTC()
		}
		return nil

	case map[string]interface{}:
		sec, ok := numberField(v, "seconds", "_seconds")
		if !ok {
			return fmt.Errorf("bid time object missing seconds field")
		}
		nsec, _ := numberField(v, "nanoseconds", "_nanoseconds")
		t.Time = time.Unix(int64(sec), int64(nsec)).UTC()
		return nil

	default:
		return fmt.Errorf("unsupported bid time shape %T", raw)
	}
}

// MarshalJSON encodes the normalized form
func (t BidTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

func numberField(m map[string]interface{}, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := m[k].(float64); ok {
			return v, true
		}
	}
	return 0, false
}

// HighestBid returns the maximum bid over the history and the entry that
// placed it. Settlement trusts this derivation, not a cached current price,
// to tolerate write races between bid submission and settlement.
func HighestBid(history []BidEntry) (*BidEntry, bool) {
	var best *BidEntry
	for i := range history {
		if best == nil || history[i].Amount > best.Amount {
			best = &history[i]
		}
	}
	return best, best != nil
}
