package market

import (
	"sort"
	"sync"
	"time"
)

// Candle represents a single OHLCV candle.
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// IsBullish returns true if the candle closed above its open.
func (c Candle) IsBullish() bool {
	return c.Close > c.Open
}

// Body returns the absolute size of the candle body.
func (c Candle) Body() float64 {
	if c.Close > c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

// Range returns the high-low range of the candle.
func (c Candle) Range() float64 {
	return c.High - c.Low
}

// UpperWick returns the upper shadow length.
func (c Candle) UpperWick() float64 {
	if c.Close > c.Open {
		return c.High - c.Close
	}
	return c.High - c.Open
}

// LowerWick returns the lower shadow length.
func (c Candle) LowerWick() float64 {
	if c.Close > c.Open {
		return c.Open - c.Low
	}
	return c.Close - c.Low
}

// TypicalPrice returns (high + low + close) / 3, used for VWAP.
func (c Candle) TypicalPrice() float64 {
	return (c.High + c.Low + c.Close) / 3
}

// CandleStore holds a bounded, ordered, deduplicated window of candles
// for a single instrument. A candle arriving with a timestamp that is
// already present replaces the stored one (brokers re-send the forming
// minute candle as it updates).
type CandleStore struct {
	mu       sync.RWMutex
	candles  []Candle
	capacity int
}

// DefaultCandleCapacity bounds the in-memory window per instrument.
const DefaultCandleCapacity = 500

// NewCandleStore creates a candle store with the given capacity.
// A capacity <= 0 falls back to DefaultCandleCapacity.
func NewCandleStore(capacity int) *CandleStore {
	if capacity <= 0 {
		capacity = DefaultCandleCapacity
	}
	return &CandleStore{
		candles:  make([]Candle, 0, capacity),
		capacity: capacity,
	}
}

// Upsert inserts the candle in timestamp order, replacing any existing
// candle at the same timestamp, then trims the oldest entries beyond
// capacity.
func (s *CandleStore) Upsert(c Candle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.candles)
	idx := sort.Search(n, func(i int) bool {
		return !s.candles[i].Timestamp.Before(c.Timestamp)
	})

	if idx < n && s.candles[idx].Timestamp.Equal(c.Timestamp) {
		s.candles[idx] = c
	} else {
		s.candles = append(s.candles, Candle{})
		copy(s.candles[idx+1:], s.candles[idx:])
		s.candles[idx] = c
	}

	if len(s.candles) > s.capacity {
		overflow := len(s.candles) - s.capacity
		s.candles = append(s.candles[:0], s.candles[overflow:]...)
	}
}

// Len returns the number of stored candles.
func (s *CandleStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.candles)
}

// Snapshot returns a copy of the current window, oldest first.
func (s *CandleStore) Snapshot() []Candle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Candle, len(s.candles))
	copy(out, s.candles)
	return out
}

// Last returns the most recent candle, or false if the store is empty.
func (s *CandleStore) Last() (Candle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.candles) == 0 {
		return Candle{}, false
	}
	return s.candles[len(s.candles)-1], true
}
