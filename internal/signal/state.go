package signal

import (
	"time"

	"options-scalping-bot/internal/indicators"
	"options-scalping-bot/internal/market"
)

// OpeningRange records the high/low established during the early-session
// window. Once Finalized it is frozen for the rest of the day.
type OpeningRange struct {
	High      float64
	Low       float64
	Date      time.Time // midnight of the session day
	Finalized bool
}

// cooldownLock prevents immediate re-entry after a signal fires.
type cooldownLock struct {
	locked   bool
	lockedAt time.Time
	setup    string
}

// MarketState bundles all per-instrument mutable state the engine owns.
// One MarketState exists per instrument per engine instance, so separate
// user sessions in the same process never share state.
type MarketState struct {
	Candles      *market.CandleStore
	VWAP         indicators.VWAPState
	Context      *market.Context
	OpeningRange OpeningRange
	lock         cooldownLock
}

func newMarketState(capacity int) *MarketState {
	return &MarketState{
		Candles: market.NewCandleStore(capacity),
		Context: market.NewContext(),
	}
}

// updateOpeningRange folds a candle into the opening-range record. A
// candle from a new day resets the record; candles inside the window
// widen it; the first candle at or past the window end freezes it.
func (s *MarketState) updateOpeningRange(c market.Candle, windowStart, windowEnd time.Duration) {
	day := c.Timestamp.Truncate(24 * time.Hour)
	if !day.Equal(s.OpeningRange.Date) {
		if !s.OpeningRange.Date.IsZero() {
			s.rolloverPivots(day)
		}
		s.OpeningRange = OpeningRange{Date: day}
	}
	if s.OpeningRange.Finalized {
		return
	}

	sinceMidnight := c.Timestamp.Sub(day)
	switch {
	case sinceMidnight < windowStart:
		// pre-open candle, ignore
	case sinceMidnight < windowEnd:
		if s.OpeningRange.High == 0 || c.High > s.OpeningRange.High {
			s.OpeningRange.High = c.High
		}
		if s.OpeningRange.Low == 0 || c.Low < s.OpeningRange.Low {
			s.OpeningRange.Low = c.Low
		}
	default:
		if s.OpeningRange.High > 0 {
			s.OpeningRange.Finalized = true
		}
	}
}

// rolloverPivots aggregates the stored candles from before the new day
// into a session candle and derives pivot levels from it. Best effort:
// with no prior-day candles in the window the old pivots stand.
func (s *MarketState) rolloverPivots(day time.Time) {
	var ref market.Candle
	found := false
	for _, c := range s.Candles.Snapshot() {
		if !c.Timestamp.Before(day) {
			continue
		}
		if !found {
			ref = c
			found = true
			continue
		}
		if c.High > ref.High {
			ref.High = c.High
		}
		if c.Low < ref.Low {
			ref.Low = c.Low
		}
		ref.Close = c.Close
	}
	if found {
		s.Context.SetPivots(market.ComputePivots(ref))
	}
}
