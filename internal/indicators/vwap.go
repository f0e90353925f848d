package indicators

import (
	"sync"
	"time"

	"options-scalping-bot/internal/market"
)

// VWAPState accumulates cumulative typical-price volume since local day
// start. It resets itself when a candle from a later calendar date
// arrives, so a long-running session rolls over cleanly at midnight.
// The tick path writes while the status and snapshot paths read, so the
// accumulator carries its own lock.
type VWAPState struct {
	mu        sync.Mutex
	cumPV     float64
	cumVolume float64
	resetDate time.Time // midnight of the day being accumulated
}

// Update absorbs one candle into the accumulator, resetting first if the
// candle belongs to a later calendar day.
func (v *VWAPState) Update(c market.Candle) {
	v.mu.Lock()
	defer v.mu.Unlock()

	day := c.Timestamp.Truncate(24 * time.Hour)
	if day.After(v.resetDate) {
		v.cumPV = 0
		v.cumVolume = 0
		v.resetDate = day
	}
	v.cumPV += c.TypicalPrice() * c.Volume
	v.cumVolume += c.Volume
}

// Value returns the current VWAP, or 0 when no volume has accumulated.
func (v *VWAPState) Value() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cumVolume == 0 {
		return 0
	}
	return v.cumPV / v.cumVolume
}
