package market

import (
	"sync"
	"time"
)

// OISnapshot is one observation of option open interest for an instrument.
type OISnapshot struct {
	Timestamp time.Time `json:"timestamp"`
	PCR       float64   `json:"pcr"`
	CallOI    float64   `json:"call_oi"`
	PutOI     float64   `json:"put_oi"`
}

// PivotLevels holds classic floor-trader pivot points derived from the
// previous session's high/low/close.
type PivotLevels struct {
	PP float64 `json:"pp"`
	R1 float64 `json:"r1"`
	R2 float64 `json:"r2"`
	S1 float64 `json:"s1"`
	S2 float64 `json:"s2"`
}

// ComputePivots derives standard pivot levels from a reference candle,
// typically the previous day's session candle.
func ComputePivots(ref Candle) PivotLevels {
	pp := (ref.High + ref.Low + ref.Close) / 3
	return PivotLevels{
		PP: pp,
		R1: 2*pp - ref.Low,
		S1: 2*pp - ref.High,
		R2: pp + (ref.High - ref.Low),
		S2: pp - (ref.High - ref.Low),
	}
}

// oiHistoryCap bounds the OI ring; at one observation every few minutes
// this covers a full trading session.
const oiHistoryCap = 80

// Context holds slowly-changing external market context for one
// instrument: put/call ratio, open-interest history and pivot levels.
// It is written only by the periodic refresher, never by the tick path.
type Context struct {
	mu        sync.RWMutex
	pcr       float64
	oiHistory []OISnapshot
	pivots    PivotLevels
	hasPivots bool
}

// NewContext creates an empty market context.
func NewContext() *Context {
	return &Context{
		oiHistory: make([]OISnapshot, 0, oiHistoryCap),
	}
}

// UpdateOI records a new open-interest observation and the derived PCR.
func (c *Context) UpdateOI(snap OISnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pcr = snap.PCR
	c.oiHistory = append(c.oiHistory, snap)
	if len(c.oiHistory) > oiHistoryCap {
		c.oiHistory = append(c.oiHistory[:0], c.oiHistory[len(c.oiHistory)-oiHistoryCap:]...)
	}
}

// SetPivots stores pivot levels for the current session.
func (c *Context) SetPivots(p PivotLevels) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pivots = p
	c.hasPivots = true
}

// PCR returns the most recent put/call ratio (0 when never updated).
func (c *Context) PCR() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pcr
}

// OIHistory returns a copy of the recorded OI observations, oldest first.
func (c *Context) OIHistory() []OISnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]OISnapshot, len(c.oiHistory))
	copy(out, c.oiHistory)
	return out
}

// Pivots returns the stored pivot levels and whether they have been set.
func (c *Context) Pivots() (PivotLevels, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pivots, c.hasPivots
}
