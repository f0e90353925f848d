package lifecycle

import (
	"options-scalping-bot/internal/trade"
)

// ActionType labels the lifecycle actions the engine can emit.
type ActionType string

const (
	ActionUpdateStop  ActionType = "UPDATE_STOP"
	ActionPartialExit ActionType = "PARTIAL_EXIT"
	ActionExitAll     ActionType = "EXIT_ALL"
)

// Exit reasons carried on EXIT_ALL actions.
const (
	ReasonStopLoss = "STOP_LOSS"
)

// Action is one instruction for the execution collaborator.
type Action struct {
	Type     ActionType `json:"type"`
	Price    float64    `json:"price"`
	Fraction float64    `json:"fraction,omitempty"` // for PARTIAL_EXIT
	Reason   string     `json:"reason,omitempty"`
}

// ATR multiples at which lifecycle steps arm.
const (
	breakEvenATR = 1.0
	partialATR   = 1.2
	trailingATR  = 1.5
)

// partialFraction is the share of the position booked at the partial
// level.
const partialFraction = 0.5

// ActiveTradeContext is the per-trade state machine. It is created only
// after an entry fill is confirmed and destroyed on full exit; at most
// one exists per (user, instrument).
type ActiveTradeContext struct {
	Trade      *trade.VirtualTrade
	ATR        float64
	EntryPrice float64
	CurrentSL  float64
	Target     float64

	// Maximum favorable excursion in points, monotone non-decreasing.
	HighestMFE float64

	// Idempotence flags for the one-shot steps.
	BreakEvenMoved bool
	PartialBooked  bool
	TrailingActive bool

	EntryOrderID string
	// StopOrderID is the working broker stop order, empty when the stop
	// is managed locally only.
	StopOrderID string
}

// NewActiveTradeContext arms the lifecycle state machine for a filled
// trade.
func NewActiveTradeContext(t *trade.VirtualTrade, atr, stopLoss, target float64, entryOrderID string) *ActiveTradeContext {
	return &ActiveTradeContext{
		Trade:        t,
		ATR:          atr,
		EntryPrice:   t.EntryPrice,
		CurrentSL:    stopLoss,
		Target:       target,
		EntryOrderID: entryOrderID,
	}
}

// isLong reports whether favorable movement is upward.
func (c *ActiveTradeContext) isLong() bool {
	return c.Trade.Direction == trade.Call
}

// stopHit reports whether price has traded through the current stop.
func (c *ActiveTradeContext) stopHit(price float64) bool {
	if c.isLong() {
		return price <= c.CurrentSL
	}
	return price >= c.CurrentSL
}

// Update advances the state machine with the latest price and the
// current candle's high/low. It returns the actions to execute: a
// stop-loss exit is exclusive and terminal, while break-even, partial
// and trailing may all fire in the same update if price gapped through
// several levels. Break-even and partial are guarded so they emit
// exactly once for the life of the trade.
func (c *ActiveTradeContext) Update(price, high, low float64) []Action {
	if c.stopHit(price) {
		return []Action{{Type: ActionExitAll, Price: c.CurrentSL, Reason: ReasonStopLoss}}
	}

	mfe := price - c.EntryPrice
	if !c.isLong() {
		mfe = c.EntryPrice - price
	}
	if mfe > c.HighestMFE {
		c.HighestMFE = mfe
	}

	var actions []Action

	if !c.BreakEvenMoved && mfe >= breakEvenATR*c.ATR {
		c.CurrentSL = c.EntryPrice
		c.BreakEvenMoved = true
		actions = append(actions, Action{Type: ActionUpdateStop, Price: c.CurrentSL, Reason: "break-even"})
	}

	if !c.PartialBooked && mfe >= partialATR*c.ATR {
		c.PartialBooked = true
		actions = append(actions, Action{Type: ActionPartialExit, Price: price, Fraction: partialFraction, Reason: "partial booking"})
	}

	if mfe >= trailingATR*c.ATR {
		c.TrailingActive = true
	}

	// Ratchet: the stop only ever moves in the trade's favor.
	if c.TrailingActive {
		newSL := c.CurrentSL
		if c.isLong() {
			if low > c.CurrentSL {
				newSL = low
			}
		} else {
			if high < c.CurrentSL {
				newSL = high
			}
		}
		if newSL != c.CurrentSL {
			c.CurrentSL = newSL
			actions = append(actions, Action{Type: ActionUpdateStop, Price: c.CurrentSL, Reason: "trailing"})
		}
	}

	return actions
}
