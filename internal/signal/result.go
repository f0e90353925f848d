package signal

import (
	"time"

	"options-scalping-bot/internal/trade"
)

// Signal is a fully-sized trade candidate that passed every gate.
type Signal struct {
	Direction  trade.Direction `json:"direction"`
	Setup      string          `json:"setup"`
	Score      int             `json:"score"`
	EntryPrice float64         `json:"entry_price"`
	StopLoss   float64         `json:"stop_loss"`
	Target     float64         `json:"target"`
	ATR        float64         `json:"atr"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Result is the outcome of evaluating one tick. Callers switch on the
// concrete type instead of probing maps: NoSignal (no candidate),
// Ignored (candidate scored below threshold), Rejected (a gate failed)
// or Accepted (tradeable signal).
type Result interface {
	resultKind()
}

// NoSignal means no trigger matched on this tick.
type NoSignal struct{}

// Ignored carries a candidate that scored below the minimum, kept
// distinct from NoSignal for observability.
type Ignored struct {
	Score  int
	Reason string
}

// Rejected means a gate short-circuited the pipeline.
type Rejected struct {
	Reason string
}

// Accepted wraps a signal that cleared every gate.
type Accepted struct {
	Signal Signal
}

func (NoSignal) resultKind() {}
func (Ignored) resultKind()  {}
func (Rejected) resultKind() {}
func (Accepted) resultKind() {}
