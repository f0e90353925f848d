package trade

import (
	"time"

	"github.com/google/uuid"
)

// Direction is the option side a trade takes.
type Direction string

const (
	Call Direction = "CALL"
	Put  Direction = "PUT"
)

// Status tracks a trade through its lifecycle.
type Status string

const (
	StatusPendingEntry    Status = "PENDING_ENTRY"
	StatusSubmitted       Status = "SUBMITTED"
	StatusOpen            Status = "OPEN"
	StatusPartiallyFilled Status = "PARTIALLY_FILLED"
	StatusExitPending     Status = "EXIT_PENDING"
	StatusClosed          Status = "CLOSED"
	StatusRejected        Status = "REJECTED"
	StatusCancelled       Status = "CANCELLED"
	StatusError           Status = "ERROR"
)

// IsTerminal reports whether the status ends the trade's lifecycle.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusClosed, StatusRejected, StatusCancelled, StatusError:
		return true
	}
	return false
}

// VirtualTrade is the persisted record of one trade, paper or live.
type VirtualTrade struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Symbol      string    `json:"symbol"`
	Direction   Direction `json:"direction"`
	EntryPrice  float64   `json:"entry_price"`
	StopLoss    float64   `json:"stop_loss"`
	TargetPrice float64   `json:"target_price"`
	Quantity    int       `json:"quantity"`
	Status      Status    `json:"status"`
	EntryTime   time.Time `json:"entry_time"`
	ExitTime    time.Time `json:"exit_time,omitempty"`
	ExitPrice   float64   `json:"exit_price,omitempty"`
	PnL         float64   `json:"pnl,omitempty"`
	OrderID     string    `json:"order_id,omitempty"`
}

// New creates a trade in SUBMITTED state with a fresh ID.
func New(userID, symbol string, dir Direction, entry, stop, target float64, qty int) *VirtualTrade {
	return &VirtualTrade{
		ID:          uuid.New().String(),
		UserID:      userID,
		Symbol:      symbol,
		Direction:   dir,
		EntryPrice:  entry,
		StopLoss:    stop,
		TargetPrice: target,
		Quantity:    qty,
		Status:      StatusSubmitted,
		EntryTime:   time.Now(),
	}
}

// BookPartial realizes the filled leg of a partial exit: the leg's
// points-times-quantity is added to PnL and the open quantity shrinks.
func (t *VirtualTrade) BookPartial(price float64, qty int) {
	points := price - t.EntryPrice
	if t.Direction == Put {
		points = t.EntryPrice - price
	}
	t.PnL += points * float64(qty)
	t.Quantity -= qty
	t.Status = StatusPartiallyFilled
}

// Close marks the trade closed at the given price and adds the final
// leg's PnL, so totals include any partial exits booked earlier.
func (t *VirtualTrade) Close(exitPrice float64, at time.Time) {
	points := exitPrice - t.EntryPrice
	if t.Direction == Put {
		points = t.EntryPrice - exitPrice
	}
	t.ExitPrice = exitPrice
	t.ExitTime = at
	t.PnL += points * float64(t.Quantity)
	t.Status = StatusClosed
}
