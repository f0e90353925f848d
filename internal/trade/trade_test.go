package trade

import (
	"testing"
	"time"
)

func TestNewTrade(t *testing.T) {
	vt := New("u1", "NIFTYBANK45000CE", Call, 100, 90, 115, 15)
	if vt.ID == "" {
		t.Error("trade must get a fresh ID")
	}
	if vt.Status != StatusSubmitted {
		t.Errorf("status = %s, want SUBMITTED", vt.Status)
	}
	if vt.EntryTime.IsZero() {
		t.Error("entry time must be set")
	}
}

func TestCloseCallPnL(t *testing.T) {
	vt := New("u1", "X", Call, 100, 90, 115, 15)
	vt.Close(110, time.Now())

	if vt.Status != StatusClosed {
		t.Errorf("status = %s, want CLOSED", vt.Status)
	}
	if vt.PnL != 150 { // +10 points x 15
		t.Errorf("pnl = %v, want 150", vt.PnL)
	}
}

func TestClosePutPnL(t *testing.T) {
	vt := New("u1", "X", Put, 100, 110, 85, 15)
	vt.Close(92, time.Now())
	if vt.PnL != 120 { // +8 points x 15 for a short
		t.Errorf("pnl = %v, want 120", vt.PnL)
	}

	losing := New("u1", "X", Put, 100, 110, 85, 15)
	losing.Close(106, time.Now())
	if losing.PnL != -90 {
		t.Errorf("pnl = %v, want -90", losing.PnL)
	}
}

func TestPartialThenCloseAccumulatesPnL(t *testing.T) {
	vt := New("u1", "X", Call, 100, 90, 115, 15)

	vt.BookPartial(112, 7)
	if vt.PnL != 84 { // +12 points x 7
		t.Fatalf("pnl after partial = %v, want 84", vt.PnL)
	}
	if vt.Quantity != 8 {
		t.Fatalf("quantity after partial = %d, want 8", vt.Quantity)
	}
	if vt.Status != StatusPartiallyFilled {
		t.Errorf("status = %s, want PARTIALLY_FILLED", vt.Status)
	}

	vt.Close(105, time.Now())
	if vt.PnL != 124 { // 84 booked + 5 points x 8 remaining
		t.Errorf("final pnl = %v, want 124 including the partial leg", vt.PnL)
	}
}

func TestTerminalStatuses(t *testing.T) {
	terminal := []Status{StatusClosed, StatusRejected, StatusCancelled, StatusError}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s must be terminal", s)
		}
	}
	open := []Status{StatusPendingEntry, StatusSubmitted, StatusOpen, StatusPartiallyFilled, StatusExitPending}
	for _, s := range open {
		if s.IsTerminal() {
			t.Errorf("%s must not be terminal", s)
		}
	}
}
