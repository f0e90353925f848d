package lifecycle

import (
	"testing"

	"options-scalping-bot/internal/trade"
)

func newCallContext() *ActiveTradeContext {
	vt := &trade.VirtualTrade{
		ID:         "t1",
		Direction:  trade.Call,
		EntryPrice: 100,
		Quantity:   15,
		Status:     trade.StatusOpen,
	}
	return NewActiveTradeContext(vt, 10, 90, 115, "ORD1")
}

func newPutContext() *ActiveTradeContext {
	vt := &trade.VirtualTrade{
		ID:         "t2",
		Direction:  trade.Put,
		EntryPrice: 100,
		Quantity:   15,
		Status:     trade.StatusOpen,
	}
	return NewActiveTradeContext(vt, 10, 110, 85, "ORD2")
}

func TestLifecycleProgression(t *testing.T) {
	ctx := newCallContext()

	// +0.5 ATR: nothing arms yet.
	if actions := ctx.Update(105, 105, 104); len(actions) != 0 {
		t.Fatalf("at +0.5 ATR got %v, want no actions", actions)
	}

	// +1.0 ATR: break-even move to entry.
	actions := ctx.Update(110, 110, 109)
	if len(actions) != 1 || actions[0].Type != ActionUpdateStop || actions[0].Price != 100 {
		t.Fatalf("at +1.0 ATR got %v, want single stop move to 100", actions)
	}
	if !ctx.BreakEvenMoved {
		t.Error("break-even flag must be set")
	}

	// +1.2 ATR: partial booking of half the position.
	actions = ctx.Update(112, 112, 111)
	if len(actions) != 1 || actions[0].Type != ActionPartialExit || actions[0].Fraction != 0.5 {
		t.Fatalf("at +1.2 ATR got %v, want 50%% partial exit", actions)
	}

	// +1.5 ATR: trailing arms and ratchets the stop to the candle low.
	actions = ctx.Update(115, 115, 113)
	if len(actions) != 1 || actions[0].Type != ActionUpdateStop || actions[0].Price != 113 {
		t.Fatalf("at +1.5 ATR got %v, want trailing stop to 113", actions)
	}
	if !ctx.TrailingActive {
		t.Error("trailing flag must be set")
	}

	// Ratchet continues on a higher low.
	actions = ctx.Update(114, 114.5, 113.5)
	if len(actions) != 1 || actions[0].Price != 113.5 {
		t.Fatalf("on higher low got %v, want stop 113.5", actions)
	}

	// Price through the stop: terminal exit, nothing else fires.
	actions = ctx.Update(113, 113.4, 112.8)
	if len(actions) != 1 || actions[0].Type != ActionExitAll {
		t.Fatalf("on stop hit got %v, want single EXIT_ALL", actions)
	}
	if actions[0].Price != 113.5 || actions[0].Reason != ReasonStopLoss {
		t.Errorf("exit action = %+v, want price 113.5 reason STOP_LOSS", actions[0])
	}
}

func TestLifecycleGapThroughAllLevels(t *testing.T) {
	ctx := newCallContext()

	// Price gaps straight to +1.5 ATR: break-even, partial and trailing
	// all fire in one update, stop ends at the candle low.
	actions := ctx.Update(115, 115, 114)
	if len(actions) != 3 {
		t.Fatalf("gap update got %d actions %v, want 3", len(actions), actions)
	}
	if actions[0].Type != ActionUpdateStop || actions[0].Price != 100 {
		t.Errorf("first action = %+v, want break-even stop 100", actions[0])
	}
	if actions[1].Type != ActionPartialExit {
		t.Errorf("second action = %+v, want partial exit", actions[1])
	}
	if actions[2].Type != ActionUpdateStop || actions[2].Price != 114 {
		t.Errorf("third action = %+v, want trailing stop 114", actions[2])
	}
}

func TestLifecycleOneShotSteps(t *testing.T) {
	ctx := newCallContext()
	ctx.Update(115, 115, 114)

	// Same favorable zone again: no repeat break-even or partial; the
	// stop only moves if the low improves.
	actions := ctx.Update(114.8, 115, 114)
	if len(actions) != 0 {
		t.Fatalf("repeat update got %v, want no actions", actions)
	}
}

func TestLifecycleStopNeverRetreats(t *testing.T) {
	ctx := newCallContext()
	ctx.Update(115, 115, 113) // trailing armed, stop 113

	// Lower low while still above the stop: stop must hold.
	actions := ctx.Update(113.5, 114, 113.2)
	if len(actions) != 1 || actions[0].Price != 113.2 {
		t.Fatalf("got %v, want ratchet to 113.2", actions)
	}
	actions = ctx.Update(113.5, 114, 113.0)
	if len(actions) != 0 {
		t.Fatalf("adverse low got %v, want no stop move", actions)
	}
	if ctx.CurrentSL != 113.2 {
		t.Errorf("stop = %v, want unchanged 113.2", ctx.CurrentSL)
	}
}

func TestLifecyclePutSymmetry(t *testing.T) {
	ctx := newPutContext()

	// -1.0 ATR favorable (price falls to 90): break-even.
	actions := ctx.Update(90, 91, 90)
	if len(actions) != 1 || actions[0].Type != ActionUpdateStop || actions[0].Price != 100 {
		t.Fatalf("put break-even got %v, want stop to 100", actions)
	}

	// -1.5 ATR: partial plus trailing to the candle high.
	actions = ctx.Update(85, 86, 84)
	if len(actions) != 2 {
		t.Fatalf("put gap got %v, want partial + trailing", actions)
	}
	if actions[0].Type != ActionPartialExit {
		t.Errorf("first action = %+v, want partial", actions[0])
	}
	if actions[1].Type != ActionUpdateStop || actions[1].Price != 86 {
		t.Errorf("second action = %+v, want trailing stop 86", actions[1])
	}

	// Price back up through the stop: exit.
	actions = ctx.Update(87, 88, 86.5)
	if len(actions) != 1 || actions[0].Type != ActionExitAll || actions[0].Price != 86 {
		t.Fatalf("put stop hit got %v, want EXIT_ALL at 86", actions)
	}
}

func TestLifecycleMFEMonotone(t *testing.T) {
	ctx := newCallContext()
	ctx.Update(108, 108, 107)
	if ctx.HighestMFE != 8 {
		t.Fatalf("MFE = %v, want 8", ctx.HighestMFE)
	}
	ctx.Update(104, 105, 103)
	if ctx.HighestMFE != 8 {
		t.Errorf("MFE = %v, must not decrease on pullback", ctx.HighestMFE)
	}
}

func TestLifecycleImmediateStop(t *testing.T) {
	ctx := newCallContext()
	actions := ctx.Update(89, 95, 88)
	if len(actions) != 1 || actions[0].Type != ActionExitAll || actions[0].Price != 90 {
		t.Fatalf("got %v, want immediate EXIT_ALL at original stop 90", actions)
	}
}
