package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"options-scalping-bot/internal/execution"
	"options-scalping-bot/internal/feed"
	"options-scalping-bot/internal/lifecycle"
	"options-scalping-bot/internal/market"
	"options-scalping-bot/internal/risk"
	"options-scalping-bot/internal/signal"
	"options-scalping-bot/internal/trade"
)

// recordingExecutor captures every broker call for assertions.
type recordingExecutor struct {
	placed    []execution.OrderRequest
	modified  []float64
	cancelled []string
}

func (r *recordingExecutor) PlaceOrder(_ context.Context, req execution.OrderRequest) (execution.OrderResult, error) {
	r.placed = append(r.placed, req)
	return execution.OrderResult{OrderID: "REC1", Simulated: true}, nil
}

func (r *recordingExecutor) ModifyOrder(_ context.Context, _ string, trigger float64, _ int) error {
	r.modified = append(r.modified, trigger)
	return nil
}

func (r *recordingExecutor) CancelOrder(_ context.Context, orderID string) error {
	r.cancelled = append(r.cancelled, orderID)
	return nil
}

// flakyExecutor fails the next failPlaces order placements, then behaves
// like the recorder.
type flakyExecutor struct {
	recordingExecutor
	failPlaces int
}

func (f *flakyExecutor) PlaceOrder(ctx context.Context, req execution.OrderRequest) (execution.OrderResult, error) {
	if f.failPlaces > 0 {
		f.failPlaces--
		return execution.OrderResult{}, errors.New("gateway timeout")
	}
	return f.recordingExecutor.PlaceOrder(ctx, req)
}

func testTrader(exec execution.OrderExecutor) (*Trader, *risk.Governor) {
	governor := risk.NewGovernor("u1", &risk.Config{MaxDailyTrades: 5, MaxDailyLoss: 1000},
		risk.NewMemoryCounterStore(), zerolog.Nop())
	trader := NewTrader("u1", DefaultSettings(), Deps{
		Engine:   signal.NewEngine(nil, zerolog.Nop()),
		Governor: governor,
		Executor: exec,
		Logger:   zerolog.Nop(),
	})
	return trader, governor
}

func tick(price, high, low float64) feed.Tick {
	ts := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	return feed.Tick{
		Symbol: "NSE_INDEX|Nifty Bank",
		Candle: market.Candle{Timestamp: ts, Open: price, High: high, Low: low, Close: price, Volume: 10},
		LTP:    price,
	}
}

func openTrade(t *Trader, atr float64) *lifecycle.ActiveTradeContext {
	vt := &trade.VirtualTrade{
		ID:         "t1",
		UserID:     "u1",
		Symbol:     "NIFTYBANK45000CE",
		Direction:  trade.Call,
		EntryPrice: 100,
		StopLoss:   90,
		Quantity:   15,
		Status:     trade.StatusOpen,
	}
	ctx := lifecycle.NewActiveTradeContext(vt, atr, 90, 115, "ORD1")
	ctx.StopOrderID = "SL1"
	t.mu.Lock()
	t.active = ctx
	t.mu.Unlock()
	return ctx
}

func TestManageTradeMovesStopAtBreakEven(t *testing.T) {
	exec := &recordingExecutor{}
	trader, _ := testTrader(exec)
	openTrade(trader, 10)

	trader.handleTick(context.Background(), tick(110, 110, 109))

	if len(exec.modified) != 1 || exec.modified[0] != 100 {
		t.Fatalf("modified = %v, want single stop move to entry 100", exec.modified)
	}
	at := trader.ActiveTrade()
	if at == nil || at.StopLoss != 100 {
		t.Fatalf("trade stop = %+v, want 100", at)
	}
}

func TestManageTradePartialReducesQuantity(t *testing.T) {
	exec := &recordingExecutor{}
	trader, _ := testTrader(exec)
	active := openTrade(trader, 10)
	active.BreakEvenMoved = true
	active.CurrentSL = 100

	trader.handleTick(context.Background(), tick(112, 112, 111))

	if len(exec.placed) != 1 {
		t.Fatalf("placed %d orders, want 1 partial sell", len(exec.placed))
	}
	sell := exec.placed[0]
	if sell.TransactionType != execution.Sell || sell.Quantity != 7 {
		t.Errorf("partial order = %+v, want SELL 7 (half of 15, rounded down)", sell)
	}
	at := trader.ActiveTrade()
	if at.Quantity != 8 {
		t.Errorf("remaining quantity = %d, want 8", at.Quantity)
	}
	// The booked leg's profit is realized immediately: +12 points x 7.
	if at.PnL != 84 {
		t.Errorf("realized pnl after partial = %v, want 84", at.PnL)
	}
	// The working stop order shrinks to the remaining quantity.
	if len(exec.modified) != 1 || exec.modified[0] != 100 {
		t.Errorf("stop adjustments = %v, want one at the current stop 100", exec.modified)
	}
}

func TestPartialThenStopRecordsCombinedPnL(t *testing.T) {
	exec := &recordingExecutor{}
	trader, governor := testTrader(exec)
	active := openTrade(trader, 10)
	active.BreakEvenMoved = true
	active.CurrentSL = 100

	trader.handleTick(context.Background(), tick(112, 112, 111)) // partial: +12 x 7 = 84

	active.CurrentSL = 105 // trailing lifted the stop
	trader.handleTick(context.Background(), tick(104, 106, 103))

	if trader.ActiveTrade() != nil {
		t.Fatal("stop hit must close the trade")
	}
	stats, err := governor.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	// Partial leg 84 plus the final leg: +5 points x 8 remaining = 40.
	if stats.PnL != 124 {
		t.Errorf("recorded pnl = %v, want 124 including the partial leg", stats.PnL)
	}
	if stats.Trades != 1 {
		t.Errorf("recorded trades = %d, want 1", stats.Trades)
	}
}

func TestManageTradeStopHitClosesAndRecords(t *testing.T) {
	exec := &recordingExecutor{}
	trader, governor := testTrader(exec)
	active := openTrade(trader, 10)
	active.BreakEvenMoved = true
	active.PartialBooked = true
	active.CurrentSL = 105 // trailing already lifted the stop above entry

	trader.handleTick(context.Background(), tick(104, 106, 103))

	if trader.ActiveTrade() != nil {
		t.Fatal("stop hit must destroy the active trade context")
	}
	if len(exec.placed) != 1 || exec.placed[0].TransactionType != execution.Sell {
		t.Fatalf("placed = %v, want one exit sell", exec.placed)
	}
	if len(exec.cancelled) != 1 || exec.cancelled[0] != "SL1" {
		t.Errorf("cancelled = %v, want the working stop order SL1", exec.cancelled)
	}

	stats, err := governor.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Trades != 1 {
		t.Errorf("recorded trades = %d, want 1", stats.Trades)
	}
	// Exit at the stop 105, entry 100, qty 15: +75 points.
	if stats.PnL != 75 {
		t.Errorf("recorded pnl = %v, want 75", stats.PnL)
	}
}

func TestExitFailureRetriesNextTick(t *testing.T) {
	exec := &flakyExecutor{failPlaces: 1}
	trader, governor := testTrader(exec)
	openTrade(trader, 10)

	// Stop hit, but the exit order fails at the broker.
	trader.handleTick(context.Background(), tick(89, 90, 88))

	at := trader.ActiveTrade()
	if at == nil {
		t.Fatal("failed exit must keep the trade context for retry")
	}
	if at.Status != trade.StatusExitPending {
		t.Fatalf("status = %s, want EXIT_PENDING", at.Status)
	}
	stats, _ := governor.Stats(context.Background())
	if stats.Trades != 0 {
		t.Fatal("nothing recorded until the position is actually flat")
	}

	// Next tick retries the exit at the current price.
	trader.handleTick(context.Background(), tick(89, 90, 88))

	if trader.ActiveTrade() != nil {
		t.Fatal("retried exit must destroy the trade context")
	}
	stats, err := governor.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Trades != 1 {
		t.Errorf("recorded trades = %d, want 1", stats.Trades)
	}
	// Retried exit fills at the tick price 89: -11 points x 15.
	if stats.PnL != -165 {
		t.Errorf("recorded pnl = %v, want -165", stats.PnL)
	}
}

func TestOnSignalPlacesProtectiveStop(t *testing.T) {
	exec := &recordingExecutor{}
	trader, _ := testTrader(exec)

	sig := signal.Signal{
		Direction:  trade.Call,
		Setup:      "MOMENTUM",
		Score:      6,
		EntryPrice: 100,
		StopLoss:   95,
		Target:     107.5,
		ATR:        5,
	}
	trader.onSignal(context.Background(), tick(100, 101, 99), sig, 0)

	if len(exec.placed) != 2 {
		t.Fatalf("placed %d orders, want entry plus protective stop", len(exec.placed))
	}
	entry, stop := exec.placed[0], exec.placed[1]
	if entry.TransactionType != execution.Buy || entry.OrderType != "MARKET" || entry.Quantity != 15 {
		t.Errorf("entry order = %+v, want BUY MARKET 15", entry)
	}
	if stop.TransactionType != execution.Sell || stop.OrderType != "SL-M" || stop.TriggerPrice != 95 {
		t.Errorf("stop order = %+v, want SELL SL-M triggered at 95", stop)
	}

	trader.mu.Lock()
	active := trader.active
	trader.mu.Unlock()
	if active == nil || active.StopOrderID == "" {
		t.Fatal("lifecycle context must carry the working stop order id")
	}
}

func TestHandleTickEvaluatesWhenFlat(t *testing.T) {
	exec := &recordingExecutor{}
	trader, _ := testTrader(exec)

	// Stale tick: engine rejects, nothing is placed.
	tk := tick(100, 101, 99)
	tk.EventTime = time.Now().Add(-5 * time.Minute)
	trader.handleTick(context.Background(), tk)

	if len(exec.placed) != 0 {
		t.Fatalf("flat session placed orders on a rejected tick: %v", exec.placed)
	}
	if trader.ActiveTrade() != nil {
		t.Fatal("no trade should be open")
	}
}

func TestManagerStartStop(t *testing.T) {
	m := NewManager(ManagerDeps{
		CounterStore: risk.NewMemoryCounterStore(),
		Logger:       zerolog.Nop(),
	})

	settings := DefaultSettings()
	if err := m.Start(context.Background(), "u1", settings); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Start(context.Background(), "u1", settings); err == nil {
		t.Fatal("double start must fail")
	}
	if users := m.ActiveUsers(); len(users) != 1 || users[0] != "u1" {
		t.Fatalf("active users = %v, want [u1]", users)
	}

	m.Stop("u1")
	if users := m.ActiveUsers(); len(users) != 0 {
		t.Fatalf("active users after stop = %v, want none", users)
	}
	// Stopping an already-stopped session is a no-op.
	m.Stop("u1")
}

func TestManagerRejectsLiveWithoutToken(t *testing.T) {
	m := NewManager(ManagerDeps{
		CounterStore: risk.NewMemoryCounterStore(),
		Logger:       zerolog.Nop(),
	})
	settings := DefaultSettings()
	settings.Paper = false
	if err := m.Start(context.Background(), "u1", settings); err == nil {
		t.Fatal("live session without an access token must fail")
	}
}
