// Package session wires the collaborators into per-user trading
// sessions. A Trader owns one user's feed, signal engine, risk governor
// and trade lifecycle; the Manager starts and stops Traders in response
// to commands on the Redis bus.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"options-scalping-bot/internal/commands"
	"options-scalping-bot/internal/database"
	"options-scalping-bot/internal/execution"
	"options-scalping-bot/internal/feed"
	"options-scalping-bot/internal/lifecycle"
	"options-scalping-bot/internal/oracle"
	"options-scalping-bot/internal/risk"
	"options-scalping-bot/internal/signal"
	"options-scalping-bot/internal/strike"
	"options-scalping-bot/internal/trade"
)

// contextRefreshInterval paces option-chain (OI/PCR) refreshes.
const contextRefreshInterval = 5 * time.Minute

// Settings is the per-user session configuration.
type Settings struct {
	InstrumentKey string  `json:"instrument_key"`
	Expiry        string  `json:"expiry"` // option chain expiry, YYYY-MM-DD
	LotSize       int     `json:"lot_size"`
	Capital       float64 `json:"capital"`
	Paper         bool    `json:"paper"`
	AccessToken   string  `json:"access_token,omitempty"`
}

// DefaultSettings returns a paper session on the bank index.
func DefaultSettings() Settings {
	return Settings{
		InstrumentKey: "NSE_INDEX|Nifty Bank",
		LotSize:       15,
		Capital:       25000,
		Paper:         true,
	}
}

// Trader runs one user's trading session: it consumes feed ticks,
// evaluates signals, enforces risk, places orders and drives the trade
// lifecycle. At most one trade is active at a time.
type Trader struct {
	userID   string
	settings Settings

	source    feed.Source
	engine    *signal.Engine
	governor  *risk.Governor
	validator oracle.Validator
	executor  execution.OrderExecutor
	chain     *feed.ChainClient
	store     *database.Store
	bus       *commands.Bus
	logger    zerolog.Logger

	mu     sync.Mutex
	active *lifecycle.ActiveTradeContext

	cancel context.CancelFunc
	done   chan struct{}
}

// Deps bundles the collaborators a Trader needs.
type Deps struct {
	Source    feed.Source
	Engine    *signal.Engine
	Governor  *risk.Governor
	Validator oracle.Validator
	Executor  execution.OrderExecutor
	Chain     *feed.ChainClient // nil disables context refresh
	Store     *database.Store   // nil disables persistence
	Bus       *commands.Bus     // nil disables event publishing
	Logger    zerolog.Logger
}

// NewTrader assembles a session for one user.
func NewTrader(userID string, settings Settings, deps Deps) *Trader {
	if deps.Validator == nil {
		deps.Validator = oracle.NoopValidator{}
	}
	return &Trader{
		userID:    userID,
		settings:  settings,
		source:    deps.Source,
		engine:    deps.Engine,
		governor:  deps.Governor,
		validator: deps.Validator,
		executor:  deps.Executor,
		chain:     deps.Chain,
		store:     deps.Store,
		bus:       deps.Bus,
		logger:    deps.Logger.With().Str("user_id", userID).Logger(),
		done:      make(chan struct{}),
	}
}

// Start launches the session goroutines.
func (t *Trader) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	t.cancel = cancel

	go func() {
		if err := t.source.Run(ctx); err != nil {
			t.logger.Error().Err(err).Msg("feed terminated")
		}
	}()
	if t.chain != nil {
		go t.refreshContextLoop(ctx)
	}
	go t.run(ctx)

	t.publishEvent(ctx, "SESSION_STARTED", "trading session started", t.settings)
	t.audit(ctx, "info", "session_started", t.settings)
}

// Stop cancels the session. An open trade's lifecycle state is left
// untouched: its stop order remains working at the broker, and the
// session does not flatten on shutdown.
func (t *Trader) Stop() {
	if t.cancel != nil {
		t.cancel()
	}
	<-t.done
}

// Done is closed when the session's tick loop exits, either on Stop or
// when the feed ends (replay reaching end of recording).
func (t *Trader) Done() <-chan struct{} {
	return t.done
}

// ActiveTrade returns the current open trade, or nil.
func (t *Trader) ActiveTrade() *trade.VirtualTrade {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active == nil {
		return nil
	}
	return t.active.Trade
}

// Status summarizes the session for the HTTP surface.
func (t *Trader) Status(ctx context.Context) map[string]any {
	stats, err := t.governor.Stats(ctx)
	status := map[string]any{
		"user_id":    t.userID,
		"instrument": t.settings.InstrumentKey,
		"paper":      t.settings.Paper,
		"indicators": t.engine.IndicatorSnapshot(t.settings.InstrumentKey),
	}
	if err == nil {
		status["risk"] = stats
	}
	if pivots, ok := t.engine.State(t.settings.InstrumentKey).Context.Pivots(); ok {
		status["pivots"] = pivots
	}
	if at := t.ActiveTrade(); at != nil {
		status["active_trade"] = at
	}
	return status
}

func (t *Trader) run(ctx context.Context) {
	defer close(t.done)
	for {
		select {
		case <-ctx.Done():
			return
		case tick, ok := <-t.source.Ticks():
			if !ok {
				t.logger.Info().Msg("feed closed, session idle")
				return
			}
			t.handleTick(ctx, tick)
		}
	}
}

// handleTick routes one market event: lifecycle management while a trade
// is open, signal evaluation otherwise.
func (t *Trader) handleTick(ctx context.Context, tk feed.Tick) {
	t.mu.Lock()
	active := t.active
	t.mu.Unlock()

	if active != nil {
		t.engine.Ingest(tk.Symbol, tk.Candle)
		t.manageTrade(ctx, active, tk)
		return
	}

	started := time.Now()
	result := t.engine.Evaluate(tk.Symbol, tk.Candle, tk.LTP, tk.EventTime)

	switch r := result.(type) {
	case signal.NoSignal:
	case signal.Ignored:
		t.logger.Debug().Int("score", r.Score).Str("reason", r.Reason).Msg("signal ignored")
	case signal.Rejected:
		t.logger.Debug().Str("reason", r.Reason).Msg("signal rejected")
	case signal.Accepted:
		t.onSignal(ctx, tk, r.Signal, time.Since(started))
	}
}

// onSignal runs the entry pipeline for an accepted signal: risk gate,
// advisory validation, strike selection, order placement, lifecycle arm.
func (t *Trader) onSignal(ctx context.Context, tk feed.Tick, sig signal.Signal, latency time.Duration) {
	if ok, reason := t.governor.CanTrade(ctx); !ok {
		t.logger.Info().Str("reason", reason).Msg("signal blocked by risk governor")
		t.audit(ctx, "warn", "signal_blocked", map[string]string{"reason": reason})
		return
	}

	snap := t.engine.IndicatorSnapshot(tk.Symbol)
	if verdict := t.validator.Validate(ctx, t.userID, sig, snap); !verdict.Approved {
		t.audit(ctx, "info", "signal_vetoed", verdict)
		return
	}

	contract := strike.Select(tk.Symbol, tk.LTP, sig.Direction, t.settings.Capital)

	order := execution.OrderRequest{
		InstrumentKey:   contract.Descriptor,
		TransactionType: execution.Buy,
		Quantity:        t.settings.LotSize,
		OrderType:       "MARKET",
		Tag:             sig.Setup,
	}
	res, err := t.executor.PlaceOrder(ctx, order)
	if err != nil {
		t.logger.Error().Err(err).Msg("entry order failed")
		t.audit(ctx, "error", "entry_failed", map[string]string{"error": err.Error()})
		return
	}

	// Protective stop order at the broker. If placement fails the stop is
	// managed locally: the lifecycle's in-memory stop stays authoritative
	// either way.
	stopRes, err := t.executor.PlaceOrder(ctx, execution.OrderRequest{
		InstrumentKey:   contract.Descriptor,
		TransactionType: execution.Sell,
		Quantity:        t.settings.LotSize,
		OrderType:       "SL-M",
		TriggerPrice:    sig.StopLoss,
		Tag:             "stop",
	})
	if err != nil {
		t.logger.Warn().Err(err).Msg("stop order placement failed, managing stop locally")
	}

	vt := trade.New(t.userID, contract.Descriptor, sig.Direction,
		sig.EntryPrice, sig.StopLoss, sig.Target, t.settings.LotSize)
	vt.Status = trade.StatusOpen
	vt.OrderID = res.OrderID

	active := lifecycle.NewActiveTradeContext(vt, sig.ATR, sig.StopLoss, sig.Target, res.OrderID)
	active.StopOrderID = stopRes.OrderID

	t.mu.Lock()
	t.active = active
	t.mu.Unlock()

	t.logger.Info().
		Str("trade_id", vt.ID).
		Str("contract", contract.Descriptor).
		Str("setup", sig.Setup).
		Float64("entry", sig.EntryPrice).
		Float64("stop", sig.StopLoss).
		Float64("target", sig.Target).
		Msg("trade opened")

	t.saveTrade(ctx, vt)
	t.saveSignal(ctx, tk.Symbol, sig, latency)
	t.publishEvent(ctx, "TRADE_OPENED", contract.Descriptor, vt)
}

// manageTrade advances the lifecycle state machine and executes the
// actions it emits. An exit left pending by a failed order is retried
// before anything else.
func (t *Trader) manageTrade(ctx context.Context, active *lifecycle.ActiveTradeContext, tk feed.Tick) {
	if active.Trade.Status == trade.StatusExitPending {
		t.closeTrade(ctx, active, lifecycle.Action{
			Type:   lifecycle.ActionExitAll,
			Price:  tk.LTP,
			Reason: lifecycle.ReasonStopLoss,
		})
		return
	}

	actions := active.Update(tk.LTP, tk.Candle.High, tk.Candle.Low)
	for _, action := range actions {
		switch action.Type {
		case lifecycle.ActionUpdateStop:
			active.Trade.StopLoss = action.Price
			if active.StopOrderID != "" {
				if err := t.executor.ModifyOrder(ctx, active.StopOrderID, action.Price, active.Trade.Quantity); err != nil {
					t.logger.Warn().Err(err).Float64("stop", action.Price).Msg("stop modification failed")
				}
			}
			t.logger.Info().Float64("stop", action.Price).Str("reason", action.Reason).Msg("stop moved")
			t.saveTrade(ctx, active.Trade)

		case lifecycle.ActionPartialExit:
			qty := int(float64(active.Trade.Quantity) * action.Fraction)
			if qty < 1 {
				qty = 1
			}
			req := execution.OrderRequest{
				InstrumentKey:   active.Trade.Symbol,
				TransactionType: execution.Sell,
				Quantity:        qty,
				OrderType:       "MARKET",
				Tag:             "partial",
			}
			if _, err := t.executor.PlaceOrder(ctx, req); err != nil {
				t.logger.Error().Err(err).Msg("partial exit failed")
				continue
			}
			active.Trade.BookPartial(action.Price, qty)
			if active.StopOrderID != "" {
				if err := t.executor.ModifyOrder(ctx, active.StopOrderID, active.CurrentSL, active.Trade.Quantity); err != nil {
					t.logger.Warn().Err(err).Msg("stop quantity adjustment failed")
				}
			}
			t.logger.Info().Int("qty", qty).Float64("price", action.Price).Float64("realized", active.Trade.PnL).Msg("partial booked")
			t.saveTrade(ctx, active.Trade)

		case lifecycle.ActionExitAll:
			t.closeTrade(ctx, active, action)
			return
		}
	}
}

// closeTrade flattens the position, records realized PnL with the risk
// governor and destroys the lifecycle context. A failed exit order keeps
// the context alive in EXIT_PENDING so the next tick retries; the
// session must not open a new trade while the broker position may still
// be live.
func (t *Trader) closeTrade(ctx context.Context, active *lifecycle.ActiveTradeContext, action lifecycle.Action) {
	if active.StopOrderID != "" {
		if err := t.executor.CancelOrder(ctx, active.StopOrderID); err != nil {
			t.logger.Warn().Err(err).Str("order_id", active.StopOrderID).Msg("stop order cancel failed")
		} else {
			active.StopOrderID = ""
		}
	}

	req := execution.OrderRequest{
		InstrumentKey:   active.Trade.Symbol,
		TransactionType: execution.Sell,
		Quantity:        active.Trade.Quantity,
		OrderType:       "MARKET",
		Tag:             "exit",
	}
	if _, err := t.executor.PlaceOrder(ctx, req); err != nil {
		t.logger.Error().Err(err).Msg("exit order failed, will retry next tick")
		active.Trade.Status = trade.StatusExitPending
		t.saveTrade(ctx, active.Trade)
		return
	}

	active.Trade.Close(action.Price, time.Now())
	t.logger.Info().
		Str("trade_id", active.Trade.ID).
		Str("reason", action.Reason).
		Float64("exit", action.Price).
		Float64("pnl", active.Trade.PnL).
		Msg("trade closed")

	if err := t.governor.RecordTrade(ctx, active.Trade.PnL); err != nil {
		t.logger.Error().Err(err).Msg("failed to record trade with risk governor")
	}

	t.saveTrade(ctx, active.Trade)
	t.publishEvent(ctx, "TRADE_CLOSED", action.Reason, active.Trade)

	t.mu.Lock()
	t.active = nil
	t.mu.Unlock()
}

// refreshContextLoop polls the option chain and feeds OI/PCR into the
// engine's market context. Fetch failures leave the previous snapshot in
// place; scoring degrades gracefully on stale context.
func (t *Trader) refreshContextLoop(ctx context.Context) {
	t.refreshContext(ctx)
	ticker := time.NewTicker(contextRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.refreshContext(ctx)
		}
	}
}

func (t *Trader) refreshContext(ctx context.Context) {
	snap, err := t.chain.FetchOI(ctx, t.settings.InstrumentKey, t.settings.Expiry)
	if err != nil {
		t.logger.Warn().Err(err).Msg("option chain refresh failed")
		return
	}
	t.engine.UpdateContext(t.settings.InstrumentKey, snap)
	t.logger.Debug().Float64("pcr", snap.PCR).Msg("market context refreshed")

	if t.store != nil {
		spot := 0.0
		if last, ok := t.engine.State(t.settings.InstrumentKey).Candles.Last(); ok {
			spot = last.Close
		}
		indicatorSnap := t.engine.IndicatorSnapshot(t.settings.InstrumentKey)
		if err := t.store.SaveSnapshot(ctx, t.userID, t.settings.InstrumentKey, snap.PCR, spot, indicatorSnap); err != nil {
			t.logger.Warn().Err(err).Msg("snapshot persistence failed")
		}
	}
}

func (t *Trader) saveTrade(ctx context.Context, vt *trade.VirtualTrade) {
	if t.store == nil {
		return
	}
	if err := t.store.SaveTrade(ctx, vt); err != nil {
		t.logger.Error().Err(err).Str("trade_id", vt.ID).Msg("trade persistence failed")
	}
}

func (t *Trader) saveSignal(ctx context.Context, instrument string, sig signal.Signal, latency time.Duration) {
	if t.store == nil {
		return
	}
	if err := t.store.SaveSignal(ctx, t.userID, instrument, sig, float64(latency.Milliseconds())); err != nil {
		t.logger.Error().Err(err).Msg("signal persistence failed")
	}
}

func (t *Trader) audit(ctx context.Context, level, event string, details any) {
	if t.store == nil {
		return
	}
	if err := t.store.SaveAudit(ctx, t.userID, level, event, details); err != nil {
		t.logger.Error().Err(err).Str("event", event).Msg("audit persistence failed")
	}
}

func (t *Trader) publishEvent(ctx context.Context, evType, message string, detail any) {
	if t.bus == nil {
		return
	}
	t.bus.PublishEvent(ctx, commands.Event{
		Type:    evType,
		UserID:  t.userID,
		Message: message,
		Detail:  detail,
	})
}
