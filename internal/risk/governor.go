package risk

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
)

// Config holds the daily risk limits for one user.
type Config struct {
	MaxDailyTrades int     `json:"max_daily_trades"`
	MaxDailyLoss   float64 `json:"max_daily_loss"` // absolute currency amount
}

// DefaultConfig returns conservative daily limits.
func DefaultConfig() *Config {
	return &Config{
		MaxDailyTrades: 5,
		MaxDailyLoss:   2500,
	}
}

// Stats is a read-only view of the day's risk state.
type Stats struct {
	Trades int     `json:"trades"`
	PnL    float64 `json:"pnl"`
	Locked bool    `json:"locked"`
}

// Governor enforces per-user per-day trade count and loss limits with a
// sticky kill switch. Counters live in a shared CounterStore keyed by
// (user, date, metric), so limits hold across restarts and across
// concurrent sessions for the same user. Day rollover is implicit: a new
// calendar date selects fresh keys, which clears counters and the lock.
type Governor struct {
	userID string
	cfg    *Config
	store  CounterStore
	logger zerolog.Logger
	now    func() time.Time
}

// NewGovernor creates a risk governor for one user.
func NewGovernor(userID string, cfg *Config, store CounterStore, logger zerolog.Logger) *Governor {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Governor{
		userID: userID,
		cfg:    cfg,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock overrides the governor clock, used by tests for day rollover.
func (g *Governor) SetClock(now func() time.Time) {
	g.now = now
}

func (g *Governor) key(metric string) string {
	return fmt.Sprintf("risk:%s:%s:%s", g.userID, g.now().Format("2006-01-02"), metric)
}

// Stats fetches the current day's counters.
func (g *Governor) Stats(ctx context.Context) (Stats, error) {
	trades, err := g.store.GetInt(ctx, g.key("trades"))
	if err != nil {
		return Stats{}, fmt.Errorf("risk stats: %w", err)
	}
	pnl, err := g.store.GetFloat(ctx, g.key("pnl"))
	if err != nil {
		return Stats{}, fmt.Errorf("risk stats: %w", err)
	}
	locked, err := g.store.GetFlag(ctx, g.key("locked"))
	if err != nil {
		return Stats{}, fmt.Errorf("risk stats: %w", err)
	}
	return Stats{Trades: int(trades), PnL: pnl, Locked: locked}, nil
}

// CanTrade reports whether a new entry is allowed. Breaching the loss
// limit here sets the sticky lock as a side effect, so the block
// persists even if PnL later recovers intraday. When the counter store
// is unreachable the governor fails closed.
func (g *Governor) CanTrade(ctx context.Context) (bool, string) {
	stats, err := g.Stats(ctx)
	if err != nil {
		g.logger.Error().Err(err).Msg("risk counters unreachable, blocking entries")
		return false, "risk state unavailable"
	}

	if stats.Locked {
		return false, "kill switch active (locked)"
	}
	if stats.Trades >= g.cfg.MaxDailyTrades {
		return false, fmt.Sprintf("max trades reached (%d/%d)", stats.Trades, g.cfg.MaxDailyTrades)
	}
	if stats.PnL <= -g.cfg.MaxDailyLoss {
		g.Lock(ctx, "max loss hit")
		return false, fmt.Sprintf("max daily loss reached (%.2f), locked", stats.PnL)
	}
	return true, "OK"
}

// RecordTrade registers a closed trade's realized PnL, then re-checks
// the loss threshold and locks if breached. NaN/Inf values are dropped
// rather than poisoning the counters.
func (g *Governor) RecordTrade(ctx context.Context, pnl float64) error {
	if math.IsNaN(pnl) || math.IsInf(pnl, 0) {
		g.logger.Warn().Float64("pnl", pnl).Msg("discarding invalid pnl value")
		return nil
	}

	if _, err := g.store.IncrInt(ctx, g.key("trades"), 1); err != nil {
		return fmt.Errorf("record trade: %w", err)
	}
	total, err := g.store.IncrFloat(ctx, g.key("pnl"), pnl)
	if err != nil {
		return fmt.Errorf("record trade: %w", err)
	}

	if total <= -g.cfg.MaxDailyLoss {
		g.Lock(ctx, fmt.Sprintf("loss limit hit: %.2f", total))
	}
	return nil
}

// Lock force-enables the kill switch for the remainder of the day.
func (g *Governor) Lock(ctx context.Context, reason string) {
	if err := g.store.SetFlag(ctx, g.key("locked")); err != nil {
		g.logger.Error().Err(err).Msg("failed to persist kill switch")
		return
	}
	g.logger.Warn().Str("user", g.userID).Str("reason", reason).Msg("trading locked")
}
