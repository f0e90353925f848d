package signal

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"options-scalping-bot/internal/indicators"
	"options-scalping-bot/internal/market"
	"options-scalping-bot/internal/patterns"
	"options-scalping-bot/internal/trade"
)

// Config holds signal engine tuning. Time-of-day fields are minutes
// since midnight in exchange-local time.
type Config struct {
	StalenessSeconds int     `json:"staleness_seconds"` // max candle age at evaluation
	MarketOpenMin    int     `json:"market_open_min"`   // session open (09:15)
	ORBEndMin        int     `json:"orb_end_min"`       // opening range freezes here (09:30)
	MorningStartMin  int     `json:"morning_start_min"` // first tradeable minute (09:25)
	MorningEndMin    int     `json:"morning_end_min"`   // midday chop begins (11:30)
	AfternoonStart   int     `json:"afternoon_start_min"`
	CutoffMin        int     `json:"cutoff_min"` // no new entries after this
	MinADX           float64 `json:"min_adx"`
	MinScore         int     `json:"min_score"`
	CooldownMinutes  int     `json:"cooldown_minutes"`
	StopATRMult      float64 `json:"stop_atr_mult"`
	TargetATRMult    float64 `json:"target_atr_mult"`
	MinATRFraction   float64 `json:"min_atr_fraction"` // volatility floor as fraction of price
	EMAFastPeriod    int     `json:"ema_fast_period"`
	EMASlowPeriod    int     `json:"ema_slow_period"`
	RSIPeriod        int     `json:"rsi_period"`
	ADXPeriod        int     `json:"adx_period"`
	ATRPeriod        int     `json:"atr_period"`
	CandleCapacity   int     `json:"candle_capacity"`
}

// DefaultConfig returns the engine defaults for NSE index scalping.
func DefaultConfig() *Config {
	return &Config{
		StalenessSeconds: 65,
		MarketOpenMin:    9*60 + 15,
		ORBEndMin:        9*60 + 30,
		MorningStartMin:  9*60 + 25,
		MorningEndMin:    11*60 + 30,
		AfternoonStart:   13*60 + 15,
		CutoffMin:        14*60 + 45,
		MinADX:           20,
		MinScore:         5,
		CooldownMinutes:  5,
		StopATRMult:      1.0,
		TargetATRMult:    1.5,
		MinATRFraction:   0.0005,
		EMAFastPeriod:    9,
		EMASlowPeriod:    20,
		RSIPeriod:        14,
		ADXPeriod:        14,
		ATRPeriod:        14,
		CandleCapacity:   market.DefaultCandleCapacity,
	}
}

// Snapshot exposes the indicator values computed for one evaluation,
// persisted alongside emitted signals for audit.
type Snapshot struct {
	EMAFast    float64          `json:"ema_fast"`
	EMASlow    float64          `json:"ema_slow"`
	RSI        float64          `json:"rsi"`
	ADX        float64          `json:"adx"`
	ATR        float64          `json:"atr"`
	VWAP       float64          `json:"vwap"`
	Bias       indicators.Bias  `json:"bias"`
	SuperTrend indicators.Bias  `json:"supertrend"`
	Pattern    patterns.Pattern `json:"pattern"`
}

// Engine evaluates ticks into signal results. One engine belongs to one
// user session; all per-instrument state lives inside it, so sessions in
// the same process never share mutable state.
type Engine struct {
	cfg    *Config
	mu     sync.Mutex
	states map[string]*MarketState
	logger zerolog.Logger
	now    func() time.Time
}

// NewEngine creates a signal engine with the given config (nil for
// defaults).
func NewEngine(cfg *Config, logger zerolog.Logger) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Engine{
		cfg:    cfg,
		states: make(map[string]*MarketState),
		logger: logger,
		now:    time.Now,
	}
}

// SetClock overrides the engine clock, used by replay and tests.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// State returns (creating if needed) the per-instrument state.
func (e *Engine) State(symbol string) *MarketState {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.states[symbol]
	if !ok {
		st = newMarketState(e.cfg.CandleCapacity)
		e.states[symbol] = st
	}
	return st
}

// UpdateContext feeds a fresh open-interest observation into the
// instrument's market context. Called by the periodic refresher only.
func (e *Engine) UpdateContext(symbol string, snap market.OISnapshot) {
	e.State(symbol).Context.UpdateOI(snap)
}

// Ingest folds a candle into the instrument state without running the
// decision pipeline. Sessions use it to keep candles, VWAP and the
// opening range current while a trade is open.
func (e *Engine) Ingest(symbol string, c market.Candle) *MarketState {
	st := e.State(symbol)
	st.Candles.Upsert(c)
	st.VWAP.Update(c)
	st.updateOpeningRange(c,
		time.Duration(e.cfg.MarketOpenMin)*time.Minute,
		time.Duration(e.cfg.ORBEndMin)*time.Minute)
	return st
}

// Evaluate runs the full decision pipeline for one tick, short-circuiting
// at the first failing gate. Data-quality problems come back as NoSignal,
// gate failures as Rejected, low-scoring candidates as Ignored.
func (e *Engine) Evaluate(symbol string, c market.Candle, ltp float64, eventTime time.Time) Result {
	// Staleness gate runs before any state mutation or indicator work.
	if age := e.now().Sub(eventTime); age > time.Duration(e.cfg.StalenessSeconds)*time.Second {
		return Rejected{Reason: fmt.Sprintf("stale tick: age %s exceeds %ds bound", age.Round(time.Second), e.cfg.StalenessSeconds)}
	}

	st := e.Ingest(symbol, c)

	// Cooldown lock.
	if st.lock.locked {
		if e.now().Sub(st.lock.lockedAt) < time.Duration(e.cfg.CooldownMinutes)*time.Minute {
			return Rejected{Reason: fmt.Sprintf("cooldown active since %s (%s)", st.lock.lockedAt.Format("15:04:05"), st.lock.setup)}
		}
		st.lock = cooldownLock{}
	}

	// Time-of-day gate.
	if reason, ok := e.checkTradingWindow(c.Timestamp); !ok {
		return Rejected{Reason: reason}
	}

	candles := st.Candles.Snapshot()
	if len(candles) < 5 {
		return NoSignal{}
	}

	snap := e.computeSnapshot(candles, &st.VWAP)

	// Regime gate: below the ADX minimum the market is chop.
	if snap.ADX < e.cfg.MinADX {
		return Rejected{Reason: fmt.Sprintf("chop regime: ADX %.1f below %.1f", snap.ADX, e.cfg.MinADX)}
	}

	dir, setup := e.detectTrigger(st, candles, snap)
	if dir == 0 {
		return NoSignal{}
	}

	score := e.scoreConfluence(st, candles, snap, dir)
	if score < e.cfg.MinScore {
		return Ignored{Score: score, Reason: fmt.Sprintf("%s scored %d below minimum %d", setup, score, e.cfg.MinScore)}
	}

	// Risk sizing: refuse to size stops on dead volatility.
	if snap.ATR <= ltp*e.cfg.MinATRFraction {
		return Rejected{Reason: fmt.Sprintf("volatility too low: ATR %.2f", snap.ATR)}
	}

	direction := trade.Call
	stop := ltp - snap.ATR*e.cfg.StopATRMult
	target := ltp + snap.ATR*e.cfg.TargetATRMult
	if dir < 0 {
		direction = trade.Put
		stop = ltp + snap.ATR*e.cfg.StopATRMult
		target = ltp - snap.ATR*e.cfg.TargetATRMult
	}

	st.lock = cooldownLock{locked: true, lockedAt: e.now(), setup: setup}

	sig := Signal{
		Direction:  direction,
		Setup:      setup,
		Score:      score,
		EntryPrice: ltp,
		StopLoss:   stop,
		Target:     target,
		ATR:        snap.ATR,
		Timestamp:  c.Timestamp,
	}
	e.logger.Info().
		Str("symbol", symbol).
		Str("direction", string(direction)).
		Str("setup", setup).
		Int("score", score).
		Float64("entry", ltp).
		Float64("stop", stop).
		Float64("target", target).
		Msg("signal accepted")
	return Accepted{Signal: sig}
}

// checkTradingWindow enforces the morning/afternoon windows: the opening
// settlement minutes, the midday chop window and post-cutoff minutes are
// all untradeable.
func (e *Engine) checkTradingWindow(ts time.Time) (string, bool) {
	mins := ts.Hour()*60 + ts.Minute()
	switch {
	case mins < e.cfg.MorningStartMin:
		return "before tradeable window (opening settlement)", false
	case mins < e.cfg.MorningEndMin:
		return "", true
	case mins < e.cfg.AfternoonStart:
		return "midday chop window", false
	case mins < e.cfg.CutoffMin:
		return "", true
	default:
		return "past entry cutoff", false
	}
}

func (e *Engine) computeSnapshot(candles []market.Candle, vwap *indicators.VWAPState) Snapshot {
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	return Snapshot{
		EMAFast:    indicators.EMA(closes, e.cfg.EMAFastPeriod),
		EMASlow:    indicators.EMA(closes, e.cfg.EMASlowPeriod),
		RSI:        indicators.RSI(closes, e.cfg.RSIPeriod),
		ADX:        indicators.ADX(candles, e.cfg.ADXPeriod),
		ATR:        indicators.ATR(candles, e.cfg.ATRPeriod),
		VWAP:       vwap.Value(),
		Bias:       indicators.TrendBias(candles, 10),
		SuperTrend: indicators.SuperTrend(candles, 10, 3).Trend,
		Pattern:    patterns.Detect(candles),
	}
}

// IndicatorSnapshot computes the current snapshot for an instrument
// without running the decision pipeline, for persistence and status.
func (e *Engine) IndicatorSnapshot(symbol string) Snapshot {
	st := e.State(symbol)
	candles := st.Candles.Snapshot()
	if len(candles) == 0 {
		return Snapshot{Bias: indicators.BiasNeutral, SuperTrend: indicators.BiasNeutral}
	}
	return e.computeSnapshot(candles, &st.VWAP)
}

// detectTrigger evaluates entry triggers in priority order and returns
// the provisional direction (+1 CALL, -1 PUT) and setup tag. The first
// matching rule wins.
func (e *Engine) detectTrigger(st *MarketState, candles []market.Candle, snap Snapshot) (int, string) {
	cur := candles[len(candles)-1]
	volumeOK := patterns.HasVolumeSupport(candles)

	// 1. Opening-range breakout: price beyond the frozen range with
	// volume support and a fresh cross from the prior candle.
	if st.OpeningRange.Finalized && len(candles) >= 2 && volumeOK {
		prev := candles[len(candles)-2]
		if cur.Close > st.OpeningRange.High && prev.Close <= st.OpeningRange.High {
			return 1, "ORB_BREAKOUT"
		}
		if cur.Close < st.OpeningRange.Low && prev.Close >= st.OpeningRange.Low {
			return -1, "ORB_BREAKDOWN"
		}
	}

	// 2. Trend-pullback reversal: a reversal pattern printing within one
	// ATR of the fast EMA.
	if pDir := snap.Pattern.Direction(); pDir != 0 {
		dist := cur.Close - snap.EMAFast
		if dist < 0 {
			dist = -dist
		}
		if dist <= snap.ATR {
			if pDir > 0 {
				return 1, "TREND_PULLBACK"
			}
			return -1, "TREND_PULLBACK"
		}
	}

	// 3. Momentum continuation: strong candle aligned with EMA stack and
	// VWAP side.
	if ok, dir := patterns.IsStrongCandle(cur); ok {
		if dir > 0 && snap.EMAFast > snap.EMASlow && (snap.VWAP == 0 || cur.Close > snap.VWAP) {
			return 1, "MOMENTUM"
		}
		if dir < 0 && snap.EMAFast < snap.EMASlow && (snap.VWAP == 0 || cur.Close < snap.VWAP) {
			return -1, "MOMENTUM"
		}
	}

	return 0, ""
}

// scoreConfluence adds up independent confirmations for the provisional
// direction. PCR extremes are treated as contrarian: a put-heavy book
// (PCR >= 1.2) supports calls, a call-heavy book (PCR <= 0.8) supports
// puts.
func (e *Engine) scoreConfluence(st *MarketState, candles []market.Candle, snap Snapshot, dir int) int {
	score := 0

	// Secondary-timeframe alignment.
	if (dir > 0 && snap.Bias == indicators.BiasBullish) ||
		(dir < 0 && snap.Bias == indicators.BiasBearish) {
		score += 2
	}

	// RSI favoring the trade direction.
	if (dir > 0 && snap.RSI >= 50) || (dir < 0 && snap.RSI <= 50) {
		score++
	}

	// Pattern confirmation.
	if pDir := snap.Pattern.Direction(); pDir == dir {
		score++
	}

	// Volume support.
	if patterns.HasVolumeSupport(candles) {
		score++
	}

	// Open-interest sentiment: aligned +1, directly contradicted -2.
	switch oiBias := OISentiment(st.Context.OIHistory()); {
	case (dir > 0 && oiBias == indicators.BiasBullish) || (dir < 0 && oiBias == indicators.BiasBearish):
		score++
	case (dir > 0 && oiBias == indicators.BiasBearish) || (dir < 0 && oiBias == indicators.BiasBullish):
		score -= 2
	}

	// PCR extremity (contrarian convention).
	pcr := st.Context.PCR()
	if (dir > 0 && pcr >= 1.2) || (dir < 0 && pcr > 0 && pcr <= 0.8) {
		score += 2
	}

	return score
}

// OISentiment derives a directional bias from the PCR trajectory: a
// rising put/call ratio means puts are being written underneath (bullish),
// a falling one the opposite. Needs at least three observations.
func OISentiment(history []market.OISnapshot) indicators.Bias {
	if len(history) < 3 {
		return indicators.BiasNeutral
	}
	last := history[len(history)-3:]
	if last[2].PCR > last[1].PCR && last[1].PCR > last[0].PCR {
		return indicators.BiasBullish
	}
	if last[2].PCR < last[1].PCR && last[1].PCR < last[0].PCR {
		return indicators.BiasBearish
	}
	return indicators.BiasNeutral
}
