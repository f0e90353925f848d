package patterns

import (
	"testing"
	"time"

	"options-scalping-bot/internal/market"
)

func mkCandle(o, h, l, c, v float64) market.Candle {
	return market.Candle{Timestamp: time.Now(), Open: o, High: h, Low: l, Close: c, Volume: v}
}

func TestIsStrongCandle(t *testing.T) {
	tests := []struct {
		name    string
		candle  market.Candle
		wantOK  bool
		wantDir int
	}{
		{"strong bull", mkCandle(100, 110.5, 99.5, 110, 10), true, 1},
		{"strong bear", mkCandle(110, 110.5, 99.5, 100, 10), true, -1},
		{"small body", mkCandle(100, 105, 95, 101, 10), false, 0},
		{"bull closing mid-range", mkCandle(100, 112, 99, 106, 10), false, 0},
		{"zero range", mkCandle(100, 100, 100, 100, 10), false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, dir := IsStrongCandle(tt.candle)
			if ok != tt.wantOK || dir != tt.wantDir {
				t.Errorf("IsStrongCandle = (%v, %d), want (%v, %d)", ok, dir, tt.wantOK, tt.wantDir)
			}
		})
	}
}

func TestIsHammer(t *testing.T) {
	hammer := mkCandle(100, 100.6, 98, 100.5, 10)
	if !IsHammer(hammer) {
		t.Error("expected hammer: long lower wick, small body, tiny upper wick")
	}
	noWick := mkCandle(100, 101, 99.9, 100.9, 10)
	if IsHammer(noWick) {
		t.Error("candle without a long lower wick should not be a hammer")
	}
}

func TestIsShootingStar(t *testing.T) {
	star := mkCandle(100.5, 102.5, 99.9, 100, 10)
	if !IsShootingStar(star) {
		t.Error("expected shooting star: long upper wick, small body, tiny lower wick")
	}
	if IsShootingStar(mkCandle(100, 100.6, 98, 100.5, 10)) {
		t.Error("hammer shape should not be a shooting star")
	}
}

func TestEngulfing(t *testing.T) {
	bearPrev := mkCandle(102, 102.5, 99.8, 100, 10)
	bullCur := mkCandle(99.9, 103, 99.7, 102.5, 10)
	if !IsBullishEngulfing(bearPrev, bullCur) {
		t.Error("expected bullish engulfing")
	}
	if IsBearishEngulfing(bearPrev, bullCur) {
		t.Error("bullish pair flagged as bearish engulfing")
	}

	bullPrev := mkCandle(100, 102.5, 99.8, 102, 10)
	bearCur := mkCandle(102.2, 102.6, 99.5, 99.8, 10)
	if !IsBearishEngulfing(bullPrev, bearCur) {
		t.Error("expected bearish engulfing")
	}

	// Same-color bodies never engulf.
	if IsBullishEngulfing(bullPrev, bullCur) {
		t.Error("two bullish candles should not form a bullish engulfing")
	}
}

func TestIsInsideBar(t *testing.T) {
	prev := mkCandle(100, 105, 95, 102, 10)
	inside := mkCandle(101, 103, 99, 100, 10)
	if !IsInsideBar(prev, inside) {
		t.Error("expected inside bar")
	}
	outside := mkCandle(101, 106, 99, 100, 10)
	if IsInsideBar(prev, outside) {
		t.Error("candle with higher high should not be an inside bar")
	}
}

func TestHasVolumeSupport(t *testing.T) {
	// Cold start: too few candles defaults to supported.
	short := []market.Candle{mkCandle(100, 101, 99, 100, 5)}
	if !HasVolumeSupport(short) {
		t.Error("short history should default to supported")
	}

	var candles []market.Candle
	for i := 0; i < 10; i++ {
		candles = append(candles, mkCandle(100, 101, 99, 100, 10))
	}

	spike := append(append([]market.Candle{}, candles...), mkCandle(100, 101, 99, 100, 25))
	if !HasVolumeSupport(spike) {
		t.Error("2.5x average volume should be supported")
	}

	flat := append(append([]market.Candle{}, candles...), mkCandle(100, 101, 99, 100, 10))
	if HasVolumeSupport(flat) {
		t.Error("average volume should not count as support")
	}
}

func TestDetectPrefersTwoCandlePatterns(t *testing.T) {
	// The current candle alone is a strong bull, but paired with the
	// previous bearish candle it is an engulfing; Detect must prefer the
	// two-candle read.
	prev := mkCandle(102, 102.5, 99.8, 100, 10)
	cur := mkCandle(99.9, 103, 99.7, 102.8, 10)
	if got := Detect([]market.Candle{prev, cur}); got != BullishEngulfing {
		t.Errorf("Detect = %v, want BULLISH_ENGULFING", got)
	}
}

func TestDetectSingleCandleFallbacks(t *testing.T) {
	neutralPrev := mkCandle(100, 106.2, 99, 106, 10)
	tests := []struct {
		name string
		cur  market.Candle
		want Pattern
	}{
		{"hammer", mkCandle(106, 106.6, 104, 106.5, 10), Hammer},
		{"strong bull", mkCandle(106, 116.5, 105.5, 116, 10), StrongBull},
		{"nothing", mkCandle(106, 111, 101, 107, 10), None},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect([]market.Candle{neutralPrev, tt.cur}); got != tt.want {
				t.Errorf("Detect = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetectEmpty(t *testing.T) {
	if got := Detect(nil); got != None {
		t.Errorf("Detect(nil) = %v, want NONE", got)
	}
}

func TestPatternDirection(t *testing.T) {
	if StrongBull.Direction() != 1 || Hammer.Direction() != 1 || BullishEngulfing.Direction() != 1 {
		t.Error("bullish patterns must have direction +1")
	}
	if StrongBear.Direction() != -1 || ShootingStar.Direction() != -1 || BearishEngulfing.Direction() != -1 {
		t.Error("bearish patterns must have direction -1")
	}
	if InsideBar.Direction() != 0 || None.Direction() != 0 {
		t.Error("neutral patterns must have direction 0")
	}
}
