package patterns

import (
	"options-scalping-bot/internal/market"
)

// Pattern identifies a candlestick pattern on the most recent 1-2 candles.
type Pattern string

const (
	None             Pattern = "NONE"
	StrongBull       Pattern = "STRONG_BULL"
	StrongBear       Pattern = "STRONG_BEAR"
	Hammer           Pattern = "HAMMER"
	ShootingStar     Pattern = "SHOOTING_STAR"
	BullishEngulfing Pattern = "BULLISH_ENGULFING"
	BearishEngulfing Pattern = "BEARISH_ENGULFING"
	InsideBar        Pattern = "INSIDE_BAR"
)

// Direction returns the directional bias of the pattern: 1 bullish,
// -1 bearish, 0 neutral.
func (p Pattern) Direction() int {
	switch p {
	case StrongBull, Hammer, BullishEngulfing:
		return 1
	case StrongBear, ShootingStar, BearishEngulfing:
		return -1
	default:
		return 0
	}
}

// IsStrongCandle reports whether the candle is a strong directional
// candle: body at least 60% of range with the close in the top (bull) or
// bottom (bear) quarter of the range. Zero-range candles never qualify.
func IsStrongCandle(c market.Candle) (bool, int) {
	r := c.Range()
	if r <= 0 {
		return false, 0
	}
	if c.Body() < r*0.6 {
		return false, 0
	}
	closePos := (c.Close - c.Low) / r
	if c.IsBullish() && closePos >= 0.75 {
		return true, 1
	}
	if !c.IsBullish() && closePos <= 0.25 {
		return true, -1
	}
	return false, 0
}

// IsHammer reports a hammer: long lower wick (>= 2x body), negligible
// upper wick, small body relative to range.
func IsHammer(c market.Candle) bool {
	r := c.Range()
	if r <= 0 {
		return false
	}
	body := c.Body()
	return c.LowerWick() >= body*2 &&
		c.UpperWick() <= body*0.3 &&
		body <= r*0.3
}

// IsShootingStar reports a shooting star: long upper wick (>= 2x body),
// negligible lower wick, small body relative to range.
func IsShootingStar(c market.Candle) bool {
	r := c.Range()
	if r <= 0 {
		return false
	}
	body := c.Body()
	return c.UpperWick() >= body*2 &&
		c.LowerWick() <= body*0.3 &&
		body <= r*0.3
}

// IsBullishEngulfing reports whether cur fully engulfs a bearish prev
// with an opposite-colored body.
func IsBullishEngulfing(prev, cur market.Candle) bool {
	if prev.Close >= prev.Open || cur.Close <= cur.Open {
		return false
	}
	return cur.Open <= prev.Close && cur.Close >= prev.Open
}

// IsBearishEngulfing reports whether cur fully engulfs a bullish prev
// with an opposite-colored body.
func IsBearishEngulfing(prev, cur market.Candle) bool {
	if prev.Close <= prev.Open || cur.Close >= cur.Open {
		return false
	}
	return cur.Open >= prev.Close && cur.Close <= prev.Open
}

// IsInsideBar reports whether cur trades entirely inside prev's range.
func IsInsideBar(prev, cur market.Candle) bool {
	return cur.High < prev.High && cur.Low > prev.Low
}

// HasVolumeSupport reports whether the latest candle's volume exceeds
// 1.2x the mean of the trailing 20 candles. With fewer than 5 candles it
// defaults to supported so cold starts are not blocked.
func HasVolumeSupport(candles []market.Candle) bool {
	if len(candles) < 5 {
		return true
	}

	last := candles[len(candles)-1]
	window := candles[:len(candles)-1]
	if len(window) > 20 {
		window = window[len(window)-20:]
	}

	sum := 0.0
	n := 0
	for _, c := range window {
		if c.Volume > 0 {
			sum += c.Volume
			n++
		}
	}
	if n == 0 {
		return true
	}
	return last.Volume > (sum/float64(n))*1.2
}

// Detect classifies the most recent 1-2 candles into the pattern
// vocabulary, checking two-candle patterns before single-candle ones.
// Returns None when nothing matches or history is too short.
func Detect(candles []market.Candle) Pattern {
	if len(candles) == 0 {
		return None
	}
	cur := candles[len(candles)-1]

	if len(candles) >= 2 {
		prev := candles[len(candles)-2]
		switch {
		case IsBullishEngulfing(prev, cur):
			return BullishEngulfing
		case IsBearishEngulfing(prev, cur):
			return BearishEngulfing
		case IsInsideBar(prev, cur):
			return InsideBar
		}
	}

	if IsHammer(cur) {
		return Hammer
	}
	if IsShootingStar(cur) {
		return ShootingStar
	}
	if ok, dir := IsStrongCandle(cur); ok {
		if dir > 0 {
			return StrongBull
		}
		return StrongBear
	}
	return None
}
