package indicators

import (
	"math"

	"options-scalping-bot/internal/market"
)

// Bias represents a directional trend bias.
type Bias string

const (
	BiasBullish Bias = "BULLISH"
	BiasBearish Bias = "BEARISH"
	BiasNeutral Bias = "NEUTRAL"
)

// ATRFallbackFraction is used when ATR cannot be computed from history:
// stop-distance math downstream must never divide by zero, so an
// undefined ATR degrades to 0.2% of the current price.
const ATRFallbackFraction = 0.002

// ============================================================================
// MOVING AVERAGES
// ============================================================================

// EMA calculates an exponential moving average over the full price
// series with k = 2/(period+1), seeded with the first price. With fewer
// prices than the period it still returns a smoothed value rather than
// failing, which keeps cold-start behavior total.
func EMA(prices []float64, period int) float64 {
	if len(prices) == 0 {
		return 0
	}
	k := 2.0 / float64(period+1)
	ema := prices[0]
	for _, p := range prices[1:] {
		ema = p*k + ema*(1-k)
	}
	return ema
}

// ============================================================================
// RSI
// ============================================================================

// RSI calculates the Relative Strength Index using Wilder's smoothing.
// Returns 50 (neutral) with fewer than period+1 prices and 100 when the
// average loss is exactly zero.
func RSI(prices []float64, period int) float64 {
	if len(prices) < period+1 {
		return 50
	}

	avgGain := 0.0
	avgLoss := 0.0
	for i := 1; i <= period; i++ {
		diff := prices[i] - prices[i-1]
		if diff > 0 {
			avgGain += diff
		} else {
			avgLoss -= diff
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(prices); i++ {
		diff := prices[i] - prices[i-1]
		gain, loss := 0.0, 0.0
		if diff > 0 {
			gain = diff
		} else {
			loss = -diff
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// ============================================================================
// ATR / ADX
// ============================================================================

func trueRange(c, prev market.Candle) float64 {
	return math.Max(c.High-c.Low,
		math.Max(math.Abs(c.High-prev.Close), math.Abs(c.Low-prev.Close)))
}

// ATR calculates the Average True Range over the last period candles.
// With insufficient history it falls back to a small fraction of the
// latest close so downstream stop sizing stays defined.
func ATR(candles []market.Candle, period int) float64 {
	if len(candles) < period+1 {
		if len(candles) == 0 {
			return 0
		}
		return candles[len(candles)-1].Close * ATRFallbackFraction
	}

	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		sum += trueRange(candles[i], candles[i-1])
	}
	atr := sum / float64(period)
	if atr == 0 {
		return candles[len(candles)-1].Close * ATRFallbackFraction
	}
	return atr
}

// ADX calculates the Average Directional Index with Wilder smoothing of
// +DM/-DM/TR and an averaged DX series. Returns 0 with insufficient
// history (treated as "no measurable trend" by the regime gate).
func ADX(candles []market.Candle, period int) float64 {
	if len(candles) < 2*period+1 {
		return 0
	}

	var smTR, smPlusDM, smMinusDM float64
	var dxSum float64
	dxCount := 0

	for i := 1; i < len(candles); i++ {
		upMove := candles[i].High - candles[i-1].High
		downMove := candles[i-1].Low - candles[i].Low

		plusDM, minusDM := 0.0, 0.0
		if upMove > downMove && upMove > 0 {
			plusDM = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM = downMove
		}
		tr := trueRange(candles[i], candles[i-1])

		if i <= period {
			smTR += tr
			smPlusDM += plusDM
			smMinusDM += minusDM
			if i < period {
				continue
			}
		} else {
			smTR = smTR - smTR/float64(period) + tr
			smPlusDM = smPlusDM - smPlusDM/float64(period) + plusDM
			smMinusDM = smMinusDM - smMinusDM/float64(period) + minusDM
		}

		if smTR == 0 {
			continue
		}
		plusDI := 100 * smPlusDM / smTR
		minusDI := 100 * smMinusDM / smTR
		if plusDI+minusDI == 0 {
			continue
		}
		dx := 100 * math.Abs(plusDI-minusDI) / (plusDI + minusDI)

		// Average the trailing DX values into ADX.
		if dxCount < period {
			dxSum += dx
			dxCount++
		} else {
			dxSum = dxSum - dxSum/float64(period) + dx
		}
	}

	if dxCount == 0 {
		return 0
	}
	return dxSum / float64(dxCount)
}

// ============================================================================
// SUPERTREND
// ============================================================================

// SuperTrendResult holds the band values and resulting trend direction.
type SuperTrendResult struct {
	UpperBand float64
	LowerBand float64
	Trend     Bias
}

// SuperTrend computes the classic ATR band indicator with carry-forward
// band rules and direction flips on band breaks.
func SuperTrend(candles []market.Candle, period int, multiplier float64) SuperTrendResult {
	if len(candles) < period+1 {
		return SuperTrendResult{Trend: BiasNeutral}
	}

	finalUpper := 0.0
	finalLower := 0.0
	trend := BiasBullish

	for i := period; i < len(candles); i++ {
		atr := ATR(candles[:i+1], period)
		mid := (candles[i].High + candles[i].Low) / 2
		upper := mid + multiplier*atr
		lower := mid - multiplier*atr

		prevClose := candles[i-1].Close
		if i > period {
			if upper < finalUpper || prevClose > finalUpper {
				finalUpper = upper
			}
			if lower > finalLower || prevClose < finalLower {
				finalLower = lower
			}
		} else {
			finalUpper = upper
			finalLower = lower
		}

		if candles[i].Close > finalUpper {
			trend = BiasBullish
		} else if candles[i].Close < finalLower {
			trend = BiasBearish
		}
	}

	return SuperTrendResult{
		UpperBand: finalUpper,
		LowerBand: finalLower,
		Trend:     trend,
	}
}

// ============================================================================
// MOMENTUM
// ============================================================================

// Momentum returns the percentage price change over the last period.
func Momentum(prices []float64, period int) float64 {
	if len(prices) < period+1 || prices[len(prices)-period-1] == 0 {
		return 0
	}
	past := prices[len(prices)-period-1]
	return (prices[len(prices)-1] - past) / past * 100
}

// Velocity returns the average per-candle price change over the last
// period, a cheap rate-of-change proxy for the momentum trigger.
func Velocity(prices []float64, period int) float64 {
	if len(prices) < period+1 {
		return 0
	}
	sum := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		sum += prices[i] - prices[i-1]
	}
	return sum / float64(period)
}
