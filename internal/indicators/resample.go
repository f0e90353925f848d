package indicators

import (
	"time"

	"options-scalping-bot/internal/market"
)

// minCoarseBars is the minimum number of resampled bars required before
// the secondary timeframe produces a directional bias.
const minCoarseBars = 6

// Resample aggregates 1-minute candles into fixed time buckets of the
// given width using first/max/min/last/sum aggregation. Input must be
// ordered ascending by timestamp; output is ordered the same way.
func Resample(candles []market.Candle, bucket time.Duration) []market.Candle {
	if len(candles) == 0 {
		return nil
	}

	out := make([]market.Candle, 0, len(candles)/int(bucket/time.Minute)+1)
	var cur market.Candle
	var curBucket time.Time
	open := false

	for _, c := range candles {
		b := c.Timestamp.Truncate(bucket)
		if !open || !b.Equal(curBucket) {
			if open {
				out = append(out, cur)
			}
			cur = c
			cur.Timestamp = b
			curBucket = b
			open = true
			continue
		}
		if c.High > cur.High {
			cur.High = c.High
		}
		if c.Low < cur.Low {
			cur.Low = c.Low
		}
		cur.Close = c.Close
		cur.Volume += c.Volume
	}
	if open {
		out = append(out, cur)
	}
	return out
}

// TrendBias resamples the 1-minute window into 5-minute bars and compares
// the latest coarse close against a moving average of the coarse series.
// Returns NEUTRAL until enough coarse bars exist to be meaningful.
func TrendBias(candles []market.Candle, maPeriod int) Bias {
	coarse := Resample(candles, 5*time.Minute)
	if len(coarse) < minCoarseBars {
		return BiasNeutral
	}

	closes := make([]float64, len(coarse))
	for i, c := range coarse {
		closes[i] = c.Close
	}
	ma := EMA(closes, maPeriod)
	last := closes[len(closes)-1]

	switch {
	case last > ma:
		return BiasBullish
	case last < ma:
		return BiasBearish
	default:
		return BiasNeutral
	}
}
