// Package feed delivers 1-minute candles and last-traded prices to a
// session, either live over the broker websocket or replayed from a
// recorded day.
package feed

import (
	"context"
	"time"

	"options-scalping-bot/internal/market"
)

// Tick is one market-data event: the in-progress or just-closed minute
// candle plus the last traded price.
type Tick struct {
	Symbol    string
	Candle    market.Candle
	LTP       float64
	EventTime time.Time
}

// Source produces ticks until its Run context is cancelled. Ticks() is
// closed when the source stops for good.
type Source interface {
	Run(ctx context.Context) error
	Ticks() <-chan Tick
}
