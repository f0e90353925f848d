package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"options-scalping-bot/internal/market"
)

// ReplayFeed plays back a recorded day of 1-minute candles at a
// configurable speed. Each candle is emitted with an EventTime equal to
// its own timestamp, so downstream staleness checks must use the same
// synthetic clock (Engine.SetClock).
type ReplayFeed struct {
	symbol  string
	candles []market.Candle
	speed   float64
	ticks   chan Tick
	clock   *ReplayClock
}

// ReplayClock is the synthetic time source a replay drives. Share it
// with the signal engine so staleness checks line up with the recording.
// The replay goroutine advances it while consumers read it.
type ReplayClock struct {
	mu      sync.RWMutex
	current time.Time
}

// Now returns the replay's current time.
func (c *ReplayClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

func (c *ReplayClock) set(t time.Time) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

// NewReplayFeed creates a playback source. speed 1 is real time; 0 means
// as fast as possible.
func NewReplayFeed(symbol string, candles []market.Candle, speed float64) *ReplayFeed {
	return &ReplayFeed{
		symbol:  symbol,
		candles: candles,
		speed:   speed,
		ticks:   make(chan Tick),
		clock:   &ReplayClock{},
	}
}

// LoadRecording reads a JSON array of candles from disk.
func LoadRecording(path string) ([]market.Candle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read recording: %w", err)
	}
	var candles []market.Candle
	if err := json.Unmarshal(data, &candles); err != nil {
		return nil, fmt.Errorf("decode recording %s: %w", path, err)
	}
	return candles, nil
}

// Clock exposes the synthetic clock for Engine.SetClock.
func (r *ReplayFeed) Clock() *ReplayClock {
	return r.clock
}

// Ticks returns the playback channel. Closed when the recording ends.
func (r *ReplayFeed) Ticks() <-chan Tick {
	return r.ticks
}

// Run emits each candle in order, pacing by the recorded gaps scaled by
// speed. Identical inputs produce identical tick sequences.
func (r *ReplayFeed) Run(ctx context.Context) error {
	defer close(r.ticks)

	for i, c := range r.candles {
		if i > 0 && r.speed > 0 {
			gap := c.Timestamp.Sub(r.candles[i-1].Timestamp)
			wait := time.Duration(float64(gap) / r.speed)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait):
			}
		}

		r.clock.set(c.Timestamp)

		tick := Tick{
			Symbol:    r.symbol,
			Candle:    c,
			LTP:       c.Close,
			EventTime: c.Timestamp,
		}
		select {
		case <-ctx.Done():
			return nil
		case r.ticks <- tick:
		}
	}
	return nil
}
