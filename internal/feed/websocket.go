package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	defaultFeedURL   = "wss://api.upstox.com/v2/feed/market-data-feed"
	reconnectInitial = 1 * time.Second
	reconnectMax     = 30 * time.Second
	readTimeout      = 90 * time.Second
)

// WSFeed streams live market data over the broker websocket. It owns the
// connection lifecycle: dial, subscribe, read loop, reconnect with
// exponential backoff.
type WSFeed struct {
	url         string
	accessToken string
	symbols     []string
	ticks       chan Tick
	logger      zerolog.Logger
}

// NewWSFeed builds a live feed for the given instrument keys.
func NewWSFeed(url, accessToken string, symbols []string, logger zerolog.Logger) *WSFeed {
	if url == "" {
		url = defaultFeedURL
	}
	return &WSFeed{
		url:         url,
		accessToken: accessToken,
		symbols:     symbols,
		ticks:       make(chan Tick, 256),
		logger:      logger,
	}
}

// Ticks returns the event channel. Closed when Run returns.
func (f *WSFeed) Ticks() <-chan Tick {
	return f.ticks
}

// feedFrame is the broker's per-instrument payload: LTP plus the rolling
// 1-minute OHLC.
type feedFrame struct {
	Type  string `json:"type"`
	Feeds map[string]struct {
		LTP  float64 `json:"ltp"`
		OHLC struct {
			Timestamp int64   `json:"ts"` // epoch millis, minute open
			Open      float64 `json:"open"`
			High      float64 `json:"high"`
			Low       float64 `json:"low"`
			Close     float64 `json:"close"`
			Volume    float64 `json:"volume"`
		} `json:"ohlc"`
	} `json:"feeds"`
}

// Run connects and pumps ticks until ctx is cancelled. Connection drops
// reconnect with backoff; backoff resets after a healthy session.
func (f *WSFeed) Run(ctx context.Context) error {
	defer close(f.ticks)

	backoff := reconnectInitial
	for {
		connectedAt := time.Now()
		err := f.stream(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if time.Since(connectedAt) > time.Minute {
			backoff = reconnectInitial
		}
		f.logger.Warn().Err(err).Dur("retry_in", backoff).Msg("feed disconnected, reconnecting")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > reconnectMax {
			backoff = reconnectMax
		}
	}
}

func (f *WSFeed) stream(ctx context.Context) error {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+f.accessToken)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, header)
	if err != nil {
		return fmt.Errorf("dial feed: %w", err)
	}
	defer conn.Close()

	sub := map[string]any{
		"guid":   fmt.Sprintf("sub-%d", time.Now().UnixNano()),
		"method": "sub",
		"data": map[string]any{
			"mode":           "full",
			"instrumentKeys": f.symbols,
		},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	f.logger.Info().Strs("symbols", f.symbols).Msg("feed connected")

	// Close the socket when ctx ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read feed: %w", err)
		}

		var frame feedFrame
		if err := json.Unmarshal(msg, &frame); err != nil {
			f.logger.Debug().Err(err).Msg("skipping undecodable feed frame")
			continue
		}

		now := time.Now()
		for symbol, data := range frame.Feeds {
			if data.OHLC.Open == 0 && data.LTP == 0 {
				continue
			}
			tick := Tick{
				Symbol:    symbol,
				LTP:       data.LTP,
				EventTime: now,
			}
			tick.Candle.Timestamp = time.UnixMilli(data.OHLC.Timestamp)
			tick.Candle.Open = data.OHLC.Open
			tick.Candle.High = data.OHLC.High
			tick.Candle.Low = data.OHLC.Low
			tick.Candle.Close = data.OHLC.Close
			tick.Candle.Volume = data.OHLC.Volume

			select {
			case f.ticks <- tick:
			default:
				// Consumer is behind; dropping the oldest view of this
				// minute is safe because the next frame supersedes it.
				f.logger.Debug().Str("symbol", symbol).Msg("tick channel full, dropping frame")
			}
		}
	}
}
