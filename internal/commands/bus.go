// Package commands is the Redis pub/sub bridge between the HTTP surface
// and the trading sessions. The API publishes commands; the session
// manager consumes them and publishes lifecycle events back.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Channel names.
const (
	CommandChannel = "trading:commands"
	EventChannel   = "trading:events"
)

// Command types.
const (
	CmdStartTrading   = "START_TRADING"
	CmdStopTrading    = "STOP_TRADING"
	CmdUpdateSettings = "UPDATE_SETTINGS"
)

// Command is one instruction for a user's session.
type Command struct {
	Type      string          `json:"type"`
	UserID    string          `json:"user_id"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Event is a session lifecycle notification published for observers.
type Event struct {
	Type      string    `json:"type"`
	UserID    string    `json:"user_id"`
	Message   string    `json:"message,omitempty"`
	Detail    any       `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Bus wraps the Redis pub/sub channels.
type Bus struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewBus creates a command bus over an existing Redis client.
func NewBus(client *redis.Client, logger zerolog.Logger) *Bus {
	return &Bus{client: client, logger: logger}
}

// PublishCommand sends a command to whichever process runs the user's
// session.
func (b *Bus) PublishCommand(ctx context.Context, cmd Command) error {
	if cmd.Timestamp.IsZero() {
		cmd.Timestamp = time.Now()
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}
	if err := b.client.Publish(ctx, CommandChannel, data).Err(); err != nil {
		return fmt.Errorf("publish command: %w", err)
	}
	return nil
}

// PublishEvent emits a session event. Failures are logged, not
// propagated: events are observability, never control flow.
func (b *Bus) PublishEvent(ctx context.Context, ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		b.logger.Error().Err(err).Str("type", ev.Type).Msg("marshal event")
		return
	}
	if err := b.client.Publish(ctx, EventChannel, data).Err(); err != nil {
		b.logger.Warn().Err(err).Str("type", ev.Type).Msg("publish event")
	}
}

// Subscribe starts consuming commands until ctx ends. Undecodable
// messages are logged and skipped.
func (b *Bus) Subscribe(ctx context.Context) <-chan Command {
	out := make(chan Command, 16)
	sub := b.client.Subscribe(ctx, CommandChannel)

	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var cmd Command
				if err := json.Unmarshal([]byte(msg.Payload), &cmd); err != nil {
					b.logger.Warn().Err(err).Msg("skipping undecodable command")
					continue
				}
				if cmd.UserID == "" || cmd.Type == "" {
					b.logger.Warn().Str("payload", msg.Payload).Msg("skipping incomplete command")
					continue
				}
				select {
				case out <- cmd:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
