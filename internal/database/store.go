package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"options-scalping-bot/internal/signal"
	"options-scalping-bot/internal/trade"
)

// Store persists trade, signal and audit records to Postgres. The hot
// path only ever writes; nothing here is read back during trading.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects a pgx pool and ensures the schema exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS trades (
	id           TEXT PRIMARY KEY,
	user_id      TEXT NOT NULL,
	symbol       TEXT NOT NULL,
	direction    TEXT NOT NULL,
	entry_price  DOUBLE PRECISION NOT NULL,
	stop_loss    DOUBLE PRECISION NOT NULL,
	target_price DOUBLE PRECISION NOT NULL,
	quantity     INTEGER NOT NULL,
	status       TEXT NOT NULL,
	entry_time   TIMESTAMPTZ NOT NULL,
	exit_time    TIMESTAMPTZ,
	exit_price   DOUBLE PRECISION,
	pnl          DOUBLE PRECISION,
	order_id     TEXT
);
CREATE TABLE IF NOT EXISTS signals (
	id          BIGSERIAL PRIMARY KEY,
	user_id     TEXT NOT NULL,
	instrument  TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	payload     JSONB NOT NULL,
	latency_ms  DOUBLE PRECISION
);
CREATE TABLE IF NOT EXISTS audit_events (
	id         BIGSERIAL PRIMARY KEY,
	user_id    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	level      TEXT NOT NULL,
	event      TEXT NOT NULL,
	details    JSONB
);
CREATE TABLE IF NOT EXISTS market_snapshots (
	id         BIGSERIAL PRIMARY KEY,
	user_id    TEXT NOT NULL,
	instrument TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	pcr        DOUBLE PRECISION,
	spot_price DOUBLE PRECISION,
	indicators JSONB
);`
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// SaveTrade upserts the full trade record.
func (s *Store) SaveTrade(ctx context.Context, t *trade.VirtualTrade) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO trades (id, user_id, symbol, direction, entry_price, stop_loss, target_price, quantity, status, entry_time, exit_time, exit_price, pnl, order_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NULLIF($11, '0001-01-01 00:00:00Z'::timestamptz),$12,$13,$14)
ON CONFLICT (id) DO UPDATE SET
	status = EXCLUDED.status,
	stop_loss = EXCLUDED.stop_loss,
	exit_time = EXCLUDED.exit_time,
	exit_price = EXCLUDED.exit_price,
	pnl = EXCLUDED.pnl,
	order_id = EXCLUDED.order_id`,
		t.ID, t.UserID, t.Symbol, string(t.Direction), t.EntryPrice, t.StopLoss,
		t.TargetPrice, t.Quantity, string(t.Status), t.EntryTime, t.ExitTime,
		t.ExitPrice, t.PnL, t.OrderID)
	if err != nil {
		return fmt.Errorf("save trade %s: %w", t.ID, err)
	}
	return nil
}

// SaveSignal records an emitted signal for audit.
func (s *Store) SaveSignal(ctx context.Context, userID, instrument string, sig signal.Signal, latencyMS float64) error {
	payload, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO signals (user_id, instrument, created_at, payload, latency_ms)
VALUES ($1,$2,$3,$4,$5)`,
		userID, instrument, time.Now(), payload, latencyMS)
	if err != nil {
		return fmt.Errorf("save signal: %w", err)
	}
	return nil
}

// SaveAudit records a session lifecycle or error event.
func (s *Store) SaveAudit(ctx context.Context, userID, level, event string, details any) error {
	var detailsJSON []byte
	if details != nil {
		var err error
		detailsJSON, err = json.Marshal(details)
		if err != nil {
			return fmt.Errorf("marshal audit details: %w", err)
		}
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO audit_events (user_id, created_at, level, event, details)
VALUES ($1,$2,$3,$4,$5)`,
		userID, time.Now(), level, event, detailsJSON)
	if err != nil {
		return fmt.Errorf("save audit event: %w", err)
	}
	return nil
}

// SaveSnapshot records a periodic market/indicator snapshot.
func (s *Store) SaveSnapshot(ctx context.Context, userID, instrument string, pcr, spot float64, snap signal.Snapshot) error {
	indicatorsJSON, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO market_snapshots (user_id, instrument, created_at, pcr, spot_price, indicators)
VALUES ($1,$2,$3,$4,$5,$6)`,
		userID, instrument, time.Now(), pcr, spot, indicatorsJSON)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}
