// Package execution holds the broker order collaborator. The core never
// retries order placement; failed placements surface as errors and the
// retry policy belongs to the broker side.
package execution

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Transaction types.
const (
	Buy  = "BUY"
	Sell = "SELL"
)

// OrderRequest describes one entry or exit order.
type OrderRequest struct {
	InstrumentKey   string  `json:"instrument_token"`
	TransactionType string  `json:"transaction_type"`
	Quantity        int     `json:"quantity"`
	OrderType       string  `json:"order_type"` // MARKET, LIMIT, SL, SL-M
	Price           float64 `json:"price"`
	TriggerPrice    float64 `json:"trigger_price"`
	Tag             string  `json:"tag"`
}

// OrderResult is the broker's acknowledgement of a placed order.
type OrderResult struct {
	OrderID   string
	Simulated bool
}

// OrderExecutor is the execution collaborator contract.
type OrderExecutor interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	ModifyOrder(ctx context.Context, orderID string, triggerPrice float64, quantity int) error
	CancelOrder(ctx context.Context, orderID string) error
}

// PaperExecutor simulates fills locally, for paper trading and replay.
type PaperExecutor struct {
	logger zerolog.Logger
}

// NewPaperExecutor creates a simulated executor.
func NewPaperExecutor(logger zerolog.Logger) *PaperExecutor {
	return &PaperExecutor{logger: logger}
}

func (p *PaperExecutor) PlaceOrder(_ context.Context, req OrderRequest) (OrderResult, error) {
	id := "PAPER_" + uuid.New().String()[:8]
	p.logger.Info().
		Str("order_id", id).
		Str("instrument", req.InstrumentKey).
		Str("txn", req.TransactionType).
		Int("qty", req.Quantity).
		Str("type", req.OrderType).
		Msg("paper order placed")
	return OrderResult{OrderID: id, Simulated: true}, nil
}

func (p *PaperExecutor) ModifyOrder(_ context.Context, orderID string, triggerPrice float64, quantity int) error {
	p.logger.Info().Str("order_id", orderID).Float64("trigger", triggerPrice).Msg("paper order modified")
	return nil
}

func (p *PaperExecutor) CancelOrder(_ context.Context, orderID string) error {
	p.logger.Info().Str("order_id", orderID).Msg("paper order cancelled")
	return nil
}

// ErrOrderRejected wraps a broker-side rejection with its message.
func ErrOrderRejected(msg string) error {
	return fmt.Errorf("order rejected: %s", msg)
}
