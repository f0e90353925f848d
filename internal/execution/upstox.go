package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const upstoxBaseURL = "https://api.upstox.com/v2"

// UpstoxExecutor places real orders against the Upstox REST API.
type UpstoxExecutor struct {
	baseURL     string
	accessToken string
	client      *http.Client
	logger      zerolog.Logger
}

// NewUpstoxExecutor creates a live executor for one user's access token.
func NewUpstoxExecutor(accessToken string, logger zerolog.Logger) *UpstoxExecutor {
	return &UpstoxExecutor{
		baseURL:     upstoxBaseURL,
		accessToken: accessToken,
		client:      &http.Client{Timeout: 10 * time.Second},
		logger:      logger,
	}
}

type orderResponse struct {
	Status string `json:"status"`
	Data   struct {
		OrderID string `json:"order_id"`
	} `json:"data"`
}

func (u *UpstoxExecutor) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		buf = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.baseURL+path, buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+u.accessToken)

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, respBody)
	}
	return respBody, nil
}

// PlaceOrder submits a day order. No retry on failure.
func (u *UpstoxExecutor) PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	payload := map[string]any{
		"quantity":           req.Quantity,
		"product":            "I",
		"validity":           "DAY",
		"price":              req.Price,
		"tag":                req.Tag,
		"instrument_token":   req.InstrumentKey,
		"order_type":         req.OrderType,
		"transaction_type":   req.TransactionType,
		"disclosed_quantity": 0,
		"trigger_price":      req.TriggerPrice,
		"is_amo":             false,
	}

	body, err := u.do(ctx, http.MethodPost, "/order/place", payload)
	if err != nil {
		return OrderResult{}, err
	}

	var parsed orderResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return OrderResult{}, fmt.Errorf("decode order response: %w", err)
	}
	if parsed.Status != "success" {
		return OrderResult{}, ErrOrderRejected(string(body))
	}

	u.logger.Info().Str("order_id", parsed.Data.OrderID).Str("instrument", req.InstrumentKey).Msg("live order placed")
	return OrderResult{OrderID: parsed.Data.OrderID}, nil
}

// ModifyOrder adjusts an open order's trigger price (stop moves).
func (u *UpstoxExecutor) ModifyOrder(ctx context.Context, orderID string, triggerPrice float64, quantity int) error {
	payload := map[string]any{
		"order_id":      orderID,
		"validity":      "DAY",
		"trigger_price": triggerPrice,
		"quantity":      quantity,
	}
	_, err := u.do(ctx, http.MethodPut, "/order/modify", payload)
	return err
}

// CancelOrder cancels an open order.
func (u *UpstoxExecutor) CancelOrder(ctx context.Context, orderID string) error {
	_, err := u.do(ctx, http.MethodDelete, "/order/cancel?order_id="+orderID, nil)
	return err
}
