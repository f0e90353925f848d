// Package oracle holds the advisory signal validator. The validator is a
// collaborator, never an authority: when it cannot answer in time the
// session proceeds with the signal (fail-open), because a scalping entry
// that waits on a slow advisory service is already a worse trade.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"options-scalping-bot/internal/signal"
)

// Verdict is the validator's opinion on one signal.
type Verdict struct {
	Approved   bool    `json:"approved"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Validator gives an advisory opinion on a scored signal.
type Validator interface {
	Validate(ctx context.Context, userID string, sig signal.Signal, snap signal.Snapshot) Verdict
}

// NoopValidator approves everything. Used when no validator endpoint is
// configured.
type NoopValidator struct{}

func (NoopValidator) Validate(context.Context, string, signal.Signal, signal.Snapshot) Verdict {
	return Verdict{Approved: true, Confidence: 1, Reason: "validation disabled"}
}

// HTTPValidator posts the signal and its indicator snapshot to an
// external advisory endpoint.
type HTTPValidator struct {
	endpoint string
	apiKey   string
	timeout  time.Duration
	client   *http.Client
	logger   zerolog.Logger
}

// NewHTTPValidator builds a validator for the given endpoint. A zero
// timeout defaults to 5s.
func NewHTTPValidator(endpoint, apiKey string, timeout time.Duration, logger zerolog.Logger) *HTTPValidator {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPValidator{
		endpoint: endpoint,
		apiKey:   apiKey,
		timeout:  timeout,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

type validateRequest struct {
	UserID     string          `json:"user_id"`
	Signal     signal.Signal   `json:"signal"`
	Indicators signal.Snapshot `json:"indicators"`
}

// Validate asks the advisory endpoint for a verdict. Any transport
// error, timeout, non-200 status or undecodable body approves the
// signal; only an explicit, well-formed rejection blocks it.
func (v *HTTPValidator) Validate(ctx context.Context, userID string, sig signal.Signal, snap signal.Snapshot) Verdict {
	approve := func(why string, err error) Verdict {
		v.logger.Warn().Err(err).Str("user_id", userID).Msg("validator unavailable, approving signal: " + why)
		return Verdict{Approved: true, Confidence: 0, Reason: "validator unavailable: " + why}
	}

	body, err := json.Marshal(validateRequest{UserID: userID, Signal: sig, Indicators: snap})
	if err != nil {
		return approve("marshal failed", err)
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, bytes.NewReader(body))
	if err != nil {
		return approve("bad request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if v.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+v.apiKey)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return approve("request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return approve(fmt.Sprintf("status %d", resp.StatusCode), nil)
	}

	var verdict Verdict
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		return approve("undecodable verdict", err)
	}

	if !verdict.Approved {
		v.logger.Info().
			Str("user_id", userID).
			Str("setup", sig.Setup).
			Float64("confidence", verdict.Confidence).
			Str("reason", verdict.Reason).
			Msg("validator rejected signal")
	}
	return verdict
}
