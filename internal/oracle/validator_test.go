package oracle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"options-scalping-bot/internal/signal"
	"options-scalping-bot/internal/trade"
)

func testSignal() signal.Signal {
	return signal.Signal{
		Direction:  trade.Call,
		Setup:      "ORB_BREAKOUT",
		Score:      6,
		EntryPrice: 45000,
		StopLoss:   44900,
		Target:     45150,
		ATR:        100,
		Timestamp:  time.Now(),
	}
}

func TestNoopValidatorApproves(t *testing.T) {
	v := NoopValidator{}
	verdict := v.Validate(context.Background(), "u1", testSignal(), signal.Snapshot{})
	if !verdict.Approved {
		t.Fatal("noop validator must approve")
	}
}

func TestHTTPValidatorHonorsRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"approved": false, "confidence": 0.9, "reason": "weak setup"}`))
	}))
	defer srv.Close()

	v := NewHTTPValidator(srv.URL, "", time.Second, zerolog.Nop())
	verdict := v.Validate(context.Background(), "u1", testSignal(), signal.Snapshot{})
	if verdict.Approved {
		t.Fatal("explicit rejection must be honored")
	}
	if verdict.Reason != "weak setup" {
		t.Errorf("reason = %q, want weak setup", verdict.Reason)
	}
}

func TestHTTPValidatorApprovesOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	v := NewHTTPValidator(srv.URL, "", time.Second, zerolog.Nop())
	verdict := v.Validate(context.Background(), "u1", testSignal(), signal.Snapshot{})
	if !verdict.Approved {
		t.Fatal("server error must fail open")
	}
}

func TestHTTPValidatorApprovesOnTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	v := NewHTTPValidator(srv.URL, "", 50*time.Millisecond, zerolog.Nop())
	verdict := v.Validate(context.Background(), "u1", testSignal(), signal.Snapshot{})
	if !verdict.Approved {
		t.Fatal("timeout must fail open")
	}
}

func TestHTTPValidatorApprovesOnUnreachableEndpoint(t *testing.T) {
	v := NewHTTPValidator("http://127.0.0.1:1", "", 100*time.Millisecond, zerolog.Nop())
	verdict := v.Validate(context.Background(), "u1", testSignal(), signal.Snapshot{})
	if !verdict.Approved {
		t.Fatal("connection failure must fail open")
	}
}

func TestHTTPValidatorApprovesOnGarbageBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	v := NewHTTPValidator(srv.URL, "", time.Second, zerolog.Nop())
	verdict := v.Validate(context.Background(), "u1", testSignal(), signal.Snapshot{})
	if !verdict.Approved {
		t.Fatal("undecodable body must fail open")
	}
}
