package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"options-scalping-bot/internal/commands"
	"options-scalping-bot/internal/risk"
	"options-scalping-bot/internal/session"
)

func testServer() *Server {
	manager := session.NewManager(session.ManagerDeps{
		CounterStore: risk.NewMemoryCounterStore(),
		Logger:       zerolog.Nop(),
	})
	// A bus pointed at an unreachable Redis: publish attempts fail, which
	// exercises the 502 path without external infrastructure.
	bus := commands.NewBus(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}), zerolog.Nop())
	return NewServer(nil, bus, manager, zerolog.Nop())
}

func TestHealthEndpoint(t *testing.T) {
	s := testServer()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestStartRequiresUserID(t *testing.T) {
	s := testServer()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/trading/start", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for missing user_id", w.Code)
	}
}

func TestStartReportsBusFailure(t *testing.T) {
	s := testServer()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/trading/start",
		strings.NewReader(`{"user_id": "u1"}`))
	req.Header.Set("Content-Type", "application/json")
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502 when the command bus is down", w.Code)
	}
}

func TestStartWithoutBus(t *testing.T) {
	manager := session.NewManager(session.ManagerDeps{
		CounterStore: risk.NewMemoryCounterStore(),
		Logger:       zerolog.Nop(),
	})
	s := NewServer(nil, nil, manager, zerolog.Nop())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/trading/start",
		strings.NewReader(`{"user_id": "u1"}`))
	req.Header.Set("Content-Type", "application/json")
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 without a command bus", w.Code)
	}
}

func TestStatusUnknownUser(t *testing.T) {
	s := testServer()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/trading/status/nobody", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 for unknown session", w.Code)
	}
}

func TestSessionsEmpty(t *testing.T) {
	s := testServer()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/trading/sessions", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "active_users") {
		t.Errorf("body = %s, want active_users field", w.Body.String())
	}
}
