package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"options-scalping-bot/internal/commands"
	"options-scalping-bot/internal/database"
	"options-scalping-bot/internal/execution"
	"options-scalping-bot/internal/feed"
	"options-scalping-bot/internal/oracle"
	"options-scalping-bot/internal/risk"
	"options-scalping-bot/internal/signal"
)

// ManagerDeps bundles the shared collaborators every session uses.
type ManagerDeps struct {
	CounterStore risk.CounterStore
	RiskConfig   *risk.Config
	SignalConfig *signal.Config
	Store        *database.Store // nil disables persistence
	Bus          *commands.Bus   // nil disables the command bus
	Validator    oracle.Validator
	FeedURL      string
	Logger       zerolog.Logger
}

// Manager owns the set of live Traders, one per user, and drives them
// from the command bus. Sessions are fully isolated: each gets its own
// engine and governor; only the counter store and persistence are shared.
type Manager struct {
	deps ManagerDeps

	mu       sync.Mutex
	traders  map[string]*Trader
	settings map[string]Settings
}

// NewManager creates an empty session manager.
func NewManager(deps ManagerDeps) *Manager {
	return &Manager{
		deps:     deps,
		traders:  make(map[string]*Trader),
		settings: make(map[string]Settings),
	}
}

// Run consumes commands until ctx ends, then stops every session.
func (m *Manager) Run(ctx context.Context) {
	if m.deps.Bus == nil {
		<-ctx.Done()
		m.StopAll()
		return
	}

	cmds := m.deps.Bus.Subscribe(ctx)
	for {
		select {
		case <-ctx.Done():
			m.StopAll()
			return
		case cmd, ok := <-cmds:
			if !ok {
				m.StopAll()
				return
			}
			m.handleCommand(ctx, cmd)
		}
	}
}

func (m *Manager) handleCommand(ctx context.Context, cmd commands.Command) {
	logger := m.deps.Logger.With().Str("user_id", cmd.UserID).Str("command", cmd.Type).Logger()

	switch cmd.Type {
	case commands.CmdStartTrading:
		settings := m.settingsFor(cmd.UserID)
		if len(cmd.Payload) > 0 {
			if err := json.Unmarshal(cmd.Payload, &settings); err != nil {
				logger.Warn().Err(err).Msg("bad settings payload, using stored settings")
			}
		}
		if err := m.Start(ctx, cmd.UserID, settings); err != nil {
			logger.Error().Err(err).Msg("start failed")
		}

	case commands.CmdStopTrading:
		m.Stop(cmd.UserID)

	case commands.CmdUpdateSettings:
		var settings Settings
		if err := json.Unmarshal(cmd.Payload, &settings); err != nil {
			logger.Warn().Err(err).Msg("bad settings payload, ignored")
			return
		}
		m.UpdateSettings(ctx, cmd.UserID, settings)

	default:
		logger.Warn().Msg("unknown command")
	}
}

func (m *Manager) settingsFor(userID string) Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.settings[userID]; ok {
		return s
	}
	return DefaultSettings()
}

// Start launches a session for the user. Starting an already running
// session is an error; use UpdateSettings to reconfigure in place.
func (m *Manager) Start(ctx context.Context, userID string, settings Settings) error {
	m.mu.Lock()
	if _, running := m.traders[userID]; running {
		m.mu.Unlock()
		return fmt.Errorf("session already running for %s", userID)
	}
	m.settings[userID] = settings
	m.mu.Unlock()

	trader, err := m.buildTrader(userID, settings)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.traders[userID] = trader
	m.mu.Unlock()

	trader.Start(ctx)
	m.deps.Logger.Info().Str("user_id", userID).Str("instrument", settings.InstrumentKey).Bool("paper", settings.Paper).Msg("session started")
	return nil
}

func (m *Manager) buildTrader(userID string, settings Settings) (*Trader, error) {
	logger := m.deps.Logger.With().Str("user_id", userID).Logger()

	var executor execution.OrderExecutor
	if settings.Paper {
		executor = execution.NewPaperExecutor(logger)
	} else {
		if settings.AccessToken == "" {
			return nil, fmt.Errorf("live session for %s requires an access token", userID)
		}
		executor = execution.NewUpstoxExecutor(settings.AccessToken, logger)
	}

	var chain *feed.ChainClient
	if settings.AccessToken != "" && settings.Expiry != "" {
		chain = feed.NewChainClient("", settings.AccessToken)
	}

	source := feed.NewWSFeed(m.deps.FeedURL, settings.AccessToken,
		[]string{settings.InstrumentKey}, logger)

	return NewTrader(userID, settings, Deps{
		Source:    source,
		Engine:    signal.NewEngine(m.deps.SignalConfig, logger),
		Governor:  risk.NewGovernor(userID, m.deps.RiskConfig, m.deps.CounterStore, logger),
		Validator: m.deps.Validator,
		Executor:  executor,
		Chain:     chain,
		Store:     m.deps.Store,
		Bus:       m.deps.Bus,
		Logger:    m.deps.Logger,
	}), nil
}

// Stop shuts down the user's session if one is running.
func (m *Manager) Stop(userID string) {
	m.mu.Lock()
	trader, ok := m.traders[userID]
	if ok {
		delete(m.traders, userID)
	}
	m.mu.Unlock()

	if !ok {
		return
	}
	trader.Stop()
	m.deps.Logger.Info().Str("user_id", userID).Msg("session stopped")
}

// UpdateSettings stores new settings and restarts the session if one is
// running so the change takes effect.
func (m *Manager) UpdateSettings(ctx context.Context, userID string, settings Settings) {
	m.mu.Lock()
	m.settings[userID] = settings
	_, running := m.traders[userID]
	m.mu.Unlock()

	if running {
		m.Stop(userID)
		if err := m.Start(ctx, userID, settings); err != nil {
			m.deps.Logger.Error().Err(err).Str("user_id", userID).Msg("restart after settings update failed")
		}
	}
}

// StopAll shuts down every session.
func (m *Manager) StopAll() {
	m.mu.Lock()
	traders := make([]*Trader, 0, len(m.traders))
	for id, t := range m.traders {
		traders = append(traders, t)
		delete(m.traders, id)
	}
	m.mu.Unlock()

	for _, t := range traders {
		t.Stop()
	}
}

// Status reports the session state for one user, or nil if not running.
func (m *Manager) Status(ctx context.Context, userID string) map[string]any {
	m.mu.Lock()
	trader, ok := m.traders[userID]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return trader.Status(ctx)
}

// ActiveUsers lists users with a running session.
func (m *Manager) ActiveUsers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	users := make([]string, 0, len(m.traders))
	for id := range m.traders {
		users = append(users, id)
	}
	return users
}
