// Package api is the HTTP control surface. It never touches trading
// state directly: mutating endpoints publish commands on the Redis bus
// and the session manager applies them, so the API stays stateless and
// any process in the deployment can serve it.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"options-scalping-bot/internal/commands"
	"options-scalping-bot/internal/session"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int      `json:"port"`
	AllowOrigins []string `json:"allow_origins"`
}

// DefaultServerConfig returns local-development defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:         8090,
		AllowOrigins: []string{"http://localhost:5173", "http://localhost:8090"},
	}
}

// Server exposes the trading control endpoints.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	bus        *commands.Bus
	manager    *session.Manager
	logger     zerolog.Logger
}

// NewServer builds the router and wires the routes.
func NewServer(cfg *ServerConfig, bus *commands.Bus, manager *session.Manager, logger zerolog.Logger) *Server {
	if cfg == nil {
		cfg = DefaultServerConfig()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.AllowOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	s := &Server{
		router:  router,
		bus:     bus,
		manager: manager,
		logger:  logger,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api/trading")
	{
		api.POST("/start", s.handleStart)
		api.POST("/stop", s.handleStop)
		api.PUT("/settings", s.handleUpdateSettings)
		api.GET("/status/:user_id", s.handleStatus)
		api.GET("/sessions", s.handleSessions)
	}
}

// Start serves until the listener fails.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
