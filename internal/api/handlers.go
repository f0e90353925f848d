package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"options-scalping-bot/internal/commands"
	"options-scalping-bot/internal/session"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now()})
}

// requireBus rejects mutating requests when the process runs without
// Redis and therefore without a command bus.
func (s *Server) requireBus(c *gin.Context) bool {
	if s.bus == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "command bus disabled"})
		return false
	}
	return true
}

type startRequest struct {
	UserID   string            `json:"user_id" binding:"required"`
	Settings *session.Settings `json:"settings,omitempty"`
}

func (s *Server) handleStart(c *gin.Context) {
	if !s.requireBus(c) {
		return
	}
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var payload json.RawMessage
	if req.Settings != nil {
		payload, _ = json.Marshal(req.Settings)
	}

	cmd := commands.Command{Type: commands.CmdStartTrading, UserID: req.UserID, Payload: payload}
	if err := s.bus.PublishCommand(c.Request.Context(), cmd); err != nil {
		s.logger.Error().Err(err).Str("user_id", req.UserID).Msg("start command failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "command bus unavailable"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "user_id": req.UserID})
}

type stopRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

func (s *Server) handleStop(c *gin.Context) {
	if !s.requireBus(c) {
		return
	}
	var req stopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cmd := commands.Command{Type: commands.CmdStopTrading, UserID: req.UserID}
	if err := s.bus.PublishCommand(c.Request.Context(), cmd); err != nil {
		s.logger.Error().Err(err).Str("user_id", req.UserID).Msg("stop command failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "command bus unavailable"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "user_id": req.UserID})
}

type settingsRequest struct {
	UserID   string           `json:"user_id" binding:"required"`
	Settings session.Settings `json:"settings" binding:"required"`
}

func (s *Server) handleUpdateSettings(c *gin.Context) {
	if !s.requireBus(c) {
		return
	}
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	payload, err := json.Marshal(req.Settings)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unencodable settings"})
		return
	}

	cmd := commands.Command{Type: commands.CmdUpdateSettings, UserID: req.UserID, Payload: payload}
	if err := s.bus.PublishCommand(c.Request.Context(), cmd); err != nil {
		s.logger.Error().Err(err).Str("user_id", req.UserID).Msg("settings command failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "command bus unavailable"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "user_id": req.UserID})
}

// handleStatus reads session state directly from the in-process manager.
// Only the process running the user's session can answer this.
func (s *Server) handleStatus(c *gin.Context) {
	userID := c.Param("user_id")
	status := s.manager.Status(c.Request.Context(), userID)
	if status == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no running session", "user_id": userID})
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"active_users": s.manager.ActiveUsers()})
}
