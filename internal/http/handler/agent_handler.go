package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/amitsajwan/AgenticAiProperties/internal/domain"
	"github.com/amitsajwan/AgenticAiProperties/internal/repository"
)

// AgentHandler serves the read-side connection status and the page-connect
// write. Both address singleton fields of the aggregate only.
type AgentHandler struct {
	repo   repository.AgentRepository
	logger *zap.Logger
}

// NewAgentHandler wires the agent endpoints.
func NewAgentHandler(repo repository.AgentRepository, logger *zap.Logger) *AgentHandler {
	return &AgentHandler{repo: repo, logger: logger}
}

type statusResponse struct {
	TokenValid    bool   `json:"token_valid"`
	TokenStatus   string `json:"token_status,omitempty"`
	PageConnected bool   `json:"page_connected"`
	Posts         int    `json:"posts"`
}

// Status reports whether the agent holds a usable credential and a
// connected page.
func (h *AgentHandler) Status(c *gin.Context) {
	agentID := c.Param("agent_id")

	agent, err := h.repo.GetAgent(c.Request.Context(), agentID)
	if errors.Is(err, domain.ErrAgentNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "agent not found"})
		return
	}
	if err != nil {
		h.logger.Error("status lookup failed", zap.String("agent_id", agentID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}

	resp := statusResponse{
		PageConnected: agent.Facebook.Page != nil,
		Posts:         len(agent.Facebook.Posts),
	}
	if token := agent.Facebook.Token; token != nil {
		resp.TokenStatus = string(token.Status)
		resp.TokenValid = token.Usable(time.Now(), 0)
	}
	c.JSON(http.StatusOK, resp)
}

type connectPageRequest struct {
	PageID      string   `json:"page_id" binding:"required"`
	Name        string   `json:"name"`
	AccessToken string   `json:"access_token" binding:"required"`
	ExpiresIn   int64    `json:"expires_in"`
	Scopes      []string `json:"scopes"`
}

// ConnectPage stores the page connection and its long-lived credential as
// two singleton-field writes, never touching the post history.
func (h *AgentHandler) ConnectPage(c *gin.Context) {
	agentID := strings.TrimSpace(c.Param("agent_id"))
	if agentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "agent_id required"})
		return
	}

	var req connectPageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	now := time.Now()
	expiresIn := req.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 60 * 24 * 3600 // platform default for long-lived page tokens
	}

	ctx := c.Request.Context()
	page := domain.Page{PageID: req.PageID, Name: req.Name, ConnectedAt: now}
	if err := h.repo.StorePage(ctx, agentID, page); err != nil {
		h.logger.Error("failed to store page", zap.String("agent_id", agentID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store failed"})
		return
	}

	token := domain.Token{
		AccessToken:   req.AccessToken,
		ExpiresAt:     now.Add(time.Duration(expiresIn) * time.Second),
		Status:        domain.TokenStatusActive,
		Scopes:        req.Scopes,
		LastRefreshed: now,
	}
	if err := h.repo.StoreToken(ctx, agentID, token); err != nil {
		h.logger.Error("failed to store token", zap.String("agent_id", agentID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store failed"})
		return
	}

	h.logger.Info("page connected",
		zap.String("agent_id", agentID),
		zap.String("page_id", req.PageID))
	c.JSON(http.StatusOK, gin.H{"status": "connected"})
}
