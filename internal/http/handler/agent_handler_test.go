package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amitsajwan/AgenticAiProperties/internal/domain"
)

func TestStatusUnknownAgent(t *testing.T) {
	engine, _ := newAgentHarness(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/facebook/status/agents/missing", nil)
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatusReportsConnection(t *testing.T) {
	engine, repo := newAgentHarness(t)
	repo.seed("a1", domain.Post{PostID: "p1", Status: domain.PostStatusPublished})
	require.NoError(t, repo.StorePage(context.Background(), "a1", domain.Page{PageID: "pg1", Name: "Test Page"}))
	require.NoError(t, repo.StoreToken(context.Background(), "a1", domain.Token{
		AccessToken: "tok",
		Status:      domain.TokenStatusActive,
		ExpiresAt:   time.Now().Add(time.Hour),
	}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/facebook/status/agents/a1", nil)
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"token_valid":true`)
	require.Contains(t, w.Body.String(), `"page_connected":true`)
	require.Contains(t, w.Body.String(), `"posts":1`)
}

func TestStatusExpiredToken(t *testing.T) {
	engine, repo := newAgentHarness(t)
	repo.seed("a1")
	require.NoError(t, repo.StoreToken(context.Background(), "a1", domain.Token{
		AccessToken: "tok",
		Status:      domain.TokenStatusExpired,
		ExpiresAt:   time.Now().Add(-time.Hour),
	}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/facebook/status/agents/a1", nil)
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"token_valid":false`)
	require.Contains(t, w.Body.String(), `"token_status":"expired"`)
}

func TestConnectPageStoresSingletons(t *testing.T) {
	engine, repo := newAgentHarness(t)
	repo.seed("a1", domain.Post{PostID: "p1", Status: domain.PostStatusPublished})

	body := `{"page_id":"pg9","name":"My Page","access_token":"long-lived","scopes":["pages_manage_posts"]}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/facebook/agents/a1/page", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	agent, err := repo.GetAgent(context.Background(), "a1")
	require.NoError(t, err)
	require.NotNil(t, agent.Facebook.Page)
	require.Equal(t, "pg9", agent.Facebook.Page.PageID)
	require.NotNil(t, agent.Facebook.Token)
	require.Equal(t, "long-lived", agent.Facebook.Token.AccessToken)
	require.Equal(t, domain.TokenStatusActive, agent.Facebook.Token.Status)
	require.True(t, agent.Facebook.Token.ExpiresAt.After(time.Now().Add(24*time.Hour)))
	// the post history must survive a reconnect
	require.Len(t, agent.Facebook.Posts, 1)
}

func TestConnectPageRejectsMissingFields(t *testing.T) {
	engine, _ := newAgentHarness(t)

	body := `{"name":"No IDs"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/facebook/agents/a1/page", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

// ---- Test harness ----

func newAgentHarness(t *testing.T) (*gin.Engine, *stubAgentRepo) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := newStubAgentRepo()
	h := NewAgentHandler(repo, zap.NewNop())

	engine := gin.New()
	engine.GET("/api/facebook/status/agents/:agent_id", h.Status)
	engine.POST("/api/facebook/agents/:agent_id/page", h.ConnectPage)

	return engine, repo
}
