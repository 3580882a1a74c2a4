package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amitsajwan/AgenticAiProperties/internal/adapter/graph"
	"github.com/amitsajwan/AgenticAiProperties/internal/domain"
	"github.com/amitsajwan/AgenticAiProperties/internal/metrics"
	"github.com/amitsajwan/AgenticAiProperties/internal/service"
	"github.com/amitsajwan/AgenticAiProperties/internal/webhook"
	"github.com/amitsajwan/AgenticAiProperties/internal/worker"
)

const testAppSecret = "unit-test-app-secret"

func TestDeliverAppliesFeedDelete(t *testing.T) {
	h := newWebhookHarness(t)
	h.repo.seed("a1", domain.Post{PostID: "p42", Status: domain.PostStatusPublished})

	body := `{"object":"page","entry":[{"id":"pg1","changes":[{"field":"feed","value":{"post_id":"p42","item":"post","verb":"delete"}}]}]}`
	w := h.post(body, h.verifier.Sign([]byte(body)))

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"status":"ok"`)
	require.Equal(t, domain.PostStatusDeleted, h.repo.post("a1", "p42").Status)
}

func TestDeliverInvalidSignatureLeavesStateUntouched(t *testing.T) {
	h := newWebhookHarness(t)
	h.repo.seed("a1", domain.Post{PostID: "p42", Status: domain.PostStatusPublished})

	body := `{"object":"page","entry":[{"id":"pg1","changes":[{"field":"feed","value":{"post_id":"p42","item":"post","verb":"delete"}}]}]}`
	w := h.post(body, "sha256=deadbeef")

	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, domain.PostStatusPublished, h.repo.post("a1", "p42").Status)
}

func TestDeliverMissingSignatureHeader(t *testing.T) {
	h := newWebhookHarness(t)

	w := h.post(`{"object":"page","entry":[]}`, "")

	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestDeliverMalformedPayload(t *testing.T) {
	h := newWebhookHarness(t)

	body := `{"object": "page", "entry": [`
	w := h.post(body, h.verifier.Sign([]byte(body)))

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "malformed")
}

func TestDeliverSchemaInvalidPayload(t *testing.T) {
	h := newWebhookHarness(t)

	body := `{"object":"page","updates":[]}`
	w := h.post(body, h.verifier.Sign([]byte(body)))

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "structure")
}

func TestDeliverOversizedBody(t *testing.T) {
	h := newWebhookHarness(t)

	body := strings.Repeat("a", maxDeliveryBytes+1)
	w := h.post(body, h.verifier.Sign([]byte(body)))

	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestDeliverQueueSaturated(t *testing.T) {
	h := newWebhookHarness(t)
	h.handler.pool = saturatedSubmitter{}

	body := `{"object":"page","entry":[]}`
	w := h.post(body, h.verifier.Sign([]byte(body)))

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestVerifyEchoesChallenge(t *testing.T) {
	h := newWebhookHarness(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/webhooks/facebook?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=1158201444", nil)
	h.engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "1158201444", w.Body.String())
}

func TestVerifyRejectsWrongToken(t *testing.T) {
	h := newWebhookHarness(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/webhooks/facebook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=42", nil)
	h.engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusForbidden, w.Code)
}

// ---- Test harness and fakes ----

type webhookHarness struct {
	repo     *stubAgentRepo
	verifier *webhook.Verifier
	handler  *WebhookHandler
	engine   *gin.Engine
}

func newWebhookHarness(t *testing.T) *webhookHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := newStubAgentRepo()
	logger := zap.NewNop()
	m := metrics.New()
	graphClient := stubGraph{}
	tokens := service.NewTokenService(repo, graphClient, time.Minute, logger, m)
	syncService := service.NewSyncService(repo, tokens, graphClient, nil, logger, m)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	verifier := webhook.NewVerifier(testAppSecret)
	h := NewWebhookHandler(verifier, "verify-me", syncService, inlineSubmitter{}, node, logger, m)

	engine := gin.New()
	engine.GET("/webhooks/facebook", h.Verify)
	engine.POST("/webhooks/facebook", h.Deliver)

	return &webhookHarness{repo: repo, verifier: verifier, handler: h, engine: engine}
}

func (h *webhookHarness) post(body, signature string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/facebook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(webhook.SignatureHeader, signature)
	}
	h.engine.ServeHTTP(w, req)
	return w
}

// inlineSubmitter runs submitted tasks synchronously so assertions can
// observe their effects right after the request returns.
type inlineSubmitter struct{}

func (inlineSubmitter) Submit(task worker.Task) error {
	task(context.Background())
	return nil
}

type saturatedSubmitter struct{}

func (saturatedSubmitter) Submit(worker.Task) error {
	return worker.ErrQueueFull
}

type stubGraph struct{}

func (stubGraph) RefreshToken(context.Context, string) (*graph.TokenGrant, error) {
	return nil, graph.ErrTokenRejected
}

func (stubGraph) FetchInsights(context.Context, string, string) (map[string]int64, error) {
	return nil, graph.ErrTokenRejected
}

type stubAgentRepo struct {
	mu     sync.Mutex
	agents map[string]*domain.AgentIntegration
}

func newStubAgentRepo() *stubAgentRepo {
	return &stubAgentRepo{agents: make(map[string]*domain.AgentIntegration)}
}

func (r *stubAgentRepo) seed(agentID string, posts ...domain.Post) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[agentID] = &domain.AgentIntegration{
		AgentID:  agentID,
		Facebook: domain.FacebookData{Posts: posts},
	}
}

func (r *stubAgentRepo) post(agentID, postID string) domain.Post {
	r.mu.Lock()
	defer r.mu.Unlock()
	agent, ok := r.agents[agentID]
	if !ok {
		return domain.Post{}
	}
	for _, p := range agent.Facebook.Posts {
		if p.PostID == postID {
			return p
		}
	}
	return domain.Post{}
}

func (r *stubAgentRepo) GetAgent(_ context.Context, agentID string) (domain.AgentIntegration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	agent, ok := r.agents[agentID]
	if !ok {
		return domain.AgentIntegration{}, domain.ErrAgentNotFound
	}
	return *agent, nil
}

func (r *stubAgentRepo) FindAgentByPostID(_ context.Context, postID string) (domain.AgentIntegration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, agent := range r.agents {
		for _, p := range agent.Facebook.Posts {
			if p.PostID == postID {
				return *agent, nil
			}
		}
	}
	return domain.AgentIntegration{}, domain.ErrAgentNotFound
}

func (r *stubAgentRepo) UpdatePostStatus(_ context.Context, agentID, postID string, status domain.PostStatus, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	agent, ok := r.agents[agentID]
	if !ok {
		return domain.ErrAgentNotFound
	}
	for i := range agent.Facebook.Posts {
		if agent.Facebook.Posts[i].PostID == postID {
			agent.Facebook.Posts[i].Status = status
			agent.Facebook.Posts[i].LastUpdated = at
			return nil
		}
	}
	return domain.ErrPostNotFound
}

func (r *stubAgentRepo) MergePostEngagement(_ context.Context, agentID, postID string, engagement map[string]int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	agent, ok := r.agents[agentID]
	if !ok {
		return domain.ErrAgentNotFound
	}
	for i := range agent.Facebook.Posts {
		if agent.Facebook.Posts[i].PostID == postID {
			if agent.Facebook.Posts[i].Engagement == nil {
				agent.Facebook.Posts[i].Engagement = make(map[string]int64)
			}
			for k, v := range engagement {
				agent.Facebook.Posts[i].Engagement[k] = v
			}
			agent.Facebook.Posts[i].LastUpdated = at
			return nil
		}
	}
	return domain.ErrPostNotFound
}

func (r *stubAgentRepo) StoreToken(_ context.Context, agentID string, token domain.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	agent, ok := r.agents[agentID]
	if !ok {
		agent = &domain.AgentIntegration{AgentID: agentID}
		r.agents[agentID] = agent
	}
	agent.Facebook.Token = &token
	return nil
}

func (r *stubAgentRepo) UpdateTokenStatus(_ context.Context, agentID string, status domain.TokenStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	agent, ok := r.agents[agentID]
	if !ok || agent.Facebook.Token == nil {
		return domain.ErrTokenNotFound
	}
	agent.Facebook.Token.Status = status
	return nil
}

func (r *stubAgentRepo) StorePage(_ context.Context, agentID string, page domain.Page) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	agent, ok := r.agents[agentID]
	if !ok {
		agent = &domain.AgentIntegration{AgentID: agentID}
		r.agents[agentID] = agent
	}
	agent.Facebook.Page = &page
	return nil
}

func (r *stubAgentRepo) ListAgentsWithExpiringTokens(context.Context, time.Time) ([]string, error) {
	return nil, nil
}

func (r *stubAgentRepo) ListAgentsWithPublishedPosts(context.Context) ([]domain.AgentIntegration, error) {
	return nil, nil
}
