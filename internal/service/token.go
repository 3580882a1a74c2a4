package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/amitsajwan/AgenticAiProperties/internal/adapter/graph"
	"github.com/amitsajwan/AgenticAiProperties/internal/domain"
	"github.com/amitsajwan/AgenticAiProperties/internal/metrics"
	"github.com/amitsajwan/AgenticAiProperties/internal/repository"
)

// CredentialError reports a failed credential refresh. Dependent work is
// recoverable: the upstream redelivers and a later refresh may succeed.
type CredentialError struct {
	AgentID string
	Status  domain.TokenStatus
	Err     error
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("credential for agent %s (%s): %v", e.AgentID, e.Status, e.Err)
}

func (e *CredentialError) Unwrap() error { return e.Err }

// TokenService owns the credential lifecycle for every agent. Refreshes are
// single-flight per agent: concurrent callers share one outbound refresh and
// its result.
type TokenService struct {
	repo    repository.AgentRepository
	graph   graph.Client
	margin  time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
	flights singleflight.Group
	now     func() time.Time
}

// NewTokenService wires the token lifecycle manager. margin is the safety
// window before expiry within which a token is already treated as unusable.
func NewTokenService(repo repository.AgentRepository, graphClient graph.Client, margin time.Duration, logger *zap.Logger, m *metrics.Metrics) *TokenService {
	if margin <= 0 {
		margin = 5 * time.Minute
	}
	return &TokenService{
		repo:    repo,
		graph:   graphClient,
		margin:  margin,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// GetValidToken returns a token guaranteed usable at call time, refreshing
// it first when the stored one is expired, not active, or inside the safety
// margin.
func (s *TokenService) GetValidToken(ctx context.Context, agentID string) (domain.Token, error) {
	return s.ensure(ctx, agentID, s.margin)
}

// RefreshIfExpiring refreshes the agent's token when it expires within the
// given window. Used by the scheduled sweep; shares the same single-flight
// path as on-demand refreshes.
func (s *TokenService) RefreshIfExpiring(ctx context.Context, agentID string, window time.Duration) (domain.Token, error) {
	return s.ensure(ctx, agentID, window)
}

func (s *TokenService) ensure(ctx context.Context, agentID string, margin time.Duration) (domain.Token, error) {
	agent, err := s.repo.GetAgent(ctx, agentID)
	if err != nil {
		return domain.Token{}, err
	}
	if agent.Facebook.Token == nil {
		return domain.Token{}, domain.ErrTokenNotFound
	}
	if agent.Facebook.Token.Usable(s.now(), margin) {
		return *agent.Facebook.Token, nil
	}

	result, err, _ := s.flights.Do(agentID, func() (interface{}, error) {
		return s.refresh(ctx, agentID, margin)
	})
	if err != nil {
		return domain.Token{}, err
	}
	return result.(domain.Token), nil
}

// refresh runs inside the per-agent flight. It re-reads the stored token
// first so a caller that lost the race to a just-finished refresh does not
// trigger a second upstream call.
func (s *TokenService) refresh(ctx context.Context, agentID string, margin time.Duration) (domain.Token, error) {
	agent, err := s.repo.GetAgent(ctx, agentID)
	if err != nil {
		return domain.Token{}, err
	}
	current := agent.Facebook.Token
	if current == nil {
		return domain.Token{}, domain.ErrTokenNotFound
	}
	if current.Usable(s.now(), margin) {
		return *current, nil
	}

	grant, err := s.graph.RefreshToken(ctx, current.AccessToken)
	if err != nil {
		status := domain.TokenStatusExpired
		if errors.Is(err, graph.ErrTokenRevoked) {
			status = domain.TokenStatusRevoked
		}
		s.recordRefresh(string(status))
		if updateErr := s.repo.UpdateTokenStatus(ctx, agentID, status); updateErr != nil {
			s.logger.Error("failed to mark token status after refresh failure",
				zap.String("agent_id", agentID),
				zap.String("status", string(status)),
				zap.Error(updateErr))
		}
		return domain.Token{}, &CredentialError{AgentID: agentID, Status: status, Err: err}
	}

	now := s.now()
	refreshed := domain.Token{
		AccessToken:   grant.AccessToken,
		ExpiresAt:     now.Add(time.Duration(grant.ExpiresIn) * time.Second),
		Status:        domain.TokenStatusActive,
		Scopes:        grant.Scopes,
		LastRefreshed: now,
	}
	if len(refreshed.Scopes) == 0 {
		refreshed.Scopes = current.Scopes
	}

	// Persist before handing the token to waiters.
	if err := s.repo.StoreToken(ctx, agentID, refreshed); err != nil {
		s.recordRefresh("persist_error")
		return domain.Token{}, fmt.Errorf("persist refreshed token: %w", err)
	}

	s.recordRefresh("success")
	s.logger.Info("token refreshed",
		zap.String("agent_id", agentID),
		zap.Time("expires_at", refreshed.ExpiresAt))
	return refreshed, nil
}

func (s *TokenService) recordRefresh(outcome string) {
	if s.metrics != nil {
		s.metrics.TokenRefreshes.WithLabelValues(outcome).Inc()
	}
}
