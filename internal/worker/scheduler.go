package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/amitsajwan/AgenticAiProperties/internal/domain"
	"github.com/amitsajwan/AgenticAiProperties/internal/repository"
	"github.com/amitsajwan/AgenticAiProperties/internal/service"
)

// Scheduler runs the periodic sweeps: refresh credentials nearing expiry
// and pull fresh engagement for published posts. Both reuse the same
// idempotent paths as webhook-driven work, so overlap with concurrent
// deliveries is harmless.
type Scheduler struct {
	repo          repository.AgentRepository
	tokens        *service.TokenService
	sync          *service.SyncService
	interval      time.Duration
	refreshWindow time.Duration
	logger        *zap.Logger
}

// NewScheduler wires the sweep loop. interval defaults to one hour and
// refreshWindow to seven days.
func NewScheduler(repo repository.AgentRepository, tokens *service.TokenService, syncService *service.SyncService, interval, refreshWindow time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	if refreshWindow <= 0 {
		refreshWindow = 7 * 24 * time.Hour
	}
	return &Scheduler{
		repo:          repo,
		tokens:        tokens,
		sync:          syncService,
		interval:      interval,
		refreshWindow: refreshWindow,
		logger:        logger,
	}
}

// Run loops until ctx is done. Each tick runs both sweeps; a failing agent
// or post never stops the rest of the sweep.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RefreshExpiringTokens(ctx)
			s.SyncPublishedEngagements(ctx)
		}
	}
}

// RefreshExpiringTokens refreshes every credential expiring within the
// refresh window, through the same single-flight path as on-demand use.
func (s *Scheduler) RefreshExpiringTokens(ctx context.Context) {
	agentIDs, err := s.repo.ListAgentsWithExpiringTokens(ctx, time.Now().Add(s.refreshWindow))
	if err != nil {
		s.logger.Error("failed to list agents with expiring tokens", zap.Error(err))
		return
	}
	for _, agentID := range agentIDs {
		if _, err := s.tokens.RefreshIfExpiring(ctx, agentID, s.refreshWindow); err != nil {
			s.logger.Error("scheduled token refresh failed",
				zap.String("agent_id", agentID),
				zap.Error(err))
		}
	}
}

// SyncPublishedEngagements merges fresh insights for every published post.
func (s *Scheduler) SyncPublishedEngagements(ctx context.Context) {
	agents, err := s.repo.ListAgentsWithPublishedPosts(ctx)
	if err != nil {
		s.logger.Error("failed to list agents with published posts", zap.Error(err))
		return
	}
	for _, agent := range agents {
		for _, post := range agent.Facebook.Posts {
			if post.Status != domain.PostStatusPublished {
				continue
			}
			if err := s.sync.SyncPostMetrics(ctx, post.PostID); err != nil {
				s.logger.Error("scheduled engagement sync failed",
					zap.String("agent_id", agent.AgentID),
					zap.String("post_id", post.PostID),
					zap.Error(err))
			}
		}
	}
}
