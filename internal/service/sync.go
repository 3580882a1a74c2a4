package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/amitsajwan/AgenticAiProperties/internal/adapter/cache"
	"github.com/amitsajwan/AgenticAiProperties/internal/adapter/graph"
	"github.com/amitsajwan/AgenticAiProperties/internal/domain"
	"github.com/amitsajwan/AgenticAiProperties/internal/metrics"
	"github.com/amitsajwan/AgenticAiProperties/internal/repository"
	"github.com/amitsajwan/AgenticAiProperties/internal/webhook"
)

const dedupeTTL = 10 * time.Minute

// SyncService applies classified webhook events to the agent aggregate:
// post status transitions, engagement merges, and the per-delivery dispatch
// loop. All applications are safe under at-least-once redelivery.
type SyncService struct {
	repo    repository.AgentRepository
	tokens  *TokenService
	graph   graph.Client
	dedupe  repository.DeliveryCache
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewSyncService wires the dispatcher and its two appliers. dedupe may be
// nil; suppression is then disabled and idempotency alone carries
// redelivery safety.
func NewSyncService(repo repository.AgentRepository, tokens *TokenService, graphClient graph.Client, dedupe repository.DeliveryCache, logger *zap.Logger, m *metrics.Metrics) *SyncService {
	return &SyncService{
		repo:    repo,
		tokens:  tokens,
		graph:   graphClient,
		dedupe:  dedupe,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// ProcessDelivery routes every event of one delivery. A failing event never
// prevents its siblings from being processed; failures are joined and
// returned for logging by the caller.
func (s *SyncService) ProcessDelivery(ctx context.Context, delivery *webhook.Delivery) error {
	var errs []error
	for _, event := range delivery.Events {
		if err := s.processEvent(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", event.Kind(), err))
			s.recordEvent(event.Kind(), "error")
			continue
		}
		s.recordEvent(event.Kind(), "ok")
	}
	return errors.Join(errs...)
}

func (s *SyncService) processEvent(ctx context.Context, event webhook.Event) error {
	switch ev := event.(type) {
	case webhook.FeedPostEvent:
		key := cache.EventKey("feed_post", ev.PostID, ev.Verb)
		if s.alreadySeen(ctx, key) {
			return nil
		}
		if err := s.ApplyFeedPost(ctx, ev); err != nil {
			return err
		}
		s.markSeen(ctx, key)
		return nil
	case webhook.FeedCommentEvent:
		key := cache.EventKey("feed_comment", ev.PostID, ev.CommentID, ev.Verb)
		if s.alreadySeen(ctx, key) {
			return nil
		}
		if err := s.SyncPostMetrics(ctx, ev.PostID); err != nil {
			return err
		}
		s.markSeen(ctx, key)
		return nil
	case webhook.MessagingEvent:
		s.logger.Info("messaging event received", zap.ByteString("payload", ev.Raw))
		return nil
	case webhook.UnrecognizedEvent:
		s.logger.Info("unrecognized change ignored", zap.String("field", ev.Field))
		return nil
	default:
		s.logger.Warn("unknown event kind", zap.String("kind", event.Kind()))
		return nil
	}
}

// ApplyFeedPost maps the verb to a target status and applies it to the
// owning agent's post. Idempotent: reapplying the same verb converges to the
// same stored status. A missing post is a warning no-op so a late delivery
// for a removed post never creates a record, and terminal statuses are never
// exited.
func (s *SyncService) ApplyFeedPost(ctx context.Context, event webhook.FeedPostEvent) error {
	next := domain.StatusForVerb(event.Verb)

	agent, err := s.repo.FindAgentByPostID(ctx, event.PostID)
	if errors.Is(err, domain.ErrAgentNotFound) {
		s.logger.Warn("post not found for status update",
			zap.String("post_id", event.PostID),
			zap.String("verb", event.Verb))
		return nil
	}
	if err != nil {
		return fmt.Errorf("locate post owner: %w", err)
	}

	if current, ok := findPost(agent, event.PostID); ok && current.Status.Terminal() && current.Status != next {
		s.logger.Warn("ignoring transition out of terminal status",
			zap.String("post_id", event.PostID),
			zap.String("current", string(current.Status)),
			zap.String("verb", event.Verb))
		return nil
	}

	err = s.repo.UpdatePostStatus(ctx, agent.AgentID, event.PostID, next, s.now())
	if errors.Is(err, domain.ErrPostNotFound) {
		s.logger.Warn("post disappeared before status update", zap.String("post_id", event.PostID))
		return nil
	}
	if err != nil {
		return err
	}

	s.logger.Info("post status updated",
		zap.String("agent_id", agent.AgentID),
		zap.String("post_id", event.PostID),
		zap.String("verb", event.Verb),
		zap.String("status", string(next)))
	return nil
}

// SyncPostMetrics fetches engagement for the post and merges it into the
// owning agent's record. Requires a valid token; a credential failure
// abandons only this sync and is recoverable via redelivery.
func (s *SyncService) SyncPostMetrics(ctx context.Context, postID string) error {
	agent, err := s.repo.FindAgentByPostID(ctx, postID)
	if errors.Is(err, domain.ErrAgentNotFound) {
		s.logger.Warn("post not found for metrics sync", zap.String("post_id", postID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("locate post owner: %w", err)
	}

	token, err := s.tokens.GetValidToken(ctx, agent.AgentID)
	if err != nil {
		return fmt.Errorf("acquire token: %w", err)
	}

	insights, err := s.graph.FetchInsights(ctx, postID, token.AccessToken)
	if err != nil {
		return fmt.Errorf("fetch insights: %w", err)
	}
	if len(insights) == 0 {
		s.logger.Debug("no insights returned", zap.String("post_id", postID))
		return nil
	}

	err = s.repo.MergePostEngagement(ctx, agent.AgentID, postID, insights, s.now())
	if errors.Is(err, domain.ErrPostNotFound) {
		s.logger.Warn("post disappeared before engagement merge", zap.String("post_id", postID))
		return nil
	}
	if err != nil {
		return err
	}

	s.logger.Info("engagement merged",
		zap.String("agent_id", agent.AgentID),
		zap.String("post_id", postID),
		zap.Int("metrics", len(insights)))
	return nil
}

// alreadySeen consults the optional dedupe cache. Any cache error counts as
// not seen: processing twice is safe, skipping work by mistake is not.
func (s *SyncService) alreadySeen(ctx context.Context, key string) bool {
	if s.dedupe == nil {
		return false
	}
	seen, err := s.dedupe.Seen(ctx, key)
	if err != nil {
		s.logger.Debug("dedupe cache unavailable", zap.Error(err))
		return false
	}
	if seen {
		s.logger.Debug("duplicate event suppressed", zap.String("key", key))
	}
	return seen
}

// markSeen records the key after the event applied cleanly. A failed apply
// never marks, so redelivery of that event is processed again.
func (s *SyncService) markSeen(ctx context.Context, key string) {
	if s.dedupe == nil {
		return
	}
	if err := s.dedupe.MarkSeen(ctx, key, dedupeTTL); err != nil {
		s.logger.Debug("dedupe cache unavailable", zap.Error(err))
	}
}

func (s *SyncService) recordEvent(kind, outcome string) {
	if s.metrics != nil {
		s.metrics.EventsProcessed.WithLabelValues(kind, outcome).Inc()
	}
}

func findPost(agent domain.AgentIntegration, postID string) (domain.Post, bool) {
	for _, post := range agent.Facebook.Posts {
		if post.PostID == postID {
			return post, true
		}
	}
	return domain.Post{}, false
}
