package repository

import (
	"context"
	"time"

	"github.com/amitsajwan/AgenticAiProperties/internal/domain"
)

// AgentRepository exposes the aggregate mutation shapes the engine needs:
// read one by agent ID, targeted array-element updates by post_id match, and
// singleton-field writes for token/page. Implementations must never replace
// the whole document.
type AgentRepository interface {
	GetAgent(ctx context.Context, agentID string) (domain.AgentIntegration, error)
	FindAgentByPostID(ctx context.Context, postID string) (domain.AgentIntegration, error)

	UpdatePostStatus(ctx context.Context, agentID, postID string, status domain.PostStatus, at time.Time) error
	MergePostEngagement(ctx context.Context, agentID, postID string, engagement map[string]int64, at time.Time) error

	StoreToken(ctx context.Context, agentID string, token domain.Token) error
	UpdateTokenStatus(ctx context.Context, agentID string, status domain.TokenStatus) error
	StorePage(ctx context.Context, agentID string, page domain.Page) error

	ListAgentsWithExpiringTokens(ctx context.Context, before time.Time) ([]string, error)
	ListAgentsWithPublishedPosts(ctx context.Context) ([]domain.AgentIntegration, error)
}

// DeliveryCache suppresses redundant processing of redelivered events.
// Advisory only: correctness relies on idempotent application, not on this
// cache being present or consistent. Callers record a key only after the
// event applied cleanly, so a failed application stays eligible for retry
// on redelivery.
type DeliveryCache interface {
	// Seen reports whether the event key was recorded within its TTL.
	Seen(ctx context.Context, key string) (bool, error)
	// MarkSeen records the event key for the given TTL.
	MarkSeen(ctx context.Context, key string, ttl time.Duration) error
}
