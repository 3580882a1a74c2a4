package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/amitsajwan/AgenticAiProperties/internal/domain"
)

const (
	postsPath = "facebook.posts"
	tokenPath = "facebook.token"
	pagePath  = "facebook.page"
)

// MongoAgentRepo persists the agent aggregate as one document per agent
// (_id = agent_id). Post mutations use the positional operator against a
// post_id match; token and page writes $set the singleton paths. No method
// ever writes the whole document.
type MongoAgentRepo struct {
	collection *mongo.Collection
}

var _ AgentRepository = (*MongoAgentRepo)(nil)

// NewMongoAgentRepo constructs the repository on the given collection.
func NewMongoAgentRepo(collection *mongo.Collection) *MongoAgentRepo {
	return &MongoAgentRepo{collection: collection}
}

// GetAgent loads one aggregate by agent ID.
func (r *MongoAgentRepo) GetAgent(ctx context.Context, agentID string) (domain.AgentIntegration, error) {
	var agent domain.AgentIntegration
	err := r.collection.FindOne(ctx, bson.M{"_id": agentID}).Decode(&agent)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.AgentIntegration{}, domain.ErrAgentNotFound
	}
	if err != nil {
		return domain.AgentIntegration{}, fmt.Errorf("get agent: %w", err)
	}
	return agent, nil
}

// FindAgentByPostID loads the aggregate owning the given post.
func (r *MongoAgentRepo) FindAgentByPostID(ctx context.Context, postID string) (domain.AgentIntegration, error) {
	var agent domain.AgentIntegration
	err := r.collection.FindOne(ctx, bson.M{postsPath + ".post_id": postID}).Decode(&agent)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.AgentIntegration{}, domain.ErrAgentNotFound
	}
	if err != nil {
		return domain.AgentIntegration{}, fmt.Errorf("find agent by post: %w", err)
	}
	return agent, nil
}

// UpdatePostStatus sets the matched post's status and last_updated. Safe to
// apply more than once; a second application of the same status only bumps
// last_updated.
func (r *MongoAgentRepo) UpdatePostStatus(ctx context.Context, agentID, postID string, status domain.PostStatus, at time.Time) error {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": agentID, postsPath + ".post_id": postID},
		bson.M{"$set": bson.M{
			postsPath + ".$.status":       status,
			postsPath + ".$.last_updated": at,
		}},
	)
	if err != nil {
		return fmt.Errorf("update post status: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrPostNotFound
	}
	return nil
}

// MergePostEngagement merges metric values into the matched post's
// engagement map one key at a time, so writers touching different metrics
// never clobber each other, and bumps last_updated.
func (r *MongoAgentRepo) MergePostEngagement(ctx context.Context, agentID, postID string, engagement map[string]int64, at time.Time) error {
	set := bson.M{postsPath + ".$.last_updated": at}
	for name, value := range engagement {
		set[postsPath+".$.engagement."+name] = value
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": agentID, postsPath + ".post_id": postID},
		bson.M{"$set": set},
	)
	if err != nil {
		return fmt.Errorf("merge engagement: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrPostNotFound
	}
	return nil
}

// StoreToken replaces the singleton credential, upserting the aggregate if
// the agent has no document yet.
func (r *MongoAgentRepo) StoreToken(ctx context.Context, agentID string, token domain.Token) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": agentID},
		bson.M{"$set": bson.M{tokenPath: token}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	return nil
}

// UpdateTokenStatus flips only the credential's status field.
func (r *MongoAgentRepo) UpdateTokenStatus(ctx context.Context, agentID string, status domain.TokenStatus) error {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": agentID, tokenPath: bson.M{"$exists": true}},
		bson.M{"$set": bson.M{tokenPath + ".status": status}},
	)
	if err != nil {
		return fmt.Errorf("update token status: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrTokenNotFound
	}
	return nil
}

// StorePage replaces the singleton page connection, upserting the aggregate
// if needed.
func (r *MongoAgentRepo) StorePage(ctx context.Context, agentID string, page domain.Page) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": agentID},
		bson.M{"$set": bson.M{pagePath: page}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("store page: %w", err)
	}
	return nil
}

// ListAgentsWithExpiringTokens returns IDs of agents whose token expires
// before the given instant. Revoked and limited credentials are excluded:
// the upstream already rejected them, so sweeping them again only burns
// rate-limited refresh calls.
func (r *MongoAgentRepo) ListAgentsWithExpiringTokens(ctx context.Context, before time.Time) ([]string, error) {
	cursor, err := r.collection.Find(ctx,
		bson.M{
			tokenPath + ".expires_at": bson.M{"$lt": before},
			tokenPath + ".status": bson.M{"$in": bson.A{
				domain.TokenStatusActive,
				domain.TokenStatusExpired,
			}},
		},
		options.Find().SetProjection(bson.M{"_id": 1}),
	)
	if err != nil {
		return nil, fmt.Errorf("list expiring tokens: %w", err)
	}
	defer cursor.Close(ctx)

	var ids []string
	for cursor.Next(ctx) {
		var doc struct {
			AgentID string `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode agent id: %w", err)
		}
		ids = append(ids, doc.AgentID)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("list expiring tokens: %w", err)
	}
	return ids, nil
}

// ListAgentsWithPublishedPosts returns every aggregate holding at least one
// published post.
func (r *MongoAgentRepo) ListAgentsWithPublishedPosts(ctx context.Context) ([]domain.AgentIntegration, error) {
	cursor, err := r.collection.Find(ctx, bson.M{postsPath + ".status": domain.PostStatusPublished})
	if err != nil {
		return nil, fmt.Errorf("list agents with published posts: %w", err)
	}
	defer cursor.Close(ctx)

	var agents []domain.AgentIntegration
	if err := cursor.All(ctx, &agents); err != nil {
		return nil, fmt.Errorf("decode agents: %w", err)
	}
	return agents, nil
}
