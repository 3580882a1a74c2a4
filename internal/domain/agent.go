package domain

import "time"

// AgentIntegration is the per-agent aggregate: one document keyed by the
// agent ID holding the Facebook credential, the connected page, and the
// post history. All writes address nested fields, never the whole document.
type AgentIntegration struct {
	AgentID  string       `bson:"_id" json:"agent_id"`
	Facebook FacebookData `bson:"facebook" json:"facebook"`
}

// FacebookData groups everything the engine owns under the aggregate.
type FacebookData struct {
	Token *Token `bson:"token,omitempty" json:"token,omitempty"`
	Page  *Page  `bson:"page,omitempty" json:"page,omitempty"`
	Posts []Post `bson:"posts,omitempty" json:"posts,omitempty"`
}

// Post is one entry of the agent's post history. PostID is unique within
// the agent's sequence.
type Post struct {
	PostID      string           `bson:"post_id" json:"post_id"`
	Content     string           `bson:"content,omitempty" json:"content,omitempty"`
	Images      []string         `bson:"images,omitempty" json:"images,omitempty"`
	Status      PostStatus       `bson:"status" json:"status"`
	Engagement  map[string]int64 `bson:"engagement,omitempty" json:"engagement,omitempty"`
	CreatedAt   time.Time        `bson:"created_at" json:"created_at"`
	LastUpdated time.Time        `bson:"last_updated,omitempty" json:"last_updated,omitempty"`
	Error       string           `bson:"error,omitempty" json:"error,omitempty"`
}

// Page is the singleton page connection for an agent.
type Page struct {
	PageID      string    `bson:"page_id" json:"page_id"`
	Name        string    `bson:"name,omitempty" json:"name,omitempty"`
	ConnectedAt time.Time `bson:"connected_at" json:"connected_at"`
}

// Token is the singleton platform credential for an agent.
type Token struct {
	AccessToken   string      `bson:"access_token" json:"access_token"`
	ExpiresAt     time.Time   `bson:"expires_at" json:"expires_at"`
	Status        TokenStatus `bson:"status" json:"status"`
	Scopes        []string    `bson:"scopes,omitempty" json:"scopes,omitempty"`
	LastRefreshed time.Time   `bson:"last_refreshed" json:"last_refreshed"`
}

// Usable reports whether the token can be handed out as-is: active and not
// expiring within the safety margin.
func (t *Token) Usable(now time.Time, margin time.Duration) bool {
	if t == nil || t.Status != TokenStatusActive {
		return false
	}
	return t.ExpiresAt.After(now.Add(margin))
}

// TokenStatus is the lifecycle state of a platform credential.
type TokenStatus string

const (
	TokenStatusActive  TokenStatus = "active"
	TokenStatusExpired TokenStatus = "expired"
	TokenStatusRevoked TokenStatus = "revoked"
	TokenStatusLimited TokenStatus = "limited"
)
