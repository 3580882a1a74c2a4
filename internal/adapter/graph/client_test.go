package graph

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(Config{
		BaseURL:    srv.URL,
		APIVersion: "v19.0",
		AppID:      "app-id",
		AppSecret:  "app-secret",
	}, srv.Client())
}

func TestRefreshToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v19.0/oauth/access_token", r.URL.Path)
		require.Equal(t, "fb_exchange_token", r.URL.Query().Get("grant_type"))
		require.Equal(t, "old-token", r.URL.Query().Get("fb_exchange_token"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"new-token","token_type":"bearer","expires_in":5183944,"scope":"pages_manage_posts, pages_read_engagement"}`))
	})

	grant, err := client.RefreshToken(context.Background(), "old-token")
	require.NoError(t, err)
	require.Equal(t, "new-token", grant.AccessToken)
	require.Equal(t, int64(5183944), grant.ExpiresIn)
	require.Equal(t, []string{"pages_manage_posts", "pages_read_engagement"}, grant.Scopes)
}

func TestRefreshTokenRevoked(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"Error validating access token","type":"OAuthException","code":190}}`))
	})

	_, err := client.RefreshToken(context.Background(), "old-token")
	require.ErrorIs(t, err, ErrTokenRevoked)
}

func TestRefreshTokenRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"Invalid request","type":"OAuthException","code":100}}`))
	})

	_, err := client.RefreshToken(context.Background(), "old-token")
	require.ErrorIs(t, err, ErrTokenRejected)
}

func TestFetchInsights(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v19.0/p42/insights", r.URL.Path)
		require.Equal(t, "page-token", r.URL.Query().Get("access_token"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[
			{"name":"post_impressions","values":[{"value":10},{"value":42}]},
			{"name":"post_engaged_users","values":[{"value":7}]},
			{"name":"post_reactions_by_type_total","values":[{"value":{"like":3}}]}
		]}`))
	})

	metrics, err := client.FetchInsights(context.Background(), "p42", "page-token")
	require.NoError(t, err)
	require.Equal(t, int64(42), metrics["post_impressions"], "latest value wins")
	require.Equal(t, int64(7), metrics["post_engaged_users"])
	_, ok := metrics["post_reactions_by_type_total"]
	require.False(t, ok, "structured values are skipped")
}

func TestFetchInsightsRevokedToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"expired","type":"OAuthException","code":190}}`))
	})

	_, err := client.FetchInsights(context.Background(), "p42", "bad-token")
	require.ErrorIs(t, err, ErrTokenRevoked)
}
