package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrTokenRevoked signals that the platform explicitly rejected the
	// credential; refreshing again with the same token will not help.
	ErrTokenRevoked = errors.New("graph: token revoked")
	// ErrTokenRejected signals a refresh the platform declined for any
	// other OAuth reason.
	ErrTokenRejected = errors.New("graph: token rejected")
)

// TokenGrant is the result of a successful credential refresh.
type TokenGrant struct {
	AccessToken string
	ExpiresIn   int64
	Scopes      []string
}

// Client encapsulates outbound calls to the social platform.
type Client interface {
	RefreshToken(ctx context.Context, accessToken string) (*TokenGrant, error)
	FetchInsights(ctx context.Context, postID, accessToken string) (map[string]int64, error)
}

// Config carries the app credentials and API version for the HTTP client.
type Config struct {
	BaseURL    string
	APIVersion string
	AppID      string
	AppSecret  string
}

// HTTPClient is the default Client implementation against the Graph API.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	appID      string
	appSecret  string
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient constructs the default Client. A nil http.Client gets a
// bounded 10s timeout.
func NewHTTPClient(cfg Config, client *http.Client) *HTTPClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://graph.facebook.com"
	}
	version := cfg.APIVersion
	if version == "" {
		version = "v19.0"
	}
	return &HTTPClient{
		httpClient: client,
		baseURL:    base + "/" + version,
		appID:      cfg.AppID,
		appSecret:  cfg.AppSecret,
	}
}

type graphError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// RefreshToken exchanges the current token for a fresh long-lived one.
// An OAuth code 190 response means the credential itself was revoked and is
// surfaced as ErrTokenRevoked; other OAuth rejections as ErrTokenRejected.
func (c *HTTPClient) RefreshToken(ctx context.Context, accessToken string) (*TokenGrant, error) {
	query := url.Values{}
	query.Set("grant_type", "fb_exchange_token")
	query.Set("client_id", c.appID)
	query.Set("client_secret", c.appSecret)
	query.Set("fb_exchange_token", accessToken)

	body, status, err := c.get(ctx, c.baseURL+"/oauth/access_token?"+query.Encode())
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	if status >= 300 {
		var ge graphError
		if json.Unmarshal(body, &ge) == nil && ge.Error.Code == 190 {
			return nil, fmt.Errorf("%w: %s", ErrTokenRevoked, ge.Error.Message)
		}
		if status == http.StatusBadRequest || status == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: status=%d", ErrTokenRejected, status)
		}
		return nil, fmt.Errorf("refresh token: status=%d", status)
	}

	var raw struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
		Scope       string `json:"scope"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if raw.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty access_token", ErrTokenRejected)
	}

	grant := &TokenGrant{AccessToken: raw.AccessToken, ExpiresIn: raw.ExpiresIn}
	if raw.Scope != "" {
		for _, scope := range strings.Split(raw.Scope, ",") {
			if s := strings.TrimSpace(scope); s != "" {
				grant.Scopes = append(grant.Scopes, s)
			}
		}
	}
	return grant, nil
}

// FetchInsights loads engagement metrics for a post and flattens each metric
// to its latest numeric value. Non-numeric metric values are skipped.
func (c *HTTPClient) FetchInsights(ctx context.Context, postID, accessToken string) (map[string]int64, error) {
	query := url.Values{}
	query.Set("metric", "post_impressions,post_engaged_users,post_clicks")
	query.Set("access_token", accessToken)

	body, status, err := c.get(ctx, c.baseURL+"/"+url.PathEscape(postID)+"/insights?"+query.Encode())
	if err != nil {
		return nil, fmt.Errorf("fetch insights: %w", err)
	}
	if status >= 300 {
		var ge graphError
		if json.Unmarshal(body, &ge) == nil && ge.Error.Code == 190 {
			return nil, fmt.Errorf("%w: %s", ErrTokenRevoked, ge.Error.Message)
		}
		return nil, fmt.Errorf("fetch insights: status=%d", status)
	}

	var raw struct {
		Data []struct {
			Name   string `json:"name"`
			Values []struct {
				Value json.RawMessage `json:"value"`
			} `json:"values"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode insights: %w", err)
	}

	metrics := make(map[string]int64, len(raw.Data))
	for _, metric := range raw.Data {
		if metric.Name == "" || len(metric.Values) == 0 {
			continue
		}
		// Some metrics report structured values (e.g. reactions by type);
		// only plain numeric values are merged.
		var value int64
		latest := metric.Values[len(metric.Values)-1].Value
		if err := json.Unmarshal(latest, &value); err == nil {
			metrics[metric.Name] = value
		}
	}
	return metrics, nil
}

func (c *HTTPClient) get(ctx context.Context, rawURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}
