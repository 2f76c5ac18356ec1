// Package api is the single point of HTTP access to the marketplace backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"marketbot/pkg/market"
)

// DefaultTimeout bounds a single backend request.
const DefaultTimeout = 10 * time.Second

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 4 << 20

// Client talks to the marketplace REST API. It never retries; callers decide.
type Client struct {
	client  *http.Client
	logger  *slog.Logger
	baseURL string
}

// New creates a client for the backend rooted at baseURL.
// A nil httpClient gets one with DefaultTimeout.
func New(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		client:  httpClient,
		logger:  logger,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string { return c.baseURL }

// Request performs one call. body, when non-nil, is sent as JSON. token, when
// non-empty, is sent as a bearer credential. On success the response is
// decoded into out (which may be nil to discard it).
func (c *Client) Request(ctx context.Context, method, endpoint string, body any, token string, out any) error {
	target := c.baseURL + endpoint

	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.logger.Debug("HTTP request starting", "method", method, "url", target)

	startTime := time.Now()
	resp, err := c.client.Do(req)
	duration := time.Since(startTime)
	if err != nil {
		c.logger.Warn("HTTP request failed",
			"method", method,
			"url", target,
			"duration_ms", duration.Milliseconds(),
			"error", err)
		return &ConnectivityError{URL: c.baseURL, Err: err}
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("Failed to close response body", "error", closeErr)
		}
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &ConnectivityError{URL: c.baseURL, Err: fmt.Errorf("read response: %w", err)}
	}

	c.logger.Debug("HTTP request completed",
		"method", method,
		"url", target,
		"status_code", resp.StatusCode,
		"duration_ms", duration.Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: errorMessage(resp.StatusCode, data)}
		c.logger.Warn("Backend returned error status",
			"method", method,
			"url", target,
			"status_code", resp.StatusCode,
			"message", apiErr.Message)
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &SchemaError{Endpoint: endpoint, Err: err}
	}
	return nil
}

type adList struct {
	Ads *[]*market.Advertisement `json:"ads"`
}

type commentList struct {
	Comments *[]*market.Comment `json:"comments"`
}

func (c *Client) ads(ctx context.Context, endpoint, token string) ([]*market.Advertisement, error) {
	var out adList
	if err := c.Request(ctx, http.MethodGet, endpoint, nil, token, &out); err != nil {
		return nil, err
	}
	if out.Ads == nil {
		return nil, &SchemaError{Endpoint: endpoint, Err: errors.New(`missing "ads" array`)}
	}
	for i, ad := range *out.Ads {
		if ad == nil || ad.ID == "" {
			return nil, &SchemaError{Endpoint: endpoint, Err: fmt.Errorf("ads[%d] has no id", i)}
		}
	}
	return *out.Ads, nil
}

func (c *Client) comments(ctx context.Context, endpoint, token string) ([]*market.Comment, error) {
	var out commentList
	if err := c.Request(ctx, http.MethodGet, endpoint, nil, token, &out); err != nil {
		return nil, err
	}
	if out.Comments == nil {
		return nil, &SchemaError{Endpoint: endpoint, Err: errors.New(`missing "comments" array`)}
	}
	for i, cm := range *out.Comments {
		if cm == nil || cm.ID == "" {
			return nil, &SchemaError{Endpoint: endpoint, Err: fmt.Errorf("comments[%d] has no id", i)}
		}
	}
	return *out.Comments, nil
}

// ListAds returns every advertisement.
func (c *Client) ListAds(ctx context.Context, token string) ([]*market.Advertisement, error) {
	return c.ads(ctx, "/advertisements", token)
}

// Ad returns one advertisement by ID.
func (c *Client) Ad(ctx context.Context, id market.ID, token string) (*market.Advertisement, error) {
	endpoint := "/advertisements/" + url.PathEscape(id.String())
	var ad market.Advertisement
	if err := c.Request(ctx, http.MethodGet, endpoint, nil, token, &ad); err != nil {
		return nil, err
	}
	if ad.ID == "" {
		return nil, &SchemaError{Endpoint: endpoint, Err: errors.New("advertisement without id")}
	}
	return &ad, nil
}

// ChannelAds returns the advertisements flagged for channel distribution.
func (c *Client) ChannelAds(ctx context.Context) ([]*market.Advertisement, error) {
	return c.ads(ctx, "/advertisements/getWhatsAppAdDetails/", "")
}

// MarkBoosted records that an advertisement was distributed through the channel.
func (c *Client) MarkBoosted(ctx context.Context, id market.ID) error {
	return c.Request(ctx, http.MethodPost, "/advertisements/boostwhtsappid/"+url.PathEscape(id.String()), nil, "", nil)
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, creds market.Credentials) (*market.Auth, error) {
	const endpoint = "/auth/login"
	var auth market.Auth
	if err := c.Request(ctx, http.MethodPost, endpoint, creds, "", &auth); err != nil {
		return nil, err
	}
	if auth.Token == "" {
		return nil, &SchemaError{Endpoint: endpoint, Err: errors.New("login response without token")}
	}
	return &auth, nil
}

// Profile returns the account behind token.
func (c *Client) Profile(ctx context.Context, token string) (*market.Profile, error) {
	const endpoint = "/auth/profile"
	var p market.Profile
	if err := c.Request(ctx, http.MethodGet, endpoint, nil, token, &p); err != nil {
		return nil, err
	}
	if p.Email == "" {
		return nil, &SchemaError{Endpoint: endpoint, Err: errors.New("profile without email")}
	}
	return &p, nil
}

// AddComment creates a comment on an advertisement.
func (c *Client) AddComment(ctx context.Context, nc market.NewComment, token string) (*market.Comment, error) {
	const endpoint = "/comments"
	var cm market.Comment
	if err := c.Request(ctx, http.MethodPost, endpoint, nc, token, &cm); err != nil {
		return nil, err
	}
	if cm.ID == "" {
		return nil, &SchemaError{Endpoint: endpoint, Err: errors.New("comment without id")}
	}
	return &cm, nil
}

// AdComments returns the comments on one advertisement.
func (c *Client) AdComments(ctx context.Context, adID market.ID, token string) ([]*market.Comment, error) {
	return c.comments(ctx, "/comments/ad/"+url.PathEscape(adID.String()), token)
}

// AllComments returns every comment.
func (c *Client) AllComments(ctx context.Context, token string) ([]*market.Comment, error) {
	return c.comments(ctx, "/comments", token)
}
