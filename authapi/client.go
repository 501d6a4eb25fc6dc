// Package authapi is the wire layer for the AI Dock auth API. It covers the
// four endpoints the session core consumes (login, refresh, logout, profile)
// and normalizes the server's error bodies into a single message.
package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	defaultTimeout = 30 * time.Second

	loginPath   = "/auth/login"
	refreshPath = "/auth/refresh"
	logoutPath  = "/auth/logout"
	mePath      = "/auth/me"
)

// Client talks to the auth endpoints of a single AI Dock deployment.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout on the underlying HTTP client.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithLogger sets the client logger.
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Client for the given base URL, e.g.
// "https://api.example.com". A trailing slash is tolerated.
func NewClient(baseURL string, options ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     zerolog.Nop(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Login exchanges credentials for an access/refresh token pair.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	var resp TokenResponse
	if err := c.postJSON(ctx, loginPath, req, "", &resp); err != nil {
		return nil, errors.Wrap(err, "[Client.Login]")
	}
	return &resp, nil
}

// Refresh exchanges a refresh token for a new access token. The refresh
// token itself stays valid.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*AccessTokenResponse, error) {
	var resp AccessTokenResponse
	if err := c.postJSON(ctx, refreshPath, RefreshRequest{RefreshToken: refreshToken}, "", &resp); err != nil {
		return nil, errors.Wrap(err, "[Client.Refresh]")
	}
	return &resp, nil
}

// Logout notifies the server that the refresh token should be invalidated.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	if err := c.postJSON(ctx, logoutPath, LogoutRequest{RefreshToken: refreshToken}, "", nil); err != nil {
		return errors.Wrap(err, "[Client.Logout]")
	}
	return nil
}

// Me fetches the live profile of the user owning the access token.
func (c *Client) Me(ctx context.Context, accessToken string) (*UserProfile, error) {
	var profile UserProfile
	if err := c.doJSON(ctx, http.MethodGet, mePath, nil, accessToken, &profile); err != nil {
		return nil, errors.Wrap(err, "[Client.Me]")
	}
	return &profile, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, bearer string, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, payload, bearer, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload any, bearer string, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return errors.Wrap(err, "encoding request body")
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "creating request")
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "sending request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		apiErr := &Error{StatusCode: resp.StatusCode, Message: normalizeErrorMessage(raw)}
		c.logger.Debug().Int("status", resp.StatusCode).Str("path", path).Str("message", apiErr.Message).Msg("auth api error")
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decoding response body")
	}
	return nil
}
