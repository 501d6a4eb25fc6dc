package session

import (
	"context"

	"golang.org/x/oauth2"
)

// TokenSource adapts the manager to oauth2.TokenSource so oauth2-aware
// clients can consume the session. The returned source serves the cached
// token while valid and renews through the manager's single-flight guard
// otherwise.
func (m *Manager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &managerTokenSource{ctx: ctx, m: m}
}

type managerTokenSource struct {
	ctx context.Context
	m   *Manager
}

func (ts *managerTokenSource) Token() (*oauth2.Token, error) {
	if token, ok := ts.m.AccessToken(); ok {
		return ts.oauthToken(token), nil
	}
	if err := ts.m.Refresh(ts.ctx); err != nil {
		return nil, err
	}
	token, ok := ts.m.AccessToken()
	if !ok {
		return nil, ErrNotAuthenticated
	}
	return ts.oauthToken(token), nil
}

func (ts *managerTokenSource) oauthToken(accessToken string) *oauth2.Token {
	ts.m.mu.RLock()
	defer ts.m.mu.RUnlock()
	tok := &oauth2.Token{AccessToken: accessToken, TokenType: "bearer"}
	if ts.m.record != nil {
		tok.Expiry = ts.m.record.ExpiresAt
	}
	return tok
}
