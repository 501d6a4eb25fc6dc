// Package transport provides the request-signing RoundTripper that every API
// client in the application can mount to attach the current bearer token and
// participate in the 401-recovery protocol.
package transport

import (
	"context"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	headerAuthorization = "Authorization"
	headerRequestID     = "X-Request-ID"
)

// SessionRefresher is the slice of the session manager the gate needs.
type SessionRefresher interface {
	// AccessToken returns the current bearer token; ok is true only while
	// the token is still valid.
	AccessToken() (token string, ok bool)
	// RefreshIfStale renews the access token unless it already changed from
	// staleAccessToken.
	RefreshIfStale(ctx context.Context, staleAccessToken string) error
}

// Gate is an http.RoundTripper that attaches the session's access token to
// outgoing requests and recovers from an expired-credential response with a
// single-flight renewal and exactly one retry. Original requests are never
// mutated; each attempt works on a clone, and the attempt number is threaded
// explicitly rather than hidden on the request.
type Gate struct {
	base              http.RoundTripper
	session           SessionRefresher
	onUnauthenticated func()
	logger            zerolog.Logger
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithBase sets the underlying RoundTripper (default http.DefaultTransport).
func WithBase(rt http.RoundTripper) GateOption {
	return func(g *Gate) {
		g.base = rt
	}
}

// WithOnUnauthenticated registers a callback fired when recovery fails and
// the session has been cleared, so the host application can send the user to
// a login view.
func WithOnUnauthenticated(fn func()) GateOption {
	return func(g *Gate) {
		g.onUnauthenticated = fn
	}
}

// WithGateLogger sets the gate logger.
func WithGateLogger(logger zerolog.Logger) GateOption {
	return func(g *Gate) {
		g.logger = logger
	}
}

// NewGate creates a Gate over the given session.
func NewGate(session SessionRefresher, options ...GateOption) *Gate {
	g := &Gate{
		base:    http.DefaultTransport,
		session: session,
		logger:  zerolog.Nop(),
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

// Client returns an *http.Client using the gate as its transport.
func (g *Gate) Client() *http.Client {
	return &http.Client{Transport: g}
}

// RoundTrip implements http.RoundTripper.
func (g *Gate) RoundTrip(req *http.Request) (*http.Response, error) {
	return g.do(req, 0)
}

func (g *Gate) do(req *http.Request, attempt int) (*http.Response, error) {
	out := req.Clone(req.Context())
	if attempt > 0 && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, errors.Wrap(err, "[Gate] rewinding request body")
		}
		out.Body = body
	}

	token, ok := g.session.AccessToken()
	if ok {
		out.Header.Set(headerAuthorization, "Bearer "+token)
	}
	if out.Header.Get(headerRequestID) == "" {
		out.Header.Set(headerRequestID, uuid.NewString())
	}

	resp, err := g.base.RoundTrip(out)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	// Already retried once: hard stop, the failure propagates unchanged.
	if attempt >= 1 {
		return resp, nil
	}
	// A consumed body that cannot be rewound is not replayable.
	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}

	if err := g.session.RefreshIfStale(req.Context(), token); err != nil {
		g.logger.Debug().Err(err).Str("url", req.URL.String()).Msg("renewal after 401 failed")
		if g.onUnauthenticated != nil {
			g.onUnauthenticated()
		}
		return resp, nil
	}

	drain(resp)
	g.logger.Debug().Str("url", req.URL.String()).Msg("retrying request with renewed token")
	return g.do(req, attempt+1)
}

// drain discards and closes a response body so the connection can be reused.
func drain(resp *http.Response) {
	if resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
