// Package session holds the client-side session lifecycle: login, logout,
// proactive and reactive credential renewal, and persistence of the session
// record across restarts.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/barambur26/go-aidock-client/authapi"
)

var (
	// ErrNotAuthenticated is returned by operations requiring a live session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrNoRefreshToken is returned by Refresh when no refresh token is held.
	ErrNoRefreshToken = errors.New("no refresh token held")
	// ErrSessionCleared is returned when a renewal completed after the
	// session was cleared; its result has been discarded.
	ErrSessionCleared = errors.New("session cleared during renewal")
)

// API is the slice of the auth backend the manager consumes.
type API interface {
	Login(ctx context.Context, req authapi.LoginRequest) (*authapi.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*authapi.AccessTokenResponse, error)
	Logout(ctx context.Context, refreshToken string) error
	Me(ctx context.Context, accessToken string) (*authapi.UserProfile, error)
}

// Credentials is the login input. Bounds mirror the server-side schema.
type Credentials struct {
	Username   string `validate:"required,min=3,max=50"`
	Password   string `validate:"required,min=8,max=100"`
	RememberMe bool
}

// Manager owns the canonical session record and serializes every renewal
// through a single-flight guard, so the scheduler's timer and any number of
// concurrently failing requests produce exactly one renewal call.
type Manager struct {
	api      API
	store    *TokenStore
	sched    *Scheduler
	logger   zerolog.Logger
	nowTime  func() time.Time
	margin   time.Duration
	validate *validator.Validate

	mu     sync.RWMutex
	record *Record
	policy Policy
	epoch  uint64

	renewals singleflight.Group
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) Option {
	return func(m *Manager) {
		m.nowTime = nowFunc
	}
}

// WithSafetyMargin sets how long before expiry the proactive renewal fires.
func WithSafetyMargin(margin time.Duration) Option {
	return func(m *Manager) {
		m.margin = margin
	}
}

// NewManager creates a Manager, restores any persisted session from the
// store, and arms the proactive renewal timer when the restored record is
// still outside the safety margin.
func NewManager(api API, tokenStore *TokenStore, options ...Option) (*Manager, error) {
	if api == nil {
		return nil, errors.New("[NewManager] api is required")
	}
	if tokenStore == nil {
		return nil, errors.New("[NewManager] token store is required")
	}

	m := &Manager{
		api:      api,
		store:    tokenStore,
		logger:   zerolog.Nop(),
		nowTime:  time.Now,
		margin:   DefaultSafetyMargin,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range options {
		opt(m)
	}
	m.sched = NewScheduler(m.margin, m.proactiveRefresh, WithSchedulerNowTime(m.nowTime))

	if rec, policy, ok := m.store.Load(); ok {
		m.record = rec
		m.policy = policy
		m.sched.Schedule(rec.ExpiresAt)
		m.logger.Debug().Time("expires_at", rec.ExpiresAt).Str("policy", policy.String()).Msg("session restored")
	}
	return m, nil
}

// Login authenticates against the login endpoint and installs the resulting
// session under the policy implied by RememberMe.
func (m *Manager) Login(ctx context.Context, creds Credentials) (*Record, error) {
	if err := m.validate.Struct(creds); err != nil {
		return nil, errors.Wrap(err, "[Manager.Login] invalid credentials")
	}

	resp, err := m.api.Login(ctx, authapi.LoginRequest{
		Username:   creds.Username,
		Password:   creds.Password,
		RememberMe: creds.RememberMe,
	})
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.Login]")
	}

	user := resp.User
	if user == nil {
		user, err = m.api.Me(ctx, resp.AccessToken)
		if err != nil {
			m.logger.Warn().Err(err).Msg("profile fetch after login failed")
			user = nil
		}
	}

	rec := &Record{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    m.nowTime().Add(time.Duration(resp.ExpiresIn) * time.Second),
		User:         user,
	}
	policy := PolicyEphemeral
	if creds.RememberMe {
		policy = PolicyPersistent
	}

	// Install, persist and re-arm as one commit under the lock, so a clear
	// cannot slip between the in-memory install and the store write.
	m.mu.Lock()
	m.record = rec
	m.policy = policy
	m.epoch++ // a renewal of the previous session must not land on this one
	if err := m.store.Save(rec, policy); err != nil {
		m.logger.Warn().Err(err).Msg("persisting session failed")
	}
	m.sched.Schedule(rec.ExpiresAt)
	m.mu.Unlock()

	m.logger.Info().Str("policy", policy.String()).Time("expires_at", rec.ExpiresAt).Msg("logged in")
	return rec, nil
}

// Refresh renews the access token. Concurrent callers share one renewal
// call. Any failure clears the whole session, refresh token included; a
// failed renewal is terminal and forces re-login.
func (m *Manager) Refresh(ctx context.Context) error {
	return m.RefreshIfStale(ctx, "")
}

// RefreshIfStale renews the access token unless it already changed from
// staleAccessToken, in which case another caller's renewal has done the work
// and no network call is made. An empty staleAccessToken renews
// unconditionally.
func (m *Manager) RefreshIfStale(ctx context.Context, staleAccessToken string) error {
	m.mu.RLock()
	rec := m.record
	m.mu.RUnlock()

	if rec == nil || rec.RefreshToken == "" {
		return ErrNoRefreshToken
	}
	if staleAccessToken != "" && rec.AccessToken != staleAccessToken {
		return nil
	}

	_, err, _ := m.renewals.Do("renew", func() (any, error) {
		return nil, m.renew(ctx, staleAccessToken)
	})
	return err
}

// renew runs inside the single-flight group. The staleness check is repeated
// here because a caller may enter the group just after a previous flight
// finished; without the re-check it would issue a redundant renewal.
func (m *Manager) renew(ctx context.Context, staleAccessToken string) error {
	m.mu.RLock()
	prev := m.record
	epoch := m.epoch
	m.mu.RUnlock()

	if prev == nil || prev.RefreshToken == "" {
		return ErrNoRefreshToken
	}
	if staleAccessToken != "" && prev.AccessToken != staleAccessToken {
		return nil
	}

	resp, err := m.api.Refresh(ctx, prev.RefreshToken)
	if err != nil {
		if !m.clearIfEpoch(epoch) {
			return ErrSessionCleared
		}
		m.logger.Warn().Err(err).Msg("renewal failed, session cleared")
		return errors.Wrap(err, "[Manager.Refresh]")
	}

	next := &Record{
		AccessToken:  resp.AccessToken,
		RefreshToken: prev.RefreshToken,
		ExpiresAt:    m.nowTime().Add(time.Duration(resp.ExpiresIn) * time.Second),
		User:         prev.User,
	}

	// The epoch check, the store write and the timer re-arm form one commit
	// under the lock. Were the lock released before persisting, a logout
	// landing in between would be overwritten and the cleared session would
	// come back from disk on the next restart.
	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return ErrSessionCleared
	}
	m.record = next
	if err := m.store.Save(next, m.policy); err != nil {
		m.logger.Warn().Err(err).Msg("persisting renewed session failed")
	}
	m.sched.Schedule(next.ExpiresAt)
	m.mu.Unlock()

	m.logger.Debug().Time("expires_at", next.ExpiresAt).Msg("access token renewed")
	return nil
}

// Logout notifies the server on a best-effort basis and unconditionally
// clears local state; a failing network call never blocks the local logout.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.RLock()
	rec := m.record
	m.mu.RUnlock()

	if rec != nil && rec.RefreshToken != "" {
		if err := m.api.Logout(ctx, rec.RefreshToken); err != nil {
			m.logger.Warn().Err(err).Msg("logout notify failed")
		}
	}
	m.clear()
	m.logger.Info().Msg("logged out")
}

// IsAuthenticated reports whether a record exists and its expiry is in the
// future. Pure and synchronous; no network access.
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.record.Valid(m.nowTime())
}

// CurrentUser returns the user snapshot cached in the current record, or nil.
func (m *Manager) CurrentUser() *authapi.UserProfile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.record == nil {
		return nil
	}
	return m.record.User
}

// AccessToken returns the current bearer token. ok is true only while the
// token is still valid.
func (m *Manager) AccessToken() (token string, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.record == nil {
		return "", false
	}
	return m.record.AccessToken, m.record.Valid(m.nowTime())
}

// Profile fetches the live user profile from the server, as opposed to the
// snapshot cached at login time. The cached snapshot is updated on success.
func (m *Manager) Profile(ctx context.Context) (*authapi.UserProfile, error) {
	m.mu.RLock()
	rec := m.record
	epoch := m.epoch
	m.mu.RUnlock()

	if !rec.Valid(m.nowTime()) {
		return nil, ErrNotAuthenticated
	}

	user, err := m.api.Me(ctx, rec.AccessToken)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.Profile]")
	}

	m.mu.Lock()
	if m.epoch == epoch && m.record != nil {
		next := *m.record
		next.User = user
		m.record = &next
	}
	m.mu.Unlock()
	return user, nil
}

// proactiveRefresh is the scheduler's fire function. Failures are not
// retried; the renew failure path has already cleared the session.
func (m *Manager) proactiveRefresh() {
	if err := m.Refresh(context.Background()); err != nil {
		m.logger.Warn().Err(err).Msg("proactive renewal failed")
	}
}

// clear drops the record, advances the epoch so in-flight renewals are
// discarded, cancels the pending timer, and wipes the store. The wipe stays
// under the lock so it orders strictly against a renewal's commit.
func (m *Manager) clear() {
	m.mu.Lock()
	m.record = nil
	m.epoch++
	m.sched.Cancel()
	m.store.Clear()
	m.mu.Unlock()
}

// clearIfEpoch clears only when the epoch still matches, so a renewal
// failing after a logout/login cannot nuke the newer session. Reports
// whether the clear happened.
func (m *Manager) clearIfEpoch(epoch uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch {
		return false
	}
	m.record = nil
	m.epoch++
	m.sched.Cancel()
	m.store.Clear()
	return true
}
