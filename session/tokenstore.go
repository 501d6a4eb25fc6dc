package session

import (
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/barambur26/go-aidock-client/store"
)

// Policy selects the backing store a record lives in. It is fixed at login
// time from the remember-me flag.
type Policy int

const (
	// PolicyEphemeral keeps the record in process memory only.
	PolicyEphemeral Policy = iota
	// PolicyPersistent keeps the record on disk so it survives a restart.
	PolicyPersistent
)

func (p Policy) String() string {
	if p == PolicyPersistent {
		return "persistent"
	}
	return "ephemeral"
}

func policyFromString(s string) (Policy, bool) {
	switch s {
	case "persistent":
		return PolicyPersistent, true
	case "ephemeral":
		return PolicyEphemeral, true
	}
	return PolicyEphemeral, false
}

const (
	sessionFileName = "session.json"
	policyFileName  = "policy"
)

// TokenStore persists the current session record under a durability policy.
// The policy marker itself is always durable so a later Load knows which
// backend to consult. Storage faults are absorbed: a corrupt or unreadable
// record is treated as absent, never surfaced to callers.
type TokenStore struct {
	durable   store.Backend
	ephemeral store.Backend
	marker    store.Backend
	logger    zerolog.Logger
	nowTime   func() time.Time
}

// TokenStoreOption configures a TokenStore.
type TokenStoreOption func(*TokenStore)

// WithStoreLogger sets the store logger.
func WithStoreLogger(logger zerolog.Logger) TokenStoreOption {
	return func(ts *TokenStore) {
		ts.logger = logger
	}
}

// WithStoreNowTime sets the now time function (primarily for testing).
func WithStoreNowTime(nowFunc func() time.Time) TokenStoreOption {
	return func(ts *TokenStore) {
		ts.nowTime = nowFunc
	}
}

// NewTokenStore builds a TokenStore over explicit backends. The marker
// backend should be durable; handing it a memory backend degrades persistent
// sessions to process lifetime.
func NewTokenStore(durable, ephemeral, marker store.Backend, options ...TokenStoreOption) *TokenStore {
	ts := &TokenStore{
		durable:   durable,
		ephemeral: ephemeral,
		marker:    marker,
		logger:    zerolog.Nop(),
		nowTime:   time.Now,
	}
	for _, opt := range options {
		opt(ts)
	}
	return ts
}

// NewFileTokenStore is the common wiring: file-backed durable store and
// policy marker under dir, in-memory ephemeral store.
func NewFileTokenStore(dir string, options ...TokenStoreOption) *TokenStore {
	return NewTokenStore(
		store.NewFileBackend(filepath.Join(dir, sessionFileName)),
		store.NewMemoryBackend(),
		store.NewFileBackend(filepath.Join(dir, policyFileName)),
		options...,
	)
}

// Load reads the record from the policy-selected backend. An expired record
// is wiped and reported absent; so is anything corrupt or unreadable.
func (ts *TokenStore) Load() (*Record, Policy, bool) {
	policy, ok := ts.loadPolicy()
	if !ok {
		return nil, PolicyEphemeral, false
	}

	data, found, err := ts.backendFor(policy).Load()
	if err != nil {
		ts.logger.Debug().Err(err).Msg("session store unreadable, treating as absent")
		return nil, policy, false
	}
	if !found {
		return nil, policy, false
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		ts.logger.Debug().Err(err).Msg("session store corrupt, wiping")
		ts.wipe()
		return nil, policy, false
	}

	// A JWT exp claim earlier than the stored expiry wins.
	if exp, ok := accessTokenExpiry(rec.AccessToken); ok && exp.Before(rec.ExpiresAt) {
		rec.ExpiresAt = exp
	}

	if !rec.Valid(ts.nowTime()) {
		ts.logger.Debug().Time("expires_at", rec.ExpiresAt).Msg("persisted session expired, wiping")
		ts.wipe()
		return nil, policy, false
	}
	return &rec, policy, true
}

// Save writes the record to exactly the backend implied by policy, clears the
// other one, and records the policy durably.
func (ts *TokenStore) Save(rec *Record, policy Policy) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := ts.backendFor(policy).Save(data); err != nil {
		return err
	}
	if err := ts.otherBackend(policy).Clear(); err != nil {
		ts.logger.Debug().Err(err).Msg("clearing unused session backend failed")
	}
	return ts.marker.Save([]byte(policy.String()))
}

// Clear removes the record from both backends and drops the policy marker.
// Idempotent.
func (ts *TokenStore) Clear() {
	ts.wipe()
}

func (ts *TokenStore) wipe() {
	if err := ts.durable.Clear(); err != nil {
		ts.logger.Debug().Err(err).Msg("clearing durable session store failed")
	}
	if err := ts.ephemeral.Clear(); err != nil {
		ts.logger.Debug().Err(err).Msg("clearing ephemeral session store failed")
	}
	if err := ts.marker.Clear(); err != nil {
		ts.logger.Debug().Err(err).Msg("clearing policy marker failed")
	}
}

func (ts *TokenStore) loadPolicy() (Policy, bool) {
	data, found, err := ts.marker.Load()
	if err != nil {
		ts.logger.Debug().Err(err).Msg("policy marker unreadable, treating session as absent")
		return PolicyEphemeral, false
	}
	if !found {
		return PolicyEphemeral, false
	}
	policy, ok := policyFromString(string(data))
	if !ok {
		ts.logger.Debug().Str("marker", string(data)).Msg("unknown policy marker, wiping")
		ts.wipe()
		return PolicyEphemeral, false
	}
	return policy, true
}

func (ts *TokenStore) backendFor(policy Policy) store.Backend {
	if policy == PolicyPersistent {
		return ts.durable
	}
	return ts.ephemeral
}

func (ts *TokenStore) otherBackend(policy Policy) store.Backend {
	if policy == PolicyPersistent {
		return ts.ephemeral
	}
	return ts.durable
}
