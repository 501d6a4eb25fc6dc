package session

import (
	"sync"
	"time"
)

// DefaultSafetyMargin is how long before expiry a proactive renewal fires.
const DefaultSafetyMargin = 2 * time.Minute

// Scheduler owns the one-shot timer driving proactive renewal. At most one
// timer is armed at a time; every Schedule cancels the previous one. The
// scheduler never retries on its own — a failed proactive renewal is handled
// by the manager's clear path.
type Scheduler struct {
	margin  time.Duration
	nowTime func() time.Time
	fire    func()

	mu    sync.Mutex
	timer *time.Timer
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerNowTime sets the now time function (primarily for testing).
func WithSchedulerNowTime(nowFunc func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		s.nowTime = nowFunc
	}
}

// NewScheduler creates a scheduler invoking fire when a renewal is due.
func NewScheduler(margin time.Duration, fire func(), options ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		margin:  margin,
		nowTime: time.Now,
		fire:    fire,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// refreshDelay computes how long to wait before renewing a token expiring at
// expiresAt. Zero or negative means the margin has already been entered and
// no timer should be armed; the reactive path covers that window.
func refreshDelay(now, expiresAt time.Time, margin time.Duration) time.Duration {
	return expiresAt.Sub(now) - margin
}

// Schedule arms the timer for the given expiry, cancelling any previous
// timer. Inside the safety margin nothing is armed.
func (s *Scheduler) Schedule(expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelLocked()

	delay := refreshDelay(s.nowTime(), expiresAt, s.margin)
	if delay <= 0 {
		return
	}

	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		s.mu.Lock()
		if s.timer == t {
			s.timer = nil
		}
		s.mu.Unlock()
		s.fire()
	})
	s.timer = t
}

// Cancel clears any pending timer. Idempotent.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
}

// Pending reports whether a timer is currently armed.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

func (s *Scheduler) cancelLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
