package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshDelay(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Expiry 3 minutes out with a 2 minute margin fires in 1 minute.
	assert.Equal(t, time.Minute, refreshDelay(now, now.Add(3*time.Minute), 2*time.Minute))

	// Expiry 1 minute out is already inside the margin.
	assert.Equal(t, -time.Minute, refreshDelay(now, now.Add(time.Minute), 2*time.Minute))

	assert.Equal(t, time.Duration(0), refreshDelay(now, now.Add(2*time.Minute), 2*time.Minute))
}

func TestScheduleInsideMarginArmsNothing(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := NewScheduler(2*time.Minute, func() { t.Error("timer must not fire") },
		WithSchedulerNowTime(func() time.Time { return now }),
	)

	s.Schedule(now.Add(time.Minute))
	assert.False(t, s.Pending())

	// Exactly on the margin boundary counts as inside.
	s.Schedule(now.Add(2 * time.Minute))
	assert.False(t, s.Pending())
}

func TestScheduleOutsideMarginArmsTimer(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := NewScheduler(2*time.Minute, func() {},
		WithSchedulerNowTime(func() time.Time { return now }),
	)

	s.Schedule(now.Add(3 * time.Minute))
	assert.True(t, s.Pending())

	s.Cancel()
	assert.False(t, s.Pending())

	// Cancel with nothing armed is fine.
	s.Cancel()
}

func TestScheduleFires(t *testing.T) {
	t.Parallel()

	fired := make(chan struct{})
	s := NewScheduler(10*time.Millisecond, func() { close(fired) })

	s.Schedule(time.Now().Add(30 * time.Millisecond))
	require.True(t, s.Pending())

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire")
	}
	assert.False(t, s.Pending())
}

func TestScheduleReplacesPreviousTimer(t *testing.T) {
	t.Parallel()

	fired := make(chan struct{}, 2)
	s := NewScheduler(10*time.Millisecond, func() { fired <- struct{}{} })

	// The first timer is cancelled by the second Schedule; only one fire.
	s.Schedule(time.Now().Add(40 * time.Millisecond))
	s.Schedule(time.Now().Add(60 * time.Millisecond))

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire")
	}

	select {
	case <-fired:
		t.Fatal("cancelled timer fired as well")
	case <-time.After(200 * time.Millisecond):
	}
}
