package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

// fire runs timer i regardless of whether it was stopped, like a timer that
// already fired concurrently with Stop.
func (c *fakeClock) fire(i int) {
	c.mu.Lock()
	t := c.timers[i]
	c.mu.Unlock()
	t.f()
}

func newTestStore(t *testing.T) (*Store, *fakeClock, *[]Session) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	var expired []Session
	s := NewStore(time.Minute, func(s Session) { expired = append(expired, s) }, WithClock(clock.Now, clock.AfterFunc))
	return s, clock, &expired
}

func TestBeginAndTimeout(t *testing.T) {
	s, clock, expired := newTestStore(t)

	_, replaced := s.Begin(1, AwaitingMonitorName)
	assert.False(t, replaced)
	sess, ok := s.Get(1)
	require.True(t, ok)
	assert.Equal(t, AwaitingMonitorName, sess.State)
	assert.Equal(t, clock.now.Add(time.Minute), sess.Deadline)
	require.Len(t, clock.timers, 1)
	assert.Equal(t, time.Minute, clock.timers[0].d)

	clock.fire(0)
	_, ok = s.Get(1)
	assert.False(t, ok)
	require.Len(t, *expired, 1)
	assert.Equal(t, AwaitingMonitorName, (*expired)[0].State)
}

func TestBeginReplacesAndStaleTimerIsNoop(t *testing.T) {
	s, clock, expired := newTestStore(t)

	s.Begin(1, AwaitingMonitorName)
	prev, replaced := s.Begin(1, AwaitingStatusURL)
	assert.True(t, replaced)
	assert.Equal(t, AwaitingMonitorName, prev.State)
	assert.True(t, clock.timers[0].stopped)

	clock.fire(0)
	assert.Empty(t, *expired)
	sess, ok := s.Get(1)
	require.True(t, ok)
	assert.Equal(t, AwaitingStatusURL, sess.State)
	assert.Equal(t, 1, s.Len())
}

func TestAdvanceRestartsTimeout(t *testing.T) {
	s, clock, expired := newTestStore(t)

	s.Begin(1, AwaitingMonitorName)
	clock.now = clock.now.Add(30 * time.Second)
	sess, ok := s.Advance(1, AwaitingMonitorURL, "shop")
	require.True(t, ok)
	assert.Equal(t, "shop", sess.Name)
	assert.Equal(t, clock.now.Add(time.Minute), sess.Deadline)
	assert.True(t, clock.timers[0].stopped)

	clock.fire(0)
	assert.Empty(t, *expired, "timer of the name step must not expire the url step")

	clock.fire(1)
	require.Len(t, *expired, 1)
	assert.Equal(t, AwaitingMonitorURL, (*expired)[0].State)

	_, ok = s.Advance(1, AwaitingMonitorURL, "x")
	assert.False(t, ok)
}

func TestEndAndCancelStopTimers(t *testing.T) {
	s, clock, expired := newTestStore(t)

	s.Begin(1, AwaitingEmail)
	s.Begin(2, AwaitingSSLURL)

	_, ok := s.End(1)
	assert.True(t, ok)
	_, ok = s.Cancel(2)
	assert.True(t, ok)
	_, ok = s.Cancel(2)
	assert.False(t, ok)

	assert.True(t, clock.timers[0].stopped)
	assert.True(t, clock.timers[1].stopped)
	clock.fire(0)
	clock.fire(1)
	assert.Empty(t, *expired)
	assert.Zero(t, s.Len())
}

func TestSubscribersAreIndependent(t *testing.T) {
	s, clock, expired := newTestStore(t)

	s.Begin(1, AwaitingEmail)
	s.Begin(2, AwaitingEmail)
	clock.fire(0)

	require.Len(t, *expired, 1)
	assert.Equal(t, int64(1), (*expired)[0].SubscriberID)
	_, ok := s.Get(2)
	assert.True(t, ok)
}

func TestRealTimerExpires(t *testing.T) {
	done := make(chan Session, 1)
	s := NewStore(20*time.Millisecond, func(s Session) { done <- s })
	defer s.Close()

	s.Begin(5, AwaitingStatusURL)
	select {
	case sess := <-done:
		assert.Equal(t, int64(5), sess.SubscriberID)
	case <-time.After(2 * time.Second):
		t.Fatal("session did not expire")
	}
}
