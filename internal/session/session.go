// Package session keeps at most one pending conversation per subscriber.
//
// Each session owns a timeout timer. Replacing, advancing or ending a session
// stops its timer and bumps a generation number, so a timer that fires late
// for an older generation does nothing.
package session

import (
	"sync"
	"time"

	"uptimeninja/internal/metrics"
)

type State string

const (
	AwaitingMonitorName State = "awaiting-monitor-name"
	AwaitingMonitorURL  State = "awaiting-monitor-url"
	AwaitingStatusURL   State = "awaiting-status-url"
	AwaitingSSLURL      State = "awaiting-ssl-url"
	AwaitingEmail       State = "awaiting-email"
)

const DefaultTimeout = 60 * time.Second

type Session struct {
	SubscriberID int64
	State        State
	// Name is the monitor name captured before the URL prompt.
	Name     string
	Deadline time.Time

	gen uint64
}

// Timer is the subset of *time.Timer the store needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc satisfies it via a wrapper.
type AfterFunc func(d time.Duration, f func()) Timer

type Option func(*Store)

// WithClock replaces the wall clock and timer source; tests use it to fire
// timeouts by hand.
func WithClock(now func() time.Time, after AfterFunc) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
		if after != nil {
			s.after = after
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

type entry struct {
	s     Session
	timer Timer
}

type Store struct {
	mu      sync.Mutex
	timeout time.Duration
	seq     uint64
	entries map[int64]*entry

	onExpire func(Session)
	now      func() time.Time
	after    AfterFunc
	metrics  *metrics.Metrics
}

// NewStore creates a store. onExpire runs on the timer goroutine after the
// session has been removed.
func NewStore(timeout time.Duration, onExpire func(Session), opts ...Option) *Store {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	s := &Store{
		timeout:  timeout,
		entries:  map[int64]*entry{},
		onExpire: onExpire,
		now:      time.Now,
		after: func(d time.Duration, f func()) Timer {
			return time.AfterFunc(d, f)
		},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SetTimeout applies to sessions started or advanced afterwards.
func (s *Store) SetTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultTimeout
	}
	s.mu.Lock()
	s.timeout = d
	s.mu.Unlock()
}

// Begin starts a session in state, replacing any live one. prev is the
// replaced session when replaced is true.
func (s *Store) Begin(subscriberID int64, state State) (prev Session, replaced bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[subscriberID]; ok {
		e.timer.Stop()
		prev, replaced = e.s, true
		s.metrics.SessionEnded("canceled")
	}
	s.entries[subscriberID] = s.armLocked(Session{SubscriberID: subscriberID, State: state})
	s.metrics.SessionStarted()
	return prev, replaced
}

// Advance moves a live session to state and restarts its timeout.
func (s *Store) Advance(subscriberID int64, state State, name string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[subscriberID]
	if !ok {
		return Session{}, false
	}
	e.timer.Stop()
	next := e.s
	next.State, next.Name = state, name
	ne := s.armLocked(next)
	s.entries[subscriberID] = ne
	return ne.s, true
}

func (s *Store) armLocked(sess Session) *entry {
	s.seq++
	sess.gen = s.seq
	sess.Deadline = s.now().Add(s.timeout)
	id, gen := sess.SubscriberID, sess.gen
	return &entry{s: sess, timer: s.after(s.timeout, func() { s.expire(id, gen) })}
}

func (s *Store) Get(subscriberID int64) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[subscriberID]
	if !ok {
		return Session{}, false
	}
	return e.s, true
}

// End removes a completed session.
func (s *Store) End(subscriberID int64) (Session, bool) {
	return s.remove(subscriberID, "done")
}

// Cancel removes a session superseded by a command.
func (s *Store) Cancel(subscriberID int64) (Session, bool) {
	return s.remove(subscriberID, "canceled")
}

func (s *Store) remove(subscriberID int64, reason string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[subscriberID]
	if !ok {
		return Session{}, false
	}
	e.timer.Stop()
	delete(s.entries, subscriberID)
	s.metrics.SessionEnded(reason)
	return e.s, true
}

func (s *Store) expire(subscriberID int64, gen uint64) {
	s.mu.Lock()
	e, ok := s.entries[subscriberID]
	if !ok || e.s.gen != gen {
		s.mu.Unlock()
		return
	}
	delete(s.entries, subscriberID)
	s.metrics.SessionEnded("timeout")
	s.mu.Unlock()

	if s.onExpire != nil {
		s.onExpire(e.s)
	}
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close stops every pending timer without firing expiry callbacks.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entries {
		e.timer.Stop()
		delete(s.entries, id)
	}
}
