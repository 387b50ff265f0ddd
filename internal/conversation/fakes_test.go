package conversation

import (
	"context"
	"errors"
	"sync"
	"time"

	"uptimeninja/internal/monitor"
	"uptimeninja/internal/session"
	kit "uptimeninja/internal/transport"
)

type fakeAdapter struct {
	mu   sync.Mutex
	msgs []string
	opts []*kit.SendOptions
}

func (f *fakeAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error                     { return nil }
func (f *fakeAdapter) SendText(_ context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, text)
	f.opts = append(f.opts, opt)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.msgs)}, nil
}
func (f *fakeAdapter) EditText(context.Context, kit.MessageRef, string, *kit.SendOptions) error {
	return nil
}
func (f *fakeAdapter) AnswerCallback(context.Context, string, string) error { return nil }

func (f *fakeAdapter) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.msgs...)
}

type fakeMonitor struct {
	mu         sync.Mutex
	registered map[string]monitor.Endpoint // key: url
	status     map[string]monitor.Status
	cert       monitor.CertMeta
	certErr    error
	refreshed  []string
	now        time.Time
}

func newFakeMonitor() *fakeMonitor {
	return &fakeMonitor{
		registered: map[string]monitor.Endpoint{},
		status:     map[string]monitor.Status{},
		now:        time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (m *fakeMonitor) Register(_ context.Context, sub int64, name, url string) (monitor.Endpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.registered[url]; ok {
		return monitor.Endpoint{}, monitor.ErrAlreadyMonitored
	}
	ep := monitor.Endpoint{ID: int64(len(m.registered) + 1), SubscriberID: sub, Name: name, URL: url, Status: monitor.StatusUnknown}
	m.registered[url] = ep
	return ep, nil
}

func (m *fakeMonitor) RefreshCertificate(_ context.Context, _ int64, url string) (monitor.CertMeta, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.certErr != nil {
		return monitor.CertMeta{}, false, m.certErr
	}
	m.refreshed = append(m.refreshed, url)
	_, ok := m.registered[url]
	return m.cert, ok, nil
}

func (m *fakeMonitor) Check(_ context.Context, url string) (monitor.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.status[url]; ok {
		return st, nil
	}
	return monitor.StatusDown, errors.New("dial tcp: no such host")
}

func (m *fakeMonitor) Now() time.Time { return m.now }

type memRegistry struct {
	mu  sync.Mutex
	eps []monitor.Endpoint
}

func (r *memRegistry) Exists(_ context.Context, sub int64, url string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ep := range r.eps {
		if ep.SubscriberID == sub && ep.URL == url {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRegistry) Insert(_ context.Context, ep monitor.Endpoint) (monitor.Endpoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ep.ID = int64(len(r.eps) + 1)
	r.eps = append(r.eps, ep)
	return ep, nil
}

func (r *memRegistry) Delete(_ context.Context, sub int64, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.eps[:0]
	for _, ep := range r.eps {
		if ep.SubscriberID != sub || ep.URL != url {
			out = append(out, ep)
		}
	}
	r.eps = out
	return nil
}

func (r *memRegistry) DeleteAll(_ context.Context, sub int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.eps[:0]
	for _, ep := range r.eps {
		if ep.SubscriberID != sub {
			out = append(out, ep)
		}
	}
	r.eps = out
	return nil
}

func (r *memRegistry) List(_ context.Context, sub int64) ([]monitor.Endpoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []monitor.Endpoint
	for _, ep := range r.eps {
		if ep.SubscriberID == sub {
			out = append(out, ep)
		}
	}
	return out, nil
}

func (r *memRegistry) All(context.Context) ([]monitor.Endpoint, error) { return r.eps, nil }
func (r *memRegistry) StatusOf(_ context.Context, id int64) (monitor.Status, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ep := range r.eps {
		if ep.ID == id {
			return ep.Status, true, nil
		}
	}
	return monitor.StatusUnknown, false, nil
}
func (r *memRegistry) UpdateStatus(context.Context, int64, monitor.Status) error {
	return nil
}
func (r *memRegistry) UpdateCertMeta(context.Context, int64, string, monitor.CertMeta) (bool, error) {
	return false, nil
}
func (r *memRegistry) ExpiringBetween(context.Context, time.Time, time.Time) ([]monitor.Endpoint, error) {
	return nil, nil
}

type memSubscribers struct {
	mu   sync.Mutex
	subs map[int64]monitor.Subscriber
}

func (s *memSubscribers) upsert(id int64, fn func(*monitor.Subscriber)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs == nil {
		s.subs = map[int64]monitor.Subscriber{}
	}
	sub := s.subs[id]
	sub.ID = id
	fn(&sub)
	s.subs[id] = sub
}

func (s *memSubscribers) Save(_ context.Context, id int64, userName string) error {
	s.upsert(id, func(sub *monitor.Subscriber) { sub.UserName = userName })
	return nil
}

func (s *memSubscribers) Get(_ context.Context, id int64) (monitor.Subscriber, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	return sub, ok, nil
}

func (s *memSubscribers) SetEmail(_ context.Context, id int64, email string) error {
	s.upsert(id, func(sub *monitor.Subscriber) { sub.Email, sub.EmailOptIn = email, true })
	return nil
}

func (s *memSubscribers) SetEmailOptIn(_ context.Context, id int64, optIn bool) error {
	s.upsert(id, func(sub *monitor.Subscriber) { sub.EmailOptIn = optIn })
	return nil
}

type recSender struct {
	mu   sync.Mutex
	sent map[int64][]string
}

func (r *recSender) Chat(_ context.Context, chatID int64, html string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sent == nil {
		r.sent = map[int64][]string{}
	}
	r.sent[chatID] = append(r.sent[chatID], html)
	return nil
}

type manualTimer struct {
	f       func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) AfterFunc(_ time.Duration, f func()) session.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{f: f}
	c.timers = append(c.timers, t)
	return t
}

// fireLatest runs the most recently armed timer.
func (c *manualClock) fireLatest() {
	c.mu.Lock()
	t := c.timers[len(c.timers)-1]
	c.mu.Unlock()
	t.f()
}

func (c *manualClock) armed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}
