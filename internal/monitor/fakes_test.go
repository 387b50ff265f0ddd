package monitor

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

type memRegistry struct {
	mu        sync.Mutex
	seq       int64
	rows      map[int64]Endpoint
	writes    int
	failWrite error
}

func newMemRegistry(eps ...Endpoint) *memRegistry {
	r := &memRegistry{rows: map[int64]Endpoint{}}
	for _, ep := range eps {
		r.seq++
		if ep.ID == 0 {
			ep.ID = r.seq
		}
		r.rows[ep.ID] = ep
	}
	return r
}

func (r *memRegistry) get(id int64) Endpoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[id]
}

func (r *memRegistry) Exists(_ context.Context, sub int64, url string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ep := range r.rows {
		if ep.SubscriberID == sub && ep.URL == url {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRegistry) Insert(ctx context.Context, ep Endpoint) (Endpoint, error) {
	if ok, _ := r.Exists(ctx, ep.SubscriberID, ep.URL); ok {
		return Endpoint{}, ErrAlreadyMonitored
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	ep.ID = r.seq
	r.rows[ep.ID] = ep
	return ep, nil
}

func (r *memRegistry) Delete(_ context.Context, sub int64, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, ep := range r.rows {
		if ep.SubscriberID == sub && ep.URL == url {
			delete(r.rows, id)
		}
	}
	return nil
}

func (r *memRegistry) DeleteAll(_ context.Context, sub int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, ep := range r.rows {
		if ep.SubscriberID == sub {
			delete(r.rows, id)
		}
	}
	return nil
}

func (r *memRegistry) List(ctx context.Context, sub int64) ([]Endpoint, error) {
	all, _ := r.All(ctx)
	var out []Endpoint
	for _, ep := range all {
		if ep.SubscriberID == sub {
			out = append(out, ep)
		}
	}
	return out, nil
}

func (r *memRegistry) All(context.Context) ([]Endpoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Endpoint, 0, len(r.rows))
	for _, ep := range r.rows {
		out = append(out, ep)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRegistry) StatusOf(_ context.Context, id int64) (Status, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ep, ok := r.rows[id]
	return ep.Status, ok, nil
}

func (r *memRegistry) UpdateStatus(_ context.Context, id int64, st Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrite != nil {
		return r.failWrite
	}
	ep := r.rows[id]
	ep.Status = st
	r.rows[id] = ep
	r.writes++
	return nil
}

func (r *memRegistry) UpdateCertMeta(_ context.Context, sub int64, url string, meta CertMeta) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, ep := range r.rows {
		if ep.SubscriberID == sub && ep.URL == url {
			m := meta
			ep.Cert = &m
			r.rows[id] = ep
			return true, nil
		}
	}
	return false, nil
}

// ExpiringBetween deliberately returns every row with a certificate so the
// engine's own window check is exercised.
func (r *memRegistry) ExpiringBetween(ctx context.Context, _, _ time.Time) ([]Endpoint, error) {
	all, _ := r.All(ctx)
	var out []Endpoint
	for _, ep := range all {
		if ep.Cert != nil {
			out = append(out, ep)
		}
	}
	return out, nil
}

type memSubscribers struct {
	subs map[int64]Subscriber
}

func (m *memSubscribers) Save(_ context.Context, id int64, name string) error {
	if _, ok := m.subs[id]; !ok {
		m.subs[id] = Subscriber{ID: id, UserName: name}
	}
	return nil
}

func (m *memSubscribers) Get(_ context.Context, id int64) (Subscriber, bool, error) {
	s, ok := m.subs[id]
	return s, ok, nil
}

func (m *memSubscribers) SetEmail(_ context.Context, id int64, email string) error {
	s := m.subs[id]
	s.Email, s.EmailOptIn = email, true
	m.subs[id] = s
	return nil
}

func (m *memSubscribers) SetEmailOptIn(_ context.Context, id int64, in bool) error {
	s := m.subs[id]
	s.EmailOptIn = in
	m.subs[id] = s
	return nil
}

// scriptProber answers per URL; unknown URLs fail.
type scriptProber struct {
	mu    sync.Mutex
	codes map[string]int
	errs  map[string]error
	calls int
}

func (p *scriptProber) set(url string, code int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.codes == nil {
		p.codes, p.errs = map[string]int{}, map[string]error{}
	}
	p.codes[url], p.errs[url] = code, err
}

func (p *scriptProber) Probe(_ context.Context, url string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if url == "https://panic.test" {
		panic("boom")
	}
	code, ok := p.codes[url]
	if !ok {
		return 0, errors.New("dial tcp: connection refused")
	}
	return code, p.errs[url]
}

type staticCerts struct {
	meta CertMeta
	err  error
}

func (c staticCerts) Inspect(context.Context, string) (CertMeta, error) { return c.meta, c.err }

type sentChat struct {
	chatID int64
	text   string
}

type sentEmail struct {
	to, subject string
}

type recNotifier struct {
	mu     sync.Mutex
	chats  []sentChat
	emails []sentEmail
	err    error
}

func (n *recNotifier) Chat(_ context.Context, chatID int64, html string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.chats = append(n.chats, sentChat{chatID, html})
	return nil
}

func (n *recNotifier) Email(_ context.Context, to, subject, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.emails = append(n.emails, sentEmail{to, subject})
	return nil
}

func (n *recNotifier) chatCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.chats)
}
