package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, reg *memRegistry, prober *scriptProber, n *recNotifier, subs *memSubscribers) *Engine {
	t.Helper()
	if subs == nil {
		subs = &memSubscribers{subs: map[int64]Subscriber{}}
	}
	e, err := NewEngine(Config{Concurrency: 4}, Deps{
		Registry:    reg,
		Subscribers: subs,
		Prober:      prober,
		Certs:       staticCerts{meta: CertMeta{ValidFrom: testNow.Add(-24 * time.Hour), ValidTo: testNow.Add(90 * 24 * time.Hour)}},
		Notifier:    n,
		Now:         func() time.Time { return testNow },
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close(time.Second) })
	return e
}

func TestEvaluateTransitionSequence(t *testing.T) {
	reg := newMemRegistry(Endpoint{SubscriberID: 7, URL: "https://a.com", Name: "a", Status: StatusUnknown})
	prober := &scriptProber{}
	n := &recNotifier{}
	e := newTestEngine(t, reg, prober, n, nil)
	ctx := context.Background()

	step := func(code int) Outcome {
		prober.set("https://a.com", code, nil)
		return e.Evaluate(ctx, reg.get(1))
	}

	// unknown -> up: silent, nothing written.
	o := step(200)
	assert.Nil(t, o.Alert)
	assert.False(t, o.Wrote)
	assert.Equal(t, StatusUnknown, reg.get(1).Status)

	// up -> down: one alert.
	o = step(500)
	require.NotNil(t, o.Alert)
	assert.Equal(t, AlertDown, o.Alert.Kind)
	assert.Equal(t, StatusDown, reg.get(1).Status)

	// down -> down: none.
	o = step(502)
	assert.Nil(t, o.Alert)
	assert.False(t, o.Wrote)

	// down -> up: one alert.
	o = step(204)
	require.NotNil(t, o.Alert)
	assert.Equal(t, AlertUp, o.Alert.Kind)
	assert.Equal(t, StatusUp, reg.get(1).Status)

	require.Len(t, n.chats, 2)
	assert.Equal(t, int64(7), n.chats[0].chatID)
	assert.Contains(t, n.chats[0].text, "is DOWN!")
	assert.Contains(t, n.chats[1].text, "is back UP!")
	assert.Equal(t, 2, reg.writes)
}

func TestConsecutiveDownSweepsAlertOnce(t *testing.T) {
	reg := newMemRegistry(
		Endpoint{SubscriberID: 1, URL: "https://down.test", Name: "d", Status: StatusUp},
		Endpoint{SubscriberID: 1, URL: "https://ok.test", Name: "o", Status: StatusUp},
	)
	prober := &scriptProber{}
	prober.set("https://ok.test", 200, nil)
	n := &recNotifier{}
	e := newTestEngine(t, reg, prober, n, nil)

	for i := 0; i < 2; i++ {
		_, err := e.SweepLiveness(context.Background())
		require.NoError(t, err)
	}

	require.Equal(t, 1, n.chatCount())
	assert.Contains(t, n.chats[0].text, "is not reachable!", "request errors use the unreachable wording")
}

func TestSweepIsolatesFailures(t *testing.T) {
	reg := newMemRegistry(
		Endpoint{SubscriberID: 1, URL: "https://panic.test", Name: "p", Status: StatusUp},
		Endpoint{SubscriberID: 1, URL: "https://b.test", Name: "b", Status: StatusUp},
		Endpoint{SubscriberID: 2, URL: "https://c.test", Name: "c", Status: StatusDown},
	)
	prober := &scriptProber{}
	prober.set("https://b.test", 404, nil)
	prober.set("https://c.test", 200, nil)
	n := &recNotifier{}
	e := newTestEngine(t, reg, prober, n, nil)

	rep, err := e.SweepLiveness(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, 2, rep.Evaluated)
	assert.Equal(t, 2, rep.Transitions)
	assert.Equal(t, StatusDown, reg.get(2).Status)
	assert.Equal(t, StatusUp, reg.get(3).Status)
	assert.Equal(t, 2, n.chatCount())
}

func TestPersistenceFailureStillNotifies(t *testing.T) {
	reg := newMemRegistry(Endpoint{SubscriberID: 3, URL: "https://x.test", Name: "x", Status: StatusUp})
	reg.failWrite = errors.New("db locked")
	prober := &scriptProber{}
	prober.set("https://x.test", 500, nil)
	n := &recNotifier{}
	e := newTestEngine(t, reg, prober, n, nil)

	o := e.Evaluate(context.Background(), reg.get(1))
	assert.Error(t, o.Err)
	assert.False(t, o.Wrote)
	require.NotNil(t, o.Alert)
	assert.Equal(t, 1, n.chatCount())
}

func TestNotifyFailureStillPersists(t *testing.T) {
	reg := newMemRegistry(Endpoint{SubscriberID: 3, URL: "https://x.test", Name: "x", Status: StatusDown})
	prober := &scriptProber{}
	prober.set("https://x.test", 200, nil)
	n := &recNotifier{err: errors.New("queue full")}
	e := newTestEngine(t, reg, prober, n, nil)

	o := e.Evaluate(context.Background(), reg.get(1))
	assert.NoError(t, o.Err)
	assert.True(t, o.Wrote)
	assert.Equal(t, StatusUp, reg.get(1).Status)
}

func TestEvaluateSkipsInFlightEndpoint(t *testing.T) {
	reg := newMemRegistry(Endpoint{SubscriberID: 1, URL: "https://a.com", Status: StatusUp})
	prober := &scriptProber{}
	e := newTestEngine(t, reg, prober, &recNotifier{}, nil)

	require.True(t, e.acquire(1))
	o := e.Evaluate(context.Background(), reg.get(1))
	e.release(1)

	assert.True(t, o.Skipped)
	assert.Equal(t, 0, prober.calls)
}

func TestEmailOnlyForOptedInSubscribers(t *testing.T) {
	reg := newMemRegistry(
		Endpoint{SubscriberID: 1, URL: "https://a.test", Name: "a", Status: StatusUp},
		Endpoint{SubscriberID: 2, URL: "https://b.test", Name: "b", Status: StatusUp},
	)
	subs := &memSubscribers{subs: map[int64]Subscriber{
		1: {ID: 1, Email: "one@x.io", EmailOptIn: true},
		2: {ID: 2, Email: "two@x.io", EmailOptIn: false},
	}}
	n := &recNotifier{}
	e := newTestEngine(t, reg, &scriptProber{}, n, subs)

	_, err := e.SweepLiveness(context.Background())
	require.NoError(t, err)

	require.Len(t, n.emails, 1)
	assert.Equal(t, "one@x.io", n.emails[0].to)
	assert.Equal(t, "Monitor is DOWN: a", n.emails[0].subject)
}

func TestCertificateSweepWindow(t *testing.T) {
	day := 24 * time.Hour
	cert := func(d time.Duration) *CertMeta {
		return &CertMeta{ValidFrom: testNow.Add(-day), ValidTo: testNow.Add(d)}
	}
	reg := newMemRegistry(
		Endpoint{SubscriberID: 1, URL: "https://one.test", Name: "one", Cert: cert(day)},
		Endpoint{SubscriberID: 1, URL: "https://three.test", Name: "three", Cert: cert(3 * day)},
		Endpoint{SubscriberID: 1, URL: "https://expired.test", Name: "expired", Cert: cert(-day)},
		Endpoint{SubscriberID: 1, URL: "https://none.test", Name: "none"},
	)
	n := &recNotifier{}
	e := newTestEngine(t, reg, &scriptProber{}, n, nil)

	alerts, err := e.SweepExpiringCertificates(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "https://one.test", alerts[0].Endpoint.URL)
	assert.Equal(t, 1, alerts[0].DaysLeft)
	assert.Contains(t, n.chats[0].text, "Certificate will expire in 1 days on May 11, 2026")

	// Level-triggered: a second sweep warns again.
	alerts, err = e.SweepExpiringCertificates(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
	assert.Equal(t, 2, n.chatCount())
}

func TestRegister(t *testing.T) {
	reg := newMemRegistry()
	e := newTestEngine(t, reg, &scriptProber{}, &recNotifier{}, nil)
	ctx := context.Background()

	ep, err := e.Register(ctx, 1, "A", "https://a.com")
	require.NoError(t, err)
	assert.Equal(t, StatusUnknown, ep.Status)
	require.NotNil(t, ep.Cert)

	_, err = e.Register(ctx, 1, "A again", "https://a.com")
	assert.ErrorIs(t, err, ErrAlreadyMonitored)

	all, _ := reg.List(ctx, 1)
	assert.Len(t, all, 1)
}

func TestRegisterWithoutCertificate(t *testing.T) {
	reg := newMemRegistry()
	e := newTestEngine(t, reg, &scriptProber{}, &recNotifier{}, nil)
	e.certs = staticCerts{err: errors.New("handshake failure")}

	ep, err := e.Register(context.Background(), 1, "plain", "http://plain.test")
	require.NoError(t, err)
	assert.Nil(t, ep.Cert)
}

func TestRefreshCertificate(t *testing.T) {
	reg := newMemRegistry(Endpoint{SubscriberID: 5, URL: "https://a.com", Name: "a"})
	e := newTestEngine(t, reg, &scriptProber{}, &recNotifier{}, nil)

	meta, registered, err := e.RefreshCertificate(context.Background(), 5, "https://a.com")
	require.NoError(t, err)
	assert.True(t, registered)
	assert.Equal(t, meta, *reg.get(1).Cert)

	_, registered, err = e.RefreshCertificate(context.Background(), 5, "https://other.com")
	require.NoError(t, err)
	assert.False(t, registered)
}

func TestCheck(t *testing.T) {
	prober := &scriptProber{}
	prober.set("https://a.com", 302, nil)
	e := newTestEngine(t, newMemRegistry(), prober, &recNotifier{}, nil)

	st, err := e.Check(context.Background(), "https://a.com")
	assert.NoError(t, err)
	assert.Equal(t, StatusUp, st)

	st, err = e.Check(context.Background(), "https://gone.test")
	assert.Error(t, err)
	assert.Equal(t, StatusDown, st)
}

// gatedHTTP answers 503 once release is closed.
type gatedHTTP struct {
	entered chan struct{}
	release chan struct{}
}

func (p *gatedHTTP) Probe(ctx context.Context, _ string) (int, error) {
	p.entered <- struct{}{}
	select {
	case <-p.release:
		return 503, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func TestStaleSnapshotAfterOverlappingSweepAlertsOnce(t *testing.T) {
	reg := newMemRegistry(Endpoint{SubscriberID: 9, URL: "https://slow.test", Name: "s", Status: StatusUp})
	gate := &gatedHTTP{entered: make(chan struct{}, 2), release: make(chan struct{})}
	n := &recNotifier{}
	e, err := NewEngine(Config{Concurrency: 1, ProbeTimeout: 5 * time.Second}, Deps{
		Registry:    reg,
		Subscribers: &memSubscribers{subs: map[int64]Subscriber{}},
		Prober:      gate,
		Certs:       staticCerts{},
		Notifier:    n,
		Now:         func() time.Time { return testNow },
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close(time.Second) })

	done := make(chan error, 1)
	go func() {
		_, err := e.SweepLiveness(context.Background())
		done <- err
	}()
	<-gate.entered

	// A second sweep loads its rows while the first still holds the endpoint.
	stale := reg.get(1)
	require.Equal(t, StatusUp, stale.Status)

	close(gate.release)
	require.NoError(t, <-done)
	require.Equal(t, StatusDown, reg.get(1).Status)

	o := e.Evaluate(context.Background(), stale)
	assert.Nil(t, o.Alert)
	assert.False(t, o.Wrote)
	assert.Equal(t, StatusDown, o.Next)
	assert.Equal(t, 1, n.chatCount())
	assert.Equal(t, 1, reg.writes)
}

func TestEvaluateSkipsRemovedEndpoint(t *testing.T) {
	reg := newMemRegistry(Endpoint{SubscriberID: 1, URL: "https://gone.test", Status: StatusUp})
	prober := &scriptProber{}
	e := newTestEngine(t, reg, prober, &recNotifier{}, nil)

	ep := reg.get(1)
	require.NoError(t, reg.DeleteAll(context.Background(), 1))

	o := e.Evaluate(context.Background(), ep)
	assert.True(t, o.Skipped)
	assert.Equal(t, 0, prober.calls)
}
