package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"uptimeninja/internal/metrics"
	logx "uptimeninja/pkg/logx"
)

type Config struct {
	ProbeTimeout time.Duration
	CertTimeout  time.Duration
	// Concurrency bounds parallel probes within one liveness sweep.
	Concurrency int
}

func (c Config) withDefaults() Config {
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 5 * time.Second
	}
	if c.CertTimeout <= 0 {
		c.CertTimeout = 10 * time.Second
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 8
	}
	return c
}

type Deps struct {
	Registry    Registry
	Subscribers Subscribers
	Prober      Prober
	Certs       CertInspector
	Notifier    Notifier
	Log         logx.Logger
	Metrics     *metrics.Metrics
	// Now defaults to time.Now.
	Now func() time.Time
}

// Outcome is the result of evaluating one endpoint.
type Outcome struct {
	Classified Status
	Next       Status
	Wrote      bool
	Alert      *Alert
	// Skipped is true when another evaluation of the endpoint was in flight.
	Skipped bool
	// Err is the persistence error, if any. Probe errors are not errors here.
	Err error
}

type SweepReport struct {
	Evaluated   int
	Up          int
	Down        int
	Transitions int
	Skipped     int
	Failed      int
	Duration    time.Duration
}

// Engine runs sweeps and registration against the registry.
type Engine struct {
	mu  sync.RWMutex
	cfg Config

	reg     Registry
	subs    Subscribers
	prober  Prober
	certs   CertInspector
	notify  Notifier
	log     logx.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	pool *ants.Pool

	fmu      sync.Mutex
	inflight map[int64]struct{}
}

func NewEngine(cfg Config, d Deps) (*Engine, error) {
	if d.Registry == nil || d.Prober == nil {
		return nil, errors.New("monitor: registry and prober are required")
	}
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	cfg = cfg.withDefaults()
	e := &Engine{
		cfg:      cfg,
		reg:      d.Registry,
		subs:     d.Subscribers,
		prober:   d.Prober,
		certs:    d.Certs,
		notify:   d.Notifier,
		log:      d.Log,
		metrics:  d.Metrics,
		now:      d.Now,
		inflight: map[int64]struct{}{},
	}
	pool, err := ants.NewPool(cfg.Concurrency, ants.WithPanicHandler(func(p any) {
		e.log.Error("probe task panic", logx.Any("panic", p))
	}))
	if err != nil {
		return nil, fmt.Errorf("monitor: probe pool: %w", err)
	}
	e.pool = pool
	return e, nil
}

// Apply swaps timeouts and resizes the probe pool.
func (e *Engine) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()
	e.pool.Tune(cfg.Concurrency)
}

func (e *Engine) config() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// Close releases the probe pool, waiting up to timeout for running probes.
func (e *Engine) Close(timeout time.Duration) error {
	return e.pool.ReleaseTimeout(timeout)
}

func (e *Engine) acquire(id int64) bool {
	e.fmu.Lock()
	defer e.fmu.Unlock()
	if _, busy := e.inflight[id]; busy {
		return false
	}
	e.inflight[id] = struct{}{}
	return true
}

func (e *Engine) release(id int64) {
	e.fmu.Lock()
	delete(e.inflight, id)
	e.fmu.Unlock()
}

// Evaluate probes one endpoint, persists a status change and emits at most
// one alert. Persistence and delivery are independent: a failed write still
// notifies, and a failed notification never undoes the write.
func (e *Engine) Evaluate(ctx context.Context, ep Endpoint) Outcome {
	if !e.acquire(ep.ID) {
		return Outcome{Classified: ep.Status, Next: ep.Status, Skipped: true}
	}
	defer e.release(ep.ID)

	// The sweep snapshot may predate a transition written by an earlier
	// evaluation of the same endpoint.
	persisted, ok, err := e.reg.StatusOf(ctx, ep.ID)
	if err != nil {
		e.log.Warn("load status failed", logx.Int64("endpoint", ep.ID), logx.Err(err))
		return Outcome{Classified: ep.Status, Next: ep.Status, Err: err}
	}
	if !ok {
		return Outcome{Classified: ep.Status, Next: ep.Status, Skipped: true}
	}
	ep.Status = persisted

	cfg := e.config()
	pctx, cancel := context.WithTimeout(ctx, cfg.ProbeTimeout)
	code, probeErr := e.prober.Probe(pctx, ep.URL)
	cancel()

	classified := Classify(code, probeErr)
	e.metrics.Probe(classified == StatusUp)
	log := e.log.With(logx.Int64("endpoint", ep.ID), logx.String("url", ep.URL))
	if probeErr != nil {
		log.Debug("probe failed", logx.Err(probeErr))
	}

	next, kind, write := Decide(ep.Status, classified)
	out := Outcome{Classified: classified, Next: next}
	if write {
		if err := e.reg.UpdateStatus(ctx, ep.ID, next); err != nil {
			out.Err = err
			log.Warn("persist status failed", logx.String("status", string(next)), logx.Err(err))
		} else {
			out.Wrote = true
			e.metrics.Transition(string(next))
			log.Info("status changed",
				logx.String("from", string(ep.Status)),
				logx.String("to", string(next)),
				logx.Int("code", code),
			)
		}
	}
	if kind != AlertNone {
		a := Alert{Kind: kind, Endpoint: ep, At: e.now()}
		if kind == AlertDown {
			a.ProbeErr = probeErr
		}
		e.emit(ctx, a)
		out.Alert = &a
	}
	return out
}

// SweepLiveness evaluates every registered endpoint on the probe pool.
// A failure or panic for one endpoint never stops the others.
func (e *Engine) SweepLiveness(ctx context.Context) (SweepReport, error) {
	start := time.Now()
	eps, err := e.reg.All(ctx)
	if err != nil {
		return SweepReport{}, fmt.Errorf("monitor: load endpoints: %w", err)
	}

	var (
		mu  sync.Mutex
		rep SweepReport
		wg  sync.WaitGroup
	)
	record := func(o Outcome, failed bool) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case failed:
			rep.Failed++
			return
		case o.Skipped:
			rep.Skipped++
			return
		}
		rep.Evaluated++
		if o.Classified == StatusUp {
			rep.Up++
		} else {
			rep.Down++
		}
		if o.Wrote {
			rep.Transitions++
		}
		if o.Err != nil {
			rep.Failed++
		}
	}

	for _, ep := range eps {
		if ctx.Err() != nil {
			break
		}
		ep := ep
		wg.Add(1)
		task := func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					e.log.Error("evaluate panic", logx.Int64("endpoint", ep.ID), logx.Any("panic", r))
					record(Outcome{}, true)
				}
			}()
			record(e.Evaluate(ctx, ep), false)
		}
		if err := e.pool.Submit(task); err != nil {
			wg.Done()
			record(Outcome{}, true)
			e.log.Warn("probe pool rejected task", logx.Int64("endpoint", ep.ID), logx.Err(err))
		}
	}
	wg.Wait()

	rep.Duration = time.Since(start)
	e.metrics.ObserveSweep("liveness", rep.Duration)
	e.log.Debug("liveness sweep done",
		logx.Int("evaluated", rep.Evaluated),
		logx.Int("transitions", rep.Transitions),
		logx.Int("skipped", rep.Skipped),
		logx.Int("failed", rep.Failed),
		logx.Duration("took", rep.Duration),
	)
	return rep, ctx.Err()
}

// SweepExpiringCertificates warns about every certificate ending within
// withinDays. It repeats on each call while the window holds and uses the
// stored certificate data only.
func (e *Engine) SweepExpiringCertificates(ctx context.Context, withinDays int) ([]Alert, error) {
	start := time.Now()
	now := e.now()
	eps, err := e.reg.ExpiringBetween(ctx, now, now.Add(time.Duration(withinDays)*24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("monitor: load expiring certificates: %w", err)
	}

	var alerts []Alert
	for _, ep := range eps {
		if ep.Cert == nil || !ExpiresWithin(ep.Cert.ValidTo, now, withinDays) {
			continue
		}
		a := Alert{
			Kind:      AlertCertExpiry,
			Endpoint:  ep,
			DaysLeft:  DaysRemaining(ep.Cert.ValidTo, now),
			ExpiresAt: ep.Cert.ValidTo,
			At:        now,
		}
		e.emit(ctx, a)
		e.metrics.CertificateAlert()
		alerts = append(alerts, a)
	}
	e.metrics.ObserveSweep("certificate", time.Since(start))
	e.log.Debug("certificate sweep done", logx.Int("alerts", len(alerts)), logx.Int("within_days", withinDays))
	return alerts, nil
}

func (e *Engine) emit(ctx context.Context, a Alert) {
	if e.notify == nil {
		return
	}
	log := e.log.With(logx.String("alert", a.Kind.String()), logx.Int64("chat_id", a.Endpoint.SubscriberID))
	if err := e.notify.Chat(ctx, a.Endpoint.SubscriberID, a.ChatText()); err != nil {
		log.Warn("chat alert not queued", logx.Err(err))
	}

	subject, body, ok, err := a.EmailMessage()
	if err != nil {
		log.Warn("email alert render failed", logx.Err(err))
		return
	}
	if !ok || e.subs == nil {
		return
	}
	sub, found, err := e.subs.Get(ctx, a.Endpoint.SubscriberID)
	if err != nil {
		log.Warn("subscriber lookup failed", logx.Err(err))
		return
	}
	if !found || !sub.EmailOptIn || sub.Email == "" {
		return
	}
	if err := e.notify.Email(ctx, sub.Email, subject, body); err != nil {
		log.Warn("email alert not queued", logx.Err(err))
	}
}

// Register adds (subscriberID, url) with status unknown. Certificate data is
// captured best effort; a failed inspection leaves it empty.
func (e *Engine) Register(ctx context.Context, subscriberID int64, name, url string) (Endpoint, error) {
	exists, err := e.reg.Exists(ctx, subscriberID, url)
	if err != nil {
		return Endpoint{}, fmt.Errorf("monitor: exists: %w", err)
	}
	if exists {
		return Endpoint{}, ErrAlreadyMonitored
	}

	ep := Endpoint{SubscriberID: subscriberID, URL: url, Name: name, Status: StatusUnknown}
	if e.certs != nil {
		cctx, cancel := context.WithTimeout(ctx, e.config().CertTimeout)
		meta, err := e.certs.Inspect(cctx, url)
		cancel()
		if err != nil {
			e.log.Debug("certificate capture failed", logx.String("url", url), logx.Err(err))
		} else {
			ep.Cert = &meta
		}
	}

	saved, err := e.reg.Insert(ctx, ep)
	if err != nil {
		if errors.Is(err, ErrAlreadyMonitored) {
			return Endpoint{}, err
		}
		return Endpoint{}, fmt.Errorf("monitor: insert: %w", err)
	}
	e.log.Info("endpoint registered", logx.Int64("chat_id", subscriberID), logx.String("url", url))
	return saved, nil
}

// RefreshCertificate inspects url and, when the subscriber monitors it,
// stores the new validity window. registered reports whether a row was updated.
func (e *Engine) RefreshCertificate(ctx context.Context, subscriberID int64, url string) (meta CertMeta, registered bool, err error) {
	if e.certs == nil {
		return CertMeta{}, false, errors.New("monitor: certificate inspection unavailable")
	}
	cctx, cancel := context.WithTimeout(ctx, e.config().CertTimeout)
	meta, err = e.certs.Inspect(cctx, url)
	cancel()
	if err != nil {
		return CertMeta{}, false, err
	}
	registered, err = e.reg.UpdateCertMeta(ctx, subscriberID, url, meta)
	if err != nil {
		e.log.Warn("persist certificate failed", logx.String("url", url), logx.Err(err))
		return meta, false, nil
	}
	return meta, registered, nil
}

// Check runs a one-off probe. The error is the probe error, for logging only.
func (e *Engine) Check(ctx context.Context, url string) (Status, error) {
	pctx, cancel := context.WithTimeout(ctx, e.config().ProbeTimeout)
	defer cancel()
	code, err := e.prober.Probe(pctx, url)
	return Classify(code, err), err
}

// Now is the engine clock.
func (e *Engine) Now() time.Time { return e.now() }
