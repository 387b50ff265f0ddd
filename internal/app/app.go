package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"uptimeninja/internal/config"
	"uptimeninja/internal/conversation"
	"uptimeninja/internal/email"
	"uptimeninja/internal/eventbus"
	"uptimeninja/internal/metrics"
	"uptimeninja/internal/monitor"
	"uptimeninja/internal/notifier"
	"uptimeninja/internal/observability/ops"
	"uptimeninja/internal/probe"
	rtsup "uptimeninja/internal/runtime/supervisor"
	"uptimeninja/internal/storage"
	"uptimeninja/internal/task/scheduler"
	kit "uptimeninja/internal/transport"
	telegram "uptimeninja/internal/transport/telegram/adapter"
	"uptimeninja/internal/transport/telegram/router"
	logx "uptimeninja/pkg/logx"
)

const (
	scheduleLiveness     = "liveness"
	scheduleCertificates = "certificates"

	livenessRunTimeout     = 5 * time.Minute
	certificateRunTimeout  = 10 * time.Minute
	monitorShutdownTimeout = 3 * time.Second
)

type App struct {
	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log     logx.Logger
	logs    *logx.Service
	bus     eventbus.Bus
	store   *storage.Store
	metrics *metrics.Metrics

	adapter *telegram.Adapter
	notif   *notifier.Service
	engine  *monitor.Engine
	sched   *scheduler.Service
	router  *router.Router
	conv    *conversation.Controller
	ops     *ops.Service

	sweeps  schedules
	window  atomic.Int64 // expiry window in days, read by each certificate sweep
	updates chan kit.Update
}

// NewApp loads the config and builds every component. Nothing runs until Start.
func NewApp(ctx context.Context, cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	logCfg, err := mapLoggingConfig(cfg)
	if err != nil {
		return nil, err
	}
	// The operator sink needs the adapter, which needs a logger; the sender is
	// installed once the adapter exists.
	logSvc, root := logx.New(logCfg, nil)
	log := root.With(logx.String("comp", "app"))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, root.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}
	logSvc.SetSender(operatorSender(ad))

	m := metrics.New()
	bus := eventbus.New()

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(ctx, sc, root.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	log.Info("storage ready", logx.String("driver", sc.Driver))

	mail, err := email.NewProvider(mapEmailConfig(cfg), root.With(logx.String("comp", "email")))
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	notif := notifier.New(ncfg, ad, mail, root.With(logx.String("comp", "notifier")), bus, m)

	mcfg, err := mapMonitorConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	eng, err := monitor.NewEngine(mcfg, monitor.Deps{
		Registry:    store,
		Subscribers: store,
		Prober:      probe.NewHTTPProber(cfg.Monitor.UserAgent),
		Certs:       probe.NewCertInspector(),
		Notifier:    notif,
		Log:         root.With(logx.String("comp", "monitor")),
		Metrics:     m,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	schedCfg, err := mapSchedulerConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	sched := scheduler.New(schedCfg, root.With(logx.String("comp", "scheduler")), bus)

	convCfg, err := mapConversationConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	conv := conversation.New(convCfg, conversation.Deps{
		Monitor:     eng,
		Registry:    store,
		Subscribers: store,
		Notices:     notif,
		Log:         root.With(logx.String("comp", "conversation")),
		Metrics:     m,
	})

	r := router.New(router.Config{}, ad, root.With(logx.String("comp", "router")), m)

	opsCfg, err := mapOpsConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	opsSvc := ops.New(opsCfg, m.Registry, root.With(logx.String("comp", "ops")))

	a := &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		metrics: m,
		adapter: ad,
		notif:   notif,
		engine:  eng,
		sched:   sched,
		router:  r,
		conv:    conv,
		ops:     opsSvc,
		updates: make(chan kit.Update, 256),
	}
	sw, err := mapSchedules(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	if err := a.applySchedules(sw); err != nil {
		_ = store.Close()
		return nil, err
	}
	return a, nil
}

// operatorSender delivers operator log lines as plain text.
func operatorSender(ad *telegram.Adapter) logx.SendFunc {
	return func(ctx context.Context, chatID int64, threadID int, text string) error {
		_, err := ad.SendText(ctx, kit.ChatTarget{ChatID: chatID, ThreadID: threadID}, text, &kit.SendOptions{DisablePreview: true})
		return err
	}
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Ready reports whether the app runs and its store answers.
func (a *App) Ready(ctx context.Context) error {
	if a.sup == nil {
		return errors.New("not started")
	}
	if err := a.sup.Err(); err != nil {
		return err
	}
	return a.store.Ping(ctx)
}

// applySchedules registers each sweep whose spec changed. Unchanged specs are
// left alone; the expiry window is picked up by the next certificate run.
func (a *App) applySchedules(sw schedules) error {
	if sw.Liveness != a.sweeps.Liveness {
		if err := a.sched.AddSchedule(scheduleLiveness, sw.Liveness, livenessRunTimeout, a.sweepLiveness); err != nil {
			return fmt.Errorf("liveness schedule: %w", err)
		}
		a.sweeps.Liveness = sw.Liveness
	}
	if sw.Certificate != a.sweeps.Certificate {
		if err := a.sched.AddSchedule(scheduleCertificates, sw.Certificate, certificateRunTimeout, func(ctx context.Context) error {
			return a.sweepCertificates(ctx, int(a.window.Load()))
		}); err != nil {
			return fmt.Errorf("certificate schedule: %w", err)
		}
		a.sweeps.Certificate = sw.Certificate
	}
	a.window.Store(int64(sw.WindowDays))
	a.sweeps.WindowDays = sw.WindowDays
	return nil
}

func (a *App) sweepLiveness(ctx context.Context) error {
	rep, err := a.engine.SweepLiveness(ctx)
	if err != nil {
		return err
	}
	a.log.Debug("liveness sweep done",
		logx.Int("evaluated", rep.Evaluated),
		logx.Int("down", rep.Down),
		logx.Int("transitions", rep.Transitions),
		logx.Int("skipped", rep.Skipped),
		logx.Int("failed", rep.Failed),
		logx.Duration("took", rep.Duration),
	)
	return nil
}

func (a *App) sweepCertificates(ctx context.Context, windowDays int) error {
	alerts, err := a.engine.SweepExpiringCertificates(ctx, windowDays)
	if err != nil {
		return err
	}
	a.log.Debug("certificate sweep done", logx.Int("alerts", len(alerts)), logx.Int("window_days", windowDays))
	return nil
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx,
		rtsup.WithLogger(a.log),
		rtsup.WithCancelOnError(true),
		rtsup.WithOnRestart(func(name string, _ error) { a.metrics.Restart(name) }),
	)
	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return validate(cfg)
	})

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	a.conv.Bind(a.router)

	if a.notif.Enabled() {
		a.notif.Start(a.sup.Context())
	}
	if a.sched.Enabled() {
		a.sched.Start(a.sup.Context())
	} else {
		a.log.Warn("scheduler disabled; sweeps will not run")
	}

	a.ops.AddReadinessCheck("storage", a.store.Ping)
	a.ops.AddLivenessCheck("supervisor", func(context.Context) error { return a.sup.Err() })
	a.ops.Start(a.sup.Context())

	a.sup.Go("router.dispatch", func(c context.Context) error {
		return a.router.Run(c, a.updates)
	})

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				// debug-level: sweeps fire every minute
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
			drain:
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						break drain
					}
				}
				a.reload(c, lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started", logx.Int("schedules", len(a.sched.Schedules())))
	return nil
}

// reload applies the hot-reloadable parts of newCfg. The config was already
// validated, so mapping errors here only guard against races.
func (a *App) reload(ctx context.Context, oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	a.log.Debug("config change summary", append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)...)

	if restart := config.RequiresRestart(sections); len(restart) > 0 {
		a.log.Warn("config sections changed that need a restart", logx.String("sections", strings.Join(restart, ",")))
	}
	if oldCfg != nil && (oldCfg.Telegram.Token != newCfg.Telegram.Token || oldCfg.Telegram.PollTimeout != newCfg.Telegram.PollTimeout) {
		a.log.Warn("telegram token or poll timeout changed; restart required")
	}

	if lc, err := mapLoggingConfig(newCfg); err != nil {
		a.log.Warn("invalid logging config; keeping previous", logx.Err(err))
	} else {
		a.logs.Apply(lc)
	}

	if mc, err := mapMonitorConfig(newCfg); err != nil {
		a.log.Warn("invalid monitor config; keeping previous", logx.Err(err))
	} else {
		a.engine.Apply(mc)
	}
	if sw, err := mapSchedules(newCfg); err != nil {
		a.log.Warn("invalid monitor schedules; keeping previous", logx.Err(err))
	} else if err := a.applySchedules(sw); err != nil {
		a.log.Warn("schedule update failed", logx.Err(err))
	}

	if cc, err := mapConversationConfig(newCfg); err != nil {
		a.log.Warn("invalid conversation config; keeping previous", logx.Err(err))
	} else {
		a.conv.Apply(cc)
	}

	if sc, err := mapSchedulerConfig(newCfg); err != nil {
		a.log.Warn("invalid scheduler config; keeping previous", logx.Err(err))
	} else {
		prev := a.sched.Enabled()
		a.sched.Apply(sc)
		switch {
		case prev && !sc.Enabled:
			a.log.Info("scheduler disabled via config")
			stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			a.sched.Stop(stopCtx)
			cancel()
		case !prev && sc.Enabled:
			a.log.Info("scheduler enabled via config")
			a.sched.Start(ctx)
		}
	}

	if nc, err := mapNotifierConfig(newCfg); err != nil {
		a.log.Warn("invalid notifier config; keeping previous", logx.Err(err))
	} else {
		prev := a.notif.Enabled()
		a.notif.Apply(nc)
		switch {
		case prev && !nc.Enabled:
			a.log.Info("notifier disabled via config")
			stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			a.notif.Stop(stopCtx)
			cancel()
		case !prev && nc.Enabled:
			a.log.Info("notifier enabled via config")
			a.notif.Start(ctx)
		}
	}

	if oc, err := mapOpsConfig(newCfg); err != nil {
		a.log.Warn("invalid ops config; keeping previous", logx.Err(err))
	} else {
		a.ops.Reconfigure(ctx, oc)
	}

	a.log.Info("config reloaded", append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// Cancel first so background loops start unwinding immediately.
	a.sup.Cancel()

	// step runs one shutdown step with an upper bound so one component can't stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", max))

		stepCtx := ctx
		if dl, ok := ctx.Deadline(); ok {
			// respect the caller's deadline; never extend it
			max = min(max, time.Until(dl))
		}
		if max > 0 {
			var cancel context.CancelFunc
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			if took := time.Since(start); took >= 500*time.Millisecond {
				a.log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
			}
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Err(stepCtx.Err()),
				logx.Duration("elapsed", time.Since(start)),
			)
			go func() {
				if err := <-done; err != nil {
					a.log.Warn("stop step finished after deadline", logx.String("name", name), logx.Err(err))
				}
			}()
		}
	}

	// Triggers first, then in-flight sweeps, then delivery, then transport.
	step("scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("monitor", monitorShutdownTimeout, func(context.Context) error { return a.engine.Close(monitorShutdownTimeout) })
	step("conversation", time.Second, func(context.Context) error { a.conv.Close(); return nil })
	step("ops", time.Second, func(c context.Context) error { a.ops.Stop(c); return nil })
	step("notifier", 2*time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })
	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("storage", time.Second, func(context.Context) error { return a.store.Close() })

	// config watch/reload, dispatcher, event log
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	return a.logs.Close()
}
