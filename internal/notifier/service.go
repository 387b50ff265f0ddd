package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"uptimeninja/internal/email"
	"uptimeninja/internal/eventbus"
	"uptimeninja/internal/metrics"
	rtsup "uptimeninja/internal/runtime/supervisor"
	kit "uptimeninja/internal/transport"
	logx "uptimeninja/pkg/logx"
	"uptimeninja/pkg/tgui"
)

var (
	ErrDisabled   = errors.New("notifier disabled")
	ErrQueueFull  = errors.New("notifier queue full")
	ErrStopped    = errors.New("notifier stopped")
	ErrNoProvider = errors.New("notifier: no email provider")
)

type job struct {
	channel string
	target  kit.ChatTarget
	text    string
	opt     *kit.SendOptions
	to      string
	subject string
}

func (j job) event(now time.Time, err error) Event {
	ev := Event{Channel: j.channel, ChatID: j.target.ChatID, To: j.to, At: now}
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}

// Service is a queue + worker pool + rate limit. It is safe for concurrent use.
type Service struct {
	mu sync.Mutex

	log     logx.Logger
	adapter kit.Adapter
	mail    email.Provider
	bus     eventbus.Bus
	metrics *metrics.Metrics

	cfg     Config
	limiter *rate.Limiter

	accepting bool
	sendWG    sync.WaitGroup

	queue    chan job
	sup      *rtsup.Supervisor
	stopDone chan struct{} // non-nil while stopping
}

func New(cfg Config, adapter kit.Adapter, mail email.Provider, log logx.Logger, bus eventbus.Bus, m *metrics.Metrics) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		adapter: adapter,
		mail:    mail,
		log:     log,
		bus:     bus,
		metrics: m,
	}
	s.applyLocked(cfg)
	return s
}

// Apply updates limits. Worker count and queue size take effect on the next Start.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 512
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 20
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	s.cfg = cfg
	// Token bucket: burst = rate per sec, so short spikes don't block too hard.
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

// SetEmailProvider swaps the email provider; nil disables email.
func (s *Service) SetEmailProvider(p email.Provider) {
	s.mu.Lock()
	s.mail = p
	s.mu.Unlock()
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	// If stopping, wait for it to finish before restarting.
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
		s.mu.Lock()
	}
	if s.queue != nil || !s.cfg.Enabled {
		s.mu.Unlock()
		return
	}

	s.queue = make(chan job, s.cfg.QueueSize)
	s.accepting = true
	workers := s.cfg.Workers
	s.sup = rtsup.New(ctx,
		rtsup.WithLogger(s.log),
		// notifier failures should not take down the whole app; treat as best-effort.
		rtsup.WithCancelOnError(false),
	)
	sup, q := s.sup, s.queue
	s.mu.Unlock()

	for i := 0; i < workers; i++ {
		sup.GoRestart(fmt.Sprintf("notifier.worker.%d", i), func(c context.Context) error {
			s.workerLoop(c, q)
			// Clean exits happen on shutdown (queue close).
			s.mu.Lock()
			stopping := s.stopDone != nil
			s.mu.Unlock()
			if stopping {
				return context.Canceled
			}
			if c.Err() != nil {
				return c.Err()
			}
			return errors.New("notifier worker exited unexpectedly")
		}, rtsup.WithPublishFirstError(true))
	}
}

// Stop stops intake and drains the queue best-effort until ctx deadline.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	q, sup := s.queue, s.sup
	if q == nil {
		s.mu.Unlock()
		return
	}
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return
	}
	done := make(chan struct{})
	s.stopDone = done
	s.accepting = false
	s.mu.Unlock()

	go func() {
		defer close(done)
		// Wait for in-flight enqueues, then close the queue so workers can drain.
		s.sendWG.Wait()
		close(q)
		_ = sup.Wait(context.Background())

		s.mu.Lock()
		s.queue = nil
		s.stopDone = nil
		s.sup = nil
		s.mu.Unlock()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		// Force-stop workers; queued items are dropped.
		sup.Cancel()
	}
}

// Chat queues an HTML message to a chat with link previews disabled.
func (s *Service) Chat(ctx context.Context, chatID int64, html string) error {
	return s.Notify(ctx, kit.Notification{
		Channel: ChannelTelegram,
		Target:  kit.ChatTarget{ChatID: chatID},
		Text:    html,
		Options: &kit.SendOptions{ParseMode: tgui.ParseModeHTML, DisablePreview: true},
	})
}

// Email queues an HTML email.
func (s *Service) Email(ctx context.Context, to, subject, html string) error {
	s.mu.Lock()
	noMail := s.mail == nil
	s.mu.Unlock()
	if noMail {
		return ErrNoProvider
	}
	return s.enqueue(ctx, job{channel: ChannelEmail, to: to, subject: subject, text: html})
}

func (s *Service) Notify(ctx context.Context, n kit.Notification) error {
	if n.Channel == "" {
		n.Channel = ChannelTelegram
	}
	return s.enqueue(ctx, job{channel: n.Channel, target: n.Target, text: n.Text, opt: n.Options})
}

func (s *Service) enqueue(ctx context.Context, j job) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	if !s.cfg.Enabled {
		s.mu.Unlock()
		return ErrDisabled
	}
	if !s.accepting || s.queue == nil {
		s.mu.Unlock()
		return ErrStopped
	}
	q := s.queue
	s.sendWG.Add(1)
	s.mu.Unlock()
	defer s.sendWG.Done()

	now := time.Now()
	select {
	case q <- j:
		s.publish("notifier.queued", j.event(now, nil))
		s.metrics.Notification(j.channel, "queued")
		return nil
	default:
		s.publish("notifier.dropped", j.event(now, ErrQueueFull))
		s.metrics.Notification(j.channel, "dropped")
		return ErrQueueFull
	}
}

func (s *Service) publish(typ string, ev Event) {
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: typ, Time: ev.At, Data: ev})
	}
}

func (s *Service) workerLoop(ctx context.Context, q <-chan job) {
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-q:
			if !ok {
				return
			}
			s.send(ctx, j)
		}
	}
}

// send makes exactly one delivery attempt.
func (s *Service) send(runCtx context.Context, j job) {
	s.mu.Lock()
	cfg, lim, ad, mail := s.cfg, s.limiter, s.adapter, s.mail
	s.mu.Unlock()

	callCtx, cancel := context.WithTimeout(runCtx, cfg.SendTimeout)
	defer cancel()

	var err error
	switch j.channel {
	case ChannelEmail:
		if mail == nil {
			err = ErrNoProvider
			break
		}
		err = mail.Send(callCtx, j.to, j.subject, j.text)
	default:
		if ad == nil || j.text == "" {
			return
		}
		if err = lim.Wait(callCtx); err != nil {
			break
		}
		_, err = ad.SendText(callCtx, j.target, j.text, j.opt)
	}

	now := time.Now()
	if err != nil {
		s.log.Warn("notification failed",
			logx.String("channel", j.channel),
			logx.Int64("chat_id", j.target.ChatID),
			logx.String("to", j.to),
			logx.Err(err),
		)
		s.publish("notifier.failed", j.event(now, err))
		s.metrics.Notification(j.channel, "failed")
		return
	}
	s.publish("notifier.sent", j.event(now, nil))
	s.metrics.Notification(j.channel, "sent")
}
