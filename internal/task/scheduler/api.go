package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"uptimeninja/internal/eventbus"
	logx "uptimeninja/pkg/logx"
)

// AddSchedule registers job under name, replacing any schedule with the same
// name. See ParseSchedule for accepted formats. timeout <= 0 means no limit
// beyond the scheduler context.
func (s *Service) AddSchedule(name, schedule string, timeout time.Duration, job Job) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("name required")
	}
	if job == nil {
		return errors.New("job required")
	}
	ps, err := ParseSchedule(schedule)
	if err != nil {
		return err
	}
	spec := ps.Cron
	if ps.Kind == SpecInterval {
		spec = "@every " + ps.Every.String()
	} else if _, err := s.parser.Parse(spec); err != nil {
		return fmt.Errorf("invalid cron %q: %w", spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// A replaced schedule keeps its run flag so an in-flight run still
	// blocks triggers of the new entry.
	running, skipped := &atomic.Bool{}, &atomic.Uint64{}
	for _, d := range s.defs {
		if d.name == name {
			running, skipped = d.running, d.skipped
		}
	}
	s.removeLocked(name)
	s.defs = append(s.defs, scheduleDef{
		name:    name,
		spec:    spec,
		timeout: timeout,
		job:     job,
		running: running,
		skipped: skipped,
	})
	if s.c != nil {
		s.registerLocked(&s.defs[len(s.defs)-1])
	}
	s.log.Debug("schedule registered", logx.String("name", name), logx.String("spec", spec), logx.Duration("timeout", timeout))
	return nil
}

// Remove unschedules name. It reports whether something was removed.
func (s *Service) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(strings.TrimSpace(name))
}

func (s *Service) removeLocked(name string) bool {
	n := 0
	removed := false
	for _, d := range s.defs {
		if d.name == name {
			if s.c != nil && d.entryID != 0 {
				s.c.Remove(d.entryID)
			}
			removed = true
			continue
		}
		s.defs[n] = d
		n++
	}
	s.defs = s.defs[:n]
	return removed
}

func (s *Service) registerLocked(d *scheduleDef) {
	def := *d
	job := cron.FuncJob(func() { s.run(def) })

	// Interval schedules get a random first-run delay so restarts don't
	// trigger every sweep at once.
	if every, ok := strings.CutPrefix(d.spec, "@every "); ok {
		if dur, err := time.ParseDuration(every); err == nil && dur > 0 {
			d.entryID = s.c.Schedule(withStartupSpread(dur, time.Now()), job)
			return
		}
	}
	eid, err := s.c.AddJob(d.spec, job)
	if err != nil {
		s.log.Error("schedule register failed", logx.String("name", d.name), logx.String("spec", d.spec), logx.Err(err))
		return
	}
	d.entryID = eid
}

// run executes one trigger of d. Overlapping triggers are skipped.
func (s *Service) run(d scheduleDef) {
	if !d.running.CompareAndSwap(false, true) {
		d.skipped.Add(1)
		s.log.Debug("schedule trigger skipped; previous run in flight", logx.String("name", d.name))
		return
	}
	defer d.running.Store(false)

	s.mu.Lock()
	base := s.baseCtx
	s.mu.Unlock()
	if base == nil {
		base = context.Background()
	}
	ctx, cancel := base, context.CancelFunc(func() {})
	if d.timeout > 0 {
		ctx, cancel = context.WithTimeout(base, d.timeout)
	}
	defer cancel()

	start := time.Now()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return d.job(ctx)
	}()
	took := time.Since(start)

	ev := RunEvent{Name: d.name, Took: took}
	if err != nil {
		ev.Error = err.Error()
		s.log.Warn("scheduled run failed", logx.String("name", d.name), logx.Duration("took", took), logx.Err(err))
	} else {
		s.log.Debug("scheduled run done", logx.String("name", d.name), logx.Duration("took", took))
	}
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: "scheduler.run", Data: ev})
	}
}

// Schedules lists registered schedules with their next and previous trigger times.
func (s *Service) Schedules() []ScheduleInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ScheduleInfo, 0, len(s.defs))
	for _, d := range s.defs {
		it := ScheduleInfo{Name: d.name, Spec: d.spec, Timeout: d.timeout, Running: d.running.Load(), Skipped: d.skipped.Load()}
		if s.c != nil && d.entryID != 0 {
			e := s.c.Entry(d.entryID)
			it.Next, it.Prev = e.Next, e.Prev
		}
		out = append(out, it)
	}
	return out
}
