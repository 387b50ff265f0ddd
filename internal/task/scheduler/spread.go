package scheduler

import (
	"math/rand"
	"time"

	"github.com/robfig/cron/v3"
)

const maxStartupSpread = 30 * time.Second

// spreadSchedule overrides the first run of an interval schedule.
type spreadSchedule struct {
	base  cron.Schedule
	first time.Time
}

func (s *spreadSchedule) Next(t time.Time) time.Time {
	if t.Before(s.first) {
		return s.first
	}
	return s.base.Next(t)
}

func withStartupSpread(every time.Duration, now time.Time) cron.Schedule {
	base := cron.Every(every)
	spread := min(every, maxStartupSpread)
	if spread <= 0 {
		return base
	}
	return &spreadSchedule{base: base, first: now.Add(every + time.Duration(rand.Int63n(int64(spread))))}
}
