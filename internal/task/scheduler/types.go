package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"uptimeninja/internal/eventbus"
	logx "uptimeninja/pkg/logx"
)

// Config controls the scheduler service.
type Config struct {
	Enabled  bool
	Timezone string // IANA TZ, e.g. "Asia/Jakarta"; empty means Local
}

type Job func(ctx context.Context) error

type scheduleDef struct {
	name    string
	spec    string // normalized cron spec or "@every <d>"
	timeout time.Duration
	job     Job
	entryID cron.EntryID
	running *atomic.Bool
	skipped *atomic.Uint64
}

type Service struct {
	mu sync.Mutex

	log logx.Logger
	cfg Config
	loc *time.Location
	bus eventbus.Bus

	parser  cron.Parser
	c       *cron.Cron
	baseCtx context.Context
	defs    []scheduleDef
}

type ScheduleInfo struct {
	Name    string
	Spec    string
	Timeout time.Duration
	Running bool
	Skipped uint64
	Next    time.Time
	Prev    time.Time
}

// RunEvent is published as "scheduler.run" after each run.
type RunEvent struct {
	Name  string        `json:"name"`
	Took  time.Duration `json:"took"`
	Error string        `json:"error,omitempty"`
}
