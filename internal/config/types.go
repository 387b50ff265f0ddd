package config

// Config is the on-disk configuration (JSON or YAML).
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Telegram     TelegramConfig     `json:"telegram"`
	Logging      LoggingConfig      `json:"logging"`
	Storage      StorageConfig      `json:"storage"`
	Monitor      MonitorConfig      `json:"monitor"`
	Scheduler    SchedulerConfig    `json:"scheduler"`
	Notifier     *NotifierConfig    `json:"notifier,omitempty"`
	Conversation ConversationConfig `json:"conversation"`
	Email        EmailConfig        `json:"email"`
	Ops          OpsConfig          `json:"ops"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// GroupLog is the operator chat id receiving warn+ logs.
	GroupLog    string `json:"group_log,omitempty"`
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// StorageConfig selects the relational backend.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/uptimeninja.db" }
//	"storage": { "driver": "postgres", "dsn": "postgres://bot@localhost/uptime?sslmode=disable" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	DSN         string `json:"dsn,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite
	MaxOpenConn int    `json:"max_open_conns,omitempty"`
}

// MonitorConfig controls the liveness and certificate sweeps.
//
// Defaults (when omitted/zero):
//   - liveness_schedule: "@every 1m"
//   - certificate_schedule: "0 0 * * *"
//   - probe_timeout: "5s"
//   - certificate_timeout: "10s"
//   - expiry_window_days: 2
//   - concurrency: 8
type MonitorConfig struct {
	LivenessSchedule    string `json:"liveness_schedule,omitempty"`
	CertificateSchedule string `json:"certificate_schedule,omitempty"`
	ProbeTimeout        string `json:"probe_timeout,omitempty"`
	CertificateTimeout  string `json:"certificate_timeout,omitempty"`
	ExpiryWindowDays    int    `json:"expiry_window_days,omitempty"`
	Concurrency         int    `json:"concurrency,omitempty"`
	UserAgent           string `json:"user_agent,omitempty"`
}

// SchedulerConfig drives the sweep triggers. Enabled defaults to true when
// omitted so a minimal config still monitors.
type SchedulerConfig struct {
	Enabled *bool `json:"enabled,omitempty"`
	// Trigger timezone (IANA). Defaults to UTC.
	Timezone string `json:"timezone,omitempty"`
}

func (c SchedulerConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// NotifierConfig controls the async delivery pipeline.
// If the whole section is omitted, the notifier defaults to enabled.
type NotifierConfig struct {
	Enabled     bool   `json:"enabled"`
	Workers     int    `json:"workers"`
	QueueSize   int    `json:"queue_size"`
	RatePerSec  int    `json:"rate_per_sec"`
	SendTimeout string `json:"send_timeout,omitempty"`
}

type ConversationConfig struct {
	SessionTimeout string `json:"session_timeout,omitempty"`
}

// EmailConfig selects the outbound email provider.
//
// Provider values: "log" (default, logs instead of sending), "smtp", "none".
type EmailConfig struct {
	Provider string     `json:"provider"`
	From     string     `json:"from,omitempty"`
	SMTP     SMTPConfig `json:"smtp,omitempty"`
}

type SMTPConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// OpsConfig controls the operational HTTP server (metrics, health, pprof).
//
// Security note: prefer binding to localhost. A non-loopback address requires
// a token unless allow_insecure is set.
type OpsConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"` // default: "127.0.0.1:9090"
	Token         string `json:"token,omitempty"`
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	Pprof         bool   `json:"pprof,omitempty"`
}
