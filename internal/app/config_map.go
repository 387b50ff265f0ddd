package app

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"uptimeninja/internal/config"
	"uptimeninja/internal/conversation"
	"uptimeninja/internal/email"
	"uptimeninja/internal/monitor"
	"uptimeninja/internal/notifier"
	"uptimeninja/internal/observability/ops"
	"uptimeninja/internal/storage"
	"uptimeninja/internal/task/scheduler"
	logx "uptimeninja/pkg/logx"
)

const (
	defaultLivenessSchedule    = "@every 1m"
	defaultCertificateSchedule = "0 0 * * *"
	defaultExpiryWindowDays    = 2
	defaultSQLitePath          = "./data/uptimeninja.db"
)

// schedules holds the two sweep triggers and the certificate window.
type schedules struct {
	Liveness    string
	Certificate string
	WindowDays  int
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	switch driver {
	case "", "sqlite", "sqlite3":
		path := strings.TrimSpace(sc.Path)
		if path == "" {
			path = defaultSQLitePath
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, err
		}
		return storage.Config{Driver: "sqlite", Path: path, BusyTimeout: busy}, nil
	case "postgres", "postgresql", "pg":
		if strings.TrimSpace(sc.DSN) == "" {
			return storage.Config{}, fmt.Errorf("storage.dsn is required when storage.driver=postgres")
		}
		if sc.MaxOpenConn < 0 {
			return storage.Config{}, fmt.Errorf("storage.max_open_conns must be >= 0")
		}
		return storage.Config{Driver: "postgres", DSN: strings.TrimSpace(sc.DSN), MaxOpenConns: sc.MaxOpenConn}, nil
	default:
		return storage.Config{}, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapMonitorConfig(cfg *config.Config) (monitor.Config, error) {
	mc := cfg.Monitor
	probe, err := config.ParseDurationOrDefault("monitor.probe_timeout", mc.ProbeTimeout, 5*time.Second)
	if err != nil {
		return monitor.Config{}, err
	}
	cert, err := config.ParseDurationOrDefault("monitor.certificate_timeout", mc.CertificateTimeout, 10*time.Second)
	if err != nil {
		return monitor.Config{}, err
	}
	if mc.Concurrency < 0 {
		return monitor.Config{}, fmt.Errorf("monitor.concurrency must be >= 0")
	}
	return monitor.Config{ProbeTimeout: probe, CertTimeout: cert, Concurrency: mc.Concurrency}, nil
}

func mapSchedules(cfg *config.Config) (schedules, error) {
	out := schedules{
		Liveness:    strings.TrimSpace(cfg.Monitor.LivenessSchedule),
		Certificate: strings.TrimSpace(cfg.Monitor.CertificateSchedule),
		WindowDays:  cfg.Monitor.ExpiryWindowDays,
	}
	if out.Liveness == "" {
		out.Liveness = defaultLivenessSchedule
	}
	if out.Certificate == "" {
		out.Certificate = defaultCertificateSchedule
	}
	if out.WindowDays < 0 {
		return schedules{}, fmt.Errorf("monitor.expiry_window_days must be >= 0")
	}
	if out.WindowDays == 0 {
		out.WindowDays = defaultExpiryWindowDays
	}
	if _, err := scheduler.ParseSchedule(out.Liveness); err != nil {
		return schedules{}, fmt.Errorf("monitor.liveness_schedule: %w", err)
	}
	if _, err := scheduler.ParseSchedule(out.Certificate); err != nil {
		return schedules{}, fmt.Errorf("monitor.certificate_schedule: %w", err)
	}
	return out, nil
}

func mapSchedulerConfig(cfg *config.Config) (scheduler.Config, error) {
	tz := strings.TrimSpace(cfg.Scheduler.Timezone)
	if tz == "" {
		tz = "UTC"
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return scheduler.Config{}, fmt.Errorf("scheduler.timezone: invalid %q: %w", tz, err)
	}
	return scheduler.Config{Enabled: cfg.Scheduler.IsEnabled(), Timezone: tz}, nil
}

// mapNotifierConfig treats an omitted section as enabled with defaults.
func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	if cfg.Notifier == nil {
		return notifier.Config{Enabled: true}, nil
	}
	nc := cfg.Notifier
	if nc.Workers < 0 || nc.QueueSize < 0 || nc.RatePerSec < 0 {
		return notifier.Config{}, fmt.Errorf("notifier: workers, queue_size and rate_per_sec must be >= 0")
	}
	timeout, err := config.ParseDurationField("notifier.send_timeout", nc.SendTimeout)
	if err != nil {
		return notifier.Config{}, err
	}
	return notifier.Config{
		Enabled:     nc.Enabled,
		Workers:     nc.Workers,
		QueueSize:   nc.QueueSize,
		RatePerSec:  nc.RatePerSec,
		SendTimeout: timeout,
	}, nil
}

func mapConversationConfig(cfg *config.Config) (conversation.Config, error) {
	d, err := config.ParseDurationOrDefault("conversation.session_timeout", cfg.Conversation.SessionTimeout, 60*time.Second)
	if err != nil {
		return conversation.Config{}, err
	}
	return conversation.Config{SessionTimeout: d}, nil
}

func mapEmailConfig(cfg *config.Config) email.Config {
	ec := cfg.Email
	return email.Config{
		Provider: ec.Provider,
		From:     ec.From,
		SMTP: email.SMTPConfig{
			Host:     ec.SMTP.Host,
			Port:     ec.SMTP.Port,
			Username: ec.SMTP.Username,
			Password: ec.SMTP.Password,
		},
	}
}

func mapOpsConfig(cfg *config.Config) (ops.Config, error) {
	oc := cfg.Ops
	out := ops.Config{
		Enabled:       oc.Enabled,
		Addr:          strings.TrimSpace(oc.Addr),
		Token:         oc.Token,
		AllowInsecure: oc.AllowInsecure,
		Pprof:         oc.Pprof,
	}
	if out.Addr == "" {
		out.Addr = ops.DefaultAddr
	}
	if out.Enabled && !out.AllowInsecure && out.Token == "" && !ops.IsLoopbackAddr(out.Addr) {
		return ops.Config{}, fmt.Errorf("ops.addr %q is not loopback; set ops.token or ops.allow_insecure", out.Addr)
	}
	return out, nil
}

// mapLoggingConfig resolves telegram.group_log into the operator sink target.
func mapLoggingConfig(cfg *config.Config) (logx.Config, error) {
	lc := cfg.Logging
	out := logx.Config{
		Level:   lc.Level,
		Console: lc.Console,
		File:    logx.FileConfig{Enabled: lc.File.Enabled, Path: lc.File.Path},
		Operator: logx.OperatorConfig{
			Enabled:    lc.Telegram.Enabled,
			ThreadID:   lc.Telegram.ThreadID,
			MinLevel:   lc.Telegram.MinLevel,
			RatePerSec: lc.Telegram.RatePerSec,
		},
	}
	if raw := strings.TrimSpace(cfg.Telegram.GroupLog); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return logx.Config{}, fmt.Errorf("telegram.group_log: invalid chat id %q", raw)
		}
		out.Operator.ChatID = id
	}
	if out.Operator.Enabled && out.Operator.ChatID == 0 {
		return logx.Config{}, fmt.Errorf("logging.telegram.enabled requires telegram.group_log")
	}
	return out, nil
}

// validate rejects a config that any mapping would refuse.
func validate(cfg *config.Config) error {
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is required")
	}
	if _, err := config.ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
		return err
	}
	if _, err := mapLoggingConfig(cfg); err != nil {
		return err
	}
	if _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	if _, err := mapMonitorConfig(cfg); err != nil {
		return err
	}
	if _, err := mapSchedules(cfg); err != nil {
		return err
	}
	if _, err := mapSchedulerConfig(cfg); err != nil {
		return err
	}
	if _, err := mapNotifierConfig(cfg); err != nil {
		return err
	}
	if _, err := mapConversationConfig(cfg); err != nil {
		return err
	}
	if _, err := mapOpsConfig(cfg); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Email.Provider)) {
	case "smtp":
		if cfg.Email.SMTP.Host == "" || cfg.Email.From == "" {
			return fmt.Errorf("email.smtp.host and email.from are required when email.provider=smtp")
		}
	case "", "log", "mock", "none", "disabled", "off":
	default:
		return fmt.Errorf("unknown email.provider: %s", cfg.Email.Provider)
	}
	return nil
}
