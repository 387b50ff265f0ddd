package config

import (
	"reflect"
	"strings"

	logx "uptimeninja/pkg/logx"
)

// SummarizeConfigChange returns the changed sections and safe log attrs.
// Secrets (tokens, passwords, DSNs) are never included.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 8)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Telegram.Token != newCfg.Telegram.Token ||
		strings.TrimSpace(oldCfg.Telegram.PollTimeout) != strings.TrimSpace(newCfg.Telegram.PollTimeout) ||
		strings.TrimSpace(oldCfg.Telegram.GroupLog) != strings.TrimSpace(newCfg.Telegram.GroupLog) {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.token_changed", oldCfg.Telegram.Token != newCfg.Telegram.Token),
			logx.Bool("telegram.group_log_set", strings.TrimSpace(newCfg.Telegram.GroupLog) != ""),
		)
	}
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.file", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram", newCfg.Logging.Telegram.Enabled),
		)
	}
	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs, logx.String("storage.driver", newCfg.Storage.Driver))
	}
	if oldCfg.Monitor != newCfg.Monitor {
		changed = append(changed, "monitor")
		attrs = append(attrs,
			logx.String("monitor.liveness_schedule", newCfg.Monitor.LivenessSchedule),
			logx.String("monitor.certificate_schedule", newCfg.Monitor.CertificateSchedule),
			logx.Int("monitor.concurrency", newCfg.Monitor.Concurrency),
		)
	}
	if !reflect.DeepEqual(oldCfg.Scheduler, newCfg.Scheduler) {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.Bool("scheduler.enabled", newCfg.Scheduler.IsEnabled()),
			logx.String("scheduler.timezone", newCfg.Scheduler.Timezone),
		)
	}
	if !reflect.DeepEqual(oldCfg.Notifier, newCfg.Notifier) {
		changed = append(changed, "notifier")
	}
	if oldCfg.Conversation != newCfg.Conversation {
		changed = append(changed, "conversation")
		attrs = append(attrs, logx.String("conversation.session_timeout", newCfg.Conversation.SessionTimeout))
	}
	if oldCfg.Email != newCfg.Email {
		changed = append(changed, "email")
		attrs = append(attrs, logx.String("email.provider", newCfg.Email.Provider))
	}
	if oldCfg.Ops != newCfg.Ops {
		changed = append(changed, "ops")
		attrs = append(attrs,
			logx.Bool("ops.enabled", newCfg.Ops.Enabled),
			logx.String("ops.addr", newCfg.Ops.Addr),
			logx.Bool("ops.token_set", newCfg.Ops.Token != ""),
		)
	}
	return changed, attrs
}

// RequiresRestart reports sections whose changes only take effect after a restart.
func RequiresRestart(sections []string) []string {
	var out []string
	for _, s := range sections {
		switch s {
		case "storage", "email":
			out = append(out, s)
		}
	}
	return out
}
