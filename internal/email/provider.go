// Package email sends alert emails through a pluggable provider.
package email

import (
	"context"
	"fmt"
	"strings"

	logx "uptimeninja/pkg/logx"
)

// Provider defines the interface for email sending implementations.
type Provider interface {
	// Send delivers one HTML email. Implementations do not retry.
	Send(ctx context.Context, to, subject, htmlBody string) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

type Config struct {
	// Provider is one of "log" (default), "smtp" or "none".
	Provider string
	From     string
	SMTP     SMTPConfig
}

// NewProvider builds the provider named by cfg. It returns (nil, nil) for "none".
func NewProvider(cfg Config, log logx.Logger) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "log", "mock":
		return NewLogProvider(log), nil
	case "none", "disabled", "off":
		return nil, nil
	case "smtp":
		return NewSMTPProvider(cfg.SMTP, cfg.From)
	default:
		return nil, fmt.Errorf("email: unknown provider %q", cfg.Provider)
	}
}

// LogProvider logs the email instead of sending it.
type LogProvider struct {
	log logx.Logger
}

func NewLogProvider(log logx.Logger) *LogProvider {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &LogProvider{log: log}
}

func (p *LogProvider) Send(_ context.Context, to, subject, htmlBody string) error {
	p.log.Info("mock email",
		logx.String("to", to),
		logx.String("subject", subject),
		logx.Int("body_length", len(htmlBody)),
	)
	return nil
}
