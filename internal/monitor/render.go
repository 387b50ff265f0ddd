package monitor

import (
	"fmt"
	"time"

	"uptimeninja/internal/email"
	"uptimeninja/pkg/tgui"
)

// ExpiryDateLayout formats certificate dates in alerts and /checkssl replies.
const ExpiryDateLayout = "January 2, 2006"

// Alert is one notification decided by the engine.
type Alert struct {
	Kind     AlertKind
	Endpoint Endpoint
	// ProbeErr is set when a down classification came from a failed request
	// rather than a bad status code.
	ProbeErr  error
	DaysLeft  int
	ExpiresAt time.Time
	At        time.Time
}

// ChatText renders the alert as Telegram HTML.
func (a Alert) ChatText() string {
	link := tgui.BoldLink(a.Endpoint.Name, a.Endpoint.URL)
	switch a.Kind {
	case AlertDown:
		if a.ProbeErr != nil {
			return tgui.Fmt("❌ %s is not reachable!", link).String()
		}
		return tgui.Fmt("⚠️ %s is DOWN!", link).String()
	case AlertUp:
		return tgui.Fmt("✅ %s is back UP!", link).String()
	case AlertCertExpiry:
		return tgui.Lines(
			tgui.Fmt("⚠️ SSL Certificate Expiry Alert for %s", link),
			tgui.Fmt("Certificate will expire in %d days on %s", a.DaysLeft, a.ExpiresAt.Format(ExpiryDateLayout)),
		).String()
	default:
		return ""
	}
}

// EmailMessage renders the email form of an up/down alert. ok is false for
// kinds that are chat-only.
func (a Alert) EmailMessage() (subject, body string, ok bool, err error) {
	var status string
	switch a.Kind {
	case AlertDown:
		status = "DOWN"
	case AlertUp:
		status = "UP"
	default:
		return "", "", false, nil
	}
	body, err = email.StatusBody(a.Endpoint.Name, a.Endpoint.URL, status, a.At)
	if err != nil {
		return "", "", false, fmt.Errorf("render email: %w", err)
	}
	return email.StatusSubject(status, a.Endpoint.Name), body, true, nil
}
