package monitor

import (
	"context"
	"errors"
	"time"
)

type Status string

const (
	StatusUnknown Status = "unknown"
	StatusUp      Status = "up"
	StatusDown    Status = "down"
)

// ParseStatus maps a stored value to a Status. Anything unrecognized is unknown.
func ParseStatus(s string) Status {
	switch Status(s) {
	case StatusUp, StatusDown:
		return Status(s)
	default:
		return StatusUnknown
	}
}

// CertMeta is the validity window of an endpoint's leaf certificate.
type CertMeta struct {
	ValidFrom time.Time
	ValidTo   time.Time
	// Valid is the chain verification result at inspection time. Not persisted.
	Valid bool
}

type Endpoint struct {
	ID           int64
	SubscriberID int64
	URL          string
	Name         string
	Status       Status
	Cert         *CertMeta
}

type Subscriber struct {
	ID         int64
	UserName   string
	Email      string
	EmailOptIn bool
}

// ErrAlreadyMonitored is returned when (subscriber, url) is already registered.
var ErrAlreadyMonitored = errors.New("monitor: endpoint already monitored")

// Registry is the durable endpoint store. Every call is atomic on its own.
type Registry interface {
	Exists(ctx context.Context, subscriberID int64, url string) (bool, error)
	Insert(ctx context.Context, ep Endpoint) (Endpoint, error)
	Delete(ctx context.Context, subscriberID int64, url string) error
	DeleteAll(ctx context.Context, subscriberID int64) error
	List(ctx context.Context, subscriberID int64) ([]Endpoint, error)
	All(ctx context.Context) ([]Endpoint, error)
	// StatusOf returns the persisted status; ok is false when the row is gone.
	StatusOf(ctx context.Context, id int64) (status Status, ok bool, err error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
	// UpdateCertMeta reports whether a row matched.
	UpdateCertMeta(ctx context.Context, subscriberID int64, url string, meta CertMeta) (bool, error)
	// ExpiringBetween returns endpoints whose certificate ends in (from, to].
	ExpiringBetween(ctx context.Context, from, to time.Time) ([]Endpoint, error)
}

type Subscribers interface {
	Save(ctx context.Context, id int64, userName string) error
	Get(ctx context.Context, id int64) (Subscriber, bool, error)
	// SetEmail stores the address and opts the subscriber in.
	SetEmail(ctx context.Context, id int64, email string) error
	SetEmailOptIn(ctx context.Context, id int64, optIn bool) error
}

// Prober performs one reachability request. The deadline comes from ctx.
type Prober interface {
	Probe(ctx context.Context, url string) (statusCode int, err error)
}

type CertInspector interface {
	Inspect(ctx context.Context, target string) (CertMeta, error)
}

// Notifier delivers alerts asynchronously. A returned error means the alert
// was not accepted; delivery failures after acceptance are never reported.
type Notifier interface {
	Chat(ctx context.Context, chatID int64, html string) error
	Email(ctx context.Context, to, subject, html string) error
}
