package notifier

import "time"

const (
	ChannelTelegram = "telegram"
	ChannelEmail    = "email"
)

// Config controls the async notification pipeline.
type Config struct {
	Enabled     bool
	Workers     int
	QueueSize   int
	RatePerSec  int
	SendTimeout time.Duration
}

// Event is published on the event bus for queue lifecycle changes.
type Event struct {
	Channel string    `json:"channel"`
	ChatID  int64     `json:"chat_id,omitempty"`
	To      string    `json:"to,omitempty"`
	At      time.Time `json:"at"`
	Error   string    `json:"error,omitempty"`
}
