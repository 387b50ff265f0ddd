package storage

import (
	"errors"
	"time"
)

var ErrClosed = errors.New("storage closed")

// Config configures storage.
type Config struct {
	// Driver is "sqlite" (default) or "postgres".
	Driver string
	// Path is the sqlite database file.
	Path string
	// DSN is the postgres connection string.
	DSN string
	// BusyTimeout applies to sqlite only; 0 means 1s.
	BusyTimeout time.Duration
	// MaxOpenConns applies to postgres only; 0 means 10.
	MaxOpenConns int
}
