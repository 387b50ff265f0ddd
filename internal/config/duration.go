package config

import (
	"fmt"
	"strings"
	"time"
)

// ParseDurationField parses a Go duration stored at path. Blank means zero;
// negative values are rejected.
func ParseDurationField(path, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	switch {
	case err != nil:
		return 0, fmt.Errorf("%s: %q is not a duration (want e.g. 30s, 5m): %w", path, raw, err)
	case d < 0:
		return 0, fmt.Errorf("%s: %s is negative", path, raw)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with def for blank or zero values.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil || d > 0 {
		return d, err
	}
	return def, nil
}
