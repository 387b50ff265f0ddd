package monitor

import "time"

type AlertKind int

const (
	AlertNone AlertKind = iota
	AlertDown
	AlertUp
	AlertCertExpiry
)

func (k AlertKind) String() string {
	switch k {
	case AlertDown:
		return "down"
	case AlertUp:
		return "up"
	case AlertCertExpiry:
		return "cert_expiry"
	default:
		return "none"
	}
}

// Classify maps a probe result to up or down. Only a completed request with
// a status in [200,400) counts as up.
func Classify(statusCode int, err error) Status {
	if err != nil {
		return StatusDown
	}
	if statusCode >= 200 && statusCode < 400 {
		return StatusUp
	}
	return StatusDown
}

// Decide applies the transition table to a persisted status and a fresh
// classification. write reports whether next must be persisted.
//
//	down      + up   -> up,   AlertUp
//	not down  + down -> down, AlertDown
//	otherwise        -> no write, no alert
func Decide(persisted, classified Status) (next Status, alert AlertKind, write bool) {
	switch {
	case persisted == StatusDown && classified == StatusUp:
		return StatusUp, AlertUp, true
	case persisted != StatusDown && classified == StatusDown:
		return StatusDown, AlertDown, true
	default:
		return persisted, AlertNone, false
	}
}

// ExpiresWithin reports now < validTo <= now+withinDays.
func ExpiresWithin(validTo, now time.Time, withinDays int) bool {
	if !validTo.After(now) {
		return false
	}
	return !validTo.After(now.Add(time.Duration(withinDays) * 24 * time.Hour))
}

// DaysRemaining is the whole-day floor of validTo-now.
func DaysRemaining(validTo, now time.Time) int {
	return int(validTo.Sub(now) / (24 * time.Hour))
}
