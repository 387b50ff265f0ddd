package conversation

import (
	"errors"
	"net/mail"
	"net/url"
	"strings"
	"unicode/utf8"
)

var (
	ErrInvalidURL   = errors.New("conversation: invalid url")
	ErrInvalidName  = errors.New("conversation: invalid monitor name")
	ErrInvalidEmail = errors.New("conversation: invalid email address")
)

const MaxNameLen = 100

// NormalizeURL trims raw and prefixes https:// when no http(s) scheme is
// given. The result must be an absolute http(s) URL with a host.
func NormalizeURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" || strings.ContainsAny(s, " \t\r\n") {
		return "", ErrInvalidURL
	}
	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "http://"), strings.HasPrefix(low, "https://"):
	case strings.Contains(low, "://"):
		return "", ErrInvalidURL
	default:
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Hostname() == "" {
		return "", ErrInvalidURL
	}
	if sc := strings.ToLower(u.Scheme); sc != "http" && sc != "https" {
		return "", ErrInvalidURL
	}
	return s, nil
}

func ValidateName(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" || utf8.RuneCountInString(s) > MaxNameLen {
		return "", ErrInvalidName
	}
	return s, nil
}

// ValidateEmail accepts a bare addr-spec such as "ops@example.com".
// Display-name forms are rejected.
func ValidateEmail(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Name != "" || addr.Address != s {
		return "", ErrInvalidEmail
	}
	return s, nil
}
