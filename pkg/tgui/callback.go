package tgui

import (
	"errors"
	"strings"
)

// MaxCallbackDataLen is Telegram's callback_data size limit in bytes.
const MaxCallbackDataLen = 64

var ErrCallbackDataTooLong = errors.New("tgui: callback_data too long")

// Data formats callback data as "scope:action" or "scope:action:payload".
func Data(scope, action, payload string) (string, error) {
	s := strings.TrimSpace(scope) + ":" + strings.TrimSpace(action)
	if payload != "" {
		s += ":" + payload
	}
	if len(s) > MaxCallbackDataLen {
		return "", ErrCallbackDataTooLong
	}
	return s, nil
}

// ParseData splits callback data produced by Data.
// Telebot prefixes unique-button data with '\f'; it is stripped.
func ParseData(data string) (scope, action, payload string, ok bool) {
	data = strings.TrimPrefix(strings.TrimSpace(data), "\f")
	parts := strings.SplitN(data, ":", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", "", false
	}
	if len(parts) == 3 {
		payload = parts[2]
	}
	return parts[0], parts[1], payload, true
}
