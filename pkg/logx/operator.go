package logx

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

func (s *Service) operatorLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ln := <-s.queue:
			s.mu.Lock()
			send := s.send
			s.mu.Unlock()
			if send == nil {
				continue
			}
			sctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			_ = send(sctx, ln.chatID, ln.threadID, ln.text)
			cancel()
		}
	}
}

// operatorWriter is a zerolog.LevelWriter that never blocks the caller.
type operatorWriter struct{ svc *Service }

func (w *operatorWriter) Write(p []byte) (int, error) {
	return w.WriteLevel(zerolog.InfoLevel, p)
}

func (w *operatorWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	s := w.svc
	s.mu.Lock()
	op := s.cfg.Operator
	lim := s.limiter
	minLevel := s.minLevel
	s.mu.Unlock()

	if op.ChatID == 0 || level < minLevel || lim == nil || !lim.Allow() {
		return len(p), nil
	}
	text := formatOperatorLine(p)
	if text == "" {
		return len(p), nil
	}
	select {
	case s.queue <- operatorLine{chatID: op.ChatID, threadID: op.ThreadID, text: text}:
	default:
	}
	return len(p), nil
}

// formatOperatorLine renders one zerolog JSON line as plain text.
func formatOperatorLine(p []byte) string {
	var m map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(p))), &m); err != nil {
		return truncate(strings.TrimSpace(string(p)), 3500)
	}

	lvl, _ := m["level"].(string)
	msg, _ := m["message"].(string)

	keys := make([]string, 0, len(m))
	for k := range m {
		switch k {
		case "time", "level", "message":
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	if lvl != "" {
		b.WriteString("[" + strings.ToUpper(lvl) + "] ")
	}
	b.WriteString(msg)
	for _, k := range keys {
		b.WriteString("\n- ")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(truncate(fmt.Sprint(m[k]), 600))
	}
	return truncate(b.String(), 3500)
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n < 10 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
