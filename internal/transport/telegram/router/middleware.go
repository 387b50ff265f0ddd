package router

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	logx "uptimeninja/pkg/logx"
)

type HandlerFunc func(ctx context.Context, req *Request) error

type Middleware func(next HandlerFunc) HandlerFunc

// slowRequest promotes a successful request line from debug to info.
const slowRequest = 750 * time.Millisecond

// Chain wraps h so the first middleware runs outermost.
func Chain(h HandlerFunc, mws ...Middleware) HandlerFunc {
	for i := range mws {
		h = mws[len(mws)-1-i](h)
	}
	return h
}

// PanicError is what a handler returns after Recover caught its panic.
type PanicError struct {
	Command string
	Value   any
}

func (e *PanicError) Error() string {
	if e.Command == "" {
		return fmt.Sprintf("handler panic: %v", e.Value)
	}
	return fmt.Sprintf("handler %s panic: %v", e.Command, e.Value)
}

// WithDeadline bounds each handler run. d <= 0 leaves ctx untouched.
func WithDeadline(d time.Duration) Middleware {
	if d <= 0 {
		return func(next HandlerFunc) HandlerFunc { return next }
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(ctx, req)
		}
	}
}

func Recover(log logx.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				pe := &PanicError{Value: r}
				if req != nil {
					pe.Command = req.Command
				}
				fields := append(requestFields(req), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
				loggerFor(log, req).Error("handler panicked", fields...)
				err = pe
			}()
			return next(ctx, req)
		}
	}
}

// LogRequests writes one line per handled update. Failures and timeouts are
// warnings; slow successes are info; the rest is debug.
func LogRequests(log logx.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			start := time.Now()
			err := next(ctx, req)
			took := time.Since(start)

			l := loggerFor(log, req)
			fields := append(requestFields(req), logx.Duration("took", took))
			switch {
			case errors.Is(err, context.DeadlineExceeded):
				l.Warn("request timed out", fields...)
			case err != nil:
				l.Warn("request failed", append(fields, logx.Err(err))...)
			case took >= slowRequest:
				l.Info("slow request", fields...)
			default:
				l.Debug("request handled", fields...)
			}
			return err
		}
	}
}

// requestFields describes the sender and what the update carried. Chat id,
// request id and command are already on req.Logger.
func requestFields(req *Request) []logx.Field {
	if req == nil {
		return nil
	}
	f := []logx.Field{
		logx.String("update", string(req.Update.Kind)),
		logx.Int64("user_id", req.FromID),
	}
	if req.FromUsername != "" {
		f = append(f, logx.String("username", req.FromUsername))
	}
	if req.Chat.ThreadID != 0 {
		f = append(f, logx.Int("thread_id", req.Chat.ThreadID))
	}
	if m := req.Update.Message; m != nil && m.IsGroup {
		f = append(f, logx.Bool("group", true))
	}
	switch {
	case req.Payload != "":
		f = append(f, logx.String("payload", req.Payload))
	case len(req.Args) > 0:
		f = append(f, logx.Int("args", len(req.Args)))
	}
	return f
}

func loggerFor(fallback logx.Logger, req *Request) logx.Logger {
	if req == nil || req.Logger.IsZero() {
		return fallback
	}
	return req.Logger
}
