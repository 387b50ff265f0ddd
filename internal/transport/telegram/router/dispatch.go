package router

import (
	"context"
	"hash/fnv"
	"strconv"
	"strings"
	"time"

	rtsup "uptimeninja/internal/runtime/supervisor"
	kit "uptimeninja/internal/transport"
	logx "uptimeninja/pkg/logx"
	"uptimeninja/pkg/tgui"
)

const msgBusy = "⏳ Busy, please try again in a moment."

// Run consumes updates until ctx is done or updates is closed.
func (r *Router) Run(ctx context.Context, updates <-chan kit.Update) error {
	sup := rtsup.New(ctx,
		rtsup.WithLogger(r.log.With(logx.String("comp", "telegram.router"))),
		rtsup.WithCancelOnError(false),
	)
	queues := make([]chan func(context.Context), r.cfg.Workers)
	for i := range queues {
		queues[i] = make(chan func(context.Context), r.cfg.QueueSize)
	}
	r.runMu.Lock()
	r.sup, r.queues = sup, queues
	r.runMu.Unlock()

	for i, q := range queues {
		q := q
		sup.GoRestart("router.worker."+strconv.Itoa(i), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case job := <-q:
					job(c)
				}
			}
		},
			rtsup.WithRestartBackoff(200*time.Millisecond, 5*time.Second),
			rtsup.WithStopOnCleanExit(true),
		)
	}
	r.log.Info("router started", logx.Int("workers", len(queues)), logx.Int("queue_cap", r.cfg.QueueSize))

	defer func() {
		sup.Cancel()
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Wait(wctx)
		cancel()
		r.runMu.Lock()
		r.sup, r.queues = nil, nil
		r.runMu.Unlock()
		r.log.Info("router stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			r.route(ctx, up)
		}
	}
}

// Supervisor returns the worker supervisor while Run is active.
func (r *Router) Supervisor() *rtsup.Supervisor {
	r.runMu.Lock()
	defer r.runMu.Unlock()
	return r.sup
}

func (r *Router) enqueue(chatID int64, job func(context.Context)) bool {
	r.runMu.Lock()
	queues := r.queues
	r.runMu.Unlock()
	if len(queues) == 0 {
		return false
	}
	select {
	case queues[shard(chatID, len(queues))] <- job:
		return true
	default:
		return false
	}
}

func shard(chatID int64, n int) int {
	h := fnv.New32a()
	h.Write([]byte(strconv.FormatInt(chatID, 10)))
	return int(h.Sum32() % uint32(n))
}

func (r *Router) route(ctx context.Context, up kit.Update) {
	switch up.Kind {
	case kit.UpdateMessage:
		if up.Message != nil {
			r.routeMessage(ctx, up)
		}
	case kit.UpdateCallback:
		if up.Callback != nil {
			r.routeCallback(ctx, up)
		}
	}
}

func (r *Router) newRequest(up kit.Update, command string) *Request {
	req := &Request{Update: up, Command: command, ReqID: newReqID(), Adapter: r.adapter}
	switch {
	case up.Message != nil:
		m := up.Message
		req.Chat = kit.ChatTarget{ChatID: m.ChatID, ThreadID: m.ThreadID}
		req.FromID, req.FromUsername, req.Text = m.FromID, m.FromUsername, m.Text
	case up.Callback != nil:
		cb := up.Callback
		req.Chat = kit.ChatTarget{ChatID: cb.ChatID, ThreadID: cb.ThreadID}
		req.FromID, req.FromUsername = cb.FromID, cb.FromUsername
	}
	req.Logger = r.log.With(
		logx.String("rid", req.ReqID),
		logx.Int64("chat_id", req.Chat.ChatID),
		logx.String("cmd", command),
	)
	return req
}

func (r *Router) wrap(h HandlerFunc, timeout time.Duration) HandlerFunc {
	if timeout <= 0 {
		timeout = r.cfg.DefaultTimeout
	}
	return Chain(h, Recover(r.log), LogRequests(r.log), WithDeadline(timeout))
}

func (r *Router) routeMessage(ctx context.Context, up kit.Update) {
	msg := up.Message
	text := strings.TrimSpace(msg.Text)

	r.mu.RLock()
	hooks := r.hooks
	byName := r.byName
	r.mu.RUnlock()

	if !strings.HasPrefix(text, "/") {
		if hooks.Text == nil || text == "" {
			return
		}
		req := r.newRequest(up, "text")
		h := r.wrap(hooks.Text, 0)
		if !r.enqueue(msg.ChatID, func(c context.Context) { _ = h(c, req) }) {
			_ = req.Reply(ctx, msgBusy, nil)
		}
		return
	}

	word, rest := splitCommand(text)
	cmd, known := byName[word]
	name := word
	if known {
		name = cmd.Name
	}
	req := r.newRequest(up, name)
	req.ArgText = rest
	req.Args = tokenizeCommandLine(rest)

	var h HandlerFunc
	if known {
		h = r.wrap(cmd.Handle, cmd.Timeout)
		r.metrics.Command(name)
	}
	job := func(c context.Context) {
		if hooks.BeforeCommand != nil {
			hooks.BeforeCommand(c, req)
		}
		if h == nil {
			_ = req.Reply(c, "Unknown command. Try /help", nil)
			return
		}
		_ = h(c, req)
	}
	if !r.enqueue(msg.ChatID, job) {
		_ = req.Reply(ctx, msgBusy, nil)
	}
}

// splitCommand returns the lowercased command word without its "/" and
// "@botname" suffix, and the trimmed remainder.
func splitCommand(text string) (word, rest string) {
	word, rest, _ = strings.Cut(strings.TrimPrefix(text, "/"), " ")
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	if i := strings.IndexAny(word, "\n\t"); i >= 0 {
		rest = word[i:] + " " + rest
		word = word[:i]
	}
	return strings.ToLower(word), strings.TrimSpace(rest)
}

func (r *Router) routeCallback(ctx context.Context, up kit.Update) {
	cb := up.Callback
	scope, action, payload, ok := tgui.ParseData(cb.Data)
	if !ok {
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "")
		return
	}

	r.mu.RLock()
	rt, found := r.callbacks[scope+":"+action]
	r.mu.RUnlock()
	if !found {
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "")
		return
	}

	req := r.newRequest(up, "cb:"+scope+":"+action)
	req.Payload = payload
	h := r.wrap(rt.Handle, rt.Timeout)
	if !r.enqueue(cb.ChatID, func(c context.Context) {
		_ = h(c, req)
		// stop the client's loading indicator
		_ = r.adapter.AnswerCallback(c, cb.ID, "")
	}) {
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "busy")
	}
}
