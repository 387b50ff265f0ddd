// Package router turns transport updates into command, callback and free
// text handler calls. Updates of one chat are handled in arrival order; chats
// are spread across a fixed set of workers.
package router

import (
	"context"
	"strings"
	"sync"
	"time"

	"uptimeninja/internal/metrics"
	rtsup "uptimeninja/internal/runtime/supervisor"
	kit "uptimeninja/internal/transport"
	logx "uptimeninja/pkg/logx"
)

type Command struct {
	Name        string   // without the leading slash
	Aliases     []string // extra names, not shown in the menu
	Description string
	Usage       string
	Hidden      bool // keep out of the menu and /help
	Timeout     time.Duration
	Handle      HandlerFunc
}

// CallbackRoute handles inline button data of the form "scope:action[:payload]".
type CallbackRoute struct {
	Scope   string
	Action  string
	Timeout time.Duration
	Handle  HandlerFunc
}

// Hooks are optional handlers around command routing.
type Hooks struct {
	// BeforeCommand runs on the chat's worker right before any command,
	// unknown commands included.
	BeforeCommand func(ctx context.Context, req *Request)
	// Text receives messages that are not commands.
	Text HandlerFunc
}

type Request struct {
	Update       kit.Update
	Chat         kit.ChatTarget
	FromID       int64
	FromUsername string
	Command      string   // command name, "cb:scope:action" or "text"
	Args         []string // tokenized arguments
	ArgText      string   // arguments as typed, trimmed
	Text         string   // full message text
	Payload      string   // callback payload
	ReqID        string

	Adapter kit.Adapter
	Logger  logx.Logger
}

// Reply sends text to the request's chat.
func (r *Request) Reply(ctx context.Context, text string, opt *kit.SendOptions) error {
	_, err := r.Adapter.SendText(ctx, r.Chat, text, opt)
	return err
}

type Config struct {
	Workers        int           // default 4
	QueueSize      int           // per worker, default 64
	DefaultTimeout time.Duration // default 30s
}

type Router struct {
	mu        sync.RWMutex
	cmds      []Command
	byName    map[string]Command
	callbacks map[string]CallbackRoute // "scope:action"
	hooks     Hooks

	cfg     Config
	log     logx.Logger
	adapter kit.Adapter
	metrics *metrics.Metrics

	runMu  sync.Mutex
	sup    *rtsup.Supervisor
	queues []chan func(context.Context)
}

func New(cfg Config, adapter kit.Adapter, log logx.Logger, m *metrics.Metrics) *Router {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 30 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Router{
		byName:    map[string]Command{},
		callbacks: map[string]CallbackRoute{},
		cfg:       cfg,
		log:       log,
		adapter:   adapter,
		metrics:   m,
	}
}

func (r *Router) SetHooks(h Hooks) {
	r.mu.Lock()
	r.hooks = h
	r.mu.Unlock()
}

// SetRegistry replaces the command and callback tables. A /help command is
// added unless one is registered. The command menu is republished when the
// adapter supports it.
func (r *Router) SetRegistry(cmds []Command, cbs []CallbackRoute) {
	hasHelp := false
	for _, c := range cmds {
		if c.Name == "help" {
			hasHelp = true
		}
	}
	if !hasHelp {
		cmds = append(cmds, Command{
			Name:        "help",
			Aliases:     []string{"h"},
			Description: "Show available commands",
			Handle: func(ctx context.Context, req *Request) error {
				return req.Reply(ctx, r.HelpText(), &kit.SendOptions{ParseMode: "HTML", DisablePreview: true})
			},
		})
	}

	list := make([]Command, 0, len(cmds))
	byName := map[string]Command{}
	for _, c := range cmds {
		name := normalizeName(c.Name)
		if name == "" || c.Handle == nil {
			continue
		}
		c.Name = name
		list = append(list, c)
		byName[name] = c
		for _, a := range c.Aliases {
			if a = normalizeName(a); a != "" {
				if _, taken := byName[a]; !taken {
					byName[a] = c
				}
			}
		}
	}
	cb := map[string]CallbackRoute{}
	for _, rt := range cbs {
		s, a := strings.TrimSpace(rt.Scope), strings.TrimSpace(rt.Action)
		if s == "" || a == "" || rt.Handle == nil {
			continue
		}
		cb[s+":"+a] = rt
	}

	r.mu.Lock()
	r.cmds, r.byName, r.callbacks = list, byName, cb
	r.mu.Unlock()

	r.publishMenu(list)
}

// Commands returns the registered commands in registration order.
func (r *Router) Commands() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Command(nil), r.cmds...)
}

func (r *Router) publishMenu(cmds []Command) {
	up, ok := r.adapter.(kit.CommandMenuUpdater)
	if !ok {
		return
	}
	menu := menuCommands(cmds)
	run := func(parent context.Context) error {
		ctx, cancel := context.WithTimeout(parent, 5*time.Second)
		defer cancel()
		if err := up.UpdateMenuCommands(ctx, menu); err != nil {
			r.log.Warn("command menu update failed", logx.Err(err))
		}
		return nil
	}

	r.runMu.Lock()
	sup := r.sup
	r.runMu.Unlock()
	if sup != nil {
		sup.Go("telegram.menu.update", run)
		return
	}
	go func() { _ = run(context.Background()) }()
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "/"))
}
