// Package conversation implements the bot's commands and the multi-step
// prompts behind /add, /status, /checkssl and the email preference.
//
// A subscriber is identified by chat id. Pending prompts live in a
// session.Store; any command cancels a pending prompt before it runs, and an
// unanswered prompt expires with a notice.
package conversation

import (
	"context"
	"time"

	"uptimeninja/internal/metrics"
	"uptimeninja/internal/monitor"
	"uptimeninja/internal/session"
	kit "uptimeninja/internal/transport"
	"uptimeninja/internal/transport/telegram/router"
	logx "uptimeninja/pkg/logx"
	"uptimeninja/pkg/tgui"
)

// Monitor is the part of *monitor.Engine the conversation drives.
type Monitor interface {
	Register(ctx context.Context, subscriberID int64, name, url string) (monitor.Endpoint, error)
	RefreshCertificate(ctx context.Context, subscriberID int64, url string) (monitor.CertMeta, bool, error)
	Check(ctx context.Context, url string) (monitor.Status, error)
	Now() time.Time
}

// Sender delivers messages that are not replies to a request, such as the
// timeout notice.
type Sender interface {
	Chat(ctx context.Context, chatID int64, html string) error
}

type Config struct {
	SessionTimeout time.Duration
}

type Deps struct {
	Monitor     Monitor
	Registry    monitor.Registry
	Subscribers monitor.Subscribers
	Notices     Sender
	Log         logx.Logger
	Metrics     *metrics.Metrics
	// SessionOptions are passed to session.NewStore.
	SessionOptions []session.Option
}

type Controller struct {
	mon      Monitor
	reg      monitor.Registry
	subs     monitor.Subscribers
	notices  Sender
	log      logx.Logger
	sessions *session.Store
}

func New(cfg Config, d Deps) *Controller {
	log := d.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	c := &Controller{
		mon:     d.Monitor,
		reg:     d.Registry,
		subs:    d.Subscribers,
		notices: d.Notices,
		log:     log,
	}
	opts := append([]session.Option{session.WithMetrics(d.Metrics)}, d.SessionOptions...)
	c.sessions = session.NewStore(cfg.SessionTimeout, c.onExpire, opts...)
	return c
}

func (c *Controller) Apply(cfg Config) { c.sessions.SetTimeout(cfg.SessionTimeout) }

// Sessions exposes the session table for inspection.
func (c *Controller) Sessions() *session.Store { return c.sessions }

// Close drops pending sessions without notices.
func (c *Controller) Close() { c.sessions.Close() }

// Bind installs the commands, callbacks and hooks on r.
func (c *Controller) Bind(r *router.Router) {
	r.SetRegistry(c.Commands(), c.Callbacks())
	r.SetHooks(router.Hooks{BeforeCommand: c.beforeCommand, Text: c.handleText})
}

func (c *Controller) Commands() []router.Command {
	return []router.Command{
		{Name: "start", Description: "Start the bot", Handle: c.cmdStart},
		{Name: "alive", Description: "Check if the bot is running", Handle: c.cmdAlive},
		{Name: "add", Description: "Add a new url to monitor", Handle: c.cmdAdd},
		{Name: "remove", Description: "Remove a url from monitoring", Usage: "/remove <url>", Handle: c.cmdRemove},
		{Name: "removeall", Description: "Remove all monitored urls", Handle: c.cmdRemoveAll},
		{Name: "list", Description: "List all monitored urls", Handle: c.cmdList},
		{Name: "status", Description: "Check the status of your monitored url", Handle: c.cmdStatus},
		{Name: "checkssl", Description: "Check SSL certificate status for a domain", Timeout: 30 * time.Second, Handle: c.cmdCheckSSL},
		{Name: "settings", Aliases: []string{"preference"}, Description: "Update your notification preferences", Handle: c.cmdSettings},
	}
}

const prefScope = "pref"

func (c *Controller) Callbacks() []router.CallbackRoute {
	return []router.CallbackRoute{
		{Scope: prefScope, Action: "in", Handle: c.cbOptIn},
		{Scope: prefScope, Action: "out", Handle: c.cbOptOut},
	}
}

func (c *Controller) beforeCommand(ctx context.Context, req *router.Request) {
	if _, ok := c.sessions.Cancel(req.Chat.ChatID); ok {
		_ = reply(ctx, req, tgui.Esc(msgCanceled))
	}
}

// begin starts a prompt. A prompt replaced here (rather than by a command)
// still gets a cancellation notice.
func (c *Controller) begin(ctx context.Context, req *router.Request, st session.State, prompt string) error {
	if _, replaced := c.sessions.Begin(req.Chat.ChatID, st); replaced {
		_ = reply(ctx, req, tgui.Esc(msgCanceled))
	}
	return reply(ctx, req, tgui.Esc(prompt))
}

func (c *Controller) onExpire(s session.Session) {
	c.log.Debug("session expired", logx.Int64("chat_id", s.SubscriberID), logx.String("state", string(s.State)))
	if c.notices == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.notices.Chat(ctx, s.SubscriberID, tgui.Esc(msgTimedOut).String()); err != nil {
		c.log.Warn("timeout notice not sent", logx.Int64("chat_id", s.SubscriberID), logx.Err(err))
	}
}

func reply(ctx context.Context, req *router.Request, html tgui.H) error {
	return req.Reply(ctx, html.String(), &kit.SendOptions{ParseMode: tgui.ParseModeHTML, DisablePreview: true})
}

func replyMarkup(ctx context.Context, req *router.Request, html tgui.H, markup any) error {
	return req.Reply(ctx, html.String(), &kit.SendOptions{ParseMode: tgui.ParseModeHTML, DisablePreview: true, ReplyMarkupAdapter: markup})
}

// fail logs err against the request and tells the user something went wrong.
func fail(ctx context.Context, req *router.Request, what string, err error) error {
	req.Logger.Warn(what, logx.Err(err))
	_ = reply(ctx, req, tgui.Esc(msgInternalFail))
	return err
}
