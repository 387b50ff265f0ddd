package conversation

import (
	"context"
	"errors"

	"uptimeninja/internal/monitor"
	"uptimeninja/internal/session"
	"uptimeninja/internal/transport/telegram/router"
	logx "uptimeninja/pkg/logx"
	"uptimeninja/pkg/tgui"
)

// handleText feeds free text to the subscriber's pending prompt. Without a
// prompt the text is ignored.
func (c *Controller) handleText(ctx context.Context, req *router.Request) error {
	id := req.Chat.ChatID
	s, ok := c.sessions.Get(id)
	if !ok {
		return nil
	}

	switch s.State {
	case session.AwaitingMonitorName:
		name, err := ValidateName(req.Text)
		if err != nil {
			return reply(ctx, req, tgui.Esc(msgBadName))
		}
		if _, ok := c.sessions.Advance(id, session.AwaitingMonitorURL, name); !ok {
			return nil
		}
		return reply(ctx, req, tgui.Esc(msgAskURL))

	case session.AwaitingMonitorURL:
		u, err := NormalizeURL(req.Text)
		if err != nil {
			return reply(ctx, req, tgui.Esc(msgBadURL))
		}
		if !c.finish(id) {
			return nil
		}
		return c.register(ctx, req, s.Name, u)

	case session.AwaitingStatusURL:
		u, err := NormalizeURL(req.Text)
		if err != nil {
			return reply(ctx, req, tgui.Esc(msgBadURL))
		}
		if !c.finish(id) {
			return nil
		}
		st, perr := c.mon.Check(ctx, u)
		if perr != nil {
			req.Logger.Debug("status probe failed", logx.String("url", u), logx.Err(perr))
		}
		return reply(ctx, req, msgStatus(u, st))

	case session.AwaitingSSLURL:
		u, err := NormalizeURL(req.Text)
		if err != nil {
			return reply(ctx, req, tgui.Esc(msgBadURL))
		}
		if !c.finish(id) {
			return nil
		}
		return c.checkSSL(ctx, req, u)

	case session.AwaitingEmail:
		addr, err := ValidateEmail(req.Text)
		if err != nil {
			return reply(ctx, req, tgui.Esc(msgBadEmail))
		}
		if !c.finish(id) {
			return nil
		}
		if err := c.subs.SetEmail(ctx, id, addr); err != nil {
			return fail(ctx, req, "save email failed", err)
		}
		if err := c.subs.SetEmailOptIn(ctx, id, true); err != nil {
			return fail(ctx, req, "update email preference failed", err)
		}
		return reply(ctx, req, msgPrefUpdated(true))
	}
	return nil
}

// finish ends the session before the terminal action runs, so its timer
// cannot fire during a slow probe. False means the session expired meanwhile.
func (c *Controller) finish(id int64) bool {
	_, ok := c.sessions.End(id)
	return ok
}

func (c *Controller) register(ctx context.Context, req *router.Request, name, url string) error {
	_, err := c.mon.Register(ctx, req.Chat.ChatID, name, url)
	switch {
	case errors.Is(err, monitor.ErrAlreadyMonitored):
		return reply(ctx, req, msgAlreadyMonitored(url))
	case err != nil:
		return fail(ctx, req, "register monitor failed", err)
	}
	return reply(ctx, req, msgRegistered(url, name))
}

func (c *Controller) checkSSL(ctx context.Context, req *router.Request, url string) error {
	meta, registered, err := c.mon.RefreshCertificate(ctx, req.Chat.ChatID, url)
	if err != nil {
		req.Logger.Debug("certificate check failed", logx.String("url", url), logx.Err(err))
		return reply(ctx, req, msgSSLError(url, err))
	}
	if registered {
		req.Logger.Debug("certificate data refreshed", logx.String("url", url))
	}
	return reply(ctx, req, msgSSLResult(url, meta, c.mon.Now()))
}
