package conversation

import (
	"context"

	"uptimeninja/internal/session"
	"uptimeninja/internal/transport/telegram/router"
	"uptimeninja/pkg/tgui"
)

func (c *Controller) cmdStart(ctx context.Context, req *router.Request) error {
	if err := c.subs.Save(ctx, req.Chat.ChatID, req.FromUsername); err != nil {
		return fail(ctx, req, "save subscriber failed", err)
	}
	return reply(ctx, req, tgui.Esc(welcomeText))
}

func (c *Controller) cmdAlive(ctx context.Context, req *router.Request) error {
	return reply(ctx, req, tgui.Esc(msgAlive))
}

func (c *Controller) cmdAdd(ctx context.Context, req *router.Request) error {
	return c.begin(ctx, req, session.AwaitingMonitorName, msgAskName)
}

func (c *Controller) cmdStatus(ctx context.Context, req *router.Request) error {
	return c.begin(ctx, req, session.AwaitingStatusURL, msgAskURL)
}

func (c *Controller) cmdCheckSSL(ctx context.Context, req *router.Request) error {
	return c.begin(ctx, req, session.AwaitingSSLURL, msgAskURL)
}

// cmdRemove deletes by URL. Removing an unknown URL still confirms.
func (c *Controller) cmdRemove(ctx context.Context, req *router.Request) error {
	target := req.ArgText
	if target == "" {
		return reply(ctx, req, tgui.Esc(msgRemoveUsage))
	}
	if u, err := NormalizeURL(target); err == nil {
		target = u
	}
	if err := c.reg.Delete(ctx, req.Chat.ChatID, target); err != nil {
		return fail(ctx, req, "remove monitor failed", err)
	}
	return reply(ctx, req, msgRemoved(target))
}

func (c *Controller) cmdRemoveAll(ctx context.Context, req *router.Request) error {
	if err := c.reg.DeleteAll(ctx, req.Chat.ChatID); err != nil {
		return fail(ctx, req, "remove all monitors failed", err)
	}
	return reply(ctx, req, tgui.Esc(msgRemovedAll))
}

func (c *Controller) cmdList(ctx context.Context, req *router.Request) error {
	eps, err := c.reg.List(ctx, req.Chat.ChatID)
	if err != nil {
		return fail(ctx, req, "list monitors failed", err)
	}
	if len(eps) == 0 {
		return reply(ctx, req, tgui.Esc(msgNoMonitors))
	}
	return reply(ctx, req, msgList(eps))
}

func (c *Controller) cmdSettings(ctx context.Context, req *router.Request) error {
	in, err := tgui.Data(prefScope, "in", "")
	if err != nil {
		return err
	}
	out, err := tgui.Data(prefScope, "out", "")
	if err != nil {
		return err
	}
	kb := tgui.NewInline().Row(tgui.Btn("Opt-in", in), tgui.Btn("Opt-out", out))
	return replyMarkup(ctx, req, tgui.Esc(msgAskPref), kb.Markup())
}

// cbOptIn opts in right away when an address is on file, otherwise asks for one.
func (c *Controller) cbOptIn(ctx context.Context, req *router.Request) error {
	sub, found, err := c.subs.Get(ctx, req.Chat.ChatID)
	if err != nil {
		return fail(ctx, req, "load subscriber failed", err)
	}
	if !found || sub.Email == "" {
		return c.begin(ctx, req, session.AwaitingEmail, msgAskEmail)
	}
	if err := c.subs.SetEmailOptIn(ctx, req.Chat.ChatID, true); err != nil {
		return fail(ctx, req, "update email preference failed", err)
	}
	return reply(ctx, req, msgPrefUpdated(true))
}

func (c *Controller) cbOptOut(ctx context.Context, req *router.Request) error {
	if err := c.subs.SetEmailOptIn(ctx, req.Chat.ChatID, false); err != nil {
		return fail(ctx, req, "update email preference failed", err)
	}
	return reply(ctx, req, msgPrefUpdated(false))
}
