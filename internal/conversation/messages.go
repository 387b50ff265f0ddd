package conversation

import (
	"time"

	"uptimeninja/internal/monitor"
	"uptimeninja/pkg/tgui"
)

const welcomeText = "Welcome to the Uptime Ninja Bot! 🤖.\n\n" +
	"This bot is designed to help you keep track of your website's uptime. " +
	"You can easily add URLs to monitor, check their status, and receive notifications if they go down.\n\n" +
	"Here are some commands to get you started:\n" +
	"/add - Add a new URL to monitor\n" +
	"/remove <domain> - Remove a URL from monitoring\n" +
	"/removeall - Clear all monitored URLs\n" +
	"/status - Get the current status of a URL\n" +
	"/list - View all monitored URLs\n" +
	"/alive - Verify if the bot is active\n" +
	"/checkssl - Check SSL certificate status for a domain\n" +
	"/settings - Choose whether alerts are also sent by email"

const (
	msgAlive        = "🤖 I'm up and running!"
	msgAskName      = "Please enter the monitor name:"
	msgAskURL       = "Please enter the monitor URL:"
	msgAskEmail     = "Please enter your email address:"
	msgAskPref      = "Please choose your email preference:"
	msgCanceled     = "⚠️ Previous action canceled."
	msgTimedOut     = "⌛ No reply received, the action was canceled. Send the command again to retry."
	msgBadName      = "⚠️ The name must be 1 to 100 characters. Please enter the monitor name:"
	msgBadURL       = "⚠️ That is not a valid URL. Please enter the monitor URL:"
	msgBadEmail     = "⚠️ That is not a valid email address. Please enter your email address:"
	msgRemovedAll   = "🗑️ Removed all monitored URLs."
	msgNoMonitors   = "You have no monitored URLs."
	msgListHeader   = "Here are your monitored URLs:"
	msgRemoveUsage  = "Usage: /remove <url>"
	msgInternalFail = "❌ Something went wrong, please try again later."
)

func prefLabel(optIn bool) string {
	if optIn {
		return "Opt-in"
	}
	return "Opt-out"
}

func msgPrefUpdated(optIn bool) tgui.H {
	return tgui.Fmt("Your email preference has been updated to: %s", prefLabel(optIn))
}

func msgRegistered(url, name string) tgui.H {
	return tgui.Fmt("✅ Now monitoring %s with name %s", url, name)
}

func msgAlreadyMonitored(url string) tgui.H {
	return tgui.Fmt("⚠️ %s is already being monitored.", url)
}

func msgRemoved(url string) tgui.H {
	return tgui.Fmt("🗑️ Removed monitoring for %s", url)
}

func msgStatus(url string, st monitor.Status) tgui.H {
	if st == monitor.StatusUp {
		return tgui.Fmt("✅ %s is up and running.", url)
	}
	return tgui.Fmt("❌ %s is not reachable right now.", url)
}

func msgList(eps []monitor.Endpoint) tgui.H {
	items := make([]tgui.H, 0, len(eps))
	for i, ep := range eps {
		items = append(items, tgui.Fmt("%d. %s", i+1, tgui.Link(ep.Name, ep.URL)))
	}
	return tgui.Esc(msgListHeader) + "\n\n" + tgui.Lines(items...)
}

func msgSSLResult(url string, meta monitor.CertMeta, now time.Time) tgui.H {
	return tgui.Lines(
		tgui.Fmt("SSL Check Results for %s:", url),
		tgui.Fmt("✅ Valid: %t", meta.Valid),
		tgui.Fmt("📅 Valid From: %s", meta.ValidFrom.Format(monitor.ExpiryDateLayout)),
		tgui.Fmt("📅 Valid Until: %s", meta.ValidTo.Format(monitor.ExpiryDateLayout)),
		tgui.Fmt("⏳ Expiry in: %d days", monitor.DaysRemaining(meta.ValidTo, now)),
	)
}

func msgSSLError(url string, err error) tgui.H {
	return tgui.Fmt("❌ Error checking SSL for %s: %s", url, err.Error())
}
