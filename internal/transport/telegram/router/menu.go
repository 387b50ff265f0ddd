package router

import (
	"regexp"
	"strings"

	kit "uptimeninja/internal/transport"
	"uptimeninja/pkg/tgui"
)

// Telegram command names are [a-z0-9_]{1,32}.
var reMenuName = regexp.MustCompile(`^[a-z0-9_]{1,32}$`)

func menuCommands(cmds []Command) []kit.BotCommand {
	out := make([]kit.BotCommand, 0, len(cmds))
	for _, c := range cmds {
		if c.Hidden || !reMenuName.MatchString(c.Name) {
			continue
		}
		out = append(out, kit.BotCommand{Command: c.Name, Description: c.Description})
	}
	return out
}

// HelpText lists visible commands as HTML.
func (r *Router) HelpText() string {
	var b strings.Builder
	b.WriteString(string(tgui.B("Available commands")))
	b.WriteString("\n")
	for _, c := range r.Commands() {
		if c.Hidden {
			continue
		}
		usage := c.Usage
		if usage == "" {
			usage = "/" + c.Name
		}
		b.WriteString("\n")
		b.WriteString(string(tgui.Code(usage)))
		if c.Description != "" {
			b.WriteString(" - ")
			b.WriteString(string(tgui.Esc(c.Description)))
		}
	}
	return b.String()
}
