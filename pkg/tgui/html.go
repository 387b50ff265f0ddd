package tgui

import (
	"fmt"
	"html"
	"strings"
)

// ParseModeHTML is the Telegram parse mode every helper here targets.
const ParseModeHTML = "HTML"

// H is HTML that is already escaped for Telegram.
type H string

func (h H) String() string { return string(h) }

// Esc escapes text for Telegram HTML parse mode.
func Esc(s string) H { return H(html.EscapeString(s)) }

func wrap(tag string, inner H) H { return H("<" + tag + ">" + inner.String() + "</" + tag + ">") }

func B(s string) H    { return wrap("b", Esc(s)) }
func I(s string) H    { return wrap("i", Esc(s)) }
func Code(s string) H { return wrap("code", Esc(s)) }

// Link builds an anchor; both the text and the href are escaped.
func Link(text, url string) H {
	return H(fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(url), html.EscapeString(text)))
}

// BoldLink renders a bold anchor, used for endpoint names in alerts.
func BoldLink(text, url string) H { return wrap("b", Link(text, url)) }

// Fmt formats with escaped string arguments. Arguments of type H are kept as-is.
func Fmt(format string, args ...any) H {
	for i, a := range args {
		switch v := a.(type) {
		case H:
		case string:
			args[i] = Esc(v)
		}
	}
	return H(fmt.Sprintf(format, args...))
}

// Lines joins non-empty parts with newlines.
func Lines(parts ...H) H {
	ss := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p.String()) == "" {
			continue
		}
		ss = append(ss, p.String())
	}
	return H(strings.Join(ss, "\n"))
}
