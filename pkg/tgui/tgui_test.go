package tgui

import (
	"strings"
	"testing"
)

func TestBoldLinkEscapes(t *testing.T) {
	t.Parallel()

	got := BoldLink("a<b", `https://x.io/?q="1"&r=2`).String()
	want := `<b><a href="https://x.io/?q=&#34;1&#34;&amp;r=2">a&lt;b</a></b>`
	if got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestFmtEscapesStringsOnly(t *testing.T) {
	t.Parallel()

	got := Fmt("%s is %s (%d)", B("x"), "<down>", 3).String()
	if got != "<b>x</b> is &lt;down&gt; (3)" {
		t.Fatalf("got %s", got)
	}
	if l := Lines("a", "", "b"); l != "a\nb" {
		t.Fatalf("lines=%q", l)
	}
}

func TestCallbackData(t *testing.T) {
	t.Parallel()

	d, err := Data("pref", "in", "")
	if err != nil || d != "pref:in" {
		t.Fatalf("data=%q err=%v", d, err)
	}
	scope, action, payload, ok := ParseData("\f" + d)
	if !ok || scope != "pref" || action != "in" || payload != "" {
		t.Fatalf("parse: %q %q %q %v", scope, action, payload, ok)
	}
	if _, _, _, ok := ParseData("garbage"); ok {
		t.Fatalf("garbage should not parse")
	}
	if _, err := Data("x", "y", strings.Repeat("z", 80)); err != ErrCallbackDataTooLong {
		t.Fatalf("err=%v", err)
	}
}
