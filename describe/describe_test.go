package describe_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/postulo/postulo/describe"
)

// WHAT: conversion of a typical offer fragment.
// WHY: headings, lists and emphasis must survive as markdown structure.
func TestMarkdown_Structure(t *testing.T) {
	c := describe.New()

	in := `<h2>Missions</h2><p>Vous serez chargé de :</p><ul><li>développer</li><li>tester</li></ul>`
	out := c.Markdown(in)

	if !strings.Contains(out, "## Missions") {
		t.Fatalf("heading lost: %q", out)
	}
	if !strings.Contains(out, "- développer") {
		t.Fatalf("list item lost: %q", out)
	}
}

// WHAT: script and event-handler stripping.
// WHY: ledger descriptions are rendered later; active content must not survive.
func TestMarkdown_Sanitizes(t *testing.T) {
	c := describe.New()

	in := `<p onclick="evil()">Profil recherché</p><script>steal()</script>`
	out := c.Markdown(in)

	if strings.Contains(out, "evil") || strings.Contains(out, "steal") {
		t.Fatalf("active content survived: %q", out)
	}
	if !strings.Contains(out, "Profil recherché") {
		t.Fatalf("text lost: %q", out)
	}
}

// WHAT: empty and whitespace-only input.
func TestMarkdown_Empty(t *testing.T) {
	c := describe.New()
	if got := c.Markdown("   \n\t"); got != "" {
		t.Fatalf("want empty, got %q", got)
	}
}

// WHAT: blank-line collapsing.
// WHY: offer pages pad sections with empty paragraphs; stored text stays compact.
func TestMarkdown_CollapsesBlankLines(t *testing.T) {
	c := describe.New()

	in := `<p>a</p><p></p><p></p><p></p><p>b</p>`
	out := c.Markdown(in)

	if strings.Contains(out, "\n\n\n") {
		t.Fatalf("blank run survived: %q", out)
	}
}

// WHAT: length cap.
func TestMarkdown_Caps(t *testing.T) {
	c := describe.New()

	in := "<p>" + strings.Repeat("x", describe.MaxLen*2) + "</p>"
	out := c.Markdown(in)

	if len(out) > describe.MaxLen {
		t.Fatalf("len=%d exceeds cap", len(out))
	}
}

// WHAT: the cap lands on a rune boundary.
// WHY: French text is full of multi-byte runes; a byte-level cut would store
// a broken final character.
func TestMarkdown_CapsOnRuneBoundary(t *testing.T) {
	c := describe.New()

	// The leading ASCII byte puts the byte-level cap mid-rune: é is two
	// bytes, so an even cap would otherwise land on a boundary by accident.
	in := "<p>x" + strings.Repeat("é", describe.MaxLen) + "</p>"
	out := c.Markdown(in)

	if len(out) > describe.MaxLen {
		t.Fatalf("len=%d exceeds cap", len(out))
	}
	if !utf8.ValidString(out) {
		t.Fatal("capped output is not valid UTF-8")
	}
}

// WHAT: table conversion.
func TestMarkdown_Table(t *testing.T) {
	c := describe.New()

	in := `<table><tr><th>Contrat</th><th>Durée</th></tr><tr><td>CDI</td><td>35h</td></tr></table>`
	out := c.Markdown(in)

	if !strings.Contains(out, "Contrat") || !strings.Contains(out, "CDI") {
		t.Fatalf("table content lost: %q", out)
	}
}
