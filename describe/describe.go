// Package describe turns raw offer-detail HTML into text suitable for the
// application ledger: sanitized (scripts, handlers and styling stripped) and
// converted to markdown, with a plain-text fallback when conversion yields
// nothing usable.
package describe

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// MaxLen caps stored descriptions. Offer pages occasionally embed the whole
// site chrome; the ledger only needs the posting text.
const MaxLen = 20_000

// Converter sanitizes and converts offer HTML. Safe for reuse across offers.
type Converter struct {
	policy *bluemonday.Policy
	md     *converter.Converter
}

// New creates a Converter with the UGC sanitation policy and a
// commonmark+table markdown pipeline.
func New() *Converter {
	return &Converter{
		policy: bluemonday.UGCPolicy(),
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Markdown sanitizes rawHTML and converts it to markdown. When the result is
// empty (badly broken markup), it falls back to the concatenated text nodes.
// The result is whitespace-normalised and capped at MaxLen.
func (c *Converter) Markdown(rawHTML string) string {
	if strings.TrimSpace(rawHTML) == "" {
		return ""
	}

	clean := c.policy.Sanitize(rawHTML)

	out, err := c.md.ConvertString(clean)
	if err != nil || strings.TrimSpace(out) == "" {
		out = textContent(clean)
	}

	out = normalise(out)
	return truncate(out, MaxLen)
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// textContent collects the text nodes of an HTML fragment.
func textContent(fragment string) string {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteString(" ")
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return b.String()
}

var blankLinesRe = regexp.MustCompile(`\n{3,}`)
var trailingSpaceRe = regexp.MustCompile(`[ \t]+\n`)

// normalise trims the markdown without flattening its structure: zero-width
// characters go, runs of blank lines collapse to one, trailing spaces drop.
func normalise(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\u200b', '\u200c', '\u200d', '\ufeff', '\u00ad':
			return -1
		}
		return r
	}, s)
	s = trailingSpaceRe.ReplaceAllString(s, "\n")
	s = blankLinesRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
