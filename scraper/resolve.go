package scraper

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
)

// LocatorKind selects a resolution strategy.
type LocatorKind int

const (
	// BySelector resolves a CSS selector.
	BySelector LocatorKind = iota
	// ByText resolves a CSS selector whose visible text matches a pattern.
	ByText
	// ByKeyboard presses ArrowDown then Enter on the focused input. It never
	// yields an element; resolution happens by side effect, which is only
	// legal as the last strategy of an autocomplete fill.
	ByKeyboard
)

// Locator is one strategy in an ordered fallback list.
type Locator struct {
	Kind    LocatorKind
	Query   string        // CSS selector for BySelector and ByText
	Text    string        // regexp for ByText
	Keys    []input.Key   // ByKeyboard sequence
	Timeout time.Duration // zero = resolver default
}

// Selector declares a structural strategy.
func Selector(query string) Locator { return Locator{Kind: BySelector, Query: query} }

// Text declares a text-match strategy scoped to a selector.
func Text(query, pattern string) Locator {
	return Locator{Kind: ByText, Query: query, Text: pattern}
}

// Keyboard declares the synthetic keystroke fallback. With no keys it
// presses ArrowDown then Enter.
func Keyboard(keys ...input.Key) Locator {
	if len(keys) == 0 {
		keys = []input.Key{input.ArrowDown, input.Enter}
	}
	return Locator{Kind: ByKeyboard, Keys: keys}
}

// resolver tries locator strategies in declared order against one page.
type resolver struct {
	page           *rod.Page
	defaultTimeout time.Duration
}

// resolve returns the first strategy's visible element, or a nil element when
// a ByKeyboard strategy fired. Each strategy gets exactly one bounded wait;
// exhaustion of the whole list yields ErrElementNotFound.
func (r *resolver) resolve(strategies []Locator) (*rod.Element, error) {
	var tried []string

	for _, loc := range strategies {
		timeout := loc.Timeout
		if timeout <= 0 {
			timeout = r.defaultTimeout
		}

		switch loc.Kind {
		case BySelector, ByText:
			el, err := r.lookup(loc, timeout)
			if err == nil && el != nil {
				return el, nil
			}
			tried = append(tried, loc.Query)

		case ByKeyboard:
			if err := r.press(loc.Keys); err != nil {
				tried = append(tried, "keyboard")
				continue
			}
			return nil, nil
		}
	}

	return nil, fmt.Errorf("%w: tried %s", ErrElementNotFound, strings.Join(tried, ", "))
}

func (r *resolver) press(keys []input.Key) error {
	for _, k := range keys {
		if err := r.page.Keyboard.Press(k); err != nil {
			return err
		}
	}
	return nil
}

// lookup runs one structural or text strategy and insists on visibility:
// the portal keeps stale hidden copies of several controls in the DOM.
func (r *resolver) lookup(loc Locator, timeout time.Duration) (*rod.Element, error) {
	page := r.page.Timeout(timeout)

	var el *rod.Element
	var err error
	if loc.Kind == ByText {
		el, err = page.ElementR(loc.Query, loc.Text)
	} else {
		el, err = page.Element(loc.Query)
	}
	if err != nil {
		return nil, err
	}

	visible, err := el.Visible()
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, errors.New("element not visible")
	}
	return el, nil
}
