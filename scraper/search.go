package scraper

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-rod/rod/lib/input"
)

// Search fills the offer search form and returns the first results page as
// an ordered offer list.
func (s *session) Search(ctx context.Context, criteria SearchCriteria) ([]OfferSummary, error) {
	if err := s.bs.Navigate(ctx, s.page, s.cfg.SearchURL); err != nil {
		return nil, fmt.Errorf("%w: search page: %v", ErrSessionFatal, err)
	}
	s.pause(ctx)

	r := &resolver{page: s.page.Context(ctx), defaultTimeout: s.cfg.Timeouts.Element}

	keywords, err := r.resolve([]Locator{Selector("#saisie-offre-search-selectized")})
	if err != nil {
		return nil, fmt.Errorf("keyword field: %w", err)
	}
	if err := s.typeHuman(ctx, keywords, criteria.Keywords); err != nil {
		return nil, err
	}
	s.pause(ctx)

	if criteria.Location != "" {
		if err := s.fillLocation(ctx, r, criteria.Location); err != nil {
			return nil, err
		}
	}

	if err := s.submitSearch(ctx, r); err != nil {
		return nil, err
	}

	return s.collectOffers(ctx)
}

// fillLocation types the location and accepts the autocomplete's first
// suggestion, tabbing out when no dropdown renders in time.
func (s *session) fillLocation(ctx context.Context, r *resolver, location string) error {
	field, err := r.resolve([]Locator{Selector("#lieu-travail-search-selectized")})
	if err != nil {
		return fmt.Errorf("location field: %w", err)
	}
	if err := s.typeHuman(ctx, field, location); err != nil {
		return err
	}
	s.pause(ctx)

	suggestion, err := r.resolve([]Locator{
		{Kind: BySelector, Query: ".selectize-dropdown-content .option", Timeout: s.cfg.Timeouts.Suggestion},
		Keyboard(input.Tab),
	})
	if err != nil {
		return fmt.Errorf("location suggestion: %w", err)
	}
	if suggestion != nil {
		if err := s.click(suggestion); err != nil {
			return err
		}
	}
	return nil
}

// submitSearch clicks the submit button, falling back to Enter in the form.
func (s *session) submitSearch(ctx context.Context, r *resolver) error {
	button, err := r.resolve([]Locator{
		{Kind: BySelector, Query: "button[type='submit'], button.search-button", Timeout: s.cfg.Timeouts.Suggestion},
		Keyboard(input.Enter),
	})
	if err != nil {
		return fmt.Errorf("search submit: %w", err)
	}
	if button != nil {
		if err := s.click(button); err != nil {
			return err
		}
	}
	s.pause(ctx)
	s.pause(ctx)
	return nil
}

// collectOffers reads the visible result list. Offer URLs are derived from
// the site-assigned identifier so the ledger pre-check needs no navigation.
func (s *session) collectOffers(ctx context.Context) ([]OfferSummary, error) {
	els, err := s.page.Context(ctx).Elements("li[data-id-offre]")
	if err != nil {
		return nil, fmt.Errorf("%w: offer list: %v", ErrSessionFatal, err)
	}

	offers := make([]OfferSummary, 0, len(els))
	for i, el := range els {
		id, err := el.Attribute("data-id-offre")
		if err != nil || id == nil || *id == "" {
			continue
		}
		title := ""
		if text, err := el.Text(); err == nil {
			title = firstLine(text)
		}
		offers = append(offers, OfferSummary{
			ID:    *id,
			Title: title,
			URL:   s.offerURL(*id),
			Index: i,
		})
	}
	return offers, nil
}

func (s *session) offerURL(id string) string {
	return fmt.Sprintf(s.cfg.OfferURLFormat, id)
}

// OpenFirstOffer opens the detail panel on the list's first entry. The rest
// of the run advances inside the panel with the next control.
func (s *session) OpenFirstOffer(ctx context.Context) error {
	first, err := s.page.Context(ctx).Timeout(s.cfg.Timeouts.Element).Element("li[data-id-offre]")
	if err != nil {
		return fmt.Errorf("%w: first offer: %v", ErrElementNotFound, err)
	}
	link, err := first.Element("#pagelink")
	if err != nil {
		// Some listings make the whole row the link.
		link = first
	}
	if err := s.click(link); err != nil {
		return fmt.Errorf("open first offer: %w", err)
	}
	s.pause(ctx)
	return nil
}

// CurrentOffer reads the detail panel: identifier of the selected list entry,
// displayed title, and the description converted to markdown.
func (s *session) CurrentOffer(ctx context.Context) (OfferSummary, string, error) {
	r := &resolver{page: s.page.Context(ctx), defaultTimeout: s.cfg.Timeouts.Element}

	titleEl, err := r.resolve([]Locator{Selector("#labelPopinDetailsOffre")})
	if err != nil {
		return OfferSummary{}, "", fmt.Errorf("offer title: %w", err)
	}
	title, err := titleEl.Text()
	if err != nil {
		return OfferSummary{}, "", fmt.Errorf("offer title text: %w", err)
	}

	offer := OfferSummary{Title: strings.TrimSpace(title)}
	if found, sel, err := s.page.Has("li.selected[data-id-offre]"); err == nil && found {
		if id, err := sel.Attribute("data-id-offre"); err == nil && id != nil {
			offer.ID = *id
			offer.URL = s.offerURL(*id)
		}
	}

	return offer, s.descriptionMarkdown(ctx), nil
}

// descriptionMarkdown captures the detail panel markup. Missing panels are
// not an error, the record just carries an empty description.
func (s *session) descriptionMarkdown(ctx context.Context) string {
	for _, sel := range []string{".modal-content", "#detail-offre", ".result-detail"} {
		found, el, err := s.page.Context(ctx).Has(sel)
		if err != nil || !found {
			continue
		}
		raw, err := el.HTML()
		if err != nil {
			continue
		}
		if md := s.conv.Markdown(raw); md != "" {
			return md
		}
	}
	return ""
}

// NextOffer advances the detail panel. It returns false when the control is
// disabled, which is the portal's end-of-list signal.
func (s *session) NextOffer(ctx context.Context) (bool, error) {
	next, err := s.page.Context(ctx).Timeout(s.cfg.Timeouts.Element).Element("button.btn-nav.next")
	if err != nil {
		return false, nil
	}
	if disabled, _ := next.Attribute("disabled"); disabled != nil {
		return false, nil
	}
	if err := s.click(next); err != nil {
		return false, fmt.Errorf("next offer: %w", err)
	}
	s.pause(ctx)
	return true, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
