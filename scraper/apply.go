package scraper

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-rod/rod"
)

// Execute carries one classified offer to its terminal outcome. Only
// DirectForm involves further browser work; the other categories are already
// terminal. Any failure here is contained to the offer.
func (s *session) Execute(ctx context.Context, class Classification) (Outcome, error) {
	switch class {
	case ClassAlreadyApplied:
		return OutcomeAlreadyApplied, nil
	case ClassExternalRedirect:
		return OutcomeSkippedExternal, nil
	}
	return s.submitDirect(ctx)
}

// submitDirect drives the inline submission flow: reach the application form
// (usually a fresh tab), pick the first document on file, acknowledge the
// contact details, send.
func (s *session) submitDirect(ctx context.Context) (Outcome, error) {
	if err := s.clickSendApplication(ctx); err != nil {
		return OutcomeFailed, err
	}

	work, cleanup := s.applicationPage(ctx)
	defer cleanup()

	// The portal sometimes only reveals a prior application on the form
	// itself. Detecting it here is still a valid AlreadyApplied outcome.
	if s.lateAlreadyApplied(ctx, work) {
		return OutcomeAlreadyApplied, nil
	}

	if info, err := work.Info(); err != nil {
		return OutcomeFailed, fmt.Errorf("%w: application page lost: %v", ErrSessionFatal, err)
	} else if !strings.Contains(info.URL, "candidature/postulerenligne") {
		return OutcomeFailed, fmt.Errorf("%w: unexpected application page %s", ErrOfferProcessing, info.URL)
	}

	r := &resolver{page: work.Context(ctx), defaultTimeout: s.cfg.Timeouts.Element}

	steps := []struct {
		name       string
		strategies []Locator
	}{
		// Most recent document first: the portal lists the newest CV as the
		// first radio control.
		{"cv selection", []Locator{
			Selector("input[type='radio'][name='choix-cv']"),
			{Kind: BySelector, Query: "input[type='radio'][name='selectedCvId']", Timeout: s.cfg.Timeouts.Suggestion},
			{Kind: BySelector, Query: "input[type='radio']", Timeout: s.cfg.Timeouts.Suggestion},
		}},
		{"contact confirmation", []Locator{
			Selector("input[type='checkbox'][id='confirmcoordonnees']"),
			{Kind: BySelector, Query: "input[type='checkbox'][name='confirmcoordonnees']", Timeout: s.cfg.Timeouts.Suggestion},
			{Kind: BySelector, Query: "input[type='checkbox'][required]", Timeout: s.cfg.Timeouts.Suggestion},
		}},
		{"send", []Locator{
			Selector("button[type='submit']"),
			{Kind: BySelector, Query: "button.btn-primary", Timeout: s.cfg.Timeouts.Suggestion},
			{Kind: BySelector, Query: ".btn.btn-primary", Timeout: s.cfg.Timeouts.Suggestion},
		}},
	}

	for _, step := range steps {
		el, err := r.resolve(step.strategies)
		if err != nil {
			return OutcomeFailed, fmt.Errorf("%w: %s: %v", ErrOfferProcessing, step.name, err)
		}
		if err := s.click(el); err != nil {
			return OutcomeFailed, fmt.Errorf("%w: %s: %v", ErrOfferProcessing, step.name, err)
		}
		s.pause(ctx)
	}

	return OutcomeSubmitted, nil
}

// clickSendApplication invokes the "Envoyer ma candidature" entry on the
// detail panel. The control is matched by its label: the portal renders it as
// a link or a button depending on the offer.
func (s *session) clickSendApplication(ctx context.Context) error {
	el, err := s.page.Context(ctx).Timeout(s.cfg.Timeouts.Element).
		ElementX(`//a[contains(., 'Envoyer ma candidature')] | //button[contains(., 'Envoyer ma candidature')]`)
	if err != nil {
		return fmt.Errorf("%w: send application control: %v", ErrOfferProcessing, err)
	}
	if err := s.click(el); err != nil {
		return fmt.Errorf("%w: send application: %v", ErrOfferProcessing, err)
	}
	s.pause(ctx)
	return nil
}

// applicationPage returns the page carrying the application form. When the
// portal opened a fresh tab, that tab is used and the cleanup closes it and
// refocuses the main page; otherwise the current page is returned unchanged.
func (s *session) applicationPage(ctx context.Context) (*rod.Page, func()) {
	pages, err := s.bs.Pages()
	if err != nil {
		return s.page, func() {}
	}

	var tab *rod.Page
	for _, p := range pages {
		if p.TargetID != s.page.TargetID {
			tab = p
		}
	}
	if tab == nil {
		return s.page, func() {}
	}

	if _, err := tab.Activate(); err != nil {
		s.log.Debug("tab activate failed", "error", err)
	}
	return tab, func() {
		if err := tab.Close(); err != nil {
			s.log.Debug("tab close failed", "error", err)
		}
		if _, err := s.page.Activate(); err != nil {
			s.log.Debug("main page refocus failed", "error", err)
		}
	}
}

// lateAlreadyApplied waits briefly for the prior-application banner the form
// page shows instead of the document chooser.
func (s *session) lateAlreadyApplied(ctx context.Context, page *rod.Page) bool {
	_, err := page.Context(ctx).Timeout(s.cfg.Timeouts.AlreadyApplied).
		ElementX(`//*[contains(text(), 'Vous avez déjà postulé sur cette offre')]`)
	return err == nil
}
