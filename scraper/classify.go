package scraper

import (
	"context"
	"fmt"
	"strings"
)

// Text markers the portal renders for an offer that already has an
// application on file.
var alreadyAppliedMarkers = []string{
	"Vous avez déjà postulé à cette offre",
	"Candidature déjà envoyée",
	"Candidature envoyée le",
	"Votre candidature a été enregistrée",
}

// Classify invokes the detail panel's apply control and decides the offer's
// application path. The checks run in a fixed priority order: already-applied
// first (a prior application must never look like a fresh submission path),
// then external redirect (the direct form does not exist on an employer
// site), DirectForm otherwise.
func (s *session) Classify(ctx context.Context) (Classification, error) {
	r := &resolver{page: s.page.Context(ctx), defaultTimeout: s.cfg.Timeouts.Element}

	apply, err := r.resolve([]Locator{Selector("#detail-apply")})
	if err != nil {
		return ClassDirectForm, fmt.Errorf("%w: apply control: %v", ErrOfferProcessing, err)
	}
	// Script-level click: the control regularly sits under the sticky header.
	if _, err := apply.Eval(`() => this.click()`); err != nil {
		if err := s.click(apply); err != nil {
			return ClassDirectForm, fmt.Errorf("%w: apply click: %v", ErrOfferProcessing, err)
		}
	}
	s.pause(ctx)

	if s.alreadyApplied(ctx) {
		return ClassAlreadyApplied, nil
	}
	if s.externalRedirect(ctx) {
		return ClassExternalRedirect, nil
	}
	return ClassDirectForm, nil
}

// alreadyApplied looks for a prior-application indicator rendered in place:
// a text marker, a dedicated banner element, or a disabled apply control.
func (s *session) alreadyApplied(ctx context.Context) bool {
	page := s.page.Context(ctx)

	if html, err := page.HTML(); err == nil {
		for _, marker := range alreadyAppliedMarkers {
			if strings.Contains(html, marker) {
				return true
			}
		}
	}

	if found, _, err := page.Has(".candidature-envoyee, .already-applied, .msg-candidature-envoyee"); err == nil && found {
		return true
	}

	if found, apply, err := page.Has("#detail-apply"); err == nil && found {
		if disabled, _ := apply.Attribute("disabled"); disabled != nil {
			return true
		}
		if text, err := apply.Text(); err == nil && strings.Contains(text, "Déjà postulé") {
			return true
		}
	}
	return false
}

// externalRedirect reports whether the apply click opened the dropdown whose
// title sends the candidate to the employer's own site. The wait is short: an
// absent menu is the normal direct-form case, not an error. A detected menu
// is closed again by clicking outside it.
func (s *session) externalRedirect(ctx context.Context) bool {
	menu, err := s.page.Context(ctx).Timeout(s.cfg.Timeouts.Dropdown).Element(".dropdown-menu.show")
	if err != nil {
		return false
	}
	title, err := menu.Element(".dropdown-apply-title")
	if err != nil {
		return false
	}
	text, err := title.Text()
	if err != nil {
		return false
	}
	if !strings.Contains(strings.ToLower(text), "sur le site de l'entreprise") {
		return false
	}

	if _, err := s.page.Context(ctx).Eval(`() => document.body.click()`); err != nil {
		s.log.Debug("external menu close failed", "error", err)
	}
	return true
}
