package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/postulo/postulo/describe"
	"github.com/postulo/postulo/scraper/internal/browser"
)

// session drives one authenticated portal visit. One browser, one run,
// single-threaded: every suspension point is a resolver wait or a pacing
// pause.
type session struct {
	cfg   *Config
	log   *slog.Logger
	bs    *browser.Session
	page  *rod.Page
	conv  *describe.Converter
	state AuthState
}

func newSession(cfg *Config, log *slog.Logger, headless bool) (*session, error) {
	bc := cfg.browserConfig(headless)
	bc.Logger = log
	bs, err := browser.Launch(bc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionFatal, err)
	}
	return &session{
		cfg:   cfg,
		log:   log,
		bs:    bs,
		conv:  describe.New(),
		state: AuthUnauthenticated,
	}, nil
}

// Close releases the browser. Safe to call more than once.
func (s *session) Close() error {
	if s.bs == nil {
		return nil
	}
	err := s.bs.Close()
	s.bs = nil
	s.page = nil
	return err
}

// Login walks the portal's two-step credential flow. Any failure lands the
// machine in AuthFailed and returns ErrAuthenticationFailed; the caller must
// not retry.
func (s *session) Login(ctx context.Context, identifier, secret string) error {
	page, err := s.bs.OpenPage(ctx, s.cfg.LoginURL)
	if err != nil {
		s.state = AuthFailed
		return fmt.Errorf("%w: login page: %v", ErrAuthenticationFailed, err)
	}
	s.page = page

	// Best effort. A missed banner does not block the login form.
	s.dismissCookieBanner(ctx)
	s.state = AuthCookieBannerHandled

	if err := s.submitField(ctx, "#identifiant", identifier); err != nil {
		s.state = AuthFailed
		return fmt.Errorf("%w: identifier step: %v", ErrAuthenticationFailed, err)
	}
	s.state = AuthIdentifierSubmitted

	if err := s.submitField(ctx, "#password", secret); err != nil {
		s.state = AuthFailed
		return fmt.Errorf("%w: password step: %v", ErrAuthenticationFailed, err)
	}
	s.state = AuthCredentialsSubmitted
	s.pause(ctx)

	url, err := s.currentURL()
	if err != nil || !strings.Contains(url, "espacepersonnel") {
		s.state = AuthFailed
		return fmt.Errorf("%w: landed on %s", ErrAuthenticationFailed, url)
	}

	s.state = AuthAuthenticated
	s.log.Info("portal login complete")
	return nil
}

// dismissCookieBanner clicks the consent banner's continue button. The banner
// lives in the pe-cookies element's shadow root, unreachable by CSS from the
// document, so the click happens in page JS.
func (s *session) dismissCookieBanner(ctx context.Context) {
	s.pause(ctx)

	res, err := s.page.Context(ctx).Eval(`() => {
		const host = document.querySelector('pe-cookies');
		if (!host || !host.shadowRoot) return false;
		const btn = host.shadowRoot.querySelector('#pecookies-continue-btn');
		if (!btn) return false;
		btn.click();
		return true;
	}`)
	if err != nil || !res.Value.Bool() {
		s.log.Debug("cookie banner not dismissed", "error", err)
		return
	}
	s.pause(ctx)
}

// submitField resolves the given input, types the value with human pacing and
// clicks the shared #submit button. Both login steps use the same shape.
func (s *session) submitField(ctx context.Context, fieldSel, value string) error {
	r := &resolver{page: s.page.Context(ctx), defaultTimeout: s.cfg.Timeouts.Element}

	field, err := r.resolve([]Locator{Selector(fieldSel)})
	if err != nil {
		return err
	}
	if err := s.typeHuman(ctx, field, value); err != nil {
		return err
	}

	submit, err := r.resolve([]Locator{Selector("#submit")})
	if err != nil {
		return err
	}
	if err := s.click(submit); err != nil {
		return err
	}
	s.pause(ctx)
	return nil
}

// typeHuman focuses the element and inserts the value rune by rune with a
// randomised inter-keystroke delay.
func (s *session) typeHuman(ctx context.Context, el *rod.Element, value string) error {
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		if err := el.Focus(); err != nil {
			return fmt.Errorf("focus field: %w", err)
		}
	}
	for _, r := range value {
		if err := s.page.InsertText(string(r)); err != nil {
			return fmt.Errorf("insert text: %w", err)
		}
		if err := sleepCtx(ctx, s.jitter(s.cfg.Pacing.KeystrokeMin, s.cfg.Pacing.KeystrokeMax)); err != nil {
			return err
		}
	}
	return nil
}

// click tries a direct mouse click, then a script-level click when the
// element is covered by an overlay.
func (s *session) click(el *rod.Element) error {
	if err := el.Click(proto.InputMouseButtonLeft, 1); err == nil {
		return nil
	}
	if _, err := el.Eval(`() => this.click()`); err != nil {
		return fmt.Errorf("click: %w", err)
	}
	return nil
}

func (s *session) currentURL() (string, error) {
	info, err := s.page.Info()
	if err != nil {
		return "", fmt.Errorf("%w: page info: %v", ErrSessionFatal, err)
	}
	return info.URL, nil
}

// pause sleeps a step-scale jittered delay.
func (s *session) pause(ctx context.Context) {
	_ = sleepCtx(ctx, s.jitter(s.cfg.Pacing.StepMin, s.cfg.Pacing.StepMax))
}

func (s *session) jitter(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + rand.N(max-min)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
