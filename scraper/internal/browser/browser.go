// Package browser manages the Chrome instance behind an application run:
// launch with anti-detection flags, stealth page creation, and teardown.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
)

// Config configures the browser session.
type Config struct {
	// Headless runs Chrome without a window. Default: true.
	Headless bool

	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string

	// NavTimeout bounds each navigation including the load wait. Default: 30s.
	NavTimeout time.Duration

	// NoSandbox disables the Chrome sandbox. Needed inside most containers.
	NoSandbox bool

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.NavTimeout <= 0 {
		c.NavTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Session owns one Chrome process (or a connection to a remote one) for the
// duration of a run. Not safe for concurrent use.
type Session struct {
	cfg     Config
	browser *rod.Browser
	lnch    *launcher.Launcher
}

// Launch starts Chrome and connects to it.
func Launch(cfg Config) (*Session, error) {
	cfg.defaults()
	s := &Session{cfg: cfg}

	var wsURL string
	if cfg.RemoteURL != "" {
		wsURL = cfg.RemoteURL
		cfg.Logger.Info("browser: connecting to remote", "url", wsURL)
	} else {
		l := launcher.New().Headless(cfg.Headless)

		// Anti-detection flags. The portal fingerprints automation.
		l = l.Set("disable-blink-features", "AutomationControlled")
		if cfg.NoSandbox {
			l = l.NoSandbox(true)
		}

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		s.lnch = l
		cfg.Logger.Info("browser: launched local chrome", "headless", cfg.Headless)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	if err := b.IgnoreCertErrors(true); err != nil {
		cfg.Logger.Warn("browser: ignore cert errors failed", "error", err)
	}

	s.browser = b
	return s, nil
}

// Browser returns the underlying Rod handle.
func (s *Session) Browser() *rod.Browser { return s.browser }

// OpenPage creates a stealth page and navigates it to pageURL, waiting for
// the load event within the configured timeout.
func (s *Session) OpenPage(ctx context.Context, pageURL string) (*rod.Page, error) {
	if s.browser == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	page, err := stealth.Page(s.browser)
	if err != nil {
		return nil, fmt.Errorf("browser: create page: %w", err)
	}

	if err := s.Navigate(ctx, page, pageURL); err != nil {
		page.Close()
		return nil, err
	}
	return page, nil
}

// Navigate points an existing page at pageURL and waits for the load event.
// A load-wait timeout is logged, not fatal: the portal keeps long-polling
// connections open well after the DOM is usable.
func (s *Session) Navigate(ctx context.Context, page *rod.Page, pageURL string) error {
	navCtx, cancel := context.WithTimeout(ctx, s.cfg.NavTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		s.cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}
	return nil
}

// Pages lists the open pages, newest last. Used to pick up tabs the portal
// opens on its own during submission.
func (s *Session) Pages() (rod.Pages, error) {
	if s.browser == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}
	pages, err := s.browser.Pages()
	if err != nil {
		return nil, fmt.Errorf("browser: list pages: %w", err)
	}
	return pages, nil
}

// Close shuts down Chrome and releases launcher resources.
func (s *Session) Close() error {
	s.cleanup()
	return nil
}

func (s *Session) cleanup() {
	if s.browser != nil {
		s.browser.Close()
		s.browser = nil
	}
	if s.lnch != nil {
		s.lnch.Cleanup()
		s.lnch = nil
	}
}
