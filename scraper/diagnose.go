package scraper

import (
	"context"
	"os"
	"path/filepath"

	"github.com/postulo/postulo/idgen"
)

// Diagnose persists a screenshot and the page markup to the debug directory.
// Called on fatal session failures; best effort, never propagates.
func (s *session) Diagnose(ctx context.Context, reason string) {
	if s.page == nil {
		return
	}
	if err := os.MkdirAll(s.cfg.DebugDir, 0o755); err != nil {
		s.log.Warn("debug dir", "error", err)
		return
	}

	stamp := idgen.Timestamped(idgen.Default)()

	if shot, err := s.page.Context(ctx).Screenshot(true, nil); err == nil {
		path := filepath.Join(s.cfg.DebugDir, stamp+"_screenshot.png")
		if err := os.WriteFile(path, shot, 0o644); err != nil {
			s.log.Warn("write screenshot", "error", err)
		}
	} else {
		s.log.Warn("capture screenshot", "error", err)
	}

	if html, err := s.page.Context(ctx).HTML(); err == nil {
		path := filepath.Join(s.cfg.DebugDir, stamp+"_page.html")
		if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
			s.log.Warn("write page markup", "error", err)
		}
	} else {
		s.log.Warn("capture page markup", "error", err)
	}

	s.log.Error("diagnostic capture", "reason", reason, "dir", s.cfg.DebugDir, "stamp", stamp)
}
