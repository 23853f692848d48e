// Package doccheck validates application documents before a run starts.
//
// It never interprets document contents; it only confirms that the files a
// subject's profile points at exist and, for PDFs, parse as a PDF with at
// least one page. A run that would fail on the portal's upload step because
// of a broken CV should fail here instead, before any browser work.
package doccheck

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// ErrNoDocument is returned when a required document path is empty or missing.
var ErrNoDocument = errors.New("doccheck: document missing")

// ErrBadDocument is returned when a document exists but is unusable.
var ErrBadDocument = errors.New("doccheck: document unusable")

// Documents are the file paths attached to a subject profile.
type Documents struct {
	CVPath          string
	CoverLetterPath string // optional
}

// Validate checks the CV (required) and cover letter (optional, when set).
func Validate(docs Documents) error {
	if docs.CVPath == "" {
		return fmt.Errorf("%w: cv path is empty", ErrNoDocument)
	}
	if err := checkFile(docs.CVPath); err != nil {
		return fmt.Errorf("cv: %w", err)
	}
	if docs.CoverLetterPath != "" {
		if err := checkFile(docs.CoverLetterPath); err != nil {
			return fmt.Errorf("cover letter: %w", err)
		}
	}
	return nil
}

func checkFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNoDocument, path)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrBadDocument, path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: %s is empty", ErrBadDocument, path)
	}

	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		pages, err := api.PageCountFile(path)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrBadDocument, path, err)
		}
		if pages < 1 {
			return fmt.Errorf("%w: %s has no pages", ErrBadDocument, path)
		}
	}
	return nil
}
