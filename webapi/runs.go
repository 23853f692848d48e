package webapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/postulo/postulo/doccheck"
	"github.com/postulo/postulo/profile"
	"github.com/postulo/postulo/scraper"
)

// RunRequest is the body for POST /api/runs. The portal secret is supplied
// per run and never stored. Keywords and location fall back to the subject's
// saved preferences.
type RunRequest struct {
	SubjectID  string `json:"subject_id"`
	Identifier string `json:"identifiant"`
	Secret     string `json:"mot_de_passe"`
	Keywords   string `json:"metier"`
	Location   string `json:"lieu"`
	Headless   *bool  `json:"headless"`
	MaxOffers  int    `json:"max_offres"`
}

// handleRun launches a run and streams its progress lines as Server-Sent
// Events. Each event is one wire line; the terminal FIN: line is always last.
func (s *Service) handleRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Identifier == "" || req.Secret == "" {
		http.Error(w, "identifiant and mot_de_passe required", http.StatusBadRequest)
		return
	}

	in := scraper.RunInput{
		SubjectID:  req.SubjectID,
		Identifier: req.Identifier,
		Secret:     req.Secret,
		Keywords:   req.Keywords,
		Location:   req.Location,
		Headless:   true,
		MaxOffers:  req.MaxOffers,
	}
	if req.Headless != nil {
		in.Headless = *req.Headless
	}

	if req.SubjectID != "" {
		sub, err := s.profiles.Get(r.Context(), req.SubjectID)
		if errors.Is(err, profile.ErrNotFound) {
			http.Error(w, "Subject not found", http.StatusNotFound)
			return
		}
		if err != nil {
			s.logger.Error("run subject lookup", "error", err)
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		if in.Keywords == "" {
			in.Keywords = sub.SearchQuery
		}
		if in.Location == "" {
			in.Location = sub.Location
		}

		// Submitting without a usable CV on file wastes a whole browser run.
		if err := doccheck.Validate(doccheck.Documents{
			CVPath:          sub.CVPath,
			CoverLetterPath: sub.CoverLetterPath,
		}); err != nil {
			http.Error(w, fmt.Sprintf("documents not ready: %v", err), http.StatusPreconditionFailed)
			return
		}
	}
	if in.Keywords == "" {
		http.Error(w, "metier required", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	s.logger.Info("run started", "subject", req.SubjectID, "keywords", in.Keywords, "location", in.Location)

	for ev := range s.runner.Run(r.Context(), in) {
		fmt.Fprintf(w, "data: %s\n\n", ev.Line())
		flusher.Flush()
	}

	s.logger.Info("run finished", "subject", req.SubjectID)
}
