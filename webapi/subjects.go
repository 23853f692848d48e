package webapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/postulo/postulo/ledger"
	"github.com/postulo/postulo/profile"
)

// SubjectCreateRequest is the body for POST /api/subjects.
type SubjectCreateRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// SubjectResponse is the outward shape of a subject. The password hash never
// leaves the store.
type SubjectResponse struct {
	ID              string `json:"id"`
	Email           string `json:"email"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	SearchQuery     string `json:"search_query,omitempty"`
	Location        string `json:"location,omitempty"`
	ContractType    string `json:"contract_type,omitempty"`
	CVPath          string `json:"cv_path,omitempty"`
	CoverLetterPath string `json:"cover_letter_path,omitempty"`
}

func subjectResponse(sub *profile.Subject) SubjectResponse {
	return SubjectResponse{
		ID:              sub.ID,
		Email:           sub.Email,
		FirstName:       sub.FirstName,
		LastName:        sub.LastName,
		SearchQuery:     sub.SearchQuery,
		Location:        sub.Location,
		ContractType:    sub.ContractType,
		CVPath:          sub.CVPath,
		CoverLetterPath: sub.CoverLetterPath,
	}
}

func (s *Service) handleSubjectCreate(w http.ResponseWriter, r *http.Request) {
	var req SubjectCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" {
		http.Error(w, "email and password required", http.StatusBadRequest)
		return
	}

	sub, err := s.profiles.Create(r.Context(), &profile.Subject{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}, req.Password)
	if errors.Is(err, profile.ErrDuplicateEmail) {
		http.Error(w, "Email already registered", http.StatusConflict)
		return
	}
	if err != nil {
		s.logger.Error("subject create", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	s.logger.Info("subject created", "subject", sub.ID)
	writeJSON(w, http.StatusCreated, subjectResponse(sub))
}

func (s *Service) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	sub, err := s.profiles.Authenticate(r.Context(), req.Email, req.Password)
	if errors.Is(err, profile.ErrBadCredentials) {
		http.Error(w, "Bad credentials", http.StatusUnauthorized)
		return
	}
	if err != nil {
		s.logger.Error("login", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, subjectResponse(sub))
}

func (s *Service) handleSubjectGet(w http.ResponseWriter, r *http.Request) {
	sub, err := s.profiles.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, profile.ErrNotFound) {
		http.Error(w, "Subject not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("subject get", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, subjectResponse(sub))
}

func (s *Service) handlePreferencesUpdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SearchQuery     string `json:"search_query"`
		Location        string `json:"location"`
		ContractType    string `json:"contract_type"`
		CVPath          string `json:"cv_path"`
		CoverLetterPath string `json:"cover_letter_path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	err := s.profiles.UpdatePreferences(r.Context(), chi.URLParam(r, "id"), profile.Preferences{
		SearchQuery:     req.SearchQuery,
		Location:        req.Location,
		ContractType:    req.ContractType,
		CVPath:          req.CVPath,
		CoverLetterPath: req.CoverLetterPath,
	})
	if errors.Is(err, profile.ErrNotFound) {
		http.Error(w, "Subject not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("preferences update", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleSubjectDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.profiles.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			http.Error(w, "Subject not found", http.StatusNotFound)
			return
		}
		s.logger.Error("subject delete", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ApplicationResponse is one ledger row.
type ApplicationResponse struct {
	OfferID     string `json:"offer_id"`
	OfferURL    string `json:"offer_url"`
	Title       string `json:"title"`
	Company     string `json:"company,omitempty"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
	AppliedAt   int64  `json:"applied_at"`
	UpdatedAt   int64  `json:"updated_at"`
}

// handleApplicationsList returns a subject's application history, optionally
// filtered by ?status= and bounded by ?limit=.
func (s *Service) handleApplicationsList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := s.apps.List(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("status"), limit)
	if err != nil {
		s.logger.Error("applications list", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	out := make([]ApplicationResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, applicationResponse(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func applicationResponse(e *ledger.Entry) ApplicationResponse {
	return ApplicationResponse{
		OfferID:     e.OfferID,
		OfferURL:    e.OfferURL,
		Title:       e.Title,
		Company:     e.Company,
		Location:    e.Location,
		Description: e.Description,
		Status:      e.Status,
		AppliedAt:   e.AppliedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
