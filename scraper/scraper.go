// Package scraper drives automated job applications against the France
// Travail candidate portal: one authenticated browser session per run, a
// search, and a bounded walk over the result list classifying each offer and
// submitting where an inline form exists. Progress flows to the caller as a
// pull-based line stream; every terminal outcome lands in the application
// ledger.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/postulo/postulo/ledger"
)

// Ledger is the dedup store consulted before any browser interaction with an
// offer and written after every terminal outcome.
type Ledger interface {
	Has(ctx context.Context, subjectID, offerURL string) (bool, error)
	Record(ctx context.Context, subjectID string, rec ApplicationRecord) error
}

// portalSession is what one run needs from the browser layer. The concrete
// session lives in session.go; tests substitute a scripted fake.
type portalSession interface {
	Login(ctx context.Context, identifier, secret string) error
	Search(ctx context.Context, criteria SearchCriteria) ([]OfferSummary, error)
	OpenFirstOffer(ctx context.Context) error
	CurrentOffer(ctx context.Context) (OfferSummary, string, error)
	Classify(ctx context.Context) (Classification, error)
	Execute(ctx context.Context, class Classification) (Outcome, error)
	NextOffer(ctx context.Context) (bool, error)
	Diagnose(ctx context.Context, reason string)
	Close() error
}

// Engine creates runs. Safe for concurrent use; each run owns its own
// browser session.
type Engine struct {
	cfg    *Config
	log    *slog.Logger
	ledger Ledger

	newSession func(headless bool) (portalSession, error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithLedger sets the dedup ledger. Without one, runs still work but nothing
// is skipped or persisted.
func WithLedger(l Ledger) Option {
	return func(e *Engine) { e.ledger = l }
}

// New creates an Engine. A nil config gets the defaults.
func New(cfg *Config, opts ...Option) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	} else {
		cfg.applyDefaults()
	}
	e := &Engine{cfg: cfg, log: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	e.newSession = func(headless bool) (portalSession, error) {
		return newSession(e.cfg, e.log, headless)
	}
	return e
}

// Run starts one application run and returns its event stream. The stream is
// unbuffered: the run advances only as the caller consumes. It always ends
// with exactly one terminal summary, after which the browser is released and
// the channel closed. Cancelling ctx aborts the run.
func (e *Engine) Run(ctx context.Context, in RunInput) *Stream {
	st := newStream()
	go e.run(ctx, in, st)
	return st
}

func (e *Engine) run(ctx context.Context, in RunInput, st *Stream) {
	defer close(st.events)

	em := &emitter{ctx: ctx, ch: st.events}
	var sum Summary

	budget := in.MaxOffers
	if budget <= 0 {
		budget = e.cfg.MaxOffers
	}

	em.status("Initialisation du navigateur...")
	sess, err := e.newSession(in.Headless)
	if err != nil {
		e.log.Error("session start", "error", err)
		em.status("Échec du démarrage du navigateur.")
		em.final(sum)
		return
	}
	// Release order matters: summary first, then the browser, then the
	// channel close in the outer defer.
	defer func() {
		em.status("Fermeture du navigateur...")
		em.final(sum)
		if err := sess.Close(); err != nil {
			e.log.Warn("browser close", "error", err)
		}
	}()

	em.status(fmt.Sprintf("Lancement du traitement pour %q à %q...", in.Keywords, in.Location))
	if err := sess.Login(ctx, in.Identifier, in.Secret); err != nil {
		e.log.Error("login", "error", err)
		em.status("Échec de la connexion, arrêt du traitement.")
		return
	}
	em.status("Connexion réussie. Recherche des offres en cours...")

	offers, err := sess.Search(ctx, SearchCriteria{Keywords: in.Keywords, Location: in.Location})
	if err != nil {
		e.log.Error("search", "error", err)
		sess.Diagnose(ctx, "search failed")
		em.status("Échec de la recherche, arrêt du traitement.")
		return
	}

	em.total(len(offers))
	if len(offers) == 0 {
		em.status("Aucune offre trouvée.")
		return
	}
	em.status(fmt.Sprintf("%d offres trouvées. Début du traitement...", len(offers)))

	if err := sess.OpenFirstOffer(ctx); err != nil {
		e.log.Error("open first offer", "error", err)
		sess.Diagnose(ctx, "first offer not reachable")
		em.status("Impossible d'ouvrir la première offre, arrêt du traitement.")
		return
	}

	e.iterate(ctx, in, sess, offers, budget, em, &sum)
}

// iterate walks the offer list in order. Per-offer failures are contained;
// only session-level failures abort the walk. The ledger write for an offer
// always completes before the next offer begins.
func (e *Engine) iterate(ctx context.Context, in RunInput, sess portalSession, offers []OfferSummary, budget int, em *emitter, sum *Summary) {
	for i, offer := range offers {
		if ctx.Err() != nil {
			return
		}
		if sum.Processed >= budget {
			em.status(fmt.Sprintf("Limite de %d offres atteinte.", budget))
			return
		}

		skipped, err := e.ledgerSkip(ctx, in.SubjectID, offer)
		if err != nil {
			e.log.Warn("ledger check", "offer", offer.ID, "error", err)
		}
		if skipped {
			em.status(fmt.Sprintf("Offre %s déjà enregistrée, passage à la suivante.", offer.ID))
			sum.Processed++
			sum.AlreadyApplied++
		} else {
			outcome, fatal := e.processOffer(ctx, in, sess, offer, em)
			if fatal {
				em.status("Erreur de session, arrêt du traitement.")
				return
			}
			e.account(sum, outcome)
		}
		em.progress(sum.Processed)

		if sum.Processed >= budget {
			em.status(fmt.Sprintf("Limite de %d offres atteinte.", budget))
			return
		}
		if i+1 < len(offers) {
			ok, err := sess.NextOffer(ctx)
			if err != nil {
				e.log.Warn("next offer", "error", err)
				if errors.Is(err, ErrSessionFatal) {
					sess.Diagnose(ctx, "next offer not reachable")
				}
				em.status("Navigation vers l'offre suivante impossible, arrêt du traitement.")
				return
			}
			if !ok {
				return
			}
		}
	}
}

// processOffer classifies and executes one offer, recording the terminal
// outcome. The second return is true only for session-fatal failures.
func (e *Engine) processOffer(ctx context.Context, in RunInput, sess portalSession, offer OfferSummary, em *emitter) (Outcome, bool) {
	detail, description, err := sess.CurrentOffer(ctx)
	if err != nil {
		if errors.Is(err, ErrSessionFatal) {
			sess.Diagnose(ctx, "current offer lost")
			return OutcomeFailed, true
		}
		e.log.Warn("offer detail", "error", err)
		detail = offer
	}
	// The panel's selected entry is authoritative when it disagrees with the
	// positional listing.
	if detail.ID == "" {
		detail.ID, detail.URL = offer.ID, offer.URL
	}
	if detail.Title == "" {
		detail.Title = offer.Title
	}
	em.status(fmt.Sprintf("Traitement de l'offre : %s", detail.Title))

	outcome := OutcomeFailed
	class, err := sess.Classify(ctx)
	if err == nil {
		outcome, err = sess.Execute(ctx, class)
	}
	if err != nil {
		if errors.Is(err, ErrSessionFatal) {
			sess.Diagnose(ctx, "offer processing")
			return OutcomeFailed, true
		}
		e.log.Warn("offer processing", "offer", detail.ID, "error", err)
		outcome = OutcomeFailed
	}

	e.record(ctx, in.SubjectID, detail, description, outcome)
	em.status(fmt.Sprintf("Offre %s : %s", detail.ID, outcome))
	return outcome, false
}

// account folds one outcome into the run summary. Failed direct submissions
// still count as direct offers, which keeps the documented identity
// processed == already + external + direct.
func (e *Engine) account(sum *Summary, outcome Outcome) {
	sum.Processed++
	switch outcome {
	case OutcomeSubmitted:
		sum.Submitted++
		sum.Direct++
	case OutcomeFailed:
		sum.Direct++
	case OutcomeAlreadyApplied:
		sum.AlreadyApplied++
	case OutcomeSkippedExternal:
		sum.External++
	}
}

func (e *Engine) ledgerSkip(ctx context.Context, subjectID string, offer OfferSummary) (bool, error) {
	if e.ledger == nil || subjectID == "" || offer.URL == "" {
		return false, nil
	}
	return e.ledger.Has(ctx, subjectID, offer.URL)
}

// record persists the attempt. Failed attempts are recorded too so a manual
// retry pass can target them. Partial progress is never rolled back.
func (e *Engine) record(ctx context.Context, subjectID string, offer OfferSummary, description string, outcome Outcome) {
	if e.ledger == nil || subjectID == "" || offer.URL == "" {
		return
	}
	rec := ApplicationRecord{
		OfferID:     offer.ID,
		OfferURL:    offer.URL,
		Title:       offer.Title,
		Description: description,
		Outcome:     outcome,
	}
	if err := e.ledger.Record(ctx, subjectID, rec); err != nil {
		e.log.Warn("ledger record", "offer", offer.ID, "error", err)
	}
}

// storeLedger adapts ledger.Store to the engine's Ledger interface.
type storeLedger struct {
	store *ledger.Store
}

// NewStoreLedger wraps a ledger.Store for use as the engine's dedup ledger.
func NewStoreLedger(store *ledger.Store) Ledger {
	return &storeLedger{store: store}
}

func (l *storeLedger) Has(ctx context.Context, subjectID, offerURL string) (bool, error) {
	return l.store.Has(ctx, subjectID, offerURL)
}

func (l *storeLedger) Record(ctx context.Context, subjectID string, rec ApplicationRecord) error {
	return l.store.Record(ctx, &ledger.Entry{
		SubjectID:   subjectID,
		OfferURL:    rec.OfferURL,
		OfferID:     rec.OfferID,
		Title:       rec.Title,
		Company:     rec.Company,
		Location:    rec.Location,
		Description: rec.Description,
		Status:      outcomeStatus(rec.Outcome),
	})
}

func outcomeStatus(o Outcome) string {
	switch o {
	case OutcomeSubmitted:
		return ledger.StatusSubmitted
	case OutcomeAlreadyApplied:
		return ledger.StatusAlreadyApplied
	case OutcomeSkippedExternal:
		return ledger.StatusSkippedExternal
	}
	return ledger.StatusFailed
}
