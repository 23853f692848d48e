package scraper

import "errors"

var (
	// ErrElementNotFound is returned by the resolver when every strategy
	// exhausted its timeout. Recoverable: the caller decides whether the
	// missing element fails the step or just skips it.
	ErrElementNotFound = errors.New("scraper: element not found")

	// ErrAuthenticationFailed aborts the whole run. Login is never retried,
	// blind retries against the portal risk an account lockout.
	ErrAuthenticationFailed = errors.New("scraper: authentication failed")

	// ErrSessionFatal marks browser loss or unexpected navigation mid-run.
	// Triggers diagnostic capture before the terminal summary.
	ErrSessionFatal = errors.New("scraper: session failure")

	// ErrOfferProcessing wraps any failure confined to a single offer. Caught
	// at the loop boundary; the run continues with the next offer.
	ErrOfferProcessing = errors.New("scraper: offer processing failed")
)
