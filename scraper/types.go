package scraper

// AuthState tracks progress through the login state machine.
type AuthState int

const (
	AuthUnauthenticated AuthState = iota
	AuthCookieBannerHandled
	AuthIdentifierSubmitted
	AuthCredentialsSubmitted
	AuthAuthenticated
	AuthFailed
)

func (s AuthState) String() string {
	switch s {
	case AuthUnauthenticated:
		return "unauthenticated"
	case AuthCookieBannerHandled:
		return "cookie_banner_handled"
	case AuthIdentifierSubmitted:
		return "identifier_submitted"
	case AuthCredentialsSubmitted:
		return "credentials_submitted"
	case AuthAuthenticated:
		return "authenticated"
	case AuthFailed:
		return "auth_failed"
	}
	return "unknown"
}

// Classification is the category of an offer's application path, determined
// fresh per offer from its detail panel.
type Classification int

const (
	// ClassDirectForm submits inline, usually in a second tab.
	ClassDirectForm Classification = iota
	// ClassExternalRedirect sends the candidate to the employer's own site.
	ClassExternalRedirect
	// ClassAlreadyApplied means the portal reports a prior application.
	ClassAlreadyApplied
)

func (c Classification) String() string {
	switch c {
	case ClassDirectForm:
		return "direct_form"
	case ClassExternalRedirect:
		return "external_redirect"
	case ClassAlreadyApplied:
		return "already_applied"
	}
	return "unknown"
}

// Outcome is the terminal result of one offer's processing.
type Outcome int

const (
	OutcomeSubmitted Outcome = iota
	OutcomeAlreadyApplied
	OutcomeSkippedExternal
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSubmitted:
		return "submitted"
	case OutcomeAlreadyApplied:
		return "already_applied"
	case OutcomeSkippedExternal:
		return "skipped_external"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// SearchCriteria is supplied once per run and never mutated.
type SearchCriteria struct {
	Keywords string
	Location string
}

// OfferSummary is one entry of the result listing. Only outcomes are
// persisted; summaries live for the duration of the loop.
type OfferSummary struct {
	ID    string
	Title string
	URL   string
	Index int
}

// ApplicationRecord is the unit handed to the ledger after an outcome is
// known for an offer.
type ApplicationRecord struct {
	OfferID     string
	OfferURL    string
	Title       string
	Company     string
	Location    string
	Description string
	Outcome     Outcome
}

// RunInput parameterises one orchestration run. Secret is held for the login
// exchange only and never logged or persisted.
type RunInput struct {
	SubjectID  string
	Identifier string
	Secret     string
	Keywords   string
	Location   string
	Headless   bool

	// MaxOffers overrides the configured budget when > 0.
	MaxOffers int
}
