package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
)

// fakeSession scripts a portal visit without a browser. The panel position
// advances on NextOffer exactly like the real detail panel does.
type fakeSession struct {
	offers   []OfferSummary
	classes  map[string]Classification // by offer ID; absent = DirectForm
	failID   string                    // offer whose classification errors
	fatalID  string                    // offer whose execution is session-fatal
	loginErr error
	nextErr  error // NextOffer failure

	pos        int
	classified []string
	executed   []string
	diagnosed  bool
	closed     bool
}

func (f *fakeSession) Login(ctx context.Context, identifier, secret string) error {
	return f.loginErr
}

func (f *fakeSession) Search(ctx context.Context, criteria SearchCriteria) ([]OfferSummary, error) {
	return f.offers, nil
}

func (f *fakeSession) OpenFirstOffer(ctx context.Context) error { return nil }

func (f *fakeSession) CurrentOffer(ctx context.Context) (OfferSummary, string, error) {
	if f.pos >= len(f.offers) {
		return OfferSummary{}, "", fmt.Errorf("%w: panel past end", ErrSessionFatal)
	}
	return f.offers[f.pos], "description " + f.offers[f.pos].ID, nil
}

func (f *fakeSession) Classify(ctx context.Context) (Classification, error) {
	id := f.offers[f.pos].ID
	f.classified = append(f.classified, id)
	if id == f.failID {
		return ClassDirectForm, fmt.Errorf("%w: scripted", ErrOfferProcessing)
	}
	return f.classes[id], nil
}

func (f *fakeSession) Execute(ctx context.Context, class Classification) (Outcome, error) {
	id := f.offers[f.pos].ID
	f.executed = append(f.executed, id)
	if id == f.fatalID {
		return OutcomeFailed, fmt.Errorf("%w: scripted crash", ErrSessionFatal)
	}
	switch class {
	case ClassAlreadyApplied:
		return OutcomeAlreadyApplied, nil
	case ClassExternalRedirect:
		return OutcomeSkippedExternal, nil
	}
	return OutcomeSubmitted, nil
}

func (f *fakeSession) NextOffer(ctx context.Context) (bool, error) {
	if f.nextErr != nil {
		return false, f.nextErr
	}
	f.pos++
	return f.pos < len(f.offers), nil
}

func (f *fakeSession) Diagnose(ctx context.Context, reason string) { f.diagnosed = true }

func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

// fakeLedger is an in-memory Ledger tracking calls.
type fakeLedger struct {
	seen    map[string]bool // subject|url
	records []ApplicationRecord
}

func newFakeLedger() *fakeLedger { return &fakeLedger{seen: map[string]bool{}} }

func (l *fakeLedger) key(subjectID, url string) string { return subjectID + "|" + url }

func (l *fakeLedger) Has(ctx context.Context, subjectID, offerURL string) (bool, error) {
	return l.seen[l.key(subjectID, offerURL)], nil
}

func (l *fakeLedger) Record(ctx context.Context, subjectID string, rec ApplicationRecord) error {
	l.seen[l.key(subjectID, rec.OfferURL)] = true
	l.records = append(l.records, rec)
	return nil
}

func testEngine(fs *fakeSession, l Ledger) *Engine {
	opts := []Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}
	if l != nil {
		opts = append(opts, WithLedger(l))
	}
	e := New(DefaultConfig(), opts...)
	e.newSession = func(bool) (portalSession, error) { return fs, nil }
	return e
}

func makeOffers(n int) []OfferSummary {
	offers := make([]OfferSummary, n)
	for i := range offers {
		id := fmt.Sprintf("OFR%03d", i+1)
		offers[i] = OfferSummary{ID: id, Title: "Serveur " + id, URL: "https://example.test/detail/" + id, Index: i}
	}
	return offers
}

func drain(t *testing.T, st *Stream) (events []Event, final *Summary) {
	t.Helper()
	for ev := range st.Events() {
		events = append(events, ev)
		if ev.Kind == KindFinal {
			if final != nil {
				t.Fatal("second final event")
			}
			final = ev.Summary
		}
	}
	if final == nil {
		t.Fatal("stream ended without a final summary")
	}
	if events[len(events)-1].Kind != KindFinal {
		t.Fatal("final summary is not the last event")
	}
	return events, final
}

func progressValues(events []Event) []int {
	var vals []int
	for _, ev := range events {
		if ev.Kind == KindProgress {
			vals = append(vals, ev.N)
		}
	}
	return vals
}

func checkMonotonic(t *testing.T, vals []int) {
	t.Helper()
	for i, v := range vals {
		if v != i+1 {
			t.Fatalf("progress values %v are not 1..n", vals)
		}
	}
}

func checkIdentity(t *testing.T, s *Summary) {
	t.Helper()
	if s.Processed != s.AlreadyApplied+s.External+s.Direct {
		t.Fatalf("summary identity broken: %+v", s)
	}
}

// WHAT: 12 offers against a budget of 10.
// WHY: the cap bounds total work regardless of list length.
func TestRun_BudgetCap(t *testing.T) {
	fs := &fakeSession{offers: makeOffers(12)}
	e := testEngine(fs, nil)

	events, final := drain(t, e.Run(context.Background(), RunInput{
		Identifier: "x", Secret: "y", Keywords: "serveur", Location: "Paris", MaxOffers: 10,
	}))

	vals := progressValues(events)
	if len(vals) != 10 {
		t.Fatalf("got %d progress events, want 10", len(vals))
	}
	checkMonotonic(t, vals)
	if final.Processed != 10 {
		t.Fatalf("Processed = %d, want 10", final.Processed)
	}
	checkIdentity(t, final)
	if !fs.closed {
		t.Error("browser session not released")
	}

	var totals []int
	for _, ev := range events {
		if ev.Kind == KindTotal {
			totals = append(totals, ev.N)
		}
	}
	if len(totals) != 1 || totals[0] != 12 {
		t.Fatalf("TOTAL_OFFERS = %v, want one event of 12", totals)
	}
}

// WHAT: an offer already in the ledger for the subject.
// WHY: repeat runs must skip it with zero browser interaction.
func TestRun_LedgerSkip(t *testing.T) {
	offers := makeOffers(3)
	fs := &fakeSession{offers: offers}
	l := newFakeLedger()
	l.seen[l.key("sub_1", offers[1].URL)] = true

	e := testEngine(fs, l)
	events, final := drain(t, e.Run(context.Background(), RunInput{
		SubjectID: "sub_1", Identifier: "x", Secret: "y", Keywords: "serveur",
	}))

	for _, id := range fs.classified {
		if id == offers[1].ID {
			t.Fatal("ledger-skipped offer touched the browser")
		}
	}
	checkMonotonic(t, progressValues(events))
	if final.Processed != 3 || final.AlreadyApplied != 1 {
		t.Fatalf("summary = %+v", final)
	}
	checkIdentity(t, final)

	// The skipped offer got no new record; the other two did.
	if len(l.records) != 2 {
		t.Fatalf("ledger records = %d, want 2", len(l.records))
	}
}

// WHAT: the detail panel reports a prior application.
// WHY: no form interaction may follow, and the ledger keeps the status.
func TestRun_AlreadyApplied(t *testing.T) {
	offers := makeOffers(1)
	fs := &fakeSession{offers: offers, classes: map[string]Classification{offers[0].ID: ClassAlreadyApplied}}
	l := newFakeLedger()

	e := testEngine(fs, l)
	_, final := drain(t, e.Run(context.Background(), RunInput{
		SubjectID: "sub_1", Identifier: "x", Secret: "y", Keywords: "serveur",
	}))

	if final.AlreadyApplied != 1 || final.Submitted != 0 {
		t.Fatalf("summary = %+v", final)
	}
	checkIdentity(t, final)
	if len(l.records) != 1 || l.records[0].Outcome != OutcomeAlreadyApplied {
		t.Fatalf("records = %+v", l.records)
	}
}

// WHAT: apply opens the employer-site menu.
// WHY: external redirects are out of scope and count as skipped.
func TestRun_ExternalRedirect(t *testing.T) {
	offers := makeOffers(2)
	fs := &fakeSession{offers: offers, classes: map[string]Classification{offers[0].ID: ClassExternalRedirect}}
	l := newFakeLedger()

	e := testEngine(fs, l)
	_, final := drain(t, e.Run(context.Background(), RunInput{
		SubjectID: "sub_1", Identifier: "x", Secret: "y", Keywords: "serveur",
	}))

	if final.External != 1 || final.Submitted != 1 || final.Processed != 2 {
		t.Fatalf("summary = %+v", final)
	}
	checkIdentity(t, final)
	if l.records[0].Outcome != OutcomeSkippedExternal {
		t.Fatalf("first record outcome = %v", l.records[0].Outcome)
	}
}

// WHAT: wrong credentials.
// WHY: the run aborts before the search but still ends with a summary.
func TestRun_AuthFailure(t *testing.T) {
	fs := &fakeSession{offers: makeOffers(5), loginErr: ErrAuthenticationFailed}
	e := testEngine(fs, nil)

	events, final := drain(t, e.Run(context.Background(), RunInput{Identifier: "x", Secret: "bad", Keywords: "serveur"}))

	if got := progressValues(events); len(got) != 0 {
		t.Fatalf("progress events after auth failure: %v", got)
	}
	if *final != (Summary{}) {
		t.Fatalf("summary = %+v, want all zero", final)
	}
	for _, ev := range events {
		if ev.Kind == KindTotal {
			t.Fatal("TOTAL_OFFERS emitted without a search")
		}
	}
	if !fs.closed {
		t.Error("browser session not released")
	}
}

// WHAT: one offer's classification blows up.
// WHY: per-offer failures are contained; the loop continues and the failure
// is recorded for a later retry pass.
func TestRun_OfferFailureContained(t *testing.T) {
	offers := makeOffers(3)
	fs := &fakeSession{offers: offers, failID: offers[1].ID}
	l := newFakeLedger()

	e := testEngine(fs, l)
	events, final := drain(t, e.Run(context.Background(), RunInput{
		SubjectID: "sub_1", Identifier: "x", Secret: "y", Keywords: "serveur",
	}))

	checkMonotonic(t, progressValues(events))
	if final.Processed != 3 || final.Submitted != 2 || final.Direct != 3 {
		t.Fatalf("summary = %+v", final)
	}
	checkIdentity(t, final)

	var failed int
	for _, rec := range l.records {
		if rec.Outcome == OutcomeFailed {
			failed++
		}
	}
	if failed != 1 {
		t.Fatalf("failed records = %d, want 1", failed)
	}
}

// WHAT: the browser dies mid-run.
// WHY: fatal failures abort the loop, capture diagnostics, and still produce
// a well-formed summary covering the offers that completed.
func TestRun_SessionFatal(t *testing.T) {
	offers := makeOffers(5)
	fs := &fakeSession{offers: offers, fatalID: offers[1].ID}
	e := testEngine(fs, nil)

	events, final := drain(t, e.Run(context.Background(), RunInput{Identifier: "x", Secret: "y", Keywords: "serveur"}))

	vals := progressValues(events)
	if len(vals) != 1 {
		t.Fatalf("progress events = %v, want just the first offer", vals)
	}
	checkMonotonic(t, vals)
	if final.Processed != 1 {
		t.Fatalf("Processed = %d, want 1", final.Processed)
	}
	if !fs.diagnosed {
		t.Error("no diagnostic capture on fatal failure")
	}
	if !fs.closed {
		t.Error("browser session not released")
	}
}

// WHAT: the next-offer navigation dies mid-walk.
// WHY: a truncated walk must announce itself and capture diagnostics, so the
// caller can tell it apart from plain list exhaustion.
func TestRun_NextOfferFailure(t *testing.T) {
	offers := makeOffers(4)
	fs := &fakeSession{offers: offers, nextErr: fmt.Errorf("%w: panel gone", ErrSessionFatal)}
	e := testEngine(fs, nil)

	events, final := drain(t, e.Run(context.Background(), RunInput{Identifier: "x", Secret: "y", Keywords: "serveur"}))

	if final.Processed != 1 {
		t.Fatalf("Processed = %d, want 1", final.Processed)
	}
	if !fs.diagnosed {
		t.Error("no diagnostic capture on fatal navigation failure")
	}
	var announced bool
	for _, ev := range events {
		if ev.Kind == KindStatus && strings.Contains(ev.Text, "offre suivante") {
			announced = true
		}
	}
	if !announced {
		t.Error("no status line for the aborted navigation")
	}
	if !fs.closed {
		t.Error("browser session not released")
	}
}

// WHAT: cancelling the consumer's context.
// WHY: an abandoned run must terminate instead of wedging on the unbuffered
// channel.
func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fs := &fakeSession{offers: makeOffers(5)}
	e := testEngine(fs, nil)

	st := e.Run(ctx, RunInput{Identifier: "x", Secret: "y", Keywords: "serveur"})

	// Consume a couple of events, then walk away.
	n := 0
	for range st.Events() {
		n++
		if n == 2 {
			cancel()
			break
		}
	}

	// The channel must still close.
	for range st.Events() {
	}
	if !fs.closed {
		t.Error("browser session not released after cancellation")
	}
}

// WHAT: status lines around a normal run.
func TestRun_StatusLines(t *testing.T) {
	fs := &fakeSession{offers: makeOffers(1)}
	e := testEngine(fs, nil)

	events, _ := drain(t, e.Run(context.Background(), RunInput{Identifier: "x", Secret: "y", Keywords: "serveur"}))

	joined := ""
	for _, ev := range events {
		joined += ev.Line() + "\n"
	}
	for _, want := range []string{"TOTAL_OFFERS:1", "PROGRESS:1", "FIN:{"} {
		if !strings.Contains(joined, want) {
			t.Errorf("stream output missing %q:\n%s", want, joined)
		}
	}
}
