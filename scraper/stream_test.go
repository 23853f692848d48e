package scraper

import "testing"

// WHAT: wire rendering of the three machine-parsed event kinds.
// WHY: front ends parse these prefixes byte-for-byte.
func TestEventLine_Prefixes(t *testing.T) {
	cases := []struct {
		ev   Event
		want string
	}{
		{Event{Kind: KindTotal, N: 12}, "TOTAL_OFFERS:12"},
		{Event{Kind: KindProgress, N: 3}, "PROGRESS:3"},
		{Event{Kind: KindStatus, Text: "Connexion réussie."}, "Connexion réussie."},
		{
			Event{Kind: KindFinal, Summary: &Summary{Processed: 10, Submitted: 4, Direct: 5, External: 3, AlreadyApplied: 2}},
			`FIN:{"offres_traitees":10,"candidatures_reussies":4,"offres_directes":5,"redirections_externes":3,"deja_postule":2}`,
		},
	}
	for _, c := range cases {
		if got := c.ev.Line(); got != c.want {
			t.Errorf("Line() = %q, want %q", got, c.want)
		}
	}
}

// WHAT: final event with a nil summary still renders valid JSON.
func TestEventLine_FinalNilSummary(t *testing.T) {
	got := Event{Kind: KindFinal}.Line()
	want := `FIN:{"offres_traitees":0,"candidatures_reussies":0,"offres_directes":0,"redirections_externes":0,"deja_postule":0}`
	if got != want {
		t.Fatalf("Line() = %q, want %q", got, want)
	}
}
