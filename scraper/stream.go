package scraper

import (
	"context"
	"encoding/json"
	"strconv"
)

// Kind discriminates progress events. Three kinds carry a machine-parseable
// wire prefix; KindStatus lines are informational only.
type Kind int

const (
	KindStatus Kind = iota
	KindTotal
	KindProgress
	KindFinal
)

// Summary is the terminal accounting of a run. The JSON field names are the
// wire contract consumed by existing front ends.
type Summary struct {
	Processed      int `json:"offres_traitees"`
	Submitted      int `json:"candidatures_reussies"`
	Direct         int `json:"offres_directes"`
	External       int `json:"redirections_externes"`
	AlreadyApplied int `json:"deja_postule"`
}

// Event is one unit of run progress.
type Event struct {
	Kind    Kind
	Text    string   // KindStatus
	N       int      // KindTotal, KindProgress
	Summary *Summary // KindFinal
}

// Line renders the wire form of the event.
func (e Event) Line() string {
	switch e.Kind {
	case KindTotal:
		return "TOTAL_OFFERS:" + strconv.Itoa(e.N)
	case KindProgress:
		return "PROGRESS:" + strconv.Itoa(e.N)
	case KindFinal:
		s := e.Summary
		if s == nil {
			s = &Summary{}
		}
		b, _ := json.Marshal(s)
		return "FIN:" + string(b)
	}
	return e.Text
}

// Stream is the pull-driven event sequence of one run. The channel is
// unbuffered: the run only advances as the caller consumes, which keeps the
// browser idle while the consumer is slow. The sequence is finite, ends with
// exactly one KindFinal event, and is not restartable.
type Stream struct {
	events chan Event
}

func newStream() *Stream {
	return &Stream{events: make(chan Event)}
}

// Events returns the channel of run events. It is closed after the final
// summary, once the browser has been released.
func (s *Stream) Events() <-chan Event { return s.events }

// emitter pushes events for the producing goroutine, giving up when the run
// context is cancelled so an abandoned consumer cannot wedge the run.
type emitter struct {
	ctx context.Context
	ch  chan Event
}

func (e *emitter) send(ev Event) bool {
	select {
	case e.ch <- ev:
		return true
	case <-e.ctx.Done():
		return false
	}
}

func (e *emitter) status(text string) bool { return e.send(Event{Kind: KindStatus, Text: text}) }
func (e *emitter) total(n int) bool        { return e.send(Event{Kind: KindTotal, N: n}) }
func (e *emitter) progress(n int) bool     { return e.send(Event{Kind: KindProgress, N: n}) }

// final must not be skipped even on cancellation: callers draining the
// channel after cancelling still deserve a well-formed summary, so it tries
// the send but tolerates an absent consumer.
func (e *emitter) final(s Summary) {
	select {
	case e.ch <- Event{Kind: KindFinal, Summary: &s}:
	case <-e.ctx.Done():
		select {
		case e.ch <- Event{Kind: KindFinal, Summary: &s}:
		default:
		}
	}
}
