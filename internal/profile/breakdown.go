// Package profile instruments the query execution protocol with per-node
// timing. ProfileWeight and ProfileScorer wrap a weight and its scorers so
// that scorer construction, iteration, scoring and two-phase confirmation
// are each measured, while every other call passes straight through. A
// wrapped tree matches and scores exactly like the raw one.
package profile

import "time"

// TimingType is the closed set of measured operations.
type TimingType int

const (
	BuildScorer TimingType = iota
	NextDoc
	Advance
	Score
	Match

	numTimingTypes
)

func (t TimingType) String() string {
	switch t {
	case BuildScorer:
		return "build_scorer"
	case NextDoc:
		return "next_doc"
	case Advance:
		return "advance"
	case Score:
		return "score"
	case Match:
		return "match"
	}
	return "unknown"
}

// TimingTypes lists every timing type in report order.
func TimingTypes() []TimingType {
	return []TimingType{BuildScorer, NextDoc, Advance, Score, Match}
}

// Breakdown accumulates elapsed time and call counts per timing type for
// one scorer. It is owned by a single goroutine; a Start for a type must be
// closed by its Stop before the next Start of the same type.
type Breakdown struct {
	start [numTimingTypes]time.Time
	total [numTimingTypes]time.Duration
	count [numTimingTypes]int64
}

func (b *Breakdown) Start(t TimingType) {
	b.start[t] = time.Now()
}

func (b *Breakdown) Stop(t TimingType) {
	b.total[t] += time.Since(b.start[t])
	b.count[t]++
}

// Time starts a timing span and returns the closure that ends it. Deferring
// the returned func keeps the span closed on every exit path, early returns
// and panics included.
func (b *Breakdown) Time(t TimingType) func() {
	b.Start(t)
	return func() { b.Stop(t) }
}

func (b *Breakdown) Total(t TimingType) time.Duration {
	return b.total[t]
}

func (b *Breakdown) Count(t TimingType) int64 {
	return b.count[t]
}
