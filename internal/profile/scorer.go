package profile

import "queryscope/internal/search"

// ProfileScorer wraps a scorer and times Score, Advance and NextDoc, plus
// the two-phase confirmation when the wrapped scorer has one.
//
// DocID, Freq, Cost and Children are delegated without timing. Composite
// scorers call DocID on every child at every step, so timing it would count
// the same work once per tree level and drown the real signal.
type ProfileScorer struct {
	scorer    search.Scorer
	weight    *ProfileWeight
	breakdown *Breakdown

	twoPhaseReady bool
	twoPhase      search.TwoPhase
}

func newProfileScorer(w *ProfileWeight, scorer search.Scorer, bd *Breakdown) *ProfileScorer {
	return &ProfileScorer{scorer: scorer, weight: w, breakdown: bd}
}

func (s *ProfileScorer) DocID() uint32 {
	return s.scorer.DocID()
}

func (s *ProfileScorer) NextDoc() (uint32, error) {
	defer s.breakdown.Time(NextDoc)()
	return s.scorer.NextDoc()
}

func (s *ProfileScorer) Advance(target uint32) (uint32, error) {
	defer s.breakdown.Time(Advance)()
	return s.scorer.Advance(target)
}

func (s *ProfileScorer) Score() (float64, error) {
	defer s.breakdown.Time(Score)()
	return s.scorer.Score()
}

func (s *ProfileScorer) Freq() uint32 {
	return s.scorer.Freq()
}

func (s *ProfileScorer) Cost() int64 {
	return s.scorer.Cost()
}

// Weight returns the wrapping ProfileWeight, so a caller that walks back to
// the producing weight and calls into it again stays on the instrumented
// path.
func (s *ProfileScorer) Weight() search.Weight {
	return s.weight
}

// Children are returned as the wrapped scorer built them. When the whole
// tree was constructed through ProfileWeights the children are already
// instrumented; this scorer never re-wraps scorers it did not build.
func (s *ProfileScorer) Children() []search.ChildScorer {
	return s.scorer.Children()
}

// TwoPhase wraps the scorer's two-phase protocol once and caches it, so
// every call returns the same instance. Returns nil when the wrapped scorer
// has no approximate phase; none is synthesized.
func (s *ProfileScorer) TwoPhase() search.TwoPhase {
	if !s.twoPhaseReady {
		s.twoPhaseReady = true
		if in := s.scorer.TwoPhase(); in != nil {
			s.twoPhase = &profileTwoPhase{
				in:        in,
				approx:    &profileApproximation{in: in.Approximation(), breakdown: s.breakdown},
				breakdown: s.breakdown,
			}
		}
	}
	return s.twoPhase
}

// profileTwoPhase times the confirmation predicate under its own type; the
// approximation's iteration shares the scorer's NextDoc/Advance types since
// it is just another entry point into the same step.
type profileTwoPhase struct {
	in        search.TwoPhase
	approx    search.DocIDIterator
	breakdown *Breakdown
}

func (t *profileTwoPhase) Approximation() search.DocIDIterator {
	return t.approx
}

func (t *profileTwoPhase) Matches() (bool, error) {
	defer t.breakdown.Time(Match)()
	return t.in.Matches()
}

type profileApproximation struct {
	in        search.DocIDIterator
	breakdown *Breakdown
}

func (a *profileApproximation) DocID() uint32 {
	return a.in.DocID()
}

func (a *profileApproximation) NextDoc() (uint32, error) {
	defer a.breakdown.Time(NextDoc)()
	return a.in.NextDoc()
}

func (a *profileApproximation) Advance(target uint32) (uint32, error) {
	defer a.breakdown.Time(Advance)()
	return a.in.Advance(target)
}

func (a *profileApproximation) Cost() int64 {
	return a.in.Cost()
}
