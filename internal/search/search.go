package search

import (
	"math"

	"queryscope/internal/store"
)

// NoMoreDocs is returned by iterators once they are exhausted.
const NoMoreDocs = ^uint32(0)

// DocIDIterator steps through matching documents in increasing doc id order.
// DocID returns 0 before the first call to NextDoc or Advance.
type DocIDIterator interface {
	DocID() uint32
	NextDoc() (uint32, error)
	Advance(target uint32) (uint32, error)
	Cost() int64
}

// TwoPhase splits matching into a cheap approximation and an expensive
// confirmation. The approximation may yield false positives; Matches decides
// whether the approximation's current document really matches.
type TwoPhase interface {
	Approximation() DocIDIterator
	Matches() (bool, error)
}

// Scorer iterates matching documents for one segment and scores them.
type Scorer interface {
	DocIDIterator
	Score() (float64, error)
	Freq() uint32
	Weight() Weight
	Children() []ChildScorer
	// TwoPhase returns nil when the scorer has no approximate phase.
	TwoPhase() TwoPhase
}

// ChildScorer ties a sub-scorer to its relation within the parent.
type ChildScorer struct {
	Scorer   Scorer
	Relation string
}

// Weight is the per-query, segment-independent side of query execution: it
// builds a Scorer for a given segment and participates in normalization.
// Scorer returns a nil Scorer with a nil error when the query cannot match
// anything in the segment.
type Weight interface {
	Query() Query
	Scorer(seg *store.Segment) (Scorer, error)
	// ScoreAll scores every matching document in the segment into the
	// collector. Implementations may use a fused single-pass path.
	ScoreAll(seg *store.Segment, c Collector) error
	ValueForNormalization() float64
	Normalize(norm, topLevelBoost float64)
	ExtractTerms(terms map[string]struct{})
	Explain(seg *store.Segment, docID uint32) (*Explanation, error)
}

// Query builds a Weight against a searcher.
type Query interface {
	CreateWeight(s *Searcher) (Weight, error)
	String() string
}

// Composite is implemented by queries that own sub-queries.
type Composite interface {
	Query
	Subqueries() []Query
}

// Explanation describes how a document's score was computed.
type Explanation struct {
	Value       float64
	Description string
	Details     []*Explanation
}

// Collector receives one callback per matching document.
type Collector interface {
	Collect(docID uint32, score float64) error
}

// CollectorFunc adapts a function to the Collector interface.
type CollectorFunc func(docID uint32, score float64) error

func (f CollectorFunc) Collect(docID uint32, score float64) error {
	return f(docID, score)
}

// Searcher drives weight creation and execution over an index. WrapWeight,
// when set, is applied to every weight as it is created, including the
// weights composite queries build for their clauses.
type Searcher struct {
	Reader     *store.IndexReader
	WrapWeight func(q Query, w Weight) Weight
}

func NewSearcher(reader *store.IndexReader) *Searcher {
	return &Searcher{Reader: reader}
}

// CreateWeight builds the weight for a query and applies the wrap hook.
func (s *Searcher) CreateWeight(q Query) (Weight, error) {
	w, err := q.CreateWeight(s)
	if err != nil {
		return nil, err
	}
	if s.WrapWeight != nil {
		w = s.WrapWeight(q, w)
	}
	return w, nil
}

// CreateNormalizedWeight builds the weight tree and runs query
// normalization over it.
func (s *Searcher) CreateNormalizedWeight(q Query) (Weight, error) {
	w, err := s.CreateWeight(q)
	if err != nil {
		return nil, err
	}
	v := w.ValueForNormalization()
	norm := 1.0
	if v > 0 {
		norm = 1 / math.Sqrt(v)
	}
	w.Normalize(norm, 1)
	return w, nil
}

// Search scores every segment of the index into the collector.
func (s *Searcher) Search(q Query, c Collector) error {
	w, err := s.CreateNormalizedWeight(q)
	if err != nil {
		return err
	}
	for _, seg := range s.Reader.Segments {
		if err := w.ScoreAll(seg, c); err != nil {
			return err
		}
	}
	return nil
}

// ScoreAllDocs is the generic doc-at-a-time scoring loop: pull one scorer
// from the weight and step it through the segment, confirming through the
// two-phase protocol when the scorer has one.
func ScoreAllDocs(w Weight, seg *store.Segment, c Collector) error {
	sc, err := w.Scorer(seg)
	if err != nil {
		return err
	}
	if sc == nil {
		return nil
	}

	if tp := sc.TwoPhase(); tp != nil {
		approx := tp.Approximation()
		for {
			doc, err := approx.NextDoc()
			if err != nil {
				return err
			}
			if doc == NoMoreDocs {
				return nil
			}
			ok, err := tp.Matches()
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			score, err := sc.Score()
			if err != nil {
				return err
			}
			if err := c.Collect(doc, score); err != nil {
				return err
			}
		}
	}

	for {
		doc, err := sc.NextDoc()
		if err != nil {
			return err
		}
		if doc == NoMoreDocs {
			return nil
		}
		score, err := sc.Score()
		if err != nil {
			return err
		}
		if err := c.Collect(doc, score); err != nil {
			return err
		}
	}
}
