package search

import (
	"fmt"
	"sort"
	"strings"

	"queryscope/internal/store"
)

// AndQuery matches documents that satisfy every clause.
type AndQuery struct {
	Clauses []Query
}

func NewAndQuery(clauses ...Query) *AndQuery {
	return &AndQuery{Clauses: clauses}
}

func (q *AndQuery) Subqueries() []Query { return q.Clauses }

func (q *AndQuery) String() string {
	parts := make([]string, len(q.Clauses))
	for i, c := range q.Clauses {
		parts[i] = "+" + c.String()
	}
	return "(" + strings.Join(parts, " ") + ")"
}

func (q *AndQuery) CreateWeight(s *Searcher) (Weight, error) {
	return newBooleanWeight(s, q, q.Clauses, true)
}

// OrQuery matches documents that satisfy at least one clause.
type OrQuery struct {
	Clauses []Query
}

func NewOrQuery(clauses ...Query) *OrQuery {
	return &OrQuery{Clauses: clauses}
}

func (q *OrQuery) Subqueries() []Query { return q.Clauses }

func (q *OrQuery) String() string {
	parts := make([]string, len(q.Clauses))
	for i, c := range q.Clauses {
		parts[i] = c.String()
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

func (q *OrQuery) CreateWeight(s *Searcher) (Weight, error) {
	return newBooleanWeight(s, q, q.Clauses, false)
}

type booleanWeight struct {
	query       Query
	children    []Weight
	conjunction bool
}

func newBooleanWeight(s *Searcher, q Query, clauses []Query, conjunction bool) (Weight, error) {
	w := &booleanWeight{query: q, conjunction: conjunction}
	for _, c := range clauses {
		cw, err := s.CreateWeight(c)
		if err != nil {
			return nil, err
		}
		w.children = append(w.children, cw)
	}
	return w, nil
}

func (w *booleanWeight) Query() Query { return w.query }

func (w *booleanWeight) ValueForNormalization() float64 {
	sum := 0.0
	for _, c := range w.children {
		sum += c.ValueForNormalization()
	}
	return sum
}

func (w *booleanWeight) Normalize(norm, topLevelBoost float64) {
	for _, c := range w.children {
		c.Normalize(norm, topLevelBoost)
	}
}

func (w *booleanWeight) ExtractTerms(terms map[string]struct{}) {
	for _, c := range w.children {
		c.ExtractTerms(terms)
	}
}

func (w *booleanWeight) Scorer(seg *store.Segment) (Scorer, error) {
	var scorers []Scorer
	for _, c := range w.children {
		sc, err := c.Scorer(seg)
		if err != nil {
			return nil, err
		}
		if sc == nil {
			if w.conjunction {
				return nil, nil
			}
			continue
		}
		scorers = append(scorers, sc)
	}
	if len(scorers) == 0 {
		return nil, nil
	}
	if w.conjunction {
		return newConjunctionScorer(w, scorers), nil
	}
	return &disjunctionScorer{weight: w, scorers: scorers}, nil
}

func (w *booleanWeight) ScoreAll(seg *store.Segment, c Collector) error {
	return ScoreAllDocs(w, seg, c)
}

func (w *booleanWeight) Explain(seg *store.Segment, docID uint32) (*Explanation, error) {
	sum := 0.0
	matched := 0
	var details []*Explanation
	for _, cw := range w.children {
		e, err := cw.Explain(seg, docID)
		if err != nil {
			return nil, err
		}
		if e.Value > 0 {
			matched++
			sum += e.Value
		}
		details = append(details, e)
	}
	if w.conjunction && matched < len(w.children) {
		return &Explanation{Value: 0, Description: "not all clauses matched", Details: details}, nil
	}
	return &Explanation{
		Value:       sum,
		Description: fmt.Sprintf("sum of %d clauses", matched),
		Details:     details,
	}, nil
}

// conjunctionIterator leapfrogs a set of iterators to their next common
// document. The lowest-cost iterator leads.
type conjunctionIterator struct {
	lead   DocIDIterator
	others []DocIDIterator
	doc    uint32
}

func newConjunctionIterator(iters []DocIDIterator) *conjunctionIterator {
	sorted := make([]DocIDIterator, len(iters))
	copy(sorted, iters)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Cost() < sorted[j].Cost()
	})
	return &conjunctionIterator{lead: sorted[0], others: sorted[1:]}
}

func (it *conjunctionIterator) DocID() uint32 { return it.doc }

func (it *conjunctionIterator) NextDoc() (uint32, error) {
	doc, err := it.lead.NextDoc()
	if err != nil {
		return 0, err
	}
	return it.align(doc)
}

func (it *conjunctionIterator) Advance(target uint32) (uint32, error) {
	doc, err := it.lead.Advance(target)
	if err != nil {
		return 0, err
	}
	return it.align(doc)
}

func (it *conjunctionIterator) align(doc uint32) (uint32, error) {
	for doc != NoMoreDocs {
		agreed := true
		for _, o := range it.others {
			if o.DocID() < doc {
				next, err := o.Advance(doc)
				if err != nil {
					return 0, err
				}
				if next > doc {
					var err error
					doc, err = it.lead.Advance(next)
					if err != nil {
						return 0, err
					}
					agreed = false
					break
				}
			}
		}
		if agreed {
			break
		}
	}
	it.doc = doc
	return doc, nil
}

func (it *conjunctionIterator) Cost() int64 {
	return it.lead.Cost()
}

type conjunctionScorer struct {
	*conjunctionIterator
	weight  Weight
	scorers []Scorer
}

func newConjunctionScorer(w Weight, scorers []Scorer) *conjunctionScorer {
	iters := make([]DocIDIterator, len(scorers))
	for i, sc := range scorers {
		iters[i] = sc
	}
	return &conjunctionScorer{
		conjunctionIterator: newConjunctionIterator(iters),
		weight:              w,
		scorers:             scorers,
	}
}

func (s *conjunctionScorer) Score() (float64, error) {
	sum := 0.0
	for _, c := range s.scorers {
		v, err := c.Score()
		if err != nil {
			return 0, err
		}
		sum += v
	}
	return sum, nil
}

func (s *conjunctionScorer) Freq() uint32 {
	return uint32(len(s.scorers))
}

func (s *conjunctionScorer) Weight() Weight { return s.weight }

func (s *conjunctionScorer) Children() []ChildScorer {
	children := make([]ChildScorer, len(s.scorers))
	for i, c := range s.scorers {
		children[i] = ChildScorer{Scorer: c, Relation: "MUST"}
	}
	return children
}

func (s *conjunctionScorer) TwoPhase() TwoPhase { return nil }

type disjunctionScorer struct {
	weight  Weight
	scorers []Scorer
	doc     uint32
}

func (s *disjunctionScorer) DocID() uint32 { return s.doc }

func (s *disjunctionScorer) NextDoc() (uint32, error) {
	if s.doc == NoMoreDocs {
		return NoMoreDocs, nil
	}
	return s.Advance(s.doc + 1)
}

func (s *disjunctionScorer) Advance(target uint32) (uint32, error) {
	min := uint32(NoMoreDocs)
	for _, c := range s.scorers {
		doc := c.DocID()
		if doc < target {
			var err error
			doc, err = c.Advance(target)
			if err != nil {
				return 0, err
			}
		}
		if doc < min {
			min = doc
		}
	}
	s.doc = min
	return min, nil
}

func (s *disjunctionScorer) Cost() int64 {
	var sum int64
	for _, c := range s.scorers {
		sum += c.Cost()
	}
	return sum
}

func (s *disjunctionScorer) Score() (float64, error) {
	sum := 0.0
	for _, c := range s.scorers {
		if c.DocID() == s.doc {
			v, err := c.Score()
			if err != nil {
				return 0, err
			}
			sum += v
		}
	}
	return sum, nil
}

func (s *disjunctionScorer) Freq() uint32 {
	var n uint32
	for _, c := range s.scorers {
		if c.DocID() == s.doc {
			n++
		}
	}
	return n
}

func (s *disjunctionScorer) Weight() Weight { return s.weight }

func (s *disjunctionScorer) Children() []ChildScorer {
	children := make([]ChildScorer, len(s.scorers))
	for i, c := range s.scorers {
		children[i] = ChildScorer{Scorer: c, Relation: "SHOULD"}
	}
	return children
}

func (s *disjunctionScorer) TwoPhase() TwoPhase { return nil }
