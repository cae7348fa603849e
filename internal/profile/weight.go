package profile

import (
	"queryscope/internal/search"
	"queryscope/internal/store"
)

// ProfileWeight wraps a query's weight and times scorer construction.
// Normalization, term extraction and explanation are delegated directly
// without timing.
type ProfileWeight struct {
	query  search.Query
	weight search.Weight
	node   *Node
}

func NewProfileWeight(q search.Query, w search.Weight, node *Node) *ProfileWeight {
	return &ProfileWeight{query: q, weight: w, node: node}
}

func (w *ProfileWeight) Query() search.Query { return w.query }

// Scorer times only the wrapped weight's own construction call. Clause
// weights built by composites carry their own ProfileWeight, so nested
// construction shows up on their nodes as well.
func (w *ProfileWeight) Scorer(seg *store.Segment) (search.Scorer, error) {
	bd := w.node.NewSlot()

	var sub search.Scorer
	var err error
	func() {
		defer bd.Time(BuildScorer)()
		sub, err = w.weight.Scorer(seg)
	}()
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, nil
	}

	return newProfileScorer(w, sub, bd), nil
}

// ScoreAll ignores any fused path the wrapped weight may have. Fused paths
// find, score and collect matches as one step, which makes it impossible to
// see where time is spent. Pulling a scorer and iterating one document at a
// time keeps matching, scoring and confirmation separately measurable.
func (w *ProfileWeight) ScoreAll(seg *store.Segment, c search.Collector) error {
	return search.ScoreAllDocs(w, seg, c)
}

func (w *ProfileWeight) ValueForNormalization() float64 {
	return w.weight.ValueForNormalization()
}

func (w *ProfileWeight) Normalize(norm, topLevelBoost float64) {
	w.weight.Normalize(norm, topLevelBoost)
}

func (w *ProfileWeight) ExtractTerms(terms map[string]struct{}) {
	w.weight.ExtractTerms(terms)
}

func (w *ProfileWeight) Explain(seg *store.Segment, docID uint32) (*search.Explanation, error) {
	return w.weight.Explain(seg, docID)
}
