package search

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"queryscope/internal/store"
)

// PhraseQuery matches documents containing its terms at consecutive
// positions. Matching is two-phase: a conjunction over the term posting
// lists approximates, and position adjacency confirms.
type PhraseQuery struct {
	Terms []string
}

func NewPhraseQuery(terms ...string) *PhraseQuery {
	lowered := make([]string, len(terms))
	for i, t := range terms {
		lowered[i] = strings.ToLower(t)
	}
	return &PhraseQuery{Terms: lowered}
}

func (q *PhraseQuery) String() string {
	return `"` + strings.Join(q.Terms, " ") + `"`
}

func (q *PhraseQuery) CreateWeight(s *Searcher) (Weight, error) {
	if len(q.Terms) == 0 {
		return nil, fmt.Errorf("empty phrase")
	}
	idf := 0.0
	total := float64(s.Reader.TotalDocs())
	for _, t := range q.Terms {
		idf += math.Log(total / (float64(s.Reader.DocFreq(t)) + 1))
	}
	return &phraseWeight{query: q, idf: idf, boost: 1, queryNorm: 1}, nil
}

type phraseWeight struct {
	query     *PhraseQuery
	idf       float64
	boost     float64
	queryNorm float64
}

func (w *phraseWeight) Query() Query { return w.query }

func (w *phraseWeight) ValueForNormalization() float64 {
	qw := w.idf * w.boost
	return qw * qw
}

func (w *phraseWeight) Normalize(norm, topLevelBoost float64) {
	w.queryNorm = norm * topLevelBoost
}

func (w *phraseWeight) ExtractTerms(terms map[string]struct{}) {
	for _, t := range w.query.Terms {
		terms[t] = struct{}{}
	}
}

func (w *phraseWeight) Scorer(seg *store.Segment) (Scorer, error) {
	iters := make([]*postingsIterator, len(w.query.Terms))
	for i, t := range w.query.Terms {
		postings, err := seg.GetPostings(t)
		if err != nil {
			return nil, err
		}
		if len(postings) == 0 {
			return nil, nil
		}
		iters[i] = &postingsIterator{postings: postings, idx: -1}
	}

	approx := make([]DocIDIterator, len(iters))
	for i, it := range iters {
		approx[i] = it
	}
	return &phraseScorer{
		weight: w,
		iters:  iters,
		approx: newConjunctionIterator(approx),
	}, nil
}

func (w *phraseWeight) ScoreAll(seg *store.Segment, c Collector) error {
	return ScoreAllDocs(w, seg, c)
}

func (w *phraseWeight) Explain(seg *store.Segment, docID uint32) (*Explanation, error) {
	sc, err := w.Scorer(seg)
	if err != nil {
		return nil, err
	}
	if sc != nil {
		doc, err := sc.Advance(docID)
		if err != nil {
			return nil, err
		}
		if doc == docID {
			score, err := sc.Score()
			if err != nil {
				return nil, err
			}
			return &Explanation{
				Value:       score,
				Description: fmt.Sprintf("phrase(%s in %d)", strings.Join(w.query.Terms, " "), docID),
				Details: []*Explanation{
					{Value: float64(sc.Freq()), Description: "phraseFreq"},
					{Value: w.idf, Description: "idf"},
					{Value: w.queryNorm, Description: "queryNorm"},
				},
			}, nil
		}
	}
	return &Explanation{Value: 0, Description: "phrase does not match"}, nil
}

type phraseScorer struct {
	weight *phraseWeight
	iters  []*postingsIterator
	approx *conjunctionIterator
	freq   uint32 // phrase occurrences at the current doc, set by confirm
}

func (s *phraseScorer) DocID() uint32 { return s.approx.DocID() }

func (s *phraseScorer) NextDoc() (uint32, error) {
	for {
		doc, err := s.approx.NextDoc()
		if err != nil || doc == NoMoreDocs {
			return doc, err
		}
		if s.confirm() {
			return doc, nil
		}
	}
}

func (s *phraseScorer) Advance(target uint32) (uint32, error) {
	doc, err := s.approx.Advance(target)
	if err != nil || doc == NoMoreDocs {
		return doc, err
	}
	if s.confirm() {
		return doc, nil
	}
	return s.NextDoc()
}

func (s *phraseScorer) Cost() int64 { return s.approx.Cost() }

// confirm checks position adjacency at the approximation's current doc and
// counts phrase occurrences.
func (s *phraseScorer) confirm() bool {
	s.freq = 0
	first := s.iters[0].current().Positions
	for _, start := range first {
		found := true
		for i := 1; i < len(s.iters); i++ {
			positions := s.iters[i].current().Positions
			want := start + uint32(i)
			j := sort.Search(len(positions), func(k int) bool {
				return positions[k] >= want
			})
			if j >= len(positions) || positions[j] != want {
				found = false
				break
			}
		}
		if found {
			s.freq++
		}
	}
	return s.freq > 0
}

func (s *phraseScorer) Score() (float64, error) {
	return float64(s.freq) * s.weight.idf * s.weight.boost * s.weight.queryNorm, nil
}

func (s *phraseScorer) Freq() uint32 { return s.freq }

func (s *phraseScorer) Weight() Weight { return s.weight }

func (s *phraseScorer) Children() []ChildScorer { return nil }

func (s *phraseScorer) TwoPhase() TwoPhase { return &phraseTwoPhase{scorer: s} }

type phraseTwoPhase struct {
	scorer *phraseScorer
}

func (t *phraseTwoPhase) Approximation() DocIDIterator {
	return t.scorer.approx
}

func (t *phraseTwoPhase) Matches() (bool, error) {
	return t.scorer.confirm(), nil
}
