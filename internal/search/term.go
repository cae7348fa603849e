package search

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"queryscope/internal/store"
	"queryscope/pkg/models"
)

// TermQuery matches documents containing a single term. MetaMask, when
// non-zero, restricts matches to postings carrying all of those meta bits
// (e.g. only hits on ERROR log lines).
type TermQuery struct {
	Term     string
	MetaMask uint8
}

func NewTermQuery(term string) *TermQuery {
	return &TermQuery{Term: strings.ToLower(term)}
}

func (q *TermQuery) String() string {
	return q.Term
}

func (q *TermQuery) CreateWeight(s *Searcher) (Weight, error) {
	docFreq := s.Reader.DocFreq(q.Term)
	idf := math.Log(float64(s.Reader.TotalDocs()) / (float64(docFreq) + 1))
	return &termWeight{query: q, idf: idf, boost: 1, queryNorm: 1}, nil
}

type termWeight struct {
	query     *TermQuery
	idf       float64
	boost     float64
	queryNorm float64
}

func (w *termWeight) Query() Query { return w.query }

func (w *termWeight) ValueForNormalization() float64 {
	qw := w.idf * w.boost
	return qw * qw
}

func (w *termWeight) Normalize(norm, topLevelBoost float64) {
	w.queryNorm = norm * topLevelBoost
}

func (w *termWeight) ExtractTerms(terms map[string]struct{}) {
	terms[w.query.Term] = struct{}{}
}

func (w *termWeight) Scorer(seg *store.Segment) (Scorer, error) {
	postings, err := seg.GetPostings(w.query.Term)
	if err != nil {
		return nil, err
	}
	postings = filterPostings(postings, w.query.MetaMask)
	if len(postings) == 0 {
		return nil, nil
	}
	return &termScorer{
		postingsIterator: postingsIterator{postings: postings, idx: -1},
		weight:           w,
	}, nil
}

// ScoreAll is the fused path: match, score and collect in a single pass
// over the posting list without going through a Scorer.
func (w *termWeight) ScoreAll(seg *store.Segment, c Collector) error {
	postings, err := seg.GetPostings(w.query.Term)
	if err != nil {
		return err
	}
	for _, p := range postings {
		if w.query.MetaMask != 0 && p.Meta&w.query.MetaMask != w.query.MetaMask {
			continue
		}
		if err := c.Collect(p.DocID, w.scorePosting(&p)); err != nil {
			return err
		}
	}
	return nil
}

func (w *termWeight) scorePosting(p *models.Posting) float64 {
	tf := float64(p.Frequency)
	score := tf * w.idf * w.boost * w.queryNorm

	// Bonus
	if p.Meta&models.MetaInFileName != 0 {
		score += 5.0
	}
	if p.Meta&models.MetaInFunctionName != 0 {
		score += 3.0
	}
	return score
}

func (w *termWeight) Explain(seg *store.Segment, docID uint32) (*Explanation, error) {
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
				Description: fmt.Sprintf("weight(%s in %d)", w.query.Term, docID),
				Details: []*Explanation{
					{Value: float64(sc.Freq()), Description: "tf"},
					{Value: w.idf, Description: "idf"},
					{Value: w.queryNorm, Description: "queryNorm"},
				},
			}, nil
		}
	}
	return &Explanation{Value: 0, Description: fmt.Sprintf("no match for %s", w.query.Term)}, nil
}

func filterPostings(postings []models.Posting, mask uint8) []models.Posting {
	if mask == 0 {
		return postings
	}
	kept := postings[:0:0]
	for _, p := range postings {
		if p.Meta&mask == mask {
			kept = append(kept, p)
		}
	}
	return kept
}

// postingsIterator steps through a posting list already sorted by doc id.
type postingsIterator struct {
	postings []models.Posting
	idx      int // -1 before the first step
}

func (it *postingsIterator) DocID() uint32 {
	if it.idx < 0 {
		return 0
	}
	if it.idx >= len(it.postings) {
		return NoMoreDocs
	}
	return it.postings[it.idx].DocID
}

func (it *postingsIterator) NextDoc() (uint32, error) {
	// stay parked at len once exhausted so repeated calls keep
	// returning NoMoreDocs instead of running off the slice
	if it.idx < len(it.postings) {
		it.idx++
	}
	return it.DocID(), nil
}

func (it *postingsIterator) Advance(target uint32) (uint32, error) {
	if it.idx < 0 {
		it.idx = 0
	}
	rest := it.postings[it.idx:]
	it.idx += sort.Search(len(rest), func(i int) bool {
		return rest[i].DocID >= target
	})
	return it.DocID(), nil
}

func (it *postingsIterator) Cost() int64 {
	return int64(len(it.postings))
}

// current returns the posting under the iterator. Only valid while
// positioned on a real document.
func (it *postingsIterator) current() *models.Posting {
	return &it.postings[it.idx]
}

type termScorer struct {
	postingsIterator
	weight *termWeight
}

func (s *termScorer) Score() (float64, error) {
	return s.weight.scorePosting(s.current()), nil
}

func (s *termScorer) Freq() uint32 {
	return s.current().Frequency
}

func (s *termScorer) Weight() Weight { return s.weight }

func (s *termScorer) Children() []ChildScorer { return nil }

func (s *termScorer) TwoPhase() TwoPhase { return nil }
