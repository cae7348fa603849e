package search

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"queryscope/internal/indexer"
	"queryscope/internal/store"
	"queryscope/pkg/models"
)

func buildTestIndex(t *testing.T, files map[string]string) *store.IndexReader {
	t.Helper()

	root := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(content), 0644))
	}

	out := t.TempDir()
	builder, err := indexer.NewIndexBuilder(out, indexer.NewCrawler(root, nil, nil))
	require.NoError(t, err)
	require.NoError(t, builder.Build())

	reader, err := store.NewIndexReader(out)
	require.NoError(t, err)
	t.Cleanup(func() { reader.Close() })
	return reader
}

// runQuery returns matched paths keyed to their scores.
func runQuery(t *testing.T, reader *store.IndexReader, q Query) map[string]float64 {
	t.Helper()

	byPath := make(map[string]float64)
	searcher := NewSearcher(reader)
	err := searcher.Search(q, CollectorFunc(func(docID uint32, score float64) error {
		for _, seg := range reader.Segments {
			if doc, ok := seg.Doc(docID); ok {
				byPath[filepath.Base(doc.Path)] = score
				return nil
			}
		}
		t.Fatalf("unknown doc id %d", docID)
		return nil
	}))
	require.NoError(t, err)
	return byPath
}

func testCorpus() map[string]string {
	return map[string]string{
		"one.txt":   "alpha beta common",
		"two.txt":   "alpha alpha gamma common",
		"three.txt": "delta common",
		"four.txt":  "epsilon common",
	}
}

func TestTermSearch(t *testing.T) {
	reader := buildTestIndex(t, testCorpus())

	hits := runQuery(t, reader, NewTermQuery("alpha"))
	require.Len(t, hits, 2)
	assert.Contains(t, hits, "one.txt")
	assert.Contains(t, hits, "two.txt")
	assert.Greater(t, hits["two.txt"], hits["one.txt"], "higher term frequency scores higher")
}

func TestTermSearchNoMatches(t *testing.T) {
	reader := buildTestIndex(t, testCorpus())

	hits := runQuery(t, reader, NewTermQuery("missing"))
	assert.Empty(t, hits)
}

func TestConjunction(t *testing.T) {
	reader := buildTestIndex(t, testCorpus())

	q := NewAndQuery(NewTermQuery("alpha"), NewTermQuery("beta"))
	hits := runQuery(t, reader, q)
	require.Len(t, hits, 1)
	assert.Contains(t, hits, "one.txt")
}

func TestConjunctionAbsentClause(t *testing.T) {
	reader := buildTestIndex(t, testCorpus())

	q := NewAndQuery(NewTermQuery("alpha"), NewTermQuery("missing"))
	hits := runQuery(t, reader, q)
	assert.Empty(t, hits)
}

func TestDisjunction(t *testing.T) {
	reader := buildTestIndex(t, testCorpus())

	q := NewOrQuery(NewTermQuery("beta"), NewTermQuery("delta"))
	hits := runQuery(t, reader, q)
	require.Len(t, hits, 2)
	assert.Contains(t, hits, "one.txt")
	assert.Contains(t, hits, "three.txt")
}

func TestPhrase(t *testing.T) {
	reader := buildTestIndex(t, map[string]string{
		"ordered.txt":  "alpha beta gamma",
		"reversed.txt": "beta alpha gamma",
		"spread.txt":   "alpha gamma beta",
	})

	q := NewPhraseQuery("alpha", "beta")
	hits := runQuery(t, reader, q)
	require.Len(t, hits, 1)
	assert.Contains(t, hits, "ordered.txt")
}

func TestPhraseScorerHasTwoPhase(t *testing.T) {
	reader := buildTestIndex(t, map[string]string{
		"ordered.txt": "alpha beta gamma",
	})

	searcher := NewSearcher(reader)
	w, err := searcher.CreateNormalizedWeight(NewPhraseQuery("alpha", "beta"))
	require.NoError(t, err)

	sc, err := w.Scorer(reader.Segments[0])
	require.NoError(t, err)
	require.NotNil(t, sc)
	require.NotNil(t, sc.TwoPhase())

	tp := sc.TwoPhase()
	doc, err := tp.Approximation().NextDoc()
	require.NoError(t, err)
	require.NotEqual(t, uint32(NoMoreDocs), doc)
	ok, err := tp.Matches()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTermScorerAbsent(t *testing.T) {
	reader := buildTestIndex(t, testCorpus())

	searcher := NewSearcher(reader)
	w, err := searcher.CreateNormalizedWeight(NewTermQuery("missing"))
	require.NoError(t, err)

	sc, err := w.Scorer(reader.Segments[0])
	require.NoError(t, err)
	assert.Nil(t, sc)
}

func TestExtractTerms(t *testing.T) {
	reader := buildTestIndex(t, testCorpus())

	searcher := NewSearcher(reader)
	q := NewAndQuery(NewTermQuery("alpha"), NewPhraseQuery("beta", "gamma"))
	w, err := searcher.CreateWeight(q)
	require.NoError(t, err)

	terms := make(map[string]struct{})
	w.ExtractTerms(terms)
	assert.Equal(t, map[string]struct{}{"alpha": {}, "beta": {}, "gamma": {}}, terms)
}

func TestFusedAndGenericPathsAgree(t *testing.T) {
	reader := buildTestIndex(t, testCorpus())
	seg := reader.Segments[0]

	searcher := NewSearcher(reader)
	w, err := searcher.CreateNormalizedWeight(NewTermQuery("common"))
	require.NoError(t, err)

	fused := make(map[uint32]float64)
	require.NoError(t, w.ScoreAll(seg, CollectorFunc(func(docID uint32, score float64) error {
		fused[docID] = score
		return nil
	})))

	generic := make(map[uint32]float64)
	require.NoError(t, ScoreAllDocs(w, seg, CollectorFunc(func(docID uint32, score float64) error {
		generic[docID] = score
		return nil
	})))

	assert.Equal(t, fused, generic)
}

func TestPostingsIteratorAdvance(t *testing.T) {
	it := &postingsIterator{
		postings: []models.Posting{
			{DocID: 2}, {DocID: 5}, {DocID: 9}, {DocID: 14},
		},
		idx: -1,
	}

	assert.Equal(t, uint32(0), it.DocID())

	doc, err := it.Advance(5)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), doc)

	doc, err = it.Advance(6)
	require.NoError(t, err)
	assert.Equal(t, uint32(9), doc)

	doc, err = it.NextDoc()
	require.NoError(t, err)
	assert.Equal(t, uint32(14), doc)

	doc, err = it.Advance(100)
	require.NoError(t, err)
	assert.Equal(t, uint32(NoMoreDocs), doc)
}

func TestPostingsIteratorStableAfterExhaustion(t *testing.T) {
	it := &postingsIterator{
		postings: []models.Posting{{DocID: 3}},
		idx:      -1,
	}

	doc, err := it.NextDoc()
	require.NoError(t, err)
	assert.Equal(t, uint32(3), doc)

	// keep stepping well past the end, then advance again
	for i := 0; i < 3; i++ {
		doc, err = it.NextDoc()
		require.NoError(t, err)
		assert.Equal(t, uint32(NoMoreDocs), doc)
	}

	doc, err = it.Advance(10)
	require.NoError(t, err)
	assert.Equal(t, uint32(NoMoreDocs), doc)
}

func TestConjunctionIteratorLeapfrog(t *testing.T) {
	a := &postingsIterator{postings: []models.Posting{{DocID: 1}, {DocID: 3}, {DocID: 5}, {DocID: 8}}, idx: -1}
	b := &postingsIterator{postings: []models.Posting{{DocID: 3}, {DocID: 5}, {DocID: 9}}, idx: -1}

	it := newConjunctionIterator([]DocIDIterator{a, b})

	var docs []uint32
	for {
		doc, err := it.NextDoc()
		require.NoError(t, err)
		if doc == NoMoreDocs {
			break
		}
		docs = append(docs, doc)
	}
	assert.Equal(t, []uint32{3, 5}, docs)
}
