package query

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"queryscope/internal/indexer"
	"queryscope/internal/profile"
	"queryscope/internal/search"
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

func TestParseSingleTerm(t *testing.T) {
	q, _, err := Parse("alpha")
	require.NoError(t, err)
	require.IsType(t, &search.TermQuery{}, q)
	assert.Equal(t, "alpha", q.(*search.TermQuery).Term)
}

func TestParseImplicitAnd(t *testing.T) {
	q, _, err := Parse("alpha beta")
	require.NoError(t, err)
	and, ok := q.(*search.AndQuery)
	require.True(t, ok)
	require.Len(t, and.Clauses, 2)
}

func TestParseOrGroups(t *testing.T) {
	q, _, err := Parse("alpha beta OR gamma")
	require.NoError(t, err)
	or, ok := q.(*search.OrQuery)
	require.True(t, ok)
	require.Len(t, or.Clauses, 2)
	assert.IsType(t, &search.AndQuery{}, or.Clauses[0])
	assert.IsType(t, &search.TermQuery{}, or.Clauses[1])
}

func TestParsePhrase(t *testing.T) {
	q, _, err := Parse(`"connection timeout" retry`)
	require.NoError(t, err)
	and, ok := q.(*search.AndQuery)
	require.True(t, ok)
	require.Len(t, and.Clauses, 2)
	phrase, ok := and.Clauses[0].(*search.PhraseQuery)
	require.True(t, ok)
	assert.Equal(t, []string{"connection", "timeout"}, phrase.Terms)
}

func TestParseFilters(t *testing.T) {
	q, filters, err := Parse("timeout level:ERROR ext:go")
	require.NoError(t, err)
	assert.Equal(t, ".go", filters.Ext)
	tq, ok := q.(*search.TermQuery)
	require.True(t, ok)
	assert.Equal(t, models.MetaLogLevelError, tq.MetaMask)
}

func TestParseEmpty(t *testing.T) {
	q, _, err := Parse("level:ERROR")
	require.NoError(t, err)
	assert.Nil(t, q)
}

func TestSearchEndToEnd(t *testing.T) {
	reader := buildTestIndex(t, map[string]string{
		"one.txt":   "alpha beta common",
		"two.txt":   "alpha alpha gamma common",
		"three.txt": "delta common",
		"four.txt":  "epsilon common",
	})

	resp, err := Search(reader, "alpha", Options{TopK: 10})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "two.txt", filepath.Base(resp.Results[0].Path))
	assert.Equal(t, "one.txt", filepath.Base(resp.Results[1].Path))
	assert.Empty(t, resp.Profile)
}

func TestSearchProfiledResultsIdentical(t *testing.T) {
	files := map[string]string{
		"one.txt":   "alpha beta common",
		"two.txt":   "alpha alpha gamma common",
		"three.txt": "delta common",
		"four.txt":  "epsilon common",
	}
	reader := buildTestIndex(t, files)

	plain, err := Search(reader, "alpha beta OR delta", Options{TopK: 10})
	require.NoError(t, err)
	profiled, err := Search(reader, "alpha beta OR delta", Options{TopK: 10, Profile: true})
	require.NoError(t, err)

	require.Equal(t, len(plain.Results), len(profiled.Results))
	for i := range plain.Results {
		assert.Equal(t, plain.Results[i].DocID, profiled.Results[i].DocID)
		assert.InDelta(t, plain.Results[i].Score, profiled.Results[i].Score, 1e-12)
	}
	assert.NotEmpty(t, profiled.Session)
}

func TestSearchProfileReportShape(t *testing.T) {
	reader := buildTestIndex(t, map[string]string{
		"one.txt": "alpha beta common",
		"two.txt": "alpha gamma common",
	})

	resp, err := Search(reader, "alpha beta", Options{TopK: 10, Profile: true})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)

	require.Len(t, resp.Profile, 1)
	root := resp.Profile[0]
	require.Len(t, root.Children, 2, "each clause gets its own timing node")

	buildScorer := profile.BuildScorer.String()
	assert.Equal(t, int64(1), root.Counts[buildScorer])
	for _, child := range root.Children {
		assert.Equal(t, int64(1), child.Counts[buildScorer])
	}

	// The parent steps the iteration; clause work shows up as advances on
	// the clause nodes, never as extra parent steps.
	nextDoc := profile.NextDoc.String()
	advance := profile.Advance.String()
	assert.Greater(t, root.Counts[nextDoc], int64(0))
	var childSteps int64
	for _, child := range root.Children {
		childSteps += child.Counts[advance] + child.Counts[nextDoc]
	}
	assert.Greater(t, childSteps, int64(0))

	score := profile.Score.String()
	assert.Equal(t, int64(1), root.Counts[score])
	for _, child := range root.Children {
		assert.Equal(t, int64(1), child.Counts[score], "conjunction scores each clause once per match")
	}
}

func TestSearchSnippetMatchesAnyTerm(t *testing.T) {
	reader := buildTestIndex(t, map[string]string{
		"one.txt": "nothing notable here\nbeta appears first\nalpha shows up later",
	})

	resp, err := Search(reader, "alpha beta", Options{TopK: 10})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)

	// the earliest line mentioning either term wins
	assert.Equal(t, "beta appears first", resp.Results[0].Snippet)
	assert.Equal(t, uint32(2), resp.Results[0].LineNum)
}

func TestSearchExtFilter(t *testing.T) {
	reader := buildTestIndex(t, map[string]string{
		"app.go":    "timeout := defaultDeadline",
		"notes.txt": "timeout happened",
	})

	resp, err := Search(reader, "timeout ext:go", Options{TopK: 10})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "app.go", filepath.Base(resp.Results[0].Path))
}

func TestSearchLevelFilter(t *testing.T) {
	reader := buildTestIndex(t, map[string]string{
		"app.log": "2024-01-02 03:04:05 ERROR timeout while connecting\n2024-01-02 03:04:06 INFO retry scheduled",
		"ok.log":  "2024-01-02 03:04:05 INFO timeout budget set",
	})

	resp, err := Search(reader, "timeout level:ERROR", Options{TopK: 10})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "app.log", filepath.Base(resp.Results[0].Path))
}

func TestSearchEmptyQuery(t *testing.T) {
	reader := buildTestIndex(t, map[string]string{"one.txt": "alpha"})

	resp, err := Search(reader, "   ", Options{})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}
