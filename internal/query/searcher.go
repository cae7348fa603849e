package query

import (
	"bufio"
	"os"
	"sort"
	"strings"

	"queryscope/internal/profile"
	"queryscope/internal/search"
	"queryscope/internal/store"
	"queryscope/pkg/models"
)

type SearchResult struct {
	DocID   uint32
	Path    string
	Score   float64
	Snippet string
	LineNum uint32
}

type Options struct {
	TopK    int
	Profile bool
}

// Response carries the ranked results and, when profiling was requested,
// the per-query-node timing report.
type Response struct {
	Results []SearchResult
	Profile []profile.Result
	Session string
}

// Filters are the parts of a query string that restrict documents rather
// than match terms.
type Filters struct {
	Ext string // file extension suffix, lowercased, with leading dot
}

// Parse turns a query string into a query tree plus document filters.
// Supported syntax: bare terms (implicit AND), "quoted phrases", the OR
// operator between groups, and level:/ext: filters.
func Parse(queryString string) (search.Query, Filters, error) {
	var filters Filters
	var metaMask uint8

	tokens := splitQuery(queryString)

	var groups [][]search.Query
	current := []search.Query{}
	flush := func() {
		if len(current) > 0 {
			groups = append(groups, current)
			current = nil
		}
	}

	for _, tok := range tokens {
		switch {
		case tok == "OR":
			flush()
		case strings.HasPrefix(tok, "level:"):
			switch strings.ToUpper(strings.TrimPrefix(tok, "level:")) {
			case "ERROR":
				metaMask |= models.MetaLogLevelError
			case "WARN":
				metaMask |= models.MetaLogLevelWarn
			}
		case strings.HasPrefix(tok, "ext:"):
			ext := strings.ToLower(strings.TrimPrefix(tok, "ext:"))
			if ext != "" && !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			filters.Ext = ext
		case strings.HasPrefix(tok, `"`):
			phrase := strings.Trim(tok, `"`)
			terms := strings.Fields(phrase)
			if len(terms) == 1 {
				current = append(current, search.NewTermQuery(terms[0]))
			} else if len(terms) > 1 {
				current = append(current, search.NewPhraseQuery(terms...))
			}
		default:
			current = append(current, search.NewTermQuery(tok))
		}
	}
	flush()

	if metaMask != 0 {
		for _, g := range groups {
			for _, q := range g {
				if tq, ok := q.(*search.TermQuery); ok {
					tq.MetaMask = metaMask
				}
			}
		}
	}

	var groupQueries []search.Query
	for _, g := range groups {
		if len(g) == 1 {
			groupQueries = append(groupQueries, g[0])
		} else {
			groupQueries = append(groupQueries, search.NewAndQuery(g...))
		}
	}

	switch len(groupQueries) {
	case 0:
		return nil, filters, nil
	case 1:
		return groupQueries[0], filters, nil
	default:
		return search.NewOrQuery(groupQueries...), filters, nil
	}
}

// splitQuery splits on whitespace but keeps quoted phrases as one token.
func splitQuery(s string) []string {
	var tokens []string
	var b strings.Builder
	inQuote := false
	for _, r := range s {
		switch {
		case r == '"':
			b.WriteRune(r)
			if inQuote {
				tokens = append(tokens, b.String())
				b.Reset()
			}
			inQuote = !inQuote
		case r == ' ' || r == '\t':
			if inQuote {
				b.WriteRune(r)
			} else if b.Len() > 0 {
				tokens = append(tokens, b.String())
				b.Reset()
			}
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}

// Search executes a query string against the index.
func Search(reader *store.IndexReader, queryString string, opts Options) (*Response, error) {
	q, filters, err := Parse(queryString)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return &Response{}, nil
	}

	searcher := search.NewSearcher(reader)

	var prof *profile.Profiler
	if opts.Profile {
		prof = profile.NewProfiler()
		searcher.WrapWeight = prof.WrapWeight
	}

	w, err := searcher.CreateNormalizedWeight(q)
	if err != nil {
		return nil, err
	}

	type hit struct {
		doc   models.DocumentRecord
		score float64
	}
	var hits []hit

	for _, seg := range reader.Segments {
		collector := search.CollectorFunc(func(docID uint32, score float64) error {
			doc, ok := seg.Doc(docID)
			if !ok {
				return nil
			}
			if filters.Ext != "" && !strings.HasSuffix(strings.ToLower(doc.Path), filters.Ext) {
				return nil
			}
			hits = append(hits, hit{doc: doc, score: score})
			return nil
		})
		if err := w.ScoreAll(seg, collector); err != nil {
			return nil, err
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		return hits[i].score > hits[j].score
	})

	topK := opts.TopK
	if topK <= 0 {
		topK = 10
	}
	if len(hits) > topK {
		hits = hits[:topK]
	}

	resp := &Response{}
	terms := queryTerms(w)
	for _, h := range hits {
		res := SearchResult{
			DocID: h.doc.DocID,
			Path:  h.doc.Path,
			Score: h.score,
		}
		res.Snippet, res.LineNum = snippetFor(h.doc.Path, terms)
		resp.Results = append(resp.Results, res)
	}

	if prof != nil {
		resp.Profile = prof.Report()
		resp.Session = prof.SessionID
	}
	return resp, nil
}

// queryTerms gathers every term the weight matches on, sorted so snippet
// extraction is deterministic.
func queryTerms(w search.Weight) []string {
	set := make(map[string]struct{})
	w.ExtractTerms(set)
	terms := make([]string, 0, len(set))
	for t := range set {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	return terms
}

// snippetFor returns the first line of the file mentioning any query term,
// with its 1-based line number. Terms are already lowercased by the parser.
func snippetFor(path string, terms []string) (string, uint32) {
	if len(terms) == 0 {
		return "", 0
	}
	f, err := os.Open(path)
	if err != nil {
		return "", 0
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for lineNum := uint32(1); scanner.Scan(); lineNum++ {
		lower := strings.ToLower(scanner.Text())
		for _, term := range terms {
			if strings.Contains(lower, term) {
				return clipLine(scanner.Text()), lineNum
			}
		}
	}
	return "", 0
}

func clipLine(line string) string {
	line = strings.TrimSpace(line)
	if len(line) > 200 {
		line = line[:200] + "..."
	}
	return line
}
