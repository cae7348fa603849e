package indexer

import (
	"bufio"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"queryscope/pkg/models"
)

// RawToken is a single term occurrence produced by the tokenizer, before
// postings are merged per document.
type RawToken struct {
	Term     string
	Position uint32
	Meta     uint8
}

// TokenizedDoc is the tokenizer output for one file. TimestampMin and
// TimestampMax are only set for log files carrying parseable timestamps.
type TokenizedDoc struct {
	Tokens       []RawToken
	TimestampMin int64
	TimestampMax int64
}

var (
	reIdentifier = regexp.MustCompile(`[a-zA-Z_][a-zA-Z0-9_]*`)
	reFuncDef    = regexp.MustCompile(`(func|def|function|class|struct)\s+([a-zA-Z_][a-zA-Z0-9_]*)`)
)

// Tokenize lexes one file into lowercased term occurrences. Code lines tag
// defined function names, log lines tag severity and contribute to the
// document's timestamp range.
func Tokenize(r io.Reader, docType models.DocType) TokenizedDoc {
	var doc TokenizedDoc
	pos := uint32(0)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()

		lineMeta := models.MetaNone
		funcName := ""
		if docType == models.DocTypeLog {
			doc.observeTimestamp(lineTimestamp(line))
			lineMeta = levelBits(line)
		} else if m := reFuncDef.FindStringSubmatch(line); len(m) > 2 {
			funcName = m[2]
		}

		for _, term := range reIdentifier.FindAllString(line, -1) {
			meta := lineMeta
			if funcName != "" && term == funcName {
				meta |= models.MetaInFunctionName
			}
			pos++
			doc.Tokens = append(doc.Tokens, RawToken{
				Term:     strings.ToLower(term),
				Position: pos,
				Meta:     meta,
			})
		}
	}
	if err := scanner.Err(); err != nil {
		log.Warn().Err(err).Msg("tokenizer stopped before end of input")
	}
	return doc
}

// levelBits maps a log line to its severity meta bits. Only ERROR and WARN
// are distinguished; other lines are indexed without level bits.
func levelBits(line string) uint8 {
	upper := strings.ToUpper(line)
	switch {
	case strings.Contains(upper, "ERROR"):
		return models.MetaLogLevelError
	case strings.Contains(upper, "WARN"):
		return models.MetaLogLevelWarn
	}
	return models.MetaNone
}

func (d *TokenizedDoc) observeTimestamp(ts int64) {
	if ts == 0 {
		return
	}
	if d.TimestampMin == 0 || ts < d.TimestampMin {
		d.TimestampMin = ts
	}
	if ts > d.TimestampMax {
		d.TimestampMax = ts
	}
}

// lineTimestamp reads an ISO-8601-style timestamp off the front of a log
// line, accepting either "T" or a space between date and time. Returns 0
// when the line does not start with one.
func lineTimestamp(line string) int64 {
	const layout = "2006-01-02T15:04:05"
	if len(line) < len(layout) {
		return 0
	}
	head := strings.Replace(line[:len(layout)], " ", "T", 1)
	t, err := time.Parse(layout, head)
	if err != nil {
		return 0
	}
	return t.Unix()
}
