package indexer

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"queryscope/internal/store"
	"queryscope/pkg/models"
)

var reFileNameToken = regexp.MustCompile(`[a-zA-Z0-9_]+`)

type IndexBuilder struct {
	SegmentDir string
	Crawler    *Crawler

	memIndex map[string]map[uint32]*models.Posting
}

// NewIndexBuilder prepares a builder that writes one new segment directory
// under outDir.
func NewIndexBuilder(outDir string, crawler *Crawler) (*IndexBuilder, error) {
	existing, err := filepath.Glob(filepath.Join(outDir, "segment-*"))
	if err != nil {
		return nil, err
	}
	segDir := filepath.Join(outDir, fmt.Sprintf("segment-%03d", len(existing)))
	if err := os.MkdirAll(segDir, 0755); err != nil {
		return nil, err
	}
	return &IndexBuilder{
		SegmentDir: segDir,
		Crawler:    crawler,
		memIndex:   make(map[string]map[uint32]*models.Posting),
	}, nil
}

// Build does everything: crawl, tokenize, save.
func (b *IndexBuilder) Build() error {
	start := time.Now()

	docWriter, err := store.NewDocWriter(filepath.Join(b.SegmentDir, models.DocsFileName))
	if err != nil {
		return fmt.Errorf("failed to open docs file: %w", err)
	}
	defer docWriter.Close()

	docsChan := make(chan models.DocumentRecord)
	go b.Crawler.Crawl(docsChan)

	count := 0
	for doc := range docsChan {
		count++

		file, err := os.Open(doc.Path)
		if err != nil {
			log.Warn().Str("path", doc.Path).Err(err).Msg("could not open file")
			continue
		}

		td := Tokenize(file, doc.Type)
		file.Close()

		doc.TimestampMin = td.TimestampMin
		doc.TimestampMax = td.TimestampMax

		if err := docWriter.Write(doc); err != nil {
			return fmt.Errorf("failed to write doc: %w", err)
		}

		// put tokens in memory map for now
		for _, tok := range td.Tokens {
			b.addToken(tok, doc.DocID)
		}

		// ALSO we index the filename itself for the +5.0 bonus!
		baseName := filepath.Base(doc.Path)
		fnTokens := reFileNameToken.FindAllString(baseName, -1)
		for _, term := range fnTokens {
			b.addToken(RawToken{
				Term:     strings.ToLower(term),
				Position: 0,
				Meta:     models.MetaInFileName,
			}, doc.DocID)
		}

		if count%100 == 0 {
			log.Info().Int("files", count).Msg("indexing progress")
		}
	}
	log.Info().Int("files", count).Dur("elapsed", time.Since(start)).
		Str("segment", b.SegmentDir).Msg("core indexing finished, writing segment")

	if err := docWriter.Close(); err != nil {
		return fmt.Errorf("failed to write docs: %w", err)
	}
	return b.save()
}

func (b *IndexBuilder) addToken(tok RawToken, docID uint32) {
	docMap, ok := b.memIndex[tok.Term]
	if !ok {
		docMap = make(map[uint32]*models.Posting)
		b.memIndex[tok.Term] = docMap
	}

	post, ok := docMap[docID]
	if !ok {
		post = &models.Posting{
			DocID: docID,
			Meta:  0,
		}
		docMap[docID] = post
	}

	post.Frequency++
	post.Positions = append(post.Positions, tok.Position)
	post.Meta |= tok.Meta
}

// save everything to disk in binary format
func (b *IndexBuilder) save() error {
	idxFile, err := os.Create(filepath.Join(b.SegmentDir, models.IndexFileName))
	if err != nil {
		return err
	}
	defer idxFile.Close()
	idx := bufio.NewWriter(idxFile)

	lexFile, err := os.Create(filepath.Join(b.SegmentDir, models.LexiconFileName))
	if err != nil {
		return err
	}
	defer lexFile.Close()
	lex := bufio.NewWriter(lexFile)

	idx.WriteString(models.IndexHeader)
	idx.WriteByte(models.FormatVersion)
	lex.WriteString(models.LexiconHeader)
	lex.WriteByte(models.FormatVersion)

	// sort terms so segment files are deterministic
	terms := make([]string, 0, len(b.memIndex))
	for t := range b.memIndex {
		terms = append(terms, t)
	}
	sort.Strings(terms)

	var indexOffset uint64 = uint64(len(models.IndexHeader) + 1)
	buf := make([]byte, 8)

	for _, term := range terms {
		docMap := b.memIndex[term]

		// sort by docID, scorers rely on increasing doc order
		postings := make([]*models.Posting, 0, len(docMap))
		for _, p := range docMap {
			postings = append(postings, p)
		}
		sort.Slice(postings, func(i, j int) bool {
			return postings[i].DocID < postings[j].DocID
		})

		startOffset := indexOffset

		// write each posting
		for _, p := range postings {
			binary.LittleEndian.PutUint32(buf, p.DocID)
			idx.Write(buf[:4])

			binary.LittleEndian.PutUint32(buf, p.Frequency)
			idx.Write(buf[:4])

			idx.WriteByte(p.Meta)

			binary.LittleEndian.PutUint32(buf, uint32(len(p.Positions)))
			idx.Write(buf[:4])

			for _, pos := range p.Positions {
				binary.LittleEndian.PutUint32(buf, pos)
				idx.Write(buf[:4])
			}

			indexOffset += uint64(13 + 4*len(p.Positions))
		}

		postingListLen := indexOffset - startOffset

		// write lexicon entry
		termBytes := []byte(term)
		if len(termBytes) > 65535 {
			termBytes = termBytes[:65535]
		}

		binary.LittleEndian.PutUint16(buf, uint16(len(termBytes)))
		lex.Write(buf[:2])

		lex.Write(termBytes)

		binary.LittleEndian.PutUint32(buf, uint32(len(postings)))
		lex.Write(buf[:4])

		binary.LittleEndian.PutUint64(buf, startOffset)
		lex.Write(buf[:8])

		binary.LittleEndian.PutUint32(buf, uint32(postingListLen))
		lex.Write(buf[:4])
	}

	// bufio keeps the first write error sticky, so one Flush check per file
	// catches a truncated segment (e.g. disk full).
	if err := idx.Flush(); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	if err := lex.Flush(); err != nil {
		return fmt.Errorf("failed to write lexicon: %w", err)
	}
	if err := idxFile.Close(); err != nil {
		return err
	}
	return lexFile.Close()
}
