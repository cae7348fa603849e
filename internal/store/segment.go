package store

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"queryscope/pkg/models"
)

// Segment is a read-only view over one segment directory: its document
// records, its lexicon, and an open handle on the posting file.
type Segment struct {
	Dir     string
	Docs    map[uint32]models.DocumentRecord
	Lexicon map[string]models.LexiconEntry
	file    *os.File
}

func OpenSegment(dir string) (*Segment, error) {
	seg := &Segment{
		Dir:     dir,
		Docs:    make(map[uint32]models.DocumentRecord),
		Lexicon: make(map[string]models.LexiconEntry),
	}

	if err := seg.loadDocs(filepath.Join(dir, models.DocsFileName)); err != nil {
		return nil, fmt.Errorf("loading docs: %w", err)
	}
	if err := seg.loadLexicon(filepath.Join(dir, models.LexiconFileName)); err != nil {
		return nil, fmt.Errorf("loading lexicon: %w", err)
	}

	f, err := os.Open(filepath.Join(dir, models.IndexFileName))
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}

	header := make([]byte, len(models.IndexHeader)+1)
	if _, err := io.ReadFull(f, header); err != nil {
		f.Close()
		return nil, err
	}
	if string(header[:len(models.IndexHeader)]) != models.IndexHeader {
		f.Close()
		return nil, fmt.Errorf("invalid index header")
	}
	if header[len(models.IndexHeader)] != models.FormatVersion {
		f.Close()
		return nil, fmt.Errorf("unsupported index version: %d", header[len(models.IndexHeader)])
	}

	seg.file = f
	return seg, nil
}

func (s *Segment) Close() error {
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}

func (s *Segment) loadDocs(path string) error {
	dr, err := NewDocReader(path)
	if err != nil {
		return err
	}
	defer dr.Close()

	for {
		rec, err := dr.ReadNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		s.Docs[rec.DocID] = rec
	}
	return nil
}

func (s *Segment) loadLexicon(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	reader := bufio.NewReader(f)

	header := make([]byte, len(models.LexiconHeader))
	if _, err := io.ReadFull(reader, header); err != nil {
		return err
	}
	if string(header) != models.LexiconHeader {
		return fmt.Errorf("bad lexicon header")
	}
	if _, err := reader.ReadByte(); err != nil {
		return err
	} // Version

	for {
		// TermLen (2)
		var termLen uint16
		if err := binary.Read(reader, binary.LittleEndian, &termLen); err != nil {
			if err == io.EOF {
				break
			}
			return err
		}

		termBytes := make([]byte, termLen)
		if _, err := io.ReadFull(reader, termBytes); err != nil {
			return err
		}

		// DocFreq(4) + Offset(8) + ByteLength(4) = 16 bytes
		meta := make([]byte, 16)
		if _, err := io.ReadFull(reader, meta); err != nil {
			return err
		}

		entry := models.LexiconEntry{
			Term:       string(termBytes),
			DocFreq:    binary.LittleEndian.Uint32(meta[0:4]),
			Offset:     binary.LittleEndian.Uint64(meta[4:12]),
			ByteLength: binary.LittleEndian.Uint32(meta[12:16]),
		}
		s.Lexicon[entry.Term] = entry
	}
	return nil
}

// GetPostings reads the full posting list for a term. Returns nil, nil if
// the segment has no such term.
func (s *Segment) GetPostings(term string) ([]models.Posting, error) {
	entry, ok := s.Lexicon[term]
	if !ok {
		return nil, nil
	}

	if _, err := s.file.Seek(int64(entry.Offset), 0); err != nil {
		return nil, err
	}

	postings := make([]models.Posting, 0, entry.DocFreq)
	header := make([]byte, 13) // DocID(4)+Freq(4)+Meta(1)+PosCount(4)

	for i := uint32(0); i < entry.DocFreq; i++ {
		if _, err := io.ReadFull(s.file, header); err != nil {
			return nil, err
		}

		p := models.Posting{
			DocID:     binary.LittleEndian.Uint32(header[0:4]),
			Frequency: binary.LittleEndian.Uint32(header[4:8]),
			Meta:      header[8],
		}
		posCount := binary.LittleEndian.Uint32(header[9:13])

		p.Positions = make([]uint32, posCount)
		posBuf := make([]byte, 4*posCount)
		if _, err := io.ReadFull(s.file, posBuf); err != nil {
			return nil, err
		}
		for j := 0; j < int(posCount); j++ {
			p.Positions[j] = binary.LittleEndian.Uint32(posBuf[j*4 : j*4+4])
		}

		postings = append(postings, p)
	}

	return postings, nil
}

// DocFreq returns the number of documents in this segment containing term.
func (s *Segment) DocFreq(term string) uint32 {
	return s.Lexicon[term].DocFreq
}

// Doc returns the record for a document id.
func (s *Segment) Doc(id uint32) (models.DocumentRecord, bool) {
	rec, ok := s.Docs[id]
	return rec, ok
}

func (s *Segment) NumDocs() int {
	return len(s.Docs)
}

// IndexReader opens every segment-* directory under an index dir and serves
// index-wide stats for scoring.
type IndexReader struct {
	Segments []*Segment
}

func NewIndexReader(dir string) (*IndexReader, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "segment-*"))
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no segments found in %s", dir)
	}
	sort.Strings(matches)

	r := &IndexReader{}
	for _, m := range matches {
		seg, err := OpenSegment(m)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("segment %s: %w", m, err)
		}
		r.Segments = append(r.Segments, seg)
	}
	return r, nil
}

func (r *IndexReader) Close() {
	for _, seg := range r.Segments {
		seg.Close()
	}
}

// TotalDocs is the document count across all segments.
func (r *IndexReader) TotalDocs() int {
	n := 0
	for _, seg := range r.Segments {
		n += seg.NumDocs()
	}
	return n
}

// DocFreq sums a term's document frequency across all segments.
func (r *IndexReader) DocFreq(term string) uint32 {
	var n uint32
	for _, seg := range r.Segments {
		n += seg.DocFreq(term)
	}
	return n
}
