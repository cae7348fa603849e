package models

// DocType distinguishes between source code and log files.
type DocType uint8

const (
	DocTypeCode DocType = 0
	DocTypeLog  DocType = 1
)

// DocumentRecord represents the metadata stored for each file in docs.bin.
type DocumentRecord struct {
	DocID        uint32
	Type         DocType
	Path         string
	TimestampMin int64 // For logs: epoch start. For code: ModTime.
	TimestampMax int64 // For logs: epoch end. For code: 0 or ModTime.
}

// Meta bits recorded on postings, shared by the indexer (which sets them)
// and the search engine (which scores and filters on them).
const (
	MetaNone           uint8 = 0
	MetaInFileName     uint8 = 1 << 0
	MetaInFunctionName uint8 = 1 << 1
	MetaLogLevelError  uint8 = 1 << 2
	MetaLogLevelWarn   uint8 = 1 << 3
)

// Posting represents a single hit in the index.
type Posting struct {
	DocID     uint32
	Frequency uint32
	Positions []uint32
	Meta      uint8 // bitmask of Meta* bits
}

// LexiconEntry represents a term in lexicon.bin (in-memory representation)
type LexiconEntry struct {
	Term       string
	DocFreq    uint32
	Offset     uint64 // Offset in index.bin
	ByteLength uint32 // Byte length of the posting list in index.bin
}

const (
	DocsFileName    = "docs.bin"
	IndexFileName   = "index.bin"
	LexiconFileName = "lexicon.bin"

	IndexHeader   = "QSCOPE_IDX"
	LexiconHeader = "QSCOPE_LEX"
	FormatVersion = 1
)
