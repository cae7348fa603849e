package indexer

import (
	"io/fs"
	"path/filepath"
	"strings"

	"queryscope/pkg/models"
)

type Crawler struct {
	Root       string
	IgnoreDirs map[string]bool
	Extensions map[string]models.DocType
}

func NewCrawler(root string, ignoreDirs []string, extraExts []string) *Crawler {
	c := &Crawler{
		Root:       root,
		IgnoreDirs: map[string]bool{".git": true, "node_modules": true, "vendor": true},
		Extensions: defaultExtensions(),
	}
	for _, d := range ignoreDirs {
		c.IgnoreDirs[d] = true
	}
	for _, e := range extraExts {
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		c.Extensions[strings.ToLower(e)] = models.DocTypeCode
	}
	return c
}

func defaultExtensions() map[string]models.DocType {
	exts := make(map[string]models.DocType)
	for _, e := range []string{".go", ".py", ".js", ".ts", ".c", ".cpp", ".h", ".hpp", ".java", ".rs", ".md", ".txt", ".json", ".yaml", ".yml"} {
		exts[e] = models.DocTypeCode
	}
	exts[".log"] = models.DocTypeLog
	return exts
}

// Crawl walks the root recursively and emits a record per indexable file.
func (c *Crawler) Crawl(out chan<- models.DocumentRecord) error {
	defer close(out)

	docIDCounter := uint32(1)

	return filepath.WalkDir(c.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // just skip bad files
		}
		if d.IsDir() {
			if c.IgnoreDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}

		docType, ok := c.Extensions[strings.ToLower(filepath.Ext(path))]
		if !ok {
			return nil // we dont know this file type
		}

		rec := models.DocumentRecord{
			DocID: docIDCounter,
			Type:  docType,
			Path:  path,
		}

		out <- rec
		docIDCounter++
		return nil
	})
}
