// Package wordcount reports how many words a stored document contains.
// Text extraction is delegated to per-format extractors; a word is a maximal
// run of non-whitespace characters in the extracted text.
package wordcount

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupportedType means no extractor handles the document format.
	ErrUnsupportedType = errors.New("unsupported document type for word count")
	// ErrParse wraps extraction failures for an otherwise supported format.
	ErrParse = errors.New("document parse failed")
)

// Extractor turns a document on disk into plain text.
type Extractor interface {
	ExtractText(path string) (string, error)
}

const (
	mimeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimePDF  = "application/pdf"
)

// Counter dispatches to an extractor by declared MIME type, falling back to
// the file extension when the type is missing or unknown.
type Counter struct {
	byMime map[string]Extractor
	byExt  map[string]Extractor
}

// New returns a Counter with the standard DOCX and PDF extractors.
func New() *Counter {
	c := &Counter{
		byMime: make(map[string]Extractor),
		byExt:  make(map[string]Extractor),
	}
	c.Register(mimeDocx, ".docx", DocxExtractor{})
	c.Register(mimePDF, ".pdf", PDFExtractor{})
	return c
}

// Register maps a MIME type and extension to an extractor.
func (c *Counter) Register(mimeType, ext string, e Extractor) {
	if mimeType != "" {
		c.byMime[strings.ToLower(mimeType)] = e
	}
	if ext != "" {
		c.byExt[strings.ToLower(ext)] = e
	}
}

// Count extracts the document text and counts words. A document with no
// words counts as 0; it is not an error.
func (c *Counter) Count(path, declaredType string) (int, error) {
	e := c.byMime[strings.ToLower(strings.TrimSpace(declaredType))]
	if e == nil {
		e = c.byExt[strings.ToLower(filepath.Ext(path))]
	}
	if e == nil {
		return 0, ErrUnsupportedType
	}
	text, err := e.ExtractText(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrParse, filepath.Base(path), err)
	}
	return len(strings.Fields(text)), nil
}
