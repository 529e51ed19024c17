package wordcount

import (
	"archive/zip"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExtractor struct {
	text string
	err  error
}

func (f fakeExtractor) ExtractText(string) (string, error) {
	return f.text, f.err
}

func newFakeCounter(text string, err error) *Counter {
	c := &Counter{byMime: map[string]Extractor{}, byExt: map[string]Extractor{}}
	c.Register("application/pdf", ".pdf", fakeExtractor{text: text, err: err})
	return c
}

func TestCountSplitsOnWhitespaceRuns(t *testing.T) {
	cases := []struct {
		name string
		text string
		want int
	}{
		{"plain", "one two three", 3},
		{"collapsed runs", "  one\t\ttwo \n three\n", 3},
		{"empty is zero words", "", 0},
		{"whitespace only is zero words", " \n\t  ", 0},
		{"punctuation sticks to words", "well, that's two", 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newFakeCounter(tc.text, nil)
			got, err := c.Count("essay.pdf", "application/pdf")
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCountUnsupportedType(t *testing.T) {
	c := newFakeCounter("irrelevant", nil)
	_, err := c.Count("notes.txt", "text/plain")
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestCountFallsBackToExtension(t *testing.T) {
	c := newFakeCounter("one two", nil)
	got, err := c.Count("essay.pdf", "")
	require.NoError(t, err)
	assert.Equal(t, 2, got)
}

func TestCountWrapsParseFailure(t *testing.T) {
	c := newFakeCounter("", errors.New("corrupt xref table"))
	_, err := c.Count("essay.pdf", "application/pdf")
	require.ErrorIs(t, err, ErrParse)
	assert.Contains(t, err.Error(), "essay.pdf", "parse failures carry file context")
}

func TestDocxTextPullsRunsInOrder(t *testing.T) {
	content := `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
		`<w:body><w:p><w:r><w:t>Hello</w:t></w:r><w:r><w:t>world</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>again</w:t></w:r></w:p></w:body></w:document>`
	text, err := docxText(content)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello", "world", "again"}, splitWords(text))
}

func TestDocxTextIgnoresNonTextNodes(t *testing.T) {
	content := `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
		`<w:body><w:p><w:pPr><w:jc w:val="center"/></w:pPr><w:r><w:t>only</w:t></w:r></w:p></w:body></w:document>`
	text, err := docxText(content)
	require.NoError(t, err)
	assert.Equal(t, []string{"only"}, splitWords(text))
}

func splitWords(text string) []string {
	return strings.Fields(text)
}

// writeDocx assembles a minimal OOXML package on disk: the zip entries the
// docx library requires plus one paragraph holding the given text.
func writeDocx(t *testing.T, text string) string {
	t.Helper()

	document := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
		`<w:body><w:p><w:r><w:t>` + text + `</w:t></w:r></w:p></w:body></w:document>`
	relationships := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`
	contentTypes := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
		`<Default Extension="xml" ContentType="application/xml"/>` +
		`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
		`</Types>`

	path := filepath.Join(t.TempDir(), "essay.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, body := range map[string]string{
		"[Content_Types].xml":          contentTypes,
		"_rels/.rels":                  relationships,
		"word/document.xml":            document,
		"word/_rels/document.xml.rels": relationships,
	} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestCountRealDocxDocument(t *testing.T) {
	words := make([]string, 42)
	for i := range words {
		words[i] = fmt.Sprintf("word%d", i+1)
	}
	path := writeDocx(t, strings.Join(words, " "))

	got, err := New().Count(path, "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestCountRealDocxWhitespaceOnly(t *testing.T) {
	path := writeDocx(t, " \t ")

	got, err := New().Count(path, "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	require.NoError(t, err)
	assert.Equal(t, 0, got)
}

func TestCountRealDocxCorruptArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.docx")
	require.NoError(t, os.WriteFile(path, []byte("not a zip archive"), 0o644))

	_, err := New().Count(path, "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	assert.ErrorIs(t, err, ErrParse)
}
