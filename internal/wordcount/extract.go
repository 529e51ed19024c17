package wordcount

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

// DocxExtractor reads OOXML Word documents. The docx library yields the raw
// document XML; the text runs are pulled out of it in document order.
type DocxExtractor struct{}

func (DocxExtractor) ExtractText(path string) (string, error) {
	r, err := docx.ReadDocxFile(path)
	if err != nil {
		return "", fmt.Errorf("read docx: %w", err)
	}
	defer r.Close()
	return docxText(r.Editable().GetContent())
}

// docxText collects the character data of every <w:t> run, separating runs
// with whitespace so adjacent paragraphs do not merge into one word.
func docxText(content string) (string, error) {
	dec := xml.NewDecoder(strings.NewReader(content))
	var (
		b      strings.Builder
		inText bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("decode docx xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			if t.Name.Local == "t" {
				inText = false
				b.WriteByte(' ')
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return b.String(), nil
}

// PDFExtractor reads PDF documents page by page.
type PDFExtractor struct{}

func (PDFExtractor) ExtractText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	text, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return string(text), nil
}
