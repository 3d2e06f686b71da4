// Package pdf extracts page text from PDF files.
package pdf

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"docgraph/pkg/logx"
	"docgraph/pkg/textproc"
)

var log = logx.NewLogger("pdf")

var magic = []byte("%PDF-")

// Page holds the cleaned text of a single page.
type Page struct {
	Number int
	Text   string
}

// Document is the extraction result for one file.
type Document struct {
	Pages     []Page
	PageCount int
}

// FullText joins all page text with blank lines between pages.
func (d *Document) FullText() string {
	parts := make([]string, 0, len(d.Pages))
	for _, p := range d.Pages {
		if p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// IsPDF reports whether data starts with the PDF magic bytes.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, magic)
}

// Extract parses a PDF and returns cleaned per-page text. Pages that fail
// text extraction are skipped with a warning rather than aborting the whole
// document; scanned pages without a text layer commonly do this.
func Extract(r io.ReaderAt, size int64) (*Document, error) {
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("error opening PDF: %w", err)
	}

	doc := &Document{PageCount: reader.NumPage()}
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			log.Warn("skipping page %d: %v", i, err)
			continue
		}
		text = textproc.Clean(text)
		if text == "" {
			continue
		}
		doc.Pages = append(doc.Pages, Page{Number: i, Text: text})
	}

	if len(doc.Pages) == 0 {
		return nil, fmt.Errorf("no extractable text in PDF (%d pages)", doc.PageCount)
	}
	return doc, nil
}

// ExtractBytes is a convenience wrapper over Extract for in-memory files.
func ExtractBytes(data []byte) (*Document, error) {
	if !IsPDF(data) {
		return nil, fmt.Errorf("not a PDF file")
	}
	return Extract(bytes.NewReader(data), int64(len(data)))
}

// Structure summarizes a document's shape for classification hints and
// ingestion metadata.
type Structure struct {
	WordCount    int
	SectionCount int
	AvgWordsPage float64
	DomainHint   string
}

var sectionRe = regexp.MustCompile(`\b(?:SECTION|ARTICLE|PART|COVERAGE|BENEFITS|EXCLUSIONS|DEFINITIONS)\b|\b(?:Section|Article|Part)\s+[IVX\d]+`)

// Analyze inspects extracted text for section headers, length, and domain
// vocabulary.
func Analyze(doc *Document) Structure {
	s := Structure{}
	for _, p := range doc.Pages {
		s.WordCount += len(strings.Fields(p.Text))
		s.SectionCount += len(sectionRe.FindAllString(p.Text, -1))
	}
	if n := len(doc.Pages); n > 0 {
		s.AvgWordsPage = float64(s.WordCount) / float64(n)
	}
	s.DomainHint = textproc.DominantDomain(doc.FullText())
	return s
}
