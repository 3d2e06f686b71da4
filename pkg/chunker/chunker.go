// Package chunker splits extracted document text into retrieval-sized
// chunks. The strategy varies by domain: insurance documents are split along
// section headers, legal documents along clause boundaries, and everything
// else along sentence windows with overlap.
package chunker

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tiktoken-go/tokenizer"

	"docgraph/internal/models"
	"docgraph/pkg/config"
	"docgraph/pkg/logx"
	"docgraph/pkg/ontology"
	"docgraph/pkg/pdf"
	"docgraph/pkg/textproc"
)

var log = logx.NewLogger("chunker")

var (
	sectionHeaderRe = regexp.MustCompile(`\b(?:COVERAGE|BENEFITS|LIMITATIONS|EXCLUSIONS|DEFINITIONS|ELIGIBILITY)\b|\b(?:Section|Article|Part)\s+[IVX\d]+[.:)]?`)
	clauseRe        = regexp.MustCompile(`\b(?:Section|Article|Clause)\s+\d+(?:\.\d+)*[.:)]?|\b\d+\.\d+\s`)
)

type Chunker struct {
	cfg config.ChunkerConfig
	ont *ontology.Manager
	enc tokenizer.Codec
}

func New(cfg config.ChunkerConfig, ont *ontology.Manager) *Chunker {
	enc, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		// Fall back to the character estimate in countTokens.
		log.Warn("tokenizer unavailable, using character estimate: %v", err)
		enc = nil
	}
	return &Chunker{cfg: cfg, ont: ont, enc: enc}
}

// Chunk splits a document's pages for the given domain and tags each chunk
// with the ontology concepts its text mentions.
func (c *Chunker) Chunk(docID string, pages []pdf.Page, domain, docType string) []models.Chunk {
	var chunks []models.Chunk
	position := 0

	for _, page := range pages {
		var parts []part
		switch domain {
		case "healthcare":
			parts = c.splitSections(page.Text)
		case "legal":
			parts = c.splitClauses(page.Text)
		default:
			parts = c.splitSentenceWindows(page.Text)
		}

		for _, p := range parts {
			content := strings.TrimSpace(p.text)
			if len(content) < c.cfg.MinChunkLength {
				continue
			}

			chunk := models.Chunk{
				ID:         fmt.Sprintf("%s_%d_%d", docID, page.Number, position),
				DocumentID: docID,
				Content:    content,
				Type:       p.chunkType,
				PageNumber: page.Number,
				Position:   position,
				Concepts:   c.ont.MapText(domain, content),
				Metadata:   map[string]string{},
			}
			if p.section != "" {
				chunk.Metadata["section"] = p.section
			}
			if domain == "financial" {
				if amounts := textproc.MonetaryAmounts(content); len(amounts) > 0 {
					chunk.Metadata["amounts"] = strings.Join(amounts, "; ")
				}
			}
			chunks = append(chunks, chunk)
			position++
		}
	}

	log.Debug("chunked document %s into %d chunks (domain=%s type=%s)",
		docID, len(chunks), domain, docType)
	return chunks
}

type part struct {
	text      string
	chunkType string
	section   string
}

// splitSections cuts text at insurance section headers, then bounds each
// section with the sentence-window splitter.
func (c *Chunker) splitSections(text string) []part {
	locs := sectionHeaderRe.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return c.splitSentenceWindows(text)
	}

	var parts []part
	emit := func(segment, header string) {
		for _, w := range c.windows(segment) {
			parts = append(parts, part{text: w, chunkType: "section", section: header})
		}
	}

	if lead := strings.TrimSpace(text[:locs[0][0]]); lead != "" {
		emit(lead, "")
	}
	for i, loc := range locs {
		header := strings.TrimSpace(text[loc[0]:loc[1]])
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		emit(text[loc[0]:end], header)
	}
	return parts
}

func (c *Chunker) splitClauses(text string) []part {
	locs := clauseRe.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return c.splitSentenceWindows(text)
	}

	var parts []part
	emit := func(segment string) {
		for _, w := range c.windows(segment) {
			parts = append(parts, part{text: w, chunkType: "clause"})
		}
	}

	if lead := strings.TrimSpace(text[:locs[0][0]]); lead != "" {
		emit(lead)
	}
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		emit(text[loc[0]:end])
	}
	return parts
}

func (c *Chunker) splitSentenceWindows(text string) []part {
	var parts []part
	for _, w := range c.windows(text) {
		parts = append(parts, part{text: w, chunkType: "text"})
	}
	return parts
}

// windows accumulates sentences into chunks of at most ChunkSize characters
// and MaxChunkTokens tokens, carrying ChunkOverlap characters of trailing
// sentences into the next chunk.
func (c *Chunker) windows(text string) []string {
	sentences := textproc.Sentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var out []string
	var current []string
	currentLen := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		out = append(out, strings.Join(current, " "))

		// Carry trailing sentences forward as overlap.
		var carried []string
		carriedLen := 0
		for i := len(current) - 1; i >= 0; i-- {
			l := len(current[i]) + 1
			if carriedLen+l > c.cfg.ChunkOverlap {
				break
			}
			carried = append([]string{current[i]}, carried...)
			carriedLen += l
		}
		current = carried
		currentLen = carriedLen
	}

	for _, s := range sentences {
		sLen := len(s) + 1
		if currentLen+sLen > c.cfg.ChunkSize && len(current) > 0 {
			flush()
		}
		current = append(current, s)
		currentLen += sLen

		if c.countTokens(strings.Join(current, " ")) > c.cfg.MaxChunkTokens {
			flush()
		}
	}
	if len(current) > 0 {
		joined := strings.Join(current, " ")
		if len(out) == 0 || !strings.HasSuffix(out[len(out)-1], joined) {
			out = append(out, joined)
		}
	}
	return out
}

func (c *Chunker) countTokens(text string) int {
	if c.enc == nil {
		return len(text) / 4
	}
	ids, _, err := c.enc.Encode(text)
	if err != nil {
		return len(text) / 4
	}
	return len(ids)
}
