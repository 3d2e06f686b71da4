// Package ingest runs the document ingestion pipeline: extract text,
// classify, chunk, embed, and persist.
package ingest

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"docgraph/internal/models"
	"docgraph/pkg/chunker"
	"docgraph/pkg/classify"
	"docgraph/pkg/logx"
	"docgraph/pkg/metrics"
	"docgraph/pkg/pdf"
	"docgraph/pkg/scrape"
)

var log = logx.NewLogger("ingest")

// embedBatchSize bounds how many chunk texts go to the embedding API per
// call.
const embedBatchSize = 64

type embedderModel interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type chunkStore interface {
	StoreChunks(ctx context.Context, domain, documentType string, chunks []models.Chunk) error
}

type docRegistry interface {
	Put(ctx context.Context, doc models.Document) error
}

type Pipeline struct {
	classifier *classify.Classifier
	chunker    *chunker.Chunker
	model      embedderModel
	store      chunkStore
	registry   docRegistry
	scraper    *scrape.Scraper
}

func NewPipeline(classifier *classify.Classifier, ch *chunker.Chunker, model embedderModel, store chunkStore, registry docRegistry, scraper *scrape.Scraper) *Pipeline {
	return &Pipeline{
		classifier: classifier,
		chunker:    ch,
		model:      model,
		store:      store,
		registry:   registry,
		scraper:    scraper,
	}
}

// IngestPDF runs the full pipeline over an uploaded PDF.
func (p *Pipeline) IngestPDF(ctx context.Context, filename string, data []byte) (*models.UploadResponse, error) {
	doc, err := pdf.ExtractBytes(data)
	if err != nil {
		return nil, fmt.Errorf("error extracting %s: %w", filename, err)
	}
	return p.ingest(ctx, filename, "", doc.Pages, doc.PageCount)
}

// IngestText ingests plain text as a single-page document.
func (p *Pipeline) IngestText(ctx context.Context, name, sourceURL, text string) (*models.UploadResponse, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("no text content in %s", name)
	}
	pages := []pdf.Page{{Number: 1, Text: text}}
	return p.ingest(ctx, name, sourceURL, pages, 1)
}

// IngestURL fetches a remote URL and ingests whatever it finds: a PDF
// directly, or an HTML page's text content.
func (p *Pipeline) IngestURL(ctx context.Context, rawURL string) (*models.UploadResponse, error) {
	if p.scraper == nil {
		return nil, fmt.Errorf("URL ingestion is not configured")
	}
	page, err := p.scraper.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	if page.PDF != nil {
		return p.IngestPDF(ctx, path.Base(rawURL), page.PDF)
	}

	name := page.Title
	if name == "" {
		name = rawURL
	}
	return p.IngestText(ctx, name, rawURL, page.Text)
}

func (p *Pipeline) ingest(ctx context.Context, filename, sourceURL string, pages []pdf.Page, pageCount int) (*models.UploadResponse, error) {
	full := joinPages(pages)
	classification := p.classifier.Classify(ctx, filename, full)

	structure := pdf.Analyze(&pdf.Document{Pages: pages, PageCount: pageCount})
	if classification.Metadata == nil {
		classification.Metadata = map[string]string{}
	}
	classification.Metadata["word_count"] = strconv.Itoa(structure.WordCount)
	classification.Metadata["section_count"] = strconv.Itoa(structure.SectionCount)
	if structure.DomainHint != "" {
		classification.Metadata["domain_hint"] = structure.DomainHint
	}

	docID := uuid.NewString()
	chunks := p.chunker.Chunk(docID, pages, classification.Domain, classification.DocumentType)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("document %s produced no chunks", filename)
	}

	if err := p.embedChunks(ctx, chunks); err != nil {
		return nil, err
	}
	if err := p.store.StoreChunks(ctx, classification.Domain, classification.DocumentType, chunks); err != nil {
		return nil, err
	}

	record := models.Document{
		ID:           docID,
		Filename:     filename,
		SourceURL:    sourceURL,
		Domain:       classification.Domain,
		DocumentType: classification.DocumentType,
		ChunkCount:   len(chunks),
		PageCount:    pageCount,
		Confidence:   classification.Confidence,
		KeyEntities:  classification.KeyEntities,
		UploadedAt:   time.Now().UTC(),
	}
	if err := p.registry.Put(ctx, record); err != nil {
		return nil, fmt.Errorf("error recording document: %w", err)
	}

	metrics.DocumentsIngested.WithLabelValues(classification.Domain).Inc()
	log.Info("ingested %s: domain=%s type=%s chunks=%d",
		filename, classification.Domain, classification.DocumentType, len(chunks))

	return &models.UploadResponse{
		DocumentID:     docID,
		Filename:       filename,
		Classification: *classification,
		ChunksCreated:  len(chunks),
		Status:         "success",
		Message:        fmt.Sprintf("Document processed into %d chunks", len(chunks)),
	}, nil
}

func (p *Pipeline) embedChunks(ctx context.Context, chunks []models.Chunk) error {
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		texts := make([]string, end-start)
		for i, c := range chunks[start:end] {
			texts[i] = c.Content
		}

		vectors, err := p.model.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("error embedding chunks: %w", err)
		}
		for i := range vectors {
			chunks[start+i].Embedding = vectors[i]
		}
	}
	return nil
}

func joinPages(pages []pdf.Page) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		parts = append(parts, p.Text)
	}
	return strings.Join(parts, "\n\n")
}
