package ingest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docgraph/internal/models"
	"docgraph/pkg/chunker"
	"docgraph/pkg/classify"
	"docgraph/pkg/config"
	"docgraph/pkg/ontology"
	"docgraph/pkg/scrape"
)

type fakeClassifyModel struct {
	result *models.Classification
	err    error
}

func (f *fakeClassifyModel) Classify(ctx context.Context, filename, sample string) (*models.Classification, error) {
	return f.result, f.err
}

type fakeEmbedModel struct {
	err   error
	calls int
}

func (f *fakeEmbedModel) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.5, 0.5}
	}
	return out, nil
}

type fakeStore struct {
	domain  string
	docType string
	chunks  []models.Chunk
	err     error
}

func (f *fakeStore) StoreChunks(ctx context.Context, domain, documentType string, chunks []models.Chunk) error {
	f.domain, f.docType, f.chunks = domain, documentType, chunks
	return f.err
}

type fakeRegistry struct {
	docs []models.Document
	err  error
}

func (f *fakeRegistry) Put(ctx context.Context, doc models.Document) error {
	f.docs = append(f.docs, doc)
	return f.err
}

func newPipeline(t *testing.T, model *fakeEmbedModel, store *fakeStore, reg *fakeRegistry) *Pipeline {
	t.Helper()
	ont, err := ontology.NewManager(t.TempDir())
	require.NoError(t, err)

	classifier := classify.New(&fakeClassifyModel{result: &models.Classification{
		Domain:       "healthcare",
		DocumentType: "insurance_policy",
		Confidence:   0.9,
	}}, ont)
	ch := chunker.New(config.ChunkerConfig{
		ChunkSize:      300,
		ChunkOverlap:   60,
		MinChunkLength: 20,
		MaxChunkTokens: 512,
	}, ont)
	return NewPipeline(classifier, ch, model, store, reg, scrape.New(config.IngestConfig{RateLimit: 1000}))
}

func policyText() string {
	return strings.Repeat("This policy provides coverage for hospital visits and prescriptions. ", 8)
}

func TestIngestText(t *testing.T) {
	model := &fakeEmbedModel{}
	store := &fakeStore{}
	reg := &fakeRegistry{}
	p := newPipeline(t, model, store, reg)

	resp, err := p.IngestText(context.Background(), "plan.txt", "", policyText())
	require.NoError(t, err)

	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "plan.txt", resp.Filename)
	assert.Equal(t, "healthcare", resp.Classification.Domain)
	assert.Greater(t, resp.ChunksCreated, 0)
	assert.NotEmpty(t, resp.DocumentID)

	// Structure stats are attached to the classification metadata.
	assert.Equal(t, "72", resp.Classification.Metadata["word_count"])
	assert.Equal(t, "healthcare", resp.Classification.Metadata["domain_hint"])

	// Stored chunks carry embeddings and the classified domain.
	assert.Equal(t, "healthcare", store.domain)
	assert.Equal(t, "insurance_policy", store.docType)
	require.NotEmpty(t, store.chunks)
	for _, c := range store.chunks {
		assert.Equal(t, []float32{0.5, 0.5}, c.Embedding)
		assert.Equal(t, resp.DocumentID, c.DocumentID)
	}

	require.Len(t, reg.docs, 1)
	assert.Equal(t, resp.DocumentID, reg.docs[0].ID)
	assert.Equal(t, resp.ChunksCreated, reg.docs[0].ChunkCount)
	assert.False(t, reg.docs[0].UploadedAt.IsZero())
}

func TestIngestTextEmpty(t *testing.T) {
	p := newPipeline(t, &fakeEmbedModel{}, &fakeStore{}, &fakeRegistry{})

	_, err := p.IngestText(context.Background(), "empty.txt", "", "   ")
	assert.ErrorContains(t, err, "no text content")
}

func TestIngestPDFRejectsNonPDF(t *testing.T) {
	p := newPipeline(t, &fakeEmbedModel{}, &fakeStore{}, &fakeRegistry{})

	_, err := p.IngestPDF(context.Background(), "fake.pdf", []byte("not a pdf"))
	assert.ErrorContains(t, err, "not a PDF")
}

func TestIngestEmbedFailure(t *testing.T) {
	store := &fakeStore{}
	p := newPipeline(t, &fakeEmbedModel{err: errors.New("quota exceeded")}, store, &fakeRegistry{})

	_, err := p.IngestText(context.Background(), "plan.txt", "", policyText())
	assert.ErrorContains(t, err, "quota exceeded")
	assert.Empty(t, store.chunks, "nothing should be stored on embed failure")
}

func TestIngestStoreFailure(t *testing.T) {
	reg := &fakeRegistry{}
	p := newPipeline(t, &fakeEmbedModel{}, &fakeStore{err: errors.New("db down")}, reg)

	_, err := p.IngestText(context.Background(), "plan.txt", "", policyText())
	assert.ErrorContains(t, err, "db down")
	assert.Empty(t, reg.docs)
}

func TestIngestURLHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><head><title>Benefits Page</title></head><body><p>" + policyText() + "</p></body></html>"))
	}))
	defer srv.Close()

	reg := &fakeRegistry{}
	p := newPipeline(t, &fakeEmbedModel{}, &fakeStore{}, reg)

	resp, err := p.IngestURL(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, "Benefits Page", resp.Filename)
	require.Len(t, reg.docs, 1)
	assert.Equal(t, srv.URL, reg.docs[0].SourceURL)
}
