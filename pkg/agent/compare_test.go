package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docgraph/internal/models"
	"docgraph/pkg/llm"
	"docgraph/pkg/ontology"
)

type fakeCompareModel struct {
	result   *llm.ComparisonResult
	err      error
	lastDocs map[string]string
	lastType string
}

func (f *fakeCompareModel) CompareDocuments(ctx context.Context, comparisonType string, focusAreas []string, docs map[string]string) (*llm.ComparisonResult, error) {
	f.lastType = comparisonType
	f.lastDocs = docs
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeChunkLoader struct {
	chunks map[string][]models.Chunk
}

func (f *fakeChunkLoader) DocumentChunks(ctx context.Context, documentID string) ([]models.Chunk, error) {
	return f.chunks[documentID], nil
}

func chunk(id, docID, content string, concepts ...string) models.Chunk {
	return models.Chunk{ID: id, DocumentID: docID, Content: content, Type: "text", Concepts: concepts}
}

func newComparisonAgentForTest(t *testing.T, model compareModel, loader chunkLoader, docs documentLookup) *ComparisonAgent {
	t.Helper()
	ont, err := ontology.NewManager(t.TempDir())
	require.NoError(t, err)

	a, err := NewComparisonAgent(model, loader, docs, ont, testAgentConfig())
	require.NoError(t, err)
	return a
}

func TestCompareFullFlow(t *testing.T) {
	model := &fakeCompareModel{result: &llm.ComparisonResult{
		Similarities:    []string{"both cover hospital care"},
		Differences:     []string{"plan A has a lower deductible"},
		KeyInsights:     []string{"plan A is cheaper overall", "plan A is cheaper overall"},
		OverallAnalysis: "The plans are broadly similar.",
		Confidence:      0.8,
	}}
	loader := &fakeChunkLoader{chunks: map[string][]models.Chunk{
		"doc1": {
			chunk("c1", "doc1", "Coverage includes hospital stays", "Coverage", "Premium"),
			chunk("c2", "doc1", "Unrelated boilerplate"),
		},
		"doc2": {
			chunk("c3", "doc2", "Coverage includes outpatient visits", "Coverage", "Deductible"),
		},
	}}
	docs := &fakeDocs{docs: map[string]models.Document{
		"doc1": {ID: "doc1", Filename: "planA.pdf", Domain: "healthcare"},
		"doc2": {ID: "doc2", Filename: "planB.pdf", Domain: "healthcare"},
	}}
	a := newComparisonAgentForTest(t, model, loader, docs)

	resp, err := a.Compare(context.Background(), models.ComparisonRequest{
		DocumentIDs:    []string{"doc1", "doc2"},
		ComparisonType: "coverage",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.ComparisonID)
	assert.Equal(t, []string{"doc1", "doc2"}, resp.DocumentIDs)
	assert.Equal(t, []string{"both cover hospital care"}, resp.Similarities)
	assert.Equal(t, "coverage", model.lastType)

	// Duplicate model insights are deduplicated.
	count := 0
	for _, in := range resp.Insights {
		if in == "plan A is cheaper overall" {
			count++
		}
	}
	assert.Equal(t, 1, count)

	// Matrix has one pair with the shared concept.
	require.Len(t, resp.Matrix, 1)
	pair, ok := resp.Matrix["planA.pdf vs planB.pdf"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []string{"Coverage"}, pair["shared_concepts"])
	assert.Equal(t, true, pair["same_domain"])

	assert.Greater(t, resp.Confidence, 0.0)
	assert.NotEmpty(t, resp.ReasoningSteps)
	assert.Equal(t, "The plans are broadly similar.", resp.Metadata["overall_analysis"])

	// The coverage comparison type filters out non-matching chunks.
	assert.NotContains(t, model.lastDocs["planA.pdf"], "boilerplate")
}

func TestCompareInsufficientDocs(t *testing.T) {
	model := &fakeCompareModel{result: &llm.ComparisonResult{}}
	loader := &fakeChunkLoader{chunks: map[string][]models.Chunk{}}
	docs := &fakeDocs{docs: map[string]models.Document{
		"doc1": {ID: "doc1", Filename: "only.pdf"},
	}}
	a := newComparisonAgentForTest(t, model, loader, docs)

	resp, err := a.Compare(context.Background(), models.ComparisonRequest{
		DocumentIDs: []string{"doc1", "unknown"},
	})
	require.NoError(t, err)

	assert.Zero(t, resp.Confidence)
	assert.Equal(t, "insufficient_docs", resp.Metadata["status"])
	assert.Nil(t, model.lastDocs, "analysis should be skipped")
}

func TestCompareWorkflowErrorDegrades(t *testing.T) {
	model := &fakeCompareModel{err: errors.New("model unavailable")}
	loader := &fakeChunkLoader{chunks: map[string][]models.Chunk{
		"doc1": {chunk("c1", "doc1", "content one")},
		"doc2": {chunk("c2", "doc2", "content two")},
	}}
	docs := &fakeDocs{docs: map[string]models.Document{
		"doc1": {ID: "doc1", Filename: "a.pdf"},
		"doc2": {ID: "doc2", Filename: "b.pdf"},
	}}
	a := newComparisonAgentForTest(t, model, loader, docs)

	resp, err := a.Compare(context.Background(), models.ComparisonRequest{
		DocumentIDs: []string{"doc1", "doc2"},
	})
	require.NoError(t, err)

	assert.Zero(t, resp.Confidence)
	assert.Equal(t, "error", resp.Metadata["status"])
	assert.NotEmpty(t, resp.ComparisonID)
}

func TestConceptOverlap(t *testing.T) {
	a := map[string]bool{"Coverage": true, "Premium": true}
	b := map[string]bool{"Coverage": true, "Deductible": true}

	shared, overlap := conceptOverlap(a, b)
	assert.Equal(t, []string{"Coverage"}, shared)
	assert.InDelta(t, 1.0/3.0, overlap, 1e-9)

	shared, overlap = conceptOverlap(map[string]bool{}, map[string]bool{})
	assert.Empty(t, shared)
	assert.Zero(t, overlap)
}

func TestFilterChunksFallback(t *testing.T) {
	chunks := []models.Chunk{chunk("c1", "d", "nothing matches here")}
	got := filterChunks(chunks, []string{"coverage"})
	assert.Equal(t, chunks, got, "no matches should keep all chunks")

	got = filterChunks(chunks, nil)
	assert.Equal(t, chunks, got)
}
