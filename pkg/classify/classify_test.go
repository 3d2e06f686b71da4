package classify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docgraph/internal/models"
	"docgraph/pkg/ontology"
)

type fakeClassifierModel struct {
	result     *models.Classification
	err        error
	lastSample string
}

func (f *fakeClassifierModel) Classify(ctx context.Context, filename, sample string) (*models.Classification, error) {
	f.lastSample = sample
	return f.result, f.err
}

func newClassifier(t *testing.T, model classifierModel) *Classifier {
	t.Helper()
	ont, err := ontology.NewManager(t.TempDir())
	require.NoError(t, err)
	return New(model, ont)
}

func TestClassifyUsesModel(t *testing.T) {
	model := &fakeClassifierModel{result: &models.Classification{
		Domain:       "healthcare",
		DocumentType: "insurance_policy",
		Confidence:   0.92,
	}}
	c := newClassifier(t, model)

	got := c.Classify(context.Background(), "plan.pdf", "The premium and deductible are listed below.")
	assert.Equal(t, "healthcare", got.Domain)
	assert.Equal(t, 0.92, got.Confidence)
	assert.Contains(t, got.OntologyMapping, "Premium")
	assert.Contains(t, got.OntologyMapping, "Deductible")
}

func TestClassifySampleTruncation(t *testing.T) {
	model := &fakeClassifierModel{result: &models.Classification{Domain: "general"}}
	c := newClassifier(t, model)

	// Multibyte text long enough to cross the sample cap must stay valid
	// UTF-8 after truncation.
	text := strings.Repeat("世界", 1000)
	c.Classify(context.Background(), "doc.pdf", text)

	assert.LessOrEqual(t, len(model.lastSample), 4000)
	assert.True(t, utf8.ValidString(model.lastSample))
}

func TestClassifyFallsBackToHeuristics(t *testing.T) {
	c := newClassifier(t, &fakeClassifierModel{err: errors.New("rate limited")})

	got := c.Classify(context.Background(),
		"contract.pdf",
		"This agreement binds the parties to indemnification and liability clauses.")
	assert.Equal(t, "legal", got.Domain)
	assert.Equal(t, "contract", got.DocumentType)
	assert.Equal(t, 0.5, got.Confidence)
	assert.NotEmpty(t, got.KeyEntities)
}

func TestHeuristicGeneral(t *testing.T) {
	got := heuristic("A story about a fox and a dog running through the forest.")
	assert.Equal(t, "general", got.Domain)
	assert.Equal(t, "general", got.DocumentType)
}
