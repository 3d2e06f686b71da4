package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"docgraph/pkg/config"
)

type fakeModel struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	for _, m := range messages {
		for _, p := range m.Parts {
			if t, ok := p.(llms.TextContent); ok {
				f.prompts = append(f.prompts, t.Text)
			}
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: f.response}},
	}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

type fakeEmbedder struct {
	vectors [][]float32
	err     error
}

func (f *fakeEmbedder) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vectors[i%len(f.vectors)]
	}
	return out, nil
}

func newTestClient(model llms.Model, emb embedder) *Client {
	return NewWithModel(model, emb, config.LLMConfig{
		Model:       "test",
		MaxTokens:   1024,
		Temperature: 0.1,
		RateLimit:   1000,
	})
}

func TestEmbed(t *testing.T) {
	emb := &fakeEmbedder{vectors: [][]float32{{0.1, 0.2, 0.3}}}
	c := newTestClient(&fakeModel{}, emb)

	vectors, err := c.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vectors[0])
}

func TestEmbedError(t *testing.T) {
	c := newTestClient(&fakeModel{}, &fakeEmbedder{err: errors.New("quota")})

	_, err := c.Embed(context.Background(), []string{"a"})
	assert.ErrorContains(t, err, "quota")
}

func TestClassify(t *testing.T) {
	model := &fakeModel{response: `{"domain": "healthcare", "document_type": "insurance_policy", "confidence": 0.9, "key_entities": ["Acme Health"]}`}
	c := newTestClient(model, &fakeEmbedder{})

	got, err := c.Classify(context.Background(), "policy.pdf", "This policy covers...")
	require.NoError(t, err)
	assert.Equal(t, "healthcare", got.Domain)
	assert.Equal(t, "insurance_policy", got.DocumentType)
	assert.Equal(t, 0.9, got.Confidence)
	assert.Equal(t, []string{"Acme Health"}, got.KeyEntities)

	require.NotEmpty(t, model.prompts)
	assert.Contains(t, model.prompts[0], "policy.pdf")
}

func TestClassifyDefaultsEmptyFields(t *testing.T) {
	model := &fakeModel{response: `{"confidence": 1.5}`}
	c := newTestClient(model, &fakeEmbedder{})

	got, err := c.Classify(context.Background(), "x.pdf", "text")
	require.NoError(t, err)
	assert.Equal(t, "general", got.Domain)
	assert.Equal(t, "general", got.DocumentType)
	assert.Equal(t, 1.0, got.Confidence)
}

func TestClassifyStripsFences(t *testing.T) {
	model := &fakeModel{response: "```json\n{\"domain\": \"legal\", \"document_type\": \"contract\", \"confidence\": 0.8}\n```"}
	c := newTestClient(model, &fakeEmbedder{})

	got, err := c.Classify(context.Background(), "x.pdf", "text")
	require.NoError(t, err)
	assert.Equal(t, "legal", got.Domain)
}

func TestAnalyzeContent(t *testing.T) {
	model := &fakeModel{response: `{"summary": "Covers hospital care", "key_points": ["a"], "insights": ["b"], "confidence": 0.7}`}
	c := newTestClient(model, &fakeEmbedder{})

	got, err := c.AnalyzeContent(context.Background(), "what is covered?", "healthcare", []string{"excerpt"})
	require.NoError(t, err)
	assert.Equal(t, "Covers hospital care", got.Summary)
	// Complete responses get a confidence bump.
	assert.InDelta(t, 0.8, got.Confidence, 1e-9)
}

func TestAnalyzeContentFallback(t *testing.T) {
	c := newTestClient(&fakeModel{err: errors.New("unavailable")}, &fakeEmbedder{})

	got, err := c.AnalyzeContent(context.Background(), "q", "general", []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, 0.1, got.Confidence)
	assert.Contains(t, got.Summary, "Unable to analyze")
}

func TestCompareDocuments(t *testing.T) {
	model := &fakeModel{response: `{"similarities": ["both cover surgery"], "differences": ["deductibles differ"], "key_insights": ["i"], "overall_analysis": "plans are similar", "confidence": 0.6}`}
	c := newTestClient(model, &fakeEmbedder{})

	got, err := c.CompareDocuments(context.Background(), "side_by_side", []string{"coverage"},
		map[string]string{"a.pdf": "content a", "b.pdf": "content b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"both cover surgery"}, got.Similarities)
	assert.InDelta(t, 0.7, got.Confidence, 1e-9)
	assert.Contains(t, model.prompts[0], "coverage")
}

func TestCompareDocumentsFallback(t *testing.T) {
	c := newTestClient(&fakeModel{response: "not json at all"}, &fakeEmbedder{})

	got, err := c.CompareDocuments(context.Background(), "t", nil, map[string]string{"a": "x"})
	require.NoError(t, err)
	assert.Equal(t, 0.1, got.Confidence)
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences("{\"a\":1}"))
	assert.Equal(t, `{"a":1}`, stripFences("```\n{\"a\":1}\n```"))
}

func TestTruncateKeepsRuneBoundaries(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcde", truncate("abcdef", 5))

	// "é" is two bytes; cutting inside it must back off to the boundary.
	s := "abécd"
	got := truncate(s, 3)
	assert.Equal(t, "ab", got)
	assert.True(t, utf8.ValidString(got))
	assert.True(t, utf8.ValidString(truncate(strings.Repeat("世界", 10), 7)))
}
