// Package llm wraps the Gemini API behind typed operations for document
// classification, content analysis, comparison, and embeddings.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"golang.org/x/time/rate"

	"docgraph/internal/models"
	"docgraph/pkg/config"
	"docgraph/pkg/logx"
	"docgraph/pkg/metrics"
)

var log = logx.NewLogger("llm")

// embedder matches the embedding surface of the googleai client.
type embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// AnalysisResult is the structured output of a content analysis call.
type AnalysisResult struct {
	Summary    string   `json:"summary"`
	KeyPoints  []string `json:"key_points"`
	Insights   []string `json:"insights"`
	Confidence float64  `json:"confidence"`
}

// ComparisonResult is the structured output of a document comparison call.
type ComparisonResult struct {
	Similarities    []string `json:"similarities"`
	Differences     []string `json:"differences"`
	KeyInsights     []string `json:"key_insights"`
	OverallAnalysis string   `json:"overall_analysis"`
	Confidence      float64  `json:"confidence"`
}

type Client struct {
	model    llms.Model
	embedder embedder
	limiter  *rate.Limiter
	cfg      config.LLMConfig
}

// New connects to the Gemini API.
func New(ctx context.Context, cfg config.LLMConfig) (*Client, error) {
	client, err := googleai.New(ctx,
		googleai.WithAPIKey(cfg.APIKey),
		googleai.WithDefaultModel(cfg.Model),
		googleai.WithDefaultEmbeddingModel(cfg.EmbeddingModel),
	)
	if err != nil {
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}
	return NewWithModel(client, client, cfg), nil
}

// NewWithModel wires a client around explicit model and embedder
// implementations.
func NewWithModel(model llms.Model, emb embedder, cfg config.LLMConfig) *Client {
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = 2.0
	}
	return &Client{
		model:    model,
		embedder: emb,
		limiter:  rate.NewLimiter(rate.Limit(limit), 1),
		cfg:      cfg,
	}
}

// Embed produces embedding vectors for a batch of texts.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	vectors, err := c.embedder.CreateEmbedding(ctx, texts)
	c.observe("embed", start, err)
	if err != nil {
		return nil, fmt.Errorf("error creating embeddings: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d for %d texts", len(vectors), len(texts))
	}
	return vectors, nil
}

// Classify determines a document's domain and type from a text sample.
func (c *Client) Classify(ctx context.Context, filename, sample string) (*models.Classification, error) {
	prompt := fmt.Sprintf(`You are a document classification expert.
Classify the document below into a domain and a document type.

Domains: healthcare, legal, financial, general
Document types: insurance_policy, contract, financial_report, invoice, letter, manual, general

Respond with JSON only:
{"domain": "...", "document_type": "...", "confidence": 0.0, "key_entities": ["..."]}

Filename: %s

Document text:
%s`, filename, truncate(sample, 4000))

	var result models.Classification
	if err := c.generateJSON(ctx, "classify", prompt, &result); err != nil {
		return nil, err
	}

	if result.Domain == "" {
		result.Domain = "general"
	}
	if result.DocumentType == "" {
		result.DocumentType = "general"
	}
	result.Confidence = clamp(result.Confidence)
	return &result, nil
}

// AnalyzeContent answers a query against retrieved chunk content.
func (c *Client) AnalyzeContent(ctx context.Context, query, domain string, contents []string) (*AnalysisResult, error) {
	prompt := fmt.Sprintf(`You are a %s document analysis expert.
Answer the question using only the document excerpts below.

Question: %s

Document excerpts:
%s

Respond with JSON only:
{"summary": "...", "key_points": ["..."], "insights": ["..."], "confidence": 0.0}`,
		domainExpert(domain), query, joinExcerpts(contents))

	var result AnalysisResult
	if err := c.generateJSON(ctx, "analyze", prompt, &result); err != nil {
		log.Warn("analysis failed, returning fallback: %v", err)
		return fallbackAnalysis(), nil
	}

	if result.Summary != "" && len(result.KeyPoints) > 0 {
		result.Confidence = clamp(result.Confidence + 0.1)
	}
	return &result, nil
}

// AnalyzeContentStream behaves like AnalyzeContent but forwards raw model
// output to stream as it arrives. The streamed text is plain prose rather
// than JSON.
func (c *Client) AnalyzeContentStream(ctx context.Context, query, domain string, contents []string, stream func(chunk []byte) error) (string, error) {
	prompt := fmt.Sprintf(`You are a %s document analysis expert.
Answer the question using only the document excerpts below. Be concise.

Question: %s

Document excerpts:
%s`, domainExpert(domain), query, joinExcerpts(contents))

	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	start := time.Now()
	resp, err := llms.GenerateFromSinglePrompt(ctx, c.model, prompt,
		llms.WithTemperature(c.cfg.Temperature),
		llms.WithMaxTokens(c.cfg.MaxTokens),
		llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			return stream(chunk)
		}),
	)
	c.observe("analyze_stream", start, err)
	if err != nil {
		return "", fmt.Errorf("error streaming analysis: %w", err)
	}
	return resp, nil
}

// CompareDocuments produces a structured comparison of document summaries.
func (c *Client) CompareDocuments(ctx context.Context, comparisonType string, focusAreas []string, docs map[string]string) (*ComparisonResult, error) {
	var b strings.Builder
	for name, content := range docs {
		fmt.Fprintf(&b, "--- Document: %s ---\n%s\n\n", name, truncate(content, 3000))
	}

	focus := "all aspects"
	if len(focusAreas) > 0 {
		focus = strings.Join(focusAreas, ", ")
	}

	prompt := fmt.Sprintf(`You are a document comparison expert.
Compare the documents below. Comparison type: %s. Focus on: %s.

%s
Respond with JSON only:
{"similarities": ["..."], "differences": ["..."], "key_insights": ["..."], "overall_analysis": "...", "confidence": 0.0}`,
		comparisonType, focus, b.String())

	var result ComparisonResult
	if err := c.generateJSON(ctx, "compare", prompt, &result); err != nil {
		log.Warn("comparison failed, returning fallback: %v", err)
		return fallbackComparison(), nil
	}

	if result.OverallAnalysis != "" && len(result.Similarities)+len(result.Differences) > 0 {
		result.Confidence = clamp(result.Confidence + 0.1)
	}
	return &result, nil
}

func (c *Client) generateJSON(ctx context.Context, op, prompt string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	start := time.Now()
	resp, err := llms.GenerateFromSinglePrompt(ctx, c.model, prompt,
		llms.WithTemperature(c.cfg.Temperature),
		llms.WithMaxTokens(c.cfg.MaxTokens),
		llms.WithJSONMode(),
	)
	c.observe(op, start, err)
	if err != nil {
		return fmt.Errorf("error calling model: %w", err)
	}

	cleaned := stripFences(resp)
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return fmt.Errorf("error parsing model response: %w", err)
	}
	return nil
}

func (c *Client) observe(op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.LLMRequests.WithLabelValues(op, status).Inc()
	metrics.LLMDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// stripFences removes markdown code fences the model sometimes wraps JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func domainExpert(domain string) string {
	switch domain {
	case "healthcare":
		return "healthcare insurance"
	case "legal":
		return "legal contract"
	case "financial":
		return "financial"
	default:
		return "general"
	}
}

func joinExcerpts(contents []string) string {
	var b strings.Builder
	for i, c := range contents {
		fmt.Fprintf(&b, "[%d] %s\n\n", i+1, truncate(c, 1500))
	}
	return b.String()
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func fallbackAnalysis() *AnalysisResult {
	return &AnalysisResult{
		Summary:    "Unable to analyze the retrieved content.",
		KeyPoints:  []string{"Analysis unavailable"},
		Confidence: 0.1,
	}
}

func fallbackComparison() *ComparisonResult {
	return &ComparisonResult{
		OverallAnalysis: "Unable to compare the documents.",
		KeyInsights:     []string{"Comparison unavailable"},
		Confidence:      0.1,
	}
}
