package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"docgraph/internal/models"
	"docgraph/pkg/config"
	"docgraph/pkg/llm"
	"docgraph/pkg/logx"
	"docgraph/pkg/ontology"
)

var log = logx.NewLogger("agent")

// queryModel is the slice of the LLM client the query agent needs.
type queryModel interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	AnalyzeContent(ctx context.Context, query, domain string, contents []string) (*llm.AnalysisResult, error)
	AnalyzeContentStream(ctx context.Context, query, domain string, contents []string, stream func(chunk []byte) error) (string, error)
}

// vectorSearcher is the slice of the chunk store the query agent needs.
type vectorSearcher interface {
	Search(ctx context.Context, embedding []float32, topK int, domain, documentType string) ([]models.ScoredChunk, error)
}

// documentLookup resolves document ids to their registry records.
type documentLookup interface {
	Get(ctx context.Context, id string) (*models.Document, error)
}

type queryState struct {
	request models.QueryRequest

	detectedDomain string
	retrieved      []models.ScoredChunk
	relevant       []models.ScoredChunk
	analysis       *llm.AnalysisResult
	response       models.QueryResponse
	steps          []string
}

// QueryAgent answers questions over the ingested corpus via a fixed
// workflow: classify the query's domain, retrieve candidate chunks, filter
// them by distance, generate an answer, and validate it.
type QueryAgent struct {
	model  queryModel
	store  vectorSearcher
	docs   documentLookup
	ont    *ontology.Manager
	cfg    config.AgentConfig
	runner *Runner[queryState]
}

func NewQueryAgent(model queryModel, store vectorSearcher, docs documentLookup, ont *ontology.Manager, cfg config.AgentConfig) (*QueryAgent, error) {
	a := &QueryAgent{model: model, store: store, docs: docs, ont: ont, cfg: cfg}

	g := NewGraph[queryState]()
	g.AddNode("analyze_query", a.analyzeQuery)
	g.AddNode("retrieve", a.retrieve)
	g.AddNode("analyze_relevance", a.analyzeRelevance)
	g.AddNode("generate", a.generate)
	g.AddNode("validate", a.validate)
	g.AddNode("no_results", a.noResults)

	g.SetEntryPoint("analyze_query")
	g.AddEdge("analyze_query", "retrieve")
	g.AddEdge("retrieve", "analyze_relevance")
	g.AddConditionalEdge("analyze_relevance", func(s queryState) string {
		if len(s.relevant) == 0 {
			return "no_results"
		}
		return "generate"
	}, "no_results", "generate")
	g.AddEdge("generate", "validate")
	g.AddEdge("validate", END)
	g.AddEdge("no_results", END)

	runner, err := g.Compile(cfg.MaxSteps)
	if err != nil {
		return nil, fmt.Errorf("error compiling query graph: %w", err)
	}
	a.runner = runner
	return a, nil
}

// Query runs the full workflow for one request.
func (a *QueryAgent) Query(ctx context.Context, req models.QueryRequest) (*models.QueryResponse, error) {
	if req.TopK <= 0 {
		req.TopK = a.cfg.RetrievalTopK
	}

	state, err := a.runner.Invoke(ctx, queryState{request: req})
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		log.Error("query workflow failed: %v", err)
		return &models.QueryResponse{
			Answer:         "The query could not be processed.",
			Confidence:     0,
			ReasoningSteps: append(state.steps, fmt.Sprintf("workflow error: %v", err)),
			Metadata:       map[string]string{"status": "error"},
		}, nil
	}

	state.response.ReasoningSteps = state.steps
	return &state.response, nil
}

// QueryStream runs the retrieval stages of the workflow, then streams the
// generated answer through stream as it arrives from the model. The returned
// response carries sources and confidence but skips the structured analysis
// the non-streaming path produces.
func (a *QueryAgent) QueryStream(ctx context.Context, req models.QueryRequest, stream func(chunk []byte) error) (*models.QueryResponse, error) {
	if req.TopK <= 0 {
		req.TopK = a.cfg.RetrievalTopK
	}

	s := queryState{request: req}
	var err error
	for _, node := range []NodeFunc[queryState]{a.analyzeQuery, a.retrieve, a.analyzeRelevance} {
		if s, err = node(ctx, s); err != nil {
			return nil, err
		}
	}

	if len(s.relevant) == 0 {
		s, _ = a.noResults(ctx, s)
		if err := stream([]byte(s.response.Answer)); err != nil {
			return nil, err
		}
		s.response.ReasoningSteps = s.steps
		return &s.response, nil
	}

	contents := make([]string, len(s.relevant))
	for i, c := range s.relevant {
		contents[i] = c.Content
	}
	answer, err := a.model.AnalyzeContentStream(ctx, s.request.Query, s.detectedDomain, contents, stream)
	if err != nil {
		return nil, err
	}

	confidence := 0.2 * float64(len(s.relevant))
	if confidence > 1 {
		confidence = 1
	}
	s.steps = append(s.steps, "generated streamed answer")

	return &models.QueryResponse{
		Answer:         answer,
		Sources:        a.sources(ctx, s.relevant),
		Confidence:     confidence,
		ReasoningSteps: s.steps,
		Metadata:       map[string]string{"domain": s.detectedDomain},
	}, nil
}

// analyzeQuery detects the query's domain from its vocabulary. An explicit
// domain filter on the request wins.
func (a *QueryAgent) analyzeQuery(_ context.Context, s queryState) (queryState, error) {
	s.detectedDomain = detectQueryDomain(s.request.Query)
	if s.request.DomainFilter != "" {
		s.detectedDomain = s.request.DomainFilter
	}
	s.steps = append(s.steps, fmt.Sprintf("analyzed query, domain: %s", s.detectedDomain))
	return s, nil
}

func detectQueryDomain(query string) string {
	lower := strings.ToLower(query)
	checks := []struct {
		domain   string
		keywords []string
	}{
		{"healthcare", []string{"insurance", "coverage", "medical", "health", "premium", "deductible", "copay"}},
		{"legal", []string{"contract", "legal", "agreement", "terms", "clause", "liability"}},
		{"financial", []string{"financial", "investment", "portfolio", "budget", "revenue", "dividend"}},
	}
	for _, c := range checks {
		for _, kw := range c.keywords {
			if strings.Contains(lower, kw) {
				return c.domain
			}
		}
	}
	return "general"
}

func (a *QueryAgent) retrieve(ctx context.Context, s queryState) (queryState, error) {
	vectors, err := a.model.Embed(ctx, []string{s.request.Query})
	if err != nil {
		return s, fmt.Errorf("error embedding query: %w", err)
	}

	// Retrieval is scoped to the detected domain; "general" queries search
	// the whole corpus unless the request filtered explicitly.
	domain := s.detectedDomain
	if domain == "general" {
		domain = s.request.DomainFilter
	}

	s.retrieved, err = a.store.Search(ctx, vectors[0], s.request.TopK,
		domain, s.request.DocumentTypeFilter)
	if err != nil {
		return s, fmt.Errorf("error searching chunks: %w", err)
	}
	s.steps = append(s.steps, fmt.Sprintf("retrieved %d chunks", len(s.retrieved)))
	return s, nil
}

// analyzeRelevance keeps chunks within the distance threshold. When nothing
// passes, the nearest three are kept instead so vague queries still get an
// answer attempt. At most five chunks go to generation.
func (a *QueryAgent) analyzeRelevance(_ context.Context, s queryState) (queryState, error) {
	for _, c := range s.retrieved {
		if c.Distance != nil && *c.Distance < a.cfg.MaxDistance {
			s.relevant = append(s.relevant, c)
		}
	}
	if len(s.relevant) == 0 && len(s.retrieved) > 0 {
		n := 3
		if len(s.retrieved) < n {
			n = len(s.retrieved)
		}
		s.relevant = s.retrieved[:n]
	}
	if len(s.relevant) > 5 {
		s.relevant = s.relevant[:5]
	}
	s.steps = append(s.steps, fmt.Sprintf("selected %d relevant chunks", len(s.relevant)))
	return s, nil
}

func (a *QueryAgent) generate(ctx context.Context, s queryState) (queryState, error) {
	contents := make([]string, len(s.relevant))
	for i, c := range s.relevant {
		contents[i] = c.Content
	}

	analysis, err := a.model.AnalyzeContent(ctx, s.request.Query, s.detectedDomain, contents)
	if err != nil {
		return s, fmt.Errorf("error generating answer: %w", err)
	}
	s.analysis = analysis

	concepts := collectConcepts(s.relevant)
	insights := a.ont.ContextualInsights(s.detectedDomain, concepts)

	related := map[string]bool{}
	for _, c := range concepts {
		for _, r := range a.ont.Related(s.detectedDomain, c) {
			related[r] = true
		}
	}

	confidence := 0.2 * float64(len(s.relevant))
	if confidence > 1 {
		confidence = 1
	}
	if len(insights) > 0 {
		confidence += 0.1
	}
	if confidence > 1 {
		confidence = 1
	}

	s.response = models.QueryResponse{
		Answer:          composeAnswer(analysis, insights),
		Sources:         a.sources(ctx, s.relevant),
		Confidence:      confidence,
		RelatedConcepts: sortedKeys(related),
		Metadata: map[string]string{
			"domain":           s.detectedDomain,
			"chunks_used":      fmt.Sprintf("%d", len(s.relevant)),
			"model_confidence": fmt.Sprintf("%.2f", analysis.Confidence),
		},
	}
	s.steps = append(s.steps, "generated answer")
	return s, nil
}

// validate downgrades confidence for suspiciously short or error-shaped
// answers.
func (a *QueryAgent) validate(_ context.Context, s queryState) (queryState, error) {
	if len(s.response.Answer) < 50 {
		s.response.Confidence *= 0.5
	}
	if strings.Contains(strings.ToLower(s.response.Answer), "error") {
		s.response.Confidence *= 0.3
	}
	s.steps = append(s.steps, "validated answer")
	return s, nil
}

func (a *QueryAgent) noResults(_ context.Context, s queryState) (queryState, error) {
	s.response = models.QueryResponse{
		Answer:     "No relevant content was found for this query. Try rephrasing, or upload documents that cover the topic.",
		Confidence: 0,
		Metadata:   map[string]string{"domain": s.detectedDomain},
	}
	s.steps = append(s.steps, "no relevant chunks found")
	return s, nil
}

func composeAnswer(analysis *llm.AnalysisResult, ontInsights []string) string {
	var b strings.Builder
	b.WriteString(analysis.Summary)
	if len(analysis.KeyPoints) > 0 {
		b.WriteString("\n\nKey points:")
		for _, p := range analysis.KeyPoints {
			b.WriteString("\n- " + p)
		}
	}
	if len(ontInsights) > 0 {
		b.WriteString("\n\nOntological context:")
		for _, in := range ontInsights {
			b.WriteString("\n- " + in)
		}
	}
	return b.String()
}

// sources builds the deduplicated source list, resolving filenames from the
// registry. Unresolvable documents fall back to their id.
func (a *QueryAgent) sources(ctx context.Context, chunks []models.ScoredChunk) []models.Source {
	names := map[string]string{}
	var out []models.Source
	seen := map[string]bool{}

	for _, c := range chunks {
		name, ok := names[c.DocumentID]
		if !ok {
			if doc, err := a.docs.Get(ctx, c.DocumentID); err == nil {
				name = doc.Filename
			} else {
				log.Debug("source lookup failed for %s: %v", c.DocumentID, err)
				name = c.DocumentID
			}
			names[c.DocumentID] = name
		}

		key := fmt.Sprintf("%s|%d|%s", name, c.PageNumber, c.Type)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, models.Source{Filename: name, Page: c.PageNumber, ChunkType: c.Type})
	}
	return out
}

func collectConcepts(chunks []models.ScoredChunk) []string {
	seen := map[string]bool{}
	for _, c := range chunks {
		for _, concept := range c.Concepts {
			seen[concept] = true
		}
	}
	return sortedKeys(seen)
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
