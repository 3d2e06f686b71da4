package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"docgraph/internal/models"
	"docgraph/pkg/config"
	"docgraph/pkg/llm"
	"docgraph/pkg/ontology"
)

// compareModel is the slice of the LLM client the comparison agent needs.
type compareModel interface {
	CompareDocuments(ctx context.Context, comparisonType string, focusAreas []string, docs map[string]string) (*llm.ComparisonResult, error)
}

// chunkLoader loads a document's chunks from the vector store.
type chunkLoader interface {
	DocumentChunks(ctx context.Context, documentID string) ([]models.Chunk, error)
}

type loadedDoc struct {
	doc      models.Document
	chunks   []models.Chunk
	sections []models.Chunk
	concepts map[string]bool
}

type compareState struct {
	request models.ComparisonRequest

	docs     []loadedDoc
	analysis *llm.ComparisonResult
	matrix   map[string]any
	insights []string
	response models.ComparisonResponse
	steps    []string
}

// ComparisonAgent compares two or more ingested documents through a fixed
// workflow: load documents, extract the sections matching the comparison
// focus, run the model analysis, build a pairwise matrix, collect insights,
// and synthesize the final response.
type ComparisonAgent struct {
	model  compareModel
	store  chunkLoader
	docs   documentLookup
	ont    *ontology.Manager
	cfg    config.AgentConfig
	runner *Runner[compareState]
}

func NewComparisonAgent(model compareModel, store chunkLoader, docs documentLookup, ont *ontology.Manager, cfg config.AgentConfig) (*ComparisonAgent, error) {
	a := &ComparisonAgent{model: model, store: store, docs: docs, ont: ont, cfg: cfg}

	g := NewGraph[compareState]()
	g.AddNode("load_documents", a.loadDocuments)
	g.AddNode("extract_key_sections", a.extractKeySections)
	g.AddNode("perform_analysis", a.performAnalysis)
	g.AddNode("create_comparison_matrix", a.createMatrix)
	g.AddNode("generate_insights", a.generateInsights)
	g.AddNode("synthesize_results", a.synthesize)
	g.AddNode("insufficient_docs", a.insufficientDocs)

	g.SetEntryPoint("load_documents")
	g.AddConditionalEdge("load_documents", func(s compareState) string {
		if len(s.docs) < 2 {
			return "insufficient_docs"
		}
		return "extract_key_sections"
	}, "insufficient_docs", "extract_key_sections")
	g.AddEdge("extract_key_sections", "perform_analysis")
	g.AddEdge("perform_analysis", "create_comparison_matrix")
	g.AddEdge("create_comparison_matrix", "generate_insights")
	g.AddEdge("generate_insights", "synthesize_results")
	g.AddEdge("synthesize_results", END)
	g.AddEdge("insufficient_docs", END)

	runner, err := g.Compile(cfg.MaxSteps)
	if err != nil {
		return nil, fmt.Errorf("error compiling comparison graph: %w", err)
	}
	a.runner = runner
	return a, nil
}

// Compare runs the full comparison workflow.
func (a *ComparisonAgent) Compare(ctx context.Context, req models.ComparisonRequest) (*models.ComparisonResponse, error) {
	if req.ComparisonType == "" {
		req.ComparisonType = "general"
	}

	state, err := a.runner.Invoke(ctx, compareState{request: req})
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		log.Error("comparison workflow failed: %v", err)
		return &models.ComparisonResponse{
			ComparisonID:   uuid.NewString(),
			DocumentIDs:    req.DocumentIDs,
			Confidence:     0,
			ReasoningSteps: append(state.steps, fmt.Sprintf("workflow error: %v", err)),
			Metadata:       map[string]string{"status": "error"},
		}, nil
	}

	state.response.ComparisonID = uuid.NewString()
	state.response.DocumentIDs = req.DocumentIDs
	state.response.ReasoningSteps = state.steps
	return &state.response, nil
}

// loadDocuments resolves each requested id and pulls its chunks. Unknown
// ids are skipped; the conditional edge handles ending up with too few.
func (a *ComparisonAgent) loadDocuments(ctx context.Context, s compareState) (compareState, error) {
	for _, id := range s.request.DocumentIDs {
		doc, err := a.docs.Get(ctx, id)
		if err != nil {
			log.Warn("skipping unknown document %s: %v", id, err)
			continue
		}
		chunks, err := a.store.DocumentChunks(ctx, id)
		if err != nil {
			return s, fmt.Errorf("error loading chunks for %s: %w", id, err)
		}

		concepts := map[string]bool{}
		for _, c := range chunks {
			for _, concept := range c.Concepts {
				concepts[concept] = true
			}
		}
		s.docs = append(s.docs, loadedDoc{doc: *doc, chunks: chunks, concepts: concepts})
	}
	s.steps = append(s.steps, fmt.Sprintf("loaded %d of %d documents", len(s.docs), len(s.request.DocumentIDs)))
	return s, nil
}

// extractKeySections narrows each document to the chunks matching the focus
// areas and comparison type. When nothing matches, all chunks stay in play.
func (a *ComparisonAgent) extractKeySections(_ context.Context, s compareState) (compareState, error) {
	keywords := append([]string{}, s.request.FocusAreas...)
	switch s.request.ComparisonType {
	case "coverage":
		keywords = append(keywords, "coverage", "benefit", "exclusion", "covered")
	case "terms":
		keywords = append(keywords, "term", "condition", "obligation", "clause")
	case "structure":
		keywords = append(keywords, "section", "article", "part")
	}

	for i := range s.docs {
		s.docs[i].sections = filterChunks(s.docs[i].chunks, keywords)
	}
	s.steps = append(s.steps, fmt.Sprintf("extracted key sections for %d documents", len(s.docs)))
	return s, nil
}

func filterChunks(chunks []models.Chunk, keywords []string) []models.Chunk {
	if len(keywords) == 0 {
		return chunks
	}
	var out []models.Chunk
	for _, c := range chunks {
		lower := strings.ToLower(c.Content)
		for _, kw := range keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				out = append(out, c)
				break
			}
		}
	}
	if len(out) == 0 {
		return chunks
	}
	return out
}

func (a *ComparisonAgent) performAnalysis(ctx context.Context, s compareState) (compareState, error) {
	contents := map[string]string{}
	for _, d := range s.docs {
		var b strings.Builder
		for _, c := range d.sections {
			b.WriteString(c.Content)
			b.WriteString("\n")
			if b.Len() > 6000 {
				break
			}
		}
		contents[d.doc.Filename] = b.String()
	}

	analysis, err := a.model.CompareDocuments(ctx, s.request.ComparisonType, s.request.FocusAreas, contents)
	if err != nil {
		return s, fmt.Errorf("error comparing documents: %w", err)
	}
	s.analysis = analysis
	s.steps = append(s.steps, "performed model analysis")
	return s, nil
}

// createMatrix builds a pairwise concept-overlap matrix. The overlap score
// is the Jaccard index over each pair's ontology concepts.
func (a *ComparisonAgent) createMatrix(_ context.Context, s compareState) (compareState, error) {
	s.matrix = map[string]any{}
	for i := 0; i < len(s.docs); i++ {
		for j := i + 1; j < len(s.docs); j++ {
			da, db := s.docs[i], s.docs[j]
			shared, overlap := conceptOverlap(da.concepts, db.concepts)
			key := fmt.Sprintf("%s vs %s", da.doc.Filename, db.doc.Filename)
			s.matrix[key] = map[string]any{
				"shared_concepts": shared,
				"concept_overlap": overlap,
				"same_domain":     da.doc.Domain == db.doc.Domain,
			}
		}
	}
	s.steps = append(s.steps, fmt.Sprintf("built comparison matrix with %d pairs", len(s.matrix)))
	return s, nil
}

func conceptOverlap(a, b map[string]bool) ([]string, float64) {
	var shared []string
	union := len(b)
	for c := range a {
		if b[c] {
			shared = append(shared, c)
		} else {
			union++
		}
	}
	sort.Strings(shared)
	if union == 0 {
		return shared, 0
	}
	return shared, float64(len(shared)) / float64(union)
}

// generateInsights merges the model's insights with ontology context for
// the concepts the documents share, deduplicated.
func (a *ComparisonAgent) generateInsights(_ context.Context, s compareState) (compareState, error) {
	seen := map[string]bool{}
	add := func(insight string) {
		if insight != "" && !seen[insight] {
			seen[insight] = true
			s.insights = append(s.insights, insight)
		}
	}

	for _, in := range s.analysis.KeyInsights {
		add(in)
	}

	sharedAll := map[string]bool{}
	domain := s.docs[0].doc.Domain
	sameDomain := true
	for _, d := range s.docs[1:] {
		if d.doc.Domain != domain {
			sameDomain = false
		}
	}
	if sameDomain {
		for c := range s.docs[0].concepts {
			inAll := true
			for _, d := range s.docs[1:] {
				if !d.concepts[c] {
					inAll = false
					break
				}
			}
			if inAll {
				sharedAll[c] = true
			}
		}
		for _, in := range a.ont.ContextualInsights(domain, sortedKeys(sharedAll)) {
			add(in)
		}
	}

	s.steps = append(s.steps, fmt.Sprintf("collected %d insights", len(s.insights)))
	return s, nil
}

func (a *ComparisonAgent) synthesize(_ context.Context, s compareState) (compareState, error) {
	confidence := s.analysis.Confidence
	var overlapSum float64
	var pairs int
	for _, v := range s.matrix {
		if m, ok := v.(map[string]any); ok {
			if o, ok := m["concept_overlap"].(float64); ok {
				overlapSum += o
				pairs++
			}
		}
	}
	if pairs > 0 {
		confidence = (confidence + overlapSum/float64(pairs)) / 2
	}

	s.response = models.ComparisonResponse{
		Similarities: s.analysis.Similarities,
		Differences:  s.analysis.Differences,
		Insights:     s.insights,
		Matrix:       s.matrix,
		Confidence:   confidence,
		Metadata: map[string]string{
			"comparison_type":  s.request.ComparisonType,
			"documents_loaded": fmt.Sprintf("%d", len(s.docs)),
			"overall_analysis": s.analysis.OverallAnalysis,
		},
	}
	s.steps = append(s.steps, "synthesized comparison")
	return s, nil
}

func (a *ComparisonAgent) insufficientDocs(_ context.Context, s compareState) (compareState, error) {
	s.response = models.ComparisonResponse{
		Insights:   []string{"At least two known documents are required for comparison."},
		Confidence: 0,
		Metadata: map[string]string{
			"status":           "insufficient_docs",
			"documents_loaded": fmt.Sprintf("%d", len(s.docs)),
		},
	}
	s.steps = append(s.steps, "insufficient documents")
	return s, nil
}
