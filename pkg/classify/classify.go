// Package classify assigns a domain and document type to extracted text,
// preferring the LLM and falling back to vocabulary heuristics when the
// model is unavailable.
package classify

import (
	"context"
	"strings"
	"unicode/utf8"

	"docgraph/internal/models"
	"docgraph/pkg/logx"
	"docgraph/pkg/ontology"
	"docgraph/pkg/textproc"
)

var log = logx.NewLogger("classify")

type classifierModel interface {
	Classify(ctx context.Context, filename, sample string) (*models.Classification, error)
}

type Classifier struct {
	model classifierModel
	ont   *ontology.Manager
}

func New(model classifierModel, ont *ontology.Manager) *Classifier {
	return &Classifier{model: model, ont: ont}
}

// Classify determines the document's domain and type from its leading text.
func (c *Classifier) Classify(ctx context.Context, filename, text string) *models.Classification {
	sample := text
	if len(sample) > 4000 {
		n := 4000
		for n > 0 && !utf8.RuneStart(sample[n]) {
			n--
		}
		sample = sample[:n]
	}

	result, err := c.model.Classify(ctx, filename, sample)
	if err != nil {
		log.Warn("model classification failed for %s, using heuristics: %v", filename, err)
		result = heuristic(sample)
	}

	result.OntologyMapping = c.ont.MapText(result.Domain, sample)
	return result
}

// heuristic classifies on domain vocabulary counts alone.
func heuristic(text string) *models.Classification {
	domain := textproc.DominantDomain(text)
	return &models.Classification{
		Domain:       domain,
		DocumentType: heuristicType(domain, text),
		Confidence:   0.5,
		KeyEntities:  textproc.Keywords(text, 5),
	}
}

func heuristicType(domain, text string) string {
	lower := strings.ToLower(text)
	switch domain {
	case "healthcare":
		if strings.Contains(lower, "policy") || strings.Contains(lower, "coverage") {
			return "insurance_policy"
		}
	case "legal":
		if strings.Contains(lower, "agreement") || strings.Contains(lower, "contract") {
			return "contract"
		}
	case "financial":
		if strings.Contains(lower, "report") || strings.Contains(lower, "statement") {
			return "financial_report"
		}
	}
	return "general"
}
