// Package ontology loads domain ontologies from OWL files and answers
// concept-mapping and semantic-relatedness questions about document text.
package ontology

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"docgraph/pkg/logx"
)

var log = logx.NewLogger("ontology")

// Concept is a single class in a domain ontology.
type Concept struct {
	Name    string   `json:"name"`
	IRI     string   `json:"iri"`
	Label   string   `json:"label"`
	Parents []string `json:"parents,omitempty"`
}

// Ontology holds the class hierarchy for one domain.
type Ontology struct {
	Domain   string              `json:"domain"`
	Concepts map[string]*Concept `json:"concepts"`
}

// Info is the summary returned by the ontologies endpoint.
type Info struct {
	Domain       string   `json:"domain"`
	ConceptCount int      `json:"concept_count"`
	Concepts     []string `json:"concepts"`
}

// Manager owns the loaded ontologies and the term-to-concept mapping rules.
type Manager struct {
	ontologies map[string]*Ontology
}

// termMappings maps lowercase document vocabulary onto ontology concepts,
// keyed by domain.
var termMappings = map[string]map[string]string{
	"healthcare": {
		"policy": "Policy", "policies": "Policy",
		"coverage": "Coverage", "covered": "Coverage",
		"exclusion": "Exclusion", "excluded": "Exclusion", "exclusions": "Exclusion",
		"benefit": "Benefit", "benefits": "Benefit",
		"premium": "Premium", "premiums": "Premium",
		"deductible": "Deductible", "deductibles": "Deductible",
		"copay": "Copayment", "copayment": "Copayment", "co-pay": "Copayment",
		"claim": "Claim", "claims": "Claim",
		"provider": "Provider", "providers": "Provider",
		"network": "Network", "in-network": "Network", "out-of-network": "Network",
	},
	"legal": {
		"agreement": "Agreement", "contract": "Agreement",
		"clause": "Clause", "clauses": "Clause", "section": "Clause",
		"party": "Party", "parties": "Party",
		"obligation": "Obligation", "obligations": "Obligation",
		"liability": "Liability", "liable": "Liability",
		"indemnify": "Indemnification", "indemnification": "Indemnification",
		"breach": "Breach",
		"termination": "Termination", "terminate": "Termination",
		"warranty": "Warranty", "warranties": "Warranty",
	},
	"financial": {
		"asset": "Asset", "assets": "Asset",
		"investment": "Investment", "investments": "Investment",
		"portfolio": "Portfolio", "portfolios": "Portfolio",
		"equity": "Equity", "shares": "Equity", "stock": "Equity",
		"revenue": "Revenue", "revenues": "Revenue",
		"dividend": "Dividend", "dividends": "Dividend",
		"interest": "Interest",
		"statement": "Statement", "statements": "Statement",
	},
}

// NewManager loads all OWL files under basePath. When the directory is empty
// or missing, the built-in base ontologies are written there first.
func NewManager(basePath string) (*Manager, error) {
	if err := ensureBaseOntologies(basePath); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(basePath)
	if err != nil {
		return nil, logx.Wrap(err, "error reading ontology directory")
	}

	m := &Manager{ontologies: map[string]*Ontology{}}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".owl") {
			continue
		}
		domain := strings.TrimSuffix(entry.Name(), ".owl")
		path := filepath.Join(basePath, entry.Name())

		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("error opening ontology %s: %w", path, err)
		}
		concepts, err := parseOWL(f)
		f.Close()
		if err != nil {
			return nil, logx.Errorf("error loading ontology %s: %w", path, err)
		}

		m.ontologies[domain] = &Ontology{Domain: domain, Concepts: concepts}
		log.Info("loaded ontology %s with %d concepts", domain, len(concepts))
	}

	return m, nil
}

func ensureBaseOntologies(basePath string) error {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return fmt.Errorf("error creating ontology directory: %w", err)
	}
	for name, content := range baseOntologies() {
		path := filepath.Join(basePath, name)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("error writing base ontology %s: %w", name, err)
		}
		log.Info("wrote base ontology %s", path)
	}
	return nil
}

// Domains lists the loaded ontology domains, sorted.
func (m *Manager) Domains() []string {
	out := make([]string, 0, len(m.ontologies))
	for d := range m.ontologies {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Get returns the ontology for domain, or nil when none is loaded.
func (m *Manager) Get(domain string) *Ontology {
	return m.ontologies[domain]
}

// List summarizes all loaded ontologies.
func (m *Manager) List() []Info {
	infos := make([]Info, 0, len(m.ontologies))
	for _, domain := range m.Domains() {
		ont := m.ontologies[domain]
		names := make([]string, 0, len(ont.Concepts))
		for name := range ont.Concepts {
			names = append(names, name)
		}
		sort.Strings(names)
		infos = append(infos, Info{
			Domain:       domain,
			ConceptCount: len(names),
			Concepts:     names,
		})
	}
	return infos
}

// MapText maps the vocabulary in text onto ontology concepts for the given
// domain. The result is sorted and deduplicated.
func (m *Manager) MapText(domain, text string) []string {
	rules, ok := termMappings[domain]
	if !ok {
		return nil
	}

	lower := strings.ToLower(text)
	seen := map[string]bool{}
	for term, concept := range rules {
		if seen[concept] {
			continue
		}
		if strings.Contains(lower, term) {
			seen[concept] = true
		}
	}

	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// SemanticDistance scores the relatedness of two concepts within a domain.
// Identical concepts score 0, direct parent-child pairs 0.2, siblings
// sharing a parent 0.3, and anything else 0.8. Unknown concepts score 1.
func (m *Manager) SemanticDistance(domain, a, b string) float64 {
	if a == b {
		return 0.0
	}
	ont := m.ontologies[domain]
	if ont == nil {
		return 1.0
	}
	ca, cb := ont.Concepts[a], ont.Concepts[b]
	if ca == nil || cb == nil {
		return 1.0
	}

	if contains(ca.Parents, b) || contains(cb.Parents, a) {
		return 0.2
	}
	for _, p := range ca.Parents {
		if contains(cb.Parents, p) {
			return 0.3
		}
	}
	return 0.8
}

// Related returns concepts near the given one in the hierarchy: parents,
// children, and siblings.
func (m *Manager) Related(domain, concept string) []string {
	ont := m.ontologies[domain]
	if ont == nil {
		return nil
	}
	c := ont.Concepts[concept]
	if c == nil {
		return nil
	}

	seen := map[string]bool{}
	for _, p := range c.Parents {
		seen[p] = true
	}
	for name, other := range ont.Concepts {
		if name == concept {
			continue
		}
		if contains(other.Parents, concept) {
			seen[name] = true
			continue
		}
		for _, p := range other.Parents {
			if contains(c.Parents, p) {
				seen[name] = true
				break
			}
		}
	}

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ContextualInsights produces short ontology-grounded observations about a
// set of concepts found in retrieved content.
func (m *Manager) ContextualInsights(domain string, concepts []string) []string {
	ont := m.ontologies[domain]
	if ont == nil || len(concepts) == 0 {
		return nil
	}

	var insights []string
	for _, name := range concepts {
		c := ont.Concepts[name]
		if c == nil {
			continue
		}
		if len(c.Parents) > 0 {
			insights = append(insights, fmt.Sprintf(
				"%s is a kind of %s in the %s domain",
				c.Label, strings.Join(c.Parents, ", "), domain))
		}
	}

	for i := 0; i < len(concepts); i++ {
		for j := i + 1; j < len(concepts); j++ {
			d := m.SemanticDistance(domain, concepts[i], concepts[j])
			if d <= 0.3 {
				insights = append(insights, fmt.Sprintf(
					"%s and %s are closely related concepts (distance %.1f)",
					concepts[i], concepts[j], d))
			}
		}
	}
	return insights
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
