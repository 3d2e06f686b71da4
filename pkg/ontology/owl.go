package ontology

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// parseOWL reads an OWL file in RDF/XML form. Only owl:Class declarations
// with rdfs:subClassOf and rdfs:label children are consumed; everything else
// is skipped. Namespace prefixes are ignored and elements are matched by
// local name, which tolerates the prefix variations different OWL editors
// emit.
func parseOWL(r io.Reader) (map[string]*Concept, error) {
	decoder := xml.NewDecoder(r)
	concepts := map[string]*Concept{}

	var current *Concept
	depth := 0 // nesting depth inside the current owl:Class

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error parsing OWL: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if current != nil {
				depth++
				switch t.Name.Local {
				case "subClassOf":
					if res := attrLocal(t, "resource"); res != "" {
						current.Parents = append(current.Parents, fragment(res))
					}
				case "label":
					var label string
					if err := decoder.DecodeElement(&label, &t); err == nil {
						current.Label = strings.TrimSpace(label)
					}
					depth--
				}
				continue
			}
			if t.Name.Local == "Class" {
				about := attrLocal(t, "about")
				if about == "" {
					about = attrLocal(t, "ID")
				}
				if about != "" {
					current = &Concept{Name: fragment(about), IRI: about}
					depth = 0
				}
			}
		case xml.EndElement:
			if current == nil {
				continue
			}
			if depth > 0 {
				depth--
				continue
			}
			if t.Name.Local == "Class" {
				if current.Label == "" {
					current.Label = current.Name
				}
				concepts[current.Name] = current
				current = nil
			}
		}
	}

	return concepts, nil
}

func attrLocal(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// fragment extracts the concept name from an IRI, e.g.
// "http://example.org/healthcare#Premium" yields "Premium".
func fragment(iri string) string {
	if i := strings.LastIndexAny(iri, "#/"); i >= 0 {
		return iri[i+1:]
	}
	return iri
}

func classXML(base, name, label string, parents []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  <owl:Class rdf:about=\"%s#%s\">\n", base, name)
	fmt.Fprintf(&b, "    <rdfs:label>%s</rdfs:label>\n", label)
	for _, p := range parents {
		fmt.Fprintf(&b, "    <rdfs:subClassOf rdf:resource=\"%s#%s\"/>\n", base, p)
	}
	b.WriteString("  </owl:Class>\n")
	return b.String()
}

func owlDocument(base string, classes ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?>
<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#"
         xmlns:rdfs="http://www.w3.org/2000/01/rdf-schema#"
         xmlns:owl="http://www.w3.org/2002/07/owl#">
`)
	fmt.Fprintf(&b, "  <owl:Ontology rdf:about=\"%s\"/>\n", base)
	for _, c := range classes {
		b.WriteString(c)
	}
	b.WriteString("</rdf:RDF>\n")
	return b.String()
}

// baseOntologies holds the ontology files materialized on first start when
// the configured directory has no OWL files for these domains.
func baseOntologies() map[string]string {
	const (
		health = "http://docgraph.local/ontology/healthcare"
		legal  = "http://docgraph.local/ontology/legal"
		fin    = "http://docgraph.local/ontology/financial"
	)

	return map[string]string{
		"healthcare.owl": owlDocument(health,
			classXML(health, "InsuranceConcept", "Insurance Concept", nil),
			classXML(health, "Policy", "Insurance Policy", []string{"InsuranceConcept"}),
			classXML(health, "Coverage", "Coverage", []string{"Policy"}),
			classXML(health, "Exclusion", "Exclusion", []string{"Policy"}),
			classXML(health, "Benefit", "Benefit", []string{"Coverage"}),
			classXML(health, "CostSharing", "Cost Sharing", []string{"InsuranceConcept"}),
			classXML(health, "Premium", "Premium", []string{"CostSharing"}),
			classXML(health, "Deductible", "Deductible", []string{"CostSharing"}),
			classXML(health, "Copayment", "Copayment", []string{"CostSharing"}),
			classXML(health, "Claim", "Claim", []string{"InsuranceConcept"}),
			classXML(health, "Provider", "Healthcare Provider", []string{"InsuranceConcept"}),
			classXML(health, "Network", "Provider Network", []string{"Provider"}),
		),
		"legal.owl": owlDocument(legal,
			classXML(legal, "LegalConcept", "Legal Concept", nil),
			classXML(legal, "Agreement", "Agreement", []string{"LegalConcept"}),
			classXML(legal, "Clause", "Clause", []string{"Agreement"}),
			classXML(legal, "Party", "Contracting Party", []string{"LegalConcept"}),
			classXML(legal, "Obligation", "Obligation", []string{"LegalConcept"}),
			classXML(legal, "Liability", "Liability", []string{"Obligation"}),
			classXML(legal, "Indemnification", "Indemnification", []string{"Liability"}),
			classXML(legal, "Breach", "Breach", []string{"Obligation"}),
			classXML(legal, "Termination", "Termination", []string{"Agreement"}),
			classXML(legal, "Warranty", "Warranty", []string{"Agreement"}),
		),
		"financial.owl": owlDocument(fin,
			classXML(fin, "FinancialConcept", "Financial Concept", nil),
			classXML(fin, "Asset", "Asset", []string{"FinancialConcept"}),
			classXML(fin, "Investment", "Investment", []string{"Asset"}),
			classXML(fin, "Portfolio", "Portfolio", []string{"Investment"}),
			classXML(fin, "Equity", "Equity", []string{"Asset"}),
			classXML(fin, "Income", "Income", []string{"FinancialConcept"}),
			classXML(fin, "Revenue", "Revenue", []string{"Income"}),
			classXML(fin, "Dividend", "Dividend", []string{"Income"}),
			classXML(fin, "Interest", "Interest", []string{"Income"}),
			classXML(fin, "Statement", "Financial Statement", []string{"FinancialConcept"}),
		),
	}
}
