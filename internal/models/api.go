package models

// QueryRequest asks the RAG agent a natural-language question.
type QueryRequest struct {
	Query              string `json:"query"`
	DomainFilter       string `json:"domain_filter,omitempty"`
	DocumentTypeFilter string `json:"document_type_filter,omitempty"`
	TopK               int    `json:"top_k,omitempty"`
}

// QueryResponse is the RAG agent's answer with provenance.
type QueryResponse struct {
	Answer          string            `json:"answer"`
	Sources         []Source          `json:"sources"`
	Confidence      float64           `json:"confidence"`
	ReasoningSteps  []string          `json:"reasoning_steps"`
	RelatedConcepts []string          `json:"related_concepts"`
	Metadata        map[string]string `json:"metadata"`
}

// ComparisonRequest asks for a cross-document comparison.
type ComparisonRequest struct {
	DocumentIDs    []string `json:"document_ids"`
	ComparisonType string   `json:"comparison_type,omitempty"`
	FocusAreas     []string `json:"focus_areas,omitempty"`
}

// ComparisonResponse is the comparative agent's result.
type ComparisonResponse struct {
	ComparisonID   string            `json:"comparison_id"`
	DocumentIDs    []string          `json:"document_ids"`
	Similarities   []string          `json:"similarities"`
	Differences    []string          `json:"differences"`
	Insights       []string          `json:"insights"`
	Matrix         map[string]any    `json:"comparison_matrix"`
	Confidence     float64           `json:"confidence"`
	ReasoningSteps []string          `json:"reasoning_steps"`
	Metadata       map[string]string `json:"metadata"`
}

// UploadResponse reports the outcome of a document ingestion.
type UploadResponse struct {
	DocumentID     string         `json:"document_id"`
	Filename       string         `json:"filename"`
	Classification Classification `json:"classification"`
	ChunksCreated  int            `json:"chunks_created"`
	Status         string         `json:"status"`
	Message        string         `json:"message"`
}
