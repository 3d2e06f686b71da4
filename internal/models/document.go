package models

import "time"

// Document is the registry view of an ingested document.
type Document struct {
	ID           string    `json:"document_id"`
	Filename     string    `json:"filename"`
	SourceURL    string    `json:"source_url,omitempty"`
	Domain       string    `json:"domain"`
	DocumentType string    `json:"document_type"`
	ChunkCount   int       `json:"chunk_count"`
	PageCount    int       `json:"page_count,omitempty"`
	Confidence   float64   `json:"classification_confidence"`
	KeyEntities  []string  `json:"key_entities,omitempty"`
	UploadedAt   time.Time `json:"upload_date"`
}

// Chunk is a semantically meaningful slice of a document, ready for
// embedding and retrieval.
type Chunk struct {
	ID         string            `json:"id"`
	DocumentID string            `json:"document_id"`
	Content    string            `json:"content"`
	Type       string            `json:"chunk_type"`
	PageNumber int               `json:"page_number"`
	Position   int               `json:"position"`
	Concepts   []string          `json:"ontology_concepts,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Embedding  []float32         `json:"-"`
}

// Classification is the result of document classification.
type Classification struct {
	Domain          string            `json:"domain"`
	DocumentType    string            `json:"document_type"`
	Confidence      float64           `json:"confidence"`
	KeyEntities     []string          `json:"key_entities"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	OntologyMapping []string          `json:"ontology_mapping,omitempty"`
}

// ScoredChunk is a retrieval hit: a stored chunk plus its cosine distance
// to the query vector. Lower is closer; nil means the store did not
// report a distance.
type ScoredChunk struct {
	Chunk
	Domain       string   `json:"domain"`
	DocumentType string   `json:"document_type"`
	Distance     *float64 `json:"distance,omitempty"`
}

// Source identifies where part of an answer came from.
type Source struct {
	Filename  string `json:"filename"`
	Page      int    `json:"page"`
	ChunkType string `json:"chunk_type"`
}
