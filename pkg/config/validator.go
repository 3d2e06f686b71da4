package config

import "fmt"

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration and returns all problems found.
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	if c.LLM.APIKey == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.api_key",
			Message: "API key is required (set GEMINI_API_KEY)",
		})
	}
	if c.Database.URL == "" {
		errors = append(errors, ValidationError{
			Field:   "database.url",
			Message: "database URL is required (set DATABASE_URL)",
		})
	}
	if c.Database.VectorDim <= 0 {
		errors = append(errors, ValidationError{
			Field:   "database.vector_dim",
			Message: "vector dimension must be positive",
		})
	}
	if c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
		errors = append(errors, ValidationError{
			Field:   "chunker.chunk_overlap",
			Message: "overlap must be smaller than chunk size",
		})
	}
	if c.Agent.RetrievalTopK <= 0 {
		errors = append(errors, ValidationError{
			Field:   "agent.retrieval_top_k",
			Message: "retrieval_top_k must be positive",
		})
	}
	if c.Server.MaxFileSize <= 0 {
		errors = append(errors, ValidationError{
			Field:   "server.max_file_size",
			Message: "max file size must be positive",
		})
	}

	return errors
}
