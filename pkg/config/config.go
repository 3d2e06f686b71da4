// Package config loads service configuration from YAML with environment
// overrides and sane defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Addr        string `yaml:"addr"`
	MaxFileSize int64  `yaml:"max_file_size"`
}

type LLMConfig struct {
	APIKey         string  `yaml:"api_key"`
	Model          string  `yaml:"model"`
	EmbeddingModel string  `yaml:"embedding_model"`
	MaxTokens      int     `yaml:"max_tokens"`
	Temperature    float64 `yaml:"temperature"`
	RateLimit      float64 `yaml:"rate_limit"`
}

type DatabaseConfig struct {
	URL       string `yaml:"url"`
	TableName string `yaml:"table_name"`
	VectorDim int    `yaml:"vector_dim"`
	BatchSize int    `yaml:"batch_size"`
}

type RegistryConfig struct {
	Path string `yaml:"path"`
}

type ChunkerConfig struct {
	ChunkSize      int `yaml:"chunk_size"`
	ChunkOverlap   int `yaml:"chunk_overlap"`
	MinChunkLength int `yaml:"min_chunk_length"`
	MaxChunkTokens int `yaml:"max_chunk_tokens"`
}

type OntologyConfig struct {
	BasePath string `yaml:"base_path"`
}

type AgentConfig struct {
	RetrievalTopK int     `yaml:"retrieval_top_k"`
	MaxSteps      int     `yaml:"max_steps"`
	MaxDistance   float64 `yaml:"max_distance"`
}

type IngestConfig struct {
	RateLimit float64 `yaml:"rate_limit"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	LLM      LLMConfig      `yaml:"llm"`
	Database DatabaseConfig `yaml:"database"`
	Registry RegistryConfig `yaml:"registry"`
	Chunker  ChunkerConfig  `yaml:"chunker"`
	Ontology OntologyConfig `yaml:"ontology"`
	Agent    AgentConfig    `yaml:"agent"`
	Ingest   IngestConfig   `yaml:"ingest"`
}

// Load reads the config file at path, falling back to default locations and
// built-in defaults when no file is found. Environment variables override
// file values.
func Load(path string) (*Config, error) {
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/docgraph/config.yaml"),
			"/etc/docgraph/config.yaml",
		}
		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	config := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.Server.Addr == "" {
		config.Server.Addr = ":5000"
	}
	if config.Server.MaxFileSize == 0 {
		config.Server.MaxFileSize = 50 << 20 // 50MB
	}

	if config.LLM.Model == "" {
		config.LLM.Model = "gemini-2.5-flash"
	}
	if config.LLM.EmbeddingModel == "" {
		config.LLM.EmbeddingModel = "text-embedding-004"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 8192
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.1
	}
	if config.LLM.RateLimit == 0 {
		config.LLM.RateLimit = 2.0
	}

	if config.Database.TableName == "" {
		config.Database.TableName = "chunks"
	}
	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = 768
	}
	if config.Database.BatchSize == 0 {
		config.Database.BatchSize = 100
	}

	if config.Registry.Path == "" {
		config.Registry.Path = "data/registry.db"
	}

	if config.Chunker.ChunkSize == 0 {
		config.Chunker.ChunkSize = 1000
	}
	if config.Chunker.ChunkOverlap == 0 {
		config.Chunker.ChunkOverlap = 200
	}
	if config.Chunker.MinChunkLength == 0 {
		config.Chunker.MinChunkLength = 50
	}
	if config.Chunker.MaxChunkTokens == 0 {
		config.Chunker.MaxChunkTokens = 512
	}

	if config.Ontology.BasePath == "" {
		config.Ontology.BasePath = "ontologies"
	}

	if config.Agent.RetrievalTopK == 0 {
		config.Agent.RetrievalTopK = 10
	}
	if config.Agent.MaxSteps == 0 {
		config.Agent.MaxSteps = 10
	}
	if config.Agent.MaxDistance == 0 {
		config.Agent.MaxDistance = 2.0
	}

	if config.Ingest.RateLimit == 0 {
		config.Ingest.RateLimit = 2.0
	}
}

func mergeWithEnv(config *Config) {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		config.LLM.APIKey = key
	}
	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		config.LLM.Model = model
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		config.Server.Addr = addr
	}
	if p := os.Getenv("REGISTRY_PATH"); p != "" {
		config.Registry.Path = p
	}
	if p := os.Getenv("ONTOLOGY_BASE_PATH"); p != "" {
		config.Ontology.BasePath = p
	}
	if dim := os.Getenv("EMBEDDING_DIMENSION"); dim != "" {
		if n, err := strconv.Atoi(dim); err == nil {
			config.Database.VectorDim = n
		}
	}
}
