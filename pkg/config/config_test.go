package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":8080\"\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, int64(50<<20), cfg.Server.MaxFileSize)
	assert.Equal(t, "gemini-2.5-flash", cfg.LLM.Model)
	assert.Equal(t, 1000, cfg.Chunker.ChunkSize)
	assert.Equal(t, 200, cfg.Chunker.ChunkOverlap)
	assert.Equal(t, 768, cfg.Database.VectorDim)
	assert.Equal(t, 10, cfg.Agent.RetrievalTopK)
	assert.Equal(t, 2.0, cfg.Agent.MaxDistance)
}

func TestLoadParsesFullFile(t *testing.T) {
	yaml := `
server:
  addr: ":9000"
  max_file_size: 1048576
llm:
  api_key: test-key
  model: gemini-2.5-pro
  temperature: 0.3
database:
  url: postgres://localhost/docgraph
  table_name: doc_chunks
  vector_dim: 384
chunker:
  chunk_size: 500
  chunk_overlap: 100
agent:
  retrieval_top_k: 5
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, int64(1048576), cfg.Server.MaxFileSize)
	assert.Equal(t, "test-key", cfg.LLM.APIKey)
	assert.Equal(t, "gemini-2.5-pro", cfg.LLM.Model)
	assert.Equal(t, 0.3, cfg.LLM.Temperature)
	assert.Equal(t, "postgres://localhost/docgraph", cfg.Database.URL)
	assert.Equal(t, "doc_chunks", cfg.Database.TableName)
	assert.Equal(t, 384, cfg.Database.VectorDim)
	assert.Equal(t, 500, cfg.Chunker.ChunkSize)
	assert.Equal(t, 5, cfg.Agent.RetrievalTopK)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("LISTEN_ADDR", ":7777")
	t.Setenv("EMBEDDING_DIMENSION", "1536")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  api_key: file-key\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.LLM.APIKey)
	assert.Equal(t, "postgres://env/db", cfg.Database.URL)
	assert.Equal(t, ":7777", cfg.Server.Addr)
	assert.Equal(t, 1536, cfg.Database.VectorDim)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing api key",
			mutate:  func(c *Config) { c.LLM.APIKey = "" },
			wantErr: "llm.api_key",
		},
		{
			name:    "missing database url",
			mutate:  func(c *Config) { c.Database.URL = "" },
			wantErr: "database.url",
		},
		{
			name:    "overlap exceeds chunk size",
			mutate:  func(c *Config) { c.Chunker.ChunkOverlap = c.Chunker.ChunkSize },
			wantErr: "chunker.chunk_overlap",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			applyDefaults(cfg)
			cfg.LLM.APIKey = "key"
			cfg.Database.URL = "postgres://localhost/db"
			tt.mutate(cfg)

			errs := cfg.Validate()
			require.Len(t, errs, 1)
			assert.Equal(t, tt.wantErr, errs[0].Field)
			assert.NotEmpty(t, errs[0].Error())
		})
	}
}

func TestValidateOK(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.LLM.APIKey = "key"
	cfg.Database.URL = "postgres://localhost/db"

	assert.Empty(t, cfg.Validate())
}
