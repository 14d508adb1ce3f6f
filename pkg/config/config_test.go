package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
llm:
  base_url: "http://localhost:11434"
  model: "mistral"
  embed_model: "nomic-embed-text:latest"
  max_tokens: 1000
  temperature: 0.5

database:
  url: "postgres://localhost:5432/test"
  vector_dim: 768

chunker:
  target_tokens: 400
  overlap_tokens: 40

enricher:
  max_doc_chars: 50000
  concurrency: 2
  rate_limit: 1.5

search:
  top_k: 5

ui:
  streaming: true
`

	require.NoError(t, os.WriteFile(configPath, []byte(configData), 0o644))

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "mistral", config.LLM.Model)
	assert.Equal(t, 1000, config.LLM.MaxTokens)
	assert.Equal(t, 0.5, config.LLM.Temperature)
	assert.Equal(t, 768, config.Database.VectorDim)
	assert.Equal(t, 400, config.Chunker.TargetTokens)
	assert.Equal(t, 40, config.Chunker.OverlapTokens)
	assert.Equal(t, 2, config.Enricher.Concurrency)
	assert.Equal(t, 5, config.Search.TopK)
	assert.True(t, config.UI.Streaming)
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	require.NoError(t, os.WriteFile(configPath, []byte("llm:\n  model: custom\n"), 0o644))

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "custom", config.LLM.Model)
	assert.Equal(t, "http://localhost:11434", config.LLM.BaseURL)
	assert.Equal(t, 500, config.Chunker.TargetTokens)
	assert.Equal(t, 50, config.Chunker.OverlapTokens)
	assert.Equal(t, "cl100k_base", config.Chunker.Encoding)
	assert.Equal(t, 100_000, config.Enricher.MaxDocChars)
	assert.Equal(t, 1536, config.Database.VectorDim)
	assert.Equal(t, 10, config.Search.TopK)
	assert.True(t, config.UI.Streaming)
}

func TestLoadConfigStreamingOff(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	require.NoError(t, os.WriteFile(configPath, []byte("ui:\n  streaming: false\n"), 0o644))

	config, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.False(t, config.UI.Streaming)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	require.NoError(t, os.WriteFile(configPath, []byte("llm: [not a map"), 0o644))

	_, err := LoadConfig(configPath)
	assert.Error(t, err)
}

func TestMergeWithEnv(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "http://envhost:11434")
	t.Setenv("DATABASE_URL", "postgres://envhost:5432/db")

	config, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "http://envhost:11434", config.LLM.BaseURL)
	assert.Equal(t, "postgres://envhost:5432/db", config.Database.URL)
}

func TestValidate(t *testing.T) {
	config, err := getDefaultConfig()
	require.NoError(t, err)
	assert.Empty(t, config.Validate())

	config.Chunker.OverlapTokens = config.Chunker.TargetTokens
	config.Search.TopK = 0
	config.Enricher.RateLimit = 0

	errs := config.Validate()
	require.Len(t, errs, 3)

	fields := make(map[string]bool)
	for _, e := range errs {
		fields[e.Field] = true
		assert.NotEmpty(t, e.Error())
	}
	assert.True(t, fields["chunker.overlap_tokens"])
	assert.True(t, fields["search.top_k"])
	assert.True(t, fields["enricher.rate_limit"])
}
