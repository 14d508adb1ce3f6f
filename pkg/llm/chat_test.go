package llm_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsage/docsage/internal/models"
	"github.com/docsage/docsage/pkg/llm"
)

func TestNewWithConfig(t *testing.T) {
	engine, err := llm.NewWithConfig(llm.ChatConfig{
		Model:       "testmodel",
		Temperature: 0.5,
		MaxTokens:   1000,
		BaseURL:     "http://localhost:1234",
	})
	assert.NoError(t, err)
	assert.NotNil(t, engine)
}

func TestNewWithConfigRejectsBadValues(t *testing.T) {
	_, err := llm.NewWithConfig(llm.ChatConfig{Temperature: 1.5})
	assert.Error(t, err)

	_, err = llm.NewWithConfig(llm.ChatConfig{MaxTokens: -1})
	assert.Error(t, err)
}

func TestBuildPrompt(t *testing.T) {
	engine, err := llm.NewWithConfig(llm.ChatConfig{
		Model:   "testmodel",
		BaseURL: "http://localhost:1234",
	})
	require.NoError(t, err)

	results := []models.SearchResult{
		{
			DocLabel:      "Doc A",
			DocFilename:   "lease.pdf",
			PageNumber:    3,
			SectionHeader: "3.2 Rent Review",
			Content:       "The rent shall be reviewed every five years.",
		},
	}

	prompt := engine.BuildPrompt("When is the rent reviewed?", results)

	assert.Contains(t, prompt, "[Result 1] Doc A (lease.pdf), Page 3, Section: 3.2 Rent Review")
	assert.Contains(t, prompt, "The rent shall be reviewed every five years.")
	assert.Contains(t, prompt, "Question: When is the rent reviewed?")
}

func TestBuildPromptNoResults(t *testing.T) {
	engine, err := llm.NewWithConfig(llm.ChatConfig{
		Model:   "testmodel",
		BaseURL: "http://localhost:1234",
	})
	require.NoError(t, err)

	prompt := engine.BuildPrompt("Anything?", nil)
	assert.Contains(t, prompt, "No relevant passages found.")
}

func TestNewEmbedderWithConfig(t *testing.T) {
	emb, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		BaseURL: "http://localhost:1234",
	})
	assert.NoError(t, err)
	assert.NotNil(t, emb)

	// Empty input short-circuits without a network call.
	vectors, err := emb.CreateEmbedding(context.Background(), nil)
	assert.NoError(t, err)
	assert.Empty(t, vectors)
}
