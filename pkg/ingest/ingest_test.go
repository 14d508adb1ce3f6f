package ingest_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/docsage/docsage/internal/models"
	"github.com/docsage/docsage/pkg/chunker"
	"github.com/docsage/docsage/pkg/enricher"
	"github.com/docsage/docsage/pkg/ingest"
	"github.com/docsage/docsage/pkg/store"
)

type wordTokenizer struct{}

func (wordTokenizer) CountTokens(text string) int {
	return len(strings.Fields(text))
}

type fakeModel struct {
	err error
}

func (m *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{
			{Content: `{"context": "Situating context.", "section": "Clause 2"}`},
		},
	}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return "", m.err
}

type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 1}
	}
	return out, nil
}

func newPipeline(model llms.Model, embedder *fakeEmbedder, s *store.MemoryStore) *ingest.Pipeline {
	c := chunker.NewWithConfig(chunker.ChunkerConfig{TargetTokens: 20, OverlapTokens: 5}, wordTokenizer{})
	e := enricher.NewWithConfig(enricher.EnricherConfig{RateLimit: 1000}, model)
	return ingest.New(c, e, embedder, s)
}

func uploadDoc(t *testing.T, s *store.MemoryStore, text string) *models.Document {
	t.Helper()
	ctx := context.Background()
	conv, err := s.CreateConversation(ctx, "review")
	require.NoError(t, err)
	doc, err := s.CreateDocument(ctx, conv.ID, "lease.pdf", text, 2)
	require.NoError(t, err)
	return doc
}

const leaseText = "--- Page 1 ---\nThis lease is made between the landlord and the tenant.\n\n--- Page 2 ---\nThe rent shall be paid quarterly in advance."

func TestIngestFullPipeline(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	embedder := &fakeEmbedder{}
	p := newPipeline(&fakeModel{}, embedder, s)

	doc := uploadDoc(t, s, leaseText)

	n, err := p.Ingest(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, embedder.calls, "all chunk texts go out in one batch")

	chunks, err := s.ChunksInScope(ctx, []string{doc.ID})
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.ChunkIndex)
		assert.Equal(t, doc.ID, chunk.DocumentID)
		assert.Equal(t, "Situating context.", chunk.ContextText)
		assert.Equal(t, "Clause 2", chunk.SectionHeader)
		assert.NotNil(t, chunk.Embedding)
		assert.NotEmpty(t, chunk.ID)
	}
	assert.Equal(t, 1, chunks[0].PageNumber)
	assert.Equal(t, 2, chunks[1].PageNumber)
}

func TestIngestEmptyText(t *testing.T) {
	s := store.NewMemoryStore()
	embedder := &fakeEmbedder{}
	p := newPipeline(&fakeModel{}, embedder, s)

	doc := uploadDoc(t, s, "   ")

	n, err := p.Ingest(context.Background(), doc)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, embedder.calls)
}

func TestIngestEnrichmentFailureStillIndexes(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	p := newPipeline(&fakeModel{err: errors.New("model down")}, &fakeEmbedder{}, s)

	doc := uploadDoc(t, s, leaseText)

	n, err := p.Ingest(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	chunks, err := s.ChunksInScope(ctx, []string{doc.ID})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	for _, chunk := range chunks {
		assert.Empty(t, chunk.ContextText)
		assert.NotNil(t, chunk.Embedding, "raw content is embedded when enrichment fails")
	}
}

func TestIngestEmbeddingFailureAbortsDocument(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	p := newPipeline(&fakeModel{}, &fakeEmbedder{err: errors.New("embedding service down")}, s)

	doc := uploadDoc(t, s, leaseText)

	_, err := p.Ingest(ctx, doc)
	require.Error(t, err)

	// Nothing was written: the document stays unsearchable, not half-indexed.
	chunks, err := s.ChunksInScope(ctx, []string{doc.ID})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestEmbedInput(t *testing.T) {
	assert.Equal(t, "ctx\n\nbody", ingest.EmbedInput("ctx", "body"))
	assert.Equal(t, "body", ingest.EmbedInput("", "body"))
}
