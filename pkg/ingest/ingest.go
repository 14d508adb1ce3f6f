package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/docsage/docsage/internal/models"
	"github.com/docsage/docsage/internal/types"
	"github.com/docsage/docsage/pkg/chunker"
	"github.com/docsage/docsage/pkg/enricher"
)

// Pipeline runs the per-document ingestion sequence:
// chunk -> enrich -> embed -> write. Documents are independent, so callers
// may run one Ingest per document concurrently; all shared state lives in
// the store, whose per-document writes are atomic.
type Pipeline struct {
	chunker  chunker.Chunker
	enricher enricher.Enricher
	embedder types.Embedder
	store    types.ChunkStore
}

func New(c chunker.Chunker, e enricher.Enricher, embedder types.Embedder, store types.ChunkStore) *Pipeline {
	return &Pipeline{
		chunker:  c,
		enricher: e,
		embedder: embedder,
		store:    store,
	}
}

// Ingest indexes one document's extracted text and returns the number of
// chunks written. Enrichment failures degrade per chunk; an embedding
// failure aborts indexing for this document and leaves the store untouched,
// so the document stays visible but unsearchable until retried.
func (p *Pipeline) Ingest(ctx context.Context, doc *models.Document) (int, error) {
	if strings.TrimSpace(doc.ExtractedText) == "" {
		return 0, nil
	}

	chunks := p.chunker.Chunk(doc.ExtractedText)
	if len(chunks) == 0 {
		return 0, nil
	}

	metadata := p.enricher.Enrich(ctx, doc.ExtractedText, chunks)

	// One combined record per chunk, populated step by step, so the
	// chunk/context/embedding pairing can never drift out of alignment.
	records := make([]models.IndexedChunk, len(chunks))
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		records[i] = models.IndexedChunk{
			ID:            strings.ReplaceAll(uuid.NewString(), "-", "")[:16],
			DocumentID:    doc.ID,
			ChunkIndex:    i,
			Content:       chunk.Content,
			ContextText:   metadata[i].Context,
			PageNumber:    chunk.PageNumber,
			SectionHeader: chunk.SectionHeader,
			TokenCount:    chunk.TokenCount,
		}
		if metadata[i].Section != "" {
			records[i].SectionHeader = metadata[i].Section
		}
		texts[i] = EmbedInput(metadata[i].Context, chunk.Content)
	}

	embeddings, err := p.embedder.CreateEmbedding(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to embed document %s: %w", doc.ID, err)
	}
	for i := range records {
		records[i].Embedding = embeddings[i]
	}

	if err := p.store.WriteChunks(ctx, doc.ID, records); err != nil {
		return 0, fmt.Errorf("failed to store chunks for document %s: %w", doc.ID, err)
	}

	return len(records), nil
}

// EmbedInput is the text actually embedded for a chunk: the situating
// context prepended to the content, or the bare content when enrichment
// produced nothing.
func EmbedInput(context, content string) string {
	if context == "" {
		return content
	}
	return context + "\n\n" + content
}
