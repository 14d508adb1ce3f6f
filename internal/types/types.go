package types

import (
	"context"

	"github.com/docsage/docsage/internal/models"
)

// Tokenizer counts tokens with the same encoding the embedding model is
// budgeted against, so chunking decisions and token accounting agree.
type Tokenizer interface {
	CountTokens(text string) int
}

// Embedder turns a batch of texts into fixed-dimension vectors, same length
// and order as the input.
type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkStore is the persistence contract the retrieval core consumes.
// WriteChunks replaces a document's chunks as a single atomic operation;
// a concurrent reader never observes a partially written document.
type ChunkStore interface {
	CreateConversation(ctx context.Context, title string) (*models.Conversation, error)
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	ListConversations(ctx context.Context) ([]models.Conversation, error)
	DeleteConversation(ctx context.Context, id string) error

	CreateDocument(ctx context.Context, conversationID, filename, extractedText string, pageCount int) (*models.Document, error)
	ListDocuments(ctx context.Context, conversationID string) ([]models.Document, error)
	DeleteDocument(ctx context.Context, id string) error

	WriteChunks(ctx context.Context, documentID string, chunks []models.IndexedChunk) error
	ChunksInScope(ctx context.Context, documentIDs []string) ([]models.ScopedChunk, error)

	Close()
}
