package models

import "time"

// Conversation groups documents and messages; the set of its documents is
// the search scope for every query asked within it.
type Conversation struct {
	ID        string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Document is one uploaded file. Label is assigned at upload time from the
// count of documents already in the conversation and never changes.
type Document struct {
	ID             string
	ConversationID string
	Filename       string
	Label          string
	PageCount      int
	ExtractedText  string
	UploadedAt     time.Time
}

// Chunk is a bounded span of one page's text, the unit of retrieval.
// Immutable once produced by the chunker.
type Chunk struct {
	Content       string
	PageNumber    int
	SectionHeader string
	TokenCount    int
}

// ChunkMetadata is the enrichment output paired positionally with a Chunk.
// The enricher guarantees one record per chunk even when individual calls
// fail (empty Context, empty Section).
type ChunkMetadata struct {
	Context string
	Section string
}

// IndexedChunk is the persisted record. Embedding is nil only when the
// embedding step failed; such chunks stay out of vector ranking but remain
// eligible for lexical ranking.
type IndexedChunk struct {
	ID            string
	DocumentID    string
	ChunkIndex    int
	Content       string
	ContextText   string
	PageNumber    int
	SectionHeader string
	Embedding     []float32
	TokenCount    int
}

// ScopedChunk is an IndexedChunk joined with its document's label and
// filename, as returned by ChunkStore reads over a conversation scope.
type ScopedChunk struct {
	IndexedChunk
	DocLabel    string
	DocFilename string
}

// SearchResult is built per query and never persisted.
type SearchResult struct {
	ChunkID       string
	DocumentID    string
	DocLabel      string
	DocFilename   string
	Content       string
	ContextText   string
	PageNumber    int
	SectionHeader string
	Score         float64
}

// Citation is one parsed <cite> tag from a generated answer.
type Citation struct {
	DocLabel string
	Page     int
	Section  string
	Text     string
}
