package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/docsage/docsage/internal/models"
)

type VectorStoreConfig struct {
	ConnString string
	VectorDim  int
}

// VectorStore is the Postgres/pgvector ChunkStore. Chunk writes run inside
// a transaction so a reader never observes a partially indexed document,
// and document/conversation deletes cascade to their chunks.
type VectorStore struct {
	config VectorStoreConfig
	pool   *pgxpool.Pool
}

func NewWithConfig(config VectorStoreConfig) (*VectorStore, error) {
	if config.VectorDim == 0 {
		config.VectorDim = 1536
	}

	pool, err := pgxpool.New(context.Background(), config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	vs := &VectorStore{
		config: config,
		pool:   pool,
	}

	if err := vs.initialize(); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *VectorStore) initialize() error {
	ctx := context.Background()

	if _, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT 'New Conversation',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			filename TEXT NOT NULL,
			label TEXT NOT NULL,
			page_count INTEGER NOT NULL DEFAULT 0,
			extracted_text TEXT,
			uploaded_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (conversation_id, label)
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS document_chunks (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			chunk_index INTEGER NOT NULL,
			content TEXT NOT NULL,
			context_text TEXT,
			page_number INTEGER NOT NULL,
			section_header TEXT,
			embedding vector(%d),
			token_count INTEGER NOT NULL DEFAULT 0
		)`, vs.config.VectorDim),
		`CREATE INDEX IF NOT EXISTS document_chunks_document_id_idx
			ON document_chunks (document_id)`,
		`CREATE INDEX IF NOT EXISTS document_chunks_embedding_idx
			ON document_chunks
			USING ivfflat (embedding vector_cosine_ops)
			WITH (lists = 100)`,
	}

	for _, stmt := range statements {
		if _, err := vs.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	return nil
}

func (vs *VectorStore) CreateConversation(ctx context.Context, title string) (*models.Conversation, error) {
	if title == "" {
		title = "New Conversation"
	}

	conv := models.Conversation{ID: newID(), Title: title}
	err := vs.pool.QueryRow(ctx,
		`INSERT INTO conversations (id, title) VALUES ($1, $2)
		 RETURNING created_at, updated_at`,
		conv.ID, conv.Title,
	).Scan(&conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return &conv, nil
}

func (vs *VectorStore) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var conv models.Conversation
	err := vs.pool.QueryRow(ctx,
		`SELECT id, title, created_at, updated_at FROM conversations WHERE id = $1`, id,
	).Scan(&conv.ID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &conv, nil
}

func (vs *VectorStore) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	rows, err := vs.pool.Query(ctx,
		`SELECT id, title, created_at, updated_at FROM conversations ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var out []models.Conversation
	for rows.Next() {
		var conv models.Conversation
		if err := rows.Scan(&conv.ID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		out = append(out, conv)
	}
	return out, rows.Err()
}

func (vs *VectorStore) DeleteConversation(ctx context.Context, id string) error {
	tag, err := vs.pool.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("conversation %s not found", id)
	}
	return nil
}

// CreateDocument assigns the next label in the conversation. The
// conversation row is locked for the duration of the transaction so two
// concurrent uploads can't both read the same count and claim one label.
func (vs *VectorStore) CreateDocument(ctx context.Context, conversationID, filename, extractedText string, pageCount int) (*models.Document, error) {
	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var lockedID string
	err = tx.QueryRow(ctx,
		`SELECT id FROM conversations WHERE id = $1 FOR UPDATE`, conversationID,
	).Scan(&lockedID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock conversation %s: %w", conversationID, err)
	}

	var existing int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM documents WHERE conversation_id = $1`, conversationID,
	).Scan(&existing)
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}

	doc := models.Document{
		ID:             newID(),
		ConversationID: conversationID,
		Filename:       filename,
		Label:          labelForIndex(existing),
		PageCount:      pageCount,
		ExtractedText:  extractedText,
		UploadedAt:     time.Now(),
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO documents (id, conversation_id, filename, label, page_count, extracted_text)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))`,
		doc.ID, doc.ConversationID, doc.Filename, doc.Label, doc.PageCount, doc.ExtractedText)
	if err != nil {
		return nil, fmt.Errorf("failed to insert document: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &doc, nil
}

func (vs *VectorStore) ListDocuments(ctx context.Context, conversationID string) ([]models.Document, error) {
	rows, err := vs.pool.Query(ctx,
		`SELECT id, conversation_id, filename, label, page_count, COALESCE(extracted_text, ''), uploaded_at
		 FROM documents WHERE conversation_id = $1 ORDER BY uploaded_at ASC`,
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		var doc models.Document
		err := rows.Scan(&doc.ID, &doc.ConversationID, &doc.Filename, &doc.Label,
			&doc.PageCount, &doc.ExtractedText, &doc.UploadedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (vs *VectorStore) DeleteDocument(ctx context.Context, id string) error {
	tag, err := vs.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %s not found", id)
	}
	return nil
}

// WriteChunks replaces the document's chunks atomically: delete and insert
// commit together or not at all.
func (vs *VectorStore) WriteChunks(ctx context.Context, documentID string, chunks []models.IndexedChunk) error {
	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("failed to clear existing chunks: %w", err)
	}

	stmt := `INSERT INTO document_chunks
		(id, document_id, chunk_index, content, context_text, page_number, section_header, embedding, token_count)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, NULLIF($7, ''), $8, $9)`

	for _, chunk := range chunks {
		var embedding interface{}
		if chunk.Embedding != nil {
			embedding = pgvector.NewVector(chunk.Embedding)
		}

		_, err := tx.Exec(ctx, stmt,
			chunk.ID,
			documentID,
			chunk.ChunkIndex,
			chunk.Content,
			chunk.ContextText,
			chunk.PageNumber,
			chunk.SectionHeader,
			embedding,
			chunk.TokenCount,
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (vs *VectorStore) ChunksInScope(ctx context.Context, documentIDs []string) ([]models.ScopedChunk, error) {
	if len(documentIDs) == 0 {
		return nil, nil
	}

	rows, err := vs.pool.Query(ctx,
		`SELECT dc.id, dc.document_id, dc.chunk_index, dc.content,
		        COALESCE(dc.context_text, ''), dc.page_number,
		        COALESCE(dc.section_header, ''), dc.embedding, dc.token_count,
		        d.label, d.filename
		 FROM document_chunks dc
		 JOIN documents d ON dc.document_id = d.id
		 WHERE dc.document_id = ANY($1)
		 ORDER BY dc.document_id, dc.chunk_index`,
		documentIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var out []models.ScopedChunk
	for rows.Next() {
		var chunk models.ScopedChunk
		var embedding *pgvector.Vector
		err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.ChunkIndex, &chunk.Content,
			&chunk.ContextText, &chunk.PageNumber, &chunk.SectionHeader,
			&embedding, &chunk.TokenCount, &chunk.DocLabel, &chunk.DocFilename)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		if embedding != nil {
			chunk.Embedding = embedding.Slice()
		}
		out = append(out, chunk)
	}
	return out, rows.Err()
}

func (vs *VectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}
