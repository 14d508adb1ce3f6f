package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/docsage/docsage/internal/models"
)

// MemoryStore is an in-process ChunkStore. It backs tests and single-node
// setups that don't want Postgres; the pgvector store is the production
// implementation of the same contract.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]models.Conversation
	documents     map[string]models.Document
	chunks        map[string][]models.IndexedChunk // keyed by document id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]models.Conversation),
		documents:     make(map[string]models.Document),
		chunks:        make(map[string][]models.IndexedChunk),
	}
}

func (s *MemoryStore) CreateConversation(ctx context.Context, title string) (*models.Conversation, error) {
	if title == "" {
		title = "New Conversation"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv := models.Conversation{
		ID:        newID(),
		Title:     title,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	s.conversations[conv.ID] = conv
	return &conv, nil
}

func (s *MemoryStore) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, fmt.Errorf("conversation %s not found", id)
	}
	return &conv, nil
}

func (s *MemoryStore) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		out = append(out, conv)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *MemoryStore) DeleteConversation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[id]; !ok {
		return fmt.Errorf("conversation %s not found", id)
	}
	delete(s.conversations, id)

	for docID, doc := range s.documents {
		if doc.ConversationID == id {
			delete(s.documents, docID)
			delete(s.chunks, docID)
		}
	}
	return nil
}

func (s *MemoryStore) CreateDocument(ctx context.Context, conversationID, filename, extractedText string, pageCount int) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := 0
	for _, doc := range s.documents {
		if doc.ConversationID == conversationID {
			existing++
		}
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
	s.documents[doc.ID] = doc
	return &doc, nil
}

func (s *MemoryStore) ListDocuments(ctx context.Context, conversationID string) ([]models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Document
	for _, doc := range s.documents {
		if doc.ConversationID == conversationID {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UploadedAt.Before(out[j].UploadedAt)
	})
	return out, nil
}

func (s *MemoryStore) DeleteDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[id]; !ok {
		return fmt.Errorf("document %s not found", id)
	}
	delete(s.documents, id)
	delete(s.chunks, id)
	return nil
}

// WriteChunks replaces the document's chunks in one step under the lock, so
// readers see either the previous set or the full new set, never a prefix.
func (s *MemoryStore) WriteChunks(ctx context.Context, documentID string, chunks []models.IndexedChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[documentID]; !ok {
		return fmt.Errorf("document %s not found", documentID)
	}

	replacement := make([]models.IndexedChunk, len(chunks))
	copy(replacement, chunks)
	s.chunks[documentID] = replacement
	return nil
}

func (s *MemoryStore) ChunksInScope(ctx context.Context, documentIDs []string) ([]models.ScopedChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.ScopedChunk
	for _, docID := range documentIDs {
		doc, ok := s.documents[docID]
		if !ok {
			continue
		}
		for _, chunk := range s.chunks[docID] {
			out = append(out, models.ScopedChunk{
				IndexedChunk: chunk,
				DocLabel:     doc.Label,
				DocFilename:  doc.Filename,
			})
		}
	}
	return out, nil
}

func (s *MemoryStore) Close() {}
