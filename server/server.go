package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/docsage/docsage/internal/types"
	"github.com/docsage/docsage/pkg/citation"
	"github.com/docsage/docsage/pkg/extract"
	"github.com/docsage/docsage/pkg/ingest"
	"github.com/docsage/docsage/pkg/llm"
	"github.com/docsage/docsage/pkg/search"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

type Message struct {
	Type    string      `json:"type"`
	Content string      `json:"content"`
	Data    interface{} `json:"data,omitempty"`
}

type Config struct {
	Port      string
	Streaming bool
}

// WSServer exposes the document Q&A pipeline over a WebSocket. Each
// connection gets its own conversation; documents ingested on a connection
// scope that connection's searches.
type WSServer struct {
	config     Config
	store      types.ChunkStore
	pipeline   *ingest.Pipeline
	searcher   *search.Searcher
	chatEngine *llm.ChatEngine
}

func NewWSServer(config Config, store types.ChunkStore, pipeline *ingest.Pipeline, searcher *search.Searcher, chatEngine *llm.ChatEngine) *WSServer {
	return &WSServer{
		config:     config,
		store:      store,
		pipeline:   pipeline,
		searcher:   searcher,
		chatEngine: chatEngine,
	}
}

// Run starts the HTTP listener and blocks until it fails.
func Run(config Config, store types.ChunkStore, pipeline *ingest.Pipeline, searcher *search.Searcher, chatEngine *llm.ChatEngine) error {
	server := NewWSServer(config, store, pipeline, searcher, chatEngine)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", server.handleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	port := config.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting WebSocket server on port %s", port)
	return http.ListenAndServe(":"+port, mux)
}

func (s *WSServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()

	conversation, err := s.store.CreateConversation(ctx, "")
	if err != nil {
		log.Printf("Error creating conversation: %v", err)
		return
	}
	s.sendMessage(conn, "ready", conversation.ID)

	titled := false
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Printf("Error reading message: %v", err)
			break
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("Error unmarshaling message: %v", err)
			continue
		}

		s.handleMessage(ctx, conn, conversation.ID, msg, &titled)
	}
}

func (s *WSServer) handleMessage(ctx context.Context, conn *websocket.Conn, conversationID string, msg Message, titled *bool) {
	switch msg.Type {
	case "ingest":
		s.handleIngest(ctx, conn, conversationID, msg.Content)
	case "chat":
		if !*titled {
			// The first question names the conversation.
			if title, err := s.chatEngine.GenerateTitle(ctx, msg.Content); err == nil {
				s.sendMessage(conn, "title", title)
				*titled = true
			}
		}
		s.handleChat(ctx, conn, conversationID, msg.Content)
	default:
		s.sendMessage(conn, "error", fmt.Sprintf("unknown message type: %s", msg.Type))
	}
}

// handleIngest indexes a server-local file into the connection's
// conversation. An indexing failure is reported but leaves the document
// listed, matching the CLI's upload semantics.
func (s *WSServer) handleIngest(ctx context.Context, conn *websocket.Conn, conversationID, path string) {
	s.sendMessage(conn, "status", fmt.Sprintf("Processing %s", path))

	text, pageCount, err := extract.FromFile(path)
	if err != nil {
		s.sendMessage(conn, "error", fmt.Sprintf("Extraction failed: %v", err))
		return
	}

	doc, err := s.store.CreateDocument(ctx, conversationID, filepath.Base(path), text, pageCount)
	if err != nil {
		s.sendMessage(conn, "error", fmt.Sprintf("Failed to create document: %v", err))
		return
	}

	n, err := s.pipeline.Ingest(ctx, doc)
	if err != nil {
		s.sendMessage(conn, "error",
			fmt.Sprintf("%s uploaded but not yet searchable: %v", doc.Label, err))
		return
	}

	s.sendMessage(conn, "status", fmt.Sprintf("Indexed %s (%s): %d chunks", doc.Label, doc.Filename, n))
}

func (s *WSServer) handleChat(ctx context.Context, conn *websocket.Conn, conversationID, query string) {
	docs, err := s.store.ListDocuments(ctx, conversationID)
	if err != nil {
		s.sendMessage(conn, "error", fmt.Sprintf("Error listing documents: %v", err))
		return
	}
	scope := make([]string, len(docs))
	for i, doc := range docs {
		scope[i] = doc.ID
	}

	results, err := s.searcher.Search(ctx, query, scope, 0)
	if err != nil {
		s.sendMessage(conn, "error", fmt.Sprintf("Error searching documents: %v", err))
		return
	}

	var answer string
	if s.config.Streaming {
		stream, err := s.chatEngine.ChatStream(ctx, query, results)
		if err != nil {
			s.sendMessage(conn, "error", fmt.Sprintf("Error: %v", err))
			return
		}

		var b strings.Builder
		for chunk := range stream {
			if strings.HasPrefix(chunk, "Error:") {
				s.sendMessage(conn, "error", chunk)
				return
			}
			b.WriteString(chunk)
			s.sendMessage(conn, "stream", chunk)
		}
		answer = b.String()
	} else {
		answer, err = s.chatEngine.Chat(ctx, query, results)
		if err != nil {
			s.sendMessage(conn, "error", fmt.Sprintf("Error: %v", err))
			return
		}
		s.sendMessage(conn, "response", citation.Strip(answer))
	}

	s.sendCitations(ctx, conn, answer, scope)
}

// sendCitations reports each citation in the answer together with whether
// it points at an indexed page.
func (s *WSServer) sendCitations(ctx context.Context, conn *websocket.Conn, answer string, scope []string) {
	citations := citation.Extract(answer)
	if len(citations) == 0 {
		return
	}

	chunks, err := s.store.ChunksInScope(ctx, scope)
	if err != nil {
		log.Printf("Error loading chunks for citation check: %v", err)
		return
	}
	known := citation.KnownPages(chunks)

	type citedSource struct {
		Doc      string `json:"doc"`
		Page     int    `json:"page"`
		Section  string `json:"section,omitempty"`
		Text     string `json:"text"`
		Grounded bool   `json:"grounded"`
	}

	sources := make([]citedSource, 0, len(citations))
	for _, c := range citations {
		sources = append(sources, citedSource{
			Doc:      c.DocLabel,
			Page:     c.Page,
			Section:  c.Section,
			Text:     c.Text,
			Grounded: citation.IsGrounded(c, known),
		})
	}

	if err := conn.WriteJSON(Message{Type: "citations", Data: sources}); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}

func (s *WSServer) sendMessage(conn *websocket.Conn, msgType string, content string) {
	msg := Message{
		Type:    msgType,
		Content: content,
	}
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}
