package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/docsage/docsage/internal/models"
	"github.com/docsage/docsage/internal/types"
	"github.com/docsage/docsage/pkg/chunker"
	"github.com/docsage/docsage/pkg/citation"
	cfgPkg "github.com/docsage/docsage/pkg/config"
	"github.com/docsage/docsage/pkg/enricher"
	"github.com/docsage/docsage/pkg/extract"
	"github.com/docsage/docsage/pkg/ingest"
	"github.com/docsage/docsage/pkg/llm"
	"github.com/docsage/docsage/pkg/search"
	"github.com/docsage/docsage/pkg/store"
	"github.com/docsage/docsage/pkg/tokenizer"
	"github.com/docsage/docsage/server"
)

type Config struct {
	BaseURL       string
	DBUrl         string
	Model         string
	EmbedModel    string
	Files         string
	TopK          int
	MaxTokens     int
	Streaming     bool
	Temperature   float64
	Serve         bool
	Port          string
	TargetTokens  int
	OverlapTokens int
	Encoding      string
	VectorDim     int
	MaxDocChars   int
	Concurrency   int
	RateLimit     float64
}

func main() {
	config := parseFlags()

	if err := run(config); err != nil {
		log.Fatal(err)
	}
}

func parseFlags() Config {
	var config Config
	var configPath string

	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.StringVar(&config.BaseURL, "ollama-url", os.Getenv("OLLAMA_BASE_URL"), "Ollama server URL")
	flag.StringVar(&config.DBUrl, "db-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string (in-memory store when empty)")
	flag.StringVar(&config.Model, "model", "", "Chat model")
	flag.StringVar(&config.EmbedModel, "embed-model", "", "Embedding model")
	flag.StringVar(&config.Files, "ingest", "", "Comma-separated documents to ingest (pdf, html, txt)")
	flag.IntVar(&config.TopK, "top-k", 0, "Search results per query")
	flag.IntVar(&config.MaxTokens, "max-tokens", 0, "Maximum tokens for LLM response")
	flag.BoolVar(&config.Streaming, "stream", true, "Enable streaming responses")
	flag.Float64Var(&config.Temperature, "temperature", 0, "Set the LLM temperature")
	flag.BoolVar(&config.Serve, "serve", false, "Run the WebSocket server instead of the chat loop")
	flag.StringVar(&config.Port, "port", "8080", "Server port (with -serve)")
	flag.IntVar(&config.TargetTokens, "target-tokens", 0, "Token budget per chunk")
	flag.IntVar(&config.OverlapTokens, "overlap-tokens", 0, "Token budget for chunk overlap")
	flag.IntVar(&config.VectorDim, "vector-dim", 0, "Embedding vector dimension")
	flag.Float64Var(&config.RateLimit, "rate-limit", 0, "Enrichment model calls per second")
	flag.Parse()

	explicit := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	cfg, err := cfgPkg.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			log.Printf("config: %v", e)
		}
		log.Fatal("invalid configuration")
	}

	mergeFileConfig(&config, cfg, explicit)
	return config
}

// mergeFileConfig fills every field the user didn't set on the command line
// from the loaded config file (which itself carries the defaults).
func mergeFileConfig(config *Config, cfg *cfgPkg.Config, explicit map[string]bool) {
	if config.BaseURL == "" {
		config.BaseURL = cfg.LLM.BaseURL
	}
	if config.DBUrl == "" {
		config.DBUrl = cfg.Database.URL
	}
	if config.Model == "" {
		config.Model = cfg.LLM.Model
	}
	if config.EmbedModel == "" {
		config.EmbedModel = cfg.LLM.EmbedModel
	}
	if config.TopK == 0 {
		config.TopK = cfg.Search.TopK
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = cfg.LLM.MaxTokens
	}
	if config.Temperature == 0 {
		config.Temperature = cfg.LLM.Temperature
	}
	if config.TargetTokens == 0 {
		config.TargetTokens = cfg.Chunker.TargetTokens
	}
	if config.OverlapTokens == 0 {
		config.OverlapTokens = cfg.Chunker.OverlapTokens
	}
	if config.Encoding == "" {
		config.Encoding = cfg.Chunker.Encoding
	}
	if config.VectorDim == 0 {
		config.VectorDim = cfg.Database.VectorDim
	}
	if config.MaxDocChars == 0 {
		config.MaxDocChars = cfg.Enricher.MaxDocChars
	}
	if config.Concurrency == 0 {
		config.Concurrency = cfg.Enricher.Concurrency
	}
	if config.RateLimit == 0 {
		config.RateLimit = cfg.Enricher.RateLimit
	}
	// The -stream flag defaults to true, so a zero check can't tell "left
	// alone" from "explicitly on"; only an explicit flag beats the file.
	if !explicit["stream"] {
		config.Streaming = cfg.UI.Streaming
	}
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("docs"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func run(config Config) error {
	ctx := context.Background()

	tok, err := tokenizer.New(config.Encoding)
	if err != nil {
		return fmt.Errorf("failed to initialize tokenizer: %v", err)
	}

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Model:   config.EmbedModel,
		BaseURL: config.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %v", err)
	}

	chatEngine, err := llm.NewWithConfig(llm.ChatConfig{
		Model:       config.Model,
		MaxTokens:   config.MaxTokens,
		BaseURL:     config.BaseURL,
		Temperature: config.Temperature,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize chat engine: %v", err)
	}

	var chunkStore types.ChunkStore
	if config.DBUrl != "" {
		chunkStore, err = store.NewWithConfig(store.VectorStoreConfig{
			ConnString: config.DBUrl,
			VectorDim:  config.VectorDim,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize vector store: %v", err)
		}
	} else {
		color.Yellow("No database URL: using in-memory store (index is lost on exit)")
		chunkStore = store.NewMemoryStore()
	}
	defer chunkStore.Close()

	chk := chunker.NewWithConfig(chunker.ChunkerConfig{
		TargetTokens:  config.TargetTokens,
		OverlapTokens: config.OverlapTokens,
	}, tok)
	enr := enricher.NewWithConfig(enricher.EnricherConfig{
		MaxDocChars: config.MaxDocChars,
		Concurrency: config.Concurrency,
		RateLimit:   config.RateLimit,
	}, chatEngine.Model())
	pipeline := ingest.New(chk, enr, embedder, chunkStore)
	searcher := search.NewWithConfig(search.SearcherConfig{TopK: config.TopK}, embedder, chunkStore)

	if config.Serve {
		return server.Run(server.Config{
			Port:      config.Port,
			Streaming: config.Streaming,
		}, chunkStore, pipeline, searcher, chatEngine)
	}

	conversation, err := chunkStore.CreateConversation(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to create conversation: %v", err)
	}

	if config.Files != "" {
		var paths []string
		for _, path := range strings.Split(config.Files, ",") {
			if path = strings.TrimSpace(path); path != "" {
				paths = append(paths, path)
			}
		}

		bar := getProgressBar(len(paths), " Ingesting documents...")
		for _, path := range paths {
			if err := ingestFile(ctx, chunkStore, pipeline, conversation.ID, path); err != nil {
				color.Red("✗ %s: %v", path, err)
			}
			bar.Add(1)
		}
		bar.Finish()
	}

	return chatLoop(ctx, config, chunkStore, searcher, chatEngine, conversation.ID)
}

func ingestFile(ctx context.Context, chunkStore types.ChunkStore, pipeline *ingest.Pipeline, conversationID, path string) error {
	color.Blue("\nIngesting %s", path)

	text, pageCount, err := extract.FromFile(path)
	if err != nil {
		return fmt.Errorf("extraction failed: %v", err)
	}

	doc, err := chunkStore.CreateDocument(ctx, conversationID, filepath.Base(path), text, pageCount)
	if err != nil {
		return fmt.Errorf("failed to create document: %v", err)
	}

	bar := getSpinner(" Chunking, enriching and embedding...")
	n, err := pipeline.Ingest(ctx, doc)
	bar.Finish()

	if err != nil {
		// The document exists but has no index; a retry can fix it later.
		color.Yellow("⚠ %s uploaded but not yet searchable: %v", doc.Label, err)
		return nil
	}

	color.Green("✓ %s (%s): indexed %d chunks", doc.Label, doc.Filename, n)
	return nil
}

func chatLoop(ctx context.Context, config Config, chunkStore types.ChunkStore, searcher *search.Searcher, chatEngine *llm.ChatEngine, conversationID string) error {
	color.Cyan("\nAsk questions about your documents (type 'exit' to quit)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if strings.ToLower(query) == "exit" {
			break
		}

		docs, err := chunkStore.ListDocuments(ctx, conversationID)
		if err != nil {
			color.Red("Error listing documents: %v\n", err)
			continue
		}
		scope := make([]string, len(docs))
		for i, doc := range docs {
			scope[i] = doc.ID
		}

		querySpinner := getSpinner(" Searching documents...")
		results, err := searcher.Search(ctx, query, scope, 0)
		querySpinner.Finish()

		if err != nil {
			color.Red("Error searching documents: %v\n", err)
			continue
		}
		if len(results) == 0 {
			color.Yellow("No results found.")
		}

		answer, err := askModel(ctx, config, chatEngine, query, results)
		if err != nil {
			color.Red("Error: %v\n", err)
			continue
		}

		fmt.Print("\n")
		assistantPrompt("Assistant: %s\n", citation.Strip(answer))
		printSources(ctx, chunkStore, answer, scope)
	}

	return nil
}

func askModel(ctx context.Context, config Config, chatEngine *llm.ChatEngine, query string, results []models.SearchResult) (string, error) {
	if !config.Streaming {
		spinner := getSpinner(" Generating response...")
		defer spinner.Finish()
		return chatEngine.Chat(ctx, query, results)
	}

	stream, err := chatEngine.ChatStream(ctx, query, results)
	if err != nil {
		return "", err
	}

	// Buffer the stream: citations are stripped for display, so the raw
	// tag text cannot be printed as it arrives.
	spinner := getSpinner(" Generating response...")
	var b strings.Builder
	for chunk := range stream {
		if strings.HasPrefix(chunk, "Error:") {
			spinner.Finish()
			return "", fmt.Errorf("%s", strings.TrimPrefix(chunk, "Error: "))
		}
		b.WriteString(chunk)
	}
	spinner.Finish()

	return b.String(), nil
}

func printSources(ctx context.Context, chunkStore types.ChunkStore, answer string, scope []string) {
	citations := citation.Extract(answer)
	if len(citations) == 0 {
		return
	}

	chunks, err := chunkStore.ChunksInScope(ctx, scope)
	if err != nil {
		return
	}
	known := citation.KnownPages(chunks)

	color.White("\nSources:")
	for _, c := range citations {
		ref := fmt.Sprintf("%s, p.%d", c.DocLabel, c.Page)
		if c.Section != "" {
			ref = fmt.Sprintf("%s, %s, p.%d", c.DocLabel, c.Section, c.Page)
		}
		if citation.IsGrounded(c, known) {
			color.Green("  ✓ %s", ref)
		} else {
			color.Red("  ✗ %s (not found in the indexed documents)", ref)
		}
	}
}
