package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/docsage/docsage/internal/models"
	"github.com/docsage/docsage/pkg/search"
)

// Citation rules the model must follow so answers can be validated against
// the index afterwards.
const defaultSystemTemplate = `You are a legal document assistant for commercial real estate lawyers. You help lawyers review and understand documents during due diligence.

Base your answers strictly on the provided search results. Do not fabricate information. If the information is not found in any result, say so clearly.

When referencing information from documents, you MUST use this exact citation format:
<cite doc="DOC_LABEL" page="PAGE_NUMBER" section="SECTION_OR_CLAUSE">exact or close quote from the document</cite>

For example:
<cite doc="Doc A" page="3" section="Section 1 — Definitions">The Term means a period of fifteen years</cite>

Rules for citations:
- Always include the doc label and page number
- Include the section or clause name/number when available from the search results
- The quoted text should be a direct or close paraphrase from the source
- Every factual claim from a document should have a citation

Be concise and precise. Lawyers value accuracy over verbosity.`

const defaultContextTemplate = "Relevant passages from the uploaded documents:\n\n%s\n\nQuestion: %s"

// ChatConfig represents the configuration for a chat engine.
type ChatConfig struct {
	Model           string
	Temperature     float64
	MaxTokens       int
	SystemTemplate  string
	ContextTemplate string
	BaseURL         string // Ollama server URL
}

// ChatEngine is an engine that uses an LLM to generate cited chat responses.
type ChatEngine struct {
	config ChatConfig
	llm    llms.Model
}

// NewWithConfig creates a new ChatEngine with the given configuration.
func NewWithConfig(config ChatConfig) (*ChatEngine, error) {
	if config.Model == "" {
		config.Model = "mistral"
	}
	if config.Temperature < 0 || config.Temperature > 1 {
		return nil, fmt.Errorf("temperature must be between 0 and 1")
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	if config.SystemTemplate == "" {
		config.SystemTemplate = defaultSystemTemplate
	}
	if config.ContextTemplate == "" {
		config.ContextTemplate = defaultContextTemplate
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}

	llm, err := ollama.New(
		ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return &ChatEngine{
		config: config,
		llm:    llm,
	}, nil
}

// Model exposes the underlying LLM handle so other components (the
// enricher, title generation at the composition root) can share one client.
func (ce *ChatEngine) Model() llms.Model {
	return ce.llm
}

// BuildPrompt renders the user turn handed to the model: formatted search
// results followed by the question.
func (ce *ChatEngine) BuildPrompt(query string, results []models.SearchResult) string {
	return fmt.Sprintf(ce.config.ContextTemplate, search.FormatResults(results), query)
}

// Chat generates a cited answer for the query from the search results.
func (ce *ChatEngine) Chat(ctx context.Context, query string, results []models.SearchResult) (string, error) {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, ce.config.SystemTemplate),
		llms.TextParts(llms.ChatMessageTypeHuman, ce.BuildPrompt(query, results)),
	}

	response, err := ce.llm.GenerateContent(ctx, content,
		llms.WithTemperature(ce.config.Temperature),
		llms.WithMaxTokens(ce.config.MaxTokens))
	if err != nil {
		return "", fmt.Errorf("chat error: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no response from LLM")
	}

	return response.Choices[0].Content, nil
}

// ChatStream generates the answer as a stream of text chunks.
func (ce *ChatEngine) ChatStream(ctx context.Context, query string, results []models.SearchResult) (<-chan string, error) {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, ce.config.SystemTemplate),
		llms.TextParts(llms.ChatMessageTypeHuman, ce.BuildPrompt(query, results)),
	}

	resultChan := make(chan string)

	go func() {
		defer close(resultChan)

		_, err := ce.llm.GenerateContent(ctx, content,
			llms.WithTemperature(ce.config.Temperature),
			llms.WithMaxTokens(ce.config.MaxTokens),
			llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
				resultChan <- string(chunk)
				return nil
			}))
		if err != nil {
			resultChan <- fmt.Sprintf("Error: %v", err)
		}
	}()

	return resultChan, nil
}

// GenerateTitle produces a short conversation title from the first user
// message.
func (ce *ChatEngine) GenerateTitle(ctx context.Context, userMessage string) (string, error) {
	prompt := fmt.Sprintf(
		"Generate a concise 3-5 word title for a conversation that starts with: '%s'. Return only the title, nothing else.",
		userMessage)

	title, err := llms.GenerateFromSinglePrompt(ctx, ce.llm, prompt, llms.WithMaxTokens(30))
	if err != nil {
		return "", fmt.Errorf("title generation failed: %w", err)
	}

	title = strings.Trim(strings.TrimSpace(title), `"'`)
	if len(title) > 100 {
		title = title[:97] + "..."
	}
	return title, nil
}
