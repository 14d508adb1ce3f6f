package enricher

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/docsage/docsage/internal/models"
)

type EnricherConfig struct {
	MaxDocChars int     // document prefix included in each prompt
	MaxTokens   int     // reply budget per chunk
	Concurrency int     // bounded fan-out over chunks
	RateLimit   float64 // model calls per second
}

// Enricher asks the text-generation model for a short situating context and
// a section identifier per chunk. One call per chunk; a failed call yields
// empty metadata for that chunk and never aborts the rest.
type Enricher struct {
	config  EnricherConfig
	model   llms.Model
	limiter *rate.Limiter
}

func NewWithConfig(config EnricherConfig, model llms.Model) Enricher {
	if config.MaxDocChars == 0 {
		config.MaxDocChars = 100_000
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 300
	}
	if config.Concurrency == 0 {
		config.Concurrency = 4
	}
	if config.RateLimit == 0 {
		config.RateLimit = 4.0
	}

	return Enricher{
		config:  config,
		model:   model,
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}
}

// Enrich returns exactly one ChunkMetadata per chunk, in chunk order,
// regardless of how many model calls fail. Calls run concurrently but the
// result slice is assembled positionally.
func (e *Enricher) Enrich(ctx context.Context, documentText string, chunks []models.Chunk) []models.ChunkMetadata {
	metadata := make([]models.ChunkMetadata, len(chunks))
	if len(chunks) == 0 {
		return metadata
	}

	docPrefix := documentText
	if len(docPrefix) > e.config.MaxDocChars {
		docPrefix = docPrefix[:e.config.MaxDocChars] + "\n\n[... document truncated for context generation ...]"
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Concurrency)

	for i := range chunks {
		i := i
		g.Go(func() error {
			if err := e.limiter.Wait(gctx); err != nil {
				return nil
			}

			prompt := buildPrompt(docPrefix, chunks[i].Content)
			reply, err := llms.GenerateFromSinglePrompt(gctx, e.model, prompt,
				llms.WithMaxTokens(e.config.MaxTokens))
			if err != nil {
				// Isolated failure: this chunk keeps empty metadata.
				return nil
			}

			metadata[i] = parseReply(reply)
			return nil
		})
	}

	g.Wait()
	return metadata
}

func buildPrompt(docPrefix, chunkContent string) string {
	return fmt.Sprintf(`<document>
%s
</document>

Here is the chunk we want to situate within the whole document:
<chunk>
%s
</chunk>

Return a JSON object with exactly two fields:
1. "context": A short succinct context (2-3 sentences) to situate this chunk within the overall document for the purposes of improving search retrieval. If this is a legal document, mention the document type, relevant section/clause, parties involved, and any defined terms.
2. "section": The specific section, clause, or article identifier this chunk falls under (e.g. "Section 3 — Rent", "4.1 Tenant's Obligations", "Clause 7.2", "Executive Summary"). Use the exact heading from the document. If no clear section applies, use null.

Return ONLY the JSON object, no other text.`, docPrefix, chunkContent)
}

var (
	fenceOpenRe  = regexp.MustCompile("^```(?:json)?\\s*")
	fenceCloseRe = regexp.MustCompile("\\s*```$")
)

// parseReply extracts the two-field JSON shape, tolerating markdown code
// fences. Anything unparseable becomes a raw-text context with no section.
func parseReply(reply string) models.ChunkMetadata {
	raw := strings.TrimSpace(reply)
	if strings.HasPrefix(raw, "```") {
		raw = fenceOpenRe.ReplaceAllString(raw, "")
		raw = fenceCloseRe.ReplaceAllString(raw, "")
	}

	var parsed struct {
		Context string  `json:"context"`
		Section *string `json:"section"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return models.ChunkMetadata{Context: raw}
	}

	section := ""
	if parsed.Section != nil && *parsed.Section != "null" {
		section = *parsed.Section
	}

	return models.ChunkMetadata{
		Context: parsed.Context,
		Section: section,
	}
}
