package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	if c.LLM.BaseURL == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.base_url",
			Message: "Ollama base URL is required",
		})
	} else if _, err := url.Parse(c.LLM.BaseURL); err != nil {
		errors = append(errors, ValidationError{
			Field:   "llm.base_url",
			Message: "invalid Ollama base URL",
		})
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 8192 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 8192",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if c.Database.URL != "" {
		if _, err := url.Parse(c.Database.URL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "database.url",
				Message: "invalid database URL",
			})
		}
	}

	if c.Database.VectorDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.vector_dim",
			Message: "vector_dim must be positive",
		})
	}

	if c.Chunker.TargetTokens < 1 {
		errors = append(errors, ValidationError{
			Field:   "chunker.target_tokens",
			Message: "target_tokens must be positive",
		})
	}

	if c.Chunker.OverlapTokens < 0 || c.Chunker.OverlapTokens >= c.Chunker.TargetTokens {
		errors = append(errors, ValidationError{
			Field:   "chunker.overlap_tokens",
			Message: "overlap_tokens must be non-negative and less than target_tokens",
		})
	}

	if c.Enricher.Concurrency < 1 {
		errors = append(errors, ValidationError{
			Field:   "enricher.concurrency",
			Message: "concurrency must be positive",
		})
	}

	if c.Enricher.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "enricher.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	if c.Search.TopK < 1 {
		errors = append(errors, ValidationError{
			Field:   "search.top_k",
			Message: "top_k must be positive",
		})
	}

	return errors
}
