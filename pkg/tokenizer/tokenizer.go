package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Tiktoken wraps a tiktoken encoding. Construct one per pipeline and inject
// it wherever token counts are needed; the encoding is safe for concurrent
// use.
type Tiktoken struct {
	encoding *tiktoken.Tiktoken
}

// New returns a tokenizer for the given encoding name. Use "cl100k_base" to
// match the OpenAI embedding models.
func New(encodingName string) (*Tiktoken, error) {
	if encodingName == "" {
		encodingName = "cl100k_base"
	}

	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("failed to load encoding %s: %w", encodingName, err)
	}

	return &Tiktoken{encoding: enc}, nil
}

func (t *Tiktoken) CountTokens(text string) int {
	return len(t.encoding.Encode(text, nil, nil))
}
