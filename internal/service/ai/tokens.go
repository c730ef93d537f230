package ai

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter estimates token usage with the OpenAI BPE tables. Streamed
// completions carry no usage block, so counts feed metrics only.
type TokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTokenCounter picks the encoding for modelName, falling back to
// cl100k_base for models tiktoken does not know (Gemini, Ark endpoints).
func NewTokenCounter(modelName string) (*TokenCounter, error) {
	enc, err := tiktoken.EncodingForModel(modelName)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("load tokenizer: %w", err)
		}
	}
	return &TokenCounter{enc: enc}, nil
}

// Count returns the number of tokens in text. A nil counter counts nothing.
func (c *TokenCounter) Count(text string) int {
	if c == nil || c.enc == nil || text == "" {
		return 0
	}
	return len(c.enc.Encode(text, nil, nil))
}
