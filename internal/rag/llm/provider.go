package llm

import (
	"context"
	"errors"
)

type CompletionRequest struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// ErrEmptyCompletion covers nil, blocked and zero-choice responses.
var ErrEmptyCompletion = errors.New("llm returned no text")
