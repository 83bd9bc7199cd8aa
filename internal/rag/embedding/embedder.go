package embedding

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Embedder interface {
	// Embed embeds a search query.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch embeds document chunks, one vector per input in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// ErrTransient marks a provider failure worth retrying (rate limits, 5xx, timeouts).
var ErrTransient = errors.New("transient provider error")

func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// Retryable reports whether another attempt could succeed. Cancellation of the caller's
// context never is.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrTransient) {
		return true
	}
	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.ResourceExhausted, codes.Unavailable, codes.DeadlineExceeded, codes.Aborted:
			return true
		}
	}
	return false
}

// RetryableStatus is the HTTP status classification shared by the REST providers.
func RetryableStatus(code int) bool {
	return code == 429 || code >= 500
}

// CheckBatch validates a provider response against the request.
func CheckBatch(vectors [][]float32, inputs int, dimensions int) error {
	if len(vectors) != inputs {
		return fmt.Errorf("provider returned %d vectors for %d inputs", len(vectors), inputs)
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return fmt.Errorf("empty vector at position %d", i)
		}
		if dimensions > 0 && len(v) != dimensions {
			return fmt.Errorf("vector %d has %d dimensions, want %d", i, len(v), dimensions)
		}
	}
	return nil
}
