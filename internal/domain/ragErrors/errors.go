// Package ragErrors holds the failure taxonomy shared by retrieval, indexing and the HTTP layer.
// Callers match with errors.Is; concrete causes are wrapped alongside the sentinel.
package ragErrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrIndexUnavailable is fatal to a search call, there is no answer without the vector leg.
	ErrIndexUnavailable = errors.New("vector index unavailable")
	// ErrKeywordSearchFailed degrades a search to vector-only.
	ErrKeywordSearchFailed = errors.New("keyword search failed")
	// ErrEmbeddingFailed skips a chunk at ingestion and fails a search at query time.
	ErrEmbeddingFailed = errors.New("embedding failed")
	// ErrRewriteFailed never leaves the rewriter, the original query is used instead.
	ErrRewriteFailed = errors.New("query rewrite failed")
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrEmptyQuery    = errors.New("empty query")
)

// Wrap ties a cause to one of the sentinels so both errors.Is checks succeed.
func Wrap(kind error, cause error) error {
	if cause == nil {
		return kind
	}
	return fmt.Errorf("%w: %w", kind, cause)
}

// Code is the short machine readable name surfaced to API callers.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrIndexUnavailable):
		return "INDEX_UNAVAILABLE"
	case errors.Is(err, ErrEmbeddingFailed):
		return "EMBEDDING_FAILED"
	case errors.Is(err, ErrKeywordSearchFailed):
		return "KEYWORD_SEARCH_FAILED"
	case errors.Is(err, ErrRewriteFailed):
		return "REWRITE_FAILED"
	case errors.Is(err, ErrEmptyQuery):
		return "EMPTY_QUERY"
	case errors.Is(err, ErrInvalidConfig):
		return "INVALID_CONFIG"
	default:
		return "INTERNAL"
	}
}

// HTTPStatus maps a failure onto the status code the API answers with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrEmptyQuery), errors.Is(err, ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, ErrIndexUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrEmbeddingFailed):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
