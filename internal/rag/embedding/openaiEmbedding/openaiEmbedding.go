package openaiEmbedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/akolanti/HybridRAG/internal/config"
	"github.com/akolanti/HybridRAG/internal/rag/embedding"
	"github.com/akolanti/HybridRAG/pkg/logger_i"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

var logger = logger_i.NewLogger("openai_embedding")

const defaultModel = "text-embedding-3-small"

type client struct {
	api        openai.Client
	model      string
	dimensions int
}

var _ embedding.Embedder = (*client)(nil)

func New(s config.Settings, httpClient *http.Client) (embedding.Embedder, error) {
	if s.OpenAIAPIKey == "" {
		return nil, errors.New("OPENAI_API_KEY is not set")
	}
	opts := []option.RequestOption{option.WithAPIKey(s.OpenAIAPIKey), option.WithMaxRetries(0)}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	model := s.EmbeddingModel
	if model == "" {
		model = defaultModel
	}
	logger.Info("OpenAI Embedding client created", "model", model, "dimensions", s.EmbeddingDimensions)
	return &client{api: openai.NewClient(opts...), model: model, dimensions: s.EmbeddingDimensions}, nil
}

func (c *client) Dimensions() int { return c.dimensions }

func (c *client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := c.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input:      openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model:      openai.EmbeddingModel(c.model),
		Dimensions: openai.Int(int64(c.dimensions)),
	})
	if err != nil {
		logger.WithTrace(ctx).Error("Error getting Embeddings from OpenAI", "error", err, "batch", len(texts))
		return nil, classify(err)
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(texts) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		v := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			v[i] = float32(f)
		}
		vectors[d.Index] = v
	}
	if err := embedding.CheckBatch(vectors, len(texts), c.dimensions); err != nil {
		return nil, err
	}
	return vectors, nil
}

func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && embedding.RetryableStatus(apiErr.StatusCode) {
		return embedding.Transient(err)
	}
	return err
}
