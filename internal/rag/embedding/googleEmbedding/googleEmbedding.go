package googleEmbedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/akolanti/HybridRAG/internal/config"
	"github.com/akolanti/HybridRAG/internal/rag/embedding"
	"github.com/akolanti/HybridRAG/pkg/logger_i"
	"google.golang.org/genai"
)

var logger = logger_i.NewLogger("google_embedding")

const defaultModel = "gemini-embedding-001"

type client struct {
	genAi     *genai.Client
	model     string
	dimension int32
}

var _ embedding.Embedder = (*client)(nil)

func New(ctx context.Context, s config.Settings, httpClient *http.Client) (embedding.Embedder, error) {
	if s.GoogleAPIKey == "" {
		return nil, errors.New("GOOGLE_API_KEY is not set")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     s.GoogleAPIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("creating google embedding client: %w", err)
	}
	model := s.EmbeddingModel
	if model == "" {
		model = defaultModel
	}
	logger.Info("Google Embedding client created", "model", model, "dimensions", s.EmbeddingDimensions)
	return &client{genAi: c, model: model, dimension: int32(s.EmbeddingDimensions)}, nil
}

func (c *client) Dimensions() int { return int(c.dimension) }

func (c *client) Embed(ctx context.Context, query string) ([]float32, error) {
	res, err := c.doCall(ctx, genai.Text(query), "RETRIEVAL_QUERY")
	if err != nil {
		logger.WithTrace(ctx).Error("Error getting query embedding from Google", "error", err)
		return nil, err
	}
	vectors := values(res)
	if err := embedding.CheckBatch(vectors, 1, c.Dimensions()); err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *client) EmbedBatch(ctx context.Context, chunks []string) ([][]float32, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	res, err := c.doCall(ctx, getContent(chunks), "RETRIEVAL_DOCUMENT")
	if err != nil {
		logger.WithTrace(ctx).Error("Error getting Embeddings from Google", "error", err, "batch", len(chunks))
		return nil, err
	}
	vectors := values(res)
	if err := embedding.CheckBatch(vectors, len(chunks), c.Dimensions()); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (c *client) doCall(ctx context.Context, content []*genai.Content, task string) (*genai.EmbedContentResponse, error) {
	result, err := c.genAi.Models.EmbedContent(ctx, c.model, content, &genai.EmbedContentConfig{OutputDimensionality: &c.dimension, TaskType: task})
	if err != nil {
		return nil, classify(err)
	}
	if result == nil {
		return nil, errors.New("nil embedding response")
	}
	return result, nil
}

func getContent(chunks []string) []*genai.Content {
	contentsToSend := make([]*genai.Content, 0, len(chunks))
	for _, chunk := range chunks {
		contentsToSend = append(contentsToSend, &genai.Content{
			Parts: []*genai.Part{{Text: chunk}},
		})
	}
	return contentsToSend
}

func values(res *genai.EmbedContentResponse) [][]float32 {
	out := make([][]float32, 0, len(res.Embeddings))
	for _, e := range res.Embeddings {
		if e == nil {
			out = append(out, nil)
			continue
		}
		out = append(out, e.Values)
	}
	return out
}

// classify marks rate limits and server side failures as transient.
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && embedding.RetryableStatus(apiErr.Code) {
		return embedding.Transient(err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && embedding.RetryableStatus(apiErrPtr.Code) {
		return embedding.Transient(err)
	}
	return err
}
