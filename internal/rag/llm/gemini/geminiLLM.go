package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/akolanti/HybridRAG/internal/config"
	"github.com/akolanti/HybridRAG/internal/rag/llm"
	"github.com/akolanti/HybridRAG/pkg/logger_i"
	"google.golang.org/genai"
)

const defaultModel = "gemini-2.5-flash"

type llmClient struct {
	client    *genai.Client
	modelName string
}

var logger = logger_i.NewLogger("llm_gemini")

func New(ctx context.Context, s config.Settings, httpClient *http.Client) (llm.Provider, error) {
	if s.GoogleAPIKey == "" {
		return nil, errors.New("GOOGLE_API_KEY is not set")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     s.GoogleAPIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	model := s.LLMModel
	if model == "" {
		model = defaultModel
	}
	logger.Info("Gemini client created", "model", model)
	return &llmClient{client: c, modelName: model}, nil
}

func (c *llmClient) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	loggr := logger.WithTrace(ctx)

	contentConfig := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(req.Temperature)),
		MaxOutputTokens: int32(req.MaxTokens),
	}
	if req.System != "" {
		contentConfig.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}

	result, err := c.client.Models.GenerateContent(ctx, c.modelName, genai.Text(req.Prompt), contentConfig)
	if err != nil {
		loggr.Error("gemini generate failed", "error", err)
		return "", err
	}
	if result == nil {
		return "", llm.ErrEmptyCompletion
	}
	if fb := result.PromptFeedback; fb != nil && fb.BlockReason != "" {
		return "", fmt.Errorf("%w: prompt blocked (%s)", llm.ErrEmptyCompletion, fb.BlockReason)
	}
	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", llm.ErrEmptyCompletion
	}
	return text, nil
}
