package openaiLLM

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/akolanti/HybridRAG/internal/config"
	"github.com/akolanti/HybridRAG/internal/rag/llm"
	"github.com/akolanti/HybridRAG/pkg/logger_i"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const defaultModel = "gpt-4o-mini"

var logger = logger_i.NewLogger("llm_openai")

type client struct {
	api   openai.Client
	model string
}

func New(s config.Settings, httpClient *http.Client) (llm.Provider, error) {
	if s.OpenAIAPIKey == "" {
		return nil, errors.New("OPENAI_API_KEY is not set")
	}
	opts := []option.RequestOption{option.WithAPIKey(s.OpenAIAPIKey)}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	model := s.LLMModel
	if model == "" {
		model = defaultModel
	}
	logger.Info("OpenAI client created", "model", model)
	return &client{api: openai.NewClient(opts...), model: model}, nil
}

func (c *client) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
		MaxTokens:   openai.Int(int64(req.MaxTokens)),
	})
	if err != nil {
		logger.WithTrace(ctx).Error("openai completion failed", "error", err)
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", llm.ErrEmptyCompletion
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", llm.ErrEmptyCompletion
	}
	return text, nil
}
