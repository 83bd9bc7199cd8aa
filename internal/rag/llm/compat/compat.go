// Package compat talks to any OpenAI compatible chat endpoint (Ollama, vLLM, OpenRouter)
// selected by LLM_BASE_URL.
package compat

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/akolanti/HybridRAG/internal/config"
	"github.com/akolanti/HybridRAG/internal/rag/llm"
	"github.com/akolanti/HybridRAG/pkg/logger_i"
	openai "github.com/sashabaranov/go-openai"
)

var logger = logger_i.NewLogger("llm_compat")

type client struct {
	api   *openai.Client
	model string
}

func New(s config.Settings, httpClient *http.Client) (llm.Provider, error) {
	if s.LLMBaseURL == "" {
		return nil, errors.New("LLM_BASE_URL is required for the compat provider")
	}
	if s.LLMModel == "" {
		return nil, errors.New("LLM_MODEL is required for the compat provider")
	}
	cfg := openai.DefaultConfig(s.OpenAIAPIKey)
	cfg.BaseURL = strings.TrimRight(s.LLMBaseURL, "/")
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	logger.Info("compat llm client created", "base_url", cfg.BaseURL, "model", s.LLMModel)
	return &client{api: openai.NewClientWithConfig(cfg), model: s.LLMModel}, nil
}

func (c *client) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		logger.WithTrace(ctx).Error("compat completion failed", "error", err)
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
