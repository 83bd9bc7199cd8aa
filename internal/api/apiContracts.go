package api

import (
	"time"

	"github.com/akolanti/HybridRAG/internal/config"
	"github.com/akolanti/HybridRAG/internal/domain/sessionModel"
)

type JobExternalStatus string

const (
	JobStatusError JobExternalStatus = "Error"
)

type JobResponse struct {
	Id        string            `json:"id" example:"job_cz109"`
	ChatId    string            `json:"chat_id" example:"chat_550"`
	Result    Result            `json:"result"`
	Error     *JobOutgoingError `json:"error,omitempty"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time,omitempty"`
}

type JobOutgoingError struct {
	Code      int    `json:"code" example:"400"`
	ErrorCode string `json:"error_code,omitempty" example:"INDEX_UNAVAILABLE"`
	Message   string `json:"message" example:"Job not found"`
	Retry     bool   `json:"can_retry" example:"false"`
}

type RAGResponse struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Sources  []string `json:"sources"`
	Routed   bool     `json:"routed"`
}

type IngestResponse struct {
	Documents      int `json:"documents"`
	Chunks         int `json:"chunks"`
	Indexed        int `json:"indexed"`
	AlreadyPresent int `json:"already_present"`
	Skipped        int `json:"skipped"`
}

type Result struct {
	Status              string          `json:"status"`
	Step                string          `json:"step,omitempty"`
	RAGExternalResponse *RAGResponse    `json:"rag_response,omitempty"`
	Ingest              *IngestResponse `json:"ingest,omitempty"`
}

type InitJobResponse struct {
	Id        string `json:"id"`
	ChatId    string `json:"chat_id,omitempty"`
	StatusURL string `json:"status_url"`
}

type SessionsResponse struct {
	Stats    sessionModel.Stats `json:"stats"`
	Sessions []string           `json:"sessions"`
}

type SessionResponse struct {
	Info     sessionModel.Info      `json:"info"`
	Messages []sessionModel.Message `json:"messages"`
}

type SettingsResponse struct {
	Settings config.Settings `json:"settings"`
	Warnings []string        `json:"warnings"`
}

type HealthResponse struct {
	Status     string            `json:"status" example:"ok"`
	Checks     map[string]string `json:"checks"`
	QueueDepth int               `json:"queue_depth"`
}

// requests---------------------

type ChatRequest struct {
	Message string   `json:"message" validate:"required"`
	ChatID  string   `json:"chat_id,omitempty"`
	Topics  []string `json:"topics,omitempty"`
}

type SearchRequest struct {
	Query     string `json:"query" validate:"required" example:"How do I set up SSO with Okta?"`
	SessionID string `json:"session_id,omitempty"`
}
