package jobModel

import (
	"context"
	"time"
)

type JobStatus string
type InternalStatus string

type JobType string

const (
	JobStatusQueued   JobStatus = "QUEUED"
	JobStatusRunning  JobStatus = "RUNNING"
	JobStatusComplete JobStatus = "COMPLETE"
	JobStatusError    JobStatus = "Error"

	UserQueryInit InternalStatus = "Init"
	CacheCall     InternalStatus = "CacheCall"
	RAGCall       InternalStatus = "RAG"
	SearchCall    InternalStatus = "HybridSearch"
	Routed        InternalStatus = "Routed"
	LLMCall       InternalStatus = "LLM"
	MemoryCall    InternalStatus = "Memory"

	IngestInit       InternalStatus = "IngestInit"
	IngestProcessing InternalStatus = "IngestProcessing"
	Error            InternalStatus = "Error"

	Complete InternalStatus = "Complete"

	JobTypeQuery  JobType = "Query"
	JobTypeIngest JobType = "Ingest"
)

type Job struct {
	Id          string         `json:"id"`
	ChatId      string         `json:"chat_id"`
	TraceId     string         `json:"trace_id"`
	JobType     JobType        `json:"job_type"`
	JobPayload  JobPayload     `json:"job_payload"`
	Error       JobError       `json:"error,omitempty"`
	CreatedTime time.Time      `json:"created_time"`
	EndTime     time.Time      `json:"end_time,omitempty"`
	Status      JobStatus      `json:"status"`
	CurrentStep InternalStatus `json:"current_step"`
}

type JobError struct {
	Code      int    `json:"code"`
	ErrorCode string `json:"error_code,omitempty"`
	Message   string `json:"message"`
	Retry     bool   `json:"retry"`
}

type JobPayload struct {
	Question string   `json:"question,omitempty"`
	Topics   []string `json:"topics,omitempty"`
	Answer   string   `json:"answer,omitempty"`
	Sources  []string `json:"sources,omitempty"`
	// Routed is set when the ticket goes to a human team instead of being answered.
	Routed bool `json:"routed,omitempty"`

	IngestFileName string         `json:"ingest_file_name,omitempty"`
	IngestURL      string         `json:"ingest_url,omitempty"`
	IngestSummary  *IngestSummary `json:"ingest_summary,omitempty"`
}

type IngestSummary struct {
	Documents      int `json:"documents"`
	Chunks         int `json:"chunks"`
	Indexed        int `json:"indexed"`
	AlreadyPresent int `json:"already_present"`
	Skipped        int `json:"skipped"`
}

type JobStore interface {
	GetJob(ctx context.Context, jobId string) (Job, bool)
	SaveJob(ctx context.Context, job Job) error
	DeleteJob(ctx context.Context, jobID string)
}
