package handlers

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/akolanti/HybridRAG/internal/api"
	"github.com/akolanti/HybridRAG/internal/config"
	"github.com/akolanti/HybridRAG/internal/domain/jobModel"
	"github.com/akolanti/HybridRAG/internal/domain/sessionModel"
	"github.com/akolanti/HybridRAG/internal/job"
	"github.com/akolanti/HybridRAG/internal/metrics"
	"github.com/akolanti/HybridRAG/internal/rag"
	"github.com/akolanti/HybridRAG/pkg/logger_i"
)

var (
	handlerInstance *JobHandler //private singleton
	logJH           = logger_i.NewLogger("JobHandler")
	logRH           = logger_i.NewLogger("RequestHandler")
)

// Searcher is the synchronous half of rag.Service.
type Searcher interface {
	Search(ctx context.Context, query string, sessionID string) (rag.SearchResponse, error)
}

// HealthCheck returns nil when the dependency answers.
type HealthCheck func(ctx context.Context) error

type Deps struct {
	Jobs         *job.Service
	Search       Searcher
	Sessions     sessionModel.Store
	Settings     config.Settings
	HealthChecks map[string]HealthCheck
}

type JobHandler struct {
	service  *job.Service
	search   Searcher
	sessions sessionModel.Store
	settings config.Settings
	checks   map[string]HealthCheck
}

// InitHandlers is called once at startup, before the server accepts requests.
func InitHandlers(d Deps) {
	handlerInstance = &JobHandler{
		service:  d.Jobs,
		search:   d.Search,
		sessions: d.Sessions,
		settings: d.Settings,
		checks:   d.HealthChecks,
	}
	logJH.Info("Starting job handler")
}

func CreateNewJob(newJob newJobData) {
	logJH.Debug("To create new job", "traceId", newJob.traceId, "JobId", newJob.id)
	handlerInstance.pushToJobChannel(newJob)
}

func GetJobStatus(id string, traceId string) (result jobModel.Job, isFound bool) {
	ctxC := context.WithValue(context.Background(), config.TRACE_ID_KEY, traceId)
	if handlerInstance != nil {
		return handlerInstance.service.JobStore.GetJob(ctxC, id)
	}
	return result, false
}

func ValidateChatRequest(chatReq api.ChatRequest) bool {
	if handlerInstance == nil {
		return false
	}
	return trimmed(chatReq.Message) != ""
}

func (h *JobHandler) pushToJobChannel(newJob newJobData) {
	_job := jobModel.Job{}
	_job.Id = newJob.id
	_job.CreatedTime = time.Now()
	_job.TraceId = newJob.traceId
	_job.Status = jobModel.JobStatusQueued

	if newJob.isDocumentIngest {
		_job.CurrentStep = jobModel.IngestInit
		_job.JobType = jobModel.JobTypeIngest
		_job.JobPayload.IngestFileName = newJob.documentName
		_job.JobPayload.IngestURL = newJob.documentSource
	} else {
		_job.JobType = jobModel.JobTypeQuery
		_job.ChatId = newJob.chatId
		_job.JobPayload.Question = newJob.message
		_job.JobPayload.Topics = newJob.topics
		_job.CurrentStep = jobModel.UserQueryInit
	}

	// visible to GET /status before a worker picks it up
	ctx := context.WithValue(context.Background(), config.TRACE_ID_KEY, newJob.traceId)
	if err := h.service.JobStore.SaveJob(ctx, _job); err != nil {
		logJH.WithTrace(ctx).Error("Failed to save queued job", "JobId", _job.Id, "error", err)
	}

	metrics.IncrementJobsInQueue()
	h.service.JobChannel <- _job //blocking send so the queue applies backpressure

	// a new worker every N requests, and one per ingest job since ingestion holds a
	// worker for a while; idle workers retire on their own
	accurateCount := atomic.AddInt64(&h.service.RequestCount, 1)
	if accurateCount%config.RequestsPerNewWorkerCount == 0 || _job.JobType == jobModel.JobTypeIngest {
		metrics.StartDispatcherSignalCount()
		select {
		case h.service.DispatcherChannel <- true:
		default:
			// dispatcher already has a pending signal
		}
	}
}
