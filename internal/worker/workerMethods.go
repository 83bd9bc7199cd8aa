package worker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/akolanti/HybridRAG/internal/config"
	jobmodel "github.com/akolanti/HybridRAG/internal/domain/jobModel"
	"github.com/akolanti/HybridRAG/internal/metrics"
)

func executeJob(job jobmodel.Job) {
	start := time.Now()
	defer func() {
		metrics.CaptureJobMetrics(string(job.Status), time.Since(start))
	}()
	ctxTrace := context.WithValue(context.Background(), config.TRACE_ID_KEY, job.TraceId)
	ctx, cancel := context.WithTimeout(ctxTrace, jobTimeout)
	defer cancel()
	loggr := logger.WithTrace(ctx)
	loggr.Debug("Processing job", "JobId", job.Id, "type", job.JobType)

	job = saveJobState(ctx, job, jobmodel.JobStatusRunning)

	if job.JobType == jobmodel.JobTypeIngest {
		job.CurrentStep = jobmodel.IngestInit
		job = _ragService.IngestDocument(ctx, job)
	} else {
		job.CurrentStep = jobmodel.UserQueryInit
		job = _ragService.ProcessRequest(ctx, job)
	}

	job.EndTime = time.Now()
	final := jobmodel.JobStatusComplete
	if job.Status == jobmodel.JobStatusError {
		final = jobmodel.JobStatusError
	}
	loggr.Debug("Job finished", "JobId", job.Id, "status", final, "step", job.CurrentStep)
	// the job context may be spent by now
	saveCtx, saveCancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer saveCancel()
	job = saveJobState(saveCtx, job, final)
}

func removeWorker(reason string) {
	releaseWorker(reason, atomic.AddInt64(&currentWorkerCount, -1))
}

func releaseWorker(reason string, remaining int64) {
	workerWaitGroup.Done()
	logger.Info("Removed worker", "reason", reason, "workerCount", remaining)
	metrics.DecrementActiveWorkerCount()
}

func saveJobState(ctx context.Context, job jobmodel.Job, jobStatus jobmodel.JobStatus) jobmodel.Job {
	job.Status = jobStatus
	if err := _jobService.JobStore.SaveJob(ctx, job); err != nil {
		logger.WithTrace(ctx).Error("Failed to update job state", "JobId", job.Id, "err", err)
	}
	return job
}
