package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/akolanti/HybridRAG/internal/config"
	"github.com/akolanti/HybridRAG/internal/domain/jobModel"
	"github.com/akolanti/HybridRAG/internal/job"
	"github.com/akolanti/HybridRAG/internal/metrics"
	"github.com/akolanti/HybridRAG/pkg/logger_i"
)

var (
	_jobService        *job.Service
	stopWorkerChannel  chan bool
	workerWaitGroup    *sync.WaitGroup
	dispatcherChannel  chan bool
	currentWorkerCount int64
	logger             = logger_i.NewLogger("WorkerPool")
	_ragService        JobHandler
	minWorkerCount     = config.MinWorkerCount
	idleTimeout        = config.IdleWorkerTimeout
	jobTimeout         = config.JobTimeout
)

// JobHandler is the part of rag.Service a worker needs.
type JobHandler interface {
	ProcessRequest(ctx context.Context, job jobModel.Job) jobModel.Job
	IngestDocument(ctx context.Context, job jobModel.Job) jobModel.Job
}

func InitServices(jobService *job.Service, ragService JobHandler) {
	_jobService = jobService
	_ragService = ragService
	dispatcherChannel = jobService.DispatcherChannel
}

func InitWorkerPool(stopWorkerChan chan bool, waitGroup *sync.WaitGroup) {
	stopWorkerChannel = stopWorkerChan
	workerWaitGroup = waitGroup
	logger.Info("Initializing worker pool")
	go dispatcher()
}

// dispatcher starts the first worker, then one more per signal up to MaxWorkerCount.
func dispatcher() {
	createWorker()
	logger.Info("Dispatcher started")
	for {
		select {
		case _, ok := <-dispatcherChannel:
			if !ok {
				return
			}
			if atomic.LoadInt64(&currentWorkerCount) < config.MaxWorkerCount {
				logger.Info("Creating new worker", "WorkerCount", atomic.LoadInt64(&currentWorkerCount))
				createWorker()
			}
		case <-stopWorkerChannel:
			return
		}
	}
}

func createWorker() {
	workerWaitGroup.Add(1)
	atomic.AddInt64(&currentWorkerCount, 1)
	metrics.IncrementActiveWorkerCount()
	go worker()
	logger.Debug("Created new worker")
}

func worker() {
	idle := time.NewTimer(idleTimeout)
	defer idle.Stop()
	for {
		select {
		case currentJob := <-_jobService.JobChannel:
			executeJob(currentJob)
			metrics.DecrementJobsInQueue()
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(idleTimeout)

		case <-stopWorkerChannel:
			removeWorker("Stop worker signal received")
			return

		case <-idle.C:
			// retire idle workers above the floor
			if reserveRetirement() {
				releaseWorker("Idle worker timeout", atomic.LoadInt64(&currentWorkerCount))
				return
			}
			idle.Reset(idleTimeout)
		}
	}
}

// reserveRetirement decrements the worker count only while it stays above the floor, so
// workers idling at the same moment cannot all retire.
func reserveRetirement() bool {
	for {
		current := atomic.LoadInt64(&currentWorkerCount)
		if current <= atomic.LoadInt64(&minWorkerCount) {
			return false
		}
		if atomic.CompareAndSwapInt64(&currentWorkerCount, current, current-1) {
			return true
		}
	}
}
