package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/akolanti/HybridRAG/internal/domain/jobModel"
	"github.com/akolanti/HybridRAG/internal/job"
	"github.com/akolanti/HybridRAG/pkg/logger_i"
)

// MockRagService to track if jobs are executed
type MockRagService struct {
	ProcessedCount int32
	IngestedCount  int32
	OnProcess      func(j jobModel.Job) jobModel.Job
}

func (m *MockRagService) ProcessRequest(ctx context.Context, j jobModel.Job) jobModel.Job {
	atomic.AddInt32(&m.ProcessedCount, 1)
	if m.OnProcess != nil {
		return m.OnProcess(j)
	}
	return j
}

func (m *MockRagService) IngestDocument(ctx context.Context, j jobModel.Job) jobModel.Job {
	atomic.AddInt32(&m.IngestedCount, 1)
	return j
}

type MockJobStore struct {
	mu        sync.Mutex
	Saved     []jobModel.Job
	OnSaveJob func(ctx context.Context, job jobModel.Job) error
}

func (m *MockJobStore) GetJob(ctx context.Context, jobId string) (jobModel.Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.Saved) - 1; i >= 0; i-- {
		if m.Saved[i].Id == jobId {
			return m.Saved[i], true
		}
	}
	return jobModel.Job{}, false
}

func (m *MockJobStore) DeleteJob(ctx context.Context, jobID string) {}

func (m *MockJobStore) SaveJob(ctx context.Context, j jobModel.Job) error {
	m.mu.Lock()
	m.Saved = append(m.Saved, j)
	m.mu.Unlock()
	if m.OnSaveJob != nil {
		return m.OnSaveJob(ctx, j)
	}
	return nil
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWorkerPool_Flow(t *testing.T) {
	atomic.StoreInt64(&currentWorkerCount, 0)
	store := &MockJobStore{}
	jobSvc := &job.Service{
		JobChannel:        make(chan jobModel.Job, 10),
		DispatcherChannel: make(chan bool, 10),
		JobStore:          store,
	}
	mockRag := &MockRagService{
		OnProcess: func(j jobModel.Job) jobModel.Job {
			if j.Id == "failing" {
				j.Status = jobModel.JobStatusError
				j.Error = jobModel.JobError{Code: 502, ErrorCode: "EMBEDDING_FAILED"}
			}
			return j
		},
	}
	stopChan := make(chan bool)
	wg := &sync.WaitGroup{}

	InitServices(jobSvc, mockRag)
	InitWorkerPool(stopChan, wg)

	t.Run("Dispatcher creates worker on signal", func(t *testing.T) {
		jobSvc.DispatcherChannel <- true
		waitFor(t, func() bool { return atomic.LoadInt64(&currentWorkerCount) >= 2 })
	})

	t.Run("Worker processes a job", func(t *testing.T) {
		jobSvc.JobChannel <- jobModel.Job{Id: "test-1", JobType: jobModel.JobTypeQuery}
		waitFor(t, func() bool {
			j, ok := store.GetJob(context.Background(), "test-1")
			return ok && j.Status == jobModel.JobStatusComplete
		})
		if got := atomic.LoadInt32(&mockRag.ProcessedCount); got != 1 {
			t.Errorf("Expected 1 job processed, got %d", got)
		}
	})

	t.Run("Failed job keeps its error status", func(t *testing.T) {
		jobSvc.JobChannel <- jobModel.Job{Id: "failing", JobType: jobModel.JobTypeQuery}
		waitFor(t, func() bool {
			j, ok := store.GetJob(context.Background(), "failing")
			return ok && j.Status != jobModel.JobStatusRunning
		})
		j, _ := store.GetJob(context.Background(), "failing")
		if j.Status != jobModel.JobStatusError || j.Error.ErrorCode != "EMBEDDING_FAILED" {
			t.Errorf("error status overwritten: %+v", j)
		}
		if j.EndTime.IsZero() {
			t.Error("EndTime not set")
		}
	})

	t.Run("Ingest jobs go to the ingest path", func(t *testing.T) {
		jobSvc.JobChannel <- jobModel.Job{Id: "ingest-1", JobType: jobModel.JobTypeIngest}
		waitFor(t, func() bool { return atomic.LoadInt32(&mockRag.IngestedCount) == 1 })
	})

	t.Run("Stop signal retires workers", func(t *testing.T) {
		close(stopChan)
		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("Workers did not stop within timeout")
		}
	})
}

func TestWorker_IdleTimeout(t *testing.T) {
	atomic.StoreInt64(&currentWorkerCount, 0)
	prevMin, prevIdle := atomic.LoadInt64(&minWorkerCount), idleTimeout
	atomic.StoreInt64(&minWorkerCount, 1)
	idleTimeout = 30 * time.Millisecond
	t.Cleanup(func() {
		atomic.StoreInt64(&minWorkerCount, prevMin)
		idleTimeout = prevIdle
	})
	logger = logger_i.NewLogger("TestWorkerPool")

	InitServices(&job.Service{JobChannel: make(chan jobModel.Job)}, &MockRagService{})
	workerWaitGroup = &sync.WaitGroup{}
	stopChan := make(chan bool)
	stopWorkerChannel = stopChan
	defer close(stopChan)

	createWorker()
	createWorker()
	// one retires, the last stays as the floor
	waitFor(t, func() bool { return atomic.LoadInt64(&currentWorkerCount) == 1 })
	time.Sleep(100 * time.Millisecond)
	if count := atomic.LoadInt64(&currentWorkerCount); count != 1 {
		t.Errorf("worker count should stay at the floor, got %d", count)
	}
}
