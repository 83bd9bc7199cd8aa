package store

import (
	"context"
	"sync"
	"time"

	"github.com/akolanti/HybridRAG/internal/config"
	"github.com/akolanti/HybridRAG/internal/domain/jobModel"
	"github.com/akolanti/HybridRAG/pkg/logger_i"
)

var inMemLogger = logger_i.NewLogger("InMem JobStore")

type storedJob struct {
	job     jobModel.Job
	savedAt time.Time
}

// InMemoryJobStore backs the job queue when redis is offline. Jobs are kept for the same
// retention as the redis store and dropped lazily on read.
type InMemoryJobStore struct {
	mu        sync.RWMutex
	jobs      map[string]storedJob
	retention time.Duration
	now       func() time.Time
}

func InitInMemoryJobStore() *InMemoryJobStore {
	return NewInMemoryJobStore(config.RedisJobStoreTTL, time.Now)
}

func NewInMemoryJobStore(retention time.Duration, now func() time.Time) *InMemoryJobStore {
	return &InMemoryJobStore{
		jobs:      make(map[string]storedJob),
		retention: retention,
		now:       now,
	}
}

func (s *InMemoryJobStore) SaveJob(ctx context.Context, job jobModel.Job) error {
	s.mu.Lock()
	s.jobs[job.Id] = storedJob{job: job, savedAt: s.now()}
	s.mu.Unlock()
	inMemLogger.WithTrace(ctx).Debug("Saved job to store", "JobId", job.Id, "status", job.Status)
	return nil
}

func (s *InMemoryJobStore) GetJob(ctx context.Context, jobId string) (jobModel.Job, bool) {
	s.mu.RLock()
	entry, found := s.jobs[jobId]
	s.mu.RUnlock()
	if !found {
		return jobModel.Job{}, false
	}
	if s.retention > 0 && s.now().Sub(entry.savedAt) > s.retention {
		s.DeleteJob(ctx, jobId)
		return jobModel.Job{}, false
	}
	return entry.job, true
}

func (s *InMemoryJobStore) DeleteJob(ctx context.Context, jobID string) {
	s.mu.Lock()
	delete(s.jobs, jobID)
	s.mu.Unlock()
}

// Len counts stored jobs, expired ones included until they are read.
func (s *InMemoryJobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
