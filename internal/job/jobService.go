// Package job holds the queue shared by the HTTP handlers and the worker pool.
package job

import (
	"github.com/akolanti/HybridRAG/internal/config"
	"github.com/akolanti/HybridRAG/internal/domain/jobModel"
	"github.com/akolanti/HybridRAG/internal/domain/sessionModel"
)

type Service struct {
	JobChannel        chan jobModel.Job
	DispatcherChannel chan bool
	// RequestCount is only touched through sync/atomic.
	RequestCount int64
	JobStore     jobModel.JobStore
	Sessions     sessionModel.Store
}

type ServiceConfig struct {
	JobChannel        chan jobModel.Job
	DispatcherChannel chan bool
	JobStore          jobModel.JobStore
	Sessions          sessionModel.Store
}

// InitJobService allocates the queue and the dispatcher signal when the config leaves them nil.
func InitJobService(cfg ServiceConfig) *Service {
	if cfg.JobChannel == nil {
		cfg.JobChannel = make(chan jobModel.Job, config.BufferLimit)
	}
	if cfg.DispatcherChannel == nil {
		cfg.DispatcherChannel = make(chan bool, 1)
	}
	return &Service{
		JobChannel:        cfg.JobChannel,
		DispatcherChannel: cfg.DispatcherChannel,
		JobStore:          cfg.JobStore,
		Sessions:          cfg.Sessions,
	}
}

// QueueDepth is the number of jobs waiting for a worker.
func (s *Service) QueueDepth() int {
	return len(s.JobChannel)
}
