package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/akolanti/HybridRAG/internal/config"
	"github.com/akolanti/HybridRAG/internal/data/redisStore"
	"github.com/akolanti/HybridRAG/internal/domain/jobModel"
	"github.com/akolanti/HybridRAG/pkg/logger_i"
)

const jobKeyPrefix = "job:"

type RedisJobStore struct {
	store  *redisStore.Store
	logger *logger_i.Logger
}

func GetRedisJobStore(ctx context.Context, s config.Redis) (*RedisJobStore, error) {
	rs, err := redisStore.GetRedisStore(ctx, s, config.RedisJobStore)
	if err != nil {
		return nil, err
	}
	return &RedisJobStore{store: rs, logger: logger_i.NewLogger("JobStore")}, nil
}

func (s *RedisJobStore) SaveJob(ctx context.Context, job jobModel.Job) error {
	log := s.logger.WithTrace(ctx).With("JobId", job.Id)
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", job.Id, err)
	}

	if err = s.store.Set(ctx, jobKeyPrefix+job.Id, data, config.RedisJobStoreTTL); err != nil {
		return err
	}
	log.Debug("Saved job to Redis", "status", job.Status)
	return nil
}

func (s *RedisJobStore) GetJob(ctx context.Context, jobId string) (jobModel.Job, bool) {
	var job jobModel.Job
	log := s.logger.WithTrace(ctx).With("JobId", jobId)
	val, err := s.store.Get(ctx, jobKeyPrefix+jobId)
	if s.store.IsNil(err) {
		return job, false
	} else if err != nil {
		log.Error("Error reading job from Redis", "error", err)
		return job, false
	}

	if err = json.Unmarshal([]byte(val), &job); err != nil {
		log.Error("Corrupt job record", "error", err)
		return job, false
	}
	return job, true
}

func (s *RedisJobStore) DeleteJob(ctx context.Context, jobID string) {
	if err := s.store.Del(ctx, jobKeyPrefix+jobID); err != nil {
		s.logger.WithTrace(ctx).Error("Error deleting job from Redis", "JobId", jobID, "error", err)
		return
	}
	s.logger.Debug("Job deleted from Redis", "JobId", jobID)
}

func TestJobStore(store *redisStore.Store) *RedisJobStore {
	return &RedisJobStore{
		store:  store,
		logger: logger_i.NewLogger("test redis"),
	}
}
