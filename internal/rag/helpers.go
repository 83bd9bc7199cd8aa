package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/akolanti/HybridRAG/internal/config"
	"github.com/akolanti/HybridRAG/internal/domain/commonModels"
	"github.com/akolanti/HybridRAG/internal/domain/jobModel"
	"github.com/akolanti/HybridRAG/internal/domain/ragErrors"
	"github.com/akolanti/HybridRAG/internal/domain/sessionModel"
	"github.com/akolanti/HybridRAG/internal/memory"
	"github.com/akolanti/HybridRAG/internal/metrics"
	"github.com/akolanti/HybridRAG/pkg/logger_i"
	"github.com/google/uuid"
)

func logOutput(job jobModel.Job, status jobModel.InternalStatus, log *logger_i.Logger) jobModel.Job {
	job.CurrentStep = status
	log.Debug("ProcessRequest", "Current Status", job.CurrentStep)
	return job
}

// complete stores the answer and appends the exchange to the session.
func (s *service) complete(ctx context.Context, job jobModel.Job, answer string) jobModel.Job {
	job.JobPayload.Answer = answer
	if s.memory != nil && job.ChatId != "" {
		job = logOutput(job, jobModel.MemoryCall, s.logger.WithTrace(ctx))
		if err := s.memory.Append(ctx, job.ChatId, job.JobPayload.Question, answer); err != nil {
			s.logger.WithTrace(ctx).Error("Failed to save chat history", config.SESSION_ID_KEY, job.ChatId, "error", err)
		}
	}
	job.CurrentStep = jobModel.Complete
	return job
}

func (s *service) jobError(job jobModel.Job, err error, message string, canRetry bool) jobModel.Job {
	s.logger.Error(message, "JobId", job.Id, "error", err)

	job.Error = jobModel.JobError{
		Code:      ragErrors.HTTPStatus(err),
		ErrorCode: ragErrors.Code(err),
		Message:   message,
		Retry:     canRetry,
	}
	job.Status = jobModel.JobStatusError
	job.CurrentStep = jobModel.Error
	return job
}

// handOff is the fallback when search itself failed: the ticket goes to a human and the
// typed error stays on the job for the status endpoint.
func (s *service) handOff(job jobModel.Job, err error, log *logger_i.Logger) jobModel.Job {
	log.Warn("search failed, routing ticket to a human", "error", err)
	retry := !errors.Is(err, ragErrors.ErrEmptyQuery)
	job = s.jobError(job, err, "SEARCH_FAILURE", retry)
	job.JobPayload.Routed = true
	job.JobPayload.Answer = config.HumanHandoffAnswer
	return job
}

func (s *service) cachedAnswer(ctx context.Context, vector []float32, log *logger_i.Logger) (string, bool) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("cache_lookup", time.Since(start)) }()

	answer, found, err := s.cache.GetCachedAnswer(ctx, vector)
	if err != nil {
		log.Warn("cache lookup failed", "error", err)
		return "", false
	}
	return answer, found
}

// saveToCache runs in the background and outlives the request context.
func (s *service) saveToCache(ctx context.Context, vector []float32, answer string) {
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.settings.RequestTimeout())
	go func() {
		defer cancel()
		if err := s.cache.SaveToCache(bg, uuid.NewString(), vector, answer); err != nil {
			s.logger.WithTrace(bg).Error("Failed to save to cache", "error", err)
		}
	}()
}

func toSearchResult(r commonModels.FusedResult) SearchResult {
	return SearchResult{
		ChunkId:        r.ChunkId,
		SourceURL:      r.Chunk.SourceURL,
		Title:          r.Chunk.Title,
		Text:           r.Chunk.Text,
		Score:          r.FusedScore,
		VectorScore:    r.VectorScore,
		KeywordScore:   r.KeywordScore,
		MatchedMethods: r.MatchedMethods,
	}
}

// uniqueSources keeps the first occurrence of each source url, in rank order.
func uniqueSources(results []SearchResult) []string {
	seen := make(map[string]struct{}, len(results))
	var out []string
	for _, r := range results {
		if r.SourceURL == "" {
			continue
		}
		if _, ok := seen[r.SourceURL]; ok {
			continue
		}
		seen[r.SourceURL] = struct{}{}
		out = append(out, r.SourceURL)
	}
	return out
}

func buildPrompt(question string, history []sessionModel.Message, results []SearchResult) string {
	var b strings.Builder
	if len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		b.WriteString(memory.FormatContext(history))
		b.WriteString("\n\n")
	}
	b.WriteString("Documentation passages:\n")
	for i, r := range results {
		fmt.Fprintf(&b, "[%d] %s (%s)\n%s\n\n", i+1, r.Title, r.SourceURL, strings.TrimSpace(r.Text))
	}
	b.WriteString("Question: ")
	b.WriteString(strings.TrimSpace(question))
	b.WriteString("\nAnswer:")
	return b.String()
}
