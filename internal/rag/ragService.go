package rag

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/akolanti/HybridRAG/internal/config"
	"github.com/akolanti/HybridRAG/internal/domain/commonModels"
	"github.com/akolanti/HybridRAG/internal/domain/jobModel"
	"github.com/akolanti/HybridRAG/internal/domain/ragErrors"
	"github.com/akolanti/HybridRAG/internal/domain/sessionModel"
	"github.com/akolanti/HybridRAG/internal/metrics"
	"github.com/akolanti/HybridRAG/internal/rag/indexer"
	"github.com/akolanti/HybridRAG/internal/rag/ingest"
	"github.com/akolanti/HybridRAG/internal/rag/llm"
	"github.com/akolanti/HybridRAG/internal/rag/retriever"
	"github.com/akolanti/HybridRAG/internal/rag/rewriter"
	"github.com/akolanti/HybridRAG/internal/rag/vectorDB"
	"github.com/akolanti/HybridRAG/pkg/logger_i"
)

// Service is the only thing the worker, the HTTP handlers and the CLI see. The struct behind
// it stays private so callers cannot reach the clients it holds.
type Service interface {
	Search(ctx context.Context, query string, sessionID string) (SearchResponse, error)
	ProcessRequest(ctx context.Context, job jobModel.Job) jobModel.Job
	IngestDocument(ctx context.Context, job jobModel.Job) jobModel.Job
}

type Deps struct {
	Settings  config.Settings
	Retriever *retriever.Retriever
	Rewriter  rewriter.Rewriter
	Memory    sessionModel.Store
	LLM       llm.Provider
	Indexer   *indexer.Indexer
	// Cache is optional, nil turns the semantic answer cache off.
	Cache vectorDB.AnswerCache
}

type SearchResult struct {
	ChunkId        string                      `json:"chunk_id"`
	SourceURL      string                      `json:"source_url"`
	Title          string                      `json:"title"`
	Text           string                      `json:"text"`
	Score          float64                     `json:"score"`
	VectorScore    float64                     `json:"vector_score"`
	KeywordScore   float64                     `json:"keyword_score"`
	MatchedMethods []commonModels.SearchMethod `json:"matched_methods"`
}

type SearchResponse struct {
	Query             string                      `json:"query"`
	RewrittenQuery    string                      `json:"rewritten_query,omitempty"`
	Results           []SearchResult              `json:"results"`
	SearchMethodsUsed []commonModels.SearchMethod `json:"search_methods_used"`
	// Degraded carries error codes of recoverable failures, e.g. KEYWORD_SEARCH_FAILED.
	Degraded      []string               `json:"degraded,omitempty"`
	MemoryContext []sessionModel.Message `json:"memory_context"`
}

type service struct {
	settings  config.Settings
	retriever *retriever.Retriever
	rewriter  rewriter.Rewriter
	memory    sessionModel.Store
	llm       llm.Provider
	indexer   *indexer.Indexer
	cache     vectorDB.AnswerCache
	topics    map[string]struct{}
	logger    *logger_i.Logger
}

func NewService(d Deps) Service {
	rw := d.Rewriter
	if rw == nil {
		rw = rewriter.Passthrough{}
	}
	topics := make(map[string]struct{}, len(d.Settings.RagTopics))
	for _, t := range d.Settings.RagTopics {
		topics[strings.ToLower(t)] = struct{}{}
	}
	return &service{
		settings:  d.Settings,
		retriever: d.Retriever,
		rewriter:  rw,
		memory:    d.Memory,
		llm:       d.LLM,
		indexer:   d.Indexer,
		cache:     d.Cache,
		topics:    topics,
		logger:    logger_i.NewLogger("RAG Service"),
	}
}

// Search rewrites the query, runs the hybrid retriever and attaches the session's recent
// history. An empty session id means no memory context.
func (s *service) Search(ctx context.Context, query string, sessionID string) (SearchResponse, error) {
	resp, _, err := s.search(ctx, query, sessionID)
	return resp, err
}

func (s *service) search(ctx context.Context, query string, sessionID string) (SearchResponse, retriever.Outcome, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("search", time.Since(start)) }()

	// rewrite, both legs and the memory lookup share one request deadline
	ctx, cancel := context.WithTimeout(ctx, s.settings.RequestTimeout())
	defer cancel()

	query = strings.TrimSpace(query)
	resp := SearchResponse{Query: query, Results: []SearchResult{}, MemoryContext: []sessionModel.Message{}}
	if query == "" {
		return resp, retriever.Outcome{}, ragErrors.ErrEmptyQuery
	}

	rewritten := s.rewriter.Rewrite(ctx, query)
	if rewritten != query {
		resp.RewrittenQuery = rewritten
	}

	outcome, err := s.retriever.Search(ctx, rewritten, s.retriever.Defaults())
	if err != nil {
		return resp, outcome, err
	}
	resp.SearchMethodsUsed = outcome.MethodsUsed
	for _, d := range outcome.Degraded {
		resp.Degraded = append(resp.Degraded, ragErrors.Code(d))
	}
	for _, r := range outcome.Results {
		resp.Results = append(resp.Results, toSearchResult(r))
	}

	if sessionID != "" && s.memory != nil {
		history, err := s.memory.ContextFor(ctx, sessionID, s.settings.SessionContextPairs)
		if err != nil {
			// history is best effort, the search itself succeeded
			s.logger.WithTrace(ctx).Warn("memory context unavailable", config.SESSION_ID_KEY, sessionID, "error", err)
		} else if history != nil {
			resp.MemoryContext = history
		}
	}
	return resp, outcome, nil
}

// ProcessRequest answers a chat ticket, or routes it when its topics are outside the rag topics.
func (s *service) ProcessRequest(ctx context.Context, job jobModel.Job) jobModel.Job {
	loggr := s.logger.WithTrace(ctx).With("JobId", job.Id)
	job.CurrentStep = jobModel.RAGCall

	if topic, routed := s.routeFor(job.JobPayload.Topics); routed {
		loggr.Info("ticket routed", "topic", topic)
		job.JobPayload.Routed = true
		job.JobPayload.Answer = fmt.Sprintf(config.RoutedAnswerTemplate, topic)
		job.CurrentStep = jobModel.Routed
		return job
	}

	processContext, cancel := context.WithTimeout(ctx, s.settings.RequestTimeout())
	defer cancel()

	job = logOutput(job, jobModel.SearchCall, loggr)
	resp, outcome, err := s.search(processContext, job.JobPayload.Question, job.ChatId)
	if err != nil {
		return s.handOff(job, err, loggr)
	}
	job.JobPayload.Sources = uniqueSources(resp.Results)

	if len(resp.Results) == 0 {
		return s.complete(ctx, job, config.NoContextAnswer)
	}

	// cached answers ignore conversation state, so only standalone questions use them
	cacheable := s.cache != nil && len(resp.MemoryContext) == 0 && len(outcome.Embedding) > 0
	if cacheable {
		job = logOutput(job, jobModel.CacheCall, loggr)
		if answer, found := s.cachedAnswer(processContext, outcome.Embedding, loggr); found {
			return s.complete(ctx, job, answer)
		}
	}

	job = logOutput(job, jobModel.LLMCall, loggr)
	answer, err := s.generate(processContext, job.JobPayload.Question, resp)
	if err != nil {
		return s.jobError(job, err, "LLM_GENERATION_FAILURE", true)
	}

	if cacheable {
		s.saveToCache(ctx, outcome.Embedding, answer)
	}
	return s.complete(ctx, job, answer)
}

func (s *service) routeFor(topics []string) (string, bool) {
	if len(topics) == 0 {
		return "", false
	}
	for _, t := range topics {
		if _, ok := s.topics[strings.ToLower(strings.TrimSpace(t))]; ok {
			return "", false
		}
	}
	return topics[0], true
}

func (s *service) generate(ctx context.Context, question string, resp SearchResponse) (string, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("llm_generation", time.Since(start)) }()

	return s.llm.Complete(ctx, llm.CompletionRequest{
		System:      config.SystemPrompt,
		Prompt:      buildPrompt(question, resp.MemoryContext, resp.Results),
		Temperature: s.settings.LLMTemperature,
		MaxTokens:   s.settings.LLMMaxTokens,
	})
}

// IngestDocument indexes one uploaded file. The temporary upload is removed afterwards.
func (s *service) IngestDocument(ctx context.Context, job jobModel.Job) jobModel.Job {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("Document_ingestion", time.Since(start)) }()
	loggr := s.logger.WithTrace(ctx).With("JobId", job.Id)

	path := job.JobPayload.IngestURL
	job.CurrentStep = jobModel.IngestProcessing
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			loggr.Error("Error removing file", "path", path, "error", err)
		}
	}()

	doc, err := ingest.LoadFile(ctx, path)
	if err != nil {
		return s.jobError(job, err, "INGESTION_FAILURE", false)
	}
	doc = uploadedDocument(doc, path, job.JobPayload.IngestFileName)

	report, err := s.indexer.IngestDocuments(ctx, []commonModels.Document{doc}, indexer.ModeIncremental)
	job.JobPayload.IngestSummary = &jobModel.IngestSummary{
		Documents:      1,
		Chunks:         report.Total,
		Indexed:        report.Indexed,
		AlreadyPresent: report.AlreadyPresent,
		Skipped:        len(report.Skipped),
	}
	if err != nil {
		return s.jobError(job, err, "INGESTION_FAILURE", true)
	}
	loggr.Info("document ingested", "title", doc.Title, "indexed", report.Indexed, "skipped", len(report.Skipped))
	job.CurrentStep = jobModel.Complete
	return job
}

// uploadedDocument replaces the temp file name and file:// url with the name the user gave,
// so uploading the same document again maps onto the same chunk ids.
func uploadedDocument(doc commonModels.Document, path string, name string) commonModels.Document {
	if name == "" {
		return doc
	}
	base := filepath.Base(path)
	if doc.Title == strings.TrimSuffix(base, filepath.Ext(base)) {
		doc.Title = name
	}
	if strings.HasPrefix(doc.SourceURL, "file://") {
		doc.SourceURL = "upload://" + url.PathEscape(name)
		doc.Id = ingest.DocumentID(doc.SourceURL)
		doc.DocType = commonModels.DocTypeFor(doc.SourceURL)
	}
	return doc
}
