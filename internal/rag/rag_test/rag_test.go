package rag_test

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/akolanti/HybridRAG/internal/config"
	"github.com/akolanti/HybridRAG/internal/domain/commonModels"
	"github.com/akolanti/HybridRAG/internal/domain/jobModel"
	"github.com/akolanti/HybridRAG/internal/domain/ragErrors"
	"github.com/akolanti/HybridRAG/internal/memory"
	"github.com/akolanti/HybridRAG/internal/rag"
	"github.com/akolanti/HybridRAG/internal/rag/indexer"
	"github.com/akolanti/HybridRAG/internal/rag/keyword"
	"github.com/akolanti/HybridRAG/internal/rag/llm"
	"github.com/akolanti/HybridRAG/internal/rag/retriever"
	"github.com/akolanti/HybridRAG/internal/rag/rewriter"
)

type harness struct {
	svc     rag.Service
	vec     *MockVectorDB
	emb     *MockEmbedder
	llm     *MockLLM
	kw      *keyword.BM25
	memory  *memory.Manager
	setting config.Settings
}

func chunk(id, url, title, text string) commonModels.Chunk {
	return commonModels.Chunk{ChunkId: id, SourceURL: url, Title: title, Text: text}
}

func newHarness(t *testing.T, mutate func(s *config.Settings)) *harness {
	t.Helper()
	s := config.Default()
	s.EmbeddingDimensions = MockDimensions
	if mutate != nil {
		mutate(&s)
	}
	h := &harness{
		vec:     &MockVectorDB{},
		emb:     &MockEmbedder{},
		llm:     &MockLLM{},
		kw:      keyword.NewBM25(),
		memory:  memory.NewManager(memory.OptionsFrom(s), nil),
		setting: s,
	}
	h.vec.OnSearch = func(ctx context.Context, v []float32, limit int, threshold float64) ([]commonModels.SearchCandidate, error) {
		return []commonModels.SearchCandidate{
			{ChunkId: "c1", Method: commonModels.MethodVector, RawScore: 0.9, Chunk: chunk("c1", "https://docs.atlan.com/sso", "SSO", "Enable SSO from the admin center.")},
			{ChunkId: "c2", Method: commonModels.MethodVector, RawScore: 0.6, Chunk: chunk("c2", "https://docs.atlan.com/sso", "SSO", "Okta needs a SAML app.")},
		}, nil
	}
	_ = h.kw.Add([]commonModels.Chunk{
		chunk("c2", "https://docs.atlan.com/sso", "SSO", "Okta needs a SAML app."),
		chunk("c3", "https://docs.atlan.com/okta", "Okta groups", "Okta groups map to personas."),
	})
	rw, err := rewriter.New(s, h.llm)
	if err != nil {
		t.Fatal(err)
	}
	h.svc = rag.NewService(rag.Deps{
		Settings:  s,
		Retriever: retriever.New(h.emb, h.vec, h.kw, s),
		Rewriter:  rw,
		Memory:    h.memory,
		LLM:       h.llm,
		Indexer:   indexer.New(h.emb, h.vec, h.kw, s),
		Cache:     h.vec,
	})
	return h
}

func traceCtx() context.Context {
	return context.WithValue(context.Background(), config.TRACE_ID_KEY, "test-trace")
}

func TestSearch_ResultsAndMemory(t *testing.T) {
	h := newHarness(t, nil)
	ctx := traceCtx()
	_ = h.memory.Append(ctx, "sess-1", "what is a persona?", "A persona groups access policies.")

	resp, err := h.svc.Search(ctx, "okta groups", "sess-1")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !reflect.DeepEqual(resp.SearchMethodsUsed, []commonModels.SearchMethod{"vector", "keyword"}) {
		t.Errorf("methods %v", resp.SearchMethodsUsed)
	}
	if len(resp.Results) != 3 {
		t.Fatalf("expected fused results from both legs, got %d", len(resp.Results))
	}
	for i := 1; i < len(resp.Results); i++ {
		if resp.Results[i].Score > resp.Results[i-1].Score {
			t.Errorf("results not ordered by score at %d", i)
		}
	}
	if len(resp.MemoryContext) != 2 || resp.MemoryContext[0].Text != "what is a persona?" {
		t.Errorf("memory context %v", resp.MemoryContext)
	}

	resp, _ = h.svc.Search(ctx, "okta groups", "")
	if len(resp.MemoryContext) != 0 {
		t.Error("empty session id must give empty memory context")
	}
}

func TestSearch_RewriteAndFailures(t *testing.T) {
	h := newHarness(t, func(s *config.Settings) { s.EnableQueryEnhancement = true })
	var embedded string
	h.emb.OnEmbed = func(ctx context.Context, text string) ([]float32, error) {
		embedded = text
		return []float32{1, 0, 0}, nil
	}
	resp, err := h.svc.Search(traceCtx(), "SSO setup", "")
	if err != nil {
		t.Fatal(err)
	}
	if resp.RewrittenQuery != "SSO (single sign-on) setup" || embedded != resp.RewrittenQuery {
		t.Errorf("rewritten %q, embedded %q", resp.RewrittenQuery, embedded)
	}

	h.vec.OnSearch = func(ctx context.Context, v []float32, limit int, threshold float64) ([]commonModels.SearchCandidate, error) {
		return nil, errors.New("qdrant down")
	}
	if _, err := h.svc.Search(traceCtx(), "SSO", ""); !errors.Is(err, ragErrors.ErrIndexUnavailable) {
		t.Errorf("want ErrIndexUnavailable, got %v", err)
	}
	if _, err := h.svc.Search(traceCtx(), " ", ""); !errors.Is(err, ragErrors.ErrEmptyQuery) {
		t.Errorf("want ErrEmptyQuery, got %v", err)
	}
}

func TestSearch_BoundedByRequestTimeout(t *testing.T) {
	h := newHarness(t, func(s *config.Settings) { s.RequestTimeoutSeconds = 1 })
	var hadDeadline bool
	h.emb.OnEmbed = func(ctx context.Context, text string) ([]float32, error) {
		_, hadDeadline = ctx.Deadline()
		<-ctx.Done()
		return nil, ctx.Err()
	}

	start := time.Now()
	_, err := h.svc.Search(context.Background(), "how do I set up okta", "")
	if err == nil {
		t.Fatal("a stalled embedder should fail the search")
	}
	if !hadDeadline {
		t.Error("search should pass a deadline to the providers")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("search ran for %v, want about the 1s request timeout", elapsed)
	}
}

func TestProcessRequest_Scenarios(t *testing.T) {
	tests := []struct {
		name           string
		question       string
		topics         []string
		setupMocks     func(h *harness)
		expectedStep   jobModel.InternalStatus
		expectedStatus jobModel.JobStatus
		expectedAnswer string
		expectedRouted bool
		expectedCode   int
	}{
		{
			name:           "Success_Full_Flow",
			topics:         []string{"SSO"},
			expectedStep:   jobModel.Complete,
			expectedStatus: jobModel.JobStatusQueued,
			expectedAnswer: "final answer",
			setupMocks: func(h *harness) {
				h.llm.OnComplete = func(ctx context.Context, req llm.CompletionRequest) (string, error) {
					return "final answer", nil
				}
			},
		},
		{
			name:           "No_Topics_Is_Answered",
			expectedStep:   jobModel.Complete,
			expectedStatus: jobModel.JobStatusQueued,
			expectedAnswer: "mocked llm response",
		},
		{
			name:           "Routed_Topic",
			topics:         []string{"Connector", "Lineage"},
			expectedStep:   jobModel.Routed,
			expectedStatus: jobModel.JobStatusQueued,
			expectedAnswer: "This ticket has been classified as a Connector issue and routed to the appropriate team.",
			expectedRouted: true,
		},
		{
			name:           "Success_Cache_Hit",
			expectedStep:   jobModel.Complete,
			expectedStatus: jobModel.JobStatusQueued,
			expectedAnswer: "cached answer",
			setupMocks: func(h *harness) {
				h.vec.OnGetCachedAnswer = func(ctx context.Context, emb []float32) (string, bool, error) {
					return "cached answer", true, nil
				}
				h.llm.OnComplete = func(ctx context.Context, req llm.CompletionRequest) (string, error) {
					return "", errors.New("llm must not be called on a cache hit")
				}
			},
		},
		{
			name:           "No_Results",
			question:       "billing invoices",
			expectedStep:   jobModel.Complete,
			expectedStatus: jobModel.JobStatusQueued,
			expectedAnswer: config.NoContextAnswer,
			setupMocks: func(h *harness) {
				h.vec.OnSearch = func(ctx context.Context, v []float32, limit int, threshold float64) ([]commonModels.SearchCandidate, error) {
					return nil, nil
				}
			},
		},
		{
			name:           "Failure_Vector_Search_Hands_Off",
			expectedStep:   jobModel.Error,
			expectedStatus: jobModel.JobStatusError,
			expectedAnswer: config.HumanHandoffAnswer,
			expectedRouted: true,
			expectedCode:   http.StatusServiceUnavailable,
			setupMocks: func(h *harness) {
				h.vec.OnSearch = func(ctx context.Context, v []float32, limit int, threshold float64) ([]commonModels.SearchCandidate, error) {
					return nil, errors.New("db timeout")
				}
			},
		},
		{
			name:           "Failure_Embedding_Hands_Off",
			expectedStep:   jobModel.Error,
			expectedStatus: jobModel.JobStatusError,
			expectedAnswer: config.HumanHandoffAnswer,
			expectedRouted: true,
			expectedCode:   http.StatusBadGateway,
			setupMocks: func(h *harness) {
				h.emb.OnEmbed = func(ctx context.Context, text string) ([]float32, error) {
					return nil, errors.New("api limit")
				}
			},
		},
		{
			name:           "Failure_LLM_Generation",
			expectedStep:   jobModel.Error,
			expectedStatus: jobModel.JobStatusError,
			expectedCode:   http.StatusInternalServerError,
			setupMocks: func(h *harness) {
				h.llm.OnComplete = func(ctx context.Context, req llm.CompletionRequest) (string, error) {
					return "", errors.New("provider down")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			if tt.setupMocks != nil {
				tt.setupMocks(h)
			}
			question := tt.question
			if question == "" {
				question = "How do I set up Okta SSO?"
			}
			job := jobModel.Job{
				Id:         "job-1",
				ChatId:     "chat-1",
				Status:     jobModel.JobStatusQueued,
				JobPayload: jobModel.JobPayload{Question: question, Topics: tt.topics},
			}
			got := h.svc.ProcessRequest(traceCtx(), job)

			if got.CurrentStep != tt.expectedStep {
				t.Errorf("step = %s, want %s", got.CurrentStep, tt.expectedStep)
			}
			if got.Status != tt.expectedStatus {
				t.Errorf("status = %s, want %s", got.Status, tt.expectedStatus)
			}
			if tt.expectedAnswer != "" && got.JobPayload.Answer != tt.expectedAnswer {
				t.Errorf("answer = %q, want %q", got.JobPayload.Answer, tt.expectedAnswer)
			}
			if got.JobPayload.Routed != tt.expectedRouted {
				t.Errorf("routed = %v", got.JobPayload.Routed)
			}
			if got.Error.Code != tt.expectedCode {
				t.Errorf("error code = %d, want %d", got.Error.Code, tt.expectedCode)
			}
		})
	}
}

func TestProcessRequest_PromptSourcesAndMemory(t *testing.T) {
	h := newHarness(t, nil)
	ctx := traceCtx()
	_ = h.memory.Append(ctx, "chat-1", "Do you support Okta?", "Yes, through SAML.")

	got := h.svc.ProcessRequest(ctx, jobModel.Job{
		Id:         "job-2",
		ChatId:     "chat-1",
		JobPayload: jobModel.JobPayload{Question: "How do I set up Okta SSO?", Topics: []string{"sso"}},
	})
	if got.Status == jobModel.JobStatusError {
		t.Fatalf("unexpected error %+v", got.Error)
	}

	if !reflect.DeepEqual(got.JobPayload.Sources, []string{"https://docs.atlan.com/sso", "https://docs.atlan.com/okta"}) {
		t.Errorf("sources should be unique in rank order, got %v", got.JobPayload.Sources)
	}

	req := h.llm.LastRequest()
	if req.System != config.SystemPrompt {
		t.Error("system prompt not set")
	}
	for _, want := range []string{"User: Do you support Okta?", "[1] ", "[2] ", "Question: How do I set up Okta SSO?"} {
		if !strings.Contains(req.Prompt, want) {
			t.Errorf("prompt is missing %q:\n%s", want, req.Prompt)
		}
	}
	if req.Temperature != h.setting.LLMTemperature || req.MaxTokens != h.setting.LLMMaxTokens {
		t.Errorf("generation settings not applied: %+v", req)
	}

	history, _ := h.memory.ContextFor(ctx, "chat-1", 10)
	if len(history) != 4 || history[2].Text != "How do I set up Okta SSO?" || history[3].Text != "mocked llm response" {
		t.Errorf("exchange not appended to memory: %v", history)
	}
}

func TestProcessRequest_SavesToCache(t *testing.T) {
	h := newHarness(t, nil)
	saved := make(chan string, 1)
	h.vec.OnSaveToCache = func(ctx context.Context, id string, v []float32, answer string) error {
		saved <- answer
		return nil
	}
	h.svc.ProcessRequest(traceCtx(), jobModel.Job{Id: "job-3", JobPayload: jobModel.JobPayload{Question: "okta"}})

	select {
	case answer := <-saved:
		if answer != "mocked llm response" {
			t.Errorf("cached %q", answer)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("answer was not written to the cache")
	}
}

func TestIngestDocument(t *testing.T) {
	h := newHarness(t, nil)
	dir := t.TempDir()
	path := filepath.Join(dir, "1700000000-okta.md")
	body := "# Okta SSO\n\nCreate a SAML application in Okta and paste the metadata url into the admin center."
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	job := jobModel.Job{Id: "ingest-1", JobType: jobModel.JobTypeIngest, JobPayload: jobModel.JobPayload{IngestFileName: "okta.md", IngestURL: path}}
	got := h.svc.IngestDocument(traceCtx(), job)
	if got.Status == jobModel.JobStatusError {
		t.Fatalf("ingest failed: %+v", got.Error)
	}
	sum := got.JobPayload.IngestSummary
	if sum == nil || sum.Chunks != 1 || sum.Indexed != 1 || sum.Skipped != 0 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("uploaded file should be removed after ingestion")
	}
	for _, c := range h.vec.Stored {
		if c.SourceURL != "upload://okta.md" || c.Title != "Okta SSO" {
			t.Errorf("unexpected stored chunk %+v", c)
		}
	}
	if hits, _ := h.kw.Search(context.Background(), "metadata url", 5); len(hits) == 0 {
		t.Error("ingested chunk should be keyword searchable")
	}

	// same upload again is fully incremental
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	got = h.svc.IngestDocument(traceCtx(), job)
	if got.JobPayload.IngestSummary.AlreadyPresent != 1 || got.JobPayload.IngestSummary.Indexed != 0 {
		t.Errorf("re-upload should be skipped, got %+v", got.JobPayload.IngestSummary)
	}

	got = h.svc.IngestDocument(traceCtx(), jobModel.Job{Id: "ingest-2", JobPayload: jobModel.JobPayload{IngestURL: filepath.Join(dir, "missing.md")}})
	if got.Status != jobModel.JobStatusError {
		t.Error("missing file should fail the job")
	}
}
