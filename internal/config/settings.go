package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/akolanti/HybridRAG/internal/domain/ragErrors"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Settings is the one typed configuration handed to every component constructor.
// Keys are flat so that TOP_K in the environment and top_k in a yaml file both land here.
type Settings struct {
	Retrieval `mapstructure:",squash"`
	Chunking  `mapstructure:",squash"`
	Session   `mapstructure:",squash"`
	Vector    `mapstructure:",squash"`
	Embedding `mapstructure:",squash"`
	LLM       `mapstructure:",squash"`
	Server    `mapstructure:",squash"`
	Redis     `mapstructure:",squash"`
	Log       `mapstructure:",squash"`
}

type Retrieval struct {
	TopK                   int      `mapstructure:"top_k" json:"top_k"`
	ScoreThreshold         float64  `mapstructure:"score_threshold" json:"score_threshold"`
	VectorWeight           float64  `mapstructure:"vector_weight" json:"vector_weight"`
	KeywordWeight          float64  `mapstructure:"keyword_weight" json:"keyword_weight"`
	CandidateMultiplier    int      `mapstructure:"candidate_multiplier" json:"candidate_multiplier"`
	EnableHybridSearch     bool     `mapstructure:"enable_hybrid_search" json:"enable_hybrid_search"`
	EnableQueryEnhancement bool     `mapstructure:"enable_query_enhancement" json:"enable_query_enhancement"`
	QueryRewriter          string   `mapstructure:"query_rewriter" json:"query_rewriter"`
	AcronymFile            string   `mapstructure:"acronym_file" json:"acronym_file"`
	KeywordBackend         string   `mapstructure:"keyword_backend" json:"keyword_backend"`
	RagTopics              []string `mapstructure:"rag_topics" json:"rag_topics"`
}

type Chunking struct {
	ChunkSize    int `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap" json:"chunk_overlap"`
}

type Session struct {
	SessionTimeoutMinutes       int    `mapstructure:"session_timeout_minutes" json:"session_timeout_minutes"`
	SessionMaxMessages          int    `mapstructure:"session_max_messages" json:"session_max_messages"`
	SessionContextPairs         int    `mapstructure:"session_context_pairs" json:"session_context_pairs"`
	SessionSweepIntervalSeconds int    `mapstructure:"session_sweep_interval_seconds" json:"session_sweep_interval_seconds"`
	SessionBackend              string `mapstructure:"session_backend" json:"session_backend"`
}

type Vector struct {
	VectorBackend  string `mapstructure:"vector_backend" json:"vector_backend"`
	CollectionName string `mapstructure:"collection_name" json:"collection_name"`
	QdrantHost     string `mapstructure:"qdrant_host" json:"qdrant_host"`
	QdrantPort     int    `mapstructure:"qdrant_port" json:"qdrant_port"`
	QdrantAPIKey   string `mapstructure:"qdrant_api_key" json:"-"`
}

type Embedding struct {
	EmbeddingProvider   string `mapstructure:"embedding_provider" json:"embedding_provider"`
	EmbeddingModel      string `mapstructure:"embedding_model" json:"embedding_model"`
	EmbeddingDimensions int    `mapstructure:"embedding_dimensions" json:"embedding_dimensions"`
	EmbedMaxRetries     int    `mapstructure:"embed_max_retries" json:"embed_max_retries"`
	EmbedBackoffMs      int    `mapstructure:"embed_backoff_ms" json:"embed_backoff_ms"`
	EmbedBatchSize      int    `mapstructure:"embed_batch_size" json:"embed_batch_size"`
	GoogleAPIKey        string `mapstructure:"google_api_key" json:"-"`
	OpenAIAPIKey        string `mapstructure:"openai_api_key" json:"-"`
}

type LLM struct {
	LLMProvider    string  `mapstructure:"llm_provider" json:"llm_provider"`
	LLMModel       string  `mapstructure:"llm_model" json:"llm_model"`
	LLMBaseURL     string  `mapstructure:"llm_base_url" json:"llm_base_url"`
	LLMTemperature float64 `mapstructure:"llm_temperature" json:"llm_temperature"`
	LLMMaxTokens   int     `mapstructure:"llm_max_tokens" json:"llm_max_tokens"`
}

type Server struct {
	ListenAddr            string   `mapstructure:"listen_addr" json:"listen_addr"`
	AuthToken             string   `mapstructure:"auth_token" json:"-"`
	AuthDisabled          bool     `mapstructure:"auth_disabled" json:"auth_disabled"`
	RequestTimeoutSeconds int      `mapstructure:"request_timeout_seconds" json:"request_timeout_seconds"`
	CORSOrigins           []string `mapstructure:"cors_origins" json:"cors_origins"`
}

type Redis struct {
	RedisAddr     string `mapstructure:"redis_addr" json:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password" json:"-"`
}

type Log struct {
	LogLevel  string `mapstructure:"log_level" json:"log_level"`
	LogFormat string `mapstructure:"log_format" json:"log_format"`
}

var DefaultRagTopics = []string{"How-to", "Product", "Best practices", "API/SDK", "SSO"}

var DefaultCORSOrigins = []string{"http://localhost:*", "http://127.0.0.1:*"}

var defaults = map[string]any{
	"top_k":                          5,
	"score_threshold":                0.3,
	"vector_weight":                  0.7,
	"keyword_weight":                 0.3,
	"candidate_multiplier":           3,
	"enable_hybrid_search":           true,
	"enable_query_enhancement":       false,
	"query_rewriter":                 "acronym",
	"acronym_file":                   "",
	"keyword_backend":                "bm25",
	"rag_topics":                     DefaultRagTopics,
	"chunk_size":                     1200,
	"chunk_overlap":                  200,
	"session_timeout_minutes":        60,
	"session_max_messages":           20,
	"session_context_pairs":          5,
	"session_sweep_interval_seconds": 300,
	"session_backend":                "memory",
	"vector_backend":                 "qdrant",
	"collection_name":                "support-docs",
	"qdrant_host":                    "localhost",
	"qdrant_port":                    6334,
	"qdrant_api_key":                 "",
	"embedding_provider":             "google",
	"embedding_model":                "gemini-embedding-001",
	"embedding_dimensions":           1536,
	"embed_max_retries":              3,
	"embed_backoff_ms":               500,
	"embed_batch_size":               50,
	"google_api_key":                 "",
	"openai_api_key":                 "",
	"llm_provider":                   "gemini",
	"llm_model":                      "gemini-2.5-flash-lite",
	"llm_base_url":                   "",
	"llm_temperature":                0.3,
	"llm_max_tokens":                 1000,
	"listen_addr":                    ":3000",
	"auth_token":                     "",
	"auth_disabled":                  false,
	"request_timeout_seconds":        30,
	"cors_origins":                   DefaultCORSOrigins,
	"redis_addr":                     "127.0.0.1:6379",
	"redis_password":                 "",
	"log_level":                      "debug",
	"log_format":                     "text",
}

// Load reads .env, an optional yaml file and the environment, in that order of precedence
// (environment wins). An empty path searches ./hybridrag.yaml and ./config/hybridrag.yaml.
func Load(path string) (Settings, error) {
	_ = godotenv.Load()

	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.SetConfigType("yaml")
	if path == "" {
		v.SetConfigName("hybridrag")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	} else {
		v.SetConfigFile(path)
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Settings{}, fmt.Errorf("read config: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("decode config: %w", err)
	}
	s.normalize()
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Default returns the built-in settings without touching files or the environment.
func Default() Settings {
	return Settings{
		Retrieval: Retrieval{TopK: 5, ScoreThreshold: 0.3, VectorWeight: 0.7, KeywordWeight: 0.3,
			CandidateMultiplier: 3, EnableHybridSearch: true, QueryRewriter: "acronym",
			KeywordBackend: "bm25", RagTopics: slices.Clone(DefaultRagTopics)},
		Chunking: Chunking{ChunkSize: 1200, ChunkOverlap: 200},
		Session: Session{SessionTimeoutMinutes: 60, SessionMaxMessages: 20, SessionContextPairs: 5,
			SessionSweepIntervalSeconds: 300, SessionBackend: "memory"},
		Vector: Vector{VectorBackend: "qdrant", CollectionName: "support-docs", QdrantHost: "localhost", QdrantPort: 6334},
		Embedding: Embedding{EmbeddingProvider: "google", EmbeddingModel: "gemini-embedding-001", EmbeddingDimensions: 1536,
			EmbedMaxRetries: 3, EmbedBackoffMs: 500, EmbedBatchSize: 50},
		LLM:    LLM{LLMProvider: "gemini", LLMModel: "gemini-2.5-flash-lite", LLMTemperature: 0.3, LLMMaxTokens: 1000},
		Server: Server{ListenAddr: ":3000", RequestTimeoutSeconds: 30, CORSOrigins: slices.Clone(DefaultCORSOrigins)},
		Redis:  Redis{RedisAddr: "127.0.0.1:6379"},
		Log:    Log{LogLevel: "debug", LogFormat: "text"},
	}
}

func (s *Settings) normalize() {
	s.QueryRewriter = strings.ToLower(strings.TrimSpace(s.QueryRewriter))
	s.KeywordBackend = strings.ToLower(strings.TrimSpace(s.KeywordBackend))
	s.SessionBackend = strings.ToLower(strings.TrimSpace(s.SessionBackend))
	s.VectorBackend = strings.ToLower(strings.TrimSpace(s.VectorBackend))
	s.EmbeddingProvider = strings.ToLower(strings.TrimSpace(s.EmbeddingProvider))
	s.LLMProvider = strings.ToLower(strings.TrimSpace(s.LLMProvider))
	var topics []string
	for _, t := range s.RagTopics {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	s.RagTopics = topics
}

// Validate rejects settings no component can run with. All problems are reported at once.
func (s Settings) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ragErrors.ErrInvalidConfig}, args...)...))
	}

	if s.TopK < 1 {
		bad("TOP_K must be at least 1, got %d", s.TopK)
	}
	if s.ScoreThreshold < 0 || s.ScoreThreshold > 1 {
		bad("SCORE_THRESHOLD must be within [0,1], got %v", s.ScoreThreshold)
	}
	if s.VectorWeight < 0 || s.KeywordWeight < 0 {
		bad("weights must be non-negative, got vector=%v keyword=%v", s.VectorWeight, s.KeywordWeight)
	}
	if s.EnableHybridSearch && s.VectorWeight == 0 && s.KeywordWeight == 0 {
		bad("VECTOR_WEIGHT and KEYWORD_WEIGHT cannot both be zero")
	}
	if !s.EnableHybridSearch && s.VectorWeight == 0 {
		bad("VECTOR_WEIGHT must be positive when hybrid search is disabled")
	}
	if s.CandidateMultiplier < 2 {
		bad("CANDIDATE_MULTIPLIER must be at least 2, got %d", s.CandidateMultiplier)
	}
	if s.ChunkSize < 1 {
		bad("CHUNK_SIZE must be positive, got %d", s.ChunkSize)
	}
	if s.ChunkOverlap < 0 || s.ChunkOverlap >= s.ChunkSize {
		bad("CHUNK_OVERLAP must be within [0, CHUNK_SIZE), got %d", s.ChunkOverlap)
	}
	if s.SessionTimeoutMinutes < 1 {
		bad("SESSION_TIMEOUT_MINUTES must be positive, got %d", s.SessionTimeoutMinutes)
	}
	if s.SessionMaxMessages < 2 || s.SessionMaxMessages%2 != 0 {
		bad("SESSION_MAX_MESSAGES must be an even number >= 2, got %d", s.SessionMaxMessages)
	}
	if s.SessionSweepIntervalSeconds < 1 {
		bad("SESSION_SWEEP_INTERVAL_SECONDS must be positive, got %d", s.SessionSweepIntervalSeconds)
	}
	if s.EmbeddingDimensions < 1 {
		bad("EMBEDDING_DIMENSIONS must be positive, got %d", s.EmbeddingDimensions)
	}
	if s.EmbedBatchSize < 1 {
		bad("EMBED_BATCH_SIZE must be positive, got %d", s.EmbedBatchSize)
	}
	if s.EmbedMaxRetries < 0 {
		bad("EMBED_MAX_RETRIES cannot be negative, got %d", s.EmbedMaxRetries)
	}
	if s.LLMMaxTokens < 1 {
		bad("LLM_MAX_TOKENS must be positive, got %d", s.LLMMaxTokens)
	}
	if s.RequestTimeoutSeconds < 1 {
		bad("REQUEST_TIMEOUT_SECONDS must be positive, got %d", s.RequestTimeoutSeconds)
	}

	oneOf := func(key, val string, allowed ...string) {
		if !slices.Contains(allowed, val) {
			bad("%s must be one of %v, got %q", key, allowed, val)
		}
	}
	oneOf("QUERY_REWRITER", s.QueryRewriter, "acronym", "llm")
	oneOf("KEYWORD_BACKEND", s.KeywordBackend, "bm25", "bleve")
	oneOf("SESSION_BACKEND", s.SessionBackend, "memory", "redis")
	oneOf("VECTOR_BACKEND", s.VectorBackend, "qdrant", "memory")
	oneOf("EMBEDDING_PROVIDER", s.EmbeddingProvider, "google", "openai")
	oneOf("LLM_PROVIDER", s.LLMProvider, "gemini", "openai", "compat")

	return errors.Join(errs...)
}

// Warnings flags settings that are legal but probably not intended.
func (s Settings) Warnings() []string {
	var w []string
	if s.EnableHybridSearch && s.VectorWeight == 0 {
		w = append(w, "VECTOR_WEIGHT is 0: semantic search has no influence on ranking")
	}
	if s.EnableHybridSearch && s.KeywordWeight == 0 {
		w = append(w, "KEYWORD_WEIGHT is 0: hybrid search behaves as vector-only")
	}
	if s.TopK > 10 {
		w = append(w, fmt.Sprintf("TOP_K=%d is high and may dilute the answer context", s.TopK))
	}
	if s.ScoreThreshold > 0.8 {
		w = append(w, fmt.Sprintf("SCORE_THRESHOLD=%.2f is strict and may return no results", s.ScoreThreshold))
	}
	if s.LLMTemperature > 1.5 {
		w = append(w, fmt.Sprintf("LLM_TEMPERATURE=%.2f may produce inconsistent answers", s.LLMTemperature))
	}
	if s.LLMMaxTokens < 200 {
		w = append(w, fmt.Sprintf("LLM_MAX_TOKENS=%d may truncate answers", s.LLMMaxTokens))
	}
	return w
}

func (s Settings) SessionTimeout() time.Duration {
	return time.Duration(s.SessionTimeoutMinutes) * time.Minute
}

func (s Settings) SweepInterval() time.Duration {
	return time.Duration(s.SessionSweepIntervalSeconds) * time.Second
}

func (s Settings) EmbedBackoff() time.Duration {
	return time.Duration(s.EmbedBackoffMs) * time.Millisecond
}

func (s Settings) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSeconds) * time.Second
}

// CandidateCount is how many results each leg fetches so fusion has room to reorder.
func (s Settings) CandidateCount(topK int) int {
	return topK * s.CandidateMultiplier
}
