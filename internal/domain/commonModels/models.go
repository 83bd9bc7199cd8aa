package commonModels

import (
	"net/url"
	"strings"
)

type DocType string

const (
	DocTypeDocs      DocType = "docs"
	DocTypeDeveloper DocType = "developer"

	developerHost = "developer.atlan.com"
)

// DocTypeFor maps a source url onto the corpus it belongs to.
func DocTypeFor(sourceURL string) DocType {
	host := sourceURL
	if u, err := url.Parse(sourceURL); err == nil && u.Host != "" {
		host = u.Host
	}
	if strings.Contains(strings.ToLower(host), developerHost) {
		return DocTypeDeveloper
	}
	return DocTypeDocs
}

type Document struct {
	Id        string  `json:"id"`
	SourceURL string  `json:"source_url"`
	Title     string  `json:"title"`
	RawText   string  `json:"raw_text"`
	DocType   DocType `json:"doc_type"`
}

// Chunk is immutable once produced by the chunker.
type Chunk struct {
	ChunkId         string  `json:"chunk_id"`
	DocumentId      string  `json:"document_id"`
	SourceURL       string  `json:"source_url"`
	Title           string  `json:"title"`
	DocType         DocType `json:"doc_type"`
	Ordinal         int     `json:"chunk_index"`
	TotalChunks     int     `json:"total_chunks"`
	Text            string  `json:"text"`
	TokenCount      int     `json:"token_count"`
	OverlapWithPrev int     `json:"overlap_with_prev"`
	Oversized       bool    `json:"oversized"`
	ChunkMetadata
}

type ChunkMetadata struct {
	HasCode      bool    `json:"has_code"`
	HasHeaders   bool    `json:"has_headers"`
	HasTables    bool    `json:"has_tables"`
	WordCount    int     `json:"word_count"`
	QualityScore float64 `json:"quality_score"`
}

type SearchMethod string

const (
	MethodVector  SearchMethod = "vector"
	MethodKeyword SearchMethod = "keyword"
)

// SearchCandidate is one leg's view of a hit. Never persisted.
type SearchCandidate struct {
	ChunkId  string
	Method   SearchMethod
	RawScore float64
	Chunk    Chunk
}

type FusedResult struct {
	ChunkId        string         `json:"chunk_id"`
	FusedScore     float64        `json:"score"`
	VectorScore    float64        `json:"vector_score"`
	KeywordScore   float64        `json:"keyword_score"`
	MatchedMethods []SearchMethod `json:"matched_methods"`
	Chunk          Chunk          `json:"-"`
}

func (r FusedResult) MatchedBoth() bool {
	return len(r.MatchedMethods) > 1
}
