package vectorDB

import (
	"context"

	"github.com/akolanti/HybridRAG/internal/domain/commonModels"
)

// DistanceCosine is the only metric SCORE_THRESHOLD and fusion are calibrated for.
const DistanceCosine = "Cosine"

type CollectionInfo struct {
	Name       string `json:"name"`
	Dimensions int    `json:"dimensions"`
	Distance   string `json:"distance"`
	Points     uint64 `json:"points"`
}

// Backend is the semantic leg's storage. Vectors are cosine compared, Search returns
// candidates scored in [-1,1] filtered by threshold.
type Backend interface {
	EnsureCollection(ctx context.Context) error
	// Recreate drops every point, used by a full rebuild.
	Recreate(ctx context.Context) error
	Describe(ctx context.Context) (CollectionInfo, error)
	Upsert(ctx context.Context, chunks []commonModels.Chunk, vectors [][]float32) error
	Search(ctx context.Context, vector []float32, limit int, threshold float64) ([]commonModels.SearchCandidate, error)
	ExistingIDs(ctx context.Context) (map[string]struct{}, error)
	// Chunks returns every stored chunk, used to rebuild the in-process keyword index on startup.
	Chunks(ctx context.Context) ([]commonModels.Chunk, error)
}

// AnswerCache short-circuits repeated chat questions.
type AnswerCache interface {
	GetCachedAnswer(ctx context.Context, queryVector []float32) (string, bool, error)
	SaveToCache(ctx context.Context, id string, vector []float32, answer string) error
}
