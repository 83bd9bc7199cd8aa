package qdrantDB

import (
	"context"
	"time"

	"github.com/akolanti/HybridRAG/internal/config"
	"github.com/qdrant/go-client/qdrant"
)

const (
	cacheAnswerKey = "answer"
	cacheTimeKey   = "timestamp"
)

func (db *ClientHolder) initCacheCollection(ctx context.Context) {
	if err := createCollection(ctx, db.QObj, config.SemanticCacheCollection, db.dimension); err != nil {
		logger.WithTrace(ctx).Error("Semantic cache collection creation failed", "error", err)
	}
}

func (db *ClientHolder) resetCache(ctx context.Context) {
	if err := db.QObj.DeleteCollection(ctx, config.SemanticCacheCollection); err != nil {
		logger.WithTrace(ctx).Warn("Semantic cache collection drop failed", "error", err)
	}
	db.initCacheCollection(ctx)
}

// GetCachedAnswer returns the answer of the closest cached question when it is similar enough
// and younger than config.CacheMaxAge. Older entries are ignored so re-ingested docs take effect.
func (db *ClientHolder) GetCachedAnswer(ctx context.Context, queryVector []float32) (string, bool, error) {
	loggr := logger.WithTrace(ctx)
	oldest := float64(time.Now().Add(-config.CacheMaxAge).Unix())

	hits, err := db.QObj.Query(ctx, &qdrant.QueryPoints{
		CollectionName: config.SemanticCacheCollection,
		Query:          qdrant.NewQuery(queryVector...),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewRange(cacheTimeKey, &qdrant.Range{Gte: &oldest})},
		},
		Limit:          qdrant.PtrOf(uint64(1)),
		ScoreThreshold: qdrant.PtrOf(float32(config.CacheSimilarityCutoff)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		loggr.Error("Cache Query failed", "error", err)
		return "", false, err
	}
	if len(hits) == 0 {
		return "", false, nil
	}
	answer := hits[0].Payload[cacheAnswerKey].GetStringValue()
	if answer == "" {
		return "", false, nil
	}
	loggr.Info("semantic cache hit", "score", hits[0].Score)
	return answer, true, nil
}

func (db *ClientHolder) SaveToCache(ctx context.Context, id string, vector []float32, answer string) error {
	_, err := db.QObj.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: config.SemanticCacheCollection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewID(id),
			Vectors: qdrant.NewVectors(vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				cacheAnswerKey: answer,
				cacheTimeKey:   time.Now().Unix(),
			}),
		}},
	})
	if err != nil {
		logger.WithTrace(ctx).Error("Saving answer to cache failed", "error", err)
	}
	return err
}
