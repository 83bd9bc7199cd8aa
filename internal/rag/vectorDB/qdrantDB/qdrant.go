package qdrantDB

import (
	"context"
	"errors"
	"fmt"

	"github.com/akolanti/HybridRAG/internal/config"
	"github.com/akolanti/HybridRAG/internal/domain/commonModels"
	"github.com/akolanti/HybridRAG/internal/rag/vectorDB"
	"github.com/akolanti/HybridRAG/pkg/logger_i"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
)

var logger = logger_i.NewLogger("Qdrant")

type ClientHolder struct {
	QObj       *qdrant.Client
	collection string
	dimension  uint64
}

var _ vectorDB.Backend = (*ClientHolder)(nil)
var _ vectorDB.AnswerCache = (*ClientHolder)(nil)

// NewClient dials qdrant over gRPC and makes sure both the chunk and cache collections exist.
// The client is closed when ctx is done.
func NewClient(ctx context.Context, s config.Settings) (*ClientHolder, error) {
	keepAlive := grpc.WithKeepaliveParams(keepalive.ClientParameters{
		Time:                config.QdrantKeepAlive,
		Timeout:             config.QdrantKeepAlive / 3,
		PermitWithoutStream: true,
	})
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:        s.QdrantHost,
		Port:        s.QdrantPort,
		APIKey:      s.QdrantAPIKey,
		UseTLS:      config.QdrantUseTLS,
		PoolSize:    uint(config.QdrantPoolSize),
		GrpcOptions: []grpc.DialOption{keepAlive},
	})
	if err != nil {
		return nil, fmt.Errorf("could not instantiate qdrant client: %w", err)
	}

	db := &ClientHolder{
		QObj:       client,
		collection: s.CollectionName,
		dimension:  uint64(s.EmbeddingDimensions),
	}
	if err := db.EnsureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	db.initCacheCollection(ctx)
	go closeQdrant(ctx, client)
	return db, nil
}

func closeQdrant(ctx context.Context, qi *qdrant.Client) {
	<-ctx.Done()
	logger.Info("Shutting down Qdrant")
	err := qi.Close()
	if err != nil {
		logger.Error("could not close Qdrant: ", "error:", err)
	}
	logger.Info("Closed Qdrant")
}

func (db *ClientHolder) EnsureCollection(ctx context.Context) error {
	return createCollection(ctx, db.QObj, db.collection, db.dimension)
}

func (db *ClientHolder) Recreate(ctx context.Context) error {
	exists, err := db.QObj.CollectionExists(ctx, db.collection)
	if err != nil {
		return err
	}
	if exists {
		if err := db.QObj.DeleteCollection(ctx, db.collection); err != nil {
			return fmt.Errorf("drop collection %s: %w", db.collection, err)
		}
	}
	if err := db.EnsureCollection(ctx); err != nil {
		return err
	}
	logger.WithTrace(ctx).Info("collection recreated", "collection", db.collection)
	// answers cached against the old documents are no longer trustworthy
	db.resetCache(ctx)
	return nil
}

func (db *ClientHolder) Describe(ctx context.Context) (vectorDB.CollectionInfo, error) {
	info, err := db.QObj.GetCollectionInfo(ctx, db.collection)
	if err != nil {
		return vectorDB.CollectionInfo{}, err
	}
	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	return vectorDB.CollectionInfo{
		Name:       db.collection,
		Dimensions: int(params.GetSize()),
		Distance:   params.GetDistance().String(),
		Points:     info.GetPointsCount(),
	}, nil
}

func (db *ClientHolder) Search(ctx context.Context, vectorFloat []float32, limit int, threshold float64) ([]commonModels.SearchCandidate, error) {
	loggr := logger.WithTrace(ctx)
	result, err := db.QObj.Query(ctx, &qdrant.QueryPoints{
		CollectionName: db.collection,
		Query:          qdrant.NewQuery(vectorFloat...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		ScoreThreshold: qdrant.PtrOf(float32(threshold)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		loggr.Error("Error querying Qdrant: ", "error:", err)
		return nil, err
	}

	candidates := make([]commonModels.SearchCandidate, 0, len(result))
	for _, hit := range result {
		ch := chunkFromPayload(hit.GetId().GetUuid(), hit.Payload)
		candidates = append(candidates, commonModels.SearchCandidate{
			ChunkId:  ch.ChunkId,
			Method:   commonModels.MethodVector,
			RawScore: float64(hit.Score),
			Chunk:    ch,
		})
	}
	loggr.Debug("vector matches", "count", len(candidates))
	return candidates, nil
}

func (db *ClientHolder) Upsert(ctx context.Context, chunks []commonModels.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("mismatch: got %d chunks but %d vectors", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}

	qdrantPoints := make([]*qdrant.PointStruct, len(chunks))
	for i, chunk := range chunks {
		qdrantPoints[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(chunk.ChunkId),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(payloadFor(chunk)),
		}
	}

	_, err := db.QObj.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: db.collection,
		Points:         qdrantPoints,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert failed: %w", err)
	}
	return nil
}

func (db *ClientHolder) ExistingIDs(ctx context.Context) (map[string]struct{}, error) {
	ids := make(map[string]struct{})
	err := db.scroll(ctx, false, func(p *qdrant.RetrievedPoint) {
		ids[p.GetId().GetUuid()] = struct{}{}
	})
	return ids, err
}

func (db *ClientHolder) Chunks(ctx context.Context) ([]commonModels.Chunk, error) {
	var chunks []commonModels.Chunk
	err := db.scroll(ctx, true, func(p *qdrant.RetrievedPoint) {
		chunks = append(chunks, chunkFromPayload(p.GetId().GetUuid(), p.Payload))
	})
	return chunks, err
}

func (db *ClientHolder) scroll(ctx context.Context, withPayload bool, visit func(*qdrant.RetrievedPoint)) error {
	var offset *qdrant.PointId
	for {
		points, next, err := db.QObj.ScrollAndOffset(ctx, &qdrant.ScrollPoints{
			CollectionName: db.collection,
			Offset:         offset,
			Limit:          qdrant.PtrOf(uint32(config.QdrantScrollPageSize)),
			WithPayload:    qdrant.NewWithPayload(withPayload),
		})
		if err != nil {
			return fmt.Errorf("qdrant scroll: %w", err)
		}
		for _, p := range points {
			visit(p)
		}
		if next == nil || len(points) == 0 {
			return nil
		}
		offset = next
	}
}

func payloadFor(chunk commonModels.Chunk) map[string]any {
	return map[string]any{
		"text":          chunk.Text,
		"source_url":    chunk.SourceURL,
		"title":         chunk.Title,
		"doc_type":      string(chunk.DocType),
		"document_id":   chunk.DocumentId,
		"chunk_index":   int64(chunk.Ordinal),
		"total_chunks":  int64(chunk.TotalChunks),
		"token_count":   int64(chunk.TokenCount),
		"overlap":       int64(chunk.OverlapWithPrev),
		"oversized":     chunk.Oversized,
		"has_code":      chunk.HasCode,
		"has_headers":   chunk.HasHeaders,
		"has_tables":    chunk.HasTables,
		"word_count":    int64(chunk.WordCount),
		"quality_score": chunk.QualityScore,
	}
}

func chunkFromPayload(id string, p map[string]*qdrant.Value) commonModels.Chunk {
	return commonModels.Chunk{
		ChunkId:         id,
		DocumentId:      p["document_id"].GetStringValue(),
		SourceURL:       p["source_url"].GetStringValue(),
		Title:           p["title"].GetStringValue(),
		DocType:         commonModels.DocType(p["doc_type"].GetStringValue()),
		Ordinal:         int(p["chunk_index"].GetIntegerValue()),
		TotalChunks:     int(p["total_chunks"].GetIntegerValue()),
		Text:            p["text"].GetStringValue(),
		TokenCount:      int(p["token_count"].GetIntegerValue()),
		OverlapWithPrev: int(p["overlap"].GetIntegerValue()),
		Oversized:       p["oversized"].GetBoolValue(),
		ChunkMetadata: commonModels.ChunkMetadata{
			HasCode:      p["has_code"].GetBoolValue(),
			HasHeaders:   p["has_headers"].GetBoolValue(),
			HasTables:    p["has_tables"].GetBoolValue(),
			WordCount:    int(p["word_count"].GetIntegerValue()),
			QualityScore: p["quality_score"].GetDoubleValue(),
		},
	}
}

func createCollection(ctx context.Context, client *qdrant.Client, collectionName string, dimension uint64) error {
	if collectionName == "" {
		return errors.New("empty collection name")
	}

	exists, err := client.CollectionExists(ctx, collectionName)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	return client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
}
