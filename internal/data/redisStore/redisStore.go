package redisStore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/akolanti/HybridRAG/internal/config"
	"github.com/akolanti/HybridRAG/pkg/logger_i"
	"github.com/redis/go-redis/v9"
)

var (
	instances = make(map[int]*Store)
	mu        sync.RWMutex
	logger    = logger_i.NewLogger("Redis Store")
	once      sync.Once
)

type Store struct {
	client *redis.Client
	Type   int
}

// GetRedisStore returns one shared client per redis DB number. It fails when redis does not
// answer a ping, callers fall back to their in-memory store.
func GetRedisStore(ctx context.Context, s config.Redis, dbType int) (*Store, error) {
	mu.RLock()
	instance, exists := instances[dbType]
	mu.RUnlock()

	if exists {
		return instance, nil
	}

	mu.Lock()
	defer mu.Unlock()

	if instance, exists = instances[dbType]; exists {
		return instance, nil
	}
	return createNewStore(ctx, s, dbType)
}

func closeRedisStores(ctx context.Context) {
	<-ctx.Done()
	logger.Info("Closing Redis Stores")
	mu.Lock()
	defer mu.Unlock()
	for db, store := range instances {
		if err := store.client.Close(); err != nil {
			logger.Error("Error closing redis client", "db", db, "error", err)
		}
		delete(instances, db)
	}
	logger.Info("Redis Store Closed successfully")
}

func createNewStore(ctx context.Context, s config.Redis, dbType int) (*Store, error) {
	newClient := redis.NewClient(&redis.Options{
		Addr:                  s.RedisAddr,
		Password:              s.RedisPassword,
		DB:                    dbType,
		ContextTimeoutEnabled: true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := newClient.Ping(pingCtx).Err(); err != nil {
		_ = newClient.Close()
		return nil, fmt.Errorf("redis %s db %d is offline: %w", s.RedisAddr, dbType, err)
	}

	logger.Info("Redis store init successfully", "addr", s.RedisAddr, "db", dbType)

	newStore := &Store{
		client: newClient,
		Type:   dbType,
	}

	instances[dbType] = newStore
	once.Do(func() {
		go closeRedisStores(ctx)
	})
	return newStore, nil
}

// NewTestStore wraps an existing client, used with miniredis in tests.
func NewTestStore(client *redis.Client) *Store {
	return &Store{client: client}
}
