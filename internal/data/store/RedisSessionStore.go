package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/akolanti/HybridRAG/internal/config"
	"github.com/akolanti/HybridRAG/internal/data/redisStore"
	"github.com/akolanti/HybridRAG/internal/domain/sessionModel"
	"github.com/akolanti/HybridRAG/internal/memory"
	"github.com/akolanti/HybridRAG/internal/metrics"
	"github.com/akolanti/HybridRAG/pkg/logger_i"
)

const sessionStatsKey = "session_stats"

// RedisSessionStore keeps conversational memory in redis so it survives restarts and is
// shared between replicas. Expiry is the key ttl, refreshed on every append.
type RedisSessionStore struct {
	store       *redisStore.Store
	timeout     time.Duration
	maxMessages int64
	logger      *logger_i.Logger
	now         func() time.Time
}

func GetRedisSessionStore(ctx context.Context, s config.Settings) (*RedisSessionStore, error) {
	rs, err := redisStore.GetRedisStore(ctx, s.Redis, config.RedisSessionStore)
	if err != nil {
		return nil, err
	}
	return NewRedisSessionStore(rs, s.SessionTimeout(), s.SessionMaxMessages), nil
}

func NewRedisSessionStore(rs *redisStore.Store, timeout time.Duration, maxMessages int) *RedisSessionStore {
	if maxMessages < 2 {
		maxMessages = 2
	}
	if maxMessages%2 != 0 {
		maxMessages--
	}
	return &RedisSessionStore{
		store:       rs,
		timeout:     timeout,
		maxMessages: int64(maxMessages),
		logger:      logger_i.NewLogger("Redis SessionStore"),
		now:         time.Now,
	}
}

func sessionKey(id string) string { return config.RedisSessionKeyPrefix + id }

func sessionMetaKey(id string) string { return sessionKey(id) + config.RedisSessionMetaSuffix }

func (s *RedisSessionStore) Append(ctx context.Context, sessionId string, userText string, assistantText string) error {
	now := s.now()
	user, err := json.Marshal(sessionModel.Message{Role: sessionModel.RoleUser, Text: userText, Timestamp: now})
	if err != nil {
		return err
	}
	assistant, err := json.Marshal(sessionModel.Message{Role: sessionModel.RoleAssistant, Text: assistantText, Timestamp: now})
	if err != nil {
		return err
	}

	before, err := s.store.AppendCapped(ctx, sessionKey(sessionId), sessionMetaKey(sessionId), s.maxMessages, s.timeout, now, user, assistant)
	if err != nil {
		return fmt.Errorf("append session %s: %w", sessionId, err)
	}
	if over := before - s.maxMessages; over > 0 {
		evicted := over / 2
		metrics.AddSessionEvents("evicted", int(evicted))
		if err := s.store.IncrBy(ctx, sessionStatsKey, evicted); err != nil {
			s.logger.WithTrace(ctx).Warn("could not record evictions", config.SESSION_ID_KEY, sessionId, "error", err)
		}
	}
	return nil
}

func (s *RedisSessionStore) ContextFor(ctx context.Context, sessionId string, maxPairs int) ([]sessionModel.Message, error) {
	if maxPairs <= 0 {
		maxPairs = memory.DefaultContextPairs
	}
	raw, err := s.store.ListTail(ctx, sessionKey(sessionId), int64(2*maxPairs))
	if err != nil {
		return nil, fmt.Errorf("read session %s: %w", sessionId, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]sessionModel.Message, 0, len(raw))
	for _, r := range raw {
		var m sessionModel.Message
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			s.logger.WithTrace(ctx).Warn("skipping corrupt session message", config.SESSION_ID_KEY, sessionId, "error", err)
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *RedisSessionStore) Clear(ctx context.Context, sessionId string) error {
	return s.store.Del(ctx, sessionKey(sessionId), sessionMetaKey(sessionId))
}

func (s *RedisSessionStore) Info(ctx context.Context, sessionId string) (sessionModel.Info, bool, error) {
	n, err := s.store.ListLen(ctx, sessionKey(sessionId))
	if err != nil {
		return sessionModel.Info{}, false, err
	}
	if n == 0 {
		return sessionModel.Info{}, false, nil
	}
	meta, err := s.store.HashGetAll(ctx, sessionMetaKey(sessionId))
	if err != nil {
		return sessionModel.Info{}, false, err
	}
	info := sessionModel.Info{
		Id:           sessionId,
		MessageCount: int(n),
		CreatedAt:    unixMilli(meta["created_at"]),
		LastActive:   unixMilli(meta["last_active"]),
	}
	ttl, err := s.store.TTL(ctx, sessionKey(sessionId))
	if err == nil && ttl > 0 {
		info.ExpiresAt = s.now().Add(ttl)
	} else {
		info.ExpiresAt = info.LastActive.Add(s.timeout)
	}
	return info, true, nil
}

func unixMilli(v string) time.Time {
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func (s *RedisSessionStore) ActiveSessions(ctx context.Context) ([]string, error) {
	keys, err := s.store.ScanKeys(ctx, config.RedisSessionKeyPrefix+"*")
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		if strings.HasSuffix(k, config.RedisSessionMetaSuffix) {
			continue
		}
		ids = append(ids, strings.TrimPrefix(k, config.RedisSessionKeyPrefix))
	}
	sort.Strings(ids)
	metrics.SetActiveSessions(len(ids))
	return ids, nil
}

// Stats scans every session. Expired sessions are dropped by redis itself, so ExpiredSwept stays 0.
func (s *RedisSessionStore) Stats(ctx context.Context) (sessionModel.Stats, error) {
	ids, err := s.ActiveSessions(ctx)
	if err != nil {
		return sessionModel.Stats{}, err
	}
	stats := sessionModel.Stats{ActiveSessions: len(ids)}
	for _, id := range ids {
		n, err := s.store.ListLen(ctx, sessionKey(id))
		if err != nil {
			return stats, err
		}
		stats.TotalMessages += int(n)
	}
	evicted, err := s.store.Get(ctx, sessionStatsKey)
	if err != nil && !s.store.IsNil(err) {
		return stats, err
	}
	stats.EvictedPairs, _ = strconv.ParseInt(evicted, 10, 64)
	return stats, nil
}
