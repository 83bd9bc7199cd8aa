// Package memory keeps short-lived conversation history per session. Nothing here survives a
// restart; the redis session store in internal/data/store is the shared alternative.
package memory

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/akolanti/HybridRAG/internal/config"
	"github.com/akolanti/HybridRAG/internal/domain/sessionModel"
	"github.com/akolanti/HybridRAG/internal/metrics"
	"github.com/akolanti/HybridRAG/pkg/logger_i"
)

const (
	shardCount          = 32
	DefaultContextPairs = 5
)

var logger = logger_i.NewLogger("memory")

type Clock func() time.Time

type Options struct {
	Timeout       time.Duration
	MaxMessages   int
	SweepInterval time.Duration
	ContextPairs  int
}

func OptionsFrom(s config.Settings) Options {
	return Options{
		Timeout:       s.SessionTimeout(),
		MaxMessages:   s.SessionMaxMessages,
		SweepInterval: s.SweepInterval(),
		ContextPairs:  s.SessionContextPairs,
	}
}

type session struct {
	mu         sync.Mutex
	messages   []sessionModel.Message
	createdAt  time.Time
	lastActive time.Time
	removed    bool
}

type shard struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

type Manager struct {
	opts   Options
	now    Clock
	shards [shardCount]*shard

	evictedPairs atomic.Int64
	expiredSwept atomic.Int64

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

var _ sessionModel.Store = (*Manager)(nil)

// NewManager never starts goroutines; call Start for the periodic sweep. A nil clock uses time.Now.
func NewManager(opts Options, clock Clock) *Manager {
	if clock == nil {
		clock = time.Now
	}
	if opts.MaxMessages < 2 {
		opts.MaxMessages = 2
	}
	if opts.MaxMessages%2 != 0 {
		opts.MaxMessages--
	}
	if opts.ContextPairs <= 0 {
		opts.ContextPairs = DefaultContextPairs
	}
	m := &Manager{opts: opts, now: clock, stop: make(chan struct{})}
	for i := range m.shards {
		m.shards[i] = &shard{sessions: make(map[string]*session)}
	}
	return m
}

func (m *Manager) Start(ctx context.Context) {
	if m.opts.SweepInterval <= 0 {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.opts.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stop:
				return
			case <-ticker.C:
				if n := m.Sweep(); n > 0 {
					logger.Debug("swept expired sessions", "removed", n)
				}
			}
		}
	}()
}

// Close stops the sweeper and waits for it. Safe to call more than once.
func (m *Manager) Close() {
	m.once.Do(func() { close(m.stop) })
	m.wg.Wait()
}

func (m *Manager) shardFor(id string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return m.shards[h.Sum32()%shardCount]
}

func (m *Manager) expired(s *session, now time.Time) bool {
	return now.Sub(s.lastActive) > m.opts.Timeout
}

func (m *Manager) lookup(id string) *session {
	sh := m.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return sh.sessions[id]
}

func (m *Manager) getOrCreate(id string, now time.Time) *session {
	sh := m.shardFor(id)
	sh.mu.RLock()
	s, ok := sh.sessions[id]
	sh.mu.RUnlock()
	if ok {
		return s
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if s, ok = sh.sessions[id]; ok {
		return s
	}
	s = &session{createdAt: now, lastActive: now}
	sh.sessions[id] = s
	return s
}

// Append stores one user/assistant pair. An expired session starts over empty.
func (m *Manager) Append(ctx context.Context, sessionId string, userText string, assistantText string) error {
	if sessionId == "" {
		return nil
	}
	for {
		now := m.now()
		s := m.getOrCreate(sessionId, now)
		s.mu.Lock()
		if s.removed {
			// lost a race with Sweep or Clear, fetch the replacement
			s.mu.Unlock()
			continue
		}
		if m.expired(s, now) {
			s.messages = nil
			s.createdAt = now
			m.expiredSwept.Add(1)
			metrics.AddSessionEvents("expired", 1)
		}
		s.messages = append(s.messages,
			sessionModel.Message{Role: sessionModel.RoleUser, Text: userText, Timestamp: now},
			sessionModel.Message{Role: sessionModel.RoleAssistant, Text: assistantText, Timestamp: now},
		)
		if over := len(s.messages) - m.opts.MaxMessages; over > 0 {
			drop := over + over%2
			s.messages = append([]sessionModel.Message(nil), s.messages[drop:]...)
			m.evictedPairs.Add(int64(drop / 2))
			metrics.AddSessionEvents("evicted", drop/2)
		}
		s.lastActive = now
		s.mu.Unlock()
		logger.WithTrace(ctx).Debug("appended to session", config.SESSION_ID_KEY, sessionId)
		return nil
	}
}

// ContextFor returns the last maxPairs pairs, oldest first. maxPairs <= 0 uses the configured count.
func (m *Manager) ContextFor(_ context.Context, sessionId string, maxPairs int) ([]sessionModel.Message, error) {
	if maxPairs <= 0 {
		maxPairs = m.opts.ContextPairs
	}
	s := m.lookup(sessionId)
	if s == nil {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removed || m.expired(s, m.now()) {
		return nil, nil
	}
	start := max(len(s.messages)-2*maxPairs, 0)
	return append([]sessionModel.Message(nil), s.messages[start:]...), nil
}

func (m *Manager) Clear(_ context.Context, sessionId string) error {
	sh := m.shardFor(sessionId)
	sh.mu.Lock()
	s, ok := sh.sessions[sessionId]
	delete(sh.sessions, sessionId)
	sh.mu.Unlock()
	if ok {
		s.mu.Lock()
		s.removed = true
		s.mu.Unlock()
	}
	return nil
}

func (m *Manager) Info(_ context.Context, sessionId string) (sessionModel.Info, bool, error) {
	s := m.lookup(sessionId)
	if s == nil {
		return sessionModel.Info{}, false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removed || m.expired(s, m.now()) {
		return sessionModel.Info{}, false, nil
	}
	return sessionModel.Info{
		Id:           sessionId,
		MessageCount: len(s.messages),
		CreatedAt:    s.createdAt,
		LastActive:   s.lastActive,
		ExpiresAt:    s.lastActive.Add(m.opts.Timeout),
	}, true, nil
}

// ActiveSessions lists live session ids in sorted order.
func (m *Manager) ActiveSessions(_ context.Context) ([]string, error) {
	now := m.now()
	var ids []string
	m.each(func(id string, s *session) {
		if !m.expired(s, now) {
			ids = append(ids, id)
		}
	})
	sort.Strings(ids)
	return ids, nil
}

func (m *Manager) Stats(_ context.Context) (sessionModel.Stats, error) {
	now := m.now()
	var st sessionModel.Stats
	m.each(func(_ string, s *session) {
		if !m.expired(s, now) {
			st.ActiveSessions++
			st.TotalMessages += len(s.messages)
		}
	})
	st.EvictedPairs = m.evictedPairs.Load()
	st.ExpiredSwept = m.expiredSwept.Load()
	return st, nil
}

// each visits every session with its own lock held. Shards are read one at a time.
func (m *Manager) each(fn func(id string, s *session)) {
	for _, sh := range m.shards {
		sh.mu.RLock()
		for id, s := range sh.sessions {
			s.mu.Lock()
			if !s.removed {
				fn(id, s)
			}
			s.mu.Unlock()
		}
		sh.mu.RUnlock()
	}
}

// Sweep drops expired sessions and returns how many were removed.
func (m *Manager) Sweep() int {
	now := m.now()
	removed, live := 0, 0
	for _, sh := range m.shards {
		sh.mu.Lock()
		for id, s := range sh.sessions {
			s.mu.Lock()
			if m.expired(s, now) {
				s.removed = true
				delete(sh.sessions, id)
				removed++
			} else {
				live++
			}
			s.mu.Unlock()
		}
		sh.mu.Unlock()
	}
	if removed > 0 {
		m.expiredSwept.Add(int64(removed))
		metrics.AddSessionEvents("expired", removed)
	}
	metrics.SetActiveSessions(live)
	return removed
}
