package sessionModel

import (
	"context"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

type Info struct {
	Id           string    `json:"session_id"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	LastActive   time.Time `json:"last_active"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type Stats struct {
	ActiveSessions int   `json:"active_sessions"`
	TotalMessages  int   `json:"total_messages"`
	EvictedPairs   int64 `json:"evicted_pairs"`
	ExpiredSwept   int64 `json:"expired_swept"`
}

// Store is the conversational memory contract. Expired or unknown sessions read as empty.
type Store interface {
	Append(ctx context.Context, sessionId string, userText string, assistantText string) error
	ContextFor(ctx context.Context, sessionId string, maxPairs int) ([]Message, error)
	Clear(ctx context.Context, sessionId string) error
	Info(ctx context.Context, sessionId string) (Info, bool, error)
	ActiveSessions(ctx context.Context) ([]string, error)
	Stats(ctx context.Context) (Stats, error)
}
