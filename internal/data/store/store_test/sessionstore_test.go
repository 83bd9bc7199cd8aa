package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/akolanti/HybridRAG/internal/data/store"
	"github.com/akolanti/HybridRAG/internal/domain/sessionModel"
)

func TestRedisSessionStore_AppendAndContext(t *testing.T) {
	mr, rs := newMiniStore(t)
	sessions := store.NewRedisSessionStore(rs, time.Hour, 20)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		if err := sessions.Append(ctx, "s1", fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	all, err := sessions.ContextFor(ctx, "s1", 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 20 {
		t.Fatalf("list should be capped at 20 messages, got %d", len(all))
	}
	if all[0].Text != "q2" || all[19].Text != "a11" {
		t.Errorf("oldest pairs should be trimmed first, got %q..%q", all[0].Text, all[19].Text)
	}

	recent, err := sessions.ContextFor(ctx, "s1", 2)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"q10", "a10", "q11", "a11"}
	if len(recent) != len(want) {
		t.Fatalf("got %d messages", len(recent))
	}
	for i, m := range recent {
		if m.Text != want[i] {
			t.Errorf("message %d got %q want %q", i, m.Text, want[i])
		}
	}
	if recent[0].Role != sessionModel.RoleUser || recent[1].Role != sessionModel.RoleAssistant {
		t.Errorf("roles out of order: %+v", recent[:2])
	}

	if ttl := mr.TTL("session:s1"); ttl != time.Hour {
		t.Errorf("session ttl got %v", ttl)
	}

	stats, err := sessions.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.ActiveSessions != 1 || stats.TotalMessages != 20 || stats.EvictedPairs != 2 {
		t.Errorf("stats got %+v", stats)
	}
}

func TestRedisSessionStore_InfoClearAndExpiry(t *testing.T) {
	mr, rs := newMiniStore(t)
	sessions := store.NewRedisSessionStore(rs, 10*time.Minute, 20)
	ctx := context.Background()

	if _, found, err := sessions.Info(ctx, "missing"); err != nil || found {
		t.Fatalf("unknown session: found=%v err=%v", found, err)
	}
	if msgs, err := sessions.ContextFor(ctx, "missing", 5); err != nil || msgs != nil {
		t.Fatalf("unknown session should read as empty, got %v %v", msgs, err)
	}

	_ = sessions.Append(ctx, "a", "hi", "hello")
	_ = sessions.Append(ctx, "b", "hi", "hello")

	info, found, err := sessions.Info(ctx, "a")
	if err != nil || !found {
		t.Fatalf("info: found=%v err=%v", found, err)
	}
	if info.MessageCount != 2 || info.CreatedAt.IsZero() || !info.ExpiresAt.After(info.LastActive) {
		t.Errorf("info got %+v", info)
	}

	ids, err := sessions.ActiveSessions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("active sessions got %v", ids)
	}

	if err := sessions.Clear(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if mr.Exists("session:a") || mr.Exists("session:a:meta") {
		t.Error("clear should remove the list and its meta hash")
	}

	mr.FastForward(11 * time.Minute)
	msgs, err := sessions.ContextFor(ctx, "b", 5)
	if err != nil {
		t.Fatal(err)
	}
	if msgs != nil {
		t.Errorf("expired session should read as empty, got %v", msgs)
	}
	ids, _ = sessions.ActiveSessions(ctx)
	if len(ids) != 0 {
		t.Errorf("expired sessions still listed: %v", ids)
	}
}
