package eventlog

import (
	"context"
	"testing"
	"time"

	"voicekeeper/internal/storage"

	"go.uber.org/zap"
)

func TestLogJournalsToStore(t *testing.T) {
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logger := New(store, zap.NewNop())
	ctx := context.Background()
	logger.Log(ctx, LevelInfo, "g1", "u1", "voice_join", "channel=General")

	events, err := store.ListEvents(ctx, "g1", time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Event != "voice_join" || events[0].Level != LevelInfo {
		t.Fatalf("unexpected event %+v", events[0])
	}
}

func TestLogWithoutStoreIsSafe(t *testing.T) {
	logger := New(nil, zap.NewNop())
	logger.Log(context.Background(), LevelWarn, "g1", "", "move_failed", "user=u1")
}

func TestLogSurvivesJournalFailure(t *testing.T) {
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	store.Close()

	logger := New(store, zap.NewNop())
	logger.Log(context.Background(), LevelInfo, "g1", "u1", "voice_join", "channel=General")
}
