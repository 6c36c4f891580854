package storage

import (
	"context"
	"testing"
	"time"
)

func TestEventJournal(t *testing.T) {
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ctx := context.Background()
	now := time.Now()
	events := []Event{
		{GuildID: "g1", UserID: "u1", Level: "INFO", Event: "voice_join", Details: "channel=General", CreatedAt: now},
		{GuildID: "g1", UserID: "u1", Level: "INFO", Event: "voice_leave", Details: "duration=00:10:00", CreatedAt: now},
		{GuildID: "g2", UserID: "u2", Level: "WARN", Event: "move_failed", CreatedAt: now},
	}
	for _, event := range events {
		if err := store.AddEvent(ctx, event); err != nil {
			t.Fatalf("add event: %v", err)
		}
	}

	listed, err := store.ListEvents(ctx, "g1", now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 g1 events, got %d", len(listed))
	}

	counts, err := store.CountEvents(ctx, "g1", now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("count events: %v", err)
	}
	if counts["voice_join"] != 1 || counts["voice_leave"] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}
