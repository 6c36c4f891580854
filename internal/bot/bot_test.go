package bot

import (
	"context"
	"testing"
	"time"

	"voicekeeper/internal/config"
	"voicekeeper/internal/guildstore"
	"voicekeeper/internal/presence"
	"voicekeeper/internal/storage"

	"go.uber.org/zap"
)

func newTestBot(t *testing.T) *Bot {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DiscordToken = "test-token"

	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	guilds := guildstore.New(t.TempDir(), "server_logs")
	tracker := presence.NewTracker(guilds, time.UTC)

	b, err := New(cfg, zap.NewNop(), store, guilds, tracker, time.UTC)
	if err != nil {
		t.Fatalf("new bot: %v", err)
	}
	return b
}

// A leave dispatched concurrently with its preceding join could apply
// first and strand the user without a session, so gateway events must
// run on the session's dispatch goroutine in arrival order.
func TestVoiceEventsDispatchInArrivalOrder(t *testing.T) {
	b := newTestBot(t)
	if !b.session.SyncEvents {
		t.Fatalf("expected synchronous event dispatch")
	}
}

func TestCloseHonorsExpiredContext(t *testing.T) {
	b := newTestBot(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		b.Close(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("close did not return under an expired context")
	}
}
