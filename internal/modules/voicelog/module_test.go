package voicelog

import (
	"context"
	"testing"
	"time"

	"voicekeeper/internal/guildstore"
	"voicekeeper/internal/presence"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type fakeNotifier struct {
	ensureCalls int
	sent        []*discordgo.MessageEmbed
	members     map[string][]string
}

func (f *fakeNotifier) EnsureLogChannel(guildID, name string) (string, error) {
	f.ensureCalls++
	return "log-channel", nil
}

func (f *fakeNotifier) SendLogEmbed(channelID string, embed *discordgo.MessageEmbed) error {
	f.sent = append(f.sent, embed)
	return nil
}

func (f *fakeNotifier) ChannelName(guildID, channelID string) string {
	return "name-" + channelID
}

func (f *fakeNotifier) ChannelMemberMentions(guildID, channelID string) []string {
	return f.members[channelID]
}

func newTestModule(t *testing.T) (*Module, *fakeNotifier, *guildstore.Store) {
	t.Helper()
	guilds := guildstore.New(t.TempDir(), "server_logs")
	tracker := presence.NewTracker(guilds, time.UTC)
	notifier := &fakeNotifier{members: make(map[string][]string)}
	module := New(tracker, guilds, nil, notifier, zap.NewNop())
	return module, notifier, guilds
}

func enableLogging(t *testing.T, guilds *guildstore.Store, guildID string) {
	t.Helper()
	cfg, err := guilds.Load(guildID)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.LoggingEnabled = true
	if err := guilds.Save(guildID, cfg); err != nil {
		t.Fatalf("save config: %v", err)
	}
}

func TestHandleNoOpDoesNothing(t *testing.T) {
	module, notifier, _ := newTestModule(t)

	module.Handle(context.Background(), Update{GuildID: "g", UserID: "u", PrevChannel: "c1", NextChannel: "c1"}, time.Now())
	module.Handle(context.Background(), Update{GuildID: "g", UserID: "u"}, time.Now())

	if notifier.ensureCalls != 0 || len(notifier.sent) != 0 {
		t.Fatalf("no-op transitions produced side effects")
	}
}

func TestLedgerUpdatedWhileLoggingDisabled(t *testing.T) {
	module, notifier, _ := newTestModule(t)

	module.Handle(context.Background(), Update{GuildID: "g", UserID: "u1", NextChannel: "c1"}, time.Now())

	if notifier.ensureCalls != 0 || len(notifier.sent) != 0 {
		t.Fatalf("disabled logging still produced notifications")
	}
	if got := module.tracker.SeenCount("g"); got != 1 {
		t.Fatalf("expected ledger count 1, got %d", got)
	}
}

func TestJoinEmbed(t *testing.T) {
	module, notifier, guilds := newTestModule(t)
	enableLogging(t, guilds, "g")
	notifier.members["c1"] = []string{"<@u1>", "<@u2>"}

	module.Handle(context.Background(), Update{GuildID: "g", UserID: "u1", DisplayName: "Alice", NextChannel: "c1"}, time.Now())

	if len(notifier.sent) != 1 {
		t.Fatalf("expected 1 embed, got %d", len(notifier.sent))
	}
	embed := notifier.sent[0]
	if embed.Color != colorJoin {
		t.Fatalf("unexpected color %#x", embed.Color)
	}
	if embed.Fields[0].Value != "Never" {
		t.Fatalf("expected Never for first join, got %q", embed.Fields[0].Value)
	}
	if embed.Fields[1].Value != "<@u1>, <@u2>" {
		t.Fatalf("unexpected member list %q", embed.Fields[1].Value)
	}
}

func TestLeaveEmbedDuration(t *testing.T) {
	module, notifier, guilds := newTestModule(t)
	enableLogging(t, guilds, "g")
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	module.Handle(context.Background(), Update{GuildID: "g", UserID: "u1", NextChannel: "c1"}, base)
	module.Handle(context.Background(), Update{GuildID: "g", UserID: "u1", PrevChannel: "c1"}, base.Add(90*time.Second))

	if len(notifier.sent) != 2 {
		t.Fatalf("expected 2 embeds, got %d", len(notifier.sent))
	}
	leave := notifier.sent[1]
	if leave.Color != colorLeave {
		t.Fatalf("unexpected color %#x", leave.Color)
	}
	if leave.Fields[0].Value != "00:01:30" {
		t.Fatalf("unexpected duration %q", leave.Fields[0].Value)
	}
	if leave.Fields[1].Value != "No users" {
		t.Fatalf("unexpected member list %q", leave.Fields[1].Value)
	}
}

func TestSwitchEmbed(t *testing.T) {
	module, notifier, guilds := newTestModule(t)
	enableLogging(t, guilds, "g")
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	module.Handle(context.Background(), Update{GuildID: "g", UserID: "u1", DisplayName: "Alice", NextChannel: "c1"}, base)
	module.Handle(context.Background(), Update{GuildID: "g", UserID: "u1", DisplayName: "Alice", PrevChannel: "c1", NextChannel: "c2"}, base.Add(10*time.Minute))

	sw := notifier.sent[1]
	if sw.Color != colorSwitch {
		t.Fatalf("unexpected color %#x", sw.Color)
	}
	if sw.Title != "Alice switched voice channels" {
		t.Fatalf("unexpected title %q", sw.Title)
	}
	if sw.Fields[0].Value != "00:10:00" {
		t.Fatalf("unexpected duration %q", sw.Fields[0].Value)
	}
}

func TestSecondJoinReportsLastSeen(t *testing.T) {
	module, notifier, guilds := newTestModule(t)
	enableLogging(t, guilds, "g")
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	module.Handle(context.Background(), Update{GuildID: "g", UserID: "u1", NextChannel: "c1"}, base)
	module.Handle(context.Background(), Update{GuildID: "g", UserID: "u1", PrevChannel: "c1"}, base.Add(time.Minute))
	module.Handle(context.Background(), Update{GuildID: "g", UserID: "u1", NextChannel: "c1"}, base.Add(2*time.Hour))

	second := notifier.sent[2]
	if second.Fields[0].Value == "Never" {
		t.Fatalf("expected a last-seen timestamp on a repeat join")
	}
}
