package voicelog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"voicekeeper/internal/guildstore"
	"voicekeeper/internal/modules/eventlog"
	"voicekeeper/internal/presence"
	"voicekeeper/internal/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	colorJoin   = 0x2ECC71
	colorLeave  = 0xE74C3C
	colorSwitch = 0x3498DB
)

// Notifier is the slice of the platform gateway the processor touches:
// resolving (and creating, hidden from everyone) the guild's log channel,
// sending embed records, and describing voice channels.
type Notifier interface {
	EnsureLogChannel(guildID, name string) (string, error)
	SendLogEmbed(channelID string, embed *discordgo.MessageEmbed) error
	ChannelName(guildID, channelID string) string
	ChannelMemberMentions(guildID, channelID string) []string
}

// Update is one raw voice-state transition from the gateway, already
// reduced to the fields the processor needs.
type Update struct {
	GuildID     string
	UserID      string
	DisplayName string
	AvatarURL   string
	PrevChannel string
	NextChannel string
}

// Module converts voice-state transitions into ledger updates, session
// durations, and log records.
type Module struct {
	tracker  *presence.Tracker
	guilds   *guildstore.Store
	events   *eventlog.Logger
	notifier Notifier
	logger   *zap.Logger
}

func New(tracker *presence.Tracker, guilds *guildstore.Store, events *eventlog.Logger, notifier Notifier, logger *zap.Logger) *Module {
	return &Module{
		tracker:  tracker,
		guilds:   guilds,
		events:   events,
		notifier: notifier,
		logger:   logger,
	}
}

// Handle processes one transition. Ledger accounting always happens;
// notification side effects are suppressed entirely while the guild's
// logging toggle is off, before any channel lookup.
func (m *Module) Handle(ctx context.Context, update Update, now time.Time) {
	transition := presence.Classify(update.PrevChannel, update.NextChannel)
	if transition.Kind == presence.NoOp {
		return
	}

	var duration int
	var lastSeen time.Time
	var hasLastSeen bool
	var err error

	switch transition.Kind {
	case presence.Join:
		lastSeen, hasLastSeen, err = m.tracker.RecordJoin(update.GuildID, update.UserID, now)
	case presence.Leave:
		duration, err = m.tracker.RecordLeave(update.GuildID, update.UserID, now)
	case presence.Switch:
		duration, err = m.tracker.RecordSwitch(update.GuildID, update.UserID, now)
	}
	if err != nil {
		m.logger.Warn("presence update not persisted",
			zap.String("guild_id", update.GuildID),
			zap.String("user_id", update.UserID),
			zap.Error(err))
	}

	m.journal(ctx, update, transition, duration)

	cfg, err := m.guilds.Load(update.GuildID)
	if err != nil {
		m.logger.Warn("guild config load failed", zap.String("guild_id", update.GuildID), zap.Error(err))
		return
	}
	if !cfg.LoggingEnabled {
		return
	}

	channelID, err := m.notifier.EnsureLogChannel(update.GuildID, cfg.LogChannelName)
	if err != nil {
		m.logger.Warn("log channel unavailable", zap.String("guild_id", update.GuildID), zap.Error(err))
		return
	}

	embed := m.buildEmbed(update, transition, duration, lastSeen, hasLastSeen, now)
	if err := m.notifier.SendLogEmbed(channelID, embed); err != nil {
		m.logger.Warn("log record send failed", zap.String("guild_id", update.GuildID), zap.Error(err))
	}
}

func (m *Module) journal(ctx context.Context, update Update, transition presence.Transition, duration int) {
	if m.events == nil {
		return
	}
	details := ""
	switch transition.Kind {
	case presence.Join:
		details = "channel=" + transition.To
	case presence.Leave:
		details = fmt.Sprintf("channel=%s duration=%s", transition.From, utils.FormatDuration(duration))
	case presence.Switch:
		details = fmt.Sprintf("from=%s to=%s duration=%s", transition.From, transition.To, utils.FormatDuration(duration))
	}
	m.events.Log(ctx, eventlog.LevelInfo, update.GuildID, update.UserID, "voice_"+transition.Kind.String(), details)
}

func (m *Module) buildEmbed(update Update, transition presence.Transition, duration int, lastSeen time.Time, hasLastSeen bool, now time.Time) *discordgo.MessageEmbed {
	mention := "<@" + update.UserID + ">"

	var embed *discordgo.MessageEmbed
	switch transition.Kind {
	case presence.Join:
		toName := m.notifier.ChannelName(update.GuildID, transition.To)
		seen := "Never"
		if hasLastSeen {
			seen = fmt.Sprintf("%s on %s", utils.FormatTimeSince(lastSeen, now), lastSeen.Format(presence.TimeLayout))
		}
		embed = &discordgo.MessageEmbed{
			Title:       "Connected to a voice channel",
			Description: fmt.Sprintf("> %s joined `%s`", mention, toName),
			Color:       colorJoin,
			Fields: []*discordgo.MessageEmbedField{
				{Name: "Last Seen on Server", Value: seen},
				{Name: "Users in " + toName, Value: m.memberList(update.GuildID, transition.To)},
			},
		}
	case presence.Leave:
		fromName := m.notifier.ChannelName(update.GuildID, transition.From)
		embed = &discordgo.MessageEmbed{
			Title:       "Disconnected from a voice channel",
			Description: fmt.Sprintf("> %s left from `%s`", mention, fromName),
			Color:       colorLeave,
			Fields: []*discordgo.MessageEmbedField{
				{Name: "Duration", Value: utils.FormatDuration(duration)},
				{Name: "Users in " + fromName, Value: m.memberList(update.GuildID, transition.From)},
			},
		}
	case presence.Switch:
		fromName := m.notifier.ChannelName(update.GuildID, transition.From)
		toName := m.notifier.ChannelName(update.GuildID, transition.To)
		embed = &discordgo.MessageEmbed{
			Title:       update.DisplayName + " switched voice channels",
			Description: fmt.Sprintf("> %s moved from `%s` to `%s`", mention, fromName, toName),
			Color:       colorSwitch,
			Fields: []*discordgo.MessageEmbedField{
				{Name: "Duration in " + fromName, Value: utils.FormatDuration(duration)},
				{Name: "Users in " + fromName, Value: m.memberList(update.GuildID, transition.From)},
				{Name: "Users in " + toName, Value: m.memberList(update.GuildID, transition.To)},
			},
		}
	}

	embed.Timestamp = now.UTC().Format(time.RFC3339)
	if update.AvatarURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: update.AvatarURL}
	}
	return embed
}

func (m *Module) memberList(guildID, channelID string) string {
	mentions := m.notifier.ChannelMemberMentions(guildID, channelID)
	if len(mentions) == 0 {
		return "No users"
	}
	return strings.Join(mentions, ", ")
}
