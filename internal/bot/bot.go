package bot

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"voicekeeper/internal/config"
	"voicekeeper/internal/guildstore"
	"voicekeeper/internal/modules/eventlog"
	"voicekeeper/internal/modules/gamerooms"
	"voicekeeper/internal/modules/relocate"
	"voicekeeper/internal/modules/voicelog"
	"voicekeeper/internal/presence"
	"voicekeeper/internal/report"
	"voicekeeper/internal/schedule"
	"voicekeeper/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type Bot struct {
	cfg     config.Config
	logger  *zap.Logger
	store   *storage.Store
	guilds  *guildstore.Store
	tracker *presence.Tracker
	events  *eventlog.Logger
	session *discordgo.Session
	loc     *time.Location

	voicelog *voicelog.Module
	relocate *relocate.Module
	report   *report.Generator
	runner   *schedule.Runner
	version  *versionChecker

	startedAt    time.Time
	jobsOnce     sync.Once
	cancelJobs   context.CancelFunc
	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

func New(cfg config.Config, logger *zap.Logger, store *storage.Store, guilds *guildstore.Store, tracker *presence.Tracker, loc *time.Location) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsMessageContent |
		discordgo.IntentsGuildVoiceStates
	session.State.TrackVoice = true
	// Per-user voice updates must apply in arrival order; the default
	// per-event goroutine dispatch would let a leave overtake its join.
	session.SyncEvents = true

	b := &Bot{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		guilds:     guilds,
		tracker:    tracker,
		session:    session,
		loc:        loc,
		shutdownCh: make(chan struct{}),
	}

	b.events = eventlog.New(store, logger)
	b.voicelog = voicelog.New(tracker, guilds, b.events, b, logger)
	b.relocate = relocate.New(b, b.events, logger)
	b.report = report.New(tracker, guilds, b, b.events, logger, cfg.ChartPath, cfg.ChartWindowDays)
	b.runner = schedule.NewRunner(logger, loc)
	if cfg.VersionCheck.Enabled {
		b.version = newVersionChecker(cfg.VersionCheck.Repo, cfg.VersionCheck.GithubToken, logger)
	}

	return b, nil
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onVoiceStateUpdate)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onGuildCreate)
	b.session.AddHandler(b.onGuildDelete)

	if err := b.session.Open(); err != nil {
		return err
	}
	b.startedAt = time.Now()
	return nil
}

func (b *Bot) Close(ctx context.Context) {
	if b.cancelJobs != nil {
		b.cancelJobs()
	}
	if b.runner != nil {
		b.runner.Stop()
	}
	if b.session == nil {
		return
	}

	done := make(chan struct{})
	go func() {
		_ = b.session.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		b.logger.Warn("session close cut short", zap.Error(ctx.Err()))
	}
}

// Done is closed when the bot asks its supervisor to restart the
// process: the exit command, the weekly restart, or a new upstream
// commit.
func (b *Bot) Done() <-chan struct{} {
	return b.shutdownCh
}

func (b *Bot) requestShutdown(reason string) {
	b.shutdownOnce.Do(func() {
		b.logger.Info("shutdown requested", zap.String("reason", reason))
		close(b.shutdownCh)
	})
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready",
		zap.String("user", session.State.User.Username),
		zap.Int("guilds", len(event.Guilds)))

	now := time.Now().In(b.loc)
	for _, guild := range event.Guilds {
		users := b.ConnectedVoiceUsers(guild.ID)
		if err := b.tracker.Populate(guild.ID, users, now); err != nil {
			b.logger.Warn("startup ledger population failed",
				zap.String("guild_id", guild.ID),
				zap.Error(err))
		}
	}

	// Ready fires again on gateway reconnects; jobs start once.
	b.jobsOnce.Do(func() {
		b.startJobs()
		b.notifyDeveloper(fmt.Sprintf("Online as %s in %d guild(s).", session.State.User.Username, len(event.Guilds)))
	})
}

func (b *Bot) startJobs() {
	ctx, cancel := context.WithCancel(context.Background())
	b.cancelJobs = cancel

	b.runner.Daily(ctx, "daily_report", b.cfg.Report.Hour, b.cfg.Report.Minute, func(ctx context.Context) error {
		return b.report.Run(ctx, time.Now().In(b.loc))
	})

	b.runner.Daily(ctx, "relocation", b.cfg.Relocate.Hour, b.cfg.Relocate.Minute, b.runRelocation)

	b.runner.Daily(ctx, "weekly_restart", b.cfg.Restart.Hour, b.cfg.Restart.Minute, func(ctx context.Context) error {
		if int(time.Now().In(b.loc).Weekday()) != b.cfg.Restart.Weekday {
			return nil
		}
		b.notifyDeveloper("Scheduled restart, going down.")
		b.requestShutdown("weekly restart")
		return nil
	})

	if b.version != nil {
		period := time.Duration(b.cfg.VersionCheck.IntervalSeconds) * time.Second
		b.runner.Every(ctx, "version_check", period, func(ctx context.Context) error {
			changed, sha, err := b.version.Check(ctx)
			if err != nil {
				b.logger.Warn("version check failed", zap.Error(err))
				return nil
			}
			if changed {
				b.notifyDeveloper("New upstream commit " + sha + ", restarting for redeploy.")
				b.requestShutdown("new upstream commit")
			}
			return nil
		})
	}

	b.runner.Daily(ctx, "event_cleanup", 3, 0, func(ctx context.Context) error {
		return b.store.CleanupEvents(ctx, b.cfg.RetentionDays)
	})
}

func (b *Bot) runRelocation(ctx context.Context) error {
	for _, guild := range b.session.State.Guilds {
		summary, err := b.relocate.Sweep(ctx, guild.ID, b.cfg.Relocate.Sources, b.cfg.Relocate.Destination)
		if err != nil {
			b.logger.Warn("relocation skipped",
				zap.String("guild_id", guild.ID),
				zap.Error(err))
			continue
		}
		cfg, err := b.guilds.Load(guild.ID)
		if err == nil && cfg.LoggingEnabled {
			if channelID, err := b.EnsureLogChannel(guild.ID, cfg.LogChannelName); err == nil {
				_, _ = b.session.ChannelMessageSend(channelID, summary)
			}
		}
	}
	return nil
}

func (b *Bot) onVoiceStateUpdate(session *discordgo.Session, event *discordgo.VoiceStateUpdate) {
	if event.GuildID == "" || event.UserID == "" {
		return
	}
	if session.State.User != nil && event.UserID == session.State.User.ID {
		return
	}

	prev := ""
	if event.BeforeUpdate != nil {
		prev = event.BeforeUpdate.ChannelID
	}

	update := voicelog.Update{
		GuildID:     event.GuildID,
		UserID:      event.UserID,
		PrevChannel: prev,
		NextChannel: event.ChannelID,
	}
	if event.Member != nil && event.Member.User != nil {
		update.DisplayName = memberDisplayName(event.Member)
		update.AvatarURL = event.Member.User.AvatarURL("")
	}

	ctx := context.Background()
	b.voicelog.Handle(ctx, update, time.Now().In(b.loc))
	b.reconcileGameRooms(event.GuildID)
}

func (b *Bot) onGuildCreate(session *discordgo.Session, event *discordgo.GuildCreate) {
	if event.Guild == nil {
		return
	}
	b.logger.Info("guild available", zap.String("guild_id", event.ID), zap.String("name", event.Name))
	if !b.startedAt.IsZero() && time.Since(b.startedAt) > time.Minute {
		b.notifyDeveloper("Joined guild " + event.Name + ".")
	}
}

func (b *Bot) onGuildDelete(session *discordgo.Session, event *discordgo.GuildDelete) {
	if event.Guild == nil {
		return
	}
	b.logger.Info("guild removed", zap.String("guild_id", event.ID))
	b.notifyDeveloper("Removed from guild " + event.ID + ".")
}

// reconcileGameRooms rebuilds each monitored category's numbered rooms
// after a voice transition.
func (b *Bot) reconcileGameRooms(guildID string) {
	guild, err := b.session.State.Guild(guildID)
	if err != nil {
		return
	}

	occupied := make(map[string]bool)
	for _, vs := range guild.VoiceStates {
		occupied[vs.ChannelID] = true
	}

	var categories []string
	for _, channel := range guild.Channels {
		if channel.Type != discordgo.ChannelTypeGuildCategory {
			continue
		}
		for _, name := range b.cfg.GameRooms.Categories {
			if channel.Name == name {
				categories = append(categories, channel.ID)
			}
		}
	}

	for _, categoryID := range categories {
		var rooms []gamerooms.Room
		for _, channel := range guild.Channels {
			if channel.Type != discordgo.ChannelTypeGuildVoice || channel.ParentID != categoryID {
				continue
			}
			number, ok := gamerooms.RoomNumber(channel.Name)
			if !ok {
				continue
			}
			rooms = append(rooms, gamerooms.Room{
				ChannelID: channel.ID,
				Number:    number,
				Occupied:  occupied[channel.ID],
			})
		}

		plan := gamerooms.BuildPlan(rooms, b.cfg.GameRooms.MaxChannels)
		for _, channelID := range plan.Delete {
			if _, err := b.session.ChannelDelete(channelID); err != nil {
				b.logger.Warn("game room delete failed", zap.String("channel_id", channelID), zap.Error(err))
			}
		}
		for _, number := range plan.Create {
			_, err := b.session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
				Name:     gamerooms.RoomName(number),
				Type:     discordgo.ChannelTypeGuildVoice,
				ParentID: categoryID,
			})
			if err != nil {
				b.logger.Warn("game room create failed", zap.Int("number", number), zap.Error(err))
			}
		}
	}
}

// EnsureLogChannel finds the guild's named text channel, creating it
// hidden from @everyone when absent.
func (b *Bot) EnsureLogChannel(guildID, name string) (string, error) {
	guild, err := b.session.State.Guild(guildID)
	if err != nil {
		return "", err
	}
	for _, channel := range guild.Channels {
		if channel.Type == discordgo.ChannelTypeGuildText && channel.Name == name {
			return channel.ID, nil
		}
	}

	created, err := b.session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name: name,
		Type: discordgo.ChannelTypeGuildText,
		PermissionOverwrites: []*discordgo.PermissionOverwrite{
			{
				// The @everyone role shares the guild's id.
				ID:   guildID,
				Type: discordgo.PermissionOverwriteTypeRole,
				Deny: discordgo.PermissionViewChannel,
			},
		},
	})
	if err != nil {
		return "", err
	}
	return created.ID, nil
}

func (b *Bot) SendLogEmbed(channelID string, embed *discordgo.MessageEmbed) error {
	_, err := b.session.ChannelMessageSendEmbed(channelID, embed)
	return err
}

func (b *Bot) ChannelName(guildID, channelID string) string {
	if channelID == "" {
		return "unknown"
	}
	if channel, err := b.session.State.Channel(channelID); err == nil {
		return channel.Name
	}
	return channelID
}

func (b *Bot) ChannelMemberMentions(guildID, channelID string) []string {
	guild, err := b.session.State.Guild(guildID)
	if err != nil {
		return nil
	}
	var mentions []string
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID == channelID {
			mentions = append(mentions, "<@"+vs.UserID+">")
		}
	}
	return mentions
}

func (b *Bot) FindVoiceChannel(guildID, name string) (string, bool) {
	guild, err := b.session.State.Guild(guildID)
	if err != nil {
		return "", false
	}
	for _, channel := range guild.Channels {
		if channel.Type == discordgo.ChannelTypeGuildVoice && channel.Name == name {
			return channel.ID, true
		}
	}
	return "", false
}

func (b *Bot) VoiceOccupants(guildID, channelID string) []string {
	guild, err := b.session.State.Guild(guildID)
	if err != nil {
		return nil
	}
	var users []string
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID == channelID {
			users = append(users, vs.UserID)
		}
	}
	return users
}

func (b *Bot) MoveMember(guildID, userID, channelID string) error {
	return b.session.GuildMemberMove(guildID, userID, &channelID)
}

func (b *Bot) GuildIDs() []string {
	ids := make([]string, 0, len(b.session.State.Guilds))
	for _, guild := range b.session.State.Guilds {
		ids = append(ids, guild.ID)
	}
	return ids
}

func (b *Bot) ConnectedVoiceUsers(guildID string) []string {
	guild, err := b.session.State.Guild(guildID)
	if err != nil {
		return nil
	}
	var users []string
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID != "" {
			users = append(users, vs.UserID)
		}
	}
	return users
}

func (b *Bot) SendToLogChannel(guildID, channelName, content, filename string, image []byte) error {
	channelID, err := b.EnsureLogChannel(guildID, channelName)
	if err != nil {
		return err
	}
	return b.sendWithImage(channelID, content, filename, image)
}

func (b *Bot) SendToOperator(content, filename string, image []byte) error {
	if b.cfg.DeveloperID == "" {
		return nil
	}
	dm, err := b.session.UserChannelCreate(b.cfg.DeveloperID)
	if err != nil {
		return err
	}
	return b.sendWithImage(dm.ID, content, filename, image)
}

func (b *Bot) sendWithImage(channelID, content, filename string, image []byte) error {
	msg := &discordgo.MessageSend{Content: content}
	if len(image) > 0 {
		msg.Files = []*discordgo.File{{
			Name:        filename,
			ContentType: "image/png",
			Reader:      bytes.NewReader(image),
		}}
	}
	_, err := b.session.ChannelMessageSendComplex(channelID, msg)
	return err
}

func (b *Bot) notifyDeveloper(content string) {
	if b.cfg.DeveloperID == "" {
		return
	}
	dm, err := b.session.UserChannelCreate(b.cfg.DeveloperID)
	if err != nil {
		b.logger.Warn("developer dm unavailable", zap.Error(err))
		return
	}
	if _, err := b.session.ChannelMessageSend(dm.ID, content); err != nil {
		b.logger.Warn("developer notify failed", zap.Error(err))
	}
}

func memberDisplayName(member *discordgo.Member) string {
	if member.Nick != "" {
		return member.Nick
	}
	if member.User != nil {
		return member.User.Username
	}
	return ""
}
