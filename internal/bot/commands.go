package bot

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"voicekeeper/internal/modules/eventlog"
	"voicekeeper/internal/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const deniedReply = "You are not allowed to use this command."

func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg.Author == nil || msg.Author.Bot {
		return
	}
	if msg.GuildID == "" {
		return
	}
	if !strings.HasPrefix(msg.Content, b.cfg.CommandPrefix) {
		return
	}

	fields := strings.Fields(strings.TrimPrefix(msg.Content, b.cfg.CommandPrefix))
	if len(fields) == 0 {
		return
	}
	command := strings.ToLower(fields[0])
	args := fields[1:]
	ctx := context.Background()

	switch command {
	case "move":
		b.cmdMove(ctx, msg, args)
	case "setlogchannel":
		b.cmdSetLogChannel(ctx, msg, args)
	case "toggle_logging":
		b.cmdToggleLogging(ctx, msg)
	case "allowed_roles":
		b.cmdAllowedRoles(ctx, msg, args)
	case "heartbeat":
		b.cmdHeartbeat(ctx, msg)
	case "exit":
		b.cmdExit(ctx, msg)
	}
}

// isAuthorized gates the configuration commands: guild administrators
// always pass, otherwise the invoker needs one of the guild's allowed
// role names.
func (b *Bot) isAuthorized(msg *discordgo.MessageCreate) bool {
	if msg.Author.ID == b.cfg.DeveloperID {
		return true
	}
	if msg.Member == nil {
		return false
	}

	perms, err := b.session.UserChannelPermissions(msg.Author.ID, msg.ChannelID)
	if err == nil && perms&discordgo.PermissionAdministrator != 0 {
		return true
	}

	cfg, err := b.guilds.Load(msg.GuildID)
	if err != nil {
		return false
	}
	return cfg.HasAllowedRole(b.memberRoleNames(msg.GuildID, msg.Member))
}

func (b *Bot) memberRoleNames(guildID string, member *discordgo.Member) []string {
	guild, err := b.session.State.Guild(guildID)
	if err != nil {
		return nil
	}
	byID := make(map[string]string, len(guild.Roles))
	for _, role := range guild.Roles {
		byID[role.ID] = role.Name
	}
	var names []string
	for _, roleID := range member.Roles {
		if name, ok := byID[roleID]; ok {
			names = append(names, name)
		}
	}
	return names
}

func (b *Bot) deny(ctx context.Context, msg *discordgo.MessageCreate, command string) {
	b.reply(msg, deniedReply)
	b.events.Log(ctx, eventlog.LevelWarn, msg.GuildID, msg.Author.ID, "command_denied", command)
}

func (b *Bot) reply(msg *discordgo.MessageCreate, content string) {
	if _, err := b.session.ChannelMessageSend(msg.ChannelID, content); err != nil {
		b.logger.Warn("command reply failed", zap.String("channel_id", msg.ChannelID), zap.Error(err))
	}
}

// parseMoveTarget splits the move arguments into a destination name and
// an optional explicit source channel. Channel names may contain spaces,
// so split points are tried longest-destination-first against the
// guild's actual voice channels.
func parseMoveTarget(args []string, find func(name string) (string, bool)) (destination, sourceID, sourceName string, ok bool) {
	for i := len(args); i >= 1; i-- {
		destName := strings.Join(args[:i], " ")
		if _, found := find(destName); !found {
			continue
		}
		srcName := strings.Join(args[i:], " ")
		if srcName == "" {
			return destName, "", "", true
		}
		if id, found := find(srcName); found {
			return destName, id, srcName, true
		}
	}
	return "", "", "", false
}

// cmdMove empties a voice channel into the named destination. The
// source defaults to the invoker's current channel and may be named
// explicitly after the destination.
func (b *Bot) cmdMove(ctx context.Context, msg *discordgo.MessageCreate, args []string) {
	if !b.isAuthorized(msg) {
		b.deny(ctx, msg, "move")
		return
	}
	if len(args) == 0 {
		b.reply(msg, "Usage: "+b.cfg.CommandPrefix+"move <destination channel> [source channel]")
		return
	}

	destination, sourceID, sourceName, ok := parseMoveTarget(args, func(name string) (string, bool) {
		return b.FindVoiceChannel(msg.GuildID, name)
	})
	if !ok {
		// No interpretation matched a destination; let Move report it.
		destination = strings.Join(args, " ")
	}

	if sourceID == "" {
		if guild, err := b.session.State.Guild(msg.GuildID); err == nil {
			for _, vs := range guild.VoiceStates {
				if vs.UserID == msg.Author.ID {
					sourceID = vs.ChannelID
				}
			}
		}
		if sourceID == "" {
			b.reply(msg, "Join a voice channel first or name the source channel.")
			return
		}
		sourceName = b.ChannelName(msg.GuildID, sourceID)
	}

	summary, err := b.relocate.Move(ctx, msg.GuildID, sourceID, sourceName, destination)
	if err != nil {
		b.reply(msg, "Move failed: "+err.Error())
		return
	}
	b.reply(msg, summary)
}

func (b *Bot) cmdSetLogChannel(ctx context.Context, msg *discordgo.MessageCreate, args []string) {
	if !b.isAuthorized(msg) {
		b.deny(ctx, msg, "setlogchannel")
		return
	}
	if len(args) == 0 {
		b.reply(msg, "Usage: "+b.cfg.CommandPrefix+"setlogchannel <channel name>")
		return
	}

	cfg, err := b.guilds.Load(msg.GuildID)
	if err != nil {
		b.reply(msg, "Could not load this guild's settings.")
		return
	}
	cfg.LogChannelName = strings.Join(args, " ")
	if err := b.guilds.Save(msg.GuildID, cfg); err != nil {
		b.reply(msg, "Could not save this guild's settings.")
		return
	}
	b.reply(msg, "Log channel set to "+cfg.LogChannelName+".")
	b.events.Log(ctx, eventlog.LevelInfo, msg.GuildID, msg.Author.ID, "set_log_channel", cfg.LogChannelName)
}

func (b *Bot) cmdToggleLogging(ctx context.Context, msg *discordgo.MessageCreate) {
	if !b.isAuthorized(msg) {
		b.deny(ctx, msg, "toggle_logging")
		return
	}

	cfg, err := b.guilds.Load(msg.GuildID)
	if err != nil {
		b.reply(msg, "Could not load this guild's settings.")
		return
	}
	cfg.LoggingEnabled = !cfg.LoggingEnabled
	if err := b.guilds.Save(msg.GuildID, cfg); err != nil {
		b.reply(msg, "Could not save this guild's settings.")
		return
	}
	if cfg.LoggingEnabled {
		b.reply(msg, "Voice logging enabled.")
	} else {
		b.reply(msg, "Voice logging disabled.")
	}
	b.events.Log(ctx, eventlog.LevelInfo, msg.GuildID, msg.Author.ID, "toggle_logging", fmt.Sprintf("enabled=%v", cfg.LoggingEnabled))
}

func (b *Bot) cmdAllowedRoles(ctx context.Context, msg *discordgo.MessageCreate, args []string) {
	if !b.isAuthorized(msg) {
		b.deny(ctx, msg, "allowed_roles")
		return
	}

	cfg, err := b.guilds.Load(msg.GuildID)
	if err != nil {
		b.reply(msg, "Could not load this guild's settings.")
		return
	}

	if len(args) == 0 {
		if len(cfg.AllowedRoles) == 0 {
			b.reply(msg, "No allowed roles configured. Administrators can always use commands.")
			return
		}
		roles := append([]string(nil), cfg.AllowedRoles...)
		sort.Strings(roles)
		b.reply(msg, "Allowed roles: "+strings.Join(roles, ", "))
		return
	}

	if len(args) < 2 {
		b.reply(msg, "Usage: "+b.cfg.CommandPrefix+"allowed_roles [add|remove] <role name>")
		return
	}
	action := strings.ToLower(args[0])
	roleName := strings.Join(args[1:], " ")

	switch action {
	case "add":
		for _, existing := range cfg.AllowedRoles {
			if existing == roleName {
				b.reply(msg, roleName+" is already allowed.")
				return
			}
		}
		cfg.AllowedRoles = append(cfg.AllowedRoles, roleName)
	case "remove":
		kept := cfg.AllowedRoles[:0]
		removed := false
		for _, existing := range cfg.AllowedRoles {
			if existing == roleName {
				removed = true
				continue
			}
			kept = append(kept, existing)
		}
		if !removed {
			b.reply(msg, roleName+" is not in the allowed list.")
			return
		}
		cfg.AllowedRoles = kept
	default:
		b.reply(msg, "Usage: "+b.cfg.CommandPrefix+"allowed_roles [add|remove] <role name>")
		return
	}

	if err := b.guilds.Save(msg.GuildID, cfg); err != nil {
		b.reply(msg, "Could not save this guild's settings.")
		return
	}
	b.reply(msg, "Allowed roles updated.")
	b.events.Log(ctx, eventlog.LevelInfo, msg.GuildID, msg.Author.ID, "allowed_roles_"+action, roleName)
}

// cmdHeartbeat reports uptime and the last day's journaled activity.
// Developer only.
func (b *Bot) cmdHeartbeat(ctx context.Context, msg *discordgo.MessageCreate) {
	if msg.Author.ID != b.cfg.DeveloperID {
		b.deny(ctx, msg, "heartbeat")
		return
	}

	now := time.Now()
	lines := []string{"Alive. Started " + utils.FormatTimeSince(b.startedAt, now) + "."}

	counts, err := b.store.CountEvents(ctx, msg.GuildID, now.Add(-24*time.Hour))
	if err == nil && len(counts) > 0 {
		names := make([]string, 0, len(counts))
		for name := range counts {
			names = append(names, name)
		}
		sort.Strings(names)
		parts := make([]string, 0, len(names))
		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s=%d", name, counts[name]))
		}
		lines = append(lines, "Last 24h: "+strings.Join(parts, ", "))
	}
	b.reply(msg, strings.Join(lines, "\n"))
}

func (b *Bot) cmdExit(ctx context.Context, msg *discordgo.MessageCreate) {
	if msg.Author.ID != b.cfg.DeveloperID {
		b.deny(ctx, msg, "exit")
		return
	}
	b.reply(msg, "Shutting down.")
	b.events.Log(ctx, eventlog.LevelInfo, msg.GuildID, msg.Author.ID, "exit", "")
	b.requestShutdown("exit command")
}
