package relocate

import (
	"context"
	"fmt"

	"voicekeeper/internal/modules/eventlog"
	"voicekeeper/internal/utils"

	"go.uber.org/zap"
)

// Mover is the gateway slice needed to move voice users around: finding
// voice channels by name, listing their occupants, and reassigning one
// member's voice channel.
type Mover interface {
	FindVoiceChannel(guildID, name string) (string, bool)
	VoiceOccupants(guildID, channelID string) []string
	MoveMember(guildID, userID, channelID string) error
}

// Module empties an overflow voice channel into a destination channel.
// The same code path backs the scheduled daily sweep and the manual
// move command.
type Module struct {
	mover  Mover
	events *eventlog.Logger
	logger *zap.Logger
}

func New(mover Mover, events *eventlog.Logger, logger *zap.Logger) *Module {
	return &Module{mover: mover, events: events, logger: logger}
}

// Sweep resolves the first matching source name and moves its occupants
// to the destination. It reports a summary string suitable for posting.
func (m *Module) Sweep(ctx context.Context, guildID string, sources []string, destination string) (string, error) {
	var sourceID, sourceName string
	for _, name := range sources {
		if id, ok := m.mover.FindVoiceChannel(guildID, name); ok {
			sourceID, sourceName = id, name
			break
		}
	}
	if sourceID == "" {
		return "", fmt.Errorf("no source channel found among %v", sources)
	}
	return m.Move(ctx, guildID, sourceID, sourceName, destination)
}

// Move relocates every occupant of the source channel to the named
// destination. Per-member failures are logged and skipped; the batch
// continues.
func (m *Module) Move(ctx context.Context, guildID, sourceID, sourceName, destination string) (string, error) {
	destID, ok := m.mover.FindVoiceChannel(guildID, destination)
	if !ok {
		return "", fmt.Errorf("destination channel %q not found", destination)
	}

	occupants := m.mover.VoiceOccupants(guildID, sourceID)
	if len(occupants) == 0 {
		summary := fmt.Sprintf("No users to move from %s to %s.", sourceName, destination)
		m.journal(ctx, guildID, "move_empty", summary)
		return summary, nil
	}

	moved := 0
	for _, userID := range occupants {
		if err := m.mover.MoveMember(guildID, userID, destID); err != nil {
			m.logger.Warn("member move failed",
				zap.String("guild_id", guildID),
				zap.String("user_id", userID),
				zap.Error(err))
			m.journal(ctx, guildID, "move_failed", "user="+userID)
			continue
		}
		moved++
	}

	summary := fmt.Sprintf("Moved %d %s from %s to %s.",
		moved, utils.Pluralize(moved, "user", "users"), sourceName, destination)
	m.journal(ctx, guildID, "move_done", summary)
	return summary, nil
}

func (m *Module) journal(ctx context.Context, guildID, event, details string) {
	if m.events == nil {
		return
	}
	level := eventlog.LevelInfo
	if event == "move_failed" {
		level = eventlog.LevelWarn
	}
	m.events.Log(ctx, level, guildID, "", event, details)
}
