package eventlog

import (
	"context"
	"time"

	"voicekeeper/internal/storage"

	"go.uber.org/zap"
)

const (
	LevelInfo = "INFO"
	LevelWarn = "WARN"
)

// Logger journals structured records to the event store and mirrors them
// to the process log, so every background job and voice transition leaves
// a timestamped trail with guild context.
type Logger struct {
	store  *storage.Store
	logger *zap.Logger
}

func New(store *storage.Store, logger *zap.Logger) *Logger {
	return &Logger{store: store, logger: logger}
}

func (l *Logger) Log(ctx context.Context, level, guildID, userID, event, details string) {
	if l.store != nil {
		err := l.store.AddEvent(ctx, storage.Event{
			GuildID:   guildID,
			UserID:    userID,
			Level:     level,
			Event:     event,
			Details:   details,
			CreatedAt: time.Now(),
		})
		if err != nil {
			l.logger.Warn("event journal write failed", zap.String("event", event), zap.Error(err))
		}
	}
	l.logger.Info("event",
		zap.String("level", level),
		zap.String("guild_id", guildID),
		zap.String("user_id", userID),
		zap.String("event", event),
		zap.String("details", details))
}
