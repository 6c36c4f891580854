package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"voicekeeper/internal/chart"
	"voicekeeper/internal/guildstore"
	"voicekeeper/internal/history"
	"voicekeeper/internal/modules/eventlog"
	"voicekeeper/internal/presence"

	"go.uber.org/zap"
)

// Gateway is the delivery slice the generator needs: the guild roster,
// who is connected to voice right now, and two report sinks.
type Gateway interface {
	GuildIDs() []string
	ConnectedVoiceUsers(guildID string) []string
	SendToLogChannel(guildID, channelName, content, filename string, image []byte) error
	SendToOperator(content, filename string, image []byte) error
}

// Generator produces the once-a-day report for every guild: rolls the
// ledger over, appends the day's row, renders the chart, and delivers.
type Generator struct {
	tracker    *presence.Tracker
	guilds     *guildstore.Store
	gateway    Gateway
	events     *eventlog.Logger
	logger     *zap.Logger
	chartName  string
	windowDays int
}

func New(tracker *presence.Tracker, guilds *guildstore.Store, gateway Gateway, events *eventlog.Logger, logger *zap.Logger, chartName string, windowDays int) *Generator {
	if chartName == "" {
		chartName = "daily_report_plot.png"
	}
	if windowDays <= 0 {
		windowDays = 30
	}
	return &Generator{
		tracker:    tracker,
		guilds:     guilds,
		gateway:    gateway,
		events:     events,
		logger:     logger,
		chartName:  chartName,
		windowDays: windowDays,
	}
}

// Run executes the daily report pass. A failure in one guild skips that
// guild only. After every guild is processed, ledgers are repopulated
// from the members connected to voice right now so the new day starts
// with them counted.
func (g *Generator) Run(ctx context.Context, now time.Time) error {
	guildIDs := g.gateway.GuildIDs()
	for _, guildID := range guildIDs {
		if err := g.runGuild(ctx, guildID, now); err != nil {
			g.logger.Warn("daily report skipped for guild",
				zap.String("guild_id", guildID),
				zap.Error(err))
		}
	}

	for _, guildID := range guildIDs {
		users := g.gateway.ConnectedVoiceUsers(guildID)
		if err := g.tracker.Populate(guildID, users, now); err != nil {
			g.logger.Warn("ledger repopulation failed",
				zap.String("guild_id", guildID),
				zap.Error(err))
		}
	}
	return nil
}

func (g *Generator) runGuild(ctx context.Context, guildID string, now time.Time) error {
	guildDir, err := g.guilds.GuildDir(guildID)
	if err != nil {
		return fmt.Errorf("guild dir: %w", err)
	}

	// The ledger is cleared only after the day's row is durably
	// appended; a failed write leaves the counts intact for a retry.
	unique, minutes := g.tracker.DayTotals(guildID, now)
	row := history.Row{Date: now, UniqueUsers: unique, VoiceMinutes: minutes}
	if err := history.Append(guildDir, row); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	if _, _, err := g.tracker.ResetDay(guildID, now); err != nil {
		g.logger.Warn("ledger rollover persist failed",
			zap.String("guild_id", guildID),
			zap.Error(err))
	}

	rows, err := history.Read(guildDir)
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("empty history after append")
	}
	window := history.Tail(rows, g.windowDays)

	image, err := chart.Render("Daily Unique Voice Visitors", window)
	if err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	if err := os.WriteFile(filepath.Join(guildDir, g.chartName), image, 0o644); err != nil {
		return fmt.Errorf("write chart: %w", err)
	}

	stats := history.Summarize(window)
	summary := fmt.Sprintf(
		"Daily report for %s: %d unique visitor(s), %d voice minute(s). Trailing %d-day mean %.1f, max %d on %s.",
		now.Format(history.DateLayout), unique, minutes, len(window),
		stats.Mean, stats.Max, stats.MaxDate.Format(history.DateLayout))

	cfg, err := g.guilds.Load(guildID)
	if err != nil {
		return fmt.Errorf("guild config: %w", err)
	}
	if cfg.LoggingEnabled {
		if err := g.gateway.SendToLogChannel(guildID, cfg.LogChannelName, summary, g.chartName, image); err != nil {
			g.logger.Warn("report delivery to log channel failed",
				zap.String("guild_id", guildID),
				zap.Error(err))
		}
	}
	if err := g.gateway.SendToOperator(summary, g.chartName, image); err != nil {
		g.logger.Warn("report delivery to operator failed",
			zap.String("guild_id", guildID),
			zap.Error(err))
	}

	if g.events != nil {
		g.events.Log(ctx, eventlog.LevelInfo, guildID, "", "daily_report",
			fmt.Sprintf("unique=%d minutes=%d", unique, minutes))
	}
	return nil
}
