package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken      string          `yaml:"discord_token"`
	GuildDataDir      string          `yaml:"guild_data_dir"`
	DatabasePath      string          `yaml:"database_path"`
	LogLevel          string          `yaml:"log_level"`
	Timezone          string          `yaml:"timezone"`
	DeveloperID       string          `yaml:"developer_id"`
	DefaultLogChannel string          `yaml:"default_log_channel"`
	CommandPrefix     string          `yaml:"command_prefix"`
	RetentionDays     int             `yaml:"retention_days"`
	ChartPath         string          `yaml:"chart_path"`
	ChartWindowDays   int             `yaml:"chart_window_days"`
	Report            JobTime         `yaml:"report"`
	Relocate          RelocateConfig  `yaml:"relocate"`
	Restart           RestartConfig   `yaml:"restart"`
	VersionCheck      VersionConfig   `yaml:"version_check"`
	GameRooms         GameRoomsConfig `yaml:"game_rooms"`
}

type JobTime struct {
	Hour   int `yaml:"hour"`
	Minute int `yaml:"minute"`
}

type RelocateConfig struct {
	JobTime     `yaml:",inline"`
	Sources     []string `yaml:"sources"`
	Destination string   `yaml:"destination"`
}

type RestartConfig struct {
	JobTime `yaml:",inline"`
	Weekday int `yaml:"weekday"`
}

type VersionConfig struct {
	Enabled         bool   `yaml:"enabled"`
	IntervalSeconds int    `yaml:"interval_seconds"`
	Repo            string `yaml:"repo"`
	GithubToken     string `yaml:"github_token"`
}

type GameRoomsConfig struct {
	Categories  []string `yaml:"categories"`
	MaxChannels int      `yaml:"max_channels"`
}

func DefaultConfig() Config {
	return Config{
		GuildDataDir:      "guilds",
		DatabasePath:      "voicekeeper.db",
		LogLevel:          "info",
		Timezone:          "America/Chicago",
		DefaultLogChannel: "server_logs",
		CommandPrefix:     "!",
		RetentionDays:     90,
		ChartPath:         "daily_report_plot.png",
		ChartWindowDays:   30,
		Report:            JobTime{Hour: 6, Minute: 0},
		Relocate: RelocateConfig{
			JobTime:     JobTime{Hour: 18, Minute: 0},
			Sources:     []string{"Twerk", "Work"},
			Destination: "Member General",
		},
		Restart: RestartConfig{
			JobTime: JobTime{Hour: 4, Minute: 1},
			Weekday: 2,
		},
		VersionCheck: VersionConfig{
			Enabled:         false,
			IntervalSeconds: 30,
		},
		GameRooms: GameRoomsConfig{
			Categories:  []string{"Member Game Rooms", "Public Game Rooms"},
			MaxChannels: 9,
		},
	}
}

func Load() (Config, error) {
	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.GuildDataDir = envString("GUILD_DATA_DIR", cfg.GuildDataDir)
	cfg.DatabasePath = envString("DATABASE_PATH", cfg.DatabasePath)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.Timezone = envString("SERVER_TIMEZONE", cfg.Timezone)
	cfg.DeveloperID = envString("DEVELOPER_ID", cfg.DeveloperID)
	cfg.DefaultLogChannel = envString("DEFAULT_LOG_CHANNEL", cfg.DefaultLogChannel)
	cfg.RetentionDays = envInt("RETENTION_DAYS", cfg.RetentionDays)
	cfg.ChartWindowDays = envInt("CHART_WINDOW_DAYS", cfg.ChartWindowDays)
	cfg.Report.Hour = envInt("REPORT_HOUR", cfg.Report.Hour)
	cfg.Report.Minute = envInt("REPORT_MINUTE", cfg.Report.Minute)
	cfg.Relocate.Hour = envInt("RELOCATE_HOUR", cfg.Relocate.Hour)
	cfg.Relocate.Minute = envInt("RELOCATE_MINUTE", cfg.Relocate.Minute)
	cfg.Relocate.Destination = envString("RELOCATE_DESTINATION", cfg.Relocate.Destination)
	cfg.Restart.Weekday = envInt("RESTART_WEEKDAY", cfg.Restart.Weekday)
	cfg.VersionCheck.Enabled = envBool("VERSION_CHECK_ENABLED", cfg.VersionCheck.Enabled)
	cfg.VersionCheck.IntervalSeconds = envInt("VERSION_CHECK_INTERVAL_SECONDS", cfg.VersionCheck.IntervalSeconds)
	cfg.VersionCheck.Repo = envString("VERSION_CHECK_REPO", cfg.VersionCheck.Repo)
	cfg.VersionCheck.GithubToken = envString("GITHUB_TOKEN", cfg.VersionCheck.GithubToken)
	cfg.GameRooms.MaxChannels = envInt("GAME_ROOM_MAX_CHANNELS", cfg.GameRooms.MaxChannels)
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := strings.ToLower(level)
	switch lvl {
	case "debug", "info", "warn", "error":
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(lvl))
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}
