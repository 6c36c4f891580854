package guildstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// GuildConfig is the per-guild settings record, persisted as
// guilds/<id>/config.yml. Mutations always rewrite the full record.
type GuildConfig struct {
	LogChannelName string   `yaml:"log_channel_name"`
	LoggingEnabled bool     `yaml:"logging_enabled"`
	AllowedRoles   []string `yaml:"allowed_roles"`
}

func (c GuildConfig) HasAllowedRole(roleNames []string) bool {
	for _, name := range roleNames {
		for _, allowed := range c.AllowedRoles {
			if name == allowed {
				return true
			}
		}
	}
	return false
}

// Store owns the file-per-guild settings tree. Reads far outnumber
// writes; both go through a single lock so a save is never observed
// half-written alongside a concurrent load.
type Store struct {
	mu                sync.Mutex
	baseDir           string
	defaultLogChannel string
}

func New(baseDir, defaultLogChannel string) *Store {
	if defaultLogChannel == "" {
		defaultLogChannel = "server_logs"
	}
	return &Store{baseDir: baseDir, defaultLogChannel: defaultLogChannel}
}

// GuildDir returns the per-guild state directory, creating it if needed.
func (s *Store) GuildDir(guildID string) (string, error) {
	dir := filepath.Join(s.baseDir, guildID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create guild dir: %w", err)
	}
	return dir, nil
}

func (s *Store) defaults() GuildConfig {
	return GuildConfig{
		LogChannelName: s.defaultLogChannel,
		LoggingEnabled: false,
	}
}

// Load returns the persisted config for a guild, creating and persisting
// defaults on first access.
func (s *Store) Load(guildID string) (GuildConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir, err := s.GuildDir(guildID)
	if err != nil {
		return GuildConfig{}, err
	}
	path := filepath.Join(dir, "config.yml")

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return GuildConfig{}, err
		}
		cfg := s.defaults()
		if err := writeAtomic(path, cfg); err != nil {
			return GuildConfig{}, err
		}
		return cfg, nil
	}

	cfg := s.defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		// A mangled config is treated as no data yet, not a fatal state.
		cfg = s.defaults()
		if err := writeAtomic(path, cfg); err != nil {
			return GuildConfig{}, err
		}
	}
	if cfg.LogChannelName == "" {
		cfg.LogChannelName = s.defaultLogChannel
	}
	return cfg, nil
}

// Save overwrites the guild's persisted record atomically.
func (s *Store) Save(guildID string, cfg GuildConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir, err := s.GuildDir(guildID)
	if err != nil {
		return err
	}
	return writeAtomic(filepath.Join(dir, "config.yml"), cfg)
}

// writeAtomic marshals v to YAML and swaps it into place with a rename so
// concurrent readers never see a partial write.
func writeAtomic(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// WriteYAML persists any per-guild YAML artifact (ledger, last-seen map)
// with the same atomic-swap discipline as config saves.
func WriteYAML(path string, v any) error {
	return writeAtomic(path, v)
}
