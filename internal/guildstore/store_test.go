package guildstore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefaults(t *testing.T) {
	store := New(t.TempDir(), "server_logs")

	cfg, err := store.Load("g1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogChannelName != "server_logs" {
		t.Fatalf("expected default log channel, got %q", cfg.LogChannelName)
	}
	if cfg.LoggingEnabled {
		t.Fatalf("expected logging disabled by default")
	}

	dir, _ := store.GuildDir("g1")
	if _, err := os.Stat(filepath.Join(dir, "config.yml")); err != nil {
		t.Fatalf("expected config.yml persisted: %v", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	store := New(t.TempDir(), "server_logs")

	cfg, err := store.Load("g1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg.LoggingEnabled = true
	cfg.LogChannelName = "activity"
	cfg.AllowedRoles = []string{"Moderator"}
	if err := store.Save("g1", cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Load("g1")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !got.LoggingEnabled || got.LogChannelName != "activity" {
		t.Fatalf("unexpected config after reload: %+v", got)
	}
	if !got.HasAllowedRole([]string{"Moderator"}) {
		t.Fatalf("expected Moderator to be allowed")
	}
	if got.HasAllowedRole([]string{"Member"}) {
		t.Fatalf("did not expect Member to be allowed")
	}
}

func TestLoadMangledConfigFallsBack(t *testing.T) {
	base := t.TempDir()
	store := New(base, "server_logs")
	dir, _ := store.GuildDir("g1")
	if err := os.WriteFile(filepath.Join(dir, "config.yml"), []byte("{not yaml"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cfg, err := store.Load("g1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogChannelName != "server_logs" {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}
