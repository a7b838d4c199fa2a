package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "master.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoadOverlaysOnlyDefinedKeys(t *testing.T) {
	path := writeConfig(t, `
listen_addr = ":2100"
soft_cap = 4

[commands]
world = ["worldserver", "-config", "world.toml"]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":2100" {
		t.Fatalf("file key not applied: %q", cfg.ListenAddr)
	}
	if cfg.SoftCap != 4 {
		t.Fatalf("soft_cap not applied: %d", cfg.SoftCap)
	}
	// Untouched keys keep their defaults.
	if cfg.DatabasePath != "master.db" || cfg.TickPeriodMS != 16 || cfg.HardCap != 12 {
		t.Fatalf("defaults disturbed: %+v", cfg)
	}
	if len(cfg.Commands.World) != 3 || cfg.Commands.World[0] != "worldserver" {
		t.Fatalf("commands.world not applied: %v", cfg.Commands.World)
	}
	if len(cfg.Commands.Chat) != 0 {
		t.Fatalf("commands.chat must stay empty")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `listen_addr = ":2100"`)
	t.Setenv("MASTERCTL_LISTEN_ADDR", ":2200")
	t.Setenv("MASTERCTL_SOFT_CAP", "3")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":2200" {
		t.Fatalf("env must win over file: %q", cfg.ListenAddr)
	}
	if cfg.SoftCap != 3 {
		t.Fatalf("env soft_cap not applied: %d", cfg.SoftCap)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"blank listen addr":   func(c *Config) { c.ListenAddr = " " },
		"blank database path": func(c *Config) { c.DatabasePath = "" },
		"zero tick period":    func(c *Config) { c.TickPeriodMS = 0 },
		"port base zero":      func(c *Config) { c.WorldPortBase = 0 },
		"port base too large": func(c *Config) { c.WorldPortBase = 70000 },
		"zero soft cap":       func(c *Config) { c.SoftCap = 0 },
		"hard cap below soft": func(c *Config) { c.SoftCap = 8; c.HardCap = 4 },
	} {
		cfg := Default()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestTickPeriod(t *testing.T) {
	cfg := Default()
	if cfg.TickPeriod() != 16*time.Millisecond {
		t.Fatalf("unexpected tick period: %v", cfg.TickPeriod())
	}
}

func TestTemplateRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master.toml")
	if err := WriteTemplate(path, false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("template must load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("template must validate: %v", err)
	}
	if err := WriteTemplate(path, false); err == nil {
		t.Fatalf("expected overwrite refusal")
	}
	if err := WriteTemplate(path, true); err != nil {
		t.Fatalf("forced overwrite: %v", err)
	}
}
