// Package config loads master runtime configuration: defaults, a TOML file
// overlay, then MASTERCTL_* environment overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// Commands configures the argv used to start each worker process kind. An
// empty argv disables launching that kind.
type Commands struct {
	World []string `toml:"world"`
	Chat  []string `toml:"chat"`
	Auth  []string `toml:"auth"`
}

// Config is the full master runtime configuration.
type Config struct {
	ListenAddr   string `toml:"listen_addr" env:"MASTERCTL_LISTEN_ADDR"`
	ExternalIP   string `toml:"external_ip" env:"MASTERCTL_EXTERNAL_IP"`
	DatabasePath string `toml:"database_path" env:"MASTERCTL_DATABASE_PATH"`
	LogDir       string `toml:"log_dir" env:"MASTERCTL_LOG_DIR"`
	// MetricsAddr empty disables the admin endpoint entirely.
	MetricsAddr string `toml:"metrics_addr" env:"MASTERCTL_METRICS_ADDR"`

	TickPeriodMS  int    `toml:"tick_period_ms" env:"MASTERCTL_TICK_PERIOD_MS"`
	WorldPortBase uint32 `toml:"world_port_base" env:"MASTERCTL_WORLD_PORT_BASE"`
	SoftCap       int    `toml:"soft_cap" env:"MASTERCTL_SOFT_CAP"`
	HardCap       int    `toml:"hard_cap" env:"MASTERCTL_HARD_CAP"`

	PrestartServers bool     `toml:"prestart_servers" env:"MASTERCTL_PRESTART_SERVERS"`
	PrestartZones   []uint32 `toml:"prestart_zones"`

	Commands Commands `toml:"commands"`
}

// Default supplies every value; file and environment only overlay it.
func Default() Config {
	return Config{
		ListenAddr:    ":2000",
		ExternalIP:    "127.0.0.1",
		DatabasePath:  "master.db",
		TickPeriodMS:  16,
		WorldPortBase: 3000,
		SoftCap:       8,
		HardCap:       12,
		PrestartZones: []uint32{0, 1000},
	}
}

// Load reads a TOML file over the defaults, overlaying only keys the file
// actually sets, then applies environment overrides and validates.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw Config
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load master config: %w", err)
	}

	if meta.IsDefined("listen_addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("external_ip") {
		cfg.ExternalIP = strings.TrimSpace(raw.ExternalIP)
	}
	if meta.IsDefined("database_path") {
		cfg.DatabasePath = strings.TrimSpace(raw.DatabasePath)
	}
	if meta.IsDefined("log_dir") {
		cfg.LogDir = strings.TrimSpace(raw.LogDir)
	}
	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}
	if meta.IsDefined("tick_period_ms") {
		cfg.TickPeriodMS = raw.TickPeriodMS
	}
	if meta.IsDefined("world_port_base") {
		cfg.WorldPortBase = raw.WorldPortBase
	}
	if meta.IsDefined("soft_cap") {
		cfg.SoftCap = raw.SoftCap
	}
	if meta.IsDefined("hard_cap") {
		cfg.HardCap = raw.HardCap
	}
	if meta.IsDefined("prestart_servers") {
		cfg.PrestartServers = raw.PrestartServers
	}
	if meta.IsDefined("prestart_zones") {
		cfg.PrestartZones = raw.PrestartZones
	}
	if meta.IsDefined("commands", "world") {
		cfg.Commands.World = raw.Commands.World
	}
	if meta.IsDefined("commands", "chat") {
		cfg.Commands.Chat = raw.Commands.Chat
	}
	if meta.IsDefined("commands", "auth") {
		cfg.Commands.Auth = raw.Commands.Auth
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("load master config env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the master cannot run with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ListenAddr) == "" {
		return fmt.Errorf("master config missing listen_addr")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("master config missing database_path")
	}
	if c.TickPeriodMS <= 0 {
		return fmt.Errorf("master config tick_period_ms must be positive, got %d", c.TickPeriodMS)
	}
	if c.WorldPortBase == 0 || c.WorldPortBase > 65535 {
		return fmt.Errorf("master config world_port_base out of range: %d", c.WorldPortBase)
	}
	if c.SoftCap < 1 {
		return fmt.Errorf("master config soft_cap must be at least 1, got %d", c.SoftCap)
	}
	if c.HardCap < c.SoftCap {
		return fmt.Errorf("master config hard_cap %d below soft_cap %d", c.HardCap, c.SoftCap)
	}
	return nil
}

// TickPeriod is the tick loop period as a duration.
func (c Config) TickPeriod() time.Duration {
	return time.Duration(c.TickPeriodMS) * time.Millisecond
}
