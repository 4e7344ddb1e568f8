package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Bancho holds all configuration for the session/chat fan-out process.
type Bancho struct {
	// HTTP listener (client-facing bancho surface)
	HTTPBindAddress string `yaml:"http_bind_address"`
	HTTPPort        int    `yaml:"http_port"`

	// Peer RPC listener (this process's own partition, serving remote
	// SessionService/ChatService calls from other partitions)
	PeerBindAddress string `yaml:"peer_bind_address"`
	PeerPort        int    `yaml:"peer_port"`

	// KnownPeers lists the other partitions' RPC addresses this process
	// dials out to when a request resolves outside its own ownership.
	KnownPeers []string `yaml:"known_peers"`

	// Database
	Database DatabaseConfig `yaml:"database"`

	// Logging
	LogLevel string `yaml:"log_level"` // debug, info, warn, error (default: info)

	// Session lifecycle
	SnapshotPath          string `yaml:"snapshot_path"`
	InactivityTimeout     int    `yaml:"inactivity_timeout"` // seconds, 0 disables the sweep
	SweepInterval         int    `yaml:"sweep_interval"`     // seconds
	PublicChannelCacheTTL int    `yaml:"public_channel_cache_ttl"` // seconds

	// Account
	AutoCreateAccounts bool `yaml:"auto_create_accounts"`

	// PublicChannels are auto-created at boot and, when AutoJoin is set,
	// joined by every session as it completes login.
	PublicChannels []PublicChannelEntry `yaml:"public_channels"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`

	// Connection pool parameters (optional, defaults from pgxpool apply if not set)
	MaxConns          int32  `yaml:"max_conns"`          // default: max(4, NumCPU)
	MinConns          int32  `yaml:"min_conns"`          // default: 0
	MaxConnLifetime   string `yaml:"max_conn_lifetime"`  // duration, e.g. "1h"
	MaxConnIdleTime   string `yaml:"max_conn_idle_time"` // duration, e.g. "30m"
	HealthCheckPeriod string `yaml:"health_check_period"` // duration, e.g. "1m"
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	base := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)

	var params []string
	if d.MaxConns > 0 {
		params = append(params, fmt.Sprintf("pool_max_conns=%d", d.MaxConns))
	}
	if d.MinConns > 0 {
		params = append(params, fmt.Sprintf("pool_min_conns=%d", d.MinConns))
	}
	if d.MaxConnLifetime != "" {
		params = append(params, fmt.Sprintf("pool_max_conn_lifetime=%s", d.MaxConnLifetime))
	}
	if d.MaxConnIdleTime != "" {
		params = append(params, fmt.Sprintf("pool_max_conn_idle_time=%s", d.MaxConnIdleTime))
	}
	if d.HealthCheckPeriod != "" {
		params = append(params, fmt.Sprintf("pool_health_check_period=%s", d.HealthCheckPeriod))
	}

	if len(params) > 0 {
		return base + "&" + strings.Join(params, "&")
	}
	return base
}

// PublicChannelEntry describes one channel auto-created at boot.
type PublicChannelEntry struct {
	Name              string `yaml:"name"`
	Description       string `yaml:"description"`
	MinPrivilegeRead  int64  `yaml:"min_privilege_read"`
	MinPrivilegeWrite int64  `yaml:"min_privilege_write"`
	AutoJoin          bool   `yaml:"auto_join"`
}

// DefaultBancho returns a Bancho config with sensible defaults.
func DefaultBancho() Bancho {
	return Bancho{
		HTTPBindAddress:       "0.0.0.0",
		HTTPPort:              5000,
		PeerBindAddress:       "127.0.0.1",
		PeerPort:              5001,
		LogLevel:              "info",
		SnapshotPath:          "bancho.snapshot",
		InactivityTimeout:     60,
		SweepInterval:         15,
		PublicChannelCacheTTL: 300,
		AutoCreateAccounts:    true,
		Database: DatabaseConfig{
			Host:     "127.0.0.1",
			Port:     5432,
			User:     "bancho",
			Password: "bancho",
			DBName:   "bancho",
			SSLMode:  "disable",
		},
		PublicChannels: []PublicChannelEntry{
			{Name: "#osu", Description: "Main channel", AutoJoin: true},
			{Name: "#announce", Description: "Announcements", MinPrivilegeWrite: 1 << 5, AutoJoin: true},
		},
	}
}

// envConfigPath names the environment variable that overrides the config
// file path, the way the teacher's loaders do for LA2GO_GAME_CONFIG.
const envConfigPath = "BANCHO_CONFIG_PATH"

// ResolvePath returns the config path to load: the env override if set,
// otherwise the given default.
func ResolvePath(defaultPath string) string {
	if p := os.Getenv(envConfigPath); p != "" {
		return p
	}
	return defaultPath
}

// LoadBancho loads the bancho process config from a YAML file.
// If the file doesn't exist, returns defaults.
func LoadBancho(path string) (Bancho, error) {
	cfg := DefaultBancho()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}
