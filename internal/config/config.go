// Package config loads and validates the daemon's server configuration and
// computes the fingerprint used to detect configuration drift between CLI
// invocations and a running daemon.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Default tunables, applied before the TOML file is decoded so that an
// incomplete config still produces a usable daemon (same defaults-then-file
// overlay pattern as the teacher's LoadConfig).
const (
	DefaultConcurrencyLimit = 8
	DefaultRetryMax         = 3
	DefaultRetryDelayMS     = 500
	DefaultTimeoutSecs      = 30
	DefaultDaemonTTL        = 300
	DefaultConfigName       = "mcp_servers.toml"
)

// TransportKind tags which variant of ServerTransport is populated.
type TransportKind string

const (
	TransportStdio TransportKind = "stdio"
	TransportHTTP  TransportKind = "http"
)

// ServerTransport is the tagged union of ways to reach an MCP server. TOML
// has no native sum type, so both variants' fields live side by side and
// Validate rejects any config where the fields present don't match Type.
type ServerTransport struct {
	Type TransportKind `toml:"type"`

	// Stdio fields
	Command string            `toml:"command,omitempty"`
	Args    []string          `toml:"args,omitempty"`
	Env     map[string]string `toml:"env,omitempty"`
	Cwd     string            `toml:"cwd,omitempty"`

	// Http fields
	URL     string            `toml:"url,omitempty"`
	Headers map[string]string `toml:"headers,omitempty"`
}

// ServerConfig describes one configured MCP server.
type ServerConfig struct {
	Name          string          `toml:"name"`
	Transport     ServerTransport `toml:"transport"`
	Description   string          `toml:"description,omitempty"`
	AllowedTools  []string        `toml:"allowed_tools,omitempty"`
	DisabledTools []string        `toml:"disabled_tools,omitempty"`
}

// LogConfig controls the daemon's slog + lumberjack setup. File is empty
// by default, and an empty File sends logs to stdout; a rotating log file
// is written only when File is set.
type LogConfig struct {
	Level      string `toml:"level"`  // debug, info, warn, error
	Format     string `toml:"format"` // text, json
	File       string `toml:"file"`   // rotated via lumberjack; empty falls back to stdout
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// Config is the immutable snapshot consumed at daemon start and compared
// via Fingerprint across daemon restarts.
type Config struct {
	Servers []ServerConfig `toml:"servers"`

	ConcurrencyLimit int       `toml:"concurrency_limit"`
	RetryMax         int       `toml:"retry_max"`
	RetryDelayMS     int       `toml:"retry_delay_ms"`
	TimeoutSecs      int       `toml:"timeout_secs"`
	DaemonTTL        int       `toml:"daemon_ttl"`
	Log              LogConfig `toml:"log"`
}

// GetLogLevel returns the slog.Level for Log.Level, defaulting to Info —
// grounded on the teacher's Config.GetLogLevel.
func (c *Config) GetLogLevel() slog.Level {
	switch strings.ToUpper(c.Log.Level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// defaults returns a Config pre-populated with tunable defaults; the TOML
// file is decoded on top of it, so any field it omits keeps its default.
func defaults() *Config {
	return &Config{
		ConcurrencyLimit: DefaultConcurrencyLimit,
		RetryMax:         DefaultRetryMax,
		RetryDelayMS:     DefaultRetryDelayMS,
		TimeoutSecs:      DefaultTimeoutSecs,
		DaemonTTL:        DefaultDaemonTTL,
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load reads and validates a TOML configuration file.
func Load(path string) (*Config, error) {
	cfg := defaults()

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("parse config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	overlayEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// overlayEnv lets a couple of operational knobs be overridden without
// touching the file on disk, the same supplement-with-env step the teacher's
// LoadConfig performs for secrets and critical items.
func overlayEnv(cfg *Config) {
	if lvl := os.Getenv("LOG"); lvl != "" {
		cfg.Log.Level = lvl
	}
	if lvl := os.Getenv("MCP_DAEMON_LOG_LEVEL"); lvl != "" {
		cfg.Log.Level = lvl
	}
	if ttl := getEnvInt("MCP_DAEMON_TTL", 0); ttl != 0 {
		cfg.DaemonTTL = ttl
	}
}

// Validate checks every invariant from the data model: unique non-empty
// server names, a fully populated transport per variant, and sane tunables.
// All problems are collected and reported together rather than failing on
// the first one, mirroring the teacher's Validate.
func (c *Config) Validate() error {
	var errs []string

	if c.ConcurrencyLimit < 1 {
		errs = append(errs, fmt.Sprintf("concurrency_limit must be >= 1, got %d", c.ConcurrencyLimit))
	}
	if c.RetryMax < 0 {
		errs = append(errs, fmt.Sprintf("retry_max must be >= 0, got %d", c.RetryMax))
	}
	if c.TimeoutSecs < 1 {
		errs = append(errs, fmt.Sprintf("timeout_secs must be >= 1, got %d", c.TimeoutSecs))
	}

	seen := make(map[string]bool, len(c.Servers))
	for i, s := range c.Servers {
		if s.Name == "" {
			errs = append(errs, fmt.Sprintf("servers[%d]: name must not be empty", i))
			continue
		}
		if seen[s.Name] {
			errs = append(errs, fmt.Sprintf("servers[%d]: duplicate server name %q", i, s.Name))
		}
		seen[s.Name] = true

		if err := validateTransport(s.Name, s.Transport); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config invalid: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateTransport(serverName string, t ServerTransport) error {
	switch t.Type {
	case TransportStdio:
		if t.Command == "" {
			return fmt.Errorf("server %q: stdio transport requires command", serverName)
		}
		if t.URL != "" || t.Headers != nil {
			return fmt.Errorf("server %q: stdio transport must not set url/headers", serverName)
		}
	case TransportHTTP:
		if t.URL == "" {
			return fmt.Errorf("server %q: http transport requires url", serverName)
		}
		if t.Command != "" || t.Args != nil || t.Env != nil || t.Cwd != "" {
			return fmt.Errorf("server %q: http transport must not set command/args/env/cwd", serverName)
		}
	default:
		return fmt.Errorf("server %q: unknown transport type %q (want stdio or http)", serverName, t.Type)
	}
	return nil
}

// findConfigPath resolves the file to load: an explicit --config flag wins,
// then MCP_CONFIG_PATH, then the default name in the working directory —
// grounded on the original Rust find_and_load resolution order.
func findConfigPath(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if env := os.Getenv("MCP_CONFIG_PATH"); env != "" {
		return env, nil
	}
	if _, err := os.Stat(DefaultConfigName); err == nil {
		return DefaultConfigName, nil
	}
	return "", fmt.Errorf("no config file found: pass --config or set MCP_CONFIG_PATH")
}

// FindAndLoad resolves a config path and loads it.
func FindAndLoad(explicit string) (*Config, error) {
	path, err := findConfigPath(explicit)
	if err != nil {
		return nil, err
	}
	return Load(path)
}

// ResolvePath exposes findConfigPath's resolution order (--config flag,
// then MCP_CONFIG_PATH, then the default name in the working directory) to
// callers that need the path itself rather than a loaded Config, such as
// the CLI's status diagnostics.
func ResolvePath(explicit string) (string, error) {
	return findConfigPath(explicit)
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return fallback
}
