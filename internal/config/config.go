// Package config loads the access monitor's on-disk defaults: the base
// directory new sessions are rooted under, which debug aspects they log by
// default, how long the injector waits for a spawned child's handshake, and
// where the re-exec wrapper binary lives. It mirrors the shape of
// wingthing's own config.Load/config.Save YAML-over-dotdir pattern, trimmed
// to the handful of knobs spec.md §6's configuration surface actually
// names.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/peterpjaspers/accessmonitor/internal/monitor"
)

const fileName = "config.yaml"

// Config holds the monitor-wide defaults start_session falls back to when
// a caller doesn't override them (spec.md §6's configuration surface).
type Config struct {
	// Directory is the default root under which a session's event
	// directory is created, when the caller doesn't pass one explicitly.
	Directory string `yaml:"directory,omitempty"`

	// LogAspects is a default aspect list (see monitor.ParseAspects),
	// e.g. "FileAccesses,WriteTime". Empty means no debug log by default.
	LogAspects string `yaml:"log_aspects,omitempty"`

	// HandshakeTimeoutSeconds bounds how long a spawn waits for a child
	// to report its interceptors are installed before treating the
	// child as unmonitored (spec.md §7's "Injection failure" policy).
	HandshakeTimeoutSeconds int `yaml:"handshake_timeout_seconds,omitempty"`

	// InitBinary is the path to the dedicated re-exec wrapper binary
	// (cmd/accessmonitor-init) that Spawn invokes in place of the
	// calling process's own executable, so a spawned child doesn't have
	// to load the full CLI's dependency graph (cobra, sqlite, ...) just
	// to install a seccomp filter and exec the real target. Empty means
	// "re-exec whatever binary is currently running" (os.Executable()).
	InitBinary string `yaml:"init_binary,omitempty"`

	// HistoryDB is the DSN passed to internal/history.Open for the
	// optional cross-session audit trail. Empty disables history.
	HistoryDB string `yaml:"history_db,omitempty"`
}

// Default returns the built-in defaults used when no config file exists
// and the caller supplied no overrides of its own.
func Default() *Config {
	return &Config{
		LogAspects:              "",
		HandshakeTimeoutSeconds: int(monitor.DefaultHandshakeTimeout / time.Second),
	}
}

// Load reads dir/config.yaml, overlaying it on Default(). A missing file is
// not an error — it's the common case for a first run.
func Load(dir string) (*Config, error) {
	cfg := Default()
	path := filepath.Join(dir, fileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to dir/config.yaml, creating dir if needed.
func Save(dir string, cfg *Config) error {
	if err := EnsureConfigDir(dir); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, fileName), data, 0o644)
}

// HandshakeTimeout converts HandshakeTimeoutSeconds to a time.Duration,
// falling back to monitor.DefaultHandshakeTimeout when unset.
func (c *Config) HandshakeTimeout() time.Duration {
	if c.HandshakeTimeoutSeconds <= 0 {
		return monitor.DefaultHandshakeTimeout
	}
	return time.Duration(c.HandshakeTimeoutSeconds) * time.Second
}

// Aspects parses LogAspects into a monitor.Aspect bit-set.
func (c *Config) Aspects() monitor.Aspect {
	return monitor.ParseAspects(c.LogAspects)
}

// SessionDirectory resolves the effective session base directory: an
// explicit override if non-empty, otherwise c.Directory, otherwise the
// current project root (spec.md §6's "directory" option, with the
// project-root fallback supplementing what the distilled spec leaves
// implicit).
func (c *Config) SessionDirectory(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if c.Directory != "" {
		return c.Directory, nil
	}
	return ProjectRoot()
}
