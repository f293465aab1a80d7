// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Process-wide configuration: environment variables plus an optional TOML
// file. Both are ignored for set-id processes, whose environment is under
// the control of a less privileged caller.

package control

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joeycumines/logiface"
)

const (
	// EnvExcludePollMethod names poll backends never to auto-select,
	// separated by spaces or commas.
	EnvExcludePollMethod = "IV_EXCLUDE_POLL_METHOD"
	// EnvConfigFile is the path of an optional TOML configuration file.
	EnvConfigFile = "IV_CONFIG"
)

// Config holds process-wide settings.
type Config struct {
	ExcludePollMethods []string
	LogLevel           logiface.Level

	// worker pool defaults
	MaxThreads  int
	IdleTimeout time.Duration
}

type fileConfig struct {
	ExcludePollMethods []string `toml:"exclude_poll_methods"`
	LogLevel           string   `toml:"log_level"`
	Pool               struct {
		MaxThreads  int           `toml:"max_threads"`
		IdleTimeout time.Duration `toml:"idle_timeout"`
	} `toml:"pool"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() Config {
	return Config{
		LogLevel:    logiface.LevelWarning,
		MaxThreads:  runtime.NumCPU(),
		IdleTimeout: 10 * time.Second,
	}
}

// LoadConfig builds the configuration from the environment. On error the
// returned Config still holds every setting that could be applied.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if !identityMatches() {
		return cfg, nil
	}
	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return cfg, err
		}
	}
	cfg.ExcludePollMethods = append(cfg.ExcludePollMethods,
		splitList(os.Getenv(EnvExcludePollMethod))...)
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return fmt.Errorf("control: config %s: %w", path, err)
	}
	for _, m := range fc.ExcludePollMethods {
		c.ExcludePollMethods = append(c.ExcludePollMethods, splitList(m)...)
	}
	if fc.Pool.MaxThreads > 0 {
		c.MaxThreads = fc.Pool.MaxThreads
	}
	if fc.Pool.IdleTimeout > 0 {
		c.IdleTimeout = fc.Pool.IdleTimeout
	}
	if fc.LogLevel != "" {
		lvl, err := ParseLevel(fc.LogLevel)
		if err != nil {
			return fmt.Errorf("control: config %s: %w", path, err)
		}
		c.LogLevel = lvl
	}
	return nil
}

func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
}

// ParseLevel maps a syslog-style level name to a logiface level.
func ParseLevel(s string) (logiface.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "disabled", "none":
		return logiface.LevelDisabled, nil
	case "emerg", "emergency":
		return logiface.LevelEmergency, nil
	case "alert":
		return logiface.LevelAlert, nil
	case "crit", "critical":
		return logiface.LevelCritical, nil
	case "err", "error":
		return logiface.LevelError, nil
	case "warn", "warning":
		return logiface.LevelWarning, nil
	case "notice":
		return logiface.LevelNotice, nil
	case "info", "informational":
		return logiface.LevelInformational, nil
	case "debug":
		return logiface.LevelDebug, nil
	case "trace":
		return logiface.LevelTrace, nil
	}
	return logiface.LevelDisabled, fmt.Errorf("unknown log level %q", s)
}
