package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DEPTHMESH_"

// Load loads configuration with priority: defaults < file < env < flags.
// An empty path searches the standard locations. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", path, err)
		}
	}
	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if flags != nil {
		if err := applyFlags(cfg, flags); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// findConfigFile looks for config in standard locations.
func findConfigFile() string {
	candidates := []string{
		"./depthmesh.yaml",
		filepath.Join(ConfigDir(), "config.yaml"),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "depthmesh")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "depthmesh")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "depthmesh")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "depthmesh")
	}
}

// loadFromFile loads config from a YAML file, merging with existing values.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

type lookupFunc func(key string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	var firstErr error
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	parse := func(key string, set func(string) error) {
		v, ok := lookup(EnvPrefix + key)
		if !ok || firstErr != nil {
			return
		}
		if err := set(strings.TrimSpace(v)); err != nil {
			firstErr = fmt.Errorf("env %s%s: %w", EnvPrefix, key, err)
		}
	}

	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FILE", &cfg.Log.File)
	str("GATEWAY_BASE_URL", &cfg.Gateway.BaseURL)
	str("GATEWAY_API_KEY", &cfg.Gateway.APIKey)
	str("GATEWAY_MODEL", &cfg.Gateway.Model)
	parse("GATEWAY_TIMEOUT", func(s string) (err error) {
		cfg.Gateway.Timeout, err = time.ParseDuration(s)
		return err
	})
	parse("GATEWAY_RPS", func(s string) (err error) {
		cfg.Gateway.RequestsPerSecond, err = strconv.ParseFloat(s, 64)
		return err
	})
	str("STORE_DSN", &cfg.Store.DSN)
	str("SERVER_ADDR", &cfg.Server.Addr)
	parse("SERVER_WORKERS", func(s string) (err error) {
		cfg.Server.Workers, err = strconv.Atoi(s)
		return err
	})
	parse("ASSEMBLER_SEED", func(s string) (err error) {
		cfg.Assembler.Seed, err = strconv.ParseInt(s, 10, 64)
		return err
	})
	parse("ASSEMBLER_DAMPED_STRENGTH", func(s string) (err error) {
		cfg.Assembler.DampedStrength, err = strconv.ParseFloat(s, 64)
		return err
	})
	return firstErr
}

// Flag names understood by applyFlags. Commands register the subset
// they need; unregistered or unchanged flags are ignored.
const (
	FlagLogLevel = "log-level"
	FlagDebug    = "debug"
	FlagAPIKey   = "api-key"
	FlagDSN      = "db"
	FlagAddr     = "addr"
	FlagSeed     = "seed"
	FlagWidth    = "width"
	FlagHeight   = "height"
	FlagColor    = "color"
)

// applyFlags applies CLI flag overrides that were explicitly set.
func applyFlags(cfg *Config, fs *pflag.FlagSet) error {
	changed := func(name string) bool {
		f := fs.Lookup(name)
		return f != nil && f.Changed
	}
	var err error
	if changed(FlagLogLevel) {
		cfg.Log.Level, err = fs.GetString(FlagLogLevel)
	}
	if err == nil && changed(FlagDebug) {
		var debug bool
		if debug, err = fs.GetBool(FlagDebug); debug {
			cfg.Log.Level = "debug"
		}
	}
	if err == nil && changed(FlagAPIKey) {
		cfg.Gateway.APIKey, err = fs.GetString(FlagAPIKey)
	}
	if err == nil && changed(FlagDSN) {
		cfg.Store.DSN, err = fs.GetString(FlagDSN)
	}
	if err == nil && changed(FlagAddr) {
		cfg.Server.Addr, err = fs.GetString(FlagAddr)
	}
	if err == nil && changed(FlagSeed) {
		cfg.Assembler.Seed, err = fs.GetInt64(FlagSeed)
	}
	if err == nil && changed(FlagWidth) {
		cfg.Render.Width, err = fs.GetInt(FlagWidth)
	}
	if err == nil && changed(FlagHeight) {
		cfg.Render.Height, err = fs.GetInt(FlagHeight)
	}
	if err == nil && changed(FlagColor) {
		cfg.Render.Color, err = fs.GetString(FlagColor)
	}
	if err != nil {
		return fmt.Errorf("applying flags: %w", err)
	}
	return nil
}
