// Package config loads the optional project configuration file, a .env
// file and CONVOSCRIPT_* environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file looked up when no path is given.
const DefaultFile = "convoscript.yaml"

// Config is the project configuration. Command-line flags override it.
type Config struct {
	// HistoryDB is the run history database. Empty disables history.
	HistoryDB    string `yaml:"history_db"`
	Parallel     int    `yaml:"parallel"`
	LogFormat    string `yaml:"log_format"`
	LogLevel     string `yaml:"log_level"`
	ScenariosDir string `yaml:"scenarios_dir"`
}

// Default returns the configuration used when nothing is configured.
func Default() Config {
	return Config{
		Parallel:     4,
		LogFormat:    "text",
		LogLevel:     "info",
		ScenariosDir: "scenarios",
	}
}

// Load builds the configuration: defaults, then the YAML file at path,
// then .env (never overriding variables already set), then environment
// overrides. An empty path reads DefaultFile if it exists; an explicit path
// must exist.
func Load(path, dotenv string) (Config, error) {
	cfg := Default()

	file, required := path, true
	if file == "" {
		file, required = DefaultFile, false
	}
	if err := loadFile(&cfg, file, required); err != nil {
		return Config{}, err
	}

	if err := LoadDotEnv(dotenv); err != nil {
		return Config{}, err
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(cfg *Config, path string, required bool) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && !required {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

// LoadDotEnv loads environment variables from path (".env" if empty).
// A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.HistoryDB = envStr("CONVOSCRIPT_HISTORY_DB", c.HistoryDB)
	c.Parallel = envInt("CONVOSCRIPT_PARALLEL", c.Parallel)
	c.LogFormat = envStr("CONVOSCRIPT_LOG_FORMAT", c.LogFormat)
	c.LogLevel = envStr("CONVOSCRIPT_LOG_LEVEL", c.LogLevel)
	c.ScenariosDir = envStr("CONVOSCRIPT_SCENARIOS_DIR", c.ScenariosDir)
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.Parallel < 1 {
		return fmt.Errorf("parallel must be at least 1, got %d", c.Parallel)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
