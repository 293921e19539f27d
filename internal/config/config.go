// Package config loads crucible's configuration from crucible.yaml with
// sensible defaults, so the binary runs with no config file at all.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// BackendConfig points at the optional interpreter service (an
// OpenAI-compatible endpoint). An empty base URL disables the service and
// every execution uses the local subprocess.
type BackendConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
}

type InterpreterConfig struct {
	Workspace      string `mapstructure:"workspace"`
	Python         string `mapstructure:"python"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	FigureDPI      int    `mapstructure:"figure_dpi"`
	ProfilesDir    string `mapstructure:"profiles_dir"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type StorageConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DBPath  string `mapstructure:"db_path"`
}

type Config struct {
	Interpreter InterpreterConfig `mapstructure:"interpreter"`
	Backend     BackendConfig     `mapstructure:"backend"`
	Server      ServerConfig      `mapstructure:"server"`
	Storage     StorageConfig     `mapstructure:"storage"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("crucible")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.crucible")

	v.SetDefault("interpreter.workspace", "output")
	v.SetDefault("interpreter.python", "python3")
	v.SetDefault("interpreter.timeout_seconds", 30)
	v.SetDefault("interpreter.figure_dpi", 150)
	v.SetDefault("interpreter.profiles_dir", "profiles")
	v.SetDefault("server.port", 8080)
	v.SetDefault("storage.enabled", true)
	v.SetDefault("storage.db_path", filepath.Join(os.Getenv("HOME"), ".crucible", "history.db"))

	if err := v.ReadInConfig(); err != nil {
		// Running without a config file is the normal case; only a broken
		// file is fatal.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Expand environment variable references in the API key
	if key := cfg.Backend.APIKey; strings.HasPrefix(key, "${") && strings.HasSuffix(key, "}") {
		cfg.Backend.APIKey = os.Getenv(key[2 : len(key)-1])
	}

	return &cfg, nil
}
