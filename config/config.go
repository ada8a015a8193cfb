package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/threadgoon/threadgoon/naming"
)

// EnvPrefix prefixes environment variable overrides, e.g.
// THREADGOON_DOWNLOAD_OUTPUT_DIR for download.output_dir
const EnvPrefix = "THREADGOON"

// Load loads the configuration from file, .env and environment.
// A missing config file in the standard locations is not an error;
// an explicitly given configPath must exist.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env: %w", err)
	}

	v := viper.New()

	// Set default values
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config in standard locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		// Check current directory first
		v.AddConfigPath(".")

		// Check home directory
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".threadgoon"))
		}

		// Check /etc
		v.AddConfigPath("/etc/threadgoon/")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Board defaults
	v.SetDefault("board.name", "gif")
	v.SetDefault("board.api_url", "https://a.4cdn.org")
	v.SetDefault("board.media_url", "https://i.4cdn.org")
	v.SetDefault("board.extensions", []string{".webm"})
	v.SetDefault("board.skip_sticky", true)

	// HTTP defaults
	v.SetDefault("http.connect_timeout", "10s")
	v.SetDefault("http.read_timeout", "30s")
	v.SetDefault("http.user_agent", "threadgoon")

	// Download defaults
	v.SetDefault("download.output_dir", ".")
	v.SetDefault("download.chunk_size", 8192)
	v.SetDefault("download.concurrency", 0)
	v.SetDefault("download.naming", string(naming.ModeStable))

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.color", true)
	v.SetDefault("logging.file", "download.log")

	v.SetDefault("metrics.textfile", "")
}

// Validate checks the configuration again, e.g. after command-line
// overrides were applied to a loaded Config
func (c *Config) Validate() error {
	return validate(c)
}

// validate checks if the configuration is valid
func validate(cfg *Config) error {
	if cfg.Board.Name == "" {
		return fmt.Errorf("board.name is required")
	}
	if strings.ContainsAny(cfg.Board.Name, "/\\") {
		return fmt.Errorf("invalid board.name: %s", cfg.Board.Name)
	}

	if err := validateURL("board.api_url", cfg.Board.APIURL); err != nil {
		return err
	}
	if err := validateURL("board.media_url", cfg.Board.MediaURL); err != nil {
		return err
	}

	if len(cfg.Board.Extensions) == 0 {
		return fmt.Errorf("board.extensions must list at least one extension")
	}

	if cfg.HTTP.ConnectTimeout <= 0 {
		return fmt.Errorf("http.connect_timeout must be positive")
	}
	if cfg.HTTP.ReadTimeout <= 0 {
		return fmt.Errorf("http.read_timeout must be positive")
	}

	if cfg.Download.ChunkSize <= 0 {
		return fmt.Errorf("download.chunk_size must be positive")
	}
	if cfg.Download.Concurrency < 0 {
		return fmt.Errorf("download.concurrency must not be negative")
	}
	if !naming.Mode(cfg.Download.Naming).Valid() {
		return fmt.Errorf("invalid download.naming: %s (must be '%s' or '%s')",
			cfg.Download.Naming, naming.ModeStable, naming.ModeUnique)
	}

	for name, expression := range cfg.Filters {
		if strings.TrimSpace(expression) == "" {
			return fmt.Errorf("filter %q has an empty expression", name)
		}
	}

	// Validate logging level
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s", cfg.Logging.Level)
	}

	// Validate logging format
	validFormats := map[string]bool{
		"console": true,
		"json":    true,
	}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("invalid logging format: %s", cfg.Logging.Format)
	}

	return nil
}

func validateURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL: %q", key, raw)
	}
	return nil
}
