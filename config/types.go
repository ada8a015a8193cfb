package config

import (
	"time"
)

// Config represents the complete configuration structure
type Config struct {
	Board    BoardConfig    `mapstructure:"board"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Download DownloadConfig `mapstructure:"download"`
	Filters  FilterConfig   `mapstructure:"filters"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// BoardConfig selects the board and its API endpoints
type BoardConfig struct {
	Name       string   `mapstructure:"name"`
	APIURL     string   `mapstructure:"api_url"`
	MediaURL   string   `mapstructure:"media_url"`
	Extensions []string `mapstructure:"extensions"`
	SkipSticky bool     `mapstructure:"skip_sticky"`
}

// HTTPConfig contains network settings
type HTTPConfig struct {
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// DownloadConfig contains settings for the batch downloader
type DownloadConfig struct {
	OutputDir   string `mapstructure:"output_dir"`
	ChunkSize   int    `mapstructure:"chunk_size"`
	Concurrency int    `mapstructure:"concurrency"`
	Naming      string `mapstructure:"naming"`
}

// FilterConfig maps filter names to expressions usable with --filter
type FilterConfig map[string]string

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Color  bool   `mapstructure:"color"`
	File   string `mapstructure:"file"`
}

// MetricsConfig contains metrics export settings
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}
