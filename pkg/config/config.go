// Package config loads daemon configuration from an optional YAML file with
// environment variable overrides on top. Defaults are usable out of the box.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variable names recognized by Load.
const (
	envConfigPath   = "ODDSFEED_CONFIG"
	envListenAddr   = "ODDSFEED_LISTEN_ADDR"
	envResultsPath  = "ODDSFEED_RESULTS_PATH"
	envRedisAddr    = "ODDSFEED_REDIS_ADDR"
	envFetchTimeout = "ODDSFEED_FETCH_TIMEOUT"
)

// Config holds all daemon settings.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Adapters   AdaptersConfig   `yaml:"adapters"`
	ResultsLog ResultsLogConfig `yaml:"results_log"`
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	ListenAddr      string        `yaml:"listen_addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// AdaptersConfig holds per-source settings and shared fetch limits.
type AdaptersConfig struct {
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	RateLimit    float64       `yaml:"rate_limit"`
	MyBets       MyBetsConfig  `yaml:"mybets"`
	Statarea     SourceConfig  `yaml:"statarea"`
	ESPN         SourceConfig  `yaml:"espn"`
}

// SourceConfig is the common per-adapter block.
type SourceConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
}

// MyBetsConfig extends the common block with the source-side confidence cut.
type MyBetsConfig struct {
	SourceConfig  `yaml:",inline"`
	MinConfidence int `yaml:"min_confidence"`
}

// ResultsLogConfig describes the durable results store.
type ResultsLogConfig struct {
	Path      string `yaml:"path"`
	RedisAddr string `yaml:"redis_addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			ListenAddr:      ":8090",
			ShutdownTimeout: 10 * time.Second,
		},
		Adapters: AdaptersConfig{
			FetchTimeout: 8 * time.Second,
			RateLimit:    2,
			MyBets:       MyBetsConfig{SourceConfig: SourceConfig{Enabled: true}},
			Statarea:     SourceConfig{Enabled: true},
			ESPN:         SourceConfig{Enabled: true},
		},
		ResultsLog: ResultsLogConfig{
			Path: "data/results.json",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file named by path
// (or the ODDSFEED_CONFIG variable when path is empty), then environment
// overrides. A missing file is not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(envConfigPath)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Run on defaults.
		case err != nil:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnvOverrides()

	if cfg.Adapters.FetchTimeout <= 0 {
		cfg.Adapters.FetchTimeout = 8 * time.Second
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(envListenAddr); v != "" {
		c.Server.ListenAddr = v
	}
	if v := os.Getenv(envResultsPath); v != "" {
		c.ResultsLog.Path = v
	}
	if v := os.Getenv(envRedisAddr); v != "" {
		c.ResultsLog.RedisAddr = v
	}
	if v := os.Getenv(envFetchTimeout); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Adapters.FetchTimeout = d
		}
	}
}
