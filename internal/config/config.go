package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every runtime setting of the campus-mcp binaries.
type Config struct {
	DatasetURL     string        `env:"DATASET_URL"     envDefault:"http://localhost:8080/universities.json"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`

	CacheKey     string        `env:"CACHE_KEY"     envDefault:"campus_connect_universities"`
	CacheVersion string        `env:"CACHE_VERSION" envDefault:"v1"`
	CacheTTL     time.Duration `env:"CACHE_TTL"     envDefault:"24h"`
	CacheSocket  string        `env:"CACHE_SOCK"`
	CacheDB      string        `env:"CACHE_DB"`
	CacheBucket  string        `env:"CACHE_BUCKET"  envDefault:"campus"`
	PurgeEvery   time.Duration `env:"CACHE_PURGE_INTERVAL" envDefault:"10m"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	HomepageTTL time.Duration `env:"HOMEPAGE_TTL" envDefault:"6h"`

	MaxResults     int `env:"SEARCH_MAX_RESULTS"       envDefault:"8"`
	MinQueryLength int `env:"SEARCH_MIN_QUERY_LENGTH"  envDefault:"2"`

	HTTPAddr string `env:"HTTP_ADDR"`

	LogPath   string `env:"LOG"`
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Prefix is prepended to every variable name in Config.
const Prefix = "CAMPUS_MCP_"

// Load reads an optional .env file from the working directory and then parses
// CAMPUS_MCP_* variables. Variables already set in the process win over .env.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse reads configuration from the process environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: Prefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.CacheSocket == "" {
		c.CacheSocket = filepath.Join(stateDir(), "cache.sock")
	}
	if c.CacheDB == "" {
		c.CacheDB = filepath.Join(stateDir(), "cache.bbolt")
	}
}

func (c Config) validate() error {
	if c.DatasetURL == "" {
		return errors.New("config: dataset url is required")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("config: cache ttl must be positive, got %s", c.CacheTTL)
	}
	if c.MaxResults <= 0 {
		return fmt.Errorf("config: search max results must be positive, got %d", c.MaxResults)
	}
	if c.MinQueryLength < 0 {
		return fmt.Errorf("config: search min query length must not be negative, got %d", c.MinQueryLength)
	}
	return nil
}

func stateDir() string {
	home, _ := os.UserHomeDir()
	if home == "" {
		home = "."
	}
	return filepath.Join(home, ".cache", "campus-mcp")
}
