package config_test

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/leonardcser/campus-mcp/internal/config"
)

func TestParse_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := config.Parse()
	require.NoError(t, err)

	require.Equal(t, "campus_connect_universities", cfg.CacheKey)
	require.Equal(t, "v1", cfg.CacheVersion)
	require.Equal(t, 24*time.Hour, cfg.CacheTTL)
	require.Equal(t, 8, cfg.MaxResults)
	require.Equal(t, 2, cfg.MinQueryLength)
	require.Equal(t, 30*time.Second, cfg.RequestTimeout)
	require.True(t, strings.HasSuffix(cfg.CacheSocket, filepath.Join("campus-mcp", "cache.sock")))
	require.True(t, strings.HasSuffix(cfg.CacheDB, filepath.Join("campus-mcp", "cache.bbolt")))
	require.Empty(t, cfg.RedisAddr)
}

func TestParse_Overrides(t *testing.T) {
	t.Setenv("CAMPUS_MCP_DATASET_URL", "https://example.test/data.json")
	t.Setenv("CAMPUS_MCP_CACHE_VERSION", "v2")
	t.Setenv("CAMPUS_MCP_CACHE_TTL", "90m")
	t.Setenv("CAMPUS_MCP_CACHE_SOCK", "/tmp/x.sock")
	t.Setenv("CAMPUS_MCP_SEARCH_MAX_RESULTS", "20")

	cfg, err := config.Parse()
	require.NoError(t, err)
	require.Equal(t, "https://example.test/data.json", cfg.DatasetURL)
	require.Equal(t, "v2", cfg.CacheVersion)
	require.Equal(t, 90*time.Minute, cfg.CacheTTL)
	require.Equal(t, "/tmp/x.sock", cfg.CacheSocket)
	require.Equal(t, 20, cfg.MaxResults)
}

func TestParse_Invalid(t *testing.T) {
	t.Setenv("CAMPUS_MCP_CACHE_TTL", "0s")
	_, err := config.Parse()
	require.ErrorContains(t, err, "cache ttl")

	t.Setenv("CAMPUS_MCP_CACHE_TTL", "nonsense")
	_, err = config.Parse()
	require.ErrorContains(t, err, "parse env")
}
