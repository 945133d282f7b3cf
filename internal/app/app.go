// Package app assembles the university service from configuration. Each
// binary builds one App in main and passes its parts to consumers.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/leonardcser/campus-mcp/internal/cache"
	"github.com/leonardcser/campus-mcp/internal/config"
	"github.com/leonardcser/campus-mcp/internal/logger"
	"github.com/leonardcser/campus-mcp/internal/university"
	"github.com/leonardcser/campus-mcp/internal/web"
)

// DaemonBinary is the cache daemon executable started on demand.
const DaemonBinary = "campus-mcp-cache"

type App struct {
	Config     config.Config
	KV         cache.KV
	Registry   *prometheus.Registry
	Service    *university.Service
	Homepages  *web.Fetcher
	closeStore func() error
}

// New connects the durable cache and builds the service. It does not start loading.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	kv, closeStore, err := OpenKV(ctx, cfg)
	if err != nil {
		return nil, err
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	svc := university.New(
		university.NewHTTPSource(cfg.DatasetURL, cfg.RequestTimeout),
		kv,
		university.Options{
			Key:            cfg.CacheKey,
			Version:        cfg.CacheVersion,
			TTL:            cfg.CacheTTL,
			MaxResults:     cfg.MaxResults,
			MinQueryLength: cfg.MinQueryLength,
			Metrics:        university.NewMetrics(reg),
		},
	)
	return &App{
		Config:     cfg,
		KV:         kv,
		Registry:   reg,
		Service:    svc,
		Homepages:  web.NewFetcher(kv, cfg.HomepageTTL),
		closeStore: closeStore,
	}, nil
}

func (a *App) Close() error {
	if a.closeStore == nil {
		return nil
	}
	return a.closeStore()
}

// OpenKV picks the durable store: Redis when configured, otherwise the cache
// daemon on cfg.CacheSocket, starting it first if nothing answers.
func OpenKV(ctx context.Context, cfg config.Config) (cache.KV, func() error, error) {
	if cfg.RedisAddr != "" {
		logger.Infof("Using Redis cache at %s", cfg.RedisAddr)
		client, err := cache.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		return cache.NewRedis(client, "campus-mcp"), client.Close, nil
	}

	logger.Infof("Attempting to connect to cache daemon at %s", cfg.CacheSocket)
	client, err := cache.Dial(cfg.CacheSocket, 200*time.Millisecond)
	if err == nil {
		return client, noClose, nil
	}
	logger.Warnf("Failed to connect to cache daemon: %v, attempting to start daemon", err)
	if startErr := startCacheDaemon(); startErr != nil {
		logger.Errorf("Failed to start cache daemon: %v", startErr)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if client, err = cache.Dial(cfg.CacheSocket, 200*time.Millisecond); err == nil {
			logger.Infof("Connected to cache daemon")
			return client, noClose, nil
		}
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
	return nil, nil, fmt.Errorf("connect cache daemon at %s: %w", cfg.CacheSocket, err)
}

func noClose() error { return nil }

func startCacheDaemon() error {
	path, err := daemonPath()
	if err != nil {
		return err
	}
	cmd := exec.Command(path)
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Env = os.Environ()
	if err := cmd.Start(); err != nil {
		return err
	}
	// The daemon outlives this process; release it instead of waiting.
	return cmd.Process.Release()
}

// daemonPath looks next to the running executable, then on PATH, then in
// the working directory.
func daemonPath() (string, error) {
	var candidates []string
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), DaemonBinary))
	}
	if p, err := exec.LookPath(DaemonBinary); err == nil {
		candidates = append(candidates, p)
	}
	candidates = append(candidates, filepath.Join(".", DaemonBinary))

	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, nil
		}
	}
	return "", errors.Join(exec.ErrNotFound, fmt.Errorf("%s not found", DaemonBinary))
}
