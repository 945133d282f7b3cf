package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/leonardcser/campus-mcp/internal/cache"
	"github.com/leonardcser/campus-mcp/internal/config"
	"github.com/leonardcser/campus-mcp/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if err := logger.Init(logger.Options{Path: cfg.LogPath, Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		panic(err)
	}
	defer logger.Close()

	sock := cfg.CacheSocket
	// Ensure socket dir exists and remove stale socket
	_ = os.MkdirAll(filepath.Dir(sock), 0o755)
	_ = os.Remove(sock)

	l, err := net.Listen("unix", sock)
	if err != nil {
		panic(err)
	}
	defer l.Close()
	_ = os.Chmod(sock, 0o600)

	store, err := cache.Open(cfg.CacheDB, cache.Options{Bucket: cfg.CacheBucket, DefaultTTL: cfg.CacheTTL})
	if err != nil {
		panic(err)
	}
	defer store.Close()
	logger.Infof("Cache daemon listening on %s (db %s)", sock, cfg.CacheDB)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		_ = l.Close()
	}()
	if cfg.PurgeEvery > 0 {
		go purgeLoop(ctx, store, cfg.PurgeEvery)
	}

	if err := cache.Serve(l, store); err != nil {
		logger.Errorf("cache daemon: %v", err)
	}
	logger.Infof("Cache daemon stopped")
}

func purgeLoop(ctx context.Context, store *cache.Store, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := store.Purge()
			if err != nil {
				logger.Warnf("Purging expired entries failed: %v", err)
				continue
			}
			if n > 0 {
				logger.Debugf("Purged %d expired entries", n)
			}
		}
	}
}
