// Command campus queries the university directory from a terminal and can
// serve it over HTTP.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/leonardcser/campus-mcp/internal/app"
	"github.com/leonardcser/campus-mcp/internal/config"
	"github.com/leonardcser/campus-mcp/internal/logger"
	"github.com/leonardcser/campus-mcp/internal/tools"
)

// session is what every subcommand runs against.
type session struct {
	catalog  tools.Catalog
	gatherer prometheus.Gatherer
	close    func() error
}

// openSession is replaced in tests.
var openSession = func(ctx context.Context) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := logger.Init(logger.Options{Path: cfg.LogPath, Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		return nil, err
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &session{catalog: a.Service, gatherer: a.Registry, close: a.Close}, nil
}

var rootCmd = &cobra.Command{
	Use:           "campus",
	Short:         "Query the university directory",
	SilenceUsage:  true,
	SilenceErrors: true,
	Long: `campus searches the cached university directory.

The directory is downloaded on first use and kept in the shared cache
(the campus-mcp-cache daemon, or Redis when CAMPUS_MCP_REDIS_ADDR is set).`,
}

func init() {
	rootCmd.AddCommand(searchCmd, listCmd, statusCmd, clearCacheCmd, serveHTTPCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// withSession opens a session for the duration of fn.
func withSession(cmd *cobra.Command, fn func(*session) error) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer func() {
		if s.close != nil {
			_ = s.close()
		}
		_ = logger.Close()
	}()
	return fn(s)
}
