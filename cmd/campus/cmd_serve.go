package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/leonardcser/campus-mcp/internal/httpapi"
	"github.com/leonardcser/campus-mcp/internal/logger"
)

var serveAddr string

// serveHTTPCmd exposes the directory as a JSON API
var serveHTTPCmd = &cobra.Command{
	Use:   "serve-http",
	Short: "Serve the directory over HTTP",
	Long: `Serve the university directory as a JSON API.

Routes:
  GET    /universities/search?q=...
  GET    /universities?country=...&limit=...
  GET    /universities/status
  DELETE /universities/cache
  GET    /healthz
  GET    /metrics`,
	Args: cobra.NoArgs,
	RunE: runServeHTTP,
}

func init() {
	serveHTTPCmd.Flags().StringVar(&serveAddr, "addr", ":8090", "Listen address")
}

func runServeHTTP(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return withSession(cmd, func(s *session) error {
		api := httpapi.New(s.catalog, s.gatherer)
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := api.Shutdown(shutdownCtx); err != nil {
				logger.Warnf("HTTP API shutdown: %v", err)
			}
		}()
		return api.Start(serveAddr)
	})
}
