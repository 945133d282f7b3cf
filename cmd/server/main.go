package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/leonardcser/campus-mcp/internal/app"
	"github.com/leonardcser/campus-mcp/internal/config"
	"github.com/leonardcser/campus-mcp/internal/httpapi"
	"github.com/leonardcser/campus-mcp/internal/logger"
	"github.com/leonardcser/campus-mcp/internal/tools"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if err := logger.Init(logger.Options{Path: logPath(cfg.LogPath), Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		panic(err)
	}
	defer logger.Close()

	logger.Infof("Starting Campus MCP server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Errorf("Failed to initialize: %v", err)
		panic(err)
	}
	defer a.Close()

	// Warm the dataset so the first search does not wait on the network.
	go func() { _ = a.Service.Preload(ctx) }()

	s := server.NewMCPServer(
		"Campus MCP",
		"0.1.0",
		server.WithRecovery(),
		server.WithToolCapabilities(false),
	)
	logger.Infof("Created MCP server instance")

	toolSearch := mcp.NewTool("university-search",
		mcp.WithDescription(multiline(
			"Searches the university directory by name or country",
			"\nFunctionality:",
			"- Case-insensitive substring match on university name and country",
			"- Returns at most "+strconv.Itoa(cfg.MaxResults)+" matches in directory order",
			"- Each match lists country, state or province, homepage and domains",
			"\nUsage notes:",
			"- Queries shorter than "+strconv.Itoa(cfg.MinQueryLength)+" characters return no results",
			"- The directory is cached locally for "+cfg.CacheTTL.String()+" after the first load",
		)),
		mcp.WithString("query", mcp.Required(), mcp.Description("Part of a university name or country, e.g. \"stanford\" or \"kenya\"")),
	)
	s.AddTool(toolSearch, tools.SearchHandler(a.Service, cfg.MinQueryLength))
	logger.Infof("Registered university-search tool")

	toolList := mcp.NewTool("university-list",
		mcp.WithDescription(multiline(
			"Lists universities in the directory, optionally for one country",
			"\nUsage notes:",
			"- The country filter matches the full country name, ignoring case",
			"- Results are capped by limit (default 50, maximum 500)",
		)),
		mcp.WithString("country", mcp.Description("Country name, e.g. \"Switzerland\"")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of universities to return")),
	)
	s.AddTool(toolList, tools.ListHandler(a.Service))
	logger.Infof("Registered university-list tool")

	toolStatus := mcp.NewTool("university-status",
		mcp.WithDescription("Reports whether the university directory is loading and how many records are in memory"),
	)
	s.AddTool(toolStatus, tools.StatusHandler(a.Service))
	logger.Infof("Registered university-status tool")

	toolClear := mcp.NewTool("university-clear-cache",
		mcp.WithDescription(multiline(
			"Drops the cached university directory",
			"\nUsage notes:",
			"- The next search downloads the directory again",
		)),
	)
	s.AddTool(toolClear, tools.ClearCacheHandler(a.Service))
	logger.Infof("Registered university-clear-cache tool")

	toolHomepage := mcp.NewTool("university-homepage",
		mcp.WithDescription(multiline(
			"Fetches the homepage of a university from the directory and returns a readable summary",
			"\nUsage notes:",
			"- The name must match a directory entry exactly, ignoring case; use university-search first",
			"- Returns title, description, links and page text as markdown",
			"- Summaries are cached for "+cfg.HomepageTTL.String(),
		)),
		mcp.WithString("name", mcp.Required(), mcp.Description("Exact university name as returned by university-search")),
	)
	s.AddTool(toolHomepage, tools.HomepageHandler(a.Service, a.Homepages))
	logger.Infof("Registered university-homepage tool")

	if cfg.HTTPAddr != "" {
		api := httpapi.New(a.Service, a.Registry)
		go func() {
			if err := api.Start(cfg.HTTPAddr); err != nil {
				logger.Errorf("HTTP API error: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = api.Shutdown(shutdownCtx)
		}()
	}

	logger.Infof("Starting MCP server on stdio")
	if err := server.ServeStdio(s); err != nil {
		logger.Errorf("server error: %v", err)
	}
}

// multiline joins lines with newlines for tool descriptions.
func multiline(lines ...string) string { return strings.Join(lines, "\n") }

// logPath defaults to a file next to the executable; stdout carries MCP traffic.
func logPath(configured string) string {
	if configured != "" {
		return configured
	}
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	return filepath.Join(filepath.Dir(exe), "campus-mcp.log")
}
