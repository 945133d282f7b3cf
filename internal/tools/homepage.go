package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/leonardcser/campus-mcp/internal/web"
)

// PageFetcher fetches and summarizes a web page.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*web.PageSummary, error)
}

// HomepageHandler returns the MCP tool handler for "university-homepage".
func HomepageHandler(c Catalog, fetcher PageFetcher) handler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if ctx.Err() != nil {
			return mcp.NewToolResultError(ctx.Err().Error()), nil
		}
		name, err := req.RequireString("name")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		u, ok, err := c.ByName(ctx, name)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("no university named %q; use university-search to find the exact name", name)), nil
		}
		page, ok := u.Homepage()
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("%s has no web page listed", u.Name)), nil
		}
		ps, err := fetcher.Fetch(ctx, page)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(formatPageSummary(ps)), nil
	}
}

func formatPageSummary(ps *web.PageSummary) string {
	var sb strings.Builder
	if ps.Title != "" {
		sb.WriteString("# ")
		sb.WriteString(ps.Title)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Source: ")
	sb.WriteString(ps.URL)
	sb.WriteString("\n\n")
	if ps.Description != "" {
		sb.WriteString(ps.Description)
		sb.WriteString("\n\n")
	}
	if len(ps.Links) > 0 {
		sb.WriteString("## Links\n")
		for _, l := range ps.Links {
			sb.WriteString("- ")
			sb.WriteString(l)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	sb.WriteString(ps.Text)
	return sb.String()
}
