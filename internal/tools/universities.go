package tools

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/leonardcser/campus-mcp/internal/university"
)

// Catalog is the part of university.Service the tools depend on.
type Catalog interface {
	Search(ctx context.Context, query string) ([]university.University, error)
	All(ctx context.Context) ([]university.University, error)
	ByName(ctx context.Context, name string) (university.University, bool, error)
	IsLoading() bool
	LoadedCount() int
	ClearCache() error
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type handler = func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

// SearchHandler returns the MCP tool handler for "university-search".
func SearchHandler(c Catalog, minQueryLength int) handler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		q, err := req.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if utf8.RuneCountInString(q) < minQueryLength {
			return mcp.NewToolResultText(fmt.Sprintf("Type at least %d characters to search.", minQueryLength)), nil
		}
		results, err := c.Search(ctx, q)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if len(results) == 0 {
			return mcp.NewToolResultText("No universities found."), nil
		}
		return mcp.NewToolResultText(formatUniversities(results)), nil
	}
}

// ListHandler returns the MCP tool handler for "university-list".
func ListHandler(c Catalog) handler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		country := strings.TrimSpace(req.GetString("country", ""))
		limit := req.GetInt("limit", defaultListLimit)
		if limit <= 0 || limit > maxListLimit {
			limit = defaultListLimit
		}
		all, err := c.All(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		list := FilterByCountry(all, country, limit)
		if len(list) == 0 {
			return mcp.NewToolResultText("No universities found."), nil
		}
		return mcp.NewToolResultText(formatUniversities(list)), nil
	}
}

// StatusHandler returns the MCP tool handler for "university-status".
func StatusHandler(c Catalog) handler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText(fmt.Sprintf("loading: %t\nloaded: %d", c.IsLoading(), c.LoadedCount())), nil
	}
}

// ClearCacheHandler returns the MCP tool handler for "university-clear-cache".
func ClearCacheHandler(c Catalog) handler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := c.ClearCache(); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText("University cache cleared."), nil
	}
}

// FilterByCountry keeps up to limit records whose country equals country,
// ignoring case. An empty country keeps everything.
func FilterByCountry(all []university.University, country string, limit int) []university.University {
	out := make([]university.University, 0, min(limit, len(all)))
	for _, u := range all {
		if len(out) == limit {
			break
		}
		if country == "" || strings.EqualFold(u.Country, country) {
			out = append(out, u)
		}
	}
	return out
}

// formatUniversities renders a numbered list with location and links.
func formatUniversities(list []university.University) string {
	var sb strings.Builder
	for i, u := range list {
		location := u.Country
		if u.StateProvince != "" {
			location = u.StateProvince + ", " + u.Country
		}
		fmt.Fprintf(&sb, "%d. %s (%s)", i+1, u.Name, location)
		if page, ok := u.Homepage(); ok {
			sb.WriteString("\n   ")
			sb.WriteString(page)
		}
		if len(u.Domains) > 0 {
			sb.WriteString("\n   domains: ")
			sb.WriteString(strings.Join(u.Domains, ", "))
		}
		if i < len(list)-1 {
			sb.WriteString("\n\n")
		}
	}
	return sb.String()
}
