package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/leonardcser/campus-mcp/internal/tools"
	"github.com/leonardcser/campus-mcp/internal/university"
)

var (
	jsonOutput  bool
	listCountry string
	listLimit   int
)

// searchCmd runs a substring search over names and countries
var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search universities by name or country",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

// listCmd prints the directory, optionally for one country
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List universities",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the directory is loaded",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var clearCacheCmd = &cobra.Command{
	Use:   "clear-cache",
	Short: "Drop the cached directory so the next query downloads it again",
	Args:  cobra.NoArgs,
	RunE:  runClearCache,
}

func init() {
	searchCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
	listCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
	listCmd.Flags().StringVar(&listCountry, "country", "", "Only list universities in this country")
	listCmd.Flags().IntVar(&listLimit, "limit", 50, "Maximum number of universities to print")
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	return withSession(cmd, func(s *session) error {
		found, err := s.catalog.Search(cmd.Context(), query)
		if err != nil {
			return err
		}
		return printUniversities(cmd.OutOrStdout(), found)
	})
}

func runList(cmd *cobra.Command, _ []string) error {
	if listLimit <= 0 {
		return fmt.Errorf("--limit must be positive, got %d", listLimit)
	}
	return withSession(cmd, func(s *session) error {
		all, err := s.catalog.All(cmd.Context())
		if err != nil {
			return err
		}
		return printUniversities(cmd.OutOrStdout(), tools.FilterByCountry(all, listCountry, listLimit))
	})
}

func runStatus(cmd *cobra.Command, _ []string) error {
	return withSession(cmd, func(s *session) error {
		fmt.Fprintf(cmd.OutOrStdout(), "loading: %t\nloaded: %d\n", s.catalog.IsLoading(), s.catalog.LoadedCount())
		return nil
	})
}

func runClearCache(cmd *cobra.Command, _ []string) error {
	return withSession(cmd, func(s *session) error {
		if err := s.catalog.ClearCache(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "University cache cleared")
		return nil
	})
}

func printUniversities(w io.Writer, list []university.University) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if list == nil {
			list = []university.University{}
		}
		return enc.Encode(list)
	}
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "No universities found")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCOUNTRY\tHOMEPAGE")
	for _, u := range list {
		home, _ := u.Homepage()
		fmt.Fprintf(tw, "%s\t%s\t%s\n", u.Name, u.Country, home)
	}
	return tw.Flush()
}
