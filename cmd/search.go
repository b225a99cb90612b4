package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/shelfarr/booksearch/internal/search"
)

func newSearchCmd() *cobra.Command {
	var (
		page   int
		format string
		raw    bool
	)

	cmd := &cobra.Command{
		Use:   "search <keyword>...",
		Short: "Run one search and print the results",
		Long: `Runs a single Open Library search without debouncing and prints one page
of results. Multiple arguments are joined into one keyword.`,
		Example: `  # First page as a table
  booksearch search lord of the rings

  # Third page as YAML
  booksearch search tolkien --page 3 --format yaml

  # The Open Library envelope as returned, including fields not shown in the table
  booksearch search dune --format json --raw`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if page < 1 {
				return fmt.Errorf("--page must be at least 1, got %d", page)
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			q := search.Query{Keyword: strings.Join(args, " "), Page: page - 1}
			resp, err := newClient(cfg).SearchBooks(cmd.Context(), q.Keyword, q.Page)
			if err != nil {
				return fmt.Errorf("%s: %w", search.ErrorMessage(err), err)
			}

			var out any = search.NewView(q, resp)
			if raw {
				out = resp
			}
			return writeResult(cmd.OutOrStdout(), format, out)
		},
	}

	cmd.Flags().IntVarP(&page, "page", "p", 1, "page number, starting at 1")
	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format: table, json or yaml")
	cmd.Flags().BoolVar(&raw, "raw", false, "print the Open Library response instead of the table view (json and yaml only)")

	return cmd
}

// writeResult prints v in the requested format. Tables are only available
// for views.
func writeResult(w io.Writer, format string, v any) error {
	switch format {
	case "table", "":
		view, ok := v.(search.View)
		if !ok {
			return fmt.Errorf("table format needs a view, use json or yaml with --raw")
		}
		return search.WriteText(w, view)

	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)

	case "yaml":
		// Go through JSON so yaml keys and omitted fields match the json output
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return fmt.Errorf("failed to decode result: %w", err)
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return fmt.Errorf("failed to marshal YAML: %w", err)
		}
		return enc.Close()
	}

	return fmt.Errorf("unknown format %q (want table, json or yaml)", format)
}
