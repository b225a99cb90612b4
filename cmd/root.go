package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/shelfarr/booksearch/internal/config"
	"github.com/shelfarr/booksearch/internal/logging"
	"github.com/shelfarr/booksearch/internal/openlibrary"
)

// NewRootCmd builds the booksearch command tree
func NewRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "booksearch",
		Short: "Search Open Library as you type",
		Long: `Booksearch looks up books on Open Library while you type.

Every edit to the keyword or page waits out a short debounce window before a
single search is issued, and results are shown 100 rows per page with the
title, authors, first publication year, ISBNs and page count of each book.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	cmd.PersistentFlags().StringP("config", "c", "", "path to booksearch.yaml (default: ./booksearch.yaml or ./config/booksearch.yaml)")

	cmd.AddCommand(newServeCmd(version))
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newReplCmd())

	return cmd
}

// loadConfig reads configuration for cmd and initialises the global logger
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logging.Init(cfg.Log)
	return cfg, nil
}

func newClient(cfg *config.Config) *openlibrary.Client {
	return openlibrary.NewClientWithOptions(openlibrary.Options{
		BaseURL:           cfg.OpenLibrary.BaseURL,
		UserAgent:         cfg.OpenLibrary.UserAgent,
		Timeout:           cfg.OpenLibrary.Timeout,
		RequestsPerSecond: cfg.OpenLibrary.RequestsPerSecond,
	})
}
