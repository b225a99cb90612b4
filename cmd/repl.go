package cmd

import (
	"os"
	"path/filepath"
	"time"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/shelfarr/booksearch/internal/logging"
	"github.com/shelfarr/booksearch/internal/repl"
	"github.com/shelfarr/booksearch/internal/search"
)

const historyFile = ".booksearch_history"

func newReplCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Search interactively from the terminal",
		Long: `Starts an interactive prompt backed by the same debounced search session
the web page uses. Type a keyword to search, or :next, :prev, :page N and :quit.
History is kept in ~/` + historyFile + `.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			client := newClient(cfg)
			r := repl.New(ctx, client, search.Options{
				Debounce:   cfg.Search.Debounce,
				AllowStale: cfg.Search.AllowStale,
			}, cmd.OutOrStdout())
			defer r.Close()
			r.Timeout = cfg.Search.Debounce + cfg.OpenLibrary.Timeout + 5*time.Second

			line := liner.NewLiner()
			defer line.Close()
			line.SetCtrlCAborts(true)

			history := historyPath()
			if f, err := os.Open(history); err == nil {
				line.ReadHistory(f)
				f.Close()
			}
			defer func() {
				f, err := os.Create(history)
				if err != nil {
					logging.L().Warn().Err(err).Str("path", history).Msg("failed to save history")
					return
				}
				defer f.Close()
				line.WriteHistory(f)
			}()

			return r.Run(ctx, line)
		},
	}
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return historyFile
	}
	return filepath.Join(home, historyFile)
}
