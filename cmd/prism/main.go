// Package main provides the prism CLI entry point.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/glabrego/prism-cli/internal/access"
	"github.com/glabrego/prism-cli/internal/config"
	"github.com/glabrego/prism-cli/internal/engine"
	"github.com/glabrego/prism-cli/internal/newsapi"
	"github.com/glabrego/prism-cli/internal/storage"
	"github.com/glabrego/prism-cli/internal/tui"
)

var version = "0.1.0"

func main() {
	// A missing .env is fine; the environment may carry everything.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd creates the root command for the prism CLI. Running it
// without a subcommand opens the feed browser.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "prism",
		Short:   "Browse Prism news feeds from the terminal",
		Long:    "Prism is a terminal client for the Prism news service: swipe between the latest, clustered and balanced feeds, save stories, and keep reading offline.",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBrowser()
		},
	}

	rootCmd.SetVersionTemplate("prism version {{.Version}}\n")

	rootCmd.AddCommand(newSnapshotsCmd())

	return rootCmd
}

func runBrowser() error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("storage init error: %w", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return fmt.Errorf("storage schema error: %w", err)
	}

	client := newsapi.NewClient(cfg.APIBaseURL, cfg.APIToken, nil)

	tier := access.TierGuest
	if cfg.APIToken != "" {
		authCtx, authCancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := client.Authenticate(authCtx)
		authCancel()
		if err != nil {
			// A bad or unreachable token degrades to guest reading
			// rather than blocking the app.
			fmt.Fprintf(os.Stderr, "warning: authentication failed (%v), continuing as guest\n", err)
		} else {
			tier = access.TierAuthenticated
		}
	}

	eng := engine.New(engine.Options{
		Store:          store,
		Tier:           tier,
		SwipeThreshold: cfg.SwipeThreshold,
	})

	model := tui.NewModel(tui.Options{
		Engine:         eng,
		Client:         client,
		PageSize:       cfg.PageSize,
		SwipeThreshold: cfg.SwipeThreshold,
	})

	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		log.Fatalf("tui error: %v", err)
	}
	return nil
}

// newSnapshotsCmd creates the snapshots subcommand, which lists the
// offline copies kept in the local database.
func newSnapshotsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshots",
		Short: "List offline feed snapshots",
		Long:  "List the feed snapshots stored locally for offline reading, newest first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFromEnv()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}

			store, err := storage.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("storage init error: %w", err)
			}
			defer store.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := store.Init(ctx); err != nil {
				return fmt.Errorf("storage schema error: %w", err)
			}

			infos, err := store.List(ctx)
			if err != nil {
				return fmt.Errorf("cannot list snapshots: %w", err)
			}
			if len(infos) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no snapshots yet")
				return nil
			}
			for _, info := range infos {
				fmt.Fprintf(cmd.OutOrStdout(), "%-40s  %3d items  %s\n",
					info.Key, info.ItemCount, info.SavedAt.Local().Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}
