package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/glabrego/prism-cli/internal/cache"
	"github.com/glabrego/prism-cli/internal/engine"
	"github.com/glabrego/prism-cli/internal/feed"
	"github.com/glabrego/prism-cli/internal/mutation"
	"github.com/glabrego/prism-cli/internal/newsapi"
)

// Client is the slice of the news API the TUI drives.
type Client interface {
	QueryPage(ctx context.Context, q newsapi.Query) (feed.Page, error)
	ToggleSaved(ctx context.Context, itemID string, desired bool, fromVersion int64) (newsapi.SaveResult, error)
}

type fetchDoneMsg struct {
	job     cache.Fetch
	applied bool
	err     error
}

type toggleDoneMsg struct {
	intent  mutation.Intent
	outcome mutation.Outcome
	err     error
}

// fetchCmd runs one fetch job and applies it to the engine from the
// fetch goroutine; the engine re-checks staleness internally. The
// returned message only tells the model to re-render and, on first
// pages, to kick off prefetches.
func fetchCmd(eng *engine.Engine, client Client, job cache.Fetch, pageSize int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		page, err := client.QueryPage(ctx, newsapi.Query{
			Mode:    job.Descriptor.Mode(),
			Filters: job.Descriptor.Filters(),
			Cursor:  job.Cursor,
			Limit:   pageSize,
		})
		cancel()

		// A timed-out fetch context would poison the snapshot
		// restore/persist path, so completion gets its own.
		cctx, ccancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer ccancel()
		applied := eng.CompleteFetch(cctx, job, page, err)
		return fetchDoneMsg{job: job, applied: applied, err: err}
	}
}

func toggleCmd(eng *engine.Engine, client Client, intent mutation.Intent) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		result, err := client.ToggleSaved(ctx, intent.ItemID, intent.Desired, intent.FromVersion)
		outcome := eng.CompleteToggle(intent, result, err)
		return toggleDoneMsg{intent: intent, outcome: outcome, err: err}
	}
}
