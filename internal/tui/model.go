package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/glabrego/prism-cli/internal/cache"
	"github.com/glabrego/prism-cli/internal/engine"
	"github.com/glabrego/prism-cli/internal/feed"
	"github.com/glabrego/prism-cli/internal/gesture"
	"github.com/glabrego/prism-cli/internal/mutation"
	"github.com/glabrego/prism-cli/internal/tui/theme"
)

type pane int

const (
	paneFeed pane = iota
	paneDetail
)

// Options configures the TUI model.
type Options struct {
	Engine         *engine.Engine
	Client         Client
	PageSize       int
	SwipeThreshold float64
}

// Model is the bubbletea model for the feed browser. All feed state
// lives in the engine; the model holds only presentation state.
type Model struct {
	eng      *engine.Engine
	client   Client
	pageSize int
	swipe    float64

	theme   theme.Theme
	spinner spinner.Model

	pane      pane
	cursor    int
	detailID  string
	savedOnly bool
	status    string
	statusErr bool

	width  int
	height int
}

func NewModel(opts Options) Model {
	if opts.SwipeThreshold <= 0 {
		opts.SwipeThreshold = gesture.DefaultThreshold
	}
	th := theme.Default()
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = th.StateLoad
	return Model{
		eng:      opts.Engine,
		client:   opts.Client,
		pageSize: opts.PageSize,
		swipe:    opts.SwipeThreshold,
		theme:    th,
		spinner:  sp,
		width:    80,
		height:   24,
	}
}

func (m Model) Init() tea.Cmd {
	job, _, err := m.eng.Activate(feed.ModeLatest, nil)
	cmds := []tea.Cmd{m.spinner.Tick}
	if err == nil && job != nil {
		cmds = append(cmds, fetchCmd(m.eng, m.client, *job, m.pageSize))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case fetchDoneMsg:
		return m.onFetchDone(msg)

	case toggleDoneMsg:
		return m.onToggleDone(msg)

	case tea.KeyMsg:
		return m.onKey(msg)
	}
	return m, nil
}

func (m Model) onFetchDone(msg fetchDoneMsg) (tea.Model, tea.Cmd) {
	if !msg.applied {
		// Response for a feed the user already left.
		return m, nil
	}
	m.clampCursor()
	if msg.err != nil {
		if m.eng.State().Offline {
			m.setStatus("offline, showing saved copy", true)
		} else {
			m.setStatus(fmt.Sprintf("load failed: %v", msg.err), true)
		}
		return m, nil
	}
	m.clearStatus()
	if msg.job.Cursor == "" {
		// First page landed; warm the neighboring modes.
		var cmds []tea.Cmd
		for _, job := range m.eng.AdjacentPrefetch() {
			cmds = append(cmds, fetchCmd(m.eng, m.client, job, m.pageSize))
		}
		if len(cmds) > 0 {
			return m, tea.Batch(cmds...)
		}
	}
	return m, nil
}

func (m Model) onToggleDone(msg toggleDoneMsg) (tea.Model, tea.Cmd) {
	switch msg.outcome {
	case mutation.Confirmed:
		if msg.intent.Desired {
			m.setStatus("saved", false)
		} else {
			m.setStatus("removed from saved", false)
		}
	case mutation.Conflicted:
		m.setStatus("saved state updated elsewhere, synced", false)
	case mutation.RolledBack:
		m.setStatus(fmt.Sprintf("save failed: %v", msg.err), true)
	case mutation.Superseded:
		// A newer toggle owns the item now; nothing to report.
	}
	return m, nil
}

func (m Model) onKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.pane == paneDetail {
		switch msg.String() {
		case "esc", "q", "enter":
			m.pane = paneFeed
			return m, nil
		case "s":
			return m.toggleSaved(m.detailID)
		case "ctrl+c":
			return m, tea.Quit
		}
		return m, nil
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case "down", "j":
		items := m.visibleItems()
		if m.cursor < len(items)-1 {
			m.cursor++
			return m, nil
		}
		// At the bottom: pull the next page if there is one.
		return m.loadNextPage(false)

	case "g":
		m.cursor = 0
		return m, nil

	case "G":
		if n := len(m.visibleItems()); n > 0 {
			m.cursor = n - 1
		}
		return m, nil

	case "n":
		return m.loadNextPage(true)

	case "r":
		m.clearStatus()
		job := m.eng.Refresh()
		if job == nil {
			return m, nil
		}
		return m, fetchCmd(m.eng, m.client, *job, m.pageSize)

	case "right", "l":
		return m.swipeTo(-m.swipe - 1)

	case "left", "h":
		return m.swipeTo(m.swipe + 1)

	case "enter":
		items := m.visibleItems()
		if m.cursor < len(items) {
			m.detailID = items[m.cursor].ID
			m.pane = paneDetail
		}
		return m, nil

	case "s":
		items := m.visibleItems()
		if m.cursor < len(items) {
			return m.toggleSaved(items[m.cursor].ID)
		}
		return m, nil

	case "*":
		m.savedOnly = !m.savedOnly
		m.cursor = 0
		return m, nil
	}
	return m, nil
}

func (m Model) loadNextPage(announce bool) (tea.Model, tea.Cmd) {
	job, status := m.eng.LoadNextPage()
	switch {
	case job != nil:
		return m, fetchCmd(m.eng, m.client, *job, m.pageSize)
	case announce && status == cache.LoadNoMorePages:
		m.setStatus("end of feed", false)
	}
	return m, nil
}

func (m Model) swipeTo(dx float64) (tea.Model, tea.Cmd) {
	job, denial, moved := m.eng.Swipe(dx, 0)
	if denial != nil {
		m.setStatus("sign in to read the balanced feed", true)
		return m, nil
	}
	if !moved {
		return m, nil
	}
	m.cursor = 0
	m.pane = paneFeed
	m.clearStatus()
	if job != nil {
		return m, fetchCmd(m.eng, m.client, *job, m.pageSize)
	}
	return m, nil
}

func (m Model) toggleSaved(itemID string) (tea.Model, tea.Cmd) {
	intent, err := m.eng.ToggleSaved(itemID)
	if err != nil {
		m.setStatus(fmt.Sprintf("cannot save: %v", err), true)
		return m, nil
	}
	return m, toggleCmd(m.eng, m.client, intent)
}

func (m Model) visibleItems() []feed.Item {
	items := m.eng.State().Items
	if !m.savedOnly {
		return items
	}
	var saved []feed.Item
	for _, it := range items {
		if it.Saved {
			saved = append(saved, it)
		}
	}
	return saved
}

func (m *Model) clampCursor() {
	n := len(m.visibleItems())
	if n == 0 {
		m.cursor = 0
	} else if m.cursor >= n {
		m.cursor = n - 1
	}
}

func (m *Model) setStatus(s string, isErr bool) {
	m.status = s
	m.statusErr = isErr
}

func (m *Model) clearStatus() {
	m.status = ""
	m.statusErr = false
}
