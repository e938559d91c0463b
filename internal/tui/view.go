package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/glabrego/prism-cli/internal/access"
	"github.com/glabrego/prism-cli/internal/feed"
	"github.com/glabrego/prism-cli/internal/render"
)

const chromeLines = 5 // header, tabs, status, blank, footer

func (m Model) View() string {
	if m.pane == paneDetail {
		return m.detailView()
	}
	return m.feedView()
}

func (m Model) feedView() string {
	var b strings.Builder
	b.WriteString(m.headerLine())
	b.WriteString("\n")
	b.WriteString(m.tabLine())
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n\n")

	items := m.visibleItems()
	if len(items) == 0 {
		if m.savedOnly {
			b.WriteString(m.theme.MetaLabel.Render("  no saved stories in this feed"))
		} else if m.eng.State().Loading {
			b.WriteString(m.theme.MetaLabel.Render("  fetching stories..."))
		} else {
			b.WriteString(m.theme.MetaLabel.Render("  nothing here yet"))
		}
		b.WriteString("\n")
	} else {
		rows := m.height - chromeLines - 1
		if rows < 3 {
			rows = 3
		}
		start := 0
		if m.cursor >= rows {
			start = m.cursor - rows + 1
		}
		end := start + rows
		if end > len(items) {
			end = len(items)
		}
		for i := start; i < end; i++ {
			b.WriteString(m.itemLine(items[i], i == m.cursor))
			b.WriteString("\n")
		}
		if m.eng.State().HasMore && end == len(items) {
			b.WriteString(m.theme.MetaLabel.Render("  ...more below (n)"))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(m.footerLine())
	return b.String()
}

func (m Model) detailView() string {
	var b strings.Builder
	b.WriteString(m.headerLine())
	b.WriteString("\n\n")

	item, ok := m.findItem(m.detailID)
	if !ok {
		b.WriteString(m.theme.StateWarn.Render("story no longer in the feed"))
		b.WriteString("\n\n")
		b.WriteString(m.theme.MetaLabel.Render("esc back"))
		return b.String()
	}

	p := render.DecodePreview(item.Payload)
	title := p.Title
	if title == "" {
		title = item.ID
	}
	b.WriteString(m.theme.ItemTitle.Bold(true).Render(title))
	b.WriteString("\n")
	meta := make([]string, 0, 3)
	if p.Source != "" {
		meta = append(meta, m.theme.MetaValue.Render(p.Source))
	}
	if p.Topic != "" {
		meta = append(meta, m.theme.MetaValue.Render(p.Topic))
	}
	if item.Saved {
		meta = append(meta, m.theme.SavedMark.Render("saved"))
	}
	if len(meta) > 0 {
		b.WriteString(strings.Join(meta, m.theme.MetaLabel.Render(" / ")))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	text := render.SummaryText(p.Summary)
	if text == "" {
		text = "(no summary)"
	}
	width := m.width - 4
	if width < 20 {
		width = 20
	}
	b.WriteString(m.theme.Summary.Width(width).Render(text))
	b.WriteString("\n\n")
	b.WriteString(m.theme.MetaLabel.Render("s save/unsave · esc back"))
	return b.String()
}

func (m Model) headerLine() string {
	title := m.theme.Title.Render("prism")
	tier := m.theme.MetaValue.Render(m.eng.State().Tier.String())
	return lipgloss.JoinHorizontal(lipgloss.Top, title, "  ", m.theme.MetaLabel.Render("tier:"), " ", tier)
}

func (m Model) tabLine() string {
	st := m.eng.State()
	tabs := make([]string, 0, len(feed.Order))
	for _, mode := range feed.Order {
		label := string(mode)
		switch {
		case mode == st.Mode:
			tabs = append(tabs, m.theme.TabActive.Render(label))
		case !access.CanActivate(mode, st.Tier).Allowed:
			tabs = append(tabs, m.theme.TabLocked.Render(label+" 🔒"))
		default:
			tabs = append(tabs, m.theme.TabInactive.Render(label))
		}
	}
	return strings.Join(tabs, " ")
}

func (m Model) statusLine() string {
	st := m.eng.State()
	parts := make([]string, 0, 3)
	if st.Loading {
		parts = append(parts, m.spinner.View()+" "+m.theme.StateLoad.Render("loading"))
	}
	if st.Offline {
		parts = append(parts, m.theme.Offline.Render("offline copy"))
	}
	if m.status != "" {
		style := m.theme.StateIdle
		if m.statusErr {
			style = m.theme.StateWarn
		}
		parts = append(parts, style.Render(m.status))
	}
	if len(parts) == 0 {
		return m.theme.StateIdle.Render("ready")
	}
	return strings.Join(parts, m.theme.MetaLabel.Render("  ·  "))
}

func (m Model) itemLine(item feed.Item, active bool) string {
	p := render.DecodePreview(item.Payload)
	title := p.Title
	if title == "" {
		title = item.ID
	}

	mark := " "
	if item.Saved {
		mark = m.theme.SavedMark.Render("★")
	}
	cursor := "  "
	if active {
		cursor = m.theme.TabActive.Render("▌") + " "
	}

	style := m.theme.ItemTitle
	if item.Saved {
		style = m.theme.ItemSaved
	}
	line := cursor + mark + " " + style.Render(truncate(title, m.width-12))
	if p.Source != "" {
		line += "  " + m.theme.MetaLabel.Render(truncate(p.Source, 24))
	}
	return m.theme.RenderActiveLine(active, line)
}

func (m Model) footerLine() string {
	items := m.visibleItems()
	pos := ""
	if len(items) > 0 {
		pos = fmt.Sprintf("%d/%d", m.cursor+1, len(items))
	}
	filter := ""
	if m.savedOnly {
		filter = m.theme.SavedMark.Render("saved only") + "  "
	}
	help := m.theme.MetaLabel.Render("←/→ mode · j/k move · enter read · s save · * saved · r refresh · q quit")
	return filter + m.theme.MetaValue.Render(pos) + "  " + help
}

func (m Model) findItem(id string) (feed.Item, bool) {
	for _, it := range m.eng.State().Items {
		if it.ID == id {
			return it, true
		}
	}
	return feed.Item{}, false
}

func truncate(s string, max int) string {
	if max < 4 {
		max = 4
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
