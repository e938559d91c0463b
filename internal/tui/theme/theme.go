package theme

import "github.com/charmbracelet/lipgloss"

type Theme struct {
	Title       lipgloss.Style
	TabActive   lipgloss.Style
	TabInactive lipgloss.Style
	TabLocked   lipgloss.Style
	ActiveLine  lipgloss.Style
	MetaLabel   lipgloss.Style
	MetaValue   lipgloss.Style
	StateIdle   lipgloss.Style
	StateWarn   lipgloss.Style
	StateLoad   lipgloss.Style
	Offline     lipgloss.Style
	SavedMark   lipgloss.Style
	ItemTitle   lipgloss.Style
	ItemSaved   lipgloss.Style
	Summary     lipgloss.Style
}

func Default() Theme {
	cpMauve := lipgloss.Color("#cba6f7")
	cpRed := lipgloss.Color("#f38ba8")
	cpPeach := lipgloss.Color("#fab387")
	cpYellow := lipgloss.Color("#f9e2af")
	cpGreen := lipgloss.Color("#a6e3a1")
	cpLavender := lipgloss.Color("#b4befe")
	cpText := lipgloss.Color("#cdd6f4")
	cpSubtext1 := lipgloss.Color("#bac2de")
	cpOverlay1 := lipgloss.Color("#7f849c")
	cpSurface0 := lipgloss.Color("#313244")

	return Theme{
		Title:       lipgloss.NewStyle().Bold(true).Foreground(cpMauve),
		TabActive:   lipgloss.NewStyle().Bold(true).Foreground(cpLavender).Background(cpSurface0).Padding(0, 1),
		TabInactive: lipgloss.NewStyle().Foreground(cpOverlay1).Padding(0, 1),
		TabLocked:   lipgloss.NewStyle().Foreground(cpOverlay1).Faint(true).Padding(0, 1),
		ActiveLine:  lipgloss.NewStyle().Background(cpSurface0).Foreground(cpText),
		MetaLabel:   lipgloss.NewStyle().Foreground(cpOverlay1),
		MetaValue:   lipgloss.NewStyle().Foreground(cpSubtext1),
		StateIdle:   lipgloss.NewStyle().Foreground(cpGreen),
		StateWarn:   lipgloss.NewStyle().Foreground(cpRed),
		StateLoad:   lipgloss.NewStyle().Foreground(cpPeach),
		Offline:     lipgloss.NewStyle().Bold(true).Foreground(cpYellow),
		SavedMark:   lipgloss.NewStyle().Foreground(cpYellow),
		ItemTitle:   lipgloss.NewStyle().Foreground(cpText),
		ItemSaved:   lipgloss.NewStyle().Italic(true).Foreground(cpLavender),
		Summary:     lipgloss.NewStyle().Foreground(cpSubtext1),
	}
}

func (t Theme) RenderActiveLine(active bool, line string) string {
	if !active {
		return line
	}
	return t.ActiveLine.Render(line)
}
