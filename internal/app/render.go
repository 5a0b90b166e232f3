package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"

	"github.com/chmouel/lazystatus/internal/app/services"
	"github.com/chmouel/lazystatus/internal/engine"
	"github.com/chmouel/lazystatus/internal/models"
)

const (
	headerHeight = 2
	footerHeight = 2
)

// View renders the header, the tree and the footer.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	width := m.width
	if width <= 0 {
		width = 80
	}
	summary := m.engine.Summary()
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(summary, width),
		m.renderBody(summary, width),
		m.renderFooter(width),
	)
}

func (m *Model) bodyHeight() int {
	height := m.height
	if height <= 0 {
		height = 24
	}
	return max(1, height-headerHeight-footerHeight)
}

func (m *Model) renderHeader(s engine.Summary, width int) string {
	titleStyle := lipgloss.NewStyle().Foreground(m.theme.Accent).Bold(true)
	mutedStyle := lipgloss.NewStyle().Foreground(m.theme.MutedFg)

	parts := []string{titleStyle.Render("lazystatus")}
	if s.Branch != "" {
		parts = append(parts, m.icon(iconBranch)+lipgloss.NewStyle().Foreground(m.theme.TextFg).Render(s.Branch))
	}

	switch {
	case s.Gate != engine.GateReady && s.Gate != engine.GateBusy:
		parts = append(parts, lipgloss.NewStyle().Foreground(m.theme.Deleted).Render(m.icon(iconBlocked)+s.Gate.String()))
	case s.Updating || s.Staging > 0:
		label := "updating"
		if s.Staging > 0 {
			label = fmt.Sprintf("%sstaging %d", m.icon(iconStaging), s.Staging)
		}
		parts = append(parts, m.spinner.View()+" "+mutedStyle.Render(label))
	case s.Version > 0 && s.Clean():
		parts = append(parts, lipgloss.NewStyle().Foreground(m.theme.Staged).Render(m.icon(iconClean)+"clean"))
	}

	counts := []string{
		lipgloss.NewStyle().Foreground(m.theme.Staged).Render(fmt.Sprintf("+%d", s.Counts.Staged)),
		lipgloss.NewStyle().Foreground(m.theme.Modified).Render(fmt.Sprintf("~%d", s.Counts.Unstaged)),
		lipgloss.NewStyle().Foreground(m.theme.Untracked).Render(fmt.Sprintf("?%d", s.Counts.Untracked)),
	}
	if s.Counts.Conflicted > 0 {
		counts = append(counts, lipgloss.NewStyle().Foreground(m.theme.Conflicted).Render(fmt.Sprintf("!%d", s.Counts.Conflicted)))
	}
	if s.Pending > 0 {
		counts = append(counts, mutedStyle.Render(fmt.Sprintf("(%d pending)", s.Pending)))
	}
	parts = append(parts, strings.Join(counts, " "))

	line := truncate.StringWithTail(strings.Join(parts, "  "), uint(max(0, width)), "…")
	rule := lipgloss.NewStyle().Foreground(m.theme.Border).Render(strings.Repeat("─", width))
	return lipgloss.JoinVertical(lipgloss.Left, line, rule)
}

func (m *Model) renderBody(s engine.Summary, width int) string {
	height := m.bodyHeight()
	m.viewport.Width = width
	m.viewport.Height = height

	if m.showHelp {
		m.viewport.SetContent(m.renderHelp())
		m.viewport.SetYOffset(0)
		return m.viewport.View()
	}

	if len(m.view.Rows) == 0 {
		msg := "Scanning working tree..."
		switch {
		case s.Gate == engine.GateInvalidRepo:
			msg = "Not a git repository: " + m.engine.RepoPath()
		case s.Version > 0:
			msg = "Nothing to show, working tree clean."
		}
		m.viewport.SetContent(lipgloss.NewStyle().Foreground(m.theme.MutedFg).Render(msg))
		m.viewport.SetYOffset(0)
		return m.viewport.View()
	}

	lines := make([]string, 0, len(m.view.Rows))
	for i, row := range m.view.Rows {
		lines = append(lines, m.renderRow(row, i == m.view.Index, width))
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))

	// keep the selection visible
	if m.view.Index < m.viewport.YOffset {
		m.viewport.SetYOffset(m.view.Index)
	} else if m.view.Index >= m.viewport.YOffset+height {
		m.viewport.SetYOffset(m.view.Index - height + 1)
	}
	return m.viewport.View()
}

func (m *Model) renderRow(row *services.StatusRow, selected bool, width int) string {
	indent := strings.Repeat("  ", row.Depth)

	glyph := "  "
	if !row.IsDir || row.ForceStatus {
		glyph = StatusGlyph(row.Status)
	}
	glyphStyle := lipgloss.NewStyle().Foreground(m.statusColor(row.Status)).Bold(true)

	icon := ""
	if m.config.ShowIcons {
		if row.IsDir {
			icon = iconDirOpen
			if m.view.CollapsedDirs[row.Path] {
				icon = iconDirClose
			}
		} else {
			icon = deviconForName(row.Name(), false)
		}
	}

	nameStyle := lipgloss.NewStyle().Foreground(m.theme.TextFg)
	if row.IsDir {
		nameStyle = nameStyle.Foreground(m.statusColor(row.Status)).Bold(true)
	}
	if row.Status.Has(models.StatusIgnored) && !row.IsDir {
		nameStyle = nameStyle.Foreground(m.theme.Ignored)
	}

	markers := ""
	if m.engine.IsPathStaging(row.Path) {
		markers += " " + m.icon(iconStaging)
	} else if m.engine.IsPathDirty(row.Path) {
		markers += " *"
	}

	label := row.Label
	if row.IsDir {
		label += "/"
	}
	text := fmt.Sprintf("%s%s %s%s%s",
		indent,
		glyphStyle.Render(glyph),
		iconWithSpace(icon),
		nameStyle.Render(label),
		lipgloss.NewStyle().Foreground(m.theme.MutedFg).Render(markers),
	)
	text = truncate.StringWithTail(text, uint(max(0, width)), "…")

	if selected {
		return lipgloss.NewStyle().
			Background(m.theme.AccentDim).
			Width(width).
			Render(text)
	}
	return text
}

func (m *Model) statusColor(flags models.StatusFlags) lipgloss.Color {
	switch {
	case flags.Has(models.StatusConflicted):
		return m.theme.Conflicted
	case flags.Has(models.StatusDeletedFromIndex) || flags.Has(models.StatusDeletedFromWorkdir):
		return m.theme.Deleted
	case flags.Has(models.StatusRenamedInIndex) || flags.Has(models.StatusRenamedInWorkdir):
		return m.theme.Renamed
	case flags.CanStage() && !flags.Has(models.StatusNewInWorkdir):
		return m.theme.Modified
	case flags.Has(models.StatusNewInWorkdir):
		return m.theme.Untracked
	case flags.CanUnstage():
		return m.theme.Staged
	case flags.Has(models.StatusIgnored):
		return m.theme.Ignored
	}
	return m.theme.MutedFg
}

func (m *Model) icon(glyph string) string {
	if !m.config.ShowIcons {
		return ""
	}
	return iconWithSpace(glyph)
}

func (m *Model) renderFooter(width int) string {
	footerStyle := lipgloss.NewStyle().Foreground(m.theme.MutedFg)
	hints := []string{
		m.renderKeyHint("s", "Stage"),
		m.renderKeyHint("u", "Unstage"),
		m.renderKeyHint("enter", "Fold"),
		m.renderKeyHint("a", "All files"),
		m.renderKeyHint("/", "Search"),
		m.renderKeyHint("r", "Reload"),
		m.renderKeyHint("?", "Help"),
		m.renderKeyHint("q", "Quit"),
	}
	hintLine := truncate.StringWithTail(strings.Join(hints, "  "), uint(max(0, width)), "…")

	if m.searching {
		m.search.Width = max(10, width-4)
		return lipgloss.JoinVertical(lipgloss.Left, m.search.View(), hintLine)
	}

	msgStyle := footerStyle
	if m.messageErr {
		msgStyle = msgStyle.Foreground(m.theme.Deleted)
	}
	msg := truncate.StringWithTail(m.message, uint(max(0, width)), "…")
	return lipgloss.JoinVertical(lipgloss.Left, msgStyle.Render(msg), hintLine)
}

var helpSections = []struct {
	title string
	keys  [][2]string
}{
	{"Navigation", [][2]string{
		{"j / k", "Move down / up"},
		{"g / G", "First / last row"},
		{"ctrl+d / ctrl+u", "Page down / up"},
		{"enter / space", "Fold or unfold a directory"},
		{"a", "Show or hide clean files"},
	}},
	{"Search", [][2]string{
		{"/", "Search paths"},
		{"n / N", "Next / previous match"},
		{"esc", "Cancel the search"},
	}},
	{"Index", [][2]string{
		{"s", "Stage the selection"},
		{"u", "Unstage the selection"},
	}},
	{"Repository", [][2]string{
		{"r", "Reopen the repository and rescan"},
		{"R", "Rescan the working tree"},
		{"?", "Toggle this help"},
		{"q", "Quit"},
	}},
}

func (m *Model) renderHelp() string {
	titleStyle := lipgloss.NewStyle().Foreground(m.theme.Accent).Bold(true)
	keyStyle := lipgloss.NewStyle().Foreground(m.theme.TextFg).Bold(true).Width(18)
	descStyle := lipgloss.NewStyle().Foreground(m.theme.MutedFg)

	var b strings.Builder
	for i, section := range helpSections {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(titleStyle.Render(section.title))
		b.WriteString("\n")
		for _, k := range section.keys {
			b.WriteString("  " + keyStyle.Render(k[0]) + descStyle.Render(k[1]) + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderKeyHint renders a single key hint with pill styling.
func (m *Model) renderKeyHint(key, label string) string {
	keyStyle := lipgloss.NewStyle().
		Foreground(m.theme.AccentFg).
		Background(m.theme.Accent).
		Bold(true).
		Padding(0, 1)
	labelStyle := lipgloss.NewStyle().Foreground(m.theme.Accent)
	return fmt.Sprintf("%s %s", keyStyle.Render(key), labelStyle.Render(label))
}
