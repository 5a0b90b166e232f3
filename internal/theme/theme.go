// Package theme provides color palettes for the status TUI.
package theme

import "github.com/charmbracelet/lipgloss"

// Theme defines all colors used in the application UI. Status colors map to
// the kind of change shown next to a path.
type Theme struct {
	Accent    lipgloss.Color
	AccentFg  lipgloss.Color // Foreground color for text on Accent background
	AccentDim lipgloss.Color
	Border    lipgloss.Color
	MutedFg   lipgloss.Color
	TextFg    lipgloss.Color

	Staged     lipgloss.Color
	Modified   lipgloss.Color
	Untracked  lipgloss.Color
	Deleted    lipgloss.Color
	Renamed    lipgloss.Color
	Conflicted lipgloss.Color
	Ignored    lipgloss.Color
}

// Theme names.
const (
	DraculaName      = "dracula"
	DraculaLightName = "dracula-light"
	NordName         = "nord"
	GruvboxDarkName  = "gruvbox-dark"
)

// Dracula returns the Dracula theme (dark background, vibrant colors).
func Dracula() *Theme {
	return &Theme{
		Accent:     lipgloss.Color("#BD93F9"), // Purple
		AccentFg:   lipgloss.Color("#282A36"),
		AccentDim:  lipgloss.Color("#44475A"), // Current Line / Selection
		Border:     lipgloss.Color("#6272A4"),
		MutedFg:    lipgloss.Color("#6272A4"),
		TextFg:     lipgloss.Color("#F8F8F2"),
		Staged:     lipgloss.Color("#50FA7B"), // Green
		Modified:   lipgloss.Color("#FFB86C"), // Orange
		Untracked:  lipgloss.Color("#8BE9FD"), // Cyan
		Deleted:    lipgloss.Color("#FF5555"), // Red
		Renamed:    lipgloss.Color("#FF79C6"), // Pink
		Conflicted: lipgloss.Color("#FF5555"),
		Ignored:    lipgloss.Color("#44475A"),
	}
}

// DraculaLight returns the Dracula theme adapted for light backgrounds.
func DraculaLight() *Theme {
	return &Theme{
		Accent:     lipgloss.Color("#c6dbe5"),
		AccentFg:   lipgloss.Color("#24292F"),
		AccentDim:  lipgloss.Color("#F3E8FF"),
		Border:     lipgloss.Color("#D0D7DE"),
		MutedFg:    lipgloss.Color("#6E7781"),
		TextFg:     lipgloss.Color("#24292F"),
		Staged:     lipgloss.Color("#059669"),
		Modified:   lipgloss.Color("#D97706"),
		Untracked:  lipgloss.Color("#0891B2"),
		Deleted:    lipgloss.Color("#DC2626"),
		Renamed:    lipgloss.Color("#DB2777"),
		Conflicted: lipgloss.Color("#DC2626"),
		Ignored:    lipgloss.Color("#D0D7DE"),
	}
}

// Nord returns the Nord theme.
func Nord() *Theme {
	return &Theme{
		Accent:     lipgloss.Color("#88C0D0"),
		AccentFg:   lipgloss.Color("#2E3440"),
		AccentDim:  lipgloss.Color("#3B4252"),
		Border:     lipgloss.Color("#4C566A"),
		MutedFg:    lipgloss.Color("#616E88"),
		TextFg:     lipgloss.Color("#ECEFF4"),
		Staged:     lipgloss.Color("#A3BE8C"),
		Modified:   lipgloss.Color("#EBCB8B"),
		Untracked:  lipgloss.Color("#8FBCBB"),
		Deleted:    lipgloss.Color("#BF616A"),
		Renamed:    lipgloss.Color("#B48EAD"),
		Conflicted: lipgloss.Color("#D08770"),
		Ignored:    lipgloss.Color("#4C566A"),
	}
}

// GruvboxDark returns the Gruvbox dark theme.
func GruvboxDark() *Theme {
	return &Theme{
		Accent:     lipgloss.Color("#FABD2F"),
		AccentFg:   lipgloss.Color("#282828"),
		AccentDim:  lipgloss.Color("#3C3836"),
		Border:     lipgloss.Color("#504945"),
		MutedFg:    lipgloss.Color("#928374"),
		TextFg:     lipgloss.Color("#EBDBB2"),
		Staged:     lipgloss.Color("#B8BB26"),
		Modified:   lipgloss.Color("#FE8019"),
		Untracked:  lipgloss.Color("#83A598"),
		Deleted:    lipgloss.Color("#FB4934"),
		Renamed:    lipgloss.Color("#D3869B"),
		Conflicted: lipgloss.Color("#FB4934"),
		Ignored:    lipgloss.Color("#504945"),
	}
}

// GetTheme returns a theme by name, or Dracula if not found.
func GetTheme(name string) *Theme {
	switch name {
	case DraculaLightName:
		return DraculaLight()
	case NordName:
		return Nord()
	case GruvboxDarkName:
		return GruvboxDark()
	default:
		return Dracula()
	}
}

// DefaultDark returns the default dark theme name.
func DefaultDark() string {
	return DraculaName
}

// DefaultLight returns the default light theme name.
func DefaultLight() string {
	return DraculaLightName
}

// DetectBackground picks the default theme matching the terminal background.
func DetectBackground() string {
	if lipgloss.HasDarkBackground() {
		return DefaultDark()
	}
	return DefaultLight()
}

// AvailableThemes returns a list of available theme names.
func AvailableThemes() []string {
	return []string{
		DraculaName,
		DraculaLightName,
		NordName,
		GruvboxDarkName,
	}
}
