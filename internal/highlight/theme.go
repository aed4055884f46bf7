package highlight

import (
	"log/slog"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/styles"
	darkmode "github.com/thiagokokada/dark-mode-go"
)

type ThemePreference int

const (
	ThemeAuto ThemePreference = iota
	ThemeLight
	ThemeDark
)

func (p ThemePreference) String() string {
	switch p {
	case ThemeLight:
		return "light"
	case ThemeDark:
		return "dark"
	default:
		return "auto"
	}
}

func ThemePreferenceFromString(raw string) ThemePreference {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case ThemeDark.String():
		return ThemeDark
	case ThemeLight.String():
		return ThemeLight
	default:
		return ThemeAuto
	}
}

var detectDarkMode = darkmode.IsDarkMode

// isDark resolves ThemeAuto through the desktop's dark-mode setting, falling
// back to light when it cannot be read.
func (p ThemePreference) isDark() bool {
	switch p {
	case ThemeDark:
		return true
	case ThemeLight:
		return false
	}
	if detectDarkMode == nil {
		return false
	}
	dark, err := detectDarkMode()
	if err != nil {
		slog.Debug("detect dark-mode", slog.Any("error", err))
		return false
	}
	return dark
}

func styleFor(pref ThemePreference) *chroma.Style {
	name := "github"
	if pref.isDark() {
		name = "github-dark"
	}
	if st := styles.Get(name); st != nil {
		return st
	}
	return styles.Fallback
}
