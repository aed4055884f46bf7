// Package highlight colors YAML snapshots and unified diffs for terminals.
package highlight

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/mattn/go-isatty"
)

type ColorMode int

const (
	ColorAuto ColorMode = iota
	ColorAlways
	ColorNever
)

func (m ColorMode) String() string {
	switch m {
	case ColorAlways:
		return "always"
	case ColorNever:
		return "never"
	default:
		return "auto"
	}
}

func ParseColorMode(raw string) (ColorMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", ColorAuto.String():
		return ColorAuto, nil
	case ColorAlways.String():
		return ColorAlways, nil
	case ColorNever.String():
		return ColorNever, nil
	default:
		return ColorAuto, fmt.Errorf("unknown color mode %q", raw)
	}
}

// Language names understood by Write.
const (
	YAML = "yaml"
	Diff = "diff"
)

const formatterName = "terminal256"

type Highlighter struct {
	enabled bool
	style   *chroma.Style
}

// New returns a Highlighter for output written to w. In ColorAuto mode colors
// are only used when w is a terminal.
func New(w io.Writer, mode ColorMode, theme ThemePreference) *Highlighter {
	enabled := false
	switch mode {
	case ColorAlways:
		enabled = true
	case ColorAuto:
		enabled = isTerminal(w)
	}
	h := &Highlighter{enabled: enabled}
	if enabled {
		h.style = styleFor(theme)
	}
	return h
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (h *Highlighter) Enabled() bool {
	return h != nil && h.enabled
}

// Write writes text to w, colored as lang when the Highlighter is enabled.
func (h *Highlighter) Write(w io.Writer, text, lang string) error {
	if !h.Enabled() || text == "" {
		_, err := io.WriteString(w, text)
		return err
	}
	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	iterator, err := chroma.Coalesce(lexer).Tokenise(nil, text)
	if err != nil {
		return fmt.Errorf("highlight %s: %w", lang, err)
	}
	formatter := formatters.Get(formatterName)
	if formatter == nil {
		formatter = formatters.Fallback
	}
	return formatter.Format(w, h.style, iterator)
}
