// Package term holds the ANSI palette shared by logging and display and
// decides whether an output stream gets color.
//
// The palette entries are empty strings while color is off, so callers can
// concatenate them unconditionally.
package term

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/backmassage/vidoptimizer/internal/config"
)

// Palette entries. Set by [Configure].
var (
	Red     string
	Green   string
	Yellow  string
	Blue    string
	Cyan    string
	Magenta string
	NC      string // Reset.
)

// Configure enables or clears the palette for mode, judging ColorAuto
// against stdout, and reports whether color is on.
func Configure(mode config.ColorMode) bool {
	on := ShouldColor(mode, os.Stdout)
	if on {
		Red, Green, Yellow = "\033[1;91m", "\033[1;92m", "\033[1;93m"
		Blue, Cyan, Magenta = "\033[1;94m", "\033[1;96m", "\033[1;95m"
		NC = "\033[0m"
	} else {
		Red, Green, Yellow, Blue, Cyan, Magenta, NC = "", "", "", "", "", "", ""
	}
	return on
}

// Enabled reports whether the palette is currently active.
func Enabled() bool { return NC != "" }

// Paint wraps s in color and a reset. It returns s unchanged when color is
// empty or the palette is off.
func Paint(color, s string) string {
	if color == "" || NC == "" {
		return s
	}
	return color + s + NC
}

// ShouldColor resolves mode for output written to w. ColorAuto requires a
// terminal, an unset NO_COLOR (https://no-color.org) and a TERM other than
// "dumb".
func ShouldColor(mode config.ColorMode, w io.Writer) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	}
	if os.Getenv("NO_COLOR") != "" || strings.EqualFold(os.Getenv("TERM"), "dumb") {
		return false
	}
	return IsTerminal(w)
}

// IsTerminal reports whether w is an *os.File attached to a TTY.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
