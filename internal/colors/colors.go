// Package colors provides terminal color support for weft CLI output.
// Colors degrade to plain text when stdout is not a terminal or NO_COLOR
// is set.
package colors

import (
	"os"
	"strings"
)

// ANSI color codes
const (
	colorReset = "\033[0m"
	colorBold  = "\033[1m"
	colorDim   = "\033[2m"

	brightRed    = "\033[91m"
	brightGreen  = "\033[92m"
	brightYellow = "\033[93m"
	brightBlue   = "\033[94m"
)

var colorEnabled = shouldUseColor()

func shouldUseColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("FORCE_COLOR") != "" {
		return true
	}
	term := strings.ToLower(os.Getenv("TERM"))
	if term == "dumb" || term == "" {
		return false
	}
	if fileInfo, err := os.Stdout.Stat(); err == nil {
		return (fileInfo.Mode() & os.ModeCharDevice) != 0
	}
	return true
}

// SetColorEnabled allows manual control of color output.
func SetColorEnabled(enabled bool) {
	colorEnabled = enabled
}

func colorize(text, color string) string {
	if !colorEnabled {
		return text
	}
	return color + text + colorReset
}

// Diff classification coloring.

func Added(text string) string    { return colorize(text, brightGreen) }
func Modified(text string) string { return colorize(text, brightBlue) }
func Deleted(text string) string  { return colorize(text, brightYellow) }
func Conflict(text string) string { return colorize(text, brightRed) }

// Generic helpers.

func Bold(text string) string { return colorize(text, colorBold) }
func Dim(text string) string  { return colorize(text, colorDim) }
