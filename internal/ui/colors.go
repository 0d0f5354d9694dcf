// Package ui renders everything sysupdater shows to the operator: banners,
// progress, summaries and machine readable output.
package ui

import (
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"
)

var (
	cyan       = color.New(color.FgCyan)
	cyanBold   = color.New(color.FgCyan, color.Bold)
	green      = color.New(color.FgGreen)
	greenBold  = color.New(color.FgGreen, color.Bold)
	yellow     = color.New(color.FgYellow)
	yellowBold = color.New(color.FgYellow, color.Bold)
	red        = color.New(color.FgRed)
	redBold    = color.New(color.FgRed, color.Bold)
	whiteBold  = color.New(color.FgWhite, color.Bold)
	dim        = color.New(color.Faint)
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// DisableColor turns off colors globally, e.g. for --output json or a pipe.
func DisableColor() {
	color.NoColor = true
}
