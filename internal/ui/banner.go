package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

const bannerWidth = 43

// Banner prints the boxed program banner.
func Banner(w io.Writer, version string) {
	title := fmt.Sprintf("SysUpdater %s", version)
	lines := []string{
		"╔" + strings.Repeat("═", bannerWidth) + "╗",
		"║" + center(title, bannerWidth) + "║",
		"║" + center("Fedora System Update Automation", bannerWidth) + "║",
		"╚" + strings.Repeat("═", bannerWidth) + "╝",
	}
	fmt.Fprintln(w)
	for _, l := range lines {
		cyan.Fprintln(w, l)
	}
}

func center(s string, width int) string {
	n := len([]rune(s))
	if n >= width {
		return s
	}
	left := (width - n) / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", width-n-left)
}

type entry struct {
	name string
	desc string
}

var (
	usageCommands = []entry{
		{"-r, --refresh", "Check and display available updates"},
		{"-u, --update-all", "Update everything (system + flatpak)"},
		{"    --update-system", "Update only system packages (dnf5)"},
		{"    --update-flatpak", "Update only Flatpak applications"},
		{"    --update-firmware", "Update only firmware"},
	}
	usageOptions = []entry{
		{"-f, --firmware", "Include firmware in --update-all"},
		{"-n, --dry-run", "Preview actions without executing"},
		{"    --no-reboot-prompt", "Skip reboot prompt after updates"},
		{"    --no-network-check", "Skip connectivity verification"},
		{"    --parallel", "Run updates concurrently"},
		{"-c, --config <FILE>", "Use custom config file"},
		{"-o, --output <FORMAT>", "Output format: text, json, yaml"},
		{"-v, --verbose", "Increase verbosity (-v, -vv)"},
		{"-q, --quiet", "Minimal output"},
	}
	usageExamples = []entry{
		{"sysupdater --refresh", "Show what updates are available"},
		{"sysupdater --update-all", "Update system and flatpak"},
		{"sysupdater --update-all -f", "Update everything including firmware"},
		{"sysupdater --update-system", "Update only dnf5 packages"},
		{"sysupdater --dry-run -u", "Preview full update"},
	}
)

// Usage prints the colored usage screen shown when no action is requested.
func Usage(w io.Writer, version string, configFiles []string) {
	Banner(w, version)

	section(w, "USAGE")
	fmt.Fprintf(w, "    %s [OPTIONS]\n", green.Sprint("sudo sysupdater"))

	section(w, "COMMANDS")
	printEntries(w, usageCommands, green)

	section(w, "OPTIONS")
	printEntries(w, usageOptions, cyan)

	section(w, "EXAMPLES")
	width := widest(usageExamples) + len("sudo ")
	for _, e := range usageExamples {
		cmd := fmt.Sprintf("%-*s", width, "sudo "+e.name)
		fmt.Fprintf(w, "    %s  %s\n", green.Sprint(cmd), dim.Sprint("# "+e.desc))
	}

	section(w, "CONFIG FILES")
	for _, f := range configFiles {
		fmt.Fprintf(w, "    %s\n", f)
	}
	fmt.Fprintln(w)
}

func section(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s\n\n", yellowBold.Sprint(title))
}

func printEntries(w io.Writer, entries []entry, c *color.Color) {
	width := widest(entries)
	for _, e := range entries {
		fmt.Fprintf(w, "    %s  %s\n", c.Sprint(fmt.Sprintf("%-*s", width, e.name)), e.desc)
	}
}

func widest(entries []entry) int {
	n := 0
	for _, e := range entries {
		n = max(n, len(e.name))
	}
	return n
}
