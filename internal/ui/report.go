package ui

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sysupdater/sysupdater/internal/catalog"
	"github.com/sysupdater/sysupdater/internal/model"
	"github.com/sysupdater/sysupdater/internal/orchestrator"
)

const (
	maxSystemShown  = 15
	maxFlatpakShown = 10
)

var summaryRows = []struct {
	id    catalog.OperationID
	label string
}{
	{catalog.System, "System (dnf5):"},
	{catalog.Flatpak, "Flatpak:"},
	{catalog.Firmware, "Firmware:"},
}

// Summary prints the per-operation outcome table and the error list.
func Summary(w io.Writer, s *orchestrator.Summary) {
	rule := strings.Repeat("═", 45)
	fmt.Fprintln(w)
	cyan.Fprintln(w, rule)
	cyanBold.Fprintln(w, "           Update Summary")
	cyan.Fprintln(w, rule)

	for _, row := range summaryRows {
		mark := yellow.Sprint("○")
		note := ""
		if r, ok := s.Result(row.id); ok {
			switch {
			case r.Updated:
				mark = green.Sprint("✓")
			case r.Status == orchestrator.Failed:
				mark = red.Sprint("✗")
			}
			if r.Reason != "" {
				note = "  " + dim.Sprint("("+r.Reason+")")
			}
		}
		fmt.Fprintf(w, "  %-16s%s%s\n", row.label, mark, note)
	}

	if errs := s.Errors(); len(errs) > 0 {
		fmt.Fprintf(w, "\n  %s Errors:\n", red.Sprint("✗"))
		for _, err := range errs {
			fmt.Fprintf(w, "    • %s\n", red.Sprint(err.Error()))
		}
	}
	cyan.Fprintln(w, rule)
}

// AvailableUpdates prints the result of a refresh.
func AvailableUpdates(w io.Writer, u model.AvailableUpdates) {
	rule := strings.Repeat("═", 50)
	fmt.Fprintln(w)
	cyan.Fprintln(w, rule)
	cyanBold.Fprintln(w, "         Available Updates")
	cyan.Fprintf(w, "%s\n\n", rule)

	if u.IsEmpty() {
		fmt.Fprintf(w, "  %s Your system is up to date!\n\n", greenBold.Sprint("✓"))
		return
	}

	if len(u.System) > 0 {
		group(w, "System", len(u.System), "package(s)")
		for _, pkg := range head(u.System, maxSystemShown) {
			fields := strings.Fields(pkg)
			if len(fields) == 0 {
				continue
			}
			version := ""
			if len(fields) > 1 {
				version = " " + dim.Sprint(fields[1])
			}
			fmt.Fprintf(w, "    %s %s%s\n", dim.Sprint("•"), fields[0], version)
		}
		more(w, len(u.System), maxSystemShown)
		fmt.Fprintln(w)
	}

	if len(u.Flatpak) > 0 {
		group(w, "Flatpak", len(u.Flatpak), "app(s)")
		for _, app := range head(u.Flatpak, maxFlatpakShown) {
			name := app
			if fields := strings.Fields(app); len(fields) > 0 {
				name = fields[0]
			}
			fmt.Fprintf(w, "    %s %s\n", dim.Sprint("•"), name)
		}
		more(w, len(u.Flatpak), maxFlatpakShown)
		fmt.Fprintln(w)
	}

	if len(u.Firmware) > 0 {
		group(w, "Firmware", len(u.Firmware), "device(s)")
		for _, fw := range u.Firmware {
			fmt.Fprintf(w, "    %s %s\n", dim.Sprint("•"), strings.TrimSpace(fw))
		}
		fmt.Fprintln(w)
	}

	cyan.Fprintln(w, rule)
	fmt.Fprintf(w, "  Total: %s update(s) available\n", greenBold.Sprint(u.TotalCount()))
	fmt.Fprintf(w, "  Run %s to install\n\n", cyan.Sprint("sudo sysupdater --update-all"))
}

func group(w io.Writer, title string, n int, unit string) {
	fmt.Fprintf(w, "  %s %s %s\n\n", yellowBold.Sprint(title), whiteBold.Sprint(strconv.Itoa(n)), unit)
}

func head(lines []string, n int) []string {
	if len(lines) > n {
		return lines[:n]
	}
	return lines
}

func more(w io.Writer, total, shown int) {
	if total > shown {
		fmt.Fprintf(w, "    %s ...and %s more\n", dim.Sprint("•"), yellow.Sprint(total-shown))
	}
}

// Reboot prints the outcome of the restart check when no prompt is shown.
func Reboot(w io.Writer, required bool, reason string) {
	if !required {
		fmt.Fprintf(w, "\n%s\n", green.Sprint("No reboot required."))
		return
	}
	fmt.Fprintf(w, "\n%s\n", yellowBold.Sprint("A system reboot is recommended."))
	if r := strings.TrimSpace(reason); r != "" {
		fmt.Fprintf(w, "  %s\n", dim.Sprint(r))
	}
}

// Fatal prints a single error line.
func Fatal(w io.Writer, err error) {
	fmt.Fprintf(w, "%s %s\n", redBold.Sprint("Error:"), err)
}

// Cancelled prints the cancellation notice.
func Cancelled(w io.Writer) {
	fmt.Fprintf(w, "\n%s\n", yellow.Sprint("Operation cancelled."))
}
