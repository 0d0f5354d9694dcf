package catalog

import (
	"maps"
	"slices"
	"strings"
)

// Probe is a read-only query listing the pending updates of an operation.
type Probe struct {
	ID       OperationID
	Tool     string
	Pre      [][]string // run before the query, failures ignored
	Args     []string
	Accepted []int // exit codes meaning the query succeeded
	Filter   func(line string) bool
}

// Accepts reports whether code is one of the accepted exit codes.
func (p Probe) Accepts(code int) bool {
	return slices.Contains(p.Accepted, code)
}

// Select returns the lines kept by the filter.
func (p Probe) Select(lines []string) []string {
	var kept []string
	for _, l := range lines {
		if p.Filter == nil || p.Filter(l) {
			kept = append(kept, l)
		}
	}
	return kept
}

// Probes returns one refresh probe per operation in priority order.
func (c Catalog) Probes() []Probe {
	return []Probe{
		{
			ID:   System,
			Tool: "dnf5",
			Args: []string{"check-upgrade", "--refresh", "-q"},
			// dnf returns 100 when upgrades are available
			Accepted: []int{0, 100},
			Filter: func(line string) bool {
				return strings.TrimSpace(line) != "" && !strings.HasPrefix(line, "Last metadata")
			},
		},
		{
			ID:       Flatpak,
			Tool:     "flatpak",
			Args:     []string{"remote-ls", "--updates"},
			Accepted: []int{0},
			Filter: func(line string) bool {
				return strings.TrimSpace(line) != ""
			},
		},
		{
			ID:       Firmware,
			Tool:     "fwupdmgr",
			Pre:      [][]string{{"refresh", "--force"}},
			Args:     []string{"get-updates", "-y"},
			Accepted: append([]int{0}, c.firmwareNoUpdateCodes()...),
			Filter: func(line string) bool {
				return strings.Contains(line, "→") || strings.Contains(line, "New version")
			},
		},
	}
}

func (c Catalog) firmwareNoUpdateCodes() []int {
	var codes []int
	for _, s := range c.ops[Firmware].Steps {
		codes = append(codes, slices.Sorted(maps.Keys(s.Overrides))...)
	}
	return codes
}
