// Package catalog describes the update operations sysupdater knows about:
// which tool each one needs, the commands it runs and how their exit codes
// are interpreted. It performs no I/O.
package catalog

import (
	"fmt"
	"slices"

	"github.com/sysupdater/sysupdater/internal/model"
)

// OperationID names one update subsystem.
type OperationID string

const (
	System   OperationID = "system"
	Flatpak  OperationID = "flatpak"
	Firmware OperationID = "firmware"
)

// Priority is the fixed execution order.
var Priority = []OperationID{System, Flatpak, Firmware}

// Rank returns the position of id in Priority, or len(Priority) if unknown.
func Rank(id OperationID) int {
	if i := slices.Index(Priority, id); i >= 0 {
		return i
	}
	return len(Priority)
}

// ExitOverride reinterprets a non-zero exit code of a step.
type ExitOverride struct {
	NothingToDo bool
	Message     string
}

type Step struct {
	Path          string
	Args          []string
	Prefix        string
	Message       string // progress text shown while the step runs
	IgnoreFailure bool
	Overrides     map[int]ExitOverride
}

// Override returns the override for exit code, if any.
func (s Step) Override(code int) (ExitOverride, bool) {
	o, ok := s.Overrides[code]
	return o, ok
}

type Operation struct {
	ID    OperationID
	Tool  string // probed on $PATH before the operation runs
	Title string
	Steps []Step
}

// Options tune the generated steps.
type Options struct {
	SystemRefresh         bool
	SystemAutoRemove      bool
	FlatpakRemoveUnused   bool
	FirmwareNoUpdateCodes []int
}

func DefaultOptions() Options {
	return Options{
		SystemRefresh:         true,
		SystemAutoRemove:      true,
		FlatpakRemoveUnused:   true,
		FirmwareNoUpdateCodes: []int{model.FirmwareNoUpdatesCode},
	}
}

// OptionsFromConfig maps the per-category config sections to Options.
func OptionsFromConfig(cfg model.Config) Options {
	return Options{
		SystemRefresh:         cfg.System.Refresh,
		SystemAutoRemove:      cfg.System.AutoRemove,
		FlatpakRemoveUnused:   cfg.Flatpak.RemoveUnused,
		FirmwareNoUpdateCodes: slices.Clone(cfg.Firmware.NoUpdateExitCodes),
	}
}

type Catalog struct {
	ops map[OperationID]Operation
}

// Default returns the catalog built from DefaultOptions.
func Default() Catalog {
	return New(DefaultOptions())
}

func New(opts Options) Catalog {
	return Catalog{
		ops: map[OperationID]Operation{
			System:   systemOperation(opts),
			Flatpak:  flatpakOperation(opts),
			Firmware: firmwareOperation(opts),
		},
	}
}

func (c Catalog) Operation(id OperationID) (Operation, bool) {
	op, ok := c.ops[id]
	return op, ok
}

// StepsFor returns the ordered steps of an operation.
func (c Catalog) StepsFor(id OperationID) ([]Step, error) {
	op, ok := c.ops[id]
	if !ok {
		return nil, model.ConfigError(fmt.Errorf("unknown operation %q", id))
	}
	return op.Steps, nil
}

func systemOperation(opts Options) Operation {
	update := []string{"update", "-y"}
	if opts.SystemRefresh {
		update = []string{"update", "--refresh", "-y"}
	}
	steps := []Step{
		{
			Path:    "dnf5",
			Args:    update,
			Prefix:  "[DNF5]",
			Message: "Updating system packages...",
		},
	}
	if opts.SystemAutoRemove {
		steps = append(steps, Step{
			Path:    "dnf5",
			Args:    []string{"autoremove", "-y"},
			Prefix:  "[DNF5]",
			Message: "Removing unused packages...",
		})
	}
	return Operation{ID: System, Tool: "dnf5", Title: "System Packages (DNF5)", Steps: steps}
}

func flatpakOperation(opts Options) Operation {
	steps := []Step{
		{
			Path:    "flatpak",
			Args:    []string{"update", "-y"},
			Prefix:  "[Flatpak]",
			Message: "Updating Flatpak applications...",
		},
	}
	if opts.FlatpakRemoveUnused {
		steps = append(steps, Step{
			Path:    "flatpak",
			Args:    []string{"uninstall", "--unused", "-y"},
			Prefix:  "[Flatpak]",
			Message: "Removing unused runtimes...",
		})
	}
	return Operation{ID: Flatpak, Tool: "flatpak", Title: "Flatpak Applications", Steps: steps}
}

func firmwareOperation(opts Options) Operation {
	overrides := make(map[int]ExitOverride, len(opts.FirmwareNoUpdateCodes))
	for _, code := range opts.FirmwareNoUpdateCodes {
		overrides[code] = ExitOverride{NothingToDo: true, Message: "No firmware updates available"}
	}
	return Operation{
		ID:    Firmware,
		Tool:  "fwupdmgr",
		Title: "Firmware (fwupd)",
		Steps: []Step{
			{
				Path:          "fwupdmgr",
				Args:          []string{"refresh", "--force"},
				Prefix:        "[Firmware]",
				Message:       "Refreshing firmware metadata...",
				IgnoreFailure: true,
			},
			{
				Path:      "fwupdmgr",
				Args:      []string{"update", "-y"},
				Prefix:    "[Firmware]",
				Message:   "Updating firmware...",
				Overrides: overrides,
			},
		},
	}
}
