package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/sysupdater/sysupdater/internal/catalog"
	"github.com/sysupdater/sysupdater/internal/model"
	"github.com/sysupdater/sysupdater/internal/parallel"
	"github.com/sysupdater/sysupdater/internal/runner"
)

type probed struct {
	id    catalog.OperationID
	lines []string
}

// CheckAvailable queries every installed tool for pending updates. The probes
// run concurrently. A failed probe leaves its list empty; the failures are
// returned joined next to whatever was found, so the error is informational.
// A cancellation signal raised before or during the check yields Cancelled
// next to the partial result.
func (o *Orchestrator) CheckAvailable(ctx context.Context) (model.AvailableUpdates, error) {
	if o.signal.Cancelled() {
		return model.AvailableUpdates{}, model.Cancelled()
	}

	var probes []catalog.Probe
	for _, p := range o.catalog.Probes() {
		if !o.exists(p.Tool) {
			slog.DebugContext(ctx, "probe skipped, tool not installed", "tool", p.Tool)
			continue
		}
		probes = append(probes, p)
	}

	found, err := parallel.Collect(
		parallel.NewMap(ctx, len(probes), o.probe).Iter(slices.Values(probes)),
	)
	if err != nil {
		slog.WarnContext(ctx, "update check incomplete", "error", err)
	}

	var updates model.AvailableUpdates
	for _, f := range found {
		switch f.id {
		case catalog.System:
			updates.System = f.lines
		case catalog.Flatpak:
			updates.Flatpak = f.lines
		case catalog.Firmware:
			updates.Firmware = f.lines
		}
	}
	if ctx.Err() != nil || o.signal.Cancelled() {
		slog.WarnContext(ctx, "update check cancelled")
		return updates, model.Cancelled()
	}
	return updates, err
}

func (o *Orchestrator) probe(ctx context.Context, p catalog.Probe) (probed, error) {
	for _, args := range p.Pre {
		cmd := runner.Command{Path: p.Tool, Args: args}
		if c, err := o.exec.Capture(ctx, cmd); err != nil || c.ExitCode != 0 {
			slog.DebugContext(ctx, "pre-probe step failed", "cmd", cmd.String(), "code", c.ExitCode, "error", err)
		}
	}

	cmd := runner.Command{Path: p.Tool, Args: p.Args}
	c, err := o.exec.Capture(ctx, cmd)
	if err != nil {
		return probed{}, fmt.Errorf("%s: %w", p.ID, err)
	}
	if !p.Accepts(c.ExitCode) {
		return probed{}, fmt.Errorf("%s: %w", p.ID, model.CommandFailed(cmd.String(), c.ExitCode, string(c.Stdout)))
	}
	return probed{id: p.ID, lines: p.Select(c.Lines())}, nil
}
