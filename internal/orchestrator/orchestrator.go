// Package orchestrator runs the selected update operations, sequentially or
// concurrently, and folds the outcome of their steps into a Summary.
package orchestrator

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sysupdater/sysupdater/internal/catalog"
	"github.com/sysupdater/sysupdater/internal/log"
	"github.com/sysupdater/sysupdater/internal/model"
	"github.com/sysupdater/sysupdater/internal/runner"
	"github.com/sysupdater/sysupdater/internal/shutdown"
)

type Mode int

const (
	Sequential Mode = iota
	Concurrent
)

func (m Mode) String() string {
	if m == Concurrent {
		return "concurrent"
	}
	return "sequential"
}

// Executor runs external commands. *runner.Runner is the production
// implementation.
type Executor interface {
	Run(ctx context.Context, cmd runner.Command) (runner.Result, error)
	Capture(ctx context.Context, cmd runner.Command) (runner.Capture, error)
}

// Canceller is polled between operations in Sequential mode.
type Canceller interface {
	Cancelled() bool
}

type Request struct {
	Operations []catalog.OperationID
	Mode       Mode
}

type Orchestrator struct {
	catalog  catalog.Catalog
	exec     Executor
	exists   func(tool string) bool
	signal   Canceller
	progress Progress
}

type Option func(*Orchestrator)

// WithToolProbe replaces the $PATH lookup used to detect installed tools.
func WithToolProbe(exists func(tool string) bool) Option {
	return func(o *Orchestrator) { o.exists = exists }
}

// WithSignal replaces the process-wide cancellation signal.
func WithSignal(c Canceller) Option {
	return func(o *Orchestrator) { o.signal = c }
}

func WithProgress(p Progress) Option {
	return func(o *Orchestrator) { o.progress = p }
}

func New(cat catalog.Catalog, exec Executor, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		catalog:  cat,
		exec:     exec,
		exists:   runner.CommandExists,
		progress: NoProgress,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.signal == nil {
		o.signal = shutdown.Global()
	}
	return o
}

// Run executes the requested operations in priority order and returns the
// Summary of everything that ran. In Sequential mode a triggered cancellation
// signal stops the run before the next operation; the partial Summary is
// returned together with a Cancelled error. Concurrent mode starts every
// operation at once and never observes the signal.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Summary, error) {
	ids := normalize(req.Operations)
	summary := NewSummary()
	slog.DebugContext(ctx, "running operations", "mode", req.Mode.String(), "operations", ids)

	if req.Mode == Concurrent {
		var g errgroup.Group
		g.SetLimit(max(len(ids), 1))
		for _, id := range ids {
			g.Go(func() error {
				summary.Record(ctx, o.runOperation(ctx, id))
				return nil
			})
		}
		_ = g.Wait()
		return summary, nil
	}

	for _, id := range ids {
		if o.signal.Cancelled() {
			slog.WarnContext(ctx, "cancelled, remaining operations not started", "next", string(id))
			return summary, model.Cancelled()
		}
		summary.Record(ctx, o.runOperation(ctx, id))
	}
	return summary, nil
}

func (o *Orchestrator) runOperation(ctx context.Context, id catalog.OperationID) Result {
	op, ok := o.catalog.Operation(id)
	if !ok {
		_, err := o.catalog.StepsFor(id)
		slog.ErrorContext(ctx, "unknown operation", "operation", string(id))
		return Result{ID: id, Title: string(id), Status: Failed, Err: err}
	}

	ctx = log.ContextAttrs(ctx, slog.String("operation", string(id)))
	if !o.exists(op.Tool) {
		reason := op.Tool + " not installed"
		slog.InfoContext(ctx, "skipping operation", "reason", reason)
		o.progress.Skipped(op, reason)
		return Result{ID: id, Title: op.Title, Status: Skipped, Reason: reason}
	}

	tracker := o.progress.Start(op)
	start := time.Now()
	res := o.runSteps(ctx, op, tracker)
	res.Duration = time.Since(start)
	tracker.Done(res)

	if res.Status == Failed {
		slog.ErrorContext(ctx, "operation failed", "error", res.Err)
	} else {
		slog.InfoContext(ctx, "operation completed", "updated", res.Updated, "duration", res.Duration)
	}
	return res
}

// runSteps executes the steps in order. The first failing step fails the
// operation and the remaining steps are not attempted.
func (o *Orchestrator) runSteps(ctx context.Context, op catalog.Operation, tracker Tracker) Result {
	res := Result{ID: op.ID, Title: op.Title, Status: Completed, Updated: true}
	for _, step := range op.Steps {
		tracker.Step(step.Message)
		_, err := o.exec.Run(ctx, runner.Command{Path: step.Path, Args: step.Args, Prefix: step.Prefix})
		if err == nil {
			continue
		}
		if override, ok := exitOverride(step, err); ok && override.NothingToDo {
			slog.InfoContext(ctx, override.Message)
			res.Updated = false
			res.Reason = override.Message
			continue
		}
		if step.IgnoreFailure {
			slog.WarnContext(ctx, "step failed, continuing", "step", step.Message, "error", err)
			continue
		}
		return Result{ID: op.ID, Title: op.Title, Status: Failed, Err: err}
	}
	return res
}

func exitOverride(step catalog.Step, err error) (catalog.ExitOverride, bool) {
	var uerr *model.UpdateError
	if !errors.As(err, &uerr) || uerr.Kind != model.KindCommandFailed {
		return catalog.ExitOverride{}, false
	}
	return step.Override(uerr.Code)
}

// normalize de-duplicates ids and sorts them into priority order. Unknown ids
// go last, by name.
func normalize(ids []catalog.OperationID) []catalog.OperationID {
	ret := slices.Clone(ids)
	slices.SortFunc(ret, compareIDs)
	return slices.Compact(ret)
}

func compareIDs(a, b catalog.OperationID) int {
	return cmp.Or(
		cmp.Compare(catalog.Rank(a), catalog.Rank(b)),
		cmp.Compare(a, b),
	)
}
