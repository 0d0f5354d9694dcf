package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/sysupdater/sysupdater/internal/catalog"
	"github.com/sysupdater/sysupdater/internal/orchestrator"
	"github.com/sysupdater/sysupdater/internal/runner"
)

// Console is the operator facing side of a run. It forwards command output
// and reports operation progress, either with an animated spinner or with
// plain status lines. It is safe for concurrent use.
type Console struct {
	mu       sync.Mutex
	out      io.Writer
	err      io.Writer
	spinners bool
	quiet    bool
	bar      *progressbar.ProgressBar
}

type ConsoleOptions struct {
	Spinners bool // animate progress; only sensible on a terminal with one operation at a time
	Quiet    bool // suppress progress reports entirely
}

func NewConsole(out, err io.Writer, opts ConsoleOptions) *Console {
	return &Console{
		out:      out,
		err:      err,
		spinners: opts.Spinners && !opts.Quiet,
		quiet:    opts.Quiet,
	}
}

// Stdout is the sink for forwarded command stdout.
func (c *Console) Stdout() runner.Sink {
	return runner.SinkFunc(func(line string) { c.writeLine(c.out, line) })
}

// Stderr is the sink for forwarded command stderr.
func (c *Console) Stderr() runner.Sink {
	return runner.SinkFunc(func(line string) { c.writeLine(c.err, line) })
}

// writeLine routes lines through an active spinner, which prints them above
// itself on the next redraw.
func (c *Console) writeLine(w io.Writer, line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bar != nil {
		_, _ = progressbar.Bprintln(c.bar, line)
		return
	}
	fmt.Fprintln(w, line)
}

func (c *Console) Start(op catalog.Operation) orchestrator.Tracker {
	if c.quiet {
		return quietTracker{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.spinners || c.bar != nil {
		return &lineTracker{c: c, op: op}
	}

	c.bar = progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(c.out),
		progressbar.OptionSetDescription(op.Title),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetSpinnerChangeInterval(100*time.Millisecond),
		progressbar.OptionSetElapsedTime(false),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
	return &spinnerTracker{c: c, bar: c.bar}
}

func (c *Console) Skipped(op catalog.Operation, reason string) {
	if c.quiet {
		return
	}
	c.writeLine(c.out, fmt.Sprintf("%s %s: %s", yellow.Sprint("○"), op.Title, reason))
}

func (c *Console) finish(res orchestrator.Result) {
	c.writeLine(c.out, resultLine(res))
}

func resultLine(res orchestrator.Result) string {
	switch {
	case res.Status == orchestrator.Failed:
		return red.Sprintf("✗ %s failed", res.Title)
	case !res.Updated && res.Reason != "":
		return yellow.Sprint(res.Reason)
	default:
		return green.Sprintf("%s complete ✓", res.Title)
	}
}

type quietTracker struct{}

func (quietTracker) Step(string)              {}
func (quietTracker) Done(orchestrator.Result) {}

type lineTracker struct {
	c  *Console
	op catalog.Operation
}

func (t *lineTracker) Step(msg string) {
	t.c.writeLine(t.c.out, cyan.Sprintf("→ [%s] %s", t.op.ID, msg))
}

func (t *lineTracker) Done(res orchestrator.Result) {
	t.c.finish(res)
}

type spinnerTracker struct {
	c   *Console
	bar *progressbar.ProgressBar
}

func (t *spinnerTracker) Step(msg string) {
	t.bar.Describe(cyan.Sprint(msg))
}

func (t *spinnerTracker) Done(res orchestrator.Result) {
	// a redraw flushes lines still buffered in the bar, Finish would drop them
	t.bar.Describe("")
	_ = t.bar.Finish()

	t.c.mu.Lock()
	t.c.bar = nil
	t.c.mu.Unlock()
	t.c.finish(res)
}
