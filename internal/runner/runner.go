package runner

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"

	"github.com/sysupdater/sysupdater/internal/model"
)

// maxLineSize caps a single forwarded output line; dnf transaction tables can be wide.
const maxLineSize = 1024 * 1024

var (
	stdoutPrefix = color.New(color.FgWhite, color.Bold)
	stderrPrefix = color.New(color.FgRed, color.Bold)
	dryRunPrefix = color.New(color.FgCyan, color.Bold)
)

// Command is a single external program invocation.
type Command struct {
	Path   string
	Args   []string
	Prefix string // prepended to every forwarded output line, e.g. [DNF5]
}

// String returns the command line as it is shown to the operator.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Path
	}
	return c.Path + " " + strings.Join(c.Args, " ")
}

type Result struct {
	Command  string
	Stdout   []string // captured in arrival order, regardless of quiet mode
	ExitCode int
	DryRun   bool
	Started  time.Time
	Stopped  time.Time
}

type Options struct {
	Stdout Sink // nil means Discard
	Stderr Sink // nil means Discard
	Quiet  bool // do not forward output lines
	DryRun bool // print commands instead of running them
	Color  bool // colorize prefixes
}

// Runner spawns external commands, forwarding their output line by line to
// the configured sinks while keeping a copy of stdout for diagnostics.
type Runner struct {
	stdout Sink
	stderr Sink
	quiet  bool
	dryRun bool
	color  bool
}

func New(opts Options) *Runner {
	r := &Runner{
		stdout: opts.Stdout,
		stderr: opts.Stderr,
		quiet:  opts.Quiet,
		dryRun: opts.DryRun,
		color:  opts.Color,
	}
	if r.stdout == nil {
		r.stdout = Discard
	}
	if r.stderr == nil {
		r.stderr = Discard
	}
	return r
}

func (r *Runner) DryRun() bool {
	return r.dryRun
}

// Run executes the command and waits for it. Stdout, stderr and the process
// wait are three concurrent tasks; Run returns only after all of them are
// done. A non-zero exit status is reported as a CommandFailed error carrying
// the captured stdout, next to a populated Result.
func (r *Runner) Run(ctx context.Context, c Command) (Result, error) {
	line := c.String()
	res := Result{Command: line}

	if r.dryRun {
		slog.InfoContext(ctx, "dry run", "cmd", line)
		r.stdout.WriteLine(r.paint(dryRunPrefix, c.Prefix) + " [DRY RUN] would execute: " + line)
		res.DryRun = true
		return res, nil
	}

	slog.InfoContext(ctx, "executing", "cmd", line)

	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	outR, outW := io.Pipe()
	errR, errW := io.Pipe()
	cmd.Stdout = outW
	cmd.Stderr = errW

	res.Started = time.Now().UTC()
	if err := cmd.Start(); err != nil {
		res.Stopped = time.Now().UTC()
		_ = outW.Close()
		_ = errW.Close()
		return res, spawnError(c.Path, err)
	}

	outPrefix := r.paint(stdoutPrefix, c.Prefix)
	errPrefix := r.paint(stderrPrefix, c.Prefix)

	var (
		g       errgroup.Group
		lines   []string
		waitErr error
	)
	g.Go(func() error {
		lines = r.consume(ctx, outR, func(l string) {
			if !r.quiet {
				r.stdout.WriteLine(outPrefix + " " + l)
			}
		})
		return nil
	})
	g.Go(func() error {
		r.consume(ctx, errR, func(l string) {
			if !r.quiet {
				r.stderr.WriteLine(errPrefix + " " + l)
			}
			slog.DebugContext(ctx, "stderr", "cmd", c.Path, "line", l)
		})
		return nil
	})
	g.Go(func() error {
		// exec copies into the pipes until the child closes its ends, so
		// closing the writers here is what ends both readers.
		waitErr = cmd.Wait()
		_ = outW.Close()
		_ = errW.Close()
		return nil
	})
	_ = g.Wait()

	res.Stopped = time.Now().UTC()
	res.Stdout = lines

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			slog.DebugContext(ctx, "command failed", "cmd", line, "code", res.ExitCode)
			return res, model.CommandFailed(line, res.ExitCode, strings.Join(lines, "\n"))
		}
		return res, model.IOError(waitErr)
	}
	return res, nil
}

// consume reads rd line by line and returns the lines seen. Lines longer than
// maxLineSize are cut, the remainder of such a line is dropped and reading
// goes on with the next one.
func (r *Runner) consume(ctx context.Context, rd io.Reader, forward func(string)) []string {
	var (
		lines []string
		line  []byte
		cut   bool
	)
	br := bufio.NewReaderSize(rd, 64*1024)
	emit := func() {
		if cut {
			slog.WarnContext(ctx, "command output line truncated", "limit", maxLineSize)
		}
		l := string(line)
		forward(l)
		lines = append(lines, l)
		line = line[:0]
		cut = false
	}

	for {
		chunk, isPrefix, err := br.ReadLine()
		if err != nil {
			if len(line) > 0 || cut {
				emit()
			}
			if !errors.Is(err, io.EOF) {
				slog.WarnContext(ctx, "reading command output", "error", err)
				_, _ = io.Copy(io.Discard, rd)
			}
			return lines
		}

		room := maxLineSize - len(line)
		if len(chunk) > room {
			chunk = chunk[:room]
			cut = true
		}
		line = append(line, chunk...)
		if !isPrefix {
			emit()
		}
	}
}

func (r *Runner) paint(c *color.Color, prefix string) string {
	if !r.color || prefix == "" {
		return prefix
	}
	return c.Sprint(prefix)
}

// Capture is the outcome of a silent run.
type Capture struct {
	Command  string
	ExitCode int
	Stdout   []byte
}

// Lines splits the captured stdout into lines.
func (c Capture) Lines() []string {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(c.Stdout))
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

// Capture runs the command without forwarding anything. A non-zero exit
// status is not an error, it is returned in Capture.ExitCode. Capture ignores
// dry run, as it is used for read-only queries only.
func (r *Runner) Capture(ctx context.Context, c Command) (Capture, error) {
	capture := Capture{Command: c.String()}
	slog.DebugContext(ctx, "querying", "cmd", capture.Command)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	capture.Stdout = stdout.Bytes()
	if stderr.Len() > 0 {
		slog.DebugContext(ctx, "stderr", "cmd", c.Path, "output", stderr.String())
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return capture, spawnError(c.Path, err)
		}
		capture.ExitCode = exitErr.ExitCode()
	}
	return capture, nil
}

func spawnError(path string, err error) error {
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return model.CommandNotFound(path)
	}
	return model.IOError(err)
}
