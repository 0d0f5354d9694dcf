// Package reboot decides whether the host should be restarted after updates
// and optionally asks the operator to do so.
package reboot

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/shirou/gopsutil/v3/host"

	"github.com/sysupdater/sysupdater/internal/model"
	"github.com/sysupdater/sysupdater/internal/runner"
)

var needsRestarting = runner.Command{Path: "dnf5", Args: []string{"needs-restarting", "-r"}}

var rebootNow = runner.Command{Path: "systemctl", Args: []string{"reboot"}, Prefix: "[Reboot]"}

type Executor interface {
	Run(ctx context.Context, cmd runner.Command) (runner.Result, error)
	Capture(ctx context.Context, cmd runner.Command) (runner.Capture, error)
}

type Status struct {
	Required bool
	Reason   string // raw output of the restart check, set when Required
	Uptime   time.Duration
	Kernel   string
	Platform string
}

type Advisor struct {
	exec     Executor
	exists   func(tool string) bool
	hostInfo func(context.Context) (*host.InfoStat, error)
	in       io.Reader
	out      io.Writer
}

type Option func(*Advisor)

func WithToolProbe(exists func(tool string) bool) Option {
	return func(a *Advisor) { a.exists = exists }
}

func WithHostInfo(f func(context.Context) (*host.InfoStat, error)) Option {
	return func(a *Advisor) { a.hostInfo = f }
}

// WithIO sets where the prompt is printed and the answer read.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(a *Advisor) {
		a.in = in
		a.out = out
	}
}

func New(exec Executor, opts ...Option) *Advisor {
	a := &Advisor{
		exec:     exec,
		exists:   runner.CommandExists,
		hostInfo: host.InfoWithContext,
		in:       os.Stdin,
		out:      os.Stdout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Check asks dnf5 whether a restart is needed. Exit code 1 means it is, with
// the tool output as the reason; every other code means it is not. A host
// without dnf5 never needs a restart.
func (a *Advisor) Check(ctx context.Context) (Status, error) {
	st := a.host(ctx)

	if !a.exists(needsRestarting.Path) {
		slog.DebugContext(ctx, "restart check skipped, tool not installed", "tool", needsRestarting.Path)
		return st, nil
	}

	c, err := a.exec.Capture(ctx, needsRestarting)
	if err != nil {
		if errors.Is(err, model.ErrCommandNotFound) {
			return st, nil
		}
		return st, err
	}

	if c.ExitCode == 1 {
		st.Required = true
		st.Reason = string(c.Stdout)
		slog.InfoContext(ctx, "reboot required", "reason", strings.TrimSpace(st.Reason))
	} else {
		slog.DebugContext(ctx, "no reboot required", "code", c.ExitCode)
	}
	return st, nil
}

func (a *Advisor) host(ctx context.Context) Status {
	var st Status
	info, err := a.hostInfo(ctx)
	if err != nil || info == nil {
		slog.DebugContext(ctx, "host info unavailable", "error", err)
		return st
	}
	st.Uptime = time.Duration(info.Uptime) * time.Second
	st.Kernel = info.KernelVersion
	st.Platform = strings.TrimSpace(info.Platform + " " + info.PlatformVersion)
	return st
}

// PromptAndReboot offers to reboot now. It returns true once the reboot
// command has been issued, in which case the caller must stop.
func (a *Advisor) PromptAndReboot(ctx context.Context) (bool, error) {
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, "What would you like to do?")
	fmt.Fprintln(a.out, "  1. Reboot now")
	fmt.Fprintln(a.out, "  2. Exit without rebooting")
	fmt.Fprint(a.out, "\nChoice [1/2]: ")

	answer, err := bufio.NewReader(a.in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, model.IOError(fmt.Errorf("reading answer: %w", err))
	}

	if strings.TrimSpace(answer) != "1" {
		color.New(color.FgGreen).Fprintln(a.out, "Exiting without reboot.")
		return false, nil
	}

	slog.InfoContext(ctx, "user requested reboot")
	if _, err := a.exec.Run(ctx, rebootNow); err != nil {
		return false, err
	}
	return true, nil
}
