package orchestrator_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sysupdater/sysupdater/internal/catalog"
	"github.com/sysupdater/sysupdater/internal/model"
	"github.com/sysupdater/sysupdater/internal/orchestrator"
	"github.com/sysupdater/sysupdater/internal/runner"
	"github.com/sysupdater/sysupdater/internal/shutdown"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type reply struct {
	code     int
	stdout   string
	notFound bool
}

// fakeExec answers commands from a table keyed by command line; unknown
// commands succeed with no output.
type fakeExec struct {
	mu      sync.Mutex
	replies map[string]reply
	calls   []string
	onCall  func(cmdline string)
}

func (f *fakeExec) Run(_ context.Context, cmd runner.Command) (runner.Result, error) {
	line := cmd.String()
	f.mu.Lock()
	f.calls = append(f.calls, line)
	r := f.replies[line]
	hook := f.onCall
	f.mu.Unlock()
	if hook != nil {
		hook(line)
	}

	res := runner.Result{Command: line, ExitCode: r.code}
	switch {
	case r.notFound:
		return res, model.CommandNotFound(cmd.Path)
	case r.code != 0:
		return res, model.CommandFailed(line, r.code, r.stdout)
	}
	return res, nil
}

func (f *fakeExec) Capture(_ context.Context, cmd runner.Command) (runner.Capture, error) {
	line := cmd.String()
	f.mu.Lock()
	f.calls = append(f.calls, line)
	r := f.replies[line]
	hook := f.onCall
	f.mu.Unlock()
	if hook != nil {
		hook(line)
	}

	if r.notFound {
		return runner.Capture{Command: line}, model.CommandNotFound(cmd.Path)
	}
	return runner.Capture{Command: line, ExitCode: r.code, Stdout: []byte(r.stdout)}, nil
}

func (f *fakeExec) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func installed(tools ...string) func(string) bool {
	return func(tool string) bool {
		for _, t := range tools {
			if t == tool {
				return true
			}
		}
		return false
	}
}

var allTools = installed("dnf5", "flatpak", "fwupdmgr")

var all = []catalog.OperationID{catalog.System, catalog.Flatpak, catalog.Firmware}

func newOrchestrator(exec orchestrator.Executor, opts ...orchestrator.Option) *orchestrator.Orchestrator {
	opts = append([]orchestrator.Option{
		orchestrator.WithToolProbe(allTools),
		orchestrator.WithSignal(&shutdown.Signal{}),
	}, opts...)
	return orchestrator.New(catalog.Default(), exec, opts...)
}

func TestRun_Sequential(t *testing.T) {
	t.Parallel()
	exec := &fakeExec{}
	o := newOrchestrator(exec)

	summary, err := o.Run(t.Context(), orchestrator.Request{
		Operations: []catalog.OperationID{catalog.Firmware, catalog.System, catalog.Flatpak, catalog.System},
	})
	require.NoError(t, err)
	require.Equal(t, []string{
		"dnf5 update --refresh -y",
		"dnf5 autoremove -y",
		"flatpak update -y",
		"flatpak uninstall --unused -y",
		"fwupdmgr refresh --force",
		"fwupdmgr update -y",
	}, exec.recorded())

	require.Equal(t, 3, summary.Len())
	for _, id := range all {
		require.True(t, summary.Updated(id), id)
	}
	require.Empty(t, summary.Errors())
}

func TestRun_Outcomes(t *testing.T) {
	t.Parallel()

	type then struct {
		status  orchestrator.Status
		updated bool
		reason  string
		errIs   error
	}

	var testCases = []struct {
		scenario  string
		tools     func(string) bool
		replies   map[string]reply
		given     catalog.OperationID
		then      then
		thenCalls []string
	}{
		{
			scenario:  "tool not installed",
			tools:     installed("dnf5"),
			given:     catalog.Flatpak,
			then:      then{status: orchestrator.Skipped, reason: "flatpak not installed"},
			thenCalls: nil,
		},
		{
			scenario: "firmware has nothing to do",
			tools:    allTools,
			replies:  map[string]reply{"fwupdmgr update -y": {code: 2}},
			given:    catalog.Firmware,
			then: then{
				status: orchestrator.Completed,
				reason: "No firmware updates available",
			},
			thenCalls: []string{"fwupdmgr refresh --force", "fwupdmgr update -y"},
		},
		{
			scenario:  "firmware refresh failure is ignored",
			tools:     allTools,
			replies:   map[string]reply{"fwupdmgr refresh --force": {code: 1}},
			given:     catalog.Firmware,
			then:      then{status: orchestrator.Completed, updated: true},
			thenCalls: []string{"fwupdmgr refresh --force", "fwupdmgr update -y"},
		},
		{
			scenario:  "firmware update fails",
			tools:     allTools,
			replies:   map[string]reply{"fwupdmgr update -y": {code: 1}},
			given:     catalog.Firmware,
			then:      then{status: orchestrator.Failed, errIs: model.ErrCommandFailed},
			thenCalls: []string{"fwupdmgr refresh --force", "fwupdmgr update -y"},
		},
		{
			scenario:  "first failing step stops the operation",
			tools:     allTools,
			replies:   map[string]reply{"dnf5 update --refresh -y": {code: 1, stdout: "Error: cannot download repomd.xml"}},
			given:     catalog.System,
			then:      then{status: orchestrator.Failed, errIs: model.ErrCommandFailed},
			thenCalls: []string{"dnf5 update --refresh -y"},
		},
		{
			scenario:  "tool vanished after the probe",
			tools:     allTools,
			replies:   map[string]reply{"flatpak update -y": {notFound: true}},
			given:     catalog.Flatpak,
			then:      then{status: orchestrator.Failed, errIs: model.ErrCommandNotFound},
			thenCalls: []string{"flatpak update -y"},
		},
		{
			scenario: "unknown operation",
			tools:    allTools,
			given:    "snap",
			then:     then{status: orchestrator.Failed, errIs: model.ErrConfig},
		},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			t.Parallel()
			exec := &fakeExec{replies: tt.replies}
			o := newOrchestrator(exec, orchestrator.WithToolProbe(tt.tools))

			summary, err := o.Run(t.Context(), orchestrator.Request{Operations: []catalog.OperationID{tt.given}})
			require.NoError(t, err)
			require.Equal(t, tt.thenCalls, exec.recorded())

			res, ok := summary.Result(tt.given)
			require.True(t, ok)
			require.Equal(t, tt.then.status, res.Status)
			require.Equal(t, tt.then.updated, res.Updated)
			require.Equal(t, tt.then.updated, summary.Updated(tt.given))
			require.Equal(t, tt.then.reason, res.Reason)
			if tt.then.errIs == nil {
				require.NoError(t, res.Err)
				require.Empty(t, summary.Errors())
			} else {
				require.ErrorIs(t, res.Err, tt.then.errIs)
				require.Len(t, summary.Errors(), 1)
			}
		})
	}
}

func TestRun_FailureDoesNotAbortSiblings(t *testing.T) {
	t.Parallel()

	for _, mode := range []orchestrator.Mode{orchestrator.Sequential, orchestrator.Concurrent} {
		t.Run(mode.String(), func(t *testing.T) {
			t.Parallel()
			exec := &fakeExec{replies: map[string]reply{
				"dnf5 update --refresh -y": {code: 1, stdout: "boom"},
			}}
			o := newOrchestrator(exec)

			summary, err := o.Run(t.Context(), orchestrator.Request{
				Operations: []catalog.OperationID{catalog.System, catalog.Flatpak},
				Mode:       mode,
			})
			require.NoError(t, err)
			require.Equal(t, 2, summary.Len())

			sys, _ := summary.Result(catalog.System)
			require.Equal(t, orchestrator.Failed, sys.Status)
			require.False(t, summary.Updated(catalog.System))
			require.True(t, summary.Updated(catalog.Flatpak))

			errs := summary.Errors()
			require.Len(t, errs, 1)
			var uerr *model.UpdateError
			require.True(t, errors.As(errs[0], &uerr))
			require.Equal(t, "dnf5 update --refresh -y", uerr.Command)
			require.Equal(t, 1, uerr.Code)
			require.Equal(t, "boom", uerr.Output)

			require.Contains(t, exec.recorded(), "flatpak uninstall --unused -y")
			require.NotContains(t, exec.recorded(), "dnf5 autoremove -y")
		})
	}
}

func TestRun_Concurrent(t *testing.T) {
	t.Parallel()
	exec := &fakeExec{replies: map[string]reply{
		"flatpak update -y": {code: 1},
	}}
	o := newOrchestrator(exec)

	summary, err := o.Run(t.Context(), orchestrator.Request{Operations: all, Mode: orchestrator.Concurrent})
	require.NoError(t, err)
	require.Equal(t, 3, summary.Len())
	require.True(t, summary.Updated(catalog.System))
	require.False(t, summary.Updated(catalog.Flatpak))
	require.True(t, summary.Updated(catalog.Firmware))
	require.Len(t, summary.Errors(), 1)
	require.Len(t, exec.recorded(), 5)

	results := summary.Results()
	require.Equal(t, catalog.System, results[0].ID)
	require.Equal(t, catalog.Flatpak, results[1].ID)
	require.Equal(t, catalog.Firmware, results[2].ID)
}

func TestRun_Cancelled(t *testing.T) {
	t.Parallel()

	var testCases = []struct {
		scenario  string
		triggerOn string
		then      []catalog.OperationID
	}{
		{"before the first operation", "", nil},
		{"during the first operation", "dnf5 autoremove -y", []catalog.OperationID{catalog.System}},
		{"during the second operation", "flatpak update -y", []catalog.OperationID{catalog.System, catalog.Flatpak}},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			t.Parallel()
			var sig shutdown.Signal
			exec := &fakeExec{}
			if tt.triggerOn == "" {
				sig.Trigger()
			} else {
				exec.onCall = func(line string) {
					if line == tt.triggerOn {
						sig.Trigger()
					}
				}
			}
			o := newOrchestrator(exec, orchestrator.WithSignal(&sig))

			summary, err := o.Run(t.Context(), orchestrator.Request{Operations: all})
			require.Error(t, err)
			require.ErrorIs(t, err, model.ErrCancelled)
			require.Equal(t, 130, model.ExitCode(err))
			require.NotNil(t, summary)

			require.Equal(t, len(tt.then), summary.Len())
			for _, id := range tt.then {
				// the operation in flight still runs to completion
				res, ok := summary.Result(id)
				require.True(t, ok)
				require.Equal(t, orchestrator.Completed, res.Status)
			}
			_, ok := summary.Result(catalog.Firmware)
			require.False(t, ok)
		})
	}
}

func TestRun_CancelledConcurrentIgnored(t *testing.T) {
	t.Parallel()
	var sig shutdown.Signal
	sig.Trigger()
	o := newOrchestrator(&fakeExec{}, orchestrator.WithSignal(&sig))

	summary, err := o.Run(t.Context(), orchestrator.Request{Operations: all, Mode: orchestrator.Concurrent})
	require.NoError(t, err)
	require.Equal(t, 3, summary.Len())
}

func TestRun_DryRun(t *testing.T) {
	t.Parallel()
	var stdout recorder
	r := runner.New(runner.Options{Stdout: &stdout, DryRun: true})
	o := newOrchestrator(r)

	summary, err := o.Run(t.Context(), orchestrator.Request{Operations: all})
	require.NoError(t, err)
	for _, id := range all {
		require.True(t, summary.Updated(id))
	}
	require.Equal(t, []string{
		"[DNF5] [DRY RUN] would execute: dnf5 update --refresh -y",
		"[DNF5] [DRY RUN] would execute: dnf5 autoremove -y",
		"[Flatpak] [DRY RUN] would execute: flatpak update -y",
		"[Flatpak] [DRY RUN] would execute: flatpak uninstall --unused -y",
		"[Firmware] [DRY RUN] would execute: fwupdmgr refresh --force",
		"[Firmware] [DRY RUN] would execute: fwupdmgr update -y",
	}, stdout.all())
}

type recorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *recorder) WriteLine(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

type progressEvents struct {
	mu     sync.Mutex
	events []string
}

func (p *progressEvents) add(e string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *progressEvents) Start(op catalog.Operation) orchestrator.Tracker {
	p.add("start " + string(op.ID))
	return progressTracker{p: p}
}

func (p *progressEvents) Skipped(op catalog.Operation, reason string) {
	p.add("skip " + string(op.ID) + ": " + reason)
}

type progressTracker struct{ p *progressEvents }

func (t progressTracker) Step(msg string) { t.p.add("step " + msg) }
func (t progressTracker) Done(r orchestrator.Result) {
	t.p.add("done " + string(r.ID) + " " + r.Status.String())
}

func TestRun_Progress(t *testing.T) {
	t.Parallel()
	var p progressEvents
	o := newOrchestrator(&fakeExec{},
		orchestrator.WithToolProbe(installed("dnf5")),
		orchestrator.WithProgress(&p),
	)

	_, err := o.Run(t.Context(), orchestrator.Request{Operations: []catalog.OperationID{catalog.System, catalog.Flatpak}})
	require.NoError(t, err)
	require.Equal(t, []string{
		"start system",
		"step Updating system packages...",
		"step Removing unused packages...",
		"done system completed",
		"skip flatpak: flatpak not installed",
	}, p.events)
}
