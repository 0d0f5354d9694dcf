package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sysupdater/sysupdater/internal/catalog"
	"github.com/sysupdater/sysupdater/internal/log"
	"github.com/sysupdater/sysupdater/internal/model"
	"github.com/sysupdater/sysupdater/internal/netcheck"
	"github.com/sysupdater/sysupdater/internal/orchestrator"
	"github.com/sysupdater/sysupdater/internal/privilege"
	"github.com/sysupdater/sysupdater/internal/reboot"
	"github.com/sysupdater/sysupdater/internal/runner"
	"github.com/sysupdater/sysupdater/internal/shutdown"
	"github.com/sysupdater/sysupdater/internal/ui"
)

// selection is what the action flags ask for.
type selection struct {
	refresh         bool
	all             bool
	system          bool
	flatpak         bool
	firmware        bool
	includeFirmware bool
}

func (s selection) any() bool {
	return s.refresh || s.all || s.system || s.flatpak || s.firmware
}

// operations resolves the selection against the config. --update-all honors
// the per category enabled flags, explicit --update-* flags do not.
func (s selection) operations(cfg model.Config) []catalog.OperationID {
	var ids []catalog.OperationID
	if s.system || (s.all && cfg.System.Enabled) {
		ids = append(ids, catalog.System)
	}
	if s.flatpak || (s.all && cfg.Flatpak.Enabled) {
		ids = append(ids, catalog.Flatpak)
	}
	if s.firmware || (s.all && (s.includeFirmware || cfg.Firmware.Enabled)) {
		ids = append(ids, catalog.Firmware)
	}
	return ids
}

func doRun(cmd *cobra.Command, _ []string) error {
	sel := selection{
		refresh:         flagRefresh,
		all:             flagUpdateAll,
		system:          flagUpdateSystem,
		flatpak:         flagUpdateFlatpak,
		firmware:        flagUpdateFirmware,
		includeFirmware: flagFirmware,
	}
	if !sel.any() {
		ui.Usage(os.Stdout, version(), configSearchPaths())
		return nil
	}

	format, err := ui.ParseFormat(flagOutput)
	if err != nil {
		return model.ConfigError(err)
	}

	if err := privilege.Require(); err != nil {
		return err
	}
	attachLogFile()

	ctx := log.ContextAttrs(cmd.Context(), slog.Group("sysupdater",
		slog.String("run_id", uuid.NewString()),
		slog.Int("pid", os.Getpid()),
	))
	sig := shutdown.Global()

	if flagNoNetworkCheck {
		slog.DebugContext(ctx, "network check skipped")
	} else {
		slog.InfoContext(ctx, "checking network connectivity", "url", config.Network.CheckURL)
		if err := netcheck.Check(ctx, config.Network.CheckURL, config.Network.Timeout()); err != nil {
			return err
		}
	}

	text := format == ui.FormatText
	if !text {
		ui.DisableColor()
	}
	// structured output owns stdout, command output is not forwarded
	quiet := config.Quiet || !text
	console := ui.NewConsole(os.Stdout, os.Stderr, ui.ConsoleOptions{
		Spinners: !config.Parallel && ui.IsTerminal(os.Stdout),
		Quiet:    quiet,
	})
	r := runner.New(runner.Options{
		Stdout: console.Stdout(),
		Stderr: console.Stderr(),
		Quiet:  quiet,
		DryRun: config.DryRun,
		Color:  !color.NoColor,
	})
	orch := orchestrator.New(
		catalog.New(catalog.OptionsFromConfig(config)),
		r,
		orchestrator.WithSignal(sig),
		orchestrator.WithProgress(console),
	)

	if sel.refresh {
		return refresh(ctx, orch, format)
	}

	ids := sel.operations(config)
	if len(ids) == 0 {
		slog.WarnContext(ctx, "nothing to update, every selected category is disabled in the configuration")
		return nil
	}

	if text && !config.Quiet {
		ui.Banner(os.Stdout, version())
	}

	mode := orchestrator.Sequential
	if config.Parallel {
		mode = orchestrator.Concurrent
	}
	summary, runErr := orch.Run(ctx, orchestrator.Request{Operations: ids, Mode: mode})

	// a cancelled run still reports what it did
	if text {
		ui.Summary(os.Stdout, summary)
	} else if err := ui.Encode(os.Stdout, format, summary.Report()); err != nil {
		return model.IOError(err)
	}
	if runErr != nil {
		return runErr
	}

	if flagNoRebootPrompt || config.DryRun {
		return nil
	}
	return adviseReboot(ctx, r, text)
}

func refresh(ctx context.Context, orch *orchestrator.Orchestrator, format ui.Format) error {
	updates, err := orch.CheckAvailable(ctx)
	if errors.Is(err, model.ErrCancelled) {
		return err
	}
	if err != nil {
		slog.WarnContext(ctx, "some update checks failed", "error", err)
	}

	if format == ui.FormatText {
		ui.AvailableUpdates(os.Stdout, updates)
		return nil
	}
	if err := ui.Encode(os.Stdout, format, updates); err != nil {
		return model.IOError(err)
	}
	return nil
}

func adviseReboot(ctx context.Context, r *runner.Runner, interactive bool) error {
	advisor := reboot.New(r)
	st, err := advisor.Check(ctx)
	if err != nil {
		slog.WarnContext(ctx, "reboot check failed", "error", err)
		return nil
	}
	slog.DebugContext(ctx, "host", "kernel", st.Kernel, "platform", st.Platform, "uptime", st.Uptime)

	if !st.Required {
		if interactive {
			ui.Reboot(os.Stdout, false, "")
		}
		return nil
	}
	if !interactive {
		slog.InfoContext(ctx, "reboot recommended", "reason", st.Reason)
		return nil
	}

	ui.Reboot(os.Stdout, true, st.Reason)
	rebooted, err := advisor.PromptAndReboot(ctx)
	if err != nil {
		return err
	}
	if rebooted {
		slog.InfoContext(ctx, "reboot issued")
	}
	return nil
}
