package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/sysupdater/sysupdater/internal/log"
	"github.com/sysupdater/sysupdater/internal/model"
	"github.com/sysupdater/sysupdater/internal/ui"
)

const (
	envConfig        = "SYSUPDATERCONFIG"
	systemConfigPath = "/etc/sysupdater.toml"
)

var (
	configPath string // actual config file used (if loaded)
	config     model.Config
	logFile    io.Closer

	flagConfigFilePath string
	flagVerbose        int
	flagQuiet          bool
	flagOutput         string

	flagRefresh        bool
	flagUpdateAll      bool
	flagUpdateSystem   bool
	flagUpdateFlatpak  bool
	flagUpdateFirmware bool
	flagFirmware       bool
	flagDryRun         bool
	flagNoRebootPrompt bool
	flagNoNetworkCheck bool
	flagParallel       bool

	flagDefaults bool // config --defaults
)

func main() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagConfigFilePath, "config", "c", "", "Config file to load, default is "+systemConfigPath+" or "+userConfigPath())
	pf.CountVarP(&flagVerbose, "verbose", "v", "Increase verbosity (-v, -vv)")
	pf.BoolVarP(&flagQuiet, "quiet", "q", false, "Minimal output")

	f := rootCmd.Flags()
	f.BoolVarP(&flagRefresh, "refresh", "r", false, "Check and display available updates")
	f.BoolVarP(&flagUpdateAll, "update-all", "u", false, "Update everything (system + flatpak)")
	f.BoolVar(&flagUpdateSystem, "update-system", false, "Update only system packages (dnf5)")
	f.BoolVar(&flagUpdateFlatpak, "update-flatpak", false, "Update only Flatpak applications")
	f.BoolVar(&flagUpdateFirmware, "update-firmware", false, "Update only firmware")
	f.BoolVarP(&flagFirmware, "firmware", "f", false, "Include firmware in --update-all")
	f.BoolVarP(&flagDryRun, "dry-run", "n", false, "Preview actions without executing")
	f.BoolVar(&flagNoRebootPrompt, "no-reboot-prompt", false, "Skip reboot prompt after updates")
	f.BoolVar(&flagNoNetworkCheck, "no-network-check", false, "Skip connectivity verification")
	f.BoolVar(&flagParallel, "parallel", false, "Run updates concurrently")
	f.StringVarP(&flagOutput, "output", "o", "text", "Output format: text, json, yaml")

	configCmd.Flags().BoolVar(&flagDefaults, "defaults", false, "print the built-in defaults instead of the effective configuration")

	// errors are printed by main
	rootCmd.SilenceErrors = true

	// parse config, setup logging
	rootCmd.PersistentPreRunE = initSysupdater

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)

	err := rootCmd.Execute()
	os.Exit(exit(err, os.Stderr, logFile))
}

// exit reports err on stderr and in the log, then closes the log file. It
// returns the process exit code.
func exit(err error, stderr io.Writer, logs io.Closer) int {
	if err != nil {
		if errors.Is(err, model.ErrCancelled) {
			slog.Warn("sysupdater cancelled")
			ui.Cancelled(stderr)
		} else {
			slog.Error("sysupdater failed", "error", err)
			ui.Fatal(stderr, err)
		}
	}
	if logs != nil {
		_ = logs.Close()
	}
	return model.ExitCode(err)
}

var rootCmd = &cobra.Command{
	Use:          "sysupdater",
	Short:        "Fedora system update automation (dnf5, flatpak, fwupd)",
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE:         doRun,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "version provide version of a sysupdater",
	Run: func(cmd *cobra.Command, args []string) {
		printVersion(os.Stdout, buildInfo(), configPath)
	},
}

func printVersion(w io.Writer, info *debug.BuildInfo, config string) {
	if config != "" {
		fmt.Fprintf(w, "config:     %s\n", config)
	}
	fmt.Fprintf(w, "sysupdater: %s\n", versionOf(info))
	if info != nil {
		fmt.Fprintf(w, "go:         %s\n", info.GoVersion)
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				fmt.Fprintf(w, "commit:     %s\n", s.Value)
			case "vcs.time":
				fmt.Fprintf(w, "date:       %s\n", s.Value)
			case "vcs.modified":
				fmt.Fprintf(w, "dirty:      %s\n", s.Value)
			}
		}
	}
	fmt.Fprintln(w)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "print the effective configuration as TOML",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config
		if flagDefaults {
			cfg = model.DefaultConfig()
		} else if configPath != "" {
			fmt.Printf("# %s\n", configPath)
		}
		raw, err := cfg.TOML()
		if err != nil {
			return model.ConfigError(fmt.Errorf("encoding config: %w", err))
		}
		_, err = os.Stdout.Write(raw)
		return err
	},
}

func initSysupdater(cmd *cobra.Command, _ []string) error {
	path, explicit := findConfig(flagConfigFilePath, os.Getenv(envConfig), configSearchPaths())
	var err error
	config, err = loadConfig(path, explicit)
	if err != nil {
		return err
	}
	configPath = path

	// flags have a precedence over config file
	if flagDryRun {
		config.DryRun = true
	}
	if flagQuiet {
		config.Quiet = true
	}
	if flagParallel {
		config.Parallel = true
	}

	slog.SetDefault(log.New(log.Options{
		Verbose: flagVerbose,
		Quiet:   config.Quiet,
	}))

	slog.Debug("sysupdater init", "configPath", configPath)
	slog.Debug("sysupdater init", "config", config)
	return nil
}

// attachLogFile adds the JSON log file to the default logger. A file which
// cannot be opened leaves console logging only.
func attachLogFile() {
	if config.Logging.File == "" {
		return
	}
	w, err := log.NewRotatingWriter(config.Logging.File, log.DefaultMaxSize, log.DefaultMaxBackups)
	if err != nil {
		slog.Warn("file logging disabled", "file", config.Logging.File, "error", err)
		return
	}
	logFile = w
	slog.SetDefault(log.New(log.Options{
		Verbose:   flagVerbose,
		Quiet:     config.Quiet,
		File:      w,
		FileLevel: config.Logging.Level,
	}))
}

func userConfigPath() string {
	d, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(d, "sysupdater", "config.toml")
}

func configSearchPaths() []string {
	paths := []string{systemConfigPath}
	if p := userConfigPath(); p != "" {
		paths = append(paths, p)
	}
	return paths
}

// findConfig returns the config file to load. A path given by flag or
// environment is explicit: it must exist. Otherwise the first existing file
// of the search paths is used, if any.
func findConfig(flagPath, envPath string, search []string) (string, bool) {
	switch {
	case flagPath != "":
		return flagPath, true
	case envPath != "":
		return envPath, true
	}
	for _, p := range search {
		if exists(p) {
			return p, false
		}
	}
	return "", false
}

func loadConfig(path string, explicit bool) (model.Config, error) {
	if path == "" {
		return model.LoadConfig(nil)
	}
	f, err := os.Open(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return model.LoadConfig(nil)
		}
		return model.Config{}, model.ConfigError(fmt.Errorf("opening config file: %w", err))
	}
	defer func() {
		_ = f.Close()
	}()
	cfg, err := model.LoadConfig(f)
	if err != nil {
		return model.Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func buildInfo() *debug.BuildInfo {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}
	return info
}

// versionOf is the release version of the binary, dev for local builds.
func versionOf(info *debug.BuildInfo) string {
	if info == nil || info.Main.Version == "" || info.Main.Version == "(devel)" {
		return "dev"
	}
	return info.Main.Version
}

func version() string {
	return versionOf(buildInfo())
}
