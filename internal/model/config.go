package model

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"

	EnvPrefix = "SYSUPDATER"

	// FirmwareNoUpdatesCode is what fwupdmgr returns when there is nothing to apply.
	FirmwareNoUpdatesCode = 2
)

type Config struct {
	DryRun   bool     `mapstructure:"dry_run" toml:"dry_run"`
	Quiet    bool     `mapstructure:"quiet" toml:"quiet"`
	Parallel bool     `mapstructure:"parallel" toml:"parallel"`
	System   System   `mapstructure:"system" toml:"system"`
	Flatpak  Flatpak  `mapstructure:"flatpak" toml:"flatpak"`
	Firmware Firmware `mapstructure:"firmware" toml:"firmware"`
	Logging  Logging  `mapstructure:"logging" toml:"logging"`
	Network  Network  `mapstructure:"network" toml:"network"`
}

// System configures the dnf5 operation.
type System struct {
	Enabled    bool `mapstructure:"enabled" toml:"enabled"`
	AutoRemove bool `mapstructure:"auto_remove" toml:"auto_remove"`
	Refresh    bool `mapstructure:"refresh" toml:"refresh"`
}

// Flatpak configures the flatpak operation.
type Flatpak struct {
	Enabled      bool `mapstructure:"enabled" toml:"enabled"`
	RemoveUnused bool `mapstructure:"remove_unused" toml:"remove_unused"`
}

// Firmware configures the fwupdmgr operation. NoUpdateExitCodes lists exit
// codes of "fwupdmgr update" which mean there was nothing to apply.
type Firmware struct {
	Enabled           bool  `mapstructure:"enabled" toml:"enabled"`
	NoUpdateExitCodes []int `mapstructure:"no_update_exit_codes" toml:"no_update_exit_codes"`
}

type Logging struct {
	File  string `mapstructure:"file" toml:"file"`
	Level string `mapstructure:"level" toml:"level"`
}

type Network struct {
	CheckURL    string `mapstructure:"check_url" toml:"check_url"`
	TimeoutSecs int    `mapstructure:"timeout_secs" toml:"timeout_secs"`
}

func (n Network) Timeout() time.Duration {
	return time.Duration(n.TimeoutSecs) * time.Second
}

func DefaultConfig() Config {
	return Config{
		System: System{
			Enabled:    true,
			AutoRemove: true,
			Refresh:    true,
		},
		Flatpak: Flatpak{
			Enabled:      true,
			RemoveUnused: true,
		},
		Firmware: Firmware{
			Enabled:           false,
			NoUpdateExitCodes: []int{FirmwareNoUpdatesCode},
		},
		Logging: Logging{
			File:  "/var/log/sysupdater.log",
			Level: LevelInfo,
		},
		Network: Network{
			CheckURL:    "https://fedoraproject.org",
			TimeoutSecs: 10,
		},
	}
}

// LoadConfig reads TOML from r on top of the defaults and SYSUPDATER_*
// environment overrides. A nil reader yields defaults plus environment.
func LoadConfig(r io.Reader) (Config, error) {
	v := newViper()
	if r != nil {
		if err := v.ReadConfig(r); err != nil {
			return Config{}, ConfigError(fmt.Errorf("parsing toml: %w", err))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, ConfigError(fmt.Errorf("decoding config: %w", err))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, ConfigError(err)
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("toml")

	d := DefaultConfig()
	v.SetDefault("dry_run", d.DryRun)
	v.SetDefault("quiet", d.Quiet)
	v.SetDefault("parallel", d.Parallel)
	v.SetDefault("system.enabled", d.System.Enabled)
	v.SetDefault("system.auto_remove", d.System.AutoRemove)
	v.SetDefault("system.refresh", d.System.Refresh)
	v.SetDefault("flatpak.enabled", d.Flatpak.Enabled)
	v.SetDefault("flatpak.remove_unused", d.Flatpak.RemoveUnused)
	v.SetDefault("firmware.enabled", d.Firmware.Enabled)
	v.SetDefault("firmware.no_update_exit_codes", d.Firmware.NoUpdateExitCodes)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("network.check_url", d.Network.CheckURL)
	v.SetDefault("network.timeout_secs", d.Network.TimeoutSecs)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

var validLogLevels = map[string]bool{
	LevelDebug: true,
	LevelInfo:  true,
	LevelWarn:  true,
	"warning":  true,
	LevelError: true,
}

// Validate returns the first invalid setting found.
func (c Config) Validate() error {
	if c.Logging.Level != "" && !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level %q is not valid (use debug, info, warn, error)", c.Logging.Level)
	}

	u, err := url.Parse(c.Network.CheckURL)
	if err != nil {
		return fmt.Errorf("network.check_url %q is not a valid URL: %w", c.Network.CheckURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("network.check_url scheme must be http or https, got %q", u.Scheme)
	}

	if c.Network.TimeoutSecs <= 0 {
		return fmt.Errorf("network.timeout_secs must be positive, got %d", c.Network.TimeoutSecs)
	}

	for _, code := range c.Firmware.NoUpdateExitCodes {
		if code <= 0 || code > 255 {
			return fmt.Errorf("firmware.no_update_exit_codes: %d is not a valid exit code", code)
		}
	}
	return nil
}

// TOML renders the configuration in the on-disk format.
func (c Config) TOML() ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("dry_run", c.DryRun),
		slog.Bool("quiet", c.Quiet),
		slog.Bool("parallel", c.Parallel),
		slog.Bool("system", c.System.Enabled),
		slog.Bool("flatpak", c.Flatpak.Enabled),
		slog.Bool("firmware", c.Firmware.Enabled),
		slog.String("log_file", c.Logging.File),
		slog.String("check_url", c.Network.CheckURL),
	)
}
