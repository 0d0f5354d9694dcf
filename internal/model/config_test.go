package model_test

import (
	"strings"
	"testing"

	"github.com/sysupdater/sysupdater/internal/model"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tml := `
parallel = true

[system]
auto_remove = false

[flatpak]
enabled = false

[firmware]
enabled = true
no_update_exit_codes = [2, 3]

[logging]
file = "/tmp/sysupdater.log"
level = "debug"

[network]
check_url = "https://example.com"
timeout_secs = 3
`
	cfg, err := model.LoadConfig(strings.NewReader(tml))
	require.NoError(t, err)
	require.True(t, cfg.Parallel)
	require.False(t, cfg.DryRun)
	require.True(t, cfg.System.Enabled)
	require.False(t, cfg.System.AutoRemove)
	require.True(t, cfg.System.Refresh)
	require.False(t, cfg.Flatpak.Enabled)
	require.True(t, cfg.Flatpak.RemoveUnused)
	require.True(t, cfg.Firmware.Enabled)
	require.Equal(t, []int{2, 3}, cfg.Firmware.NoUpdateExitCodes)
	require.Equal(t, "/tmp/sysupdater.log", cfg.Logging.File)
	require.Equal(t, model.LevelDebug, cfg.Logging.Level)
	require.Equal(t, "https://example.com", cfg.Network.CheckURL)
	require.Equal(t, "3s", cfg.Network.Timeout().String())
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := model.LoadConfig(nil)
	require.NoError(t, err)
	require.Equal(t, model.DefaultConfig(), cfg)
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("SYSUPDATER_FIRMWARE_ENABLED", "true")
	t.Setenv("SYSUPDATER_NETWORK_TIMEOUT_SECS", "42")

	cfg, err := model.LoadConfig(strings.NewReader("[firmware]\nenabled = false\n"))
	require.NoError(t, err)
	require.True(t, cfg.Firmware.Enabled)
	require.Equal(t, 42, cfg.Network.TimeoutSecs)
}

func TestLoadConfig_Fail(t *testing.T) {
	var testCases = []struct {
		scenario string
		given    string
		then     string
	}{
		{"not toml", "[system\nenabled = ", "parsing toml"},
		{"bad level", "[logging]\nlevel = \"loud\"\n", `logging.level "loud" is not valid`},
		{"bad scheme", "[network]\ncheck_url = \"ftp://example.com\"\n", "scheme must be http or https"},
		{"zero timeout", "[network]\ntimeout_secs = 0\n", "network.timeout_secs must be positive"},
		{"bad exit code", "[firmware]\nno_update_exit_codes = [0]\n", "0 is not a valid exit code"},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			_, err := model.LoadConfig(strings.NewReader(tt.given))
			require.Error(t, err)
			require.ErrorIs(t, err, model.ErrConfig)
			require.Contains(t, err.Error(), tt.then)
		})
	}
}

func TestConfigTOML(t *testing.T) {
	raw, err := model.DefaultConfig().TOML()
	require.NoError(t, err)

	cfg, err := model.LoadConfig(strings.NewReader(string(raw)))
	require.NoError(t, err)
	require.Equal(t, model.DefaultConfig(), cfg)
	require.Contains(t, string(raw), "[firmware]")
	require.Contains(t, string(raw), "https://fedoraproject.org")
}
