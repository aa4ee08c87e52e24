package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFileDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
	require.Equal(t, 10*time.Second, cfg.Render.Timeout())
	require.Equal(t, 10*time.Minute, cfg.Stats.Window())
}

func TestLoadFileOverrides(t *testing.T) {
	path := writeConfig(t, `
database_url: postgres://herald@localhost/herald
log_level: debug
render:
  timeout_seconds: 3
  allow_mentions: false
  member_page_size: 5000
stats:
  interval_seconds: 5
embed_colors:
  action: 255
`)
	t.Setenv("EMBED_COLOR_ERROR", "0xff0000")
	t.Setenv("STATS_RENAMES_PER_WINDOW", "4")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, "postgres://herald@localhost/herald", cfg.DatabaseURL)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, 3*time.Second, cfg.Render.Timeout())
	require.False(t, cfg.Render.AllowMentions)
	require.Equal(t, 1000, cfg.Render.MemberPageSize)
	require.Equal(t, time.Minute, cfg.Stats.Interval())
	require.Equal(t, 4, cfg.Stats.RenamesPerWindow)
	require.Equal(t, 255, cfg.EmbedColors.Action)
	require.Equal(t, 0xff0000, cfg.EmbedColors.Error)
}

func TestLoadFileTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level = "warn"
retention_days = 30

[render]
timeout_seconds = 4

[stats]
renames_per_window = 1
`), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, "warn", cfg.LogLevel)
	require.Equal(t, 30, cfg.RetentionDays)
	require.Equal(t, 4*time.Second, cfg.Render.Timeout())
	require.True(t, cfg.Render.AllowMentions)
	require.Equal(t, 1, cfg.Stats.RenamesPerWindow)
}

func TestLoadFileRejectsBadYAML(t *testing.T) {
	_, err := LoadFile(writeConfig(t, "render: [not, a, map"))
	require.Error(t, err)
}

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("DISCORD_TOKEN", "")

	_, err := Load()
	require.EqualError(t, err, "DISCORD_TOKEN is required")

	t.Setenv("DISCORD_TOKEN", "secret")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "secret", cfg.DiscordToken)
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	require.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	require.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))

	logger, err := BuildLogger("ERROR")
	require.NoError(t, err)
	require.False(t, logger.Core().Enabled(zapcore.WarnLevel))
	require.True(t, logger.Core().Enabled(zapcore.ErrorLevel))
}
