package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "file://migrations", cfg.MigrationsPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.False(t, cfg.EarlyDiagnosis)
	assert.Equal(t, 5*time.Second, cfg.LockTimeout)
	assert.False(t, cfg.ReportsEnabled())
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("COACH_CHAT_ID", "-1001234")
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("REPORT_FONT_PATHS", "/a.ttf:/b.ttf")
	t.Setenv("EARLY_DIAGNOSIS", "true")
	t.Setenv("LOCK_TIMEOUT", "250ms")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, int64(-1001234), cfg.CoachChatID)
	assert.Equal(t, []string{"/a.ttf", "/b.ttf"}, cfg.ReportFontPaths)
	assert.True(t, cfg.EarlyDiagnosis)
	assert.Equal(t, 250*time.Millisecond, cfg.LockTimeout)
	assert.True(t, cfg.ReportsEnabled())
}

func TestLoad_DotEnvDoesNotOverrideEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PORT=7070\nLOG_LEVEL=debug\n"), 0o600))
	t.Setenv("PORT", "9090")
	// Registered so t.Setenv restores it after the file sets it.
	t.Setenv("LOG_LEVEL", "")
	os.Unsetenv("LOG_LEVEL")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string][2]string{
		"bad chat id":    {"COACH_CHAT_ID", "not-a-number"},
		"bad duration":   {"LOCK_TIMEOUT", "soon"},
		"bad log format": {"LOG_FORMAT", "xml"},
	}
	for name, kv := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			assert.Error(t, err)
		})
	}
}
