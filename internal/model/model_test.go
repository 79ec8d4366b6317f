package model

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeetingOverlapsIsHalfOpen(t *testing.T) {
	start := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	m := Meeting{Start: start, DurationMinutes: 60}

	assert.True(t, m.Overlaps(start.Add(30*time.Minute), 30))
	assert.True(t, m.Overlaps(start.Add(-30*time.Minute), 31))
	assert.True(t, m.Overlaps(start.Add(-time.Hour), 180))
	assert.False(t, m.Overlaps(start.Add(time.Hour), 30), "touching the end is not a conflict")
	assert.False(t, m.Overlaps(start.Add(-30*time.Minute), 30), "touching the start is not a conflict")
	assert.Equal(t, start.Add(time.Hour), m.End())
}

func TestUserDisplayName(t *testing.T) {
	assert.Equal(t, "@alex", User{FirstName: "Alex", Username: "alex"}.DisplayName())
	assert.Equal(t, "Alex", User{FirstName: "Alex"}.DisplayName())
}

func TestValidateTask(t *testing.T) {
	draft := NewDraftTask(-100)
	err := ValidateStruct(draft)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")
	assert.Equal(t, "name", FirstInvalidField(draft))

	draft.Name = "Write report"
	assert.NoError(t, ValidateStruct(draft))

	draft.Status = "Blocked"
	assert.Error(t, ValidateStruct(draft))
}

func TestParseTaskStatus(t *testing.T) {
	st, err := ParseTaskStatus("Doing")
	require.NoError(t, err)
	assert.Equal(t, TaskStatusDoing, st)

	_, err = ParseTaskStatus("doing")
	assert.Error(t, err)
}

func TestLoadConfigDefaultsWhenMissing(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "Dojo Bot", cfg.BotName)
	assert.Equal(t, "Australia/Sydney", cfg.Timezone)
	assert.Equal(t, TelegramModePolling, cfg.Telegram.Mode)
	assert.Equal(t, StoreDriverSQLite, cfg.Store.Driver)
	assert.Equal(t, 10*time.Second, cfg.SweepInterval())
	assert.Equal(t, 12*time.Hour, cfg.SessionTTL())
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte("bot_name: Sensei\nstore:\n  driver: postgres\n  dsn: postgres://localhost/dojo\nsweep:\n  interval_sec: 5\n")
	require.NoError(t, os.WriteFile(path, body, 0o600))
	t.Setenv("DOJOBOT_TIMEZONE", "UTC")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "Sensei", cfg.BotName)
	assert.Equal(t, "UTC", cfg.Timezone)
	assert.Equal(t, StoreDriverPostgres, cfg.Store.Driver)
	assert.Equal(t, 5*time.Second, cfg.SweepInterval())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC.String(), loc.String())
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session:\n  backend: redis\n"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}
