package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "token")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "token", cfg.DiscordToken)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
	assert.Equal(t, 24*time.Hour, cfg.ConversationTTL)
	assert.Equal(t, "0 * * * *", cfg.SweepCron)
	assert.Equal(t, "file", cfg.StoreBackend)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.Equal(t, 2*time.Second, cfg.RetryDelay)
	assert.Equal(t, "gemini-2.0-flash-lite", cfg.GeminiFallbackModel)
	assert.Equal(t, "최신기사", cfg.NewsCategory)
	assert.Empty(t, cfg.NewsEditCron)
	assert.Empty(t, cfg.NoLimitUsers)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("STORE_BACKEND", "Redis")
	t.Setenv("HOTDEAL_EDIT_CRON", "")
	t.Setenv("NO_LIMIT_USERS", `123, "456" ,,`)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, "redis", cfg.StoreBackend)
	assert.Empty(t, cfg.HotdealEditCron, "an empty variable disables the task")
	assert.Equal(t, map[string]struct{}{"123": {}, "456": {}}, cfg.NoLimitUsers)
}

func TestLoadRejectsBadTTL(t *testing.T) {
	t.Setenv("CONVERSATION_TTL", "soon")

	_, err := Load()
	assert.Error(t, err)
}

func TestLocation(t *testing.T) {
	t.Parallel()

	cfg := &Config{Timezone: "Not/AZone"}
	loc := cfg.Location()
	_, offset := time.Date(2024, 1, 1, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, 9*60*60, offset)
}

func TestRequireSecret(t *testing.T) {
	t.Setenv("NIRA_TEST_SECRET", "s3cret")

	v, err := RequireSecret("NIRA_TEST_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", v)

	_, err = RequireSecret("NIRA_TEST_MISSING")
	assert.Error(t, err)
}

func TestSetupLoggingFile(t *testing.T) {
	cfg := &Config{LogLevel: "debug", LogFile: filepath.Join(t.TempDir(), "logs", "combined.log")}

	cleanup, err := cfg.SetupLogging()
	require.NoError(t, err)
	cleanup()
	assert.FileExists(t, cfg.LogFile)
}
