package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("NTC_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8001, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.TriggerToken)
	assert.Equal(t, QueueConfig{MaxAttempts: 10, BaseBackoffSeconds: 30, BatchSize: 10}, cfg.Queue)
	assert.Equal(t, 20*time.Minute, cfg.Reaper.Timeout)
	assert.Equal(t, SyncConfig{
		FullDelay:       1500 * time.Millisecond,
		SnapshotDelay:   500 * time.Millisecond,
		RiskScanDelay:   2 * time.Second,
		HistoryDays:     365,
		StalenessWindow: 14 * 24 * time.Hour,
	}, cfg.Sync)
	assert.Equal(t, time.Minute, cfg.Market.CacheTTL)
	assert.Equal(t, 5*time.Second, cfg.Market.LiveTimeout)
	assert.Equal(t, []string{"gemini", "openai"}, cfg.LLM.Providers)

	require.Len(t, cfg.Tasks, 7)
	drain, ok := cfg.Task(TaskDrain)
	require.True(t, ok)
	assert.True(t, drain.Enabled)
	archive, _ := cfg.Task(TaskArchive)
	assert.False(t, archive.Enabled)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("NTC_DATA_DIR", t.TempDir())
	t.Setenv("NTC_PORT", "9100")
	t.Setenv("TRIGGER_TOKEN", "s3cret")
	t.Setenv("QUEUE_MAX_ATTEMPTS", "3")
	t.Setenv("REAPER_TIMEOUT_MINUTES", "45")
	t.Setenv("SYNC_SNAPSHOT_DELAY", "0s")
	t.Setenv("ANALYSIS_PROVIDERS", " OpenAI , ,gemini")
	t.Setenv("TASK_RISK_SCAN_ENABLED", "false")
	t.Setenv("TASK_RISK_SCAN_SCHEDULE", "@every 6h")
	t.Setenv("SYNC_HISTORY_DAYS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "s3cret", cfg.TriggerToken)
	assert.Equal(t, 3, cfg.Queue.MaxAttempts)
	assert.Equal(t, 45*time.Minute, cfg.Reaper.Timeout)
	assert.Zero(t, cfg.Sync.SnapshotDelay)
	assert.Equal(t, 365, cfg.Sync.HistoryDays, "unparsable values fall back to the default")
	assert.Equal(t, []string{"openai", "gemini"}, cfg.LLM.Providers)

	scan, ok := cfg.Task(TaskRiskScan)
	require.True(t, ok)
	assert.Equal(t, TaskConfig{Name: TaskRiskScan, Schedule: "@every 6h", Enabled: false}, scan)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"port", map[string]string{"NTC_PORT": "70000"}, "NTC_PORT"},
		{"attempts", map[string]string{"QUEUE_MAX_ATTEMPTS": "0"}, "QUEUE_MAX_ATTEMPTS"},
		{"provider", map[string]string{"ANALYSIS_PROVIDERS": "claude"}, "unknown provider"},
		{"schedule", map[string]string{"TASK_DRAIN_SCHEDULE": "*/5 * * * *"}, "TASK_DRAIN_SCHEDULE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("NTC_DATA_DIR", t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
