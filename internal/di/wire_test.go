package di

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/config"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/domain"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/queue"
)

func loadTestConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("NTC_DATA_DIR", t.TempDir())
	t.Setenv("FINNHUB_API_KEY", "")
	t.Setenv("MARKET_STATUS_WS_URL", "")
	t.Setenv("ARCHIVE_BUCKET", "")
	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func TestWire(t *testing.T) {
	cfg := loadTestConfig(t)

	container, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(container.Close)

	assert.Nil(t, container.StatusStream)
	assert.Equal(t, 2, container.Analyzer.Len())
	assert.Equal(t, []queue.Kind{queue.KindAddInstrument, queue.KindBackfillHistory, queue.KindSyncSnapshot}, container.QueueRegistry.Kinds())

	names := make([]string, 0)
	for _, j := range container.Scheduler.Jobs() {
		names = append(names, j.Name)
	}
	assert.Equal(t, []string{
		config.TaskDrain, config.TaskReap, config.TaskFullSync, config.TaskSnapshotSync,
		config.TaskRiskScan, config.TaskArchive, config.TaskWALCheckpoint,
	}, names)
}

func TestWire_JobsRunAgainstEmptyState(t *testing.T) {
	cfg := loadTestConfig(t)
	container, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(container.Close)
	ctx := context.Background()

	result, err := container.Scheduler.Trigger(ctx, config.TaskDrain)
	require.NoError(t, err)
	assert.Equal(t, queue.DrainResult{}, result)

	result, err = container.Scheduler.Trigger(ctx, config.TaskReap)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"reaped": 0}, result)

	_, err = container.Scheduler.Trigger(ctx, config.TaskRiskScan)
	require.NoError(t, err, "no tracked instruments, nothing to scan")

	_, err = container.Scheduler.Trigger(ctx, config.TaskArchive)
	require.NoError(t, err, "archive without a bucket is a no-op")

	_, err = container.Scheduler.Trigger(ctx, config.TaskWALCheckpoint)
	require.NoError(t, err)

	require.NoError(t, container.CatalogRepo.Upsert(ctx, domain.SyncTarget{Symbol: "AAPL", Exchange: "NASDAQ"}))
	targets, err := container.CatalogRepo.ListTracked(ctx)
	require.NoError(t, err)
	assert.Len(t, targets, 1)
}
