package di

import (
	"context"
	"fmt"

	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/config"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/database"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/scheduler"
)

// RegisterJobs creates the scheduler and registers every task. Disabled tasks
// get no timer but can still be triggered over HTTP.
func RegisterJobs(container *Container, cfg *config.Config) error {
	sched := scheduler.New(container.Clock, container.log)

	queueMgr := container.QueueManager
	tickets := container.TicketManager
	syncSvc := container.SyncService
	archive := container.ArchiveService
	batchSize := cfg.Queue.BatchSize
	reapTimeout := cfg.Reaper.Timeout

	jobs := map[string]scheduler.Job{
		config.TaskDrain: scheduler.NewJob(config.TaskDrain, func(ctx context.Context) (any, error) {
			return queueMgr.Drain(ctx, batchSize), nil
		}),
		config.TaskReap: scheduler.NewJob(config.TaskReap, func(ctx context.Context) (any, error) {
			return map[string]int{"reaped": tickets.ReapStuck(ctx, reapTimeout)}, nil
		}),
		config.TaskFullSync: scheduler.NewJob(config.TaskFullSync, func(ctx context.Context) (any, error) {
			return syncSvc.RunFullSync(ctx)
		}),
		config.TaskSnapshotSync: scheduler.NewJob(config.TaskSnapshotSync, func(ctx context.Context) (any, error) {
			return syncSvc.RunSnapshotSync(ctx, scheduler.Force(ctx))
		}),
		config.TaskRiskScan: scheduler.NewJob(config.TaskRiskScan, func(ctx context.Context) (any, error) {
			return syncSvc.RunRiskScan(ctx)
		}),
		config.TaskArchive: scheduler.NewJob(config.TaskArchive, func(ctx context.Context) (any, error) {
			return archive.Export(ctx)
		}),
		config.TaskWALCheckpoint: scheduler.NewWALCheckpointJob(
			[]*database.DB{container.CoreDB, container.HistoryDB},
			container.log,
		),
	}

	for _, task := range cfg.Tasks {
		job, ok := jobs[task.Name]
		if !ok {
			return fmt.Errorf("no job for task %s", task.Name)
		}
		if err := sched.Register(job, task.Schedule, task.Enabled); err != nil {
			return err
		}
	}

	container.Scheduler = sched
	return nil
}
