// Package scheduler drives named jobs from cron timers and on-demand triggers.
// Both paths go through Trigger, so a job never overlaps with itself.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/clock"
)

var (
	// ErrUnknownJob is returned when triggering a name that was never registered
	ErrUnknownJob = errors.New("unknown job")
	// ErrJobRunning is returned when the job is already running
	ErrJobRunning = errors.New("job already running")
)

// cronParser matches cron.WithSeconds()
var cronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// JobInfo describes a registered job and its last run
type JobInfo struct {
	Name         string     `json:"name"`
	Schedule     string     `json:"schedule"`
	Enabled      bool       `json:"enabled"`
	Running      bool       `json:"running"`
	LastRunAt    *time.Time `json:"last_run_at,omitempty"`
	LastDuration string     `json:"last_duration,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
	NextRunAt    *time.Time `json:"next_run_at,omitempty"`
}

type entry struct {
	job      Job
	schedule string
	enabled  bool
	cronID   cron.EntryID

	running   bool
	lastRunAt time.Time
	lastDur   time.Duration
	lastErr   error
}

// Scheduler manages background jobs
type Scheduler struct {
	cron  *cron.Cron
	clock clock.Clock
	log   zerolog.Logger

	mu    sync.Mutex
	jobs  map[string]*entry
	order []string

	wg     sync.WaitGroup // background triggers
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new scheduler
func New(clk clock.Clock, log zerolog.Logger) *Scheduler {
	if clk == nil {
		clk = clock.System{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		clock:  clk,
		log:    log.With().Str("component", "scheduler").Logger(),
		jobs:   make(map[string]*entry),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Register adds a job under its name. The schedule is validated even when the
// job is disabled; a disabled job gets no timer but stays triggerable.
// Schedule examples:
//   - "0 */5 * * * *"      - Every 5 minutes
//   - "@hourly"            - Every hour
//   - "0 0 9 * * MON-FRI"  - 9 AM weekdays
//   - "@every 30s"         - Every 30 seconds
func (s *Scheduler) Register(job Job, schedule string, enabled bool) error {
	name := job.Name()
	if _, err := cronParser.Parse(schedule); err != nil {
		return fmt.Errorf("job %s: invalid schedule %q: %w", name, schedule, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}

	e := &entry{job: job, schedule: schedule, enabled: enabled}
	if enabled {
		id, err := s.cron.AddFunc(schedule, func() { s.runScheduled(name) })
		if err != nil {
			return fmt.Errorf("job %s: %w", name, err)
		}
		e.cronID = id
	}
	s.jobs[name] = e
	s.order = append(s.order, name)

	s.log.Info().
		Str("schedule", schedule).
		Str("job", name).
		Bool("enabled", enabled).
		Msg("Job registered")
	return nil
}

func (s *Scheduler) runScheduled(name string) {
	s.log.Debug().Str("job", name).Msg("Running job")

	_, err := s.Trigger(s.ctx, name)
	switch {
	case errors.Is(err, ErrJobRunning):
		s.log.Warn().Str("job", name).Msg("Previous run still in progress, skipping tick")
	case err != nil:
		s.log.Error().Err(err).Str("job", name).Msg("Job failed")
	default:
		s.log.Debug().Str("job", name).Msg("Job completed")
	}
}

// Trigger runs the named job now and returns its result. It fails fast with
// ErrJobRunning when the job is already in flight.
func (s *Scheduler) Trigger(ctx context.Context, name string) (any, error) {
	e, err := s.acquire(name)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, e)
}

// TriggerAsync starts the named job in the background and returns once it is
// claimed. The job keeps ctx's values but not its cancellation; Stop cancels it.
func (s *Scheduler) TriggerAsync(ctx context.Context, name string) error {
	e, err := s.acquire(name)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(s.ctx, cancel)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer stop()
		defer cancel()

		if _, err := s.run(runCtx, e); err != nil {
			s.log.Error().Err(err).Str("job", name).Msg("Triggered job failed")
			return
		}
		s.log.Info().Str("job", name).Msg("Triggered job completed")
	}()
	return nil
}

func (s *Scheduler) acquire(name string) (*entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.jobs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	if e.running {
		return nil, fmt.Errorf("%w: %s", ErrJobRunning, name)
	}
	e.running = true
	return e, nil
}

func (s *Scheduler) run(ctx context.Context, e *entry) (any, error) {
	start := s.clock.Now()
	result, err := e.job.Run(ctx)
	dur := s.clock.Now().Sub(start)

	s.mu.Lock()
	e.running = false
	e.lastRunAt = start
	e.lastDur = dur
	e.lastErr = err
	s.mu.Unlock()

	return result, err
}

// Jobs lists registered jobs in registration order
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]JobInfo, 0, len(s.order))
	for _, name := range s.order {
		e := s.jobs[name]
		info := JobInfo{
			Name:     name,
			Schedule: e.schedule,
			Enabled:  e.enabled,
			Running:  e.running,
		}
		if !e.lastRunAt.IsZero() {
			at := e.lastRunAt
			info.LastRunAt = &at
			info.LastDuration = e.lastDur.String()
		}
		if e.lastErr != nil {
			info.LastError = e.lastErr.Error()
		}
		if e.enabled {
			if next := s.cron.Entry(e.cronID).Next; !next.IsZero() {
				info.NextRunAt = &next
			}
		}
		infos = append(infos, info)
	}
	return infos
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.order)).Msg("Scheduler started")
}

// Stop stops the timers, cancels running jobs and waits for them to return
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	s.cancel()
	<-ctx.Done()
	s.wg.Wait()
	s.log.Info().Msg("Scheduler stopped")
}
