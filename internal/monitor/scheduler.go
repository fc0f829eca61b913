package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Job is a periodic background task.
type Job interface {
	// Name identifies the job in logs and must be unique per scheduler.
	Name() string
	// Run executes one tick. It should honor ctx cancellation.
	Run(ctx context.Context) error
}

// parser accepts 5-field cron expressions and descriptors such as
// "@every 1m" or "@hourly".
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule validates a schedule expression.
func ParseSchedule(expr string) error {
	_, err := parser.Parse(expr)
	return err
}

type entry struct {
	job      Job
	schedule cron.Schedule
	lock     sync.Mutex
}

// Scheduler runs jobs on cron schedules. A tick is skipped while the
// previous run of the same job is still in flight.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]*entry
	logger  *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler. Jobs must be registered before Start.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{
		entries: make(map[string]*entry),
		logger:  logger,
	}
}

// RegisterJob adds j on the given schedule.
func (s *Scheduler) RegisterJob(schedule string, j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := j.Name()
	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("monitor: duplicate job name %q", name)
	}
	sched, err := parser.Parse(schedule)
	if err != nil {
		return fmt.Errorf("monitor: invalid schedule %q for job %q: %w", schedule, name, err)
	}
	s.entries[name] = &entry{job: j, schedule: sched}
	return nil
}

// Start begins executing registered jobs. Runs receive a context that is
// cancelled by Stop.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	s.ctx, s.cancel = ctx, cancel
	s.cron = cron.New(cron.WithParser(parser))

	for _, e := range s.entries {
		s.cron.Schedule(e.schedule, cron.FuncJob(func() { s.tick(ctx, e) }))
	}
	s.cron.Start()
	s.logger.Debug("scheduler started", "jobs", len(s.entries))
}

// Trigger runs the named job once, outside its schedule, in the
// background. It reports false for an unknown job or a scheduler that is
// not running.
func (s *Scheduler) Trigger(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[name]
	if !ok || s.ctx == nil || s.ctx.Err() != nil {
		return false
	}
	ctx := s.ctx
	s.wg.Go(func() { s.tick(ctx, e) })
	return true
}

func (s *Scheduler) tick(ctx context.Context, e *entry) {
	if !e.lock.TryLock() {
		s.logger.Warn("job still running, skipping tick", "job", e.job.Name())
		return
	}
	defer e.lock.Unlock()

	if err := e.job.Run(ctx); err != nil {
		s.logger.Error("job failed", "job", e.job.Name(), "error", err)
	}
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if s.cron != nil {
		<-s.cron.Stop().Done()
		s.wg.Wait()
		s.logger.Debug("scheduler stopped")
	}
	return nil
}
