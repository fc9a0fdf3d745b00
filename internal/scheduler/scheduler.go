// Package scheduler wires the engine's batch entry points to cron triggers.
// The entry points themselves stay synchronous and clock-free; this package
// owns the clock, the per-run timeout and the single-flight guard.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"budgetwise/internal/log"
)

// Job is a batch entry point. It receives the trigger time so the logic
// never reads the system clock itself.
type Job func(ctx context.Context, now time.Time) error

// Scheduler runs registered jobs on cron specs. Each job name is guarded by
// singleflight: if a trigger fires while the previous run of the same job is
// still in progress, the late fire attaches to the in-flight run instead of
// starting a second one, so nothing is ever materialized twice.
type Scheduler struct {
	cron    *cron.Cron
	group   singleflight.Group
	timeout time.Duration
	logger  *log.Logger
}

func New(timeout time.Duration, logger *log.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		timeout: timeout,
		logger:  logger.WithComponent(log.ComponentScheduler),
	}
}

// AddJob registers a named job on a standard 5-field cron spec.
func (s *Scheduler) AddJob(name, spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() {
		s.run(name, job)
	})
	return err
}

// RunNow executes one job immediately, outside its cron schedule, with the
// same guard and timeout. Used for the startup catch-up run.
func (s *Scheduler) RunNow(name string, job Job) {
	s.run(name, job)
}

func (s *Scheduler) run(name string, job Job) {
	_, err, shared := s.group.Do(name, func() (any, error) {
		// Backstop so a wedged store cannot block the next trigger forever.
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		started := time.Now()
		err := job(ctx, started)
		s.logger.Info("job run finished",
			log.FieldJob, name,
			log.FieldDuration, time.Since(started).Milliseconds())
		return nil, err
	})
	if shared {
		s.logger.Warn("trigger fired while previous run was in progress, joined it",
			log.FieldJob, name)
	}
	if err != nil {
		s.logger.Error("job run failed",
			log.FieldJob, name,
			log.FieldError, err)
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the trigger and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
