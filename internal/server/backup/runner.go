package backup

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/dmitrijs2005/guidesync/internal/logging"
)

// DefaultSchedule runs retention once an hour.
const DefaultSchedule = "@hourly"

// Runner drives periodic retention. One run also fires immediately on Start
// so a long-stopped server catches up without waiting for the next tick.
type Runner struct {
	service  *Service
	logger   logging.Logger
	schedule string

	cron *cron.Cron
	// running skips a tick when the previous run is still in flight.
	running sync.Mutex
}

func NewRunner(service *Service, logger logging.Logger, schedule string) *Runner {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &Runner{service: service, logger: logger, schedule: schedule}
}

func (r *Runner) Start(ctx context.Context) error {
	r.cron = cron.New()
	if _, err := r.cron.AddFunc(r.schedule, func() { r.runOnce(ctx) }); err != nil {
		return err
	}
	r.cron.Start()

	go r.runOnce(ctx)
	return nil
}

// Stop halts the schedule and waits for a running cleanup to finish.
func (r *Runner) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
	r.running.Lock()
	r.running.Unlock() //nolint:staticcheck // acquire-release barrier, not a critical section
}

func (r *Runner) runOnce(ctx context.Context) {
	if !r.running.TryLock() {
		r.logger.Warn(ctx, "backup cleanup still running, skipping tick")
		return
	}
	defer r.running.Unlock()

	if _, err := r.service.Cleanup(ctx); err != nil {
		r.logger.Error(ctx, "backup cleanup failed", "error", err)
	}
}
