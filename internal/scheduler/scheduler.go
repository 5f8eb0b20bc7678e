// Package scheduler runs the periodic fetch of every source.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/robfig/cron/v3"
)

// DefaultTimeout bounds a single scheduled fetch run.
const DefaultTimeout = 10 * time.Minute

// FetchAller ingests every source.
type FetchAller interface {
	FetchAll(ctx context.Context) (string, error)
}

// Scheduler triggers FetchAll on a cron spec.
type Scheduler struct {
	ctx     context.Context
	cron    *cron.Cron
	spec    string
	timeout time.Duration
	svc     FetchAller
	logger  log.Logger
}

// New creates a Scheduler. ctx bounds every run; canceling it makes
// pending runs return immediately.
func New(ctx context.Context, svc FetchAller, spec string, timeout time.Duration, logger log.Logger) *Scheduler {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Scheduler{
		ctx:     ctx,
		cron:    cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		spec:    spec,
		timeout: timeout,
		svc:     svc,
		logger:  logger,
	}
}

// EverySpec returns the cron spec for a fixed interval.
func EverySpec(interval time.Duration) string {
	return "@every " + interval.String()
}

// Start registers the job and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.run); err != nil {
		return fmt.Errorf("schedule %q: %w", s.spec, err)
	}
	s.cron.Start()
	s.logger.Info(s.ctx, "fetch scheduler started", "spec", s.spec)
	return nil
}

// Stop halts the cron loop and waits for a running fetch to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) run() {
	if s.ctx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	msg, err := s.svc.FetchAll(ctx)
	if err != nil {
		s.logger.Error(ctx, err, "scheduled fetch failed", "duration", time.Since(start).Seconds())
		return
	}
	s.logger.Info(ctx, "scheduled fetch complete", "result", msg, "duration", time.Since(start).Seconds())
}
