package schedule

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// Job is a maintenance task that runs beside the sweep loop, like purging
// stale cached embeddings. Jobs must tolerate being skipped: a tick that
// lands while the previous run is still going is dropped.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler drives maintenance jobs on standard 5-field cron specs. The
// sweep loop owns the main flow of the worker; nothing latency-sensitive
// belongs here.
type Scheduler struct {
	cron *cron.Cron
	base context.Context
}

func New() *Scheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return &Scheduler{
		cron: cron.New(cron.WithParser(parser)),
		base: context.Background(),
	}
}

func (s *Scheduler) Register(job Job, spec string) error {
	var busy atomic.Bool
	_, err := s.cron.AddFunc(spec, func() {
		ctx := s.base
		logger := logutil.GetLogger(ctx).With(zap.String("job", job.Name()))
		if !busy.CompareAndSwap(false, true) {
			logger.Warn("previous run still going, tick dropped")
			return
		}
		defer busy.Store(false)
		start := time.Now()
		if err := job.Run(ctx); err != nil {
			logger.Error("maintenance job failed", zap.Duration("took", time.Since(start)), zap.Error(err))
			return
		}
		logger.Info("maintenance job done", zap.Duration("took", time.Since(start)))
	})
	if err != nil {
		return fmt.Errorf("register %s on %q: %w", job.Name(), spec, err)
	}
	logutil.GetLogger(s.base).Info("maintenance job registered", zap.String("job", job.Name()), zap.String("cron", spec))
	return nil
}

// Start begins ticking. The context becomes the base context every job
// run sees, so job-side API calls inherit worker shutdown.
func (s *Scheduler) Start(ctx context.Context) {
	if ctx != nil {
		s.base = ctx
	}
	s.cron.Start()
}

// Stop waits for any in-flight job before returning.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
