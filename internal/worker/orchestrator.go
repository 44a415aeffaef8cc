package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/persona/internal/model"
	appErr "github.com/xxxsen/persona/internal/pkg/errors"
	"github.com/xxxsen/persona/internal/repo"
	"github.com/xxxsen/persona/internal/session"
)

// Processor runs one user through an activity round. *Pipeline satisfies
// it.
type Processor interface {
	ProcessUser(ctx context.Context, user *model.User) error
}

type OrchestratorConfig struct {
	Concurrency  int
	PageSize     int
	IdleInterval time.Duration
}

// Orchestrator sweeps the user universe forever: page through the users
// under the admin session, fan each page out to a bounded worker pool, and
// sleep out the idle interval between sweeps. Cancellation stops dispatch
// and drains in-flight users instead of killing them.
type Orchestrator struct {
	api      PlatformAPI
	sessions *session.Manager
	proc     Processor
	runs     *repo.RunLogRepo
	cfg      OrchestratorConfig

	needLogin atomic.Bool
}

func NewOrchestrator(api PlatformAPI, sessions *session.Manager, proc Processor, runs *repo.RunLogRepo, cfg OrchestratorConfig) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	if cfg.IdleInterval <= 0 {
		cfg.IdleInterval = 10 * time.Minute
	}
	return &Orchestrator{api: api, sessions: sessions, proc: proc, runs: runs, cfg: cfg}
}

// Run loops sweeps until the context is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	logger := logutil.GetLogger(ctx)
	for {
		if o.needLogin.CompareAndSwap(true, false) {
			if err := o.sessions.Login(ctx); err != nil {
				logger.Error("admin relogin failed, will retry next sweep", zap.Error(err))
				o.needLogin.Store(true)
			}
		}
		o.sweep(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(o.cfg.IdleInterval):
		}
	}
}

// sweep walks one full pass over the user universe. A short page marks the
// end of the universe; per-user failures are counted, not fatal.
func (o *Orchestrator) sweep(ctx context.Context) {
	logger := logutil.GetLogger(ctx)
	started := time.Now()
	var total, failed atomic.Int64

	sem := make(chan struct{}, o.cfg.Concurrency)
	var wg sync.WaitGroup

	offset := 0
dispatch:
	for {
		if o.needLogin.Load() {
			logger.Warn("session expired, halting dispatch until relogin")
			break
		}
		users, err := o.listUsers(ctx, offset, o.cfg.PageSize)
		if err != nil {
			o.noteFailure(ctx, err)
			logger.Error("user page fetch failed, ending sweep", zap.Int("offset", offset), zap.Error(err))
			break
		}
		for i := range users {
			if o.needLogin.Load() {
				break dispatch
			}
			select {
			case <-ctx.Done():
				break dispatch
			case sem <- struct{}{}:
			}
			total.Add(1)
			wg.Add(1)
			go func(u model.User) {
				defer wg.Done()
				defer func() { <-sem }()
				if err := o.proc.ProcessUser(ctx, &u); err != nil {
					failed.Add(1)
					o.noteFailure(ctx, err)
					logutil.GetLogger(ctx).Error("user round failed", zap.String("user_id", u.ID), zap.Error(err))
				}
			}(users[i])
		}
		if len(users) < o.cfg.PageSize {
			break
		}
		offset += len(users)
	}
	wg.Wait()

	logger.Info("sweep finished",
		zap.Int64("users_total", total.Load()),
		zap.Int64("users_failed", failed.Load()),
		zap.Duration("duration", time.Since(started)))
	o.recordRun(ctx, started, int(total.Load()), int(failed.Load()))
}

func (o *Orchestrator) listUsers(ctx context.Context, offset, limit int) (users []model.User, err error) {
	err = o.sessions.Admin().Do(ctx, func(ctx context.Context, token string) (ierr error) {
		users, ierr = o.api.ListUsers(ctx, token, offset, limit)
		return
	})
	return
}

// noteFailure arms the relogin flag when a failure traces back to an
// expired session, so the next sweep starts from a fresh admin login.
func (o *Orchestrator) noteFailure(ctx context.Context, err error) {
	if errors.Is(err, appErr.ErrSessionExpired) {
		o.needLogin.Store(true)
	}
}

func (o *Orchestrator) recordRun(ctx context.Context, started time.Time, total, failed int) {
	if o.runs == nil {
		return
	}
	err := o.runs.Insert(ctx, &model.RunLog{
		StartedAt:   started.Unix(),
		FinishedAt:  time.Now().Unix(),
		UsersTotal:  total,
		UsersFailed: failed,
	})
	if err != nil {
		logutil.GetLogger(ctx).Warn("record sweep failed", zap.Error(err))
	}
}
