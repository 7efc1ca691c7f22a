// Package worker runs the server's periodic background jobs on a cron
// schedule.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is one run of a periodic task. Returned errors are logged.
type Job func(ctx context.Context) error

// Runner wraps robfig/cron. Runs of the same job are not serialized: a slow
// run never delays the next one.
type Runner struct {
	cron  *cron.Cron
	ctx   context.Context
	log   *zap.Logger
	start sync.Once
}

// New creates a runner evaluating schedules in loc. Jobs receive ctx.
func New(ctx context.Context, log *zap.Logger, loc *time.Location) *Runner {
	if loc == nil {
		loc = time.Local
	}
	return &Runner{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cronLogger{log: log.Named("cron")}),
		),
		ctx: ctx,
		log: log,
	}
}

// Every registers job under a standard 5-field cron spec or descriptor
// such as "@daily".
func (r *Runner) Every(spec, name string, job Job) error {
	if _, err := r.cron.AddFunc(spec, func() { r.run(name, job) }); err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	r.log.Info("job scheduled", zap.String("job", name), zap.String("spec", spec))
	return nil
}

func (r *Runner) run(name string, job Job) {
	log := r.log.With(zap.String("job", name), zap.String("tick_id", uuid.NewString()))
	started := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("job panicked", zap.Any("panic", rec), zap.Stack("stack"))
		}
	}()

	if err := job(r.ctx); err != nil {
		log.Error("job failed", zap.Duration("elapsed", time.Since(started)), zap.Error(err))
		return
	}
	log.Debug("job finished", zap.Duration("elapsed", time.Since(started)))
}

// Start begins firing jobs. Calling it again has no effect.
func (r *Runner) Start() {
	r.start.Do(func() {
		r.cron.Start()
		r.log.Info("worker started", zap.Int("jobs", len(r.cron.Entries())))
	})
}

// Stop prevents new runs; the returned context is done once running jobs
// have returned.
func (r *Runner) Stop() context.Context {
	ctx := r.cron.Stop()
	r.log.Info("worker stopping")
	return ctx
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	log *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
