// Package lifecycle binds an engine to a host mount point: the mounted stage
// runs when a view mounts and the idle stage runs once the host is idle.
package lifecycle

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ib-77/fetchpipe/pkg/fetchctx"
	"github.com/ib-77/fetchpipe/pkg/pipeline"
)

const (
	StageMounted = "mounted"
	StageIdle    = "idle"
)

type options struct {
	scheduler IdleScheduler
	logger    *slog.Logger
}

type Option func(*options)

func WithScheduler(s IdleScheduler) Option {
	return func(o *options) {
		if s != nil {
			o.scheduler = s
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Hook is invoked at the host mount point for route.
type Hook func(ctx context.Context, route fetchctx.Route) *Mount

// Mount tracks the stages started by one Hook call.
type Mount struct {
	Context *fetchctx.Context
	Mounted pipeline.Result[[]any]

	idle      pipeline.Result[[]any]
	scheduled bool
	done      chan struct{}
	once      sync.Once
}

// Wait blocks until the idle stage has finished and returns its result. It
// returns immediately with a nil result when idle was never scheduled.
func (m *Mount) Wait() pipeline.Result[[]any] {
	<-m.done
	return m.idle
}

// Done is closed once the idle stage has finished or was skipped.
func (m *Mount) Done() <-chan struct{} {
	return m.done
}

// IdleScheduled reports whether the idle stage was handed to the scheduler.
func (m *Mount) IdleScheduled() bool {
	return m.scheduled
}

func (m *Mount) finish(res pipeline.Result[[]any]) {
	m.once.Do(func() {
		m.idle = res
		close(m.done)
	})
}

// Mixin returns the mount hook for runner. Every call builds one context
// through factory; the mounted and idle stages share it.
func Mixin(runner pipeline.StageRunner[*fetchctx.Context], factory *fetchctx.Factory, opts ...Option) Hook {
	o := options{
		scheduler: TimerScheduler{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	return func(ctx context.Context, route fetchctx.Route) *Mount {
		c := factory.New(route)
		ctx = c.LogContext(ctx)
		m := &Mount{Context: c, done: make(chan struct{})}

		m.Mounted = runner.RunStageJobs(ctx, c, StageMounted)
		report(ctx, o.logger, c, StageMounted, m.Mounted)

		if m.Mounted.IsCancel() {
			o.logger.InfoContext(ctx, "idle stage skipped", "reason", m.Mounted.Err())
			m.finish(pipeline.Success[[]any](nil))
			return m
		}

		idleCtx := context.WithoutCancel(ctx)
		m.scheduled = true
		o.scheduler.RequestIdle(func(d IdleDeadline) {
			o.logger.DebugContext(idleCtx, "idle callback", "did_timeout", d.DidTimeout)
			res := runner.RunStageJobs(idleCtx, c, StageIdle)
			report(idleCtx, o.logger, c, StageIdle, res)
			m.finish(res)
		})

		return m
	}
}

func report(ctx context.Context, l *slog.Logger, c *fetchctx.Context, stage string, res pipeline.Result[[]any]) {
	pipeline.DoubleTee(ctx, res,
		nil,
		func(ctx context.Context, err error) {
			l.ErrorContext(ctx, "stage failed", "stage", stage, "error", err)
			c.ReportError(ctx, err)
		},
		func(ctx context.Context, err error) {
			l.InfoContext(ctx, "stage cancelled", "stage", stage, "reason", err)
		},
	)
}
