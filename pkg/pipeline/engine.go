package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ib-77/fetchpipe/internal/logger"
)

const component = "fetchpipe.pipeline"

// Engine runs named stages of registered jobs against an execution context
// of type C. Both registries are fixed at construction; references inside
// stages are resolved lazily when a stage runs.
type Engine[C any] struct {
	pipelines map[string]Task[C]
	stages    map[string]Stage
	logger    *slog.Logger
	tracer    trace.Tracer
}

func New[C any](cfg Config[C], opts ...Option) *Engine[C] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	pipelines := make(map[string]Task[C], len(cfg.Pipelines))
	for k, t := range cfg.Pipelines {
		pipelines[k] = t
	}
	stages := make(map[string]Stage, len(cfg.Stages))
	for k, s := range cfg.Stages {
		stages[k] = Stage{Type: s.Type, Jobs: append([]JobRef(nil), s.Jobs...)}
	}

	return &Engine[C]{
		pipelines: pipelines,
		stages:    stages,
		logger:    o.logger,
		tracer:    o.tracer,
	}
}

func (e *Engine[C]) HasStage(name string) bool {
	_, ok := e.stages[name]
	return ok
}

// Stages returns a copy of the stage registry.
func (e *Engine[C]) Stages() map[string]Stage {
	cp := make(map[string]Stage, len(e.stages))
	for k, s := range e.stages {
		cp[k] = Stage{Type: s.Type, Jobs: append([]JobRef(nil), s.Jobs...)}
	}
	return cp
}

// RunStageJobs executes the jobs of stage against c.
//
// A missing stage, or one without jobs, succeeds with a nil value. Parallel
// stages return on the first non-successful job without waiting for its
// siblings; serial stages stop at the first non-successful job. On success
// the job values are returned in declaration order.
func (e *Engine[C]) RunStageJobs(ctx context.Context, c C, stage string) Result[[]any] {
	def, ok := e.stages[stage]
	if !ok || len(def.Jobs) == 0 {
		e.logger.DebugContext(ctx, "stage has nothing to run", "stage", stage)
		return Success[[]any](nil)
	}

	ctx = e.withRun(ctx)
	ctx = logger.WithLogFields(ctx, logger.LogFields{Stage: logger.Ptr(stage)})
	ctx, span := e.tracer.Start(ctx, "pipeline.stage", trace.WithAttributes(
		attribute.String("stage.name", stage),
		attribute.String("stage.type", string(def.Type)),
		attribute.Int("stage.jobs", len(def.Jobs)),
	))
	defer span.End()

	e.logger.DebugContext(ctx, "stage started", "type", def.Type, "jobs", len(def.Jobs))

	var res Result[[]any]
	switch def.Type {
	case Parallel:
		res = e.runParallel(ctx, c, def.Jobs)
	case Serial:
		res = e.runSerial(ctx, c, def.Jobs)
	default:
		res = Fail[[]any](configErrorf(ErrUnknownStageType, "stage %q has type %q", stage, def.Type))
	}

	e.record(ctx, span, "stage", res.Err(), res.IsCancel())
	return res
}

// RunJob executes a single job reference. Task keys missing from the
// registry fail with ErrJobNotFound; stage references recurse into
// RunStageJobs with the same c. Any other job type is skipped.
func (e *Engine[C]) RunJob(ctx context.Context, job JobRef, c C) Result[any] {
	switch job.JobType {
	case JobTypeTask:
		task, ok := e.pipelines[job.Name]
		if !ok || task == nil {
			err := fmt.Errorf("%w: %q", ErrJobNotFound, job.Name)
			e.logger.ErrorContext(ctx, "job lookup failed", "job", job.Name, "error", err)
			return Fail[any](err)
		}
		return e.invoke(ctx, job.Name, task, c)

	case JobTypeStage:
		res := e.RunStageJobs(ctx, c, job.Name)
		if !res.IsSuccess() {
			return Propagate[[]any, any](res)
		}
		return Success[any](res.Result())

	default:
		e.logger.WarnContext(ctx, "skipping job of unknown type", "job", job.String())
		return Success[any](nil)
	}
}

func (e *Engine[C]) runSerial(ctx context.Context, c C, jobs []JobRef) Result[[]any] {
	values := make([]any, 0, len(jobs))

	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return Cancel[[]any](err)
		}

		res := e.RunJob(ctx, job, c)
		if !res.IsSuccess() {
			return Propagate[any, []any](res)
		}
		values = append(values, res.Result())
	}

	return Success(values)
}

// runParallel starts every job at once. The first non-successful outcome
// settles the join; jobs still running are left to finish on their own.
func (e *Engine[C]) runParallel(ctx context.Context, c C, jobs []JobRef) Result[[]any] {
	values := make([]any, len(jobs))
	failed := make(chan Result[any], 1)
	var once sync.Once

	var g errgroup.Group
	for i, job := range jobs {
		g.Go(func() error {
			res := e.RunJob(ctx, job, c)
			if !res.IsSuccess() {
				once.Do(func() { failed <- res })
				return res.Err()
			}
			values[i] = res.Result()
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case res := <-failed:
		return Propagate[any, []any](res)
	case <-done:
		select {
		case res := <-failed:
			return Propagate[any, []any](res)
		default:
			return Success(values)
		}
	case <-ctx.Done():
		return Cancel[[]any](ctx.Err())
	}
}

func (e *Engine[C]) invoke(ctx context.Context, name string, task Task[C], c C) (res Result[any]) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Job: logger.Ptr(name)})
	ctx, span := e.tracer.Start(ctx, "pipeline.job", trace.WithAttributes(
		attribute.String("job.name", name),
	))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			res = Fail[any](panicError(name, r))
			e.record(ctx, span, "job", res.Err(), false)
		}
	}()

	e.logger.DebugContext(ctx, "job started")

	v, err := task(ctx, c)
	if err != nil {
		res = classify[any](ctx, err)
	} else {
		res = Success(v)
	}

	e.record(ctx, span, "job", res.Err(), res.IsCancel())
	return res
}

func (e *Engine[C]) withRun(ctx context.Context) context.Context {
	if _, ok := GetRunID(ctx); ok {
		return ctx
	}
	id := uuid.New()
	ctx = WithRunID(ctx, id)
	return logger.WithLogFields(ctx, logger.LogFields{
		RunID:     logger.Ptr(id.String()),
		Component: component,
	})
}

func (e *Engine[C]) record(ctx context.Context, span trace.Span, what string, err error, cancelled bool) {
	switch {
	case err == nil:
		span.SetStatus(codes.Ok, "")
		e.logger.DebugContext(ctx, what+" finished")
	case cancelled:
		span.SetAttributes(attribute.Bool("pipeline.cancelled", true))
		e.logger.InfoContext(ctx, what+" cancelled", "reason", err)
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if what == "job" {
			e.logger.ErrorContext(ctx, "job failed", "error", err)
		} else {
			e.logger.WarnContext(ctx, what+" failed", "error", err)
		}
	}
}
