package pipeline

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/ib-77/fetchpipe/pkg/pipeline"

type OptionKey string

const RunIDOptionKey OptionKey = "run_id"

type options struct {
	logger *slog.Logger
	tracer trace.Tracer
}

type Option func(*options)

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		if t != nil {
			o.tracer = t
		}
	}
}

func defaultOptions() options {
	return options{
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
	}
}

// WithRunID tags ctx with the id of the outermost stage run. Nested stages
// reuse it.
func WithRunID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, RunIDOptionKey, id)
}

func GetRunID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(RunIDOptionKey).(uuid.UUID)
	return id, ok
}
