package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// Nested stage runs enrich the same context, so a job log line carries the run,
// the stage it belongs to and the route that triggered it without passing them around.
type LogFields struct {
	RunID     *string // Outermost stage run id
	Stage     *string // Stage currently executing
	Job       *string // Task key currently executing
	Route     *string // Route full path the context was built for
	Component string  // Component name, e.g. "fetchpipe.pipeline"
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, new LogFields) LogFields {
	result := existing

	if new.RunID != nil {
		result.RunID = new.RunID
	}
	if new.Stage != nil {
		result.Stage = new.Stage
	}
	if new.Job != nil {
		result.Job = new.Job
	}
	if new.Route != nil {
		result.Route = new.Route
	}
	if new.Component != "" {
		result.Component = new.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
func Ptr[T any](v T) *T {
	return &v
}
