package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrJobNotFound      = errors.New("job not registered")
	ErrStageNotFound    = errors.New("stage not registered")
	ErrUnknownStageType = errors.New("unknown stage type")
	ErrCycleFound       = errors.New("stage cycle detected")
)

// ConfigError wraps a stage configuration problem found by Validate or at run time.
type ConfigError struct {
	Kind error
	Msg  string
}

func (e *ConfigError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *ConfigError) Unwrap() error { return e.Kind }

func configErrorf(kind error, format string, args ...any) error {
	return &ConfigError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func cycleError(path []string) error {
	return &ConfigError{Kind: ErrCycleFound, Msg: strings.Join(path, " -> ")}
}

// AbortError stops the running stage chain on purpose. The engine turns it
// into a Cancel outcome so callers can tell it apart from a broken job.
type AbortError struct {
	Reason string
}

func (e *AbortError) Error() string { return e.Reason }

// Abort returns a new abort signal with the given message.
func Abort(reason string) error {
	return &AbortError{Reason: reason}
}

func IsAbort(err error) bool {
	var a *AbortError
	return errors.As(err, &a)
}
