package pipeline

import (
	"context"
	"errors"
	"fmt"
	"reflect"
)

func IsNil(i interface{}) bool {
	if i == nil || (reflect.ValueOf(i).Kind() == reflect.Ptr && reflect.ValueOf(i).IsNil()) {
		return true
	}
	return false
}

func GetErrors(err error) []error {
	if IsNil(err) {
		return []error{}
	}

	e, ok := err.(interface{ Unwrap() []error })
	if ok {
		return e.Unwrap()
	}

	return []error{err}
}

// classify turns a task error into a Result. Aborts, and errors caused by
// ctx itself being done, become Cancel. Any other error is a failure, a
// timeout the task set up on its own included.
func classify[T any](ctx context.Context, err error) Result[T] {
	if IsAbort(err) {
		return Cancel[T](err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return Cancel[T](err)
	}
	return Fail[T](err)
}

func panicError(job string, v any) error {
	if err, ok := v.(error); ok {
		return fmt.Errorf("job %q panicked: %w", job, err)
	}
	return fmt.Errorf("job %q panicked: %v", job, v)
}
