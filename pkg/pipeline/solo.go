package pipeline

import "context"

// Finally reduces a Result to a concrete value via success/error/cancel handlers.
func Finally[In, Out any](ctx context.Context, input Result[In],
	onSuccess func(ctx context.Context, r In) Out,
	onError func(ctx context.Context, err error) Out,
	onCancel func(ctx context.Context, err error) Out) Out {

	if input.IsSuccess() {
		return onSuccess(ctx, input.Result())
	} else if input.IsCancel() {
		return onCancel(ctx, input.Err())
	} else {
		return onError(ctx, input.Err())
	}
}

// DoubleTee runs the side effect matching the outcome and returns input unchanged.
// Nil handlers are skipped.
func DoubleTee[T any](ctx context.Context, input Result[T],
	onSuccess func(ctx context.Context, r T),
	onError func(ctx context.Context, err error),
	onCancel func(ctx context.Context, err error)) Result[T] {

	if input.IsSuccess() {
		if onSuccess != nil {
			onSuccess(ctx, input.Result())
		}
	} else {
		if input.IsCancel() {
			if onCancel != nil {
				onCancel(ctx, input.Err())
			}
		} else {
			if onError != nil {
				onError(ctx, input.Err())
			}
		}
	}

	return input
}
