package pipeline

// Result is the outcome of one stage: a value or the fault that ended the run.
// The driver inspects every Result before starting the next stage, so a
// failed run never has a later stage's side effects.
type Result[T any] struct {
	value T
	err   error
}

// Ok wraps a successful value
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Fail wraps the error that ended the run
func Fail[T any](err error) Result[T] {
	return Result[T]{err: err}
}

// IsOk reports whether the stage succeeded
func (r Result[T]) IsOk() bool {
	return r.err == nil
}

// Err returns the failure, or nil
func (r Result[T]) Err() error {
	return r.err
}

// Unwrap returns the value and the failure
func (r Result[T]) Unwrap() (T, error) {
	return r.value, r.err
}
