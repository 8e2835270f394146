package retry

import (
	"context"
	"errors"
	"log/slog"
)

// Permanent помечает ошибку как неповторяемую: Do вернёт её сразу.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Do выполняет fn, повторяя её при любой ошибке, кроме отмены контекста и
// ошибок, обёрнутых в Permanent. op попадает в лог каждой попытки.
func Do(ctx context.Context, policy Policy, logger *slog.Logger, op string, fn func(ctx context.Context) error) error {
	policy = withDefaults(policy)

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return err
		}

		lastErr = err
		if attempt == policy.MaxAttempts {
			break
		}

		delay := policy.jitterDelay(policy.backoffDelay(attempt))
		retryLog{
			op:          op,
			attempt:     attempt + 1,
			maxAttempts: policy.MaxAttempts,
			reason:      err.Error(),
			delay:       delay,
		}.emit(logger, "retrying backend call")
		if err := policy.Sleep(ctx, delay); err != nil {
			return err
		}
	}

	return &ExhaustedError{Cause: lastErr, Attempts: policy.MaxAttempts}
}
