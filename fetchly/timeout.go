package fetchly

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrTimeout is the cancellation cause of a request that outlived its
	// timeout. Failures caused by it are classified as network errors.
	ErrTimeout = errors.New("fetchly: request timed out")

	// ErrNegativeTimeout is reported when the effective timeout is below zero.
	ErrNegativeTimeout = errors.New("fetchly: timeout must not be negative")
)

// timeoutContext derives a context that is cancelled with ErrTimeout as its
// cause once d has elapsed. A zero duration yields a context that is already
// done. The caller's context stays the parent, so its own cancellation still
// aborts the request.
func timeoutContext(
	parent context.Context,
	d time.Duration,
) (context.Context, context.CancelFunc, error) {
	if d < 0 {
		return parent, func() {}, ErrNegativeTimeout
	}
	ctx, cancel := context.WithTimeoutCause(parent, d, ErrTimeout)
	return ctx, cancel, nil
}

// withTimeoutCause marks err as a timeout when ctx expired because of its
// own deadline. The original error stays reachable through errors.As.
func withTimeoutCause(ctx context.Context, err error) error {
	if err == nil || errors.Is(err, ErrTimeout) {
		return err
	}
	if errors.Is(context.Cause(ctx), ErrTimeout) {
		return errors.Join(ErrTimeout, err)
	}
	return err
}
