package backend

import (
	"context"
	"errors"
	"math"
	"net"
	"time"
)

// maxAttempts is the number of times a request is attempted before the
// transient failure is surfaced to the caller.
const maxAttempts = 9

// backoffBase is the exponent base for the delay between attempts.
const backoffBase = 1.5

// backoffDelay returns the sleep before retrying after the given attempt.
// Attempt 1 sleeps 1.5s, attempt 9 sleeps ~38.4s; the full schedule adds up
// to roughly 194s before the request is declared exhausted.
func backoffDelay(attempt int) time.Duration {
	return time.Duration(math.Pow(backoffBase, float64(attempt)) * float64(time.Second))
}

// isTransient reports whether a transport error is expected to be safe to
// retry: connection establishment failures and read timeouts. Anything else
// (TLS errors, malformed URLs, protocol violations) is surfaced immediately.
func isTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// sleepCtx sleeps for d unless the context is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
