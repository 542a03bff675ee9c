package translate

import (
	"context"
	"fmt"
	"time"

	"github.com/minios-linux/aitranslate/logging"
)

// retry runs fn up to attempts times, sleeping delay before each retry.
// Fatal errors and context cancellation end the loop at once; otherwise
// the last error is returned as attempts-exhausted.
func retry(ctx context.Context, attempts int, delay time.Duration, log logging.Logger, job string, fn func(attempt int) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 && delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(attempt)
		if err == nil {
			return nil
		}
		if isFatal(err) {
			return err
		}
		last = err
		log.Warn("attempt rejected", "job", job, "attempt", attempt, "of", attempts, "kind", string(KindOf(err)), "error", err.Error())
	}

	return &RejectError{
		Kind:   KindAttemptsExhausted,
		Detail: fmt.Sprintf("%s failed after %d attempts: %v", job, attempts, last),
		Err:    last,
	}
}
