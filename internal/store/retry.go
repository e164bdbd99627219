package store

import (
	"context"
	"errors"
	"log"
	"time"

	"gorm.io/gorm"
)

// withRetry runs fn, retrying up to retries more times with exponential
// backoff starting at base. Not-found results are returned immediately.
func withRetry(ctx context.Context, retries int, base time.Duration, op string, fn func() error) error {
	delay := base
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil || errors.Is(err, gorm.ErrRecordNotFound) || attempt >= retries {
			return err
		}

		log.Printf("%s failed (attempt %d of %d): %v; retrying in %s", op, attempt+1, retries+1, err, delay)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
}
