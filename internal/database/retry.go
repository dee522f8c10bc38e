package database

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const (
	connectAttempts = 5
	connectBackoff  = 500 * time.Millisecond
)

// pingWithRetry retries ping with doubling backoff. Compose stacks often
// start the API before PostgreSQL or Redis accept connections.
func pingWithRetry(ctx context.Context, log zerolog.Logger, name string, attempts int, backoff time.Duration, ping func(context.Context) error) error {
	var err error
	for i := 1; i <= attempts; i++ {
		if err = ping(ctx); err == nil {
			return nil
		}
		if i == attempts {
			break
		}

		log.Warn().Err(err).Str("backend", name).Int("attempt", i).Dur("retry_in", backoff).Msg("Backend not ready")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}
