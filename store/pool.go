package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/yadunandan004/datacore/config"
)

// Configure applies pool bounds to db.
func Configure(db *sql.DB, pool config.PoolConfig) {
	if pool.Max > 0 {
		db.SetMaxOpenConns(pool.Max)
	}
	idle := pool.Min
	if pool.Max > 0 && idle > pool.Max {
		idle = pool.Max
	}
	db.SetMaxIdleConns(idle)
	if pool.MaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.MaxLifetime)
	}
	if pool.IdleTimeout > 0 {
		db.SetConnMaxIdleTime(pool.IdleTimeout)
	}
}

// PingWithBackoff pings db until it answers or maxElapsed passes. A zero
// maxElapsed means a single attempt.
func PingWithBackoff(ctx context.Context, db *sql.DB, maxElapsed time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = maxElapsed

	var policy backoff.BackOff = backoff.WithContext(b, ctx)
	if maxElapsed <= 0 {
		policy = backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}

	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		return db.PingContext(ctx)
	}, policy)
	if err != nil {
		return fmt.Errorf("ping failed after %d attempt(s): %w", attempts, err)
	}
	return nil
}

// OpenPool opens a pool for driver, applies bounds and waits for it to answer.
func OpenPool(ctx context.Context, driver, dsn string, pool config.PoolConfig) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", driver, err)
	}
	Configure(db, pool)
	if err := PingWithBackoff(ctx, db, pool.AcquireTimeout); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach %s: %w", driver, err)
	}
	return db, nil
}
