package datasource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

const (
	ServerWrite = "write"
	ServerRead  = "read"
)

// Router owns one write pool and any number of read pools. Pools are built
// once at startup and live until Close.
type Router struct {
	driver string
	write  *sql.DB
	reads  []*sql.DB
}

// NewRouter wraps already-open pools. write must not be nil.
func NewRouter(driver string, write *sql.DB, reads ...*sql.DB) *Router {
	filtered := make([]*sql.DB, 0, len(reads))
	for _, db := range reads {
		if db != nil {
			filtered = append(filtered, db)
		}
	}
	return &Router{driver: driver, write: write, reads: filtered}
}

func (r *Router) Driver() string {
	return r.driver
}

func (r *Router) Write() *sql.DB {
	return r.write
}

// Read picks a read pool uniformly at random, or the write pool when no
// replicas are configured.
func (r *Router) Read() *sql.DB {
	switch len(r.reads) {
	case 0:
		return r.write
	case 1:
		return r.reads[0]
	default:
		return r.reads[rand.IntN(len(r.reads))]
	}
}

func (r *Router) ReadCount() int {
	return len(r.reads)
}

// Reads returns a copy of the read pool list.
func (r *Router) Reads() []*sql.DB {
	return append([]*sql.DB(nil), r.reads...)
}

// Ping checks every pool and reports all failures.
func (r *Router) Ping(ctx context.Context) error {
	var errs []error
	if err := r.write.PingContext(ctx); err != nil {
		errs = append(errs, fmt.Errorf("write: %w", err))
	}
	for i, db := range r.reads {
		if err := db.PingContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("read%d: %w", i+1, err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every pool. Only call on process exit.
func (r *Router) Close() error {
	var errs []error
	for _, db := range r.reads {
		if err := db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if r.write != nil {
		if err := r.write.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PoolStats is a point-in-time view of one pool.
type PoolStats struct {
	Used         int
	Free         int
	MaxOpen      int
	WaitCount    int64
	WaitDuration time.Duration
}

// Saturated reports whether every allowed connection is checked out.
func (s PoolStats) Saturated() bool {
	return s.MaxOpen > 0 && s.Used >= s.MaxOpen
}

func Stats(db *sql.DB) PoolStats {
	if db == nil {
		return PoolStats{}
	}
	st := db.Stats()
	return PoolStats{
		Used:         st.InUse,
		Free:         st.Idle,
		MaxOpen:      st.MaxOpenConnections,
		WaitCount:    st.WaitCount,
		WaitDuration: st.WaitDuration,
	}
}
