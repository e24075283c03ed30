package orm

import (
	"context"
	"database/sql"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type TxStatus int32

const (
	TxActive TxStatus = iota
	TxCommitted
	TxRolledBack
)

func (s TxStatus) String() string {
	switch s {
	case TxCommitted:
		return "committed"
	case TxRolledBack:
		return "rolled_back"
	default:
		return "active"
	}
}

// TxHandle is one open transaction. Statements issued through it run one at
// a time on its connection, in the order they acquire the handle.
type TxHandle struct {
	id        string
	tx        *sql.Tx
	db        *sql.DB
	status    atomic.Int32
	mu        sync.Mutex
	startedAt time.Time
}

func newTxHandle(db *sql.DB, tx *sql.Tx) *TxHandle {
	return &TxHandle{
		id:        uuid.NewString(),
		tx:        tx,
		db:        db,
		startedAt: time.Now(),
	}
}

func (h *TxHandle) ID() string {
	return h.id
}

func (h *TxHandle) Status() TxStatus {
	return TxStatus(h.status.Load())
}

func (h *TxHandle) Active() bool {
	return h != nil && h.Status() == TxActive
}

func (h *TxHandle) StartedAt() time.Time {
	return h.startedAt
}

// Commit completes the transaction. A handle completes at most once; later
// calls return ErrTxCompleted.
func (h *TxHandle) Commit() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.status.CompareAndSwap(int32(TxActive), int32(TxCommitted)) {
		return ErrTxCompleted
	}
	return h.tx.Commit()
}

func (h *TxHandle) Rollback() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.status.CompareAndSwap(int32(TxActive), int32(TxRolledBack)) {
		return ErrTxCompleted
	}
	return h.tx.Rollback()
}

func (h *TxHandle) exec(ctx context.Context, query string, args []interface{}) (sql.Result, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.Status() != TxActive {
		return nil, ErrTxCompleted
	}
	return h.tx.ExecContext(ctx, query, args...)
}

// query keeps the handle locked until fn has drained rows.
func (h *TxHandle) query(ctx context.Context, query string, args []interface{}, fn func(*sql.Rows) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.Status() != TxActive {
		return ErrTxCompleted
	}
	rows, err := h.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	return fn(rows)
}
