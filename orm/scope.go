package orm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/yadunandan004/datacore/logger"
	"github.com/yadunandan004/datacore/metrics"
	"github.com/yadunandan004/datacore/request"
	"github.com/yadunandan004/datacore/store/datasource"
)

// TxScope opens transactions on the write pool and makes them ambient for
// everything run inside.
type TxScope struct {
	router    *datasource.Router
	telemetry logger.Telemetry
	txOptions *sql.TxOptions
}

type ScopeOption func(*TxScope)

func WithScopeTelemetry(t logger.Telemetry) ScopeOption {
	return func(s *TxScope) {
		if t != nil {
			s.telemetry = t
		}
	}
}

func WithTxOptions(opts *sql.TxOptions) ScopeOption {
	return func(s *TxScope) {
		s.txOptions = opts
	}
}

func NewTxScope(router *datasource.Router, opts ...ScopeOption) *TxScope {
	s := &TxScope{
		router:    router,
		telemetry: logger.NewTelemetry("sql"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Transaction runs fn inside a transaction. See InTransaction.
func (s *TxScope) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := InTransaction(ctx, s, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// InTransaction commits when fn succeeds and rolls back when it fails or
// panics. fn's error is returned unchanged. Inside an already active
// transaction fn simply joins it; only the outermost call completes it.
func InTransaction[T any](ctx context.Context, scope *TxScope, fn func(ctx context.Context) (T, error)) (result T, err error) {
	if IsInTransaction(ctx) {
		metrics.RecordTransaction(ctx, "joined")
		return fn(ctx)
	}
	if scope == nil || scope.router == nil || scope.router.Write() == nil {
		return result, ErrNoRouter
	}

	db := scope.router.Write()
	tx, err := db.BeginTx(ctx, scope.txOptions)
	if err != nil {
		return result, fmt.Errorf("failed to begin transaction: %w", err)
	}
	handle := newTxHandle(db, tx)
	txCtx := context.WithValue(ctx, request.TransactionKey{}, handle)
	metrics.TransactionOpened(ctx)
	defer metrics.TransactionClosed(ctx)

	defer func() {
		if r := recover(); r != nil {
			scope.rollback(ctx, handle, fmt.Errorf("panic: %v", r))
			panic(r)
		}
	}()

	result, err = fn(txCtx)
	if err != nil {
		scope.rollback(ctx, handle, err)
		var zero T
		return zero, err
	}
	if err := handle.Commit(); err != nil {
		metrics.RecordTransaction(ctx, "commit_failed")
		var zero T
		return zero, fmt.Errorf("failed to commit transaction: %w", err)
	}
	metrics.RecordTransaction(ctx, "commit")
	return result, nil
}

func (s *TxScope) rollback(ctx context.Context, handle *TxHandle, cause error) {
	metrics.RecordTransaction(ctx, "rollback")
	err := handle.Rollback()
	if err == nil || errors.Is(err, ErrTxCompleted) || errors.Is(err, sql.ErrTxDone) {
		return
	}
	s.telemetry.Error("transaction-rollback-error", map[string]interface{}{
		"reqId":    request.RequestID(ctx),
		"txId":     handle.ID(),
		"cause":    cause.Error(),
		"duration": time.Since(handle.StartedAt()).Milliseconds(),
	}, err)
}

// CurrentTx returns the handle carried by ctx, completed or not.
func CurrentTx(ctx context.Context) *TxHandle {
	if ctx == nil {
		return nil
	}
	h, _ := ctx.Value(request.TransactionKey{}).(*TxHandle)
	return h
}

func IsInTransaction(ctx context.Context) bool {
	return CurrentTx(ctx).Active()
}

// Enlist binds stmt to the ambient transaction, if one is active.
func Enlist(ctx context.Context, stmt *Statement) bool {
	h := CurrentTx(ctx)
	if !h.Active() || stmt == nil {
		return false
	}
	stmt.tx = h
	return true
}
