package orm

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yadunandan004/datacore/request"
)

func TestTransaction_Commit(t *testing.T) {
	pools := newMockPools(t, "postgres")
	p := NewProxy(pools.router)
	scope := NewTxScope(pools.router)

	pools.write.ExpectBegin()
	pools.write.ExpectExec("insert into ledger (amount) values ($1)").
		WithArgs(10).
		WillReturnResult(sqlmock.NewResult(0, 1))
	pools.write.ExpectQuery("select * from ledger").
		WillReturnRows(sqlmock.NewRows([]string{"amount"}).AddRow(int64(10)))
	pools.write.ExpectCommit()

	total, err := InTransaction(context.Background(), scope, func(ctx context.Context) (int, error) {
		assert.True(t, IsInTransaction(ctx))
		if _, err := p.Exec(ctx, Table("ledger").Insert(map[string]interface{}{"amount": 10})); err != nil {
			return 0, err
		}
		// reads inside the transaction stay on its connection
		rows, err := p.Query(ctx, Table("ledger"))
		return len(rows), err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	pools.verify(t)
}

func TestTransaction_RollbackReturnsOriginalError(t *testing.T) {
	pools := newMockPools(t, "postgres")
	p := NewProxy(pools.router)
	scope := NewTxScope(pools.router)

	pools.write.ExpectBegin()
	for i := 0; i < 3; i++ {
		pools.write.ExpectExec("insert into ledger (amount) values ($1)").
			WithArgs(i).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	pools.write.ExpectRollback()

	boom := errors.New("boom")
	err := scope.Transaction(context.Background(), func(ctx context.Context) error {
		for i := 0; i < 3; i++ {
			if _, err := p.Exec(ctx, Table("ledger").Insert(map[string]interface{}{"amount": i})); err != nil {
				return err
			}
		}
		return boom
	})
	assert.Same(t, boom, err)
	pools.verify(t)
}

func TestTransaction_PanicRollsBack(t *testing.T) {
	pools := newMockPools(t, "postgres")
	scope := NewTxScope(pools.router)

	pools.write.ExpectBegin()
	pools.write.ExpectRollback()

	assert.PanicsWithValue(t, "kaboom", func() {
		_ = scope.Transaction(context.Background(), func(ctx context.Context) error {
			panic("kaboom")
		})
	})
	pools.verify(t)
}

func TestTransaction_NestedJoinsOuter(t *testing.T) {
	pools := newMockPools(t, "postgres")
	scope := NewTxScope(pools.router)

	pools.write.ExpectBegin()
	pools.write.ExpectCommit()

	var outer, inner *TxHandle
	err := scope.Transaction(context.Background(), func(ctx context.Context) error {
		outer = CurrentTx(ctx)
		return scope.Transaction(ctx, func(ctx context.Context) error {
			inner = CurrentTx(ctx)
			return nil
		})
	})
	require.NoError(t, err)
	assert.Same(t, outer, inner)
	assert.Equal(t, TxCommitted, outer.Status())
	pools.verify(t)
}

func TestTransaction_NestedFailureRollsBackOuter(t *testing.T) {
	pools := newMockPools(t, "postgres")
	scope := NewTxScope(pools.router)

	pools.write.ExpectBegin()
	pools.write.ExpectRollback()

	boom := errors.New("inner failed")
	err := scope.Transaction(context.Background(), func(ctx context.Context) error {
		return scope.Transaction(ctx, func(ctx context.Context) error {
			return boom
		})
	})
	assert.ErrorIs(t, err, boom)
	pools.verify(t)
}

func TestTransaction_RollbackFailureIsReported(t *testing.T) {
	mem := captureLogs(t)
	pools := newMockPools(t, "postgres")
	scope := NewTxScope(pools.router)

	pools.write.ExpectBegin()
	pools.write.ExpectRollback().WillReturnError(errors.New("connection reset"))

	boom := errors.New("boom")
	err := scope.Transaction(request.NewTestContext(), func(ctx context.Context) error {
		return boom
	})
	assert.Same(t, boom, err)

	events := mem.ByEvent("transaction-rollback-error")
	require.Len(t, events, 1)
	assert.Contains(t, events[0].Error, "connection reset")
	assert.Equal(t, "boom", events[0].Fields["cause"])
}

func TestTransaction_CommitFailure(t *testing.T) {
	pools := newMockPools(t, "postgres")
	scope := NewTxScope(pools.router)

	pools.write.ExpectBegin()
	pools.write.ExpectCommit().WillReturnError(errors.New("serialization failure"))

	err := scope.Transaction(context.Background(), func(ctx context.Context) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "serialization failure")
}

func TestTransaction_CompletedHandleFallsBackToRouting(t *testing.T) {
	pools := newMockPools(t, "postgres")
	p := NewProxy(pools.router)
	scope := NewTxScope(pools.router)

	pools.write.ExpectBegin()
	pools.write.ExpectCommit()

	var leaked context.Context
	require.NoError(t, scope.Transaction(context.Background(), func(ctx context.Context) error {
		leaked = ctx
		return nil
	}))

	assert.False(t, IsInTransaction(leaked))
	pools.read.ExpectQuery("select * from ledger").
		WillReturnRows(sqlmock.NewRows([]string{"amount"}).AddRow(int64(3)))
	rows, err := p.Query(leaked, Table("ledger"))
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	stale := Table("ledger").Transacting(CurrentTx(leaked))
	_, err = p.Query(context.Background(), stale)
	assert.ErrorIs(t, err, ErrTxCompleted)
	pools.verify(t)
}

func TestTransaction_ConcurrentStatementsSerialize(t *testing.T) {
	pools := newMockPools(t, "postgres")
	pools.write.MatchExpectationsInOrder(false)
	p := NewProxy(pools.router)
	scope := NewTxScope(pools.router)

	pools.write.ExpectBegin()
	pools.write.ExpectQuery("select * from ledger limit 5").
		WillReturnRows(sqlmock.NewRows([]string{"amount"}).AddRow(int64(1)))
	pools.write.ExpectQuery("select count(*) as total from ledger").
		WillReturnRows(sqlmock.NewRows([]string{"total"}).AddRow(int64(1)))
	pools.write.ExpectCommit()

	page, err := InTransaction(context.Background(), scope, func(ctx context.Context) (*Page, error) {
		return p.Page(ctx, Table("ledger"), 0, DefaultPageLimit)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	pools.verify(t)
}

func TestEnlist(t *testing.T) {
	pools := newMockPools(t, "postgres")
	scope := NewTxScope(pools.router)

	stmt := Table("ledger")
	assert.False(t, Enlist(context.Background(), stmt))

	pools.write.ExpectBegin()
	pools.write.ExpectCommit()
	require.NoError(t, scope.Transaction(context.Background(), func(ctx context.Context) error {
		assert.True(t, Enlist(ctx, stmt))
		assert.Same(t, CurrentTx(ctx), stmt.tx)
		return nil
	}))
}

func TestTransaction_NoRouter(t *testing.T) {
	err := NewTxScope(nil).Transaction(context.Background(), func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrNoRouter)
}
