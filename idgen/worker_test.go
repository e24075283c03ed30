package idgen

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestAssignWorkerID_Increments(t *testing.T) {
	_, client := newMiniRedis(t)
	ctx := context.Background()

	first, err := AssignWorkerID(ctx, client, "worker")
	require.NoError(t, err)
	second, err := AssignWorkerID(ctx, client, "worker")
	require.NoError(t, err)

	assert.Equal(t, int64(1), first)
	assert.Equal(t, int64(2), second)
}

func TestAssignWorkerID_WrapsAtIDSpace(t *testing.T) {
	mr, client := newMiniRedis(t)
	ctx := context.Background()
	require.NoError(t, mr.Set("worker", "1022"))

	id, err := AssignWorkerID(ctx, client, "worker")
	require.NoError(t, err)
	assert.Equal(t, int64(1023), id)

	// 1024 is out of range: the caller gets 0 and the counter resets
	id, err = AssignWorkerID(ctx, client, "worker")
	require.NoError(t, err)
	assert.Equal(t, int64(0), id)

	stored, err := mr.Get("worker")
	require.NoError(t, err)
	assert.Equal(t, "0", stored)

	id, err = AssignWorkerID(ctx, client, "worker")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

func TestAssignWorkerID_StoreError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectEval(workerScript, []string{"worker"}, MaxWorkerID+1, 0).SetErr(errors.New("connection refused"))

	_, err := AssignWorkerID(context.Background(), db, "")
	assert.ErrorContains(t, err, "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewFromRedis_FallsBackToRandomWorker(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectEval(workerScript, []string{"ids"}, MaxWorkerID+1, 0).SetErr(errors.New("timeout"))

	s := NewFromRedis(context.Background(), db, "ids")
	require.NotNil(t, s)
	assert.GreaterOrEqual(t, s.WorkerID(), int64(0))
	assert.LessOrEqual(t, s.WorkerID(), int64(MaxWorkerID))

	_, err := s.NextID()
	assert.NoError(t, err)
}

func TestNewFromRedis_UsesAssignedWorker(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectEval(workerScript, []string{"worker"}, MaxWorkerID+1, 0).SetVal(int64(17))

	s := NewFromRedis(context.Background(), db, "worker")
	assert.Equal(t, int64(17), s.WorkerID())
	assert.NoError(t, mock.ExpectationsWereMet())
}
