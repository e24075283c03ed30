package idgen

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yadunandan004/datacore/singleton"
)

func resetDefault(t *testing.T) {
	t.Helper()
	singleton.Reset[processGenerator, *Snowflake]()
	installed.Store(false)
	t.Cleanup(func() {
		singleton.Reset[processGenerator, *Snowflake]()
		installed.Store(false)
	})
}

func TestDefault_IsSharedUntilInstalled(t *testing.T) {
	resetDefault(t)

	first := Default()
	require.NotNil(t, first)
	assert.False(t, Installed())
	assert.Same(t, first, Default())
	assert.LessOrEqual(t, first.WorkerID(), int64(MaxWorkerID))

	id, err := NextID()
	require.NoError(t, err)
	n, err := strconv.ParseInt(id, 10, 64)
	require.NoError(t, err)
	assert.Equal(t, first.WorkerID(), first.Decompose(n).WorkerID)
}

func TestInstallFromRedis(t *testing.T) {
	resetDefault(t)
	_, client := newMiniRedis(t)

	_ = Default()
	require.False(t, Installed())
	got := InstallFromRedis(context.Background(), client, "worker")
	assert.True(t, Installed())
	assert.Equal(t, int64(1), got.WorkerID())
	assert.Same(t, got, Default())

	id, err := SnowflakeStrategy{}.Next(context.Background())
	require.NoError(t, err)
	n, err := strconv.ParseInt(id, 10, 64)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Decompose(n).WorkerID)

	Install(nil)
	assert.Same(t, got, Default())
}
