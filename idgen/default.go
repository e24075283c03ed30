package idgen

import (
	"context"
	"math/rand/v2"
	"sync/atomic"

	"github.com/redis/go-redis/v9"

	"github.com/yadunandan004/datacore/logger"
	"github.com/yadunandan004/datacore/singleton"
)

var installed atomic.Bool

type processGenerator struct{}

func (processGenerator) Build() *Snowflake {
	s, _ := NewSnowflake(rand.Int64N(MaxWorkerID + 1))
	logger.LogWarn(context.Background(), "snowflake generator used before a worker id was installed, issuing as random worker %d", s.WorkerID())
	return s
}

// Default returns the process-wide generator.
//
// Call InstallFromRedis (or Install) during startup, before anything issues
// ids. Until then Default issues as a random worker, which can collide with
// another process and may step backwards in time at the switch.
func Default() *Snowflake {
	return singleton.Inject[processGenerator, *Snowflake]()
}

// Installed reports whether a generator has been installed explicitly.
func Installed() bool {
	return installed.Load()
}

// Install makes s the process-wide generator.
func Install(s *Snowflake) {
	if s != nil {
		singleton.Replace[processGenerator](s)
		installed.Store(true)
	}
}

// InstallFromRedis assigns the worker id through redis and installs the
// resulting generator. See NewFromRedis for the fallback.
func InstallFromRedis(ctx context.Context, client redis.Cmdable, key string, opts ...Option) *Snowflake {
	s := NewFromRedis(ctx, client, key, opts...)
	Install(s)
	return s
}

// NextID issues an id from the process-wide generator.
func NextID() (string, error) {
	return Default().NextID()
}
