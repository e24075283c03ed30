package idgen

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/redis/go-redis/v9"

	"github.com/yadunandan004/datacore/logger"
)

const DefaultWorkerKey = "worker"

// workerScript hands out worker ids round robin across processes.
const workerScript = `local val = redis.call("incr", KEYS[1])
if val >= tonumber(ARGV[1]) then
  redis.call("set", KEYS[1], ARGV[2])
end
return val`

// AssignWorkerID draws the next worker id from a shared counter in one round
// trip. Counter values past the id space map to 0.
func AssignWorkerID(ctx context.Context, client redis.Cmdable, key string) (int64, error) {
	if key == "" {
		key = DefaultWorkerKey
	}
	val, err := client.Eval(ctx, workerScript, []string{key}, MaxWorkerID+1, 0).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to assign worker id: %w", err)
	}
	if val < 0 || val > MaxWorkerID {
		return 0, nil
	}
	return val, nil
}

// NewFromRedis builds a generator whose worker id comes from redis. When the
// store is unreachable a random worker id is used, so startup never blocks
// on redis.
func NewFromRedis(ctx context.Context, client redis.Cmdable, key string, opts ...Option) *Snowflake {
	workerID, err := AssignWorkerID(ctx, client, key)
	if err != nil {
		workerID = rand.Int64N(MaxWorkerID + 1)
		logger.LogWarn(ctx, "worker id assignment failed, using random worker %d: %v", workerID, err)
	}
	s, _ := NewSnowflake(workerID, opts...)
	return s
}
