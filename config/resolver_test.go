package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
database:
  driver: mysql
  write:
    host: primary.db
    port: 3306
    user: app
    dbname: core
  read:
    - host: replica-1.db
      port: 3306
    - dsn: "app@tcp(replica-2.db:3306)/core"
  pool:
    max: 20
    acquire_timeout: 1500
    idle_timeout: 45s
redis:
  addrs: [r1:6379, r2:6379, r3:6379]
lock:
  drift_factor: 0.02
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestResolver_Precedence(t *testing.T) {
	path := writeConfig(t, sampleYAML)
	resolver := NewConfigResolver(path)
	require.True(t, resolver.HasConfigFile())

	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_POOL_MIN", "3")

	// file wins over env
	assert.Equal(t, "mysql", resolver.GetString("database.driver", "DB_DRIVER", "x"))
	// env wins over default
	assert.Equal(t, 3, resolver.GetInt("database.pool.min", "DB_POOL_MIN", 10))
	// default when neither is present
	assert.Equal(t, "fallback", resolver.GetString("database.nope", "DB_NOPE", "fallback"))
}

func TestResolver_MissingFileFallsBack(t *testing.T) {
	resolver := NewConfigResolver(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.False(t, resolver.HasConfigFile())
	assert.Equal(t, 7, resolver.GetInt("a.b", "", 7))
}

func TestResolver_GetDuration(t *testing.T) {
	resolver := NewConfigResolverFromMap(map[string]interface{}{
		"ms":  1500,
		"str": "2s",
		"num": "250",
	})
	assert.Equal(t, 1500*time.Millisecond, resolver.GetDuration("ms", "", 0))
	assert.Equal(t, 2*time.Second, resolver.GetDuration("str", "", 0))
	assert.Equal(t, 250*time.Millisecond, resolver.GetDuration("num", "", 0))

	t.Setenv("SOME_TIMEOUT", "3s")
	assert.Equal(t, 3*time.Second, resolver.GetDuration("missing", "SOME_TIMEOUT", 0))
}

func TestResolver_WithPrefix(t *testing.T) {
	t.Setenv("DATACORE_REDIS_DB", "4")
	resolver := NewConfigResolverWithPrefix("", "DATACORE_")
	assert.Equal(t, 4, resolver.GetInt("redis.db", "REDIS_DB", 0))
}

func TestGetDataSourceConfig(t *testing.T) {
	resolver := NewConfigResolver(writeConfig(t, sampleYAML))
	cfg := GetDataSourceConfig(resolver)

	assert.Equal(t, DriverMySQL, cfg.Driver)
	assert.Equal(t, "primary.db", cfg.Write.Host)
	assert.Equal(t, 3306, cfg.Write.Port)
	require.Len(t, cfg.Read, 2)
	assert.Equal(t, "replica-1.db", cfg.Read[0].Host)
	assert.Equal(t, "app@tcp(replica-2.db:3306)/core", cfg.Read[1].DSN)
	assert.Equal(t, 20, cfg.Pool.Max)
	assert.Equal(t, 10, cfg.Pool.Min)
	assert.Equal(t, 1500*time.Millisecond, cfg.Pool.AcquireTimeout)
	assert.Equal(t, 45*time.Second, cfg.Pool.IdleTimeout)
	assert.Equal(t, 5*time.Second, cfg.StatementTimeout)
}

func TestGetDataSourceConfig_ReadDSNsFromEnv(t *testing.T) {
	t.Setenv("DB_READ_DSNS", "host=a dbname=x; host=b dbname=x")
	cfg := GetDataSourceConfig(NewConfigResolver(""))
	require.Len(t, cfg.Read, 2)
	assert.Equal(t, "host=b dbname=x", cfg.Read[1].DSN)
}

func TestGetRedisAndLockConfig(t *testing.T) {
	resolver := NewConfigResolver(writeConfig(t, sampleYAML))

	redisCfg := GetRedisConfig(resolver)
	assert.Equal(t, []string{"r1:6379", "r2:6379", "r3:6379"}, redisCfg.Addrs)
	assert.Equal(t, 5*time.Second, redisCfg.CommandTimeout)
	assert.Equal(t, 500*time.Millisecond, redisCfg.MinRetryDelay)

	lockCfg := GetLockConfig(resolver)
	assert.InDelta(t, 0.02, lockCfg.DriftFactor, 1e-9)

	snow := GetSnowflakeConfig(resolver)
	assert.Equal(t, int64(1288834974657), snow.Epoch)
	assert.Equal(t, "worker", snow.WorkerKey)
}
