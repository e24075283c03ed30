package mysql

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/yadunandan004/datacore/config"
)

func TestBuildDSN(t *testing.T) {
	dsn := BuildDSN(config.NodeConfig{
		Host:     "db.local",
		User:     "app",
		Password: "secret",
		DBName:   "core",
	}, config.PoolConfig{AcquireTimeout: 3 * time.Second})

	assert.Contains(t, dsn, "app:secret@tcp(db.local:3306)/core")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "timeout=3s")

	assert.Equal(t, "raw", BuildDSN(config.NodeConfig{DSN: "raw"}, config.PoolConfig{}))
}
