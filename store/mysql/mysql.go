package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	driver "github.com/go-sql-driver/mysql"
	"github.com/yadunandan004/datacore/config"
	"github.com/yadunandan004/datacore/store"
)

const DefaultPort = 3306

// BuildDSN renders a go-sql-driver DSN. node.DSN wins when set.
func BuildDSN(node config.NodeConfig, pool config.PoolConfig) string {
	if node.DSN != "" {
		return node.DSN
	}
	port := node.Port
	if port == 0 {
		port = DefaultPort
	}

	cfg := driver.NewConfig()
	cfg.User = node.User
	cfg.Passwd = node.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", node.Host, port)
	cfg.DBName = node.DBName
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	if pool.AcquireTimeout > 0 {
		cfg.Timeout = pool.AcquireTimeout
	}
	return cfg.FormatDSN()
}

// Open builds a mysql pool for node.
func Open(ctx context.Context, node config.NodeConfig, pool config.PoolConfig) (*sql.DB, error) {
	return store.OpenPool(ctx, config.DriverMySQL, BuildDSN(node, pool), pool)
}
