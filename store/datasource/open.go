package datasource

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/yadunandan004/datacore/config"
	"github.com/yadunandan004/datacore/store/mysql"
	"github.com/yadunandan004/datacore/store/postgres"
)

type opener func(ctx context.Context, node config.NodeConfig, pool config.PoolConfig) (*sql.DB, error)

func openerFor(driver string) (opener, error) {
	switch driver {
	case config.DriverPostgres:
		return postgres.Open, nil
	case config.DriverMySQL:
		return mysql.Open, nil
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
}

// Open builds every pool described by cfg. Pools opened before a failure are
// closed again.
func Open(ctx context.Context, cfg *config.DataSourceConfig) (*Router, error) {
	open, err := openerFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	write, err := open(ctx, cfg.Write, cfg.Pool)
	if err != nil {
		return nil, fmt.Errorf("write pool: %w", err)
	}

	reads := make([]*sql.DB, 0, len(cfg.Read))
	for i, node := range cfg.Read {
		db, err := open(ctx, node, cfg.Pool)
		if err != nil {
			NewRouter(cfg.Driver, write, reads...).Close()
			return nil, fmt.Errorf("read pool %d: %w", i+1, err)
		}
		reads = append(reads, db)
	}
	return NewRouter(cfg.Driver, write, reads...), nil
}
