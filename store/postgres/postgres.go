package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	"github.com/yadunandan004/datacore/config"
	"github.com/yadunandan004/datacore/store"
)

const DefaultPort = 5432

// BuildDSN renders a lib/pq keyword DSN. node.DSN wins when set.
func BuildDSN(node config.NodeConfig) string {
	if node.DSN != "" {
		return node.DSN
	}
	port := node.Port
	if port == 0 {
		port = DefaultPort
	}
	sslMode := node.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	parts := []string{
		fmt.Sprintf("host=%s", node.Host),
		fmt.Sprintf("port=%d", port),
	}
	if node.User != "" {
		parts = append(parts, fmt.Sprintf("user=%s", quote(node.User)))
	}
	if node.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", quote(node.Password)))
	}
	if node.DBName != "" {
		parts = append(parts, fmt.Sprintf("dbname=%s", quote(node.DBName)))
	}
	parts = append(parts, fmt.Sprintf("sslmode=%s", sslMode))
	if node.SearchPath != "" {
		parts = append(parts, fmt.Sprintf("search_path=%s", quote(node.SearchPath)))
	}
	return strings.Join(parts, " ")
}

// quote escapes a keyword value that contains spaces or quotes.
func quote(v string) string {
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

// Open builds a postgres pool for node.
func Open(ctx context.Context, node config.NodeConfig, pool config.PoolConfig) (*sql.DB, error) {
	return store.OpenPool(ctx, config.DriverPostgres, BuildDSN(node), pool)
}
