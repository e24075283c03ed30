package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/yadunandan004/datacore/config"
)

// ErrDockerUnavailable is returned when no docker daemon can be reached.
// Integration tests skip on it.
var ErrDockerUnavailable = errors.New("docker daemon is not available")

// MockCluster is a single postgres container exposed as one write pool and
// readCount read pools. The read pools point at the same server, which is
// enough to exercise routing without replication lag.
type MockCluster struct {
	Container testcontainers.Container
	Node      config.NodeConfig
	Pool      config.PoolConfig
	WriteDB   *sql.DB
	ReadDBs   []*sql.DB
}

// dockerProvider turns the panic testcontainers raises when no docker host
// can be found into an error.
func dockerProvider() (provider *testcontainers.DockerProvider, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return testcontainers.NewDockerProvider()
}

// NewMockCluster starts postgres and opens the pools.
func NewMockCluster(readCount int, schema ...string) (*MockCluster, error) {
	ctx := context.Background()

	provider, err := dockerProvider()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDockerUnavailable, err)
	}
	if err := provider.Health(ctx); err != nil {
		provider.Close()
		return nil, fmt.Errorf("%w: %v", ErrDockerUnavailable, err)
	}
	provider.Close()

	node := config.NodeConfig{
		User:     "testuser",
		Password: "testpass",
		DBName:   "testdb",
		SSLMode:  "disable",
	}

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     node.User,
			"POSTGRES_PASSWORD": node.Password,
			"POSTGRES_DB":       node.DBName,
		},
		Cmd: []string{"postgres", "-c", "max_connections=200"},
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(120*time.Second),
			wait.ForListeningPort("5432/tcp"),
		),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	cluster := &MockCluster{
		Container: container,
		Pool: config.PoolConfig{
			Min:            2,
			Max:            10,
			AcquireTimeout: 10 * time.Second,
			IdleTimeout:    30 * time.Second,
		},
	}

	host, err := container.Host(ctx)
	if err != nil {
		cluster.Cleanup()
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}
	mappedPort, err := container.MappedPort(ctx, "5432")
	if err != nil {
		cluster.Cleanup()
		return nil, fmt.Errorf("failed to get mapped port: %w", err)
	}
	node.Host = host
	node.Port = mappedPort.Int()
	cluster.Node = node

	if cluster.WriteDB, err = Open(ctx, node, cluster.Pool); err != nil {
		cluster.Cleanup()
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}
	for i := 0; i < readCount; i++ {
		db, err := Open(ctx, node, cluster.Pool)
		if err != nil {
			cluster.Cleanup()
			return nil, fmt.Errorf("failed to open read pool %d: %w", i+1, err)
		}
		cluster.ReadDBs = append(cluster.ReadDBs, db)
	}

	if len(schema) > 0 {
		if err := cluster.Apply(ctx, schema...); err != nil {
			cluster.Cleanup()
			return nil, err
		}
	}

	log.Printf("[TEST] postgres ready at %s:%d with %d read pool(s)", host, node.Port, readCount)
	return cluster, nil
}

// Apply runs the statements in order as one script on the write pool.
func (c *MockCluster) Apply(ctx context.Context, statements ...string) error {
	var script strings.Builder
	script.WriteString("SET client_min_messages TO WARNING;\n")
	for _, stmt := range statements {
		script.WriteString(stmt)
		if !strings.HasSuffix(strings.TrimSpace(stmt), ";") {
			script.WriteString(";")
		}
		script.WriteString("\n")
	}
	if _, err := c.WriteDB.ExecContext(ctx, script.String()); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Cleanup closes the pools and terminates the container.
func (c *MockCluster) Cleanup() {
	for _, db := range c.ReadDBs {
		db.Close()
	}
	if c.WriteDB != nil {
		c.WriteDB.Close()
	}
	if c.Container != nil {
		c.Container.Terminate(context.Background())
	}
}
