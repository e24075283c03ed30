package redisdb

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yadunandan004/datacore/config"
)

// ParseRedisURL accepts bare host:port addresses as well as redis:// and
// rediss:// URLs, including the password-only form redis://secret@host:6379.
func ParseRedisURL(rawURL string) (*redis.Options, error) {
	if strings.Count(rawURL, ":") == 1 && !strings.Contains(rawURL, "@") && !strings.Contains(rawURL, "//") {
		return &redis.Options{Addr: rawURL}, nil
	}

	if strings.HasPrefix(rawURL, "redis://") && strings.Contains(rawURL, "@") {
		parts := strings.SplitN(strings.TrimPrefix(rawURL, "redis://"), "@", 2)
		if len(parts) == 2 && !strings.Contains(parts[0], ":") {
			rawURL = fmt.Sprintf("redis://:%s@%s", parts[0], parts[1])
		}
	}

	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis address %q: %w", rawURL, err)
	}
	if opts.TLSConfig != nil && opts.TLSConfig.MinVersion == 0 {
		opts.TLSConfig.MinVersion = tls.VersionTLS12
	}
	return opts, nil
}

func applyConfig(opts *redis.Options, cfg *config.RedisConfig) {
	if cfg.Password != "" && opts.Password == "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 && opts.DB == 0 {
		opts.DB = cfg.DB
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MaxRetries = cfg.MaxRetries
	opts.MinRetryBackoff = cfg.MinRetryDelay
	opts.MaxRetryBackoff = cfg.MaxRetryDelay
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.CommandTimeout > 0 {
		opts.ReadTimeout = cfg.CommandTimeout
		opts.WriteTimeout = cfg.CommandTimeout
	}
}

// NewClient builds a client for a single instance.
func NewClient(addr string, cfg *config.RedisConfig) (redis.UniversalClient, error) {
	opts, err := ParseRedisURL(addr)
	if err != nil {
		return nil, err
	}
	applyConfig(opts, cfg)
	return redis.NewClient(opts), nil
}

// NewClients builds one client per configured instance. The instances are
// independent: the lock uses them for quorum, the id generator uses the first.
// cfg.URL, when set, is prepended to cfg.Addrs.
func NewClients(cfg *config.RedisConfig) ([]redis.UniversalClient, error) {
	addrs := cfg.Addrs
	if cfg.URL != "" {
		addrs = append([]string{cfg.URL}, addrs...)
	}
	if len(addrs) == 0 {
		return nil, errors.New("redis addresses list cannot be empty")
	}

	clients := make([]redis.UniversalClient, 0, len(addrs))
	for _, addr := range addrs {
		client, err := NewClient(addr, cfg)
		if err != nil {
			Close(clients)
			return nil, err
		}
		clients = append(clients, client)
	}
	return clients, nil
}

// Ping checks every client within timeout and reports all failures.
func Ping(ctx context.Context, clients []redis.UniversalClient, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var errs []error
	for i, client := range clients {
		if err := client.Ping(ctx).Err(); err != nil {
			errs = append(errs, fmt.Errorf("redis[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func Close(clients []redis.UniversalClient) error {
	var errs []error
	for _, client := range clients {
		if err := client.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
