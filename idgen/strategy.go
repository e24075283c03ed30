package idgen

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"

	"github.com/yadunandan004/datacore/metrics"
)

// Strategy produces primary keys for new rows. An empty id means the
// database assigns one.
type Strategy interface {
	Name() string
	Next(ctx context.Context) (string, error)
}

// SnowflakeStrategy issues snowflake ids. A nil Generator uses the
// process-wide one.
type SnowflakeStrategy struct {
	Generator *Snowflake
}

func generatorOrDefault(s *Snowflake) *Snowflake {
	if s == nil {
		return Default()
	}
	return s
}

func (SnowflakeStrategy) Name() string { return "snowflake" }

func (s SnowflakeStrategy) Next(ctx context.Context) (string, error) {
	id, err := generatorOrDefault(s.Generator).NextID()
	if err != nil {
		return "", err
	}
	metrics.RecordIDIssued(ctx, s.Name())
	return id, nil
}

// UniqueStrategy is the md5 of a snowflake id joined with a uuid.
type UniqueStrategy struct {
	Generator *Snowflake
}

func (UniqueStrategy) Name() string { return "unique" }

func (s UniqueStrategy) Next(ctx context.Context) (string, error) {
	id, err := generatorOrDefault(s.Generator).NextID()
	if err != nil {
		return "", err
	}
	sum := md5.Sum([]byte(id + uuid.NewString()))
	metrics.RecordIDIssued(ctx, s.Name())
	return hex.EncodeToString(sum[:]), nil
}

type UUID struct{}

func (UUID) Name() string { return "uuid" }

func (u UUID) Next(ctx context.Context) (string, error) {
	metrics.RecordIDIssued(ctx, u.Name())
	return uuid.NewString(), nil
}

// UUIDPure is a uuid without dashes.
type UUIDPure struct{}

func (UUIDPure) Name() string { return "uuid_pure" }

func (u UUIDPure) Next(ctx context.Context) (string, error) {
	metrics.RecordIDIssued(ctx, u.Name())
	return strings.ReplaceAll(uuid.NewString(), "-", ""), nil
}

type AutoIncrement struct{}

func (AutoIncrement) Name() string { return "auto_increment" }

func (AutoIncrement) Next(context.Context) (string, error) {
	return "", nil
}
