package orm

import (
	"errors"
	"fmt"
	"sync"
)

var ErrInvalidTableName = errors.New("orm: split key produced no table index")

// SplitFunc maps a routing key to a table index, for example a tenant
// bucket or a month. An empty index is rejected.
type SplitFunc[K any] func(key K) string

// SplitModel shards T over tables of one database named
// <table><sep><index>. All shards share the proxy, so a transaction may span
// several of them.
type SplitModel[T any, K any] struct {
	proxy *Proxy
	table string
	sep   string
	split SplitFunc[K]
	opts  []ModelOption

	mu     sync.RWMutex
	models map[string]*Model[T]
}

type SplitOption func(*splitOptions)

type splitOptions struct {
	table string
	sep   string
	model []ModelOption
}

// WithSplitSeparator sets the text between the base table and the index.
// The default is "_".
func WithSplitSeparator(sep string) SplitOption {
	return func(o *splitOptions) {
		o.sep = sep
	}
}

// WithBaseTable overrides the base name derived from T.
func WithBaseTable(table string) SplitOption {
	return func(o *splitOptions) {
		o.table = table
	}
}

// WithShardOptions passes model options to every shard.
func WithShardOptions(opts ...ModelOption) SplitOption {
	return func(o *splitOptions) {
		o.model = append(o.model, opts...)
	}
}

func NewSplitModel[T any, K any](proxy *Proxy, split SplitFunc[K], opts ...SplitOption) *SplitModel[T, K] {
	o := &splitOptions{sep: "_"}
	for _, opt := range opts {
		opt(o)
	}
	if o.table == "" {
		o.table = GetMetadata[T]().TableName
	}
	return &SplitModel[T, K]{
		proxy:  proxy,
		table:  o.table,
		sep:    o.sep,
		split:  split,
		opts:   o.model,
		models: make(map[string]*Model[T]),
	}
}

// TableFor returns the shard table for key.
func (s *SplitModel[T, K]) TableFor(key K) (string, error) {
	if s.split == nil {
		return "", fmt.Errorf("%w: no split func", ErrInvalidTableName)
	}
	index := s.split(key)
	if index == "" {
		return "", fmt.Errorf("%w: %v", ErrInvalidTableName, key)
	}
	return s.table + s.sep + index, nil
}

// Split returns the model bound to key's shard. Models are built once per
// shard table and reused.
func (s *SplitModel[T, K]) Split(key K) (*Model[T], error) {
	table, err := s.TableFor(key)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	m, ok := s.models[table]
	s.mu.RUnlock()
	if ok {
		return m, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.models[table]; ok {
		return m, nil
	}
	opts := append(append([]ModelOption(nil), s.opts...), WithTableName(table))
	m = NewModel[T](s.proxy, opts...)
	s.models[table] = m
	return m, nil
}

// Tables lists the shard tables built so far.
func (s *SplitModel[T, K]) Tables() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.models))
	for t := range s.models {
		out = append(out, t)
	}
	return out
}
