package singleton

import (
	"reflect"
	"sync"
)

// Builder makes the shared value for its own type. Builders are used as zero
// values, so whatever configuration they need has to come from elsewhere.
type Builder[U any] interface {
	Build() U
}

type entry struct {
	once     sync.Once
	mu       sync.RWMutex
	instance any
}

var entries sync.Map

func load[B Builder[T], T any]() *entry {
	key := reflect.TypeOf((*B)(nil)).Elem()
	e, _ := entries.LoadOrStore(key, &entry{})
	return e.(*entry)
}

// Inject returns the value of B, building it on first use. Build runs at
// most once per builder type unless Reset is called.
func Inject[B Builder[T], T any]() T {
	e := load[B, T]()
	e.once.Do(func() {
		var b B
		v := b.Build()
		e.mu.Lock()
		e.instance = v
		e.mu.Unlock()
	})
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, _ := e.instance.(T)
	return v
}

// GetInstance returns the value of B without building it.
func GetInstance[B Builder[T], T any]() (T, bool) {
	var zero T
	v, ok := entries.Load(reflect.TypeOf((*B)(nil)).Elem())
	if !ok {
		return zero, false
	}
	e := v.(*entry)
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.instance == nil {
		return zero, false
	}
	inst, ok := e.instance.(T)
	return inst, ok
}

// Replace installs v as the value of B. A later Inject returns v and never
// calls Build.
func Replace[B Builder[T], T any](v T) {
	e := load[B, T]()
	e.once.Do(func() {})
	e.mu.Lock()
	e.instance = v
	e.mu.Unlock()
}

// Reset forgets the value of B; the next Inject builds it again.
func Reset[B Builder[T], T any]() {
	entries.Delete(reflect.TypeOf((*B)(nil)).Elem())
}
