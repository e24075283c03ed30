package orm

import (
	"reflect"
	"sync"
)

type ModelMetadata struct {
	Type      reflect.Type
	TableName string
	Fields    []FieldMetadata
	// ByColumn and ByKey index Fields by snake_case column and by the
	// camelCase key used in result rows.
	ByColumn map[string]int
	ByKey    map[string]int
	PK       int
}

type FieldMetadata struct {
	Name            string
	Column          string
	Key             string
	Type            reflect.Type
	Index           []int
	IsPK            bool
	IsAutoIncrement bool
	handler         TypeHandler
}

// HasColumn reports whether the model maps col.
func (m *ModelMetadata) HasColumn(col string) bool {
	_, ok := m.ByColumn[col]
	return ok
}

// PKField returns the primary key field. Without a pk tag, a field mapped
// to "id" is used.
func (m *ModelMetadata) PKField() (FieldMetadata, bool) {
	if m.PK < 0 {
		return FieldMetadata{}, false
	}
	return m.Fields[m.PK], true
}

func (m *ModelMetadata) Columns() []string {
	cols := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		cols[i] = f.Column
	}
	return cols
}

type Registry struct {
	mu     sync.RWMutex
	models map[reflect.Type]*ModelMetadata
}

var (
	registry *Registry
	once     sync.Once
)

func GetRegistry() *Registry {
	once.Do(func() {
		registry = &Registry{
			models: make(map[reflect.Type]*ModelMetadata),
		}
	})
	return registry
}

func (r *Registry) GetMetadata(modelType reflect.Type) (*ModelMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	metadata, ok := r.models[modelType]
	return metadata, ok
}

func (r *Registry) IsRegistered(t reflect.Type) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.models[t]
	return exists
}

func (r *Registry) GetAllMetadata() map[reflect.Type]*ModelMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make(map[reflect.Type]*ModelMetadata, len(r.models))
	for k, v := range r.models {
		result[k] = v
	}
	return result
}

// RegisterModel parses T once and caches the result.
func RegisterModel[T any]() *ModelMetadata {
	var model T
	typ := reflect.TypeOf(model)

	r := GetRegistry()
	if metadata, ok := r.GetMetadata(typ); ok {
		return metadata
	}

	fields := parseFields(typ)
	metadata := &ModelMetadata{
		Type:      typ,
		TableName: discoverTableName(typ, model),
		Fields:    fields,
		ByColumn:  make(map[string]int, len(fields)),
		ByKey:     make(map[string]int, len(fields)),
		PK:        -1,
	}
	for i, field := range fields {
		metadata.ByColumn[field.Column] = i
		metadata.ByKey[field.Key] = i
		if field.IsPK && metadata.PK < 0 {
			metadata.PK = i
		}
	}
	if metadata.PK < 0 {
		if idx, ok := metadata.ByColumn["id"]; ok {
			metadata.PK = idx
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.models[typ]; ok {
		return existing
	}
	r.models[typ] = metadata
	return metadata
}

// GetMetadata returns T's metadata, registering T on first use.
func GetMetadata[T any]() *ModelMetadata {
	return RegisterModel[T]()
}
