package orm

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/google/uuid"
)

var (
	valuerType     = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
	scannerType    = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
	uuidType       = reflect.TypeOf(uuid.UUID{})
	timeType       = reflect.TypeOf(time.Time{})
	rawMessageType = reflect.TypeOf(json.RawMessage{})
)

// TypeHandler converts one family of Go field types to driver values and
// back. Fields passed to ScanTarget are addressable.
type TypeHandler interface {
	CanHandle(typ reflect.Type) bool
	ExtractValue(field reflect.Value) (driver.Value, error)
	ScanTarget(field reflect.Value) sql.Scanner
}

var typeHandlers = []TypeHandler{
	&PrimitiveHandler{},
	&PointerHandler{},
	&ValuerHandler{},
	&SpecialTypeHandler{},
	&RawMessageHandler{},
	&SliceHandler{},
	&JSONHandler{},
	&FallbackHandler{},
}

func handlerFor(typ reflect.Type) TypeHandler {
	for _, handler := range typeHandlers {
		if handler.CanHandle(typ) {
			return handler
		}
	}
	return &FallbackHandler{}
}

func extractFieldValue(field reflect.Value) (driver.Value, error) {
	return handlerFor(field.Type()).ExtractValue(field)
}

func createScanTarget(field reflect.Value) sql.Scanner {
	return handlerFor(field.Type()).ScanTarget(field)
}

type scanFunc func(src interface{}) error

func (f scanFunc) Scan(src interface{}) error {
	return f(src)
}

type PrimitiveHandler struct{}

func (h *PrimitiveHandler) CanHandle(typ reflect.Type) bool {
	switch typ.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return !typ.Implements(valuerType)
	}
	return false
}

func (h *PrimitiveHandler) ExtractValue(field reflect.Value) (driver.Value, error) {
	switch field.Kind() {
	case reflect.String:
		return field.String(), nil
	case reflect.Bool:
		return field.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return field.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(field.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return field.Float(), nil
	}
	return nil, fmt.Errorf("unsupported primitive type: %v", field.Type())
}

func (h *PrimitiveHandler) ScanTarget(field reflect.Value) sql.Scanner {
	return scanFunc(func(src interface{}) error {
		return scanPrimitive(field, src)
	})
}

func scanPrimitive(field reflect.Value, src interface{}) error {
	if src == nil {
		field.Set(reflect.Zero(field.Type()))
		return nil
	}
	typ := field.Type()
	switch field.Kind() {
	case reflect.String:
		switch v := src.(type) {
		case string:
			field.SetString(v)
		case []byte:
			field.SetString(string(v))
		case time.Time:
			field.SetString(v.Format(time.RFC3339Nano))
		default:
			field.SetString(fmt.Sprint(v))
		}
	case reflect.Bool:
		switch v := src.(type) {
		case bool:
			field.SetBool(v)
		case int64:
			field.SetBool(v != 0)
		case []byte, string:
			b, err := strconv.ParseBool(text(v))
			if err != nil {
				return fmt.Errorf("cannot scan %q into %v: %w", text(v), typ, err)
			}
			field.SetBool(b)
		default:
			return fmt.Errorf("cannot scan %T into %v", src, typ)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, ok := toInt64(src)
		if !ok {
			return fmt.Errorf("cannot scan %T into %v", src, typ)
		}
		if field.OverflowInt(n) {
			return fmt.Errorf("value %d overflows %v", n, typ)
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, ok := toInt64(src)
		if !ok || n < 0 {
			return fmt.Errorf("cannot scan %v into %v", src, typ)
		}
		field.SetUint(uint64(n))
	case reflect.Float32, reflect.Float64:
		switch v := src.(type) {
		case float64:
			field.SetFloat(v)
		case float32:
			field.SetFloat(float64(v))
		case int64:
			field.SetFloat(float64(v))
		case []byte, string:
			f, err := strconv.ParseFloat(text(v), 64)
			if err != nil {
				return fmt.Errorf("cannot scan %q into %v: %w", text(v), typ, err)
			}
			field.SetFloat(f)
		default:
			return fmt.Errorf("cannot scan %T into %v", src, typ)
		}
	default:
		return fmt.Errorf("unsupported primitive type: %v", typ)
	}
	return nil
}

type PointerHandler struct{}

func (h *PointerHandler) CanHandle(typ reflect.Type) bool {
	return typ.Kind() == reflect.Ptr
}

func (h *PointerHandler) ExtractValue(field reflect.Value) (driver.Value, error) {
	if field.IsNil() {
		return nil, nil
	}
	return extractFieldValue(field.Elem())
}

func (h *PointerHandler) ScanTarget(field reflect.Value) sql.Scanner {
	return scanFunc(func(src interface{}) error {
		if src == nil {
			field.Set(reflect.Zero(field.Type()))
			return nil
		}
		elem := reflect.New(field.Type().Elem())
		if err := createScanTarget(elem.Elem()).Scan(src); err != nil {
			return err
		}
		field.Set(elem)
		return nil
	})
}

// ValuerHandler covers types that bring their own driver conversion, such
// as uuid.UUID or sql.NullString.
type ValuerHandler struct{}

func (h *ValuerHandler) CanHandle(typ reflect.Type) bool {
	if typ.Kind() == reflect.Slice {
		return false
	}
	return typ.Implements(valuerType) || reflect.PointerTo(typ).Implements(valuerType)
}

func (h *ValuerHandler) ExtractValue(field reflect.Value) (driver.Value, error) {
	return valuerValue(field)
}

func (h *ValuerHandler) ScanTarget(field reflect.Value) sql.Scanner {
	return selfScanner(field)
}

func valuerValue(field reflect.Value) (driver.Value, error) {
	if field.Type().Implements(valuerType) {
		return field.Interface().(driver.Valuer).Value()
	}
	if field.CanAddr() {
		return field.Addr().Interface().(driver.Valuer).Value()
	}
	ptr := reflect.New(field.Type())
	ptr.Elem().Set(field)
	return ptr.Interface().(driver.Valuer).Value()
}

// selfScanner uses the field's own Scan method when it has one.
func selfScanner(field reflect.Value) sql.Scanner {
	if reflect.PointerTo(field.Type()).Implements(scannerType) {
		return field.Addr().Interface().(sql.Scanner)
	}
	return assignScanner(field)
}

type SpecialTypeHandler struct{}

func (h *SpecialTypeHandler) CanHandle(typ reflect.Type) bool {
	return typ == uuidType || typ == timeType
}

func (h *SpecialTypeHandler) ExtractValue(field reflect.Value) (driver.Value, error) {
	switch field.Type() {
	case uuidType:
		return field.Interface().(uuid.UUID).String(), nil
	case timeType:
		return field.Interface().(time.Time), nil
	}
	return nil, fmt.Errorf("unsupported special type: %v", field.Type())
}

func (h *SpecialTypeHandler) ScanTarget(field reflect.Value) sql.Scanner {
	if field.Type() == uuidType {
		return field.Addr().Interface().(*uuid.UUID)
	}
	return scanFunc(func(src interface{}) error {
		if src == nil {
			field.Set(reflect.Zero(timeType))
			return nil
		}
		t, err := toTime(src)
		if err != nil {
			return err
		}
		field.Set(reflect.ValueOf(t))
		return nil
	})
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func toTime(src interface{}) (time.Time, error) {
	switch v := src.(type) {
	case time.Time:
		return v, nil
	case []byte, string:
		s := text(v)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("cannot parse %q as time", s)
	case int64:
		return time.UnixMilli(v), nil
	}
	return time.Time{}, fmt.Errorf("cannot scan %T into time.Time", src)
}

type RawMessageHandler struct{}

func (h *RawMessageHandler) CanHandle(typ reflect.Type) bool {
	return typ == rawMessageType
}

func (h *RawMessageHandler) ExtractValue(field reflect.Value) (driver.Value, error) {
	raw := field.Interface().(json.RawMessage)
	if raw == nil {
		return []byte("null"), nil
	}
	return []byte(raw), nil
}

func (h *RawMessageHandler) ScanTarget(field reflect.Value) sql.Scanner {
	return scanFunc(func(src interface{}) error {
		switch v := src.(type) {
		case nil:
			field.Set(reflect.Zero(rawMessageType))
		case []byte:
			b := make([]byte, len(v))
			copy(b, v)
			field.Set(reflect.ValueOf(json.RawMessage(b)))
		case string:
			field.Set(reflect.ValueOf(json.RawMessage(v)))
		default:
			return fmt.Errorf("cannot scan type %T into json.RawMessage", src)
		}
		return nil
	})
}

// SliceHandler covers slice types implementing driver.Valuer, such as
// pq.StringArray.
type SliceHandler struct{}

func (h *SliceHandler) CanHandle(typ reflect.Type) bool {
	if typ.Kind() != reflect.Slice {
		return false
	}
	return typ.Implements(valuerType) || reflect.PointerTo(typ).Implements(valuerType)
}

func (h *SliceHandler) ExtractValue(field reflect.Value) (driver.Value, error) {
	return valuerValue(field)
}

func (h *SliceHandler) ScanTarget(field reflect.Value) sql.Scanner {
	return selfScanner(field)
}

// JSONHandler stores slices, maps and structs as JSON text.
type JSONHandler struct{}

func (h *JSONHandler) CanHandle(typ reflect.Type) bool {
	switch typ.Kind() {
	case reflect.Slice:
		return typ.Elem().Kind() != reflect.Uint8
	case reflect.Map:
		return true
	case reflect.Struct:
		return typ != uuidType && typ != timeType
	}
	return false
}

func (h *JSONHandler) ExtractValue(field reflect.Value) (driver.Value, error) {
	if field.IsZero() {
		switch field.Kind() {
		case reflect.Slice:
			return []byte("[]"), nil
		case reflect.Map:
			return []byte("{}"), nil
		}
	}
	b, err := json.Marshal(field.Interface())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %v: %w", field.Type(), err)
	}
	return b, nil
}

func (h *JSONHandler) ScanTarget(field reflect.Value) sql.Scanner {
	return scanFunc(func(src interface{}) error {
		typ := field.Type()
		if src == nil {
			switch typ.Kind() {
			case reflect.Slice:
				field.Set(reflect.MakeSlice(typ, 0, 0))
			case reflect.Map:
				field.Set(reflect.MakeMap(typ))
			default:
				field.Set(reflect.Zero(typ))
			}
			return nil
		}
		var b []byte
		switch v := src.(type) {
		case []byte:
			b = v
		case string:
			b = []byte(v)
		default:
			return fmt.Errorf("cannot scan type %T into JSON field", src)
		}
		target := reflect.New(typ)
		if err := json.Unmarshal(b, target.Interface()); err != nil {
			return fmt.Errorf("failed to unmarshal into %v: %w", typ, err)
		}
		field.Set(target.Elem())
		return nil
	})
}

type FallbackHandler struct{}

func (h *FallbackHandler) CanHandle(typ reflect.Type) bool {
	return true
}

func (h *FallbackHandler) ExtractValue(field reflect.Value) (driver.Value, error) {
	if field.Kind() == reflect.Slice && field.IsNil() {
		return nil, nil
	}
	return field.Interface(), nil
}

func (h *FallbackHandler) ScanTarget(field reflect.Value) sql.Scanner {
	return assignScanner(field)
}

func assignScanner(field reflect.Value) sql.Scanner {
	return scanFunc(func(src interface{}) error {
		if src == nil {
			field.Set(reflect.Zero(field.Type()))
			return nil
		}
		v := reflect.ValueOf(src)
		switch {
		case v.Type().AssignableTo(field.Type()):
			field.Set(v)
		case v.Type().ConvertibleTo(field.Type()):
			field.Set(v.Convert(field.Type()))
		default:
			return fmt.Errorf("cannot scan %T into %v", src, field.Type())
		}
		return nil
	})
}

func text(v interface{}) string {
	switch s := v.(type) {
	case []byte:
		return string(s)
	case string:
		return s
	}
	return fmt.Sprint(v)
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case uint32:
		return int64(n), true
	case float64:
		return int64(n), true
	case []byte, string:
		parsed, err := strconv.ParseInt(text(n), 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(text(n), 64)
			if ferr != nil {
				return 0, false
			}
			return int64(f), true
		}
		return parsed, true
	}
	return 0, false
}
