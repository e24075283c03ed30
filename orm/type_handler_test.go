package orm

import (
	"database/sql"
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testStruct struct {
	Field1 string `json:"field1"`
	Field2 int    `json:"field2"`
}

type testNestedStruct struct {
	Name   string     `json:"name"`
	Nested testStruct `json:"nested"`
}

type status string

func fieldOf(ptr interface{}) reflect.Value {
	return reflect.ValueOf(ptr).Elem()
}

func TestJSONHandler_RoundTrip(t *testing.T) {
	cases := []struct {
		name string
		in   interface{}
		out  interface{}
	}{
		{"slice of structs", &[]testStruct{{"a", 1}, {"b", 2}}, &[]testStruct{}},
		{"map of floats", &map[string]float64{"x": 1.5, "y": 2.5}, &map[string]float64{}},
		{"nested struct", &testNestedStruct{Name: "p", Nested: testStruct{"n", 42}}, &testNestedStruct{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := &JSONHandler{}
			src := fieldOf(tc.in)
			require.True(t, handler.CanHandle(src.Type()))

			value, err := handler.ExtractValue(src)
			require.NoError(t, err)
			b, ok := value.([]byte)
			require.True(t, ok)

			require.NoError(t, handler.ScanTarget(fieldOf(tc.out)).Scan(string(b)))
			assert.Equal(t, src.Interface(), fieldOf(tc.out).Interface())
		})
	}
}

func TestJSONHandler_EmptyValues(t *testing.T) {
	handler := &JSONHandler{}

	var s []testStruct
	v, err := handler.ExtractValue(fieldOf(&s))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(v.([]byte)))

	m := map[string]interface{}{}
	v, err = handler.ExtractValue(fieldOf(&m))
	require.NoError(t, err)
	assert.Equal(t, "{}", string(v.([]byte)))

	var dest map[string]interface{}
	require.NoError(t, handler.ScanTarget(fieldOf(&dest)).Scan(nil))
	assert.NotNil(t, dest)
}

func TestJSONHandler_SkipsBytesAndSpecialTypes(t *testing.T) {
	handler := &JSONHandler{}
	assert.False(t, handler.CanHandle(reflect.TypeOf([]byte{})))
	assert.False(t, handler.CanHandle(timeType))
	assert.False(t, handler.CanHandle(uuidType))
}

func TestPrimitiveHandler_Scan(t *testing.T) {
	var (
		s  string
		n  int
		n8 int8
		u  uint32
		b  bool
		f  float64
		st status
	)
	require.NoError(t, createScanTarget(fieldOf(&s)).Scan([]byte("hello")))
	require.NoError(t, createScanTarget(fieldOf(&n)).Scan("42"))
	require.NoError(t, createScanTarget(fieldOf(&u)).Scan(int64(7)))
	require.NoError(t, createScanTarget(fieldOf(&b)).Scan(int64(1)))
	require.NoError(t, createScanTarget(fieldOf(&f)).Scan([]byte("2.5")))
	require.NoError(t, createScanTarget(fieldOf(&st)).Scan("active"))

	assert.Equal(t, "hello", s)
	assert.Equal(t, 42, n)
	assert.Equal(t, uint32(7), u)
	assert.True(t, b)
	assert.Equal(t, 2.5, f)
	assert.Equal(t, status("active"), st)

	assert.Error(t, createScanTarget(fieldOf(&n8)).Scan(int64(300)))

	// snowflake ids stored as bigint land in string fields
	require.NoError(t, createScanTarget(fieldOf(&s)).Scan(int64(1234567890123)))
	assert.Equal(t, "1234567890123", s)
}

func TestPrimitiveHandler_Extract(t *testing.T) {
	n := int32(5)
	v, err := extractFieldValue(fieldOf(&n))
	require.NoError(t, err)
	assert.Equal(t, int64(5), v)

	st := status("x")
	v, err = extractFieldValue(fieldOf(&st))
	require.NoError(t, err)
	assert.Equal(t, "x", v)
}

func TestPointerHandler(t *testing.T) {
	var count *int
	require.NoError(t, createScanTarget(fieldOf(&count)).Scan(int64(3)))
	require.NotNil(t, count)
	assert.Equal(t, 3, *count)

	v, err := extractFieldValue(fieldOf(&count))
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)

	require.NoError(t, createScanTarget(fieldOf(&count)).Scan(nil))
	assert.Nil(t, count)

	v, err = extractFieldValue(fieldOf(&count))
	require.NoError(t, err)
	assert.Nil(t, v)

	var settings *testStruct
	require.NoError(t, createScanTarget(fieldOf(&settings)).Scan(`{"field1":"a","field2":2}`))
	require.NotNil(t, settings)
	assert.Equal(t, "a", settings.Field1)
}

func TestValuerAndScannerTypes(t *testing.T) {
	id := uuid.New()
	v, err := extractFieldValue(fieldOf(&id))
	require.NoError(t, err)
	assert.Equal(t, id.String(), v)

	var scanned uuid.UUID
	require.NoError(t, createScanTarget(fieldOf(&scanned)).Scan(id.String()))
	assert.Equal(t, id, scanned)

	var ns sql.NullString
	require.NoError(t, createScanTarget(fieldOf(&ns)).Scan("x"))
	assert.True(t, ns.Valid)
	assert.Equal(t, "x", ns.String)
}

func TestTimeAndRawMessage(t *testing.T) {
	var ts time.Time
	require.NoError(t, createScanTarget(fieldOf(&ts)).Scan("2024-03-01 10:20:30.5"))
	assert.Equal(t, 2024, ts.Year())
	assert.Equal(t, 500*time.Millisecond, time.Duration(ts.Nanosecond()))

	now := time.Now()
	require.NoError(t, createScanTarget(fieldOf(&ts)).Scan(now))
	assert.True(t, ts.Equal(now))

	var raw json.RawMessage
	require.NoError(t, createScanTarget(fieldOf(&raw)).Scan([]byte(`{"a":1}`)))
	assert.JSONEq(t, `{"a":1}`, string(raw))

	v, err := extractFieldValue(fieldOf(&raw))
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":1}`), v)

	var empty json.RawMessage
	v, err = extractFieldValue(fieldOf(&empty))
	require.NoError(t, err)
	assert.Equal(t, []byte("null"), v)
}

func TestFallbackHandler(t *testing.T) {
	var b []byte
	require.NoError(t, createScanTarget(fieldOf(&b)).Scan([]byte("bin")))
	assert.Equal(t, []byte("bin"), b)

	v, err := extractFieldValue(fieldOf(&b))
	require.NoError(t, err)
	assert.Equal(t, []byte("bin"), v)
}
