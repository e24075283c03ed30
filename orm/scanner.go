package orm

import (
	"database/sql"
	"fmt"
	"reflect"
)

// scanRows drains rows into camelCase keyed maps. Text returned as []byte
// is converted to string.
func scanRows(rows *sql.Rows) ([]Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(columns))
	for i, col := range columns {
		keys[i] = ToCamel(col)
	}

	out := make([]Row, 0)
	values := make([]interface{}, len(columns))
	ptrs := make([]interface{}, len(columns))
	for rows.Next() {
		for i := range values {
			values[i] = nil
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(columns))
		for i, key := range keys {
			if b, ok := values[i].([]byte); ok {
				row[key] = string(b)
				continue
			}
			row[key] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// DecodeRow copies a result row into a new T using T's metadata. Keys with
// no matching field are ignored.
func DecodeRow[T any](row Row) (*T, error) {
	meta := GetMetadata[T]()
	dest := new(T)
	if err := decodeInto(meta, row, reflect.ValueOf(dest).Elem()); err != nil {
		return nil, err
	}
	return dest, nil
}

func DecodeRows[T any](rows []Row) ([]T, error) {
	meta := GetMetadata[T]()
	out := make([]T, len(rows))
	for i, row := range rows {
		if err := decodeInto(meta, row, reflect.ValueOf(&out[i]).Elem()); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func decodeInto(meta *ModelMetadata, row Row, dest reflect.Value) error {
	for key, value := range row {
		idx, ok := meta.ByKey[key]
		if !ok {
			continue
		}
		field := meta.Fields[idx]
		target := dest.FieldByIndex(field.Index)
		if err := field.handler.ScanTarget(target).Scan(value); err != nil {
			return fmt.Errorf("failed to decode %s.%s: %w", meta.TableName, field.Column, err)
		}
	}
	return nil
}

// encode extracts the column values of entity. Auto-increment columns are
// skipped when zero.
func encode(meta *ModelMetadata, entity reflect.Value) (map[string]interface{}, error) {
	values := make(map[string]interface{}, len(meta.Fields))
	for _, field := range meta.Fields {
		v := entity.FieldByIndex(field.Index)
		if field.IsAutoIncrement && v.IsZero() {
			continue
		}
		val, err := field.handler.ExtractValue(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s.%s: %w", meta.TableName, field.Column, err)
		}
		values[field.Column] = val
	}
	return values, nil
}
