package orm

import (
	"reflect"
	"strings"
)

// Conventional bookkeeping columns. A model gets the matching behaviour by
// declaring a field mapped to one of them.
const (
	ColumnCreatedTime    = "created_time"
	ColumnLastUpdateTime = "last_update_time"
	ColumnCreatedUser    = "created_user"
	ColumnLastUpdateUser = "last_update_user"
	ColumnRowStatus      = "row_status"
)

type FieldOptions struct {
	Column          string
	IsPK            bool
	IsAutoIncrement bool
}

func parseFields(typ reflect.Type) []FieldMetadata {
	var fields []FieldMetadata
	parseFieldsRecursive(typ, nil, &fields)
	return fields
}

func parseFieldsRecursive(typ reflect.Type, baseIndex []int, fields *[]FieldMetadata) {
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		index := append(append([]int(nil), baseIndex...), i)

		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			parseFieldsRecursive(field.Type, index, fields)
			continue
		}
		if !field.IsExported() {
			continue
		}

		tag := field.Tag.Get("orm")
		if tag == "-" {
			continue
		}
		opts := parseORMTag(field.Name, tag)

		*fields = append(*fields, FieldMetadata{
			Name:            field.Name,
			Column:          opts.Column,
			Key:             ToCamel(opts.Column),
			Type:            field.Type,
			Index:           index,
			IsPK:            opts.IsPK,
			IsAutoIncrement: opts.IsAutoIncrement,
			handler:         handlerFor(field.Type),
		})
	}
}

// parseORMTag reads `orm:"column:x;pk;auto"`. The column defaults to the
// snake_case field name.
func parseORMTag(fieldName string, tag string) FieldOptions {
	opts := FieldOptions{
		Column: ToSnake(fieldName),
	}
	if tag == "" {
		return opts
	}

	for _, part := range strings.Split(tag, ";") {
		part = strings.TrimSpace(part)
		switch {
		case strings.HasPrefix(part, "column:"):
			opts.Column = strings.TrimPrefix(part, "column:")
		case part == "pk":
			opts.IsPK = true
		case part == "auto":
			opts.IsAutoIncrement = true
		}
	}
	return opts
}

// discoverTableName prefers TableName(); otherwise the snake_case type name
// plus "s".
func discoverTableName(typ reflect.Type, model interface{}) string {
	if tn, ok := model.(interface{ TableName() string }); ok {
		return tn.TableName()
	}
	return ToSnake(typ.Name()) + "s"
}
