package orm

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// ValidateSchema checks that the table behind metadata exists and carries
// every mapped column. It reads information_schema of the current schema
// (postgres) or database (mysql).
func ValidateSchema(ctx context.Context, p *Proxy, metadata *ModelMetadata) error {
	schemaExpr := "current_schema()"
	if p.Dialect() == MySQL {
		schemaExpr = "database()"
	}
	table := metadata.TableName
	args := []interface{}{table}
	if idx := strings.IndexByte(table, '.'); idx >= 0 {
		schemaExpr = "?"
		args = []interface{}{table[:idx], table[idx+1:]}
	}

	query := "select column_name from information_schema.columns where table_schema = " + schemaExpr + " and table_name = ?"
	rows, err := p.Query(ctx, Raw(query, args...).OnMaster())
	if err != nil {
		return fmt.Errorf("failed to query columns of %s: %w", table, err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("table %s does not exist in database", table)
	}

	dbColumns := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		dbColumns[strings.ToLower(row.String("columnName"))] = struct{}{}
	}

	var missing []string
	for _, field := range metadata.Fields {
		if _, ok := dbColumns[field.Column]; !ok {
			missing = append(missing, fmt.Sprintf("%s (field %s)", field.Column, field.Name))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("table %s is missing columns: %s", table, strings.Join(missing, ", "))
	}
	return nil
}
