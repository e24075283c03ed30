package orm

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

type verb int

const (
	verbSelect verb = iota
	verbFirst
	verbInsert
	verbUpdate
	verbDelete
	verbRaw
)

func (v verb) String() string {
	switch v {
	case verbSelect:
		return "select"
	case verbFirst:
		return "first"
	case verbInsert:
		return "insert"
	case verbUpdate:
		return "update"
	case verbDelete:
		return "del"
	default:
		return "raw"
	}
}

type clause struct {
	sql  string
	args []interface{}
	// raw conditions come from callers and may hold any operator
	raw bool
}

// Statement is a lazily built SQL statement. Builder methods mutate and
// return the receiver; nothing touches a pool until a Proxy runs it.
// The first builder error is kept and reported by Build.
type Statement struct {
	verb      verb
	table     string
	columns   []string
	raw       string
	rawArgs   []interface{}
	rows      []map[string]interface{}
	where     []clause
	orderBy   []string
	limit     int
	offset    int
	returning []string
	onMaster  bool
	timeout   time.Duration
	tx        *TxHandle
	counting  bool
	err       error
}

// Table starts a statement against a table. It selects every column until
// another verb is chosen.
func Table(name string) *Statement {
	s := &Statement{verb: verbSelect, limit: -1, offset: -1}
	tbl, err := column(name)
	if err != nil {
		s.err = err
	}
	s.table = tbl
	return s
}

// Raw wraps hand-written SQL using ? placeholders.
func Raw(query string, args ...interface{}) *Statement {
	s := &Statement{verb: verbRaw, raw: strings.TrimSpace(query), rawArgs: args, limit: -1, offset: -1}
	if s.raw == "" {
		s.err = invalidf("empty raw statement")
	}
	return s
}

func (s *Statement) fail(err error) *Statement {
	if s.err == nil {
		s.err = err
	}
	return s
}

func (s *Statement) Select(cols ...string) *Statement {
	s.verb = verbSelect
	return s.project(cols)
}

// First selects at most one row.
func (s *Statement) First(cols ...string) *Statement {
	s.verb = verbFirst
	return s.project(cols)
}

func (s *Statement) project(cols []string) *Statement {
	s.columns = s.columns[:0]
	for _, c := range cols {
		expr, err := projection(c)
		if err != nil {
			return s.fail(err)
		}
		s.columns = append(s.columns, expr)
	}
	return s
}

// projection accepts "*", "col" and "col as alias".
func projection(expr string) (string, error) {
	expr = strings.TrimSpace(expr)
	if expr == "*" {
		return expr, nil
	}
	fields := strings.Fields(expr)
	switch {
	case len(fields) == 1:
		return column(fields[0])
	case len(fields) == 3 && strings.EqualFold(fields[1], "as"):
		col, err := column(fields[0])
		if err != nil {
			return "", err
		}
		alias, err := column(fields[2])
		if err != nil {
			return "", err
		}
		return col + " as " + alias, nil
	}
	return "", invalidf("bad column expression %q", expr)
}

func (s *Statement) Insert(values map[string]interface{}) *Statement {
	return s.InsertRows([]map[string]interface{}{values})
}

// InsertRows inserts several rows at once. Every row must carry the same keys.
func (s *Statement) InsertRows(rows []map[string]interface{}) *Statement {
	s.verb = verbInsert
	if len(rows) == 0 {
		return s.fail(invalidf("insert without rows"))
	}
	normalized := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		n, err := normalize(row)
		if err != nil {
			return s.fail(err)
		}
		normalized = append(normalized, n)
	}
	first := sortedKeys(normalized[0])
	for _, row := range normalized[1:] {
		if !sameKeys(first, row) {
			return s.fail(invalidf("insert rows have different columns"))
		}
	}
	s.rows = normalized
	return s
}

func (s *Statement) Update(values map[string]interface{}) *Statement {
	s.verb = verbUpdate
	n, err := normalize(values)
	if err != nil {
		return s.fail(err)
	}
	s.rows = []map[string]interface{}{n}
	return s
}

func (s *Statement) Delete() *Statement {
	s.verb = verbDelete
	return s
}

// Where adds a raw condition. The number of ? markers must match args.
func (s *Statement) Where(cond string, args ...interface{}) *Statement {
	cond = strings.TrimSpace(cond)
	if cond == "" {
		return s.fail(invalidf("empty where condition"))
	}
	if n := countPlaceholders(cond); n != len(args) {
		return s.fail(invalidf("condition %q expects %d arguments, got %d", cond, n, len(args)))
	}
	s.where = append(s.where, clause{sql: cond, args: args, raw: true})
	return s
}

// WhereEq adds col = v. A nil value becomes IS NULL, a slice becomes IN.
func (s *Statement) WhereEq(col string, v interface{}) *Statement {
	name, err := column(col)
	if err != nil {
		return s.fail(err)
	}
	if values, ok := expand(v); ok {
		s.where = append(s.where, inClause(name, values))
		return s
	}
	if v == nil {
		s.where = append(s.where, clause{sql: name + " is null"})
		return s
	}
	s.where = append(s.where, clause{sql: name + " = ?", args: []interface{}{v}})
	return s
}

// WhereIn adds col in (...). An empty list matches nothing.
func (s *Statement) WhereIn(col string, values ...interface{}) *Statement {
	name, err := column(col)
	if err != nil {
		return s.fail(err)
	}
	s.where = append(s.where, inClause(name, values))
	return s
}

// WhereMap ANDs an equality per key, in key order.
func (s *Statement) WhereMap(conds map[string]interface{}) *Statement {
	for _, k := range sortedKeys(conds) {
		s.WhereEq(k, conds[k])
	}
	return s
}

// OrderBy takes "col", "col asc" or "col desc".
func (s *Statement) OrderBy(exprs ...string) *Statement {
	for _, expr := range exprs {
		fields := strings.Fields(expr)
		if len(fields) == 0 || len(fields) > 2 {
			return s.fail(invalidf("bad order expression %q", expr))
		}
		col, err := column(fields[0])
		if err != nil {
			return s.fail(err)
		}
		if len(fields) == 2 {
			dir := strings.ToLower(fields[1])
			if dir != "asc" && dir != "desc" {
				return s.fail(invalidf("bad order direction %q", fields[1]))
			}
			col += " " + dir
		}
		s.orderBy = append(s.orderBy, col)
	}
	return s
}

func (s *Statement) Limit(n int) *Statement {
	if n < 0 {
		return s.fail(fmt.Errorf("%w: negative limit %d", ErrInvalidPagination, n))
	}
	s.limit = n
	return s
}

func (s *Statement) Offset(n int) *Statement {
	if n < 0 {
		return s.fail(fmt.Errorf("%w: negative offset %d", ErrInvalidPagination, n))
	}
	s.offset = n
	return s
}

// Returning asks postgres for columns of the affected rows. It is ignored on
// dialects without RETURNING.
func (s *Statement) Returning(cols ...string) *Statement {
	for _, c := range cols {
		expr, err := projection(c)
		if err != nil {
			return s.fail(err)
		}
		s.returning = append(s.returning, expr)
	}
	return s
}

// OnMaster pins a read to the write pool.
func (s *Statement) OnMaster() *Statement {
	s.onMaster = true
	return s
}

func (s *Statement) Timeout(d time.Duration) *Statement {
	s.timeout = d
	return s
}

// Transacting binds the statement to a transaction handle.
func (s *Statement) Transacting(h *TxHandle) *Statement {
	s.tx = h
	return s
}

func (s *Statement) Method() string {
	return s.verb.String()
}

// IsRead reports whether the statement may go to a read pool. Raw SQL is a
// read when its text starts with select.
func (s *Statement) IsRead() bool {
	switch s.verb {
	case verbSelect, verbFirst:
		return true
	case verbRaw:
		return len(s.raw) >= 6 && strings.EqualFold(s.raw[:6], "select")
	}
	return false
}

// Err returns the first builder error, if any.
func (s *Statement) Err() error {
	return s.err
}

// Build renders the statement for a dialect.
func (s *Statement) Build(d Dialect) (string, []interface{}, error) {
	tmpl, args, err := s.template(d)
	if err != nil {
		return "", nil, err
	}
	return d.Rebind(tmpl), args, nil
}

// template renders with ? placeholders. The sql id is derived from it.
func (s *Statement) template(d Dialect) (string, []interface{}, error) {
	if s.err != nil {
		return "", nil, s.err
	}
	if s.verb == verbRaw {
		if n := countPlaceholders(s.raw); n != len(s.rawArgs) {
			return "", nil, invalidf("statement expects %d arguments, got %d", n, len(s.rawArgs))
		}
		return s.raw, s.rawArgs, nil
	}
	if s.table == "" {
		return "", nil, invalidf("statement without table")
	}

	var b strings.Builder
	var args []interface{}
	switch s.verb {
	case verbSelect, verbFirst:
		b.WriteString("select ")
		switch {
		case s.counting:
			b.WriteString("count(*) as total")
		case len(s.columns) == 0:
			b.WriteString("*")
		default:
			b.WriteString(strings.Join(s.columns, ", "))
		}
		b.WriteString(" from ")
		b.WriteString(s.table)
		args = s.writeWhere(&b, args)
		if !s.counting {
			if len(s.orderBy) > 0 {
				b.WriteString(" order by ")
				b.WriteString(strings.Join(s.orderBy, ", "))
			}
			s.writeLimit(&b, d)
		}
	case verbInsert:
		cols := sortedKeys(s.rows[0])
		b.WriteString("insert into ")
		b.WriteString(s.table)
		b.WriteString(" (")
		b.WriteString(strings.Join(cols, ", "))
		b.WriteString(") values ")
		marks := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"
		for i, row := range s.rows {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(marks)
			for _, c := range cols {
				args = append(args, row[c])
			}
		}
		s.writeReturning(&b, d)
	case verbUpdate:
		cols := sortedKeys(s.rows[0])
		b.WriteString("update ")
		b.WriteString(s.table)
		b.WriteString(" set ")
		for i, c := range cols {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(c)
			b.WriteString(" = ?")
			args = append(args, s.rows[0][c])
		}
		args = s.writeWhere(&b, args)
		s.writeReturning(&b, d)
	case verbDelete:
		b.WriteString("delete from ")
		b.WriteString(s.table)
		args = s.writeWhere(&b, args)
		s.writeReturning(&b, d)
	}
	return b.String(), args, nil
}

func (s *Statement) writeWhere(b *strings.Builder, args []interface{}) []interface{} {
	for i, c := range s.where {
		if i == 0 {
			b.WriteString(" where ")
		} else {
			b.WriteString(" and ")
		}
		if len(s.where) > 1 && c.raw {
			b.WriteString("(" + c.sql + ")")
		} else {
			b.WriteString(c.sql)
		}
		args = append(args, c.args...)
	}
	return args
}

func (s *Statement) writeLimit(b *strings.Builder, d Dialect) {
	limit := s.limit
	if s.verb == verbFirst {
		limit = 1
	}
	if limit >= 0 {
		b.WriteString(" limit ")
		b.WriteString(strconv.Itoa(limit))
	} else if s.offset > 0 && d == MySQL {
		// mysql has no offset without limit
		b.WriteString(" limit 18446744073709551615")
	}
	if s.offset > 0 {
		b.WriteString(" offset ")
		b.WriteString(strconv.Itoa(s.offset))
	}
}

func (s *Statement) writeReturning(b *strings.Builder, d Dialect) {
	if len(s.returning) > 0 && d.SupportsReturning() {
		b.WriteString(" returning ")
		b.WriteString(strings.Join(s.returning, ", "))
	}
}

func (s *Statement) returnsRows(d Dialect) bool {
	return len(s.returning) > 0 && d.SupportsReturning() && s.verb >= verbInsert && s.verb <= verbDelete
}

func (s *Statement) clone() *Statement {
	c := *s
	c.columns = append([]string(nil), s.columns...)
	c.where = append([]clause(nil), s.where...)
	c.orderBy = append([]string(nil), s.orderBy...)
	c.returning = append([]string(nil), s.returning...)
	return &c
}

// countClone keeps the filters and drops projection, ordering and paging.
func (s *Statement) countClone() *Statement {
	if s.verb == verbRaw {
		c := Raw("select count(*) as total from ("+s.raw+") as page_temp", s.rawArgs...)
		c.onMaster, c.timeout, c.tx = s.onMaster, s.timeout, s.tx
		return c.fail(s.err)
	}
	c := s.clone()
	c.verb = verbSelect
	c.counting = true
	c.columns = nil
	c.orderBy = nil
	c.limit, c.offset = -1, -1
	return c
}

// pageClone selects one window of the statement.
func (s *Statement) pageClone(offset, limit int) *Statement {
	if s.verb == verbRaw {
		args := append(append([]interface{}(nil), s.rawArgs...), limit, offset)
		c := Raw("select * from ("+s.raw+") as page_temp limit ? offset ?", args...)
		c.onMaster, c.timeout, c.tx = s.onMaster, s.timeout, s.tx
		return c.fail(s.err)
	}
	c := s.clone()
	if c.verb == verbFirst {
		c.verb = verbSelect
	}
	c.limit, c.offset = limit, offset
	return c
}

func normalize(values map[string]interface{}) (map[string]interface{}, error) {
	if len(values) == 0 {
		return nil, invalidf("no values given")
	}
	out := make(map[string]interface{}, len(values))
	for k, v := range values {
		name, err := column(k)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

func inClause(col string, values []interface{}) clause {
	if len(values) == 0 {
		return clause{sql: "1 = 0"}
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
	return clause{sql: col + " in (" + marks + ")", args: values}
}

// expand turns a slice argument into its elements. []byte is a value.
func expand(v interface{}) ([]interface{}, bool) {
	if v == nil {
		return nil, false
	}
	if vals, ok := v.([]interface{}); ok {
		return vals, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice || rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sameKeys(keys []string, row map[string]interface{}) bool {
	if len(keys) != len(row) {
		return false
	}
	for _, k := range keys {
		if _, ok := row[k]; !ok {
			return false
		}
	}
	return true
}
