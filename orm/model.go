package orm

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/yadunandan004/datacore/idgen"
	"github.com/yadunandan004/datacore/request"
)

// Model is a table-bound repository for T. Every call goes through the
// proxy, so reads and writes join the ambient transaction when there is one.
//
// Models that map a row_status column get soft-delete semantics: reads and
// updates only see rows whose status is true.
type Model[T any] struct {
	proxy     *Proxy
	meta      *ModelMetadata
	ids       idgen.Strategy
	now       func() time.Time
	rowStatus bool
}

type ModelPage[T any] struct {
	Items       []T   `json:"items"`
	Total       int64 `json:"total"`
	Offset      int   `json:"offset"`
	Limit       int   `json:"limit"`
	HasNextPage bool  `json:"hasNextPage"`
}

type modelOptions struct {
	ids   idgen.Strategy
	now   func() time.Time
	table string
}

type ModelOption func(*modelOptions)

// WithIDStrategy picks how primary keys are issued. The default is a
// snowflake id from the process-wide generator, or the database when the pk
// is tagged auto.
func WithIDStrategy(s idgen.Strategy) ModelOption {
	return func(o *modelOptions) {
		o.ids = s
	}
}

// WithTableName binds the model to table instead of the one derived from T.
func WithTableName(table string) ModelOption {
	return func(o *modelOptions) {
		o.table = table
	}
}

func WithModelClock(now func() time.Time) ModelOption {
	return func(o *modelOptions) {
		o.now = now
	}
}

func NewModel[T any](proxy *Proxy, opts ...ModelOption) *Model[T] {
	meta := GetMetadata[T]()
	o := &modelOptions{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	if o.table != "" && o.table != meta.TableName {
		bound := *meta
		bound.TableName = o.table
		meta = &bound
	}
	if o.ids == nil {
		o.ids = idgen.SnowflakeStrategy{}
		if pk, ok := meta.PKField(); ok && pk.IsAutoIncrement {
			o.ids = idgen.AutoIncrement{}
		}
	}
	return &Model[T]{
		proxy:     proxy,
		meta:      meta,
		ids:       o.ids,
		now:       o.now,
		rowStatus: meta.HasColumn(ColumnRowStatus),
	}
}

func (m *Model[T]) Metadata() *ModelMetadata {
	return m.meta
}

func (m *Model[T]) pkColumn() string {
	if pk, ok := m.meta.PKField(); ok {
		return pk.Column
	}
	return "id"
}

func (m *Model[T]) selectAll() *Statement {
	return Table(m.meta.TableName).Select(m.meta.Columns()...)
}

// alive restricts s to rows not soft-deleted.
func (m *Model[T]) alive(s *Statement) *Statement {
	if m.rowStatus {
		s.WhereEq(ColumnRowStatus, true)
	}
	return s
}

func (m *Model[T]) GetOne(ctx context.Context, id interface{}) (*T, error) {
	return m.getOne(ctx, id, false)
}

func (m *Model[T]) getOne(ctx context.Context, id interface{}, onMaster bool) (*T, error) {
	if isEmptyID(id) {
		return nil, ErrNotFound
	}
	stmt := m.alive(m.selectAll().WhereEq(m.pkColumn(), id))
	if onMaster {
		stmt.OnMaster()
	}
	row, err := m.proxy.First(ctx, stmt)
	if err != nil {
		return nil, err
	}
	return DecodeRow[T](row)
}

// List fetches the rows whose pk is in ids.
func (m *Model[T]) List(ctx context.Context, ids []interface{}, orderBy ...string) ([]T, error) {
	stmt := m.alive(m.selectAll().WhereIn(m.pkColumn(), ids...)).OrderBy(orderBy...)
	rows, err := m.proxy.Query(ctx, stmt)
	if err != nil {
		return nil, err
	}
	return DecodeRows[T](rows)
}

func (m *Model[T]) FindOne(ctx context.Context, where map[string]interface{}, orderBy ...string) (*T, error) {
	stmt := m.alive(m.selectAll().WhereMap(where)).OrderBy(orderBy...)
	row, err := m.proxy.First(ctx, stmt)
	if err != nil {
		return nil, err
	}
	return DecodeRow[T](row)
}

// FindAll returns matching rows; limit 0 means no limit.
func (m *Model[T]) FindAll(ctx context.Context, where map[string]interface{}, orderBy []string, limit int) ([]T, error) {
	stmt := m.alive(m.selectAll().WhereMap(where)).OrderBy(orderBy...)
	if limit > 0 {
		stmt.Limit(limit)
	}
	rows, err := m.proxy.Query(ctx, stmt)
	if err != nil {
		return nil, err
	}
	return DecodeRows[T](rows)
}

func (m *Model[T]) Count(ctx context.Context, where map[string]interface{}) (int64, error) {
	return m.proxy.Count(ctx, m.alive(Table(m.meta.TableName).WhereMap(where)))
}

func (m *Model[T]) Exists(ctx context.Context, where map[string]interface{}) (bool, error) {
	stmt := m.alive(Table(m.meta.TableName).Select(m.pkColumn()).WhereMap(where)).Limit(1)
	rows, err := m.proxy.Query(ctx, stmt)
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

func (m *Model[T]) Page(ctx context.Context, where map[string]interface{}, orderBy []string, offset, limit int) (*ModelPage[T], error) {
	stmt := m.alive(m.selectAll().WhereMap(where)).OrderBy(orderBy...)
	page, err := m.proxy.Page(ctx, stmt, offset, limit)
	if err != nil {
		return nil, err
	}
	items, err := DecodeRows[T](page.Items)
	if err != nil {
		return nil, err
	}
	return &ModelPage[T]{
		Items:       items,
		Total:       page.Total,
		Offset:      page.Offset,
		Limit:       page.Limit,
		HasNextPage: page.HasNextPage,
	}, nil
}

// Insert writes entity and fills in its id and bookkeeping columns.
func (m *Model[T]) Insert(ctx context.Context, entity *T) error {
	values, needID, err := m.prepareInsert(ctx, entity)
	if err != nil {
		return err
	}
	stmt := Table(m.meta.TableName).Insert(values)
	if needID {
		stmt.Returning(m.pkColumn())
	}
	res, err := m.proxy.Exec(ctx, stmt)
	if err != nil {
		return err
	}
	if needID {
		return m.assignGeneratedID(entity, res)
	}
	return nil
}

// InsertMany writes all entities in one statement. Generated database ids
// are not read back.
func (m *Model[T]) InsertMany(ctx context.Context, entities []*T) error {
	if len(entities) == 0 {
		return nil
	}
	rows := make([]map[string]interface{}, 0, len(entities))
	for _, entity := range entities {
		values, _, err := m.prepareInsert(ctx, entity)
		if err != nil {
			return err
		}
		rows = append(rows, values)
	}
	_, err := m.proxy.Exec(ctx, Table(m.meta.TableName).InsertRows(rows))
	return err
}

func (m *Model[T]) InsertAndFetch(ctx context.Context, entity *T) (*T, error) {
	if err := m.Insert(ctx, entity); err != nil {
		return nil, err
	}
	return m.getOne(ctx, m.pkValue(entity), true)
}

// Update applies props to the row with the given id.
func (m *Model[T]) Update(ctx context.Context, id interface{}, props map[string]interface{}) (int64, error) {
	if isEmptyID(id) {
		return 0, invalidf("update without id")
	}
	return m.UpdateByFilters(ctx, map[string]interface{}{m.pkColumn(): id}, props)
}

func (m *Model[T]) UpdateAndFetch(ctx context.Context, id interface{}, props map[string]interface{}) (*T, error) {
	if _, err := m.Update(ctx, id, props); err != nil {
		return nil, err
	}
	return m.getOne(ctx, id, true)
}

func (m *Model[T]) UpdateByFilters(ctx context.Context, where, props map[string]interface{}) (int64, error) {
	values, err := m.touch(ctx, props)
	if err != nil {
		return 0, err
	}
	res, err := m.proxy.Exec(ctx, m.alive(Table(m.meta.TableName).Update(values).WhereMap(where)))
	return res.RowsAffected, err
}

// Save inserts entity when its pk is empty and updates it otherwise.
func (m *Model[T]) Save(ctx context.Context, entity *T) error {
	id := m.pkValue(entity)
	if isEmptyID(id) {
		return m.Insert(ctx, entity)
	}
	values, err := encode(m.meta, reflect.ValueOf(entity).Elem())
	if err != nil {
		return err
	}
	for _, col := range []string{m.pkColumn(), ColumnCreatedTime, ColumnCreatedUser, ColumnLastUpdateTime, ColumnLastUpdateUser} {
		delete(values, col)
	}
	_, err = m.Update(ctx, id, values)
	return err
}

// Delete removes the row for good.
func (m *Model[T]) Delete(ctx context.Context, id interface{}) (int64, error) {
	if isEmptyID(id) {
		return 0, invalidf("delete without id")
	}
	return m.DeleteByFilters(ctx, map[string]interface{}{m.pkColumn(): id})
}

func (m *Model[T]) DeleteByFilters(ctx context.Context, where map[string]interface{}) (int64, error) {
	res, err := m.proxy.Exec(ctx, Table(m.meta.TableName).Delete().WhereMap(where))
	return res.RowsAffected, err
}

// Destroy soft-deletes by clearing row_status.
func (m *Model[T]) Destroy(ctx context.Context, id interface{}) (int64, error) {
	if isEmptyID(id) {
		return 0, invalidf("destroy without id")
	}
	return m.DestroyByFilters(ctx, map[string]interface{}{m.pkColumn(): id})
}

func (m *Model[T]) DestroyByFilters(ctx context.Context, where map[string]interface{}) (int64, error) {
	if !m.rowStatus {
		return 0, ErrRowStatusUnsupported
	}
	values, err := m.touch(ctx, map[string]interface{}{ColumnRowStatus: false})
	if err != nil {
		return 0, err
	}
	res, err := m.proxy.Exec(ctx, Table(m.meta.TableName).Update(values).WhereMap(where))
	return res.RowsAffected, err
}

// prepareInsert fills the id, timestamps, users and row status of entity
// when unset, and returns its column values. needID reports that the
// database assigns the id.
func (m *Model[T]) prepareInsert(ctx context.Context, entity *T) (map[string]interface{}, bool, error) {
	if entity == nil {
		return nil, false, invalidf("nil entity")
	}
	v := reflect.ValueOf(entity).Elem()
	now := m.now()
	userID := ""
	if state := request.Current(ctx); state != nil {
		userID = state.UserID()
	}

	fill := []struct {
		column string
		value  interface{}
	}{
		{ColumnCreatedTime, now},
		{ColumnLastUpdateTime, now},
		{ColumnCreatedUser, userID},
		{ColumnLastUpdateUser, userID},
	}
	for _, f := range fill {
		if f.value == "" {
			continue
		}
		if err := m.setIfZero(v, f.column, f.value); err != nil {
			return nil, false, err
		}
	}
	if m.rowStatus {
		if err := m.set(v, ColumnRowStatus, true); err != nil {
			return nil, false, err
		}
	}

	needID := false
	if pk, ok := m.meta.PKField(); ok && v.FieldByIndex(pk.Index).IsZero() {
		id, err := m.ids.Next(ctx)
		if err != nil {
			return nil, false, fmt.Errorf("failed to issue id: %w", err)
		}
		if id == "" {
			needID = true
		} else if err := pk.handler.ScanTarget(v.FieldByIndex(pk.Index)).Scan(id); err != nil {
			return nil, false, err
		}
	}

	values, err := encode(m.meta, v)
	if err != nil {
		return nil, false, err
	}
	if needID {
		delete(values, m.pkColumn())
	}
	return values, needID, nil
}

func (m *Model[T]) assignGeneratedID(entity *T, res Result) error {
	pk, ok := m.meta.PKField()
	if !ok {
		return nil
	}
	field := reflect.ValueOf(entity).Elem().FieldByIndex(pk.Index)
	if len(res.Rows) > 0 {
		return pk.handler.ScanTarget(field).Scan(res.Rows[0][pk.Key])
	}
	if res.LastInsertID != 0 {
		return pk.handler.ScanTarget(field).Scan(res.LastInsertID)
	}
	return nil
}

// touch normalizes update props and stamps the last update columns.
func (m *Model[T]) touch(ctx context.Context, props map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(props)+2)
	for k, v := range props {
		col, err := column(k)
		if err != nil {
			return nil, err
		}
		out[col] = m.toDriver(col, v)
	}
	if _, ok := out[ColumnLastUpdateTime]; !ok && m.meta.HasColumn(ColumnLastUpdateTime) {
		out[ColumnLastUpdateTime] = m.toDriver(ColumnLastUpdateTime, m.now())
	}
	if _, ok := out[ColumnLastUpdateUser]; !ok && m.meta.HasColumn(ColumnLastUpdateUser) {
		if state := request.Current(ctx); state != nil && state.UserID() != "" {
			out[ColumnLastUpdateUser] = state.UserID()
		}
	}
	return out, nil
}

// toDriver converts a value of the field's own type the same way an insert
// would, so JSON and valuer columns update consistently.
func (m *Model[T]) toDriver(col string, v interface{}) interface{} {
	idx, ok := m.meta.ByColumn[col]
	if !ok || v == nil {
		return v
	}
	field := m.meta.Fields[idx]
	rv := reflect.ValueOf(v)
	if rv.Type() != field.Type {
		return v
	}
	converted, err := field.handler.ExtractValue(rv)
	if err != nil {
		return v
	}
	return converted
}

func (m *Model[T]) pkValue(entity *T) interface{} {
	pk, ok := m.meta.PKField()
	if !ok || entity == nil {
		return nil
	}
	field := reflect.ValueOf(entity).Elem().FieldByIndex(pk.Index)
	if field.IsZero() {
		return nil
	}
	v, err := pk.handler.ExtractValue(field)
	if err != nil {
		return nil
	}
	return v
}

func (m *Model[T]) set(v reflect.Value, col string, value interface{}) error {
	idx, ok := m.meta.ByColumn[col]
	if !ok {
		return nil
	}
	field := m.meta.Fields[idx]
	target := v.FieldByIndex(field.Index)
	if b, isBool := value.(bool); isBool && target.Kind() != reflect.Bool && target.Kind() != reflect.Ptr {
		n := int64(0)
		if b {
			n = 1
		}
		value = n
	}
	return field.handler.ScanTarget(target).Scan(value)
}

func (m *Model[T]) setIfZero(v reflect.Value, col string, value interface{}) error {
	idx, ok := m.meta.ByColumn[col]
	if !ok || !v.FieldByIndex(m.meta.Fields[idx].Index).IsZero() {
		return nil
	}
	return m.set(v, col, value)
}

func isEmptyID(id interface{}) bool {
	if id == nil {
		return true
	}
	return reflect.ValueOf(id).IsZero()
}
