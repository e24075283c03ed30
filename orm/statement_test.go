package orm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNaming(t *testing.T) {
	snake := map[string]string{
		"createdTime":  "created_time",
		"CreatedTime":  "created_time",
		"UserID":       "user_id",
		"HTTPServer":   "http_server",
		"row_status":   "row_status",
		"id":           "id",
		"accountID2":   "account_id2",
		"lastUpdateBy": "last_update_by",
	}
	for in, want := range snake {
		assert.Equal(t, want, ToSnake(in), in)
	}

	camel := map[string]string{
		"created_time": "createdTime",
		"id":           "id",
		"COLUMN_NAME":  "columnName",
		"total":        "total",
		"createdTime":  "createdTime",
	}
	for in, want := range camel {
		assert.Equal(t, want, ToCamel(in), in)
	}
}

func TestStatement_RawConditionsKeepTheirPrecedence(t *testing.T) {
	for _, cond := range []string{
		"owner = ?\nor shared = ?",
		"owner = ?\tOR shared = ?",
		"owner = ? or(shared = ?)",
	} {
		query, args, err := Table("accounts").
			Where(cond, 1, true).
			WhereEq("rowStatus", true).
			Build(Postgres)
		require.NoError(t, err)
		assert.Equal(t, "select * from accounts where ("+Postgres.Rebind(cond)+") and row_status = $3", query)
		assert.Equal(t, []interface{}{1, true, true}, args)
	}

	query, _, err := Table("accounts").Where("owner = ? or shared = ?", 1, true).Build(Postgres)
	require.NoError(t, err)
	assert.Equal(t, "select * from accounts where owner = $1 or shared = $2", query)
}

func TestStatement_Select(t *testing.T) {
	stmt := Table("userAccounts").
		Select("id", "displayName", "balance as amount").
		WhereEq("status", "active").
		WhereIn("regionId", 1, 2).
		Where("balance > ? or vip = ?", 100, true).
		OrderBy("createdTime desc", "id").
		Limit(10).
		Offset(20)

	query, args, err := stmt.Build(Postgres)
	require.NoError(t, err)
	assert.Equal(t,
		"select id, display_name, balance as amount from user_accounts where status = $1 and region_id in ($2, $3) and (balance > $4 or vip = $5) order by created_time desc, id limit 10 offset 20",
		query)
	assert.Equal(t, []interface{}{"active", 1, 2, 100, true}, args)

	query, _, err = stmt.Build(MySQL)
	require.NoError(t, err)
	assert.Contains(t, query, "status = ? and region_id in (?, ?)")
	assert.True(t, stmt.IsRead())
	assert.Equal(t, "select", stmt.Method())
}

func TestStatement_FirstAndDefaults(t *testing.T) {
	query, args, err := Table("users").First().WhereEq("id", 7).Build(Postgres)
	require.NoError(t, err)
	assert.Equal(t, "select * from users where id = $1 limit 1", query)
	assert.Equal(t, []interface{}{7}, args)
}

func TestStatement_WhereSpecialValues(t *testing.T) {
	query, args, err := Table("t").WhereEq("deletedAt", nil).WhereIn("id").Build(Postgres)
	require.NoError(t, err)
	assert.Equal(t, "select * from t where deleted_at is null and 1 = 0", query)
	assert.Empty(t, args)

	query, args, err = Table("t").WhereMap(map[string]interface{}{
		"b":  []string{"x", "y"},
		"a":  1,
		"id": []byte("raw"),
	}).Build(Postgres)
	require.NoError(t, err)
	assert.Equal(t, "select * from t where a = $1 and b in ($2, $3) and id = $4", query)
	assert.Equal(t, []interface{}{1, "x", "y", []byte("raw")}, args)
}

func TestStatement_InsertUpdateDelete(t *testing.T) {
	query, args, err := Table("users").
		InsertRows([]map[string]interface{}{
			{"name": "a", "createdTime": "t1"},
			{"name": "b", "created_time": "t2"},
		}).
		Returning("id").
		Build(Postgres)
	require.NoError(t, err)
	assert.Equal(t, "insert into users (created_time, name) values ($1, $2), ($3, $4) returning id", query)
	assert.Equal(t, []interface{}{"t1", "a", "t2", "b"}, args)

	query, _, err = Table("users").Insert(map[string]interface{}{"name": "a"}).Returning("id").Build(MySQL)
	require.NoError(t, err)
	assert.Equal(t, "insert into users (name) values (?)", query)

	stmt := Table("users").Update(map[string]interface{}{"name": "z", "rowStatus": false}).WhereEq("id", 3)
	query, args, err = stmt.Build(Postgres)
	require.NoError(t, err)
	assert.Equal(t, "update users set name = $1, row_status = $2 where id = $3", query)
	assert.Equal(t, []interface{}{"z", false, 3}, args)
	assert.False(t, stmt.IsRead())
	assert.Equal(t, "update", stmt.Method())

	query, _, err = Table("users").Delete().WhereEq("id", 3).Build(Postgres)
	require.NoError(t, err)
	assert.Equal(t, "delete from users where id = $1", query)
}

func TestStatement_Invalid(t *testing.T) {
	cases := map[string]*Statement{
		"bad table":          Table("users; drop table x"),
		"bad column":         Table("users").WhereEq("id = 1 --", 1),
		"arg mismatch":       Table("users").Where("a = ? and b = ?", 1),
		"empty insert":       Table("users").Insert(map[string]interface{}{}),
		"mismatched rows":    Table("users").InsertRows([]map[string]interface{}{{"a": 1}, {"b": 2}}),
		"bad order":          Table("users").OrderBy("id sideways"),
		"raw arg mismatch":   Raw("select ? + ?", 1),
		"empty raw":          Raw("  "),
		"bad projection":     Table("users").Select("count(*)"),
		"empty where clause": Table("users").Where(""),
	}
	for name, stmt := range cases {
		_, _, err := stmt.Build(Postgres)
		assert.ErrorIs(t, err, ErrInvalidStatement, name)
	}

	_, _, err := Table("users").Limit(-1).Build(Postgres)
	assert.ErrorIs(t, err, ErrInvalidPagination)
}

func TestStatement_RawAndRebind(t *testing.T) {
	stmt := Raw("select * from t where a = ? and b = '?' and c = ?", 1, 2)
	query, args, err := stmt.Build(Postgres)
	require.NoError(t, err)
	assert.Equal(t, "select * from t where a = $1 and b = '?' and c = $2", query)
	assert.Equal(t, []interface{}{1, 2}, args)
	assert.True(t, stmt.IsRead())

	assert.False(t, Raw("update t set a = 1").IsRead())
	assert.True(t, Raw("SELECT 1").IsRead())
	assert.False(t, Raw("with x as (select 1) select * from x").IsRead())
}

func TestStatement_CountAndPageClones(t *testing.T) {
	base := Table("orders").Select("id", "total").WhereEq("status", "paid").OrderBy("id desc").Limit(3)

	query, args, err := base.countClone().Build(Postgres)
	require.NoError(t, err)
	assert.Equal(t, "select count(*) as total from orders where status = $1", query)
	assert.Equal(t, []interface{}{"paid"}, args)

	query, _, err = base.pageClone(10, 5).Build(Postgres)
	require.NoError(t, err)
	assert.Equal(t, "select id, total from orders where status = $1 order by id desc limit 5 offset 10", query)

	// the original is untouched
	query, _, err = base.Build(Postgres)
	require.NoError(t, err)
	assert.Equal(t, "select id, total from orders where status = $1 order by id desc limit 3", query)

	raw := Raw("select id from orders where status = ?", "paid")
	query, args, err = raw.countClone().Build(MySQL)
	require.NoError(t, err)
	assert.Equal(t, "select count(*) as total from (select id from orders where status = ?) as page_temp", query)
	assert.Equal(t, []interface{}{"paid"}, args)

	query, args, err = raw.pageClone(0, 5).Build(Postgres)
	require.NoError(t, err)
	assert.Equal(t, "select * from (select id from orders where status = $1) as page_temp limit $2 offset $3", query)
	assert.Equal(t, []interface{}{"paid", 5, 0}, args)
}

func TestStatement_MySQLOffsetWithoutLimit(t *testing.T) {
	query, _, err := Table("t").Offset(5).Build(MySQL)
	require.NoError(t, err)
	assert.Equal(t, "select * from t limit 18446744073709551615 offset 5", query)
}

func TestFormatSQL(t *testing.T) {
	ts := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	out := FormatSQL("select * from t where a = ? and b = ? and c = ? and d = '?' and e = ?",
		[]interface{}{"o'brien", 42, nil, ts})
	assert.Equal(t, "select * from t where a = 'o''brien' and b = 42 and c = NULL and d = '?' and e = '2024-05-06 07:08:09.000'", out)

	assert.Equal(t, "select 1", FormatSQL("select 1", nil))
}

func TestSQLID(t *testing.T) {
	a := SQLID("select * from t where id = ?")
	assert.Len(t, a, 32)
	assert.Equal(t, a, SQLID("select * from t where id = ?"))
	assert.NotEqual(t, a, SQLID("select * from t where id = ? limit 1"))
}

func TestDialectFor(t *testing.T) {
	assert.Equal(t, MySQL, DialectFor("MySQL"))
	assert.Equal(t, Postgres, DialectFor("postgres"))
	assert.True(t, Postgres.SupportsReturning())
	assert.False(t, MySQL.SupportsReturning())
	assert.Equal(t, "select ?", MySQL.Rebind("select ?"))
}
