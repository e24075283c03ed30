package orm

import (
	"crypto/md5"
	"database/sql/driver"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SQLID identifies a statement template independent of its arguments.
func SQLID(template string) string {
	sum := md5.Sum([]byte(template))
	return hex.EncodeToString(sum[:])
}

// FormatSQL substitutes args into a ? template for logging. The output is
// never executed.
func FormatSQL(template string, args []interface{}) string {
	if len(args) == 0 {
		return template
	}
	var b strings.Builder
	b.Grow(len(template) + 16*len(args))
	i := 0
	walkPlaceholders(template, func(chunk string, placeholder bool) {
		if !placeholder {
			b.WriteString(chunk)
			return
		}
		if i < len(args) {
			b.WriteString(literal(args[i]))
		} else {
			b.WriteByte('?')
		}
		i++
	})
	return b.String()
}

func literal(v interface{}) string {
	if valuer, ok := v.(driver.Valuer); ok {
		resolved, err := valuer.Value()
		if err != nil {
			return "?"
		}
		v = resolved
	}
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return quoteString(val)
	case []byte:
		return quoteString(string(val))
	case bool:
		if val {
			return "true"
		}
		return "false"
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case time.Time:
		return quoteString(val.Format("2006-01-02 15:04:05.000"))
	case fmt.Stringer:
		return quoteString(val.String())
	default:
		return quoteString(fmt.Sprint(val))
	}
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
