package orm

import (
	"strconv"
	"strings"

	"github.com/yadunandan004/datacore/config"
)

type Dialect int

const (
	Postgres Dialect = iota
	MySQL
)

func DialectFor(driver string) Dialect {
	if strings.EqualFold(driver, config.DriverMySQL) {
		return MySQL
	}
	return Postgres
}

func (d Dialect) String() string {
	if d == MySQL {
		return config.DriverMySQL
	}
	return config.DriverPostgres
}

func (d Dialect) SupportsReturning() bool {
	return d == Postgres
}

// Rebind rewrites ? placeholders for the dialect. Quoted text and
// identifiers are left alone.
func (d Dialect) Rebind(query string) string {
	if d == MySQL || !strings.ContainsRune(query, '?') {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	walkPlaceholders(query, func(chunk string, placeholder bool) {
		if placeholder {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			return
		}
		b.WriteString(chunk)
	})
	return b.String()
}

func countPlaceholders(query string) int {
	n := 0
	walkPlaceholders(query, func(_ string, placeholder bool) {
		if placeholder {
			n++
		}
	})
	return n
}

// walkPlaceholders splits query into literal chunks and ? markers, skipping
// anything inside single quotes, double quotes or backticks.
func walkPlaceholders(query string, fn func(chunk string, placeholder bool)) {
	var quote byte
	start := 0
	for i := 0; i < len(query); i++ {
		c := query[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"', '`':
			quote = c
		case '?':
			if start < i {
				fn(query[start:i], false)
			}
			fn("?", true)
			start = i + 1
		}
	}
	if start < len(query) {
		fn(query[start:], false)
	}
}
