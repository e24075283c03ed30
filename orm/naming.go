package orm

import (
	"regexp"
	"strings"
	"unicode"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ToSnake maps createdTime and CreatedTime to created_time. Runs of capitals
// are kept together, so UserID becomes user_id.
func ToSnake(name string) string {
	runes := []rune(name)
	var b strings.Builder
	b.Grow(len(name) + 4)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && runes[i-1] != '_' {
				prevLower := unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if prevLower || (nextLower && unicode.IsUpper(runes[i-1])) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ToCamel maps created_time to createdTime.
func ToCamel(name string) string {
	if !strings.ContainsRune(name, '_') {
		if name == "" {
			return name
		}
		runes := []rune(name)
		runes[0] = unicode.ToLower(runes[0])
		return string(runes)
	}
	parts := strings.Split(strings.ToLower(name), "_")
	var b strings.Builder
	b.Grow(len(name))
	first := true
	for _, part := range parts {
		if part == "" {
			continue
		}
		if first {
			b.WriteString(part)
			first = false
			continue
		}
		runes := []rune(part)
		runes[0] = unicode.ToUpper(runes[0])
		b.WriteString(string(runes))
	}
	return b.String()
}

// column validates a caller identifier and returns its snake_case form.
// A qualified name like t.userId keeps its qualifier.
func column(name string) (string, error) {
	name = strings.TrimSpace(name)
	if !identifierPattern.MatchString(name) {
		return "", invalidf("bad identifier %q", name)
	}
	if idx := strings.IndexByte(name, '.'); idx >= 0 {
		return name[:idx+1] + ToSnake(name[idx+1:]), nil
	}
	return ToSnake(name), nil
}
