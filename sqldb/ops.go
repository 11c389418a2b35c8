package sqldb

import (
	"database/sql/driver"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"
	"xorkevin.dev/ibu/cursor"
)

type (
	// Ops renders statements for a placeholder style
	Ops struct {
		// Numbered uses $1 style placeholders instead of ?
		Numbered bool
	}
)

// Placeholder returns the placeholder for the nth parameter starting at 1
func (o *Ops) Placeholder(n int) string {
	if o.Numbered {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// LastExecutedQuery substitutes parameters into query as literals. The result
// is meant for logs and is not guaranteed to be valid SQL.
func (o *Ops) LastExecutedQuery(c cursor.Native, query string, args []any) string {
	if len(args) == 0 {
		return query
	}
	b := strings.Builder{}
	b.Grow(len(query))
	var quote byte
	next := 0
	for i := 0; i < len(query); i++ {
		ch := query[i]
		if quote != 0 {
			b.WriteByte(ch)
			if ch == quote {
				quote = 0
			}
			continue
		}
		switch {
		case ch == '\'' || ch == '"':
			quote = ch
			b.WriteByte(ch)
		case ch == '?' && !o.Numbered:
			if next < len(args) {
				b.WriteString(Literal(args[next]))
				next++
			} else {
				b.WriteByte(ch)
			}
		case ch == '$' && o.Numbered:
			k := i + 1
			for k < len(query) && query[k] >= '0' && query[k] <= '9' {
				k++
			}
			n, err := strconv.Atoi(query[i+1 : k])
			if err != nil || n < 1 || n > len(args) {
				b.WriteByte(ch)
				continue
			}
			b.WriteString(Literal(args[n-1]))
			i = k - 1
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Literal renders a parameter as a SQL literal for logs
func Literal(v any) string {
	switch k := v.(type) {
	case nil:
		return "NULL"
	case string:
		return quoteString(k)
	case []byte:
		return "X'" + hex.EncodeToString(k) + "'"
	case bool:
		if k {
			return "TRUE"
		}
		return "FALSE"
	case time.Time:
		return quoteString(k.Format("2006-01-02 15:04:05.999999"))
	case *apd.Decimal:
		if k == nil {
			return "NULL"
		}
		return k.String()
	case driver.Valuer:
		val, err := k.Value()
		if err != nil {
			return quoteString(fmt.Sprint(v))
		}
		return Literal(val)
	case fmt.Stringer:
		return quoteString(k.String())
	default:
		return fmt.Sprint(v)
	}
}
