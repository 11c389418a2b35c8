package sqldb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"xorkevin.dev/ibu/cursor"
	"xorkevin.dev/ibu/typecast"
)

var (
	errNoResultSet    = errors.New("No result set to fetch from")
	errCursorClosed   = errors.New("Cursor already closed")
	errNoLastInsertID = errors.New("Last insert id not available")
)

type (
	// nativeCursor implements [cursor.Native] over the executor of its
	// connection
	nativeCursor struct {
		conn     *Conn
		rows     Rows
		cols     []cursor.Column
		rowCount int64
		closed   bool
	}
)

var rowKeywords = map[string]struct{}{
	"SELECT":   {},
	"WITH":     {},
	"VALUES":   {},
	"PRAGMA":   {},
	"EXPLAIN":  {},
	"SHOW":     {},
	"DESCRIBE": {},
	"TABLE":    {},
}

// returnsRows reports whether a statement produces a result set
func returnsRows(query string) bool {
	fields := strings.Fields(strings.TrimLeft(query, "( \t\r\n"))
	if len(fields) == 0 {
		return false
	}
	if _, ok := rowKeywords[strings.ToUpper(fields[0])]; ok {
		return true
	}
	for _, i := range fields[1:] {
		if strings.EqualFold(i, "RETURNING") {
			return true
		}
	}
	return false
}

func newNativeCursor(conn *Conn) *nativeCursor {
	return &nativeCursor{
		conn:     conn,
		rowCount: -1,
	}
}

// reset releases the current result set before the next statement
func (c *nativeCursor) reset() error {
	if c.closed {
		return errCursorClosed
	}
	c.cols = nil
	c.rowCount = -1
	if c.rows != nil {
		rows := c.rows
		c.rows = nil
		if err := rows.Close(); err != nil {
			return err
		}
	}
	return nil
}

func (c *nativeCursor) Execute(ctx context.Context, query string, args ...any) (cursor.Result, error) {
	if err := c.reset(); err != nil {
		return nil, err
	}
	ex := c.conn.executor()
	if returnsRows(query) {
		rows, err := ex.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		c.rows = rows
		return execResult{affected: -1}, nil
	}
	res, err := ex.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err == nil {
		c.rowCount = n
	}
	return res, nil
}

func (c *nativeCursor) ExecuteMany(ctx context.Context, query string, params cursor.Params) (_ cursor.Result, retErr error) {
	if err := c.reset(); err != nil {
		return nil, err
	}
	stmt, err := c.conn.executor().PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := stmt.Close(); err != nil && retErr == nil {
			retErr = err
		}
	}()
	total := execResult{}
	for i := range params.All() {
		res, err := stmt.ExecContext(ctx, i...)
		if err != nil {
			return nil, err
		}
		if n, err := res.RowsAffected(); err == nil {
			total.affected += n
		}
		if id, err := res.LastInsertId(); err == nil {
			total.lastID = id
			total.hasID = true
		}
	}
	c.rowCount = total.affected
	return total, nil
}

func (c *nativeCursor) CallProc(ctx context.Context, name string, args ...any) (cursor.Result, error) {
	placeholders := make([]string, 0, len(args))
	for n := range args {
		placeholders = append(placeholders, c.conn.ops.Placeholder(n+1))
	}
	return c.Execute(ctx, fmt.Sprintf("CALL %s(%s)", name, strings.Join(placeholders, ", ")), args...)
}

func (c *nativeCursor) loadColumns() error {
	if c.cols != nil || c.rows == nil {
		return nil
	}
	types, err := c.rows.ColumnTypes()
	if err != nil {
		return err
	}
	cols := make([]cursor.Column, 0, len(types))
	for _, i := range types {
		cols = append(cols, cursor.Column{
			Name:     i.Name(),
			TypeName: i.DatabaseTypeName(),
		})
	}
	c.cols = cols
	return nil
}

func (c *nativeCursor) FetchOne(ctx context.Context) (cursor.Row, error) {
	if c.closed {
		return nil, errCursorClosed
	}
	if c.rows == nil {
		return nil, errNoResultSet
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.loadColumns(); err != nil {
		return nil, err
	}
	if !c.rows.Next() {
		if err := c.rows.Err(); err != nil {
			return nil, err
		}
		return nil, nil
	}
	row := make(cursor.Row, len(c.cols))
	dest := make([]any, len(c.cols))
	for n := range row {
		dest[n] = &row[n]
	}
	if err := c.rows.Scan(dest...); err != nil {
		return nil, err
	}
	for n, i := range row {
		row[n] = fromDriverTime(c.cols[n].TypeName, i)
	}
	return row, nil
}

// fromDriverTime maps times already parsed by the driver for date and
// timestamp columns onto typecast values. The wall clock is kept and any
// offset is dropped.
func fromDriverTime(typeName string, v any) any {
	t, ok := v.(time.Time)
	if !ok {
		return v
	}
	if k := strings.IndexByte(typeName, '('); k >= 0 {
		typeName = typeName[:k]
	}
	switch strings.ToUpper(strings.TrimSpace(typeName)) {
	case "DATE":
		return typecast.Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
	case "DATETIME", "TIMESTAMP", "TIMESTAMPTZ":
		return typecast.DateTime{
			Time: time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond()/1000*1000, time.UTC),
		}
	default:
		return v
	}
}

func (c *nativeCursor) FetchMany(ctx context.Context, n int) ([]cursor.Row, error) {
	rows := make([]cursor.Row, 0, n)
	for len(rows) < n {
		row, err := c.FetchOne(ctx)
		if err != nil {
			return nil, err
		}
		if row == nil {
			break
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (c *nativeCursor) FetchAll(ctx context.Context) ([]cursor.Row, error) {
	var rows []cursor.Row
	for {
		row, err := c.FetchOne(ctx)
		if err != nil {
			return nil, err
		}
		if row == nil {
			return rows, nil
		}
		rows = append(rows, row)
	}
}

func (c *nativeCursor) NextSet(ctx context.Context) (bool, error) {
	if c.closed {
		return false, errCursorClosed
	}
	if c.rows == nil {
		return false, errNoResultSet
	}
	c.cols = nil
	if !c.rows.NextResultSet() {
		if err := c.rows.Err(); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (c *nativeCursor) Columns() ([]cursor.Column, error) {
	if c.rows == nil {
		return nil, nil
	}
	if err := c.loadColumns(); err != nil {
		return nil, err
	}
	return c.cols, nil
}

// RowCount is the number of rows affected by the last statement, or -1 if
// unknown
func (c *nativeCursor) RowCount() int64 {
	return c.rowCount
}

func (c *nativeCursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.rows == nil {
		return nil
	}
	rows := c.rows
	c.rows = nil
	return rows.Close()
}
