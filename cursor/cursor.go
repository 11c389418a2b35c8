// Package cursor wraps native database cursors with transaction validation,
// normalized errors, and result type conversion.
package cursor

import (
	"context"
	"database/sql"
	"iter"

	"xorkevin.dev/ibu/typecast"
)

type (
	// Row is a single result row
	Row = []any

	// Result is [sql.Result]
	Result = sql.Result

	// Column describes a result column
	Column struct {
		Name     string
		TypeName string
	}

	// Native is the driver cursor being wrapped. FetchOne returns a nil row
	// once the result set is exhausted.
	Native interface {
		Execute(ctx context.Context, query string, args ...any) (Result, error)
		ExecuteMany(ctx context.Context, query string, params Params) (Result, error)
		CallProc(ctx context.Context, name string, args ...any) (Result, error)
		FetchOne(ctx context.Context) (Row, error)
		FetchMany(ctx context.Context, n int) ([]Row, error)
		FetchAll(ctx context.Context) ([]Row, error)
		NextSet(ctx context.Context) (bool, error)
		Columns() ([]Column, error)
		RowCount() int64
		Close() error
	}

	// Ops renders dialect specific statements
	Ops interface {
		// LastExecutedQuery renders a best effort literal form of a statement
		// for logging
		LastExecutedQuery(c Native, query string, args []any) string
	}

	// Conn is the connection that owns a cursor
	Conn interface {
		// WrapErrors runs fn and translates any driver error it returns into
		// a normalized error
		WrapErrors(fn func() error) error
		// ValidateNoBrokenTransaction returns [ErrBrokenTransaction] if the
		// current transaction must be rolled back before further statements
		ValidateNoBrokenTransaction() error
		Ops() Ops
		QueriesLog() *QueryLog
	}

	// Cursor is the execution surface shared by [Wrapper] and [DebugWrapper]
	Cursor interface {
		Execute(ctx context.Context, query string, args ...any) (Result, error)
		ExecuteMany(ctx context.Context, query string, params Params) (Result, error)
		CallProc(ctx context.Context, name string, args ...any) (Result, error)
		FetchOne(ctx context.Context) (Row, error)
		FetchMany(ctx context.Context, n int) ([]Row, error)
		FetchAll(ctx context.Context) ([]Row, error)
		NextSet(ctx context.Context) (bool, error)
		Rows(ctx context.Context) iter.Seq2[Row, error]
		Columns() ([]Column, error)
		RowCount() int64
		Native() Native
		Close()
	}

	// Wrapper wraps a [Native] cursor. It is not safe for concurrent use.
	Wrapper struct {
		native Native
		conn   Conn
		conv   *typecast.Registry
	}
)

// New creates a [Wrapper]. A nil registry uses [typecast.NewRegistry].
func New(native Native, conn Conn, conv *typecast.Registry) *Wrapper {
	if conv == nil {
		conv = typecast.NewRegistry()
	}
	return &Wrapper{
		native: native,
		conn:   conn,
		conv:   conv,
	}
}

// Execute runs a statement
func (c *Wrapper) Execute(ctx context.Context, query string, args ...any) (Result, error) {
	if err := c.conn.ValidateNoBrokenTransaction(); err != nil {
		return nil, err
	}
	var res Result
	if err := c.conn.WrapErrors(func() error {
		var err error
		res, err = c.native.Execute(ctx, query, args...)
		return err
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// ExecuteMany runs a statement once for each parameter list
func (c *Wrapper) ExecuteMany(ctx context.Context, query string, params Params) (Result, error) {
	if err := c.conn.ValidateNoBrokenTransaction(); err != nil {
		return nil, err
	}
	var res Result
	if err := c.conn.WrapErrors(func() error {
		var err error
		res, err = c.native.ExecuteMany(ctx, query, params)
		return err
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// CallProc calls a stored procedure
func (c *Wrapper) CallProc(ctx context.Context, name string, args ...any) (Result, error) {
	if err := c.conn.ValidateNoBrokenTransaction(); err != nil {
		return nil, err
	}
	var res Result
	if err := c.conn.WrapErrors(func() error {
		var err error
		res, err = c.native.CallProc(ctx, name, args...)
		return err
	}); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Wrapper) columns() ([]Column, error) {
	var cols []Column
	if err := c.conn.WrapErrors(func() error {
		var err error
		cols, err = c.native.Columns()
		return err
	}); err != nil {
		return nil, err
	}
	return cols, nil
}

// convertRow passes text values through the typecast converter for their
// column type. Conversion errors are not translated.
func (c *Wrapper) convertRow(cols []Column, row Row) (Row, error) {
	for n, i := range row {
		if n >= len(cols) {
			break
		}
		v, err := c.conv.Convert(cols[n].TypeName, i)
		if err != nil {
			return nil, err
		}
		row[n] = v
	}
	return row, nil
}

// FetchOne returns the next row, or nil when the result set is exhausted
func (c *Wrapper) FetchOne(ctx context.Context) (Row, error) {
	var row Row
	if err := c.conn.WrapErrors(func() error {
		var err error
		row, err = c.native.FetchOne(ctx)
		return err
	}); err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	cols, err := c.columns()
	if err != nil {
		return nil, err
	}
	return c.convertRow(cols, row)
}

// FetchMany returns up to n rows
func (c *Wrapper) FetchMany(ctx context.Context, n int) ([]Row, error) {
	var rows []Row
	if err := c.conn.WrapErrors(func() error {
		var err error
		rows, err = c.native.FetchMany(ctx, n)
		return err
	}); err != nil {
		return nil, err
	}
	return c.convertRows(rows)
}

// FetchAll returns all remaining rows
func (c *Wrapper) FetchAll(ctx context.Context) ([]Row, error) {
	var rows []Row
	if err := c.conn.WrapErrors(func() error {
		var err error
		rows, err = c.native.FetchAll(ctx)
		return err
	}); err != nil {
		return nil, err
	}
	return c.convertRows(rows)
}

func (c *Wrapper) convertRows(rows []Row) ([]Row, error) {
	if len(rows) == 0 {
		return rows, nil
	}
	cols, err := c.columns()
	if err != nil {
		return nil, err
	}
	for n, i := range rows {
		row, err := c.convertRow(cols, i)
		if err != nil {
			return nil, err
		}
		rows[n] = row
	}
	return rows, nil
}

// NextSet advances to the next result set
func (c *Wrapper) NextSet(ctx context.Context) (bool, error) {
	var ok bool
	if err := c.conn.WrapErrors(func() error {
		var err error
		ok, err = c.native.NextSet(ctx)
		return err
	}); err != nil {
		return false, err
	}
	return ok, nil
}

// Rows iterates over the remaining rows. Iteration consumes the result set and
// stops after the first error.
func (c *Wrapper) Rows(ctx context.Context) iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		for {
			row, err := c.FetchOne(ctx)
			if err != nil {
				yield(nil, err)
				return
			}
			if row == nil {
				return
			}
			if !yield(row, nil) {
				return
			}
		}
	}
}

// Columns is passed through to the native cursor
func (c *Wrapper) Columns() ([]Column, error) {
	return c.native.Columns()
}

// RowCount is passed through to the native cursor
func (c *Wrapper) RowCount() int64 {
	return c.native.RowCount()
}

// Native returns the wrapped cursor
func (c *Wrapper) Native() Native {
	return c.native
}

// Close closes the native cursor. Close errors are discarded.
func (c *Wrapper) Close() {
	_ = c.native.Close()
}
