package cursor

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"testing"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/stretchr/testify/require"
	"xorkevin.dev/ibu/typecast"
	"xorkevin.dev/kerrors"
)

type (
	affected int64

	fakeNative struct {
		cols       []Column
		rows       []Row
		pos        int
		execErr    error
		fetchErr   error
		closeErr   error
		executed   []string
		manyCount  int
		procs      []string
		closed     bool
		nextSetRes bool
	}

	fakeOps struct{}

	fakeConn struct {
		broken  bool
		wrapped int
		log     *QueryLog
	}
)

func (r affected) LastInsertId() (int64, error) {
	return 0, errors.New("not supported")
}

func (r affected) RowsAffected() (int64, error) {
	return int64(r), nil
}

var errDriver = errors.New("driver failure")

func (c *fakeNative) Execute(ctx context.Context, query string, args ...any) (Result, error) {
	c.executed = append(c.executed, query)
	if c.execErr != nil {
		return nil, c.execErr
	}
	c.pos = 0
	return affected(1), nil
}

func (c *fakeNative) ExecuteMany(ctx context.Context, query string, params Params) (Result, error) {
	c.executed = append(c.executed, query)
	if c.execErr != nil {
		return nil, c.execErr
	}
	for range params.All() {
		c.manyCount++
	}
	return affected(c.manyCount), nil
}

func (c *fakeNative) CallProc(ctx context.Context, name string, args ...any) (Result, error) {
	c.procs = append(c.procs, name)
	if c.execErr != nil {
		return nil, c.execErr
	}
	return affected(0), nil
}

func (c *fakeNative) FetchOne(ctx context.Context) (Row, error) {
	if c.fetchErr != nil {
		return nil, c.fetchErr
	}
	if c.pos >= len(c.rows) {
		return nil, nil
	}
	row := append(Row{}, c.rows[c.pos]...)
	c.pos++
	return row, nil
}

func (c *fakeNative) FetchMany(ctx context.Context, n int) ([]Row, error) {
	var rows []Row
	for i := 0; i < n; i++ {
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

func (c *fakeNative) FetchAll(ctx context.Context) ([]Row, error) {
	return c.FetchMany(ctx, len(c.rows))
}

func (c *fakeNative) NextSet(ctx context.Context) (bool, error) {
	if c.fetchErr != nil {
		return false, c.fetchErr
	}
	return c.nextSetRes, nil
}

func (c *fakeNative) Columns() ([]Column, error) {
	return c.cols, nil
}

func (c *fakeNative) RowCount() int64 {
	return int64(len(c.rows))
}

func (c *fakeNative) Close() error {
	c.closed = true
	return c.closeErr
}

func (o fakeOps) LastExecutedQuery(c Native, query string, args []any) string {
	if len(args) == 0 {
		return query
	}
	return fmt.Sprintf("%s %v", query, args)
}

func (c *fakeConn) WrapErrors(fn func() error) error {
	c.wrapped++
	return Translate(fn(), nil)
}

func (c *fakeConn) ValidateNoBrokenTransaction() error {
	if c.broken {
		return kerrors.WithKind(nil, ErrBrokenTransaction, "Transaction must be rolled back")
	}
	return nil
}

func (c *fakeConn) Ops() Ops {
	return fakeOps{}
}

func (c *fakeConn) QueriesLog() *QueryLog {
	return c.log
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		log: NewQueryLog(),
	}
}

func TestWrapperExecute(t *testing.T) {
	t.Parallel()

	t.Run("delegates to the native cursor", func(t *testing.T) {
		t.Parallel()

		assert := require.New(t)

		native := &fakeNative{}
		conn := newFakeConn()
		c := New(native, conn, nil)
		res, err := c.Execute(context.Background(), "INSERT INTO t VALUES (?)", 1)
		assert.NoError(err)
		n, err := res.RowsAffected()
		assert.NoError(err)
		assert.Equal(int64(1), n)
		assert.Equal([]string{"INSERT INTO t VALUES (?)"}, native.executed)
		assert.Equal(1, conn.wrapped)
	})

	t.Run("broken transaction never reaches the native cursor", func(t *testing.T) {
		t.Parallel()

		assert := require.New(t)

		native := &fakeNative{}
		conn := newFakeConn()
		conn.broken = true
		c := New(native, conn, nil)

		_, err := c.Execute(context.Background(), "SELECT 1")
		assert.ErrorIs(err, ErrBrokenTransaction)
		_, err = c.ExecuteMany(context.Background(), "SELECT 1", ParamSlice{{1}})
		assert.ErrorIs(err, ErrBrokenTransaction)
		_, err = c.CallProc(context.Background(), "proc")
		assert.ErrorIs(err, ErrBrokenTransaction)

		assert.Empty(native.executed)
		assert.Empty(native.procs)
		assert.Equal(0, conn.wrapped)
	})

	t.Run("translates driver errors and still closes", func(t *testing.T) {
		t.Parallel()

		assert := require.New(t)

		native := &fakeNative{
			execErr:  errDriver,
			closeErr: errors.New("close failure"),
		}
		conn := newFakeConn()
		err := func() error {
			c := New(native, conn, nil)
			defer c.Close()
			_, err := c.Execute(context.Background(), "SELECT 1")
			return err
		}()
		assert.ErrorIs(err, ErrDatabase)
		assert.ErrorIs(err, errDriver)
		assert.True(native.closed)
	})

	t.Run("execute many accepts lazy params", func(t *testing.T) {
		t.Parallel()

		assert := require.New(t)

		native := &fakeNative{}
		c := New(native, newFakeConn(), nil)
		var lazy iter.Seq[[]any] = func(yield func([]any) bool) {
			for i := 0; i < 3; i++ {
				if !yield([]any{i}) {
					return
				}
			}
		}
		res, err := c.ExecuteMany(context.Background(), "INSERT INTO t VALUES (?)", ParamIter(lazy))
		assert.NoError(err)
		n, err := res.RowsAffected()
		assert.NoError(err)
		assert.Equal(int64(3), n)
	})

	t.Run("call proc delegates", func(t *testing.T) {
		t.Parallel()

		assert := require.New(t)

		native := &fakeNative{}
		c := New(native, newFakeConn(), nil)
		_, err := c.CallProc(context.Background(), "refresh", 1, 2)
		assert.NoError(err)
		assert.Equal([]string{"refresh"}, native.procs)
	})
}

func TestWrapperFetch(t *testing.T) {
	t.Parallel()

	newNative := func() *fakeNative {
		return &fakeNative{
			cols: []Column{
				{Name: "id", TypeName: "INTEGER"},
				{Name: "born", TypeName: "DATE"},
				{Name: "price", TypeName: "DECIMAL"},
			},
			rows: []Row{
				{int64(1), "2005-07-29", "3.50"},
				{int64(2), nil, []byte("")},
				{int64(3), "1999-12-31", "10"},
			},
		}
	}

	t.Run("fetch one converts text columns", func(t *testing.T) {
		t.Parallel()

		assert := require.New(t)

		c := New(newNative(), newFakeConn(), nil)
		row, err := c.FetchOne(context.Background())
		assert.NoError(err)
		assert.Len(row, 3)
		assert.Equal(int64(1), row[0])
		assert.Equal(typecast.Date{Year: 2005, Month: time.July, Day: 29}, row[1])
		d, ok := row[2].(*apd.Decimal)
		assert.True(ok)
		assert.Equal("3.50", d.String())

		row, err = c.FetchOne(context.Background())
		assert.NoError(err)
		assert.Equal(Row{int64(2), nil, nil}, row)
	})

	t.Run("fetch many and all", func(t *testing.T) {
		t.Parallel()

		assert := require.New(t)

		c := New(newNative(), newFakeConn(), nil)
		rows, err := c.FetchMany(context.Background(), 2)
		assert.NoError(err)
		assert.Len(rows, 2)
		rows, err = c.FetchAll(context.Background())
		assert.NoError(err)
		assert.Len(rows, 1)
		assert.Equal(typecast.Date{Year: 1999, Month: time.December, Day: 31}, rows[0][1])
		rows, err = c.FetchAll(context.Background())
		assert.NoError(err)
		assert.Empty(rows)
		row, err := c.FetchOne(context.Background())
		assert.NoError(err)
		assert.Nil(row)
	})

	t.Run("conversion errors are not translated", func(t *testing.T) {
		t.Parallel()

		assert := require.New(t)

		native := newNative()
		native.rows = []Row{{int64(1), "2005-07-32", "1"}}
		c := New(native, newFakeConn(), nil)
		_, err := c.FetchOne(context.Background())
		assert.ErrorIs(err, typecast.ErrInvalidValue)
		assert.False(errors.Is(err, ErrDatabase))
	})

	t.Run("fetch errors are translated", func(t *testing.T) {
		t.Parallel()

		assert := require.New(t)

		native := newNative()
		native.fetchErr = errDriver
		c := New(native, newFakeConn(), nil)
		_, err := c.FetchOne(context.Background())
		assert.ErrorIs(err, ErrDatabase)
		assert.ErrorIs(err, errDriver)
		_, err = c.FetchMany(context.Background(), 1)
		assert.ErrorIs(err, ErrDatabase)
		_, err = c.FetchAll(context.Background())
		assert.ErrorIs(err, ErrDatabase)
		_, err = c.NextSet(context.Background())
		assert.ErrorIs(err, ErrDatabase)
	})

	t.Run("iterates rows once", func(t *testing.T) {
		t.Parallel()

		assert := require.New(t)

		c := New(newNative(), newFakeConn(), nil)
		var ids []any
		for row, err := range c.Rows(context.Background()) {
			assert.NoError(err)
			ids = append(ids, row[0])
		}
		assert.Equal([]any{int64(1), int64(2), int64(3)}, ids)
		count := 0
		for range c.Rows(context.Background()) {
			count++
		}
		assert.Equal(0, count)
	})

	t.Run("iteration stops on error", func(t *testing.T) {
		t.Parallel()

		assert := require.New(t)

		native := newNative()
		native.fetchErr = errDriver
		c := New(native, newFakeConn(), nil)
		var errs []error
		for row, err := range c.Rows(context.Background()) {
			assert.Nil(row)
			errs = append(errs, err)
		}
		assert.Len(errs, 1)
		assert.ErrorIs(errs[0], ErrDatabase)
	})

	t.Run("passes through columns and row count", func(t *testing.T) {
		t.Parallel()

		assert := require.New(t)

		native := newNative()
		c := New(native, newFakeConn(), nil)
		cols, err := c.Columns()
		assert.NoError(err)
		assert.Equal(native.cols, cols)
		assert.Equal(int64(3), c.RowCount())
		assert.Same(native, c.Native())
	})
}

type (
	classifiedErr struct{}
)

func (e classifiedErr) Error() string {
	return "constraint failed"
}

func TestTranslate(t *testing.T) {
	t.Parallel()

	assert := require.New(t)

	assert.NoError(Translate(nil, nil))

	err := Translate(errDriver, nil)
	assert.ErrorIs(err, ErrDatabase)
	assert.ErrorIs(err, errDriver)

	again := Translate(err, nil)
	assert.Equal(err, again)

	classify := func(err error) error {
		if errors.Is(err, classifiedErr{}) {
			return ErrIntegrity
		}
		return nil
	}
	err = Translate(classifiedErr{}, classify)
	assert.ErrorIs(err, ErrIntegrity)
	assert.ErrorIs(err, ErrDatabase)
	assert.ErrorIs(err, classifiedErr{})

	broken := kerrors.WithKind(nil, ErrBrokenTransaction, "broken")
	assert.Equal(broken, Translate(broken, classify))
}

func TestError(t *testing.T) {
	t.Parallel()

	assert := require.New(t)

	for _, tc := range []struct {
		Err    error
		String string
	}{
		{
			Err:    ErrBrokenTransaction,
			String: "Broken transaction",
		},
		{
			Err:    ErrDatabase,
			String: "Database error",
		},
		{
			Err:    ErrIntegrity,
			String: "Integrity error",
		},
		{
			Err:    ErrOperational,
			String: "Operational error",
		},
		{
			Err:    ErrProgramming,
			String: "Programming error",
		},
		{
			Err:    ErrData,
			String: "Data error",
		},
		{
			Err:    ErrNotSupported,
			String: "Not supported error",
		},
		{
			Err:    ErrInterface,
			String: "Interface error",
		},
	} {
		tc := tc
		assert.Equal(tc.String, tc.Err.Error())
	}
}
