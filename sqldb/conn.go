package sqldb

import (
	"context"
	"database/sql"
	"errors"

	"xorkevin.dev/ibu/cursor"
	"xorkevin.dev/ibu/typecast"
	"xorkevin.dev/kerrors"
	"xorkevin.dev/klog"
)

type (
	// Opts are connection options
	Opts struct {
		// Debug hands out instrumented cursors that record the query log
		Debug bool
		// Log receives debug query records
		Log klog.Logger
		// Classify refines translated driver errors, defaults to
		// [ClassifyCommon]
		Classify cursor.Classifier
		// Converters converts result columns, defaults to
		// [typecast.NewRegistry]
		Converters *typecast.Registry
		// Ops renders statements, defaults to ? placeholders
		Ops *Ops
	}

	// Conn is a [cursor.Conn] over a [sql.DB]. A transaction is tracked per
	// Conn so it must not be shared across goroutines without external
	// synchronization.
	Conn struct {
		db            *sql.DB
		tx            *sql.Tx
		needsRollback bool
		debug         bool
		log           klog.Logger
		classify      cursor.Classifier
		conv          *typecast.Registry
		ops           *Ops
		queries       *cursor.QueryLog
	}
)

// New creates a [Conn] that owns db
func New(db *sql.DB, opts Opts) *Conn {
	if opts.Log == nil {
		opts.Log = klog.Discard{}
	}
	if opts.Classify == nil {
		opts.Classify = ClassifyCommon
	}
	if opts.Converters == nil {
		opts.Converters = typecast.NewRegistry()
	}
	if opts.Ops == nil {
		opts.Ops = &Ops{}
	}
	return &Conn{
		db:       db,
		debug:    opts.Debug,
		log:      opts.Log,
		classify: opts.Classify,
		conv:     opts.Converters,
		ops:      opts.Ops,
		queries:  cursor.NewQueryLog(),
	}
}

func (c *Conn) executor() Executor {
	if c.tx != nil {
		return c.tx
	}
	return c.db
}

// Cursor returns a new cursor, instrumented if the connection is in debug
// mode
func (c *Conn) Cursor() cursor.Cursor {
	native := newNativeCursor(c)
	if c.debug {
		return cursor.NewDebug(native, c, c.conv, c.log)
	}
	return cursor.New(native, c, c.conv)
}

// isCursorMisuse reports errors raised by the cursor before reaching the
// database
func isCursorMisuse(err error) bool {
	return errors.Is(err, errNoResultSet) || errors.Is(err, errCursorClosed)
}

// WrapErrors runs fn and translates its error. A database error inside a
// transaction marks the transaction as requiring rollback.
func (c *Conn) WrapErrors(fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}
	if c.tx != nil && !errors.Is(err, cursor.ErrBrokenTransaction) && !isCursorMisuse(err) {
		c.needsRollback = true
	}
	return cursor.Translate(err, c.classify)
}

func (c *Conn) ValidateNoBrokenTransaction() error {
	if c.needsRollback {
		return kerrors.WithKind(nil, cursor.ErrBrokenTransaction, "An error occurred in the current transaction. Statements cannot run until the transaction is rolled back.")
	}
	return nil
}

func (c *Conn) Ops() cursor.Ops {
	return c.ops
}

func (c *Conn) QueriesLog() *cursor.QueryLog {
	return c.queries
}

// InTransaction reports whether a transaction is open
func (c *Conn) InTransaction() bool {
	return c.tx != nil
}

// Begin opens a transaction
func (c *Conn) Begin(ctx context.Context) error {
	if c.tx != nil {
		return kerrors.WithKind(nil, cursor.ErrProgramming, "Transaction already open")
	}
	return c.WrapErrors(func() error {
		tx, err := c.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		c.tx = tx
		c.needsRollback = false
		return nil
	})
}

// Commit commits the open transaction. A broken transaction is not committed
// and must be rolled back.
func (c *Conn) Commit() error {
	if c.tx == nil {
		return kerrors.WithKind(nil, cursor.ErrProgramming, "No transaction open")
	}
	if err := c.ValidateNoBrokenTransaction(); err != nil {
		return err
	}
	tx := c.tx
	c.tx = nil
	return cursor.Translate(tx.Commit(), c.classify)
}

// Rollback rolls back the open transaction and clears the broken state
func (c *Conn) Rollback() error {
	if c.tx == nil {
		return kerrors.WithKind(nil, cursor.ErrProgramming, "No transaction open")
	}
	tx := c.tx
	c.tx = nil
	c.needsRollback = false
	return cursor.Translate(tx.Rollback(), c.classify)
}

// Atomic runs fn in a transaction, committing if fn succeeds and rolling back
// otherwise
func (c *Conn) Atomic(ctx context.Context, fn func(ctx context.Context) error) (retErr error) {
	if err := c.Begin(ctx); err != nil {
		return err
	}
	defer func() {
		if retErr == nil {
			return
		}
		if c.tx != nil {
			if err := c.Rollback(); err != nil {
				retErr = errors.Join(retErr, kerrors.WithMsg(err, "Failed to roll back transaction"))
			}
		}
	}()
	if err := fn(ctx); err != nil {
		return err
	}
	return c.Commit()
}

// Close rolls back any open transaction and closes the database
func (c *Conn) Close() error {
	var retErr error
	if c.tx != nil {
		if err := c.Rollback(); err != nil {
			retErr = kerrors.WithMsg(err, "Failed to roll back transaction")
		}
	}
	if err := c.db.Close(); err != nil {
		retErr = errors.Join(retErr, kerrors.WithMsg(err, "Failed to close database"))
	}
	return retErr
}
