// Package sqldb implements cursors and connections over [database/sql]
package sqldb

import (
	"context"
	"database/sql"
)

type (
	// Executor is the interface of the subset of methods shared by [sql.DB],
	// [sql.Conn], and [sql.Tx]
	Executor interface {
		ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
		QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
		PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	}

	// Result is [sql.Result]
	Result = sql.Result

	// Rows is the interface boundary of [sql.Rows]
	Rows interface {
		Next() bool
		NextResultSet() bool
		Scan(dest ...interface{}) error
		ColumnTypes() ([]*sql.ColumnType, error)
		Err() error
		Close() error
	}

	// execResult is the summed result of repeated executions
	execResult struct {
		affected int64
		lastID   int64
		hasID    bool
	}
)

func (r execResult) LastInsertId() (int64, error) {
	if !r.hasID {
		return 0, errNoLastInsertID
	}
	return r.lastID, nil
}

func (r execResult) RowsAffected() (int64, error) {
	return r.affected, nil
}
