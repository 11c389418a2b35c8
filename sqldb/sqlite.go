package sqldb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"xorkevin.dev/ibu/cursor"
	"xorkevin.dev/kerrors"
)

const (
	sqliteDriver = "sqlite3"

	defaultBusyTimeout = "5000"
	defaultSynchronous = "NORMAL"
	defaultJournalMode = "WAL"
	defaultMaxOpen     = 4
)

func init() {
	// Offsets without minutes, as in 2005-07-29 15:48:00.590358-05
	sqlite3.SQLiteTimestampFormats = append(sqlite3.SQLiteTimestampFormats,
		"2006-01-02 15:04:05-07",
		"2006-01-02T15:04:05-07",
	)
}

// OpenSQLite opens a pool for a SQLite file with WAL journaling, a 5s busy
// timeout, and foreign keys enabled. A non-positive maxOpen defaults to 4.
func OpenSQLite(ctx context.Context, path string, maxOpen int) (*sql.DB, error) {
	dsn, err := buildSQLiteDSN(path)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(sqliteDriver, dsn)
	if err != nil {
		return nil, kerrors.WithMsg(err, "Failed to open sqlite")
	}
	if maxOpen <= 0 {
		maxOpen = defaultMaxOpen
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, kerrors.WithMsg(err, "Failed to ping sqlite")
	}
	return db, nil
}

// buildSQLiteDSN adds the default connection params to dsn, keeping any params
// it already sets
func buildSQLiteDSN(dsn string) (string, error) {
	path, rawQuery, _ := strings.Cut(dsn, "?")
	params, err := url.ParseQuery(rawQuery)
	if err != nil {
		return "", kerrors.WithMsg(err, "Invalid sqlite dsn params")
	}
	for _, i := range [][2]string{
		{"_journal_mode", defaultJournalMode},
		{"_busy_timeout", defaultBusyTimeout},
		{"_synchronous", defaultSynchronous},
		{"_foreign_keys", "on"},
	} {
		if !params.Has(i[0]) {
			params.Set(i[0], i[1])
		}
	}
	return path + "?" + params.Encode(), nil
}

// Open opens a [Conn] for a driver and data source name. sqlite3 sources are
// opened with [OpenSQLite] and classified with [ClassifySQLite].
func Open(ctx context.Context, driverName, dsn string, opts Opts) (*Conn, error) {
	if driverName == sqliteDriver {
		db, err := OpenSQLite(ctx, dsn, 0)
		if err != nil {
			return nil, err
		}
		if opts.Classify == nil {
			opts.Classify = ClassifySQLite
		}
		return New(db, opts), nil
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, kerrors.WithMsg(err, fmt.Sprintf("Failed to open database with driver %s", driverName))
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, kerrors.WithMsg(err, fmt.Sprintf("Failed to ping database with driver %s", driverName))
	}
	return New(db, opts), nil
}

// ClassifyCommon classifies errors raised by [database/sql] and the cursor
// itself
func ClassifyCommon(err error) error {
	switch {
	case errors.Is(err, errNoResultSet), errors.Is(err, errCursorClosed):
		return cursor.ErrProgramming
	case errors.Is(err, sql.ErrTxDone), errors.Is(err, sql.ErrConnDone), errors.Is(err, driver.ErrBadConn):
		return cursor.ErrInterface
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return cursor.ErrOperational
	}
	return cursor.ErrDatabase
}

// ClassifySQLite classifies go-sqlite3 errors by result code
func ClassifySQLite(err error) error {
	var serr sqlite3.Error
	if !errors.As(err, &serr) {
		return ClassifyCommon(err)
	}
	switch serr.Code {
	case sqlite3.ErrConstraint:
		return cursor.ErrIntegrity
	case sqlite3.ErrTooBig, sqlite3.ErrMismatch, sqlite3.ErrRange:
		return cursor.ErrData
	case sqlite3.ErrMisuse:
		return cursor.ErrInterface
	case sqlite3.ErrInternal, sqlite3.ErrCorrupt, sqlite3.ErrNotADB:
		return cursor.ErrDatabase
	default:
		return cursor.ErrOperational
	}
}
