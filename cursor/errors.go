package cursor

import (
	"errors"

	"xorkevin.dev/kerrors"
)

var (
	// ErrBrokenTransaction is returned when a statement is run on a
	// transaction that must be rolled back first
	ErrBrokenTransaction errBrokenTransaction
	// ErrDatabase is returned for any driver error on execute, fetch, or
	// iteration
	ErrDatabase errDatabase
	// ErrIntegrity is a database error caused by a violated constraint
	ErrIntegrity errIntegrity
	// ErrOperational is a database error caused by the database operation
	// environment, such as a lock timeout or a missing table
	ErrOperational errOperational
	// ErrProgramming is a database error caused by misuse of the cursor
	ErrProgramming errProgramming
	// ErrData is a database error caused by the value of processed data
	ErrData errData
	// ErrNotSupported is a database error caused by an unsupported operation
	ErrNotSupported errNotSupported
	// ErrInterface is a database error caused by the driver interface
	// rather than the database
	ErrInterface errInterface
)

type (
	errBrokenTransaction struct{}
	errDatabase          struct{}
	errIntegrity         struct{}
	errOperational       struct{}
	errProgramming       struct{}
	errData              struct{}
	errNotSupported      struct{}
	errInterface         struct{}
)

func (e errBrokenTransaction) Error() string {
	return "Broken transaction"
}

func (e errDatabase) Error() string {
	return "Database error"
}

func (e errIntegrity) Error() string {
	return "Integrity error"
}

func (e errOperational) Error() string {
	return "Operational error"
}

func (e errProgramming) Error() string {
	return "Programming error"
}

func (e errData) Error() string {
	return "Data error"
}

func (e errNotSupported) Error() string {
	return "Not supported error"
}

func (e errInterface) Error() string {
	return "Interface error"
}

type (
	// Classifier maps a driver error to one of the database error kinds
	Classifier = func(err error) error
)

// Translate re-signals a driver error as a normalized database error with the
// driver error preserved as its cause. Errors that are already normalized are
// returned unchanged, so nested translation scopes are safe.
func Translate(err error, classify Classifier) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrDatabase) || errors.Is(err, ErrBrokenTransaction) {
		return err
	}
	var kind error = ErrDatabase
	if classify != nil {
		if k := classify(err); k != nil {
			kind = k
		}
	}
	if kind == ErrDatabase {
		return kerrors.WithKind(err, ErrDatabase, "Database error")
	}
	return kerrors.WithKind(kerrors.WithKind(err, kind, kind.Error()), ErrDatabase, "Database error")
}
