package library

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// DomainError is returned by every store for failures the caller is expected
// to report to the user rather than treat as fatal.
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches on Code so that errors.Is(err, ErrNotFound) works for any
// message.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

const (
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeConflict        = "CONFLICT"
	ErrCodeInvalidInput    = "INVALID_INPUT"
	ErrCodeOutOfStock      = "OUT_OF_STOCK"
	ErrCodeAlreadyReturned = "ALREADY_RETURNED"
	ErrCodeTerminalState   = "TERMINAL_STATE"
)

// Sentinels for errors.Is.
var (
	ErrNotFound        = &DomainError{Code: ErrCodeNotFound}
	ErrConflict        = &DomainError{Code: ErrCodeConflict}
	ErrInvalidInput    = &DomainError{Code: ErrCodeInvalidInput}
	ErrOutOfStock      = &DomainError{Code: ErrCodeOutOfStock}
	ErrAlreadyReturned = &DomainError{Code: ErrCodeAlreadyReturned}
	ErrTerminalState   = &DomainError{Code: ErrCodeTerminalState}
)

func NewNotFoundError(format string, args ...any) error {
	return &DomainError{Code: ErrCodeNotFound, Message: fmt.Sprintf(format, args...)}
}

func NewConflictError(format string, args ...any) error {
	return &DomainError{Code: ErrCodeConflict, Message: fmt.Sprintf(format, args...)}
}

func NewInvalidInputError(format string, args ...any) error {
	return &DomainError{Code: ErrCodeInvalidInput, Message: fmt.Sprintf(format, args...)}
}

func NewOutOfStockError(title string) error {
	return &DomainError{Code: ErrCodeOutOfStock, Message: fmt.Sprintf("'%s' is out of stock", title)}
}

func NewAlreadyReturnedError(borrowID int64) error {
	return &DomainError{Code: ErrCodeAlreadyReturned, Message: fmt.Sprintf("borrow %d already returned", borrowID)}
}

func NewTerminalStateError(format string, args ...any) error {
	return &DomainError{Code: ErrCodeTerminalState, Message: fmt.Sprintf(format, args...)}
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
