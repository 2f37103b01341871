package core

import (
	"errors"
	"strings"
)

// Error kinds. Every failure returned by [Service] matches exactly one of
// these with errors.Is.
var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("bridge not found")
	ErrConflict         = errors.New("bridge already exists")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Error describes a failed operation on one record.
type Error struct {
	Kind  error  // one of the Err* kinds
	Op    string // create, patch, delete, import ...
	BIN   string
	Field string
	Msg   string // safe to show to users
	Err   error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
	}
	if e.BIN != "" {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(e.BIN)
	}
	if b.Len() > 0 {
		b.WriteString(": ")
	}
	if e.Msg != "" {
		b.WriteString(e.Msg)
	} else if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func validationError(op, bin, field, msg string) error {
	return &Error{Kind: ErrValidation, Op: op, BIN: bin, Field: field, Msg: msg}
}

func notFoundError(op, bin string) error {
	return &Error{Kind: ErrNotFound, Op: op, BIN: bin, Msg: "Bridge not found"}
}

func conflictError(op, bin string) error {
	return &Error{Kind: ErrConflict, Op: op, BIN: bin, Msg: "Bridge already exists"}
}

// classify converts a store error into the taxonomy. Store implementations
// report ErrNotFound and ErrConflict directly. Anything else is treated as
// an unavailable store.
func classify(op, bin string, err error) error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return err
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return &Error{Kind: ErrNotFound, Op: op, BIN: bin, Msg: "Bridge not found", Err: err}
	case errors.Is(err, ErrConflict):
		return &Error{Kind: ErrConflict, Op: op, BIN: bin, Msg: "Bridge already exists", Err: err}
	case errors.Is(err, ErrValidation):
		return &Error{Kind: ErrValidation, Op: op, BIN: bin, Msg: "Invalid record", Err: err}
	}
	return &Error{Kind: ErrStoreUnavailable, Op: op, BIN: bin, Err: err}
}

// ErrorKind returns the taxonomy kind of err, or nil when err carries none.
func ErrorKind(err error) error {
	for _, k := range []error{ErrValidation, ErrNotFound, ErrConflict, ErrStoreUnavailable} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
