package db

import (
	"errors"
	"fmt"
)

// Kind classifies repository failures so callers can map them to responses.
type Kind int

const (
	// KindNotFound means the addressed entity or association does not exist.
	KindNotFound Kind = iota + 1
	// KindStorage covers engine errors, constraint violations and malformed rows.
	KindStorage
	// KindInternal covers failures not attributable to storage, such as pool exhaustion.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindStorage:
		return "storage fault"
	case KindInternal:
		return "internal error"
	default:
		return "unknown"
	}
}

var (
	ErrNotFound = &Error{Kind: KindNotFound}
	ErrStorage  = &Error{Kind: KindStorage}
	ErrInternal = &Error{Kind: KindInternal}

	// ErrMalformedData is the cause of a storage fault raised while decoding a row
	// or encoding an enum value that has no stored token.
	ErrMalformedData = errors.New("malformed data")
)

// Error is returned by every Repository operation that fails.
type Error struct {
	Kind Kind
	// Op names the repository operation, e.g. "update task".
	Op  string
	Msg string
	Err error
}

func (e *Error) Error() string {
	msg := "sqlite: "
	if e.Op != "" {
		msg += e.Op + ": "
	}
	switch {
	case e.Msg != "" && e.Err != nil:
		return msg + e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return msg + e.Msg
	case e.Err != nil:
		return msg + e.Err.Error()
	}
	return msg + e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so errors.Is(err, ErrNotFound) works
// regardless of the operation that produced err.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func notFound(op, format string, args ...any) error {
	return &Error{Kind: KindNotFound, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func storageFault(op string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		if e.Op == "" {
			e.Op = op
		}
		return err
	}
	msg := ""
	if IsConstraint(err) {
		msg = "constraint violation"
	}
	return &Error{Kind: KindStorage, Op: op, Msg: msg, Err: err}
}

func internal(op, msg string, err error) error {
	return &Error{Kind: KindInternal, Op: op, Msg: msg, Err: err}
}

func malformed(column, value string, err error) error {
	return &Error{
		Kind: KindStorage,
		Msg:  fmt.Sprintf("decode %s %q", column, value),
		Err:  fmt.Errorf("%w: %v", ErrMalformedData, err),
	}
}

// KindOf returns the Kind of err, or 0 when err did not come from this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
