// Package apperr holds the error taxonomy shared by every domain package and
// its mapping onto HTTP responses.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindState
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindState:
		return "state"
	default:
		return "internal"
	}
}

// Error is a classified domain error. Two errors are considered the same by
// errors.Is when their codes match, so sentinels can be re-created with a
// more specific message and still be matched.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// WithMessage returns a copy of e carrying a request specific message.
func (e *Error) WithMessage(format string, args ...any) *Error {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

const (
	CodeMonthClosed         = "MONTH_CLOSED"
	CodeAlreadyFinalized    = "ALREADY_FINALIZED"
	CodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	CodeNothingToFinalize   = "NOTHING_TO_FINALIZE"
	CodeSelfTransfer        = "SELF_TRANSFER"
	CodeInvalidAmount       = "INVALID_AMOUNT"
	CodeInvalidMonth        = "INVALID_MONTH"
	CodeInvalidInput        = "INVALID_INPUT"
	CodeDuplicate           = "DUPLICATE"
	CodeReferenced          = "REFERENCED"
	CodeNotFound            = "NOT_FOUND"
	CodeInternal            = "INTERNAL"
)

var (
	ErrMonthClosed         = &Error{Kind: KindState, Code: CodeMonthClosed, Message: "month is closed"}
	ErrAlreadyFinalized    = &Error{Kind: KindState, Code: CodeAlreadyFinalized, Message: "actuals already finalized"}
	ErrInsufficientBalance = &Error{Kind: KindState, Code: CodeInsufficientBalance, Message: "insufficient remaining balance"}
	ErrNothingToFinalize   = &Error{Kind: KindState, Code: CodeNothingToFinalize, Message: "no actual amounts to finalize"}
	ErrSelfTransfer        = &Error{Kind: KindValidation, Code: CodeSelfTransfer, Message: "source and target project must differ"}
	ErrInvalidAmount       = &Error{Kind: KindValidation, Code: CodeInvalidAmount, Message: "invalid amount"}
	ErrInvalidMonth        = &Error{Kind: KindValidation, Code: CodeInvalidMonth, Message: "invalid month, expected YYYYMM"}
	ErrDuplicate           = &Error{Kind: KindConflict, Code: CodeDuplicate, Message: "record already exists"}
	ErrReferenced          = &Error{Kind: KindConflict, Code: CodeReferenced, Message: "record is referenced"}
	ErrNotFound            = &Error{Kind: KindNotFound, Code: CodeNotFound, Message: "not found"}
)

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: CodeInvalidInput, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return ErrNotFound.WithMessage(format, args...)
}

func Conflict(format string, args ...any) *Error {
	return ErrDuplicate.WithMessage(format, args...)
}

// Internal wraps an infrastructure failure.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: msg, Err: err}
}

// KindOf reports the kind of err, KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf reports the code of err, CodeInternal for unclassified errors.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
