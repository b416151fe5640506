// Package errs holds the closed set of failures every service surfaces to its
// callers. Each failure carries a Kind (which decides the HTTP status) and a
// stable Code clients can branch on.
package errs

import (
	"context"
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation        Kind = "VALIDATION_ERROR"
	KindNotFound          Kind = "NOT_FOUND"
	KindForbidden         Kind = "FORBIDDEN"
	KindUnauthorized      Kind = "UNAUTHORIZED"
	KindInsufficientFunds Kind = "INSUFFICIENT_FUNDS"
	KindNotCancellable    Kind = "NOT_CANCELLABLE"
	KindDateRange         Kind = "INVALID_DATE_RANGE"
	KindConflict          Kind = "CONFLICT"
	KindRetryable         Kind = "RETRYABLE"
	KindDatabase          Kind = "DATABASE_ERROR"
)

// Error is the typed failure returned across package boundaries.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same kind and code, so a
// sentinel matches every copy made with WithMessage.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Code == e.Code
}

// WithMessage returns a copy of e carrying a more specific message.
func (e *Error) WithMessage(format string, args ...any) *Error {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

var (
	ErrInvalidAmount             = &Error{Kind: KindValidation, Code: "INVALID_AMOUNT", Message: "amount must be a positive value with at most 4 decimal places"}
	ErrInvalidCurrency           = &Error{Kind: KindValidation, Code: "INVALID_CURRENCY", Message: "currency must be a 3-letter code"}
	ErrSameAccount               = &Error{Kind: KindValidation, Code: "SAME_ACCOUNT", Message: "cannot transfer to the same account"}
	ErrCurrencyMismatch          = &Error{Kind: KindValidation, Code: "CURRENCY_MISMATCH", Message: "currency does not match the account currency"}
	ErrInvalidGroupBy            = &Error{Kind: KindValidation, Code: "INVALID_GROUP_BY", Message: "groupBy must be a comma separated subset of day, week, month, currency, account"}
	ErrInvalidFilter             = &Error{Kind: KindValidation, Code: "INVALID_FILTER", Message: "invalid filter"}
	ErrInvalidDateRange          = &Error{Kind: KindDateRange, Code: "INVALID_DATE_RANGE", Message: "dates must be YYYY-MM-DD and start must not be after end"}
	ErrAccountNotFound           = &Error{Kind: KindNotFound, Code: "ACCOUNT_NOT_FOUND", Message: "account not found"}
	ErrTransactionNotFound       = &Error{Kind: KindNotFound, Code: "TRANSACTION_NOT_FOUND", Message: "transaction not found"}
	ErrUserNotFound              = &Error{Kind: KindNotFound, Code: "USER_NOT_FOUND", Message: "user not found"}
	ErrForbidden                 = &Error{Kind: KindForbidden, Code: "FORBIDDEN", Message: "you do not have access to this resource"}
	ErrInvalidCredentials        = &Error{Kind: KindUnauthorized, Code: "INVALID_CREDENTIALS", Message: "invalid credentials"}
	ErrInsufficientFunds         = &Error{Kind: KindInsufficientFunds, Code: "INSUFFICIENT_FUNDS", Message: "insufficient funds"}
	ErrInsufficientReversalFunds = &Error{Kind: KindInsufficientFunds, Code: "INSUFFICIENT_REVERSAL_FUNDS", Message: "destination account no longer holds enough funds to reverse this transaction"}
	ErrNotCancellable            = &Error{Kind: KindNotCancellable, Code: "NOT_CANCELLABLE", Message: "transaction cannot be cancelled"}
	ErrEmailTaken                = &Error{Kind: KindConflict, Code: "EMAIL_TAKEN", Message: "email already registered"}
)

// Validation builds an ad-hoc validation failure.
func Validation(code, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Database wraps an unexpected store failure. The driver error is kept for
// logs but never rendered to clients.
func Database(err error) *Error {
	return &Error{Kind: KindDatabase, Code: "DATABASE_ERROR", Message: "an unexpected storage error occurred", Err: err}
}

// Retryable marks a failure the caller may safely retry: lock timeouts,
// serialization conflicts, deadlines.
func Retryable(err error) *Error {
	return &Error{Kind: KindRetryable, Code: "RETRYABLE", Message: "the operation conflicted with a concurrent request, please retry", Err: err}
}

// KindOf returns the Kind of err, or KindDatabase for anything untyped.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindDatabase
}

// CodeOf returns the stable code of err, or DATABASE_ERROR for anything untyped.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "DATABASE_ERROR"
}

// FromContext converts context cancellation and deadline errors into
// Retryable failures and leaves everything else untouched.
func FromContext(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Retryable(err)
	}
	return err
}
