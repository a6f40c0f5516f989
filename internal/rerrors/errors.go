// Package rerrors defines the error kinds ricochet's components return:
// sentinel errors carrying a Code, so callers can branch on kind with
// errors.Is/errors.As instead of string matching.
package rerrors

import (
	"errors"
	"fmt"
)

// Code identifies the category of a RicochetError.
type Code string

const (
	CodeStoreIO         Code = "STORE_IO"
	CodeDuplicateToken  Code = "DUPLICATE_TOKEN"
	CodeNetwork         Code = "NETWORK"
	CodeTimeout         Code = "TIMEOUT"
	CodeUsage           Code = "USAGE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
)

// RicochetError is the standard error type returned across ricochet's
// internal packages.
type RicochetError struct {
	Code    Code
	Message string
	Cause   error
}

func (e *RicochetError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *RicochetError) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is match two RicochetErrors by Code alone, so callers can
// test against the exported sentinels below without caring about Message.
func (e *RicochetError) Is(target error) bool {
	t, ok := target.(*RicochetError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func new(code Code, message string) *RicochetError {
	return &RicochetError{Code: code, Message: message}
}

func wrap(err error, code Code, message string) *RicochetError {
	if err == nil {
		return nil
	}
	return &RicochetError{Code: code, Message: message, Cause: err}
}

// Sentinels for errors.Is comparisons. Construct wrapped instances with the
// constructor functions below (StoreIOError, NetworkError, ...) rather than
// mutating these.
var (
	ErrStoreIO         = new(CodeStoreIO, "store I/O failure")
	ErrDuplicateToken  = new(CodeDuplicateToken, "duplicate token")
	ErrNetwork         = new(CodeNetwork, "network failure")
	ErrTimeout         = new(CodeTimeout, "operation timed out")
	ErrUsage           = new(CodeUsage, "usage error")
	ErrNotFound        = new(CodeNotFound, "not found")
	ErrInvalidArgument = new(CodeInvalidArgument, "invalid argument")
)

// StoreIOError wraps a lower-level database/sql or driver error.
func StoreIOError(cause error, message string) *RicochetError {
	return wrap(cause, CodeStoreIO, message)
}

// DuplicateTokenError reports a token collision detected at insert time.
func DuplicateTokenError(token string) *RicochetError {
	return new(CodeDuplicateToken, fmt.Sprintf("token %q already exists", token))
}

// NetworkError wraps a transport-level failure from the HTTP client.
func NetworkError(cause error, message string) *RicochetError {
	return wrap(cause, CodeNetwork, message)
}

// TimeoutError wraps a context deadline or dial timeout.
func TimeoutError(cause error, message string) *RicochetError {
	return wrap(cause, CodeTimeout, message)
}

// UsageError reports a CLI invocation error (bad flags, missing args). The
// CLI entrypoint maps this kind to exit code 2.
func UsageError(message string) *RicochetError {
	return new(CodeUsage, message)
}

// NotFoundError reports a missing record (e.g. unknown token looked up).
func NotFoundError(message string) *RicochetError {
	return new(CodeNotFound, message)
}

// InvalidArgumentError reports a malformed value supplied to a constructor.
func InvalidArgumentError(message string) *RicochetError {
	return new(CodeInvalidArgument, message)
}

// IsUsage reports whether err is (or wraps) a usage error, used by the CLI's
// exit-code mapping.
func IsUsage(err error) bool {
	var re *RicochetError
	return errors.As(err, &re) && re != nil && re.Code == CodeUsage
}

// As extracts a *RicochetError from err's chain, if present.
func As(err error) (*RicochetError, bool) {
	var re *RicochetError
	ok := errors.As(err, &re)
	return re, ok
}
