package docindex

import (
	"context"
	"errors"
	"fmt"
)

// Application error codes.
const (
	ECONFLICT = "conflict"
	EINTERNAL = "internal"
	EINVALID  = "invalid"
	ENOTFOUND = "not_found"
	ECANCELED = "canceled"
)

// Error represents an application-specific error. Application errors can be
// unwrapped by the caller to extract out the code & message.
type Error struct {
	Code    string
	Message string
}

// Error implements the error interface. Not used by the application otherwise.
func (e *Error) Error() string {
	return fmt.Sprintf("docindex error: code=%s message=%s", e.Code, e.Message)
}

// Errorf is a helper function to return an Error with a given code and formatted message.
func Errorf(code string, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// ErrorCode unwraps an application error and returns its code.
// Non-application errors always return EINTERNAL.
func ErrorCode(err error) string {
	var e *Error
	if err == nil {
		return ""
	} else if errors.As(err, &e) {
		return e.Code
	} else if errors.Is(err, context.Canceled) {
		return ECANCELED
	}
	return EINTERNAL
}

// ErrorMessage unwraps an application error and returns its message.
// Non-application errors return the underlying error text.
func ErrorMessage(err error) string {
	var e *Error
	if err == nil {
		return ""
	} else if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// ErrCanceled wraps cause as a cancellation error. Cancellation is
// cooperative: a canceled job ends CANCELLED, never FAILED.
func ErrCanceled(cause error) error {
	if cause == nil {
		cause = context.Canceled
	}
	return fmt.Errorf("%w: %w", &Error{Code: ECANCELED, Message: "operation canceled"}, cause)
}

// IsCanceled reports whether err is a cancellation error.
func IsCanceled(err error) bool {
	return ErrorCode(err) == ECANCELED
}

// ScraperErrorKind classifies fetch and crawl failures.
type ScraperErrorKind string

const (
	ErrKindInvalidURL      ScraperErrorKind = "invalid-url"
	ErrKindRedirect        ScraperErrorKind = "redirect"
	ErrKindChallenge       ScraperErrorKind = "challenge"
	ErrKindRetryExhausted  ScraperErrorKind = "retries-exhausted"
	ErrKindHTTPStatus      ScraperErrorKind = "http-status"
	ErrKindFetch           ScraperErrorKind = "fetch"
	ErrKindUnknownStatus   ScraperErrorKind = "unknown-status"
	ErrKindUnsupportedMime ScraperErrorKind = "unsupported-content"
)

// ScraperError is returned by fetchers and strategies for a single URL.
type ScraperError struct {
	Kind       ScraperErrorKind
	URL        string
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *ScraperError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.URL)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ScraperError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a scraper error marked retryable.
func IsRetryable(err error) bool {
	var e *ScraperError
	return errors.As(err, &e) && e.Retryable
}

// IsChallenge reports whether err is a bot-challenge error.
func IsChallenge(err error) bool {
	var e *ScraperError
	return errors.As(err, &e) && e.Kind == ErrKindChallenge
}

// IsFatal reports whether err must abort the whole job rather than only
// skip the current page: cancellation, exhausted retries and challenges
// that no fetcher could get past.
func IsFatal(err error) bool {
	if IsCanceled(err) {
		return true
	}
	var e *ScraperError
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == ErrKindRetryExhausted || e.Kind == ErrKindChallenge
}
