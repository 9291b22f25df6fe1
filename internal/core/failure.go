package core

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind is the machine-readable category of a gateway failure.
type Kind string

const (
	KindConfig       Kind = "config"
	KindAuth         Kind = "auth"
	KindRateLimit    Kind = "rate_limit"
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindForbidden    Kind = "forbidden"
	KindConflict     Kind = "conflict"
	KindAPI          Kind = "api"
	KindTimeout      Kind = "timeout"
	KindNetwork      Kind = "network"
	KindSizeMismatch Kind = "size_mismatch"
	KindUpload       Kind = "upload"
)

// Failure is the structured error surfaced by the gateway core.
//
// Message is redacted on construction; Error() redacts the wrapped cause as
// well, so neither can leak tokens, key material or identifiers.
type Failure struct {
	Kind       Kind
	Status     int
	Code       string
	Message    string
	RetryAfter time.Duration
	Err        error
}

// NewFailure returns a failure of the given kind.
func NewFailure(kind Kind, message string) *Failure {
	return &Failure{Kind: kind, Message: Redact(message)}
}

// Failuref returns a failure with a formatted message.
func Failuref(kind Kind, format string, args ...any) *Failure {
	return NewFailure(kind, fmt.Sprintf(format, args...))
}

// WrapFailure returns a failure of the given kind wrapping err.
func WrapFailure(kind Kind, err error, message string) *Failure {
	f := NewFailure(kind, message)
	f.Err = err
	return f
}

func (f *Failure) Error() string {
	if f == nil {
		return "gateway failure"
	}
	msg := string(f.Kind)
	if f.Status > 0 {
		msg += fmt.Sprintf(" (status %d)", f.Status)
	}
	if f.Message != "" {
		msg += ": " + f.Message
	}
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return Redact(msg)
}

func (f *Failure) Unwrap() error {
	if f == nil {
		return nil
	}
	return f.Err
}

// Retryable reports whether the executor may attempt the call again.
func (f *Failure) Retryable() bool {
	if f == nil {
		return false
	}
	switch f.Kind {
	case KindRateLimit, KindTimeout, KindNetwork:
		return true
	case KindAPI:
		return f.Status >= http.StatusInternalServerError
	default:
		return false
	}
}

// KindOf returns the kind of the outermost Failure in err's chain, or "".
func KindOf(err error) Kind {
	var f *Failure
	if errors.As(err, &f) && f != nil {
		return f.Kind
	}
	return ""
}

// IsKind reports whether err carries a Failure of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// KindForStatus maps an HTTP status from the remote API to a failure kind.
func KindForStatus(status int) Kind {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return KindValidation
	case http.StatusUnauthorized:
		return KindAuth
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusConflict:
		return KindConflict
	case http.StatusTooManyRequests:
		return KindRateLimit
	default:
		return KindAPI
	}
}
