package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeCapacity      Code = "CAPACITY_EXCEEDED"
	CodeInvariant     Code = "INVARIANT_VIOLATION"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
)

// Metadata is how a code is surfaced over HTTP.
type Metadata struct {
	HTTPStatus    int
	Retryable     bool
	PublicMessage string
	// ExposeMessage lets the error's own message replace PublicMessage.
	ExposeMessage  bool
	DetailsAllowed bool
}

type exposure uint8

const (
	retryable exposure = 1 << iota
	ownMessage
	details
)

func meta(status int, public string, flags exposure) Metadata {
	return Metadata{
		HTTPStatus:     status,
		Retryable:      flags&retryable != 0,
		PublicMessage:  public,
		ExposeMessage:  flags&ownMessage != 0,
		DetailsAllowed: flags&details != 0,
	}
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:    meta(http.StatusBadRequest, "validation failed", ownMessage|details),
	CodeUnauthorized:  meta(http.StatusUnauthorized, "authentication required", ownMessage),
	CodeForbidden:     meta(http.StatusForbidden, "access denied", ownMessage),
	CodeNotFound:      meta(http.StatusNotFound, "resource not found", ownMessage),
	CodeConflict:      meta(http.StatusConflict, "conflict detected", ownMessage|details),
	CodeStateConflict: meta(http.StatusUnprocessableEntity, "state transition disallowed", ownMessage|details),
	CodeCapacity:      meta(http.StatusUnprocessableEntity, "requested quantity exceeds what is available", ownMessage|details),
	CodeIdempotency:   meta(http.StatusConflict, "idempotency key reused", ownMessage|details),
	CodeRateLimit:     meta(http.StatusTooManyRequests, "rate limit exceeded", ownMessage),
	// A settled aggregate in a shape the state machine never produces.
	CodeInvariant:  meta(http.StatusInternalServerError, "internal server error", 0),
	CodeInternal:   meta(http.StatusInternalServerError, "internal server error", retryable),
	CodeDependency: meta(http.StatusServiceUnavailable, "dependency unavailable", retryable|details),
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	reason  Reason
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

// Reason reports the domain condition behind the error, if one was attached.
func (e *Error) Reason() Reason {
	if e == nil {
		return ""
	}
	return e.reason
}

// WithReason returns a copy of e carrying reason.
func (e *Error) WithReason(reason Reason) *Error {
	if e == nil {
		return nil
	}
	clone := *e
	clone.reason = reason
	return &clone
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

// WithDetails returns a copy of e carrying details.
func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	clone := *e
	clone.details = details
	return &clone
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.reason != "" {
		return fmt.Sprintf("%s(%s): %s", e.code, e.reason, e.message)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

// Is matches another *Error by code, and by reason when target has one, so
// errors.Is(err, New(CodeNotFound, "")) works across wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.code == t.code && (t.reason == "" || e.reason == t.reason)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// HasReason reports whether any typed error in err's chain carries reason.
func HasReason(err error, reason Reason) bool {
	for err != nil {
		var typed *Error
		if !stdErrors.As(err, &typed) {
			return false
		}
		if typed.reason == reason {
			return true
		}
		err = typed.cause
	}
	return false
}
