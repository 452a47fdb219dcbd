package core

import (
	"errors"
	"fmt"

	"github.com/sohaibansari420/careease-backened/internal/store"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindAuth
	KindForbidden
	KindUpstream
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindAuth:
		return "auth"
	case KindForbidden:
		return "forbidden"
	case KindUpstream:
		return "upstream"
	case KindRateLimited:
		return "rate_limited"
	}
	return "internal"
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the error type returned by every service in this package.
type Error struct {
	Kind    Kind
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func ValidationError(message string, fields ...FieldError) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

func NotFoundError(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func AuthError(message string) *Error {
	return &Error{Kind: KindAuth, Message: message}
}

func ForbiddenError(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

func RateLimitedError(message string) *Error {
	return &Error{Kind: KindRateLimited, Message: message}
}

func UpstreamError(err error) *Error {
	return &Error{Kind: KindUpstream, Message: "AI provider request failed", Err: err}
}

func InternalError(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf reports the taxonomy kind of err, defaulting to KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func fieldError(field, message string) *Error {
	return ValidationError("Validation failed", FieldError{Field: field, Message: message})
}

// storeError maps store sentinels onto the taxonomy.
func storeError(err error, notFound, internal string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return NotFoundError(notFound)
	}
	var dup *store.DuplicateError
	if errors.As(err, &dup) {
		return fieldError(dup.Field, dup.Field+" already exists")
	}
	return InternalError(internal, err)
}
