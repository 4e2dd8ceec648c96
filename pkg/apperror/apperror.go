// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package apperror is the shared error taxonomy returned by the
// gateway and worker. Every error a handler can return to a caller is
// one of these kinds, so the HTTP layer maps status codes off Kind
// instead of string-matching error text.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an Error for status-code mapping and logging.
type Kind string

const (
	KindNotFound       Kind = "not_found"
	KindValidation     Kind = "validation"
	KindAuth           Kind = "auth"
	KindInvalidOTP     Kind = "invalid_otp"
	KindRateLimit      Kind = "rate_limit"
	KindConflict       Kind = "conflict"
	KindStorage        Kind = "storage"
	KindInternal       Kind = "internal"
	KindFileProcessing Kind = "file_processing"
)

// Error is the error type every component in this module returns.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New constructs an Error of the given kind with a message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an Error of the given kind, chaining cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// NotFound, Validation, Auth, InvalidOTP, RateLimit, Conflict, Storage,
// and Internal are shorthand constructors for the taxonomy's members.
func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, fmt.Sprintf(format, args...))
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, fmt.Sprintf(format, args...))
}

func Auth(format string, args ...any) *Error {
	return New(KindAuth, fmt.Sprintf(format, args...))
}

func InvalidOTP() *Error {
	return New(KindInvalidOTP, "invalid or expired verification code")
}

func RateLimit() *Error {
	return New(KindRateLimit, "rate limit exceeded")
}

func Conflict(format string, args ...any) *Error {
	return New(KindConflict, fmt.Sprintf(format, args...))
}

func Storage(cause error) *Error {
	return Wrap(KindStorage, "storage error", cause)
}

func Internal(cause error) *Error {
	return Wrap(KindInternal, "internal server error", cause)
}

// HTTPStatus maps an error's Kind to the status code the gateway
// should return. Errors that are not *Error map to 500.
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation, KindFileProcessing:
		return http.StatusBadRequest
	case KindAuth, KindInvalidOTP:
		return http.StatusUnauthorized
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindConflict:
		return http.StatusConflict
	case KindStorage, KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message safe to return to a caller: the
// taxonomy's own Message for caller-facing kinds, and a generic string
// for kinds that might otherwise leak internal detail.
func PublicMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "internal server error"
	}
	switch e.Kind {
	case KindStorage, KindInternal:
		return "internal server error"
	default:
		return e.Message
	}
}
