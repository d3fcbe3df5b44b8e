// Package errors provides FlexAuth's domain error kinds and their HTTP mapping.
//
// Every error the core packages return is one of the kinds in spec.md §7,
// wrapped with context via Wrap. Handlers never switch on error kind strings;
// they walk the chain with errors.As to find the first (outermost) *Error and read its
// HTTP status directly off it.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies one of the error categories from spec.md §7.
type Kind string

const (
	KindInvalidPayload       Kind = "InvalidPayload"
	KindInvalidEmail         Kind = "InvalidEmail"
	KindInvalidUserAgent     Kind = "InvalidUserAgent"
	KindUserNotFound         Kind = "UserNotFound"
	KindSessionNotFound      Kind = "SessionNotFound"
	KindUserAlreadyExists    Kind = "UserAlreadyExists"
	KindWrongCredentials     Kind = "WrongCredentials"
	KindInvalidPassword      Kind = "InvalidPassword"
	KindUserBlocked          Kind = "UserBlocked"
	KindTokenInvalid         Kind = "TokenInvalid"
	KindSignatureInvalid     Kind = "SignatureInvalid"
	KindExpiredSignature     Kind = "ExpiredSignature"
	KindSessionExpired       Kind = "SessionExpired"
	KindActiveSessionExists  Kind = "ActiveSessionExists"
	KindResetLinkExpired     Kind = "ResetLinkExpired"
	KindResetLinkNotFound    Kind = "ResetLinkNotFound"
	KindVerificationExpired  Kind = "VerificationLinkExpired"
	KindVerificationNotFound Kind = "VerificationLinkNotFound"
	KindKeyNotFound          Kind = "KeyNotFound"
	KindPartialDelete        Kind = "PartialDelete"
	KindServerError          Kind = "ServerError"
	KindCryptoFailure        Kind = "CryptoFailure"
)

// statusByKind is the fixed mapping from spec.md §7's table.
var statusByKind = map[Kind]int{
	KindInvalidPayload:       http.StatusBadRequest,
	KindInvalidEmail:         http.StatusBadRequest,
	KindInvalidUserAgent:     http.StatusBadRequest,
	KindUserNotFound:         http.StatusNotFound,
	KindSessionNotFound:      http.StatusNotFound,
	KindUserAlreadyExists:    http.StatusFound,
	KindWrongCredentials:     http.StatusUnauthorized,
	KindInvalidPassword:      http.StatusUnauthorized,
	KindUserBlocked:          http.StatusUnauthorized,
	KindTokenInvalid:         http.StatusUnauthorized,
	KindSignatureInvalid:     http.StatusUnauthorized,
	KindExpiredSignature:     http.StatusUnauthorized,
	KindSessionExpired:       http.StatusUnauthorized,
	KindActiveSessionExists:  http.StatusConflict,
	KindResetLinkExpired:     http.StatusUnauthorized,
	KindResetLinkNotFound:    http.StatusNotFound,
	KindVerificationExpired:  http.StatusUnauthorized,
	KindVerificationNotFound: http.StatusNotFound,
	KindKeyNotFound:          http.StatusInternalServerError,
	KindPartialDelete:        http.StatusInternalServerError,
	KindServerError:          http.StatusInternalServerError,
	KindCryptoFailure:        http.StatusInternalServerError,
}

// Error is a typed domain error carrying its spec.md §7 kind and message.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause, if any, for errors.Is/As chains.
func (e *Error) Unwrap() error { return e.cause }

// Status returns the HTTP status code this kind surfaces as, per spec.md §7.
func (e *Error) Status() int {
	if status, ok := statusByKind[e.Kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// New creates a domain error of the given kind with a message.
func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a domain error of the given kind, preserving cause in its chain.
func Wrap(kind Kind, message string, cause error) error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// Is reports whether err (or any error in its chain) is of the given kind.
func Is(err error, kind Kind) bool {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind == kind
	}
	return false
}

// StatusFor returns the HTTP status err should surface as. Untyped errors
// default to 500, matching spec.md §7's ServerError fallback.
func StatusFor(err error) int {
	var target *Error
	if errors.As(err, &target) {
		return target.Status()
	}
	return http.StatusInternalServerError
}

// KindOf returns the Kind of err, or KindServerError if err is not a domain Error.
func KindOf(err error) Kind {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind
	}
	return KindServerError
}
