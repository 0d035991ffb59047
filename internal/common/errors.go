// Package common defines shared constants, sentinel errors and the error
// taxonomy used across client and server layers of authkeeper. Callers should
// use errors.Is / errors.As (or KindOf) to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrEmailTaken = errors.New("email is already registered")

	// Public message for failures whose cause is not shown to callers.
	ErrorInternal = errors.New("internal error")

	// Sent by the gRPC transport when only the access token's lifetime is
	// the problem, so clients know a refresh may help.
	ErrTokenExpired = errors.New("token expired")
)

// Kind classifies an Error for transports. The zero value is KindInternal.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindInvalidCredentials
	KindUpstreamFailure
	KindTokenInvalid
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindUpstreamFailure:
		return "upstream_failure"
	case KindTokenInvalid:
		return "token_invalid"
	default:
		return "internal"
	}
}

// invalidCredentialsMsg is shared by every login failure path.
const invalidCredentialsMsg = "invalid email or password"

// Error is the single error value returned by session operations. Msg is safe
// to show to the caller; Err keeps the underlying cause for logs.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// NewValidationError reports malformed input with the first violation message.
func NewValidationError(msg string) *Error {
	return &Error{Kind: KindValidation, Msg: msg}
}

// NewInvalidCredentialsError never says which half of the credentials was wrong.
func NewInvalidCredentialsError() *Error {
	return &Error{Kind: KindInvalidCredentials, Msg: invalidCredentialsMsg}
}

// NewUploadUnavailableError is returned when a profile image is supplied but
// no blob store is configured. It shares the credentials kind so clients get a 400.
func NewUploadUnavailableError() *Error {
	return &Error{Kind: KindInvalidCredentials, Msg: "profile image upload is unavailable"}
}

// NewUpstreamError wraps a collaborator failure (store, blob storage).
func NewUpstreamError(op string, err error) *Error {
	return &Error{Kind: KindUpstreamFailure, Msg: op + " failed", Err: err}
}

// NewTokenInvalidError covers expired, malformed, wrong-kind and revoked tokens.
func NewTokenInvalidError(err error) *Error {
	return &Error{Kind: KindTokenInvalid, Msg: "invalid or expired token", Err: err}
}

func NewInternalError(err error) *Error {
	return &Error{Kind: KindInternal, Msg: ErrorInternal.Error(), Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// PublicMessage returns the caller-safe message of err.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return ErrorInternal.Error()
}
