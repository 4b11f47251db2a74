// Package apperr defines the error kinds surfaced at the HTTP boundary.
// Services return *Error values; handlers map them to a status code and a
// client-safe message in one place.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindAuth
	KindInvalidToken
	KindNotFound
	KindConfiguration
	KindUpstream
	KindUpstreamTimeout
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindAuth:
		return "auth"
	case KindInvalidToken:
		return "invalid_token"
	case KindNotFound:
		return "not_found"
	case KindConfiguration:
		return "configuration"
	case KindUpstream:
		return "upstream"
	case KindUpstreamTimeout:
		return "upstream_timeout"
	default:
		return "internal"
	}
}

// Error is a classified failure. Message is safe to show to clients for
// every kind except KindInternal.
type Error struct {
	Kind    Kind
	Message string

	// Status and Body carry the provider response for KindUpstream.
	Status int
	Body   string

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validation(msg string) error {
	return &Error{Kind: KindValidation, Message: msg}
}

func Conflict(msg string) error {
	return &Error{Kind: KindConflict, Message: msg}
}

// Auth is used for both unknown identities and wrong secrets so callers
// cannot tell the two apart.
func Auth(msg string) error {
	return &Error{Kind: KindAuth, Message: msg}
}

func InvalidToken(err error) error {
	return &Error{Kind: KindInvalidToken, Message: "invalid or expired token", Err: err}
}

func NotFound(msg string) error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func Configuration(msg string) error {
	return &Error{Kind: KindConfiguration, Message: msg}
}

func Upstream(status int, body string, err error) error {
	return &Error{
		Kind:    KindUpstream,
		Message: "payment provider request failed",
		Status:  status,
		Body:    body,
		Err:     err,
	}
}

func UpstreamTimeout(err error) error {
	return &Error{Kind: KindUpstreamTimeout, Message: "payment provider timed out", Err: err}
}

func Internal(err error) error {
	return &Error{Kind: KindInternal, Message: "internal server error", Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindAuth, KindInvalidToken:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstream:
		return http.StatusBadGateway
	case KindUpstreamTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the text a client may see for err.
func PublicMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "internal server error"
	}
	if e.Kind == KindInternal {
		return "internal server error"
	}
	return e.Message
}
