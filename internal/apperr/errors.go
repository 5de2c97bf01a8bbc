package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure so callers can react without string matching.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindUnauthorized
	KindRemote
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindRemote:
		return "remote"
	case KindNetwork:
		return "network"
	default:
		return "unknown"
	}
}

const (
	GenericMessage = "Something went wrong. Please try again."
	NetworkMessage = "Network error. Please check your connection."
)

// Error is the uniform failure shape surfaced by the client packages.
type Error struct {
	Kind    Kind
	Status  int    // HTTP status, zero when no response was received
	Code    string // backend error code, if any
	Message string // user-visible message
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes the kind sentinels below match any error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.isSentinel() && t.Kind == e.Kind
}

func (e *Error) isSentinel() bool {
	return e == ErrValidation || e == ErrUnauthorized || e == ErrRemote || e == ErrNetwork
}

// Kind sentinels, use with errors.Is.
var (
	ErrValidation   = &Error{Kind: KindValidation, Message: "validation error"}
	ErrUnauthorized = &Error{Kind: KindUnauthorized, Message: "unauthorized"}
	ErrRemote       = &Error{Kind: KindRemote, Message: "remote error"}
	ErrNetwork      = &Error{Kind: KindNetwork, Message: "network error"}
)

// ErrUnauthenticated is returned when an operation is attempted without a session.
// It never involves a network call.
var ErrUnauthenticated = errors.New("not signed in")

func Validation(err error) *Error {
	return &Error{Kind: KindValidation, Status: http.StatusBadRequest, Message: err.Error(), Err: err}
}

func Validationf(format string, args ...any) *Error {
	return Validation(fmt.Errorf(format, args...))
}

func Unauthenticated() *Error {
	return &Error{
		Kind:    KindUnauthorized,
		Code:    "unauthenticated",
		Message: "Please sign in to continue.",
		Err:     ErrUnauthenticated,
	}
}

func Unauthorized(status int, message string) *Error {
	if message == "" {
		message = "Your session has expired. Please sign in again."
	}
	return &Error{Kind: KindUnauthorized, Status: status, Code: "unauthorized", Message: message}
}

func Remote(status int, code, message string) *Error {
	if message == "" {
		message = GenericMessage
	}
	return &Error{Kind: KindRemote, Status: status, Code: code, Message: message}
}

func Network(err error) *Error {
	return &Error{Kind: KindNetwork, Message: NetworkMessage, Err: err}
}

// KindOf reports the kind of err, or zero if err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// Message returns the text to show the user for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return GenericMessage
}
