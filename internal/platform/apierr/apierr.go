package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind groups errors by who can act on them.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindAuthorization Kind = "authorization"
	KindConflict      Kind = "conflict"
	KindProtocol      Kind = "protocol"
	KindPersistence   Kind = "persistence"
)

type Error struct {
	Status int
	Code   string
	Kind   Kind
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Kind: kindForStatus(status), Err: err}
}

func Validation(code string, err error) *Error {
	return &Error{Status: http.StatusBadRequest, Code: code, Kind: KindValidation, Err: err}
}

func NotFound(code string, err error) *Error {
	return &Error{Status: http.StatusNotFound, Code: code, Kind: KindNotFound, Err: err}
}

func Unauthorized(code string, err error) *Error {
	return &Error{Status: http.StatusUnauthorized, Code: code, Kind: KindAuthorization, Err: err}
}

func Forbidden(code string, err error) *Error {
	return &Error{Status: http.StatusForbidden, Code: code, Kind: KindAuthorization, Err: err}
}

func Conflict(code string, err error) *Error {
	return &Error{Status: http.StatusConflict, Code: code, Kind: KindConflict, Err: err}
}

func Persistence(code string, err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Code: code, Kind: KindPersistence, Err: err}
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e, true
	}
	return nil, false
}

// Is reports whether err carries an *Error of the given kind.
func Is(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return KindAuthorization
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusConflict:
		return KindConflict
	case status >= 500:
		return KindPersistence
	default:
		return KindValidation
	}
}
