package userstore

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Errors reported by the user store.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrDatabase           = errors.New("user store database error")
	ErrMismatch           = errors.New("passwords do not match")
	ErrTooShort           = errors.New("password too short")
	ErrNoRowsUpdated      = errors.New("password not updated")
	ErrGrantExpired       = errors.New("reset grant expired")
	// ErrUnavailable is returned when the service cannot be reached or the
	// circuit breaker is open.
	ErrUnavailable = errors.New("user store unavailable")
)

var codes = map[string]error{
	"invalid_credentials": ErrInvalidCredentials,
	"user_not_found":      ErrUserNotFound,
	"duplicate_email":     ErrDuplicateEmail,
	"db_error":            ErrDatabase,
	"mismatch":            ErrMismatch,
	"too_short":           ErrTooShort,
	"no_rows_updated":     ErrNoRowsUpdated,
}

// Code returns the wire code for a known error, or "" otherwise.
func Code(err error) string {
	for code, target := range codes {
		if errors.Is(err, target) {
			return code
		}
	}
	switch {
	case errors.Is(err, ErrGrantExpired):
		return "grant_expired"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	}
	return ""
}

// RemoteError is an error code the client does not know.
type RemoteError struct {
	Code string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("user store error %q", e.Code)
}

func errorFor(code string) error {
	if err, ok := codes[code]; ok {
		return err
	}
	return &RemoteError{Code: code}
}
