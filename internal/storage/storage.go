// Package storage defines the per-visitor key/value store that backs the
// storefront state (cart, consent flag and usage log).
package storage

import (
	"context"

	"github.com/go-faster/errors"
)

// Keys persisted for every visitor.
const (
	KeyCart     = "cart"
	KeyConsent  = "consent"
	KeyUsageLog = "usage_log"
)

// ErrNotFound is returned by KV.Get when the key has never been written.
var ErrNotFound = errors.New("key not found")

// KV is a string-valued key/value store scoped to a single visitor.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Backend hands out visitor-scoped KV views over one physical store.
type Backend interface {
	Namespace(sessionID string) KV
	Ping(ctx context.Context) error
	Close() error
}

// UnavailableError wraps a backend failure. The domain treats it as a
// recoverable condition and falls back to in-memory state.
type UnavailableError struct {
	Op  string
	Key string
	Err error
}

func (e *UnavailableError) Error() string {
	return "storage " + e.Op + " " + e.Key + ": " + e.Err.Error()
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Unavailable wraps err as an *UnavailableError unless it is nil or ErrNotFound.
func Unavailable(op, key string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	return &UnavailableError{Op: op, Key: key, Err: err}
}

// IsUnavailable reports whether err came from a failing backend.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}
