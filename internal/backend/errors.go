package backend

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by point queries that matched no rows.
var ErrNotFound = errors.New("backend: no rows")

// ProviderError is a failure reported by the auth, row or file backend.
type ProviderError struct {
	Op      string
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	switch {
	case e.Code != "" && e.Status != 0:
		return fmt.Sprintf("%s: %s (status %d, code %s)", e.Op, msg, e.Status, e.Code)
	case e.Status != 0:
		return fmt.Sprintf("%s: %s (status %d)", e.Op, msg, e.Status)
	default:
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
}

func (e *ProviderError) Unwrap() error { return e.Err }
