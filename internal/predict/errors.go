package predict

import (
	"errors"
	"fmt"
)

var (
	// ErrPredictionFailed matches every error returned by Client.Predict.
	ErrPredictionFailed = errors.New("prediction failed")
	// ErrMalformedResponse means the body was not a {status:"success", data:{...}} envelope.
	ErrMalformedResponse = errors.New("malformed response")
)

// NetworkError wraps transport failures, timeouts and cancellations.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return "network: " + e.Err.Error() }
func (e *NetworkError) Unwrap() error { return e.Err }

// StatusError is a non-2xx reply from the prediction endpoint.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("status %d", e.Code)
	}
	return fmt.Sprintf("status %d: %s", e.Code, e.Body)
}

// Error is the single failure surfaced by Predict; Err is the underlying cause.
type Error struct {
	Err error
}

func (e *Error) Error() string { return "prediction failed: " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrPredictionFailed }

func fail(err error) error { return &Error{Err: err} }
