package exchange

import (
	"fmt"

	"notitrade/internal/exception"
)

// TransportError covers network, timeout and unreadable-response failures.
// Callers may retry these with backoff.
type TransportError struct {
	Method     string
	Path       string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: http %d: %v", e.Method, e.Path, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == exception.ErrTransport
}

// ExchangeError is a structured rejection returned in the response body.
// Resending the same request is futile.
type ExchangeError struct {
	Path    string
	Code    string
	Message string
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("%s: exchange error %s: %s", e.Path, e.Code, e.Message)
}

func (e *ExchangeError) Unwrap() error {
	return exception.ErrExchange
}
