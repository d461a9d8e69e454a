package replicate

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrMissingToken indicates that the client was configured without credentials.
var ErrMissingToken = errors.New("replicate: api token is required")

// TransportError wraps network failures, timeouts and cancellations.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("replicate: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	Op     string
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("replicate: %s: status %d", e.Op, e.Code)
	}
	return fmt.Sprintf("replicate: %s: status %d: %s", e.Op, e.Code, e.Detail)
}

// ServiceError is an error reported by the service inside a successful
// response, or a body that could not be decoded.
type ServiceError struct {
	Op      string
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("replicate: %s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("replicate: %s: %s", e.Op, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.Err }

const maxDetailBytes = 512

// snippet truncates raw to at most maxDetailBytes without splitting a rune.
func snippet(raw []byte) string {
	if len(raw) <= maxDetailBytes {
		return string(raw)
	}
	cut := maxDetailBytes
	for cut > 0 && !utf8.RuneStart(raw[cut]) {
		cut--
	}
	return string(raw[:cut]) + "..."
}
