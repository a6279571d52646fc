package wsclient

import (
	"errors"
	"fmt"
)

// ServerError wraps an application-level error code and message the
// server attached to a reply envelope — distinct from transport-level
// failures (dial errors, closed connections, timeouts).
type ServerError struct {
	Code    int
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("wsclient: server error %#x: %s", e.Code, e.Message)
}

// ErrClosed is returned by any in-flight or future request once the
// connection's reader or writer goroutine has exited.
var ErrClosed = errors.New("wsclient: connection closed")

// ErrTimeout is returned when a request does not receive a reply within
// the client's configured timeout.
var ErrTimeout = errors.New("wsclient: request timed out")

// ErrUnexpectedReply is returned when a fetch step receives a message of
// the wrong kind (no JSON reply, or no binary block), when Query or Exec is
// called with the other kind of statement, or when Scan is given the wrong
// number of destinations.
var ErrUnexpectedReply = errors.New("wsclient: unexpected reply")
