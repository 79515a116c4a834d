package domain

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned by driver operations that require a live session.
var ErrNotConnected = errors.New("not connected to database")

// ErrReconnectInProgress is returned when a reconnect for the same connection
// id is already running.
var ErrReconnectInProgress = errors.New("reconnect already in progress")

// UnsupportedTypeError is returned by the driver factory for an unknown
// backend type.
type UnsupportedTypeError struct {
	Type string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported database type: %s", e.Type)
}

// ConnectionError wraps a network or authentication failure during connect.
type ConnectionError struct {
	Backend DatabaseType
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s connect: %v", e.Backend, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TunnelError wraps an SSH session, negotiation, or listener failure.
type TunnelError struct {
	ConnectionID string
	Err          error
}

func (e *TunnelError) Error() string {
	return fmt.Sprintf("ssh tunnel for %s: %v", e.ConnectionID, e.Err)
}

func (e *TunnelError) Unwrap() error { return e.Err }

// ErrorMessage normalizes any recovered value into a plain string so callers
// never have to special-case the shape of what went wrong.
func ErrorMessage(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case error:
		return x.Error()
	case string:
		return x
	default:
		return fmt.Sprintf("%v", x)
	}
}
