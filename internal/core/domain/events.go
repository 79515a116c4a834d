package domain

import "time"

// ConnectionStatus is the status carried by a connection status event.
type ConnectionStatus string

const (
	StatusConnected    ConnectionStatus = "connected"
	StatusReconnecting ConnectionStatus = "reconnecting"
	StatusError        ConnectionStatus = "error"
)

// ConnectionStatusEvent is broadcast whenever a connection changes state.
// Attempt is set only for reconnecting events, Error only for error events.
type ConnectionStatusEvent struct {
	ConnectionID string           `json:"connectionId"`
	Status       ConnectionStatus `json:"status"`
	Attempt      int              `json:"attempt,omitempty"`
	Error        string           `json:"error,omitempty"`
	Timestamp    time.Time        `json:"timestamp"`
}

// QueryLogEvent is emitted for every instrumented query, on success and
// failure alike.
type QueryLogEvent struct {
	ConnectionID  string    `json:"connectionId"`
	SQL           string    `json:"sql"`
	ExecutionTime int64     `json:"executionTime"` // milliseconds
	Timestamp     time.Time `json:"timestamp"`
}
