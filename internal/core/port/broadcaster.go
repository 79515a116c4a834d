package port

import "github.com/zequel-labs/zequel/internal/core/domain"

// StatusBroadcaster receives connection status and query log events.
// Implementations must be non-blocking: the core fires and forgets.
type StatusBroadcaster interface {
	BroadcastStatus(ev domain.ConnectionStatusEvent)
	BroadcastQueryLog(ev domain.QueryLogEvent)
}
