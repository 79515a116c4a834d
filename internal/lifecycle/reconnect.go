package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zequel-labs/zequel/internal/core/domain"
)

const maxReconnectAttempts = 5

// reconnectExhaustedMessage is the error status emitted after the final
// failed attempt.
const reconnectExhaustedMessage = "Failed to reconnect after 5 attempts"

// Reconnect re-establishes the connection for id with bounded, doubling
// backoff. It returns true on eventual success within the attempt ceiling
// and false otherwise; it never returns an error. Failures are observable
// through the status event stream.
func (m *Manager) Reconnect(ctx context.Context, id string) bool {
	cfg := m.lastConfig(ctx, id)
	if cfg == nil {
		m.events.BroadcastStatus(domain.ConnectionStatusEvent{
			ConnectionID: id,
			Status:       domain.StatusError,
			Error:        fmt.Sprintf("no configuration known for connection %s", id),
			Timestamp:    time.Now(),
		})
		return false
	}

	// The Reconnect Guard: a second caller fails fast with no side effects.
	if _, inFlight := m.reconnecting.LoadOrStore(id, struct{}{}); inFlight {
		return false
	}
	defer m.reconnecting.Delete(id)

	for attempt := 1; attempt <= maxReconnectAttempts; attempt++ {
		reconnectAttempts.Inc()
		m.events.BroadcastStatus(domain.ConnectionStatusEvent{
			ConnectionID: id,
			Status:       domain.StatusReconnecting,
			Attempt:      attempt,
			Timestamp:    time.Now(),
		})

		// A dead SSH session has to be rebuilt, not reused; Connect opens a
		// fresh tunnel after this.
		if cfg.SSHEnabled() {
			m.tunnels.Close(id)
		}

		// Connect tears down the old driver itself (disconnect-before-
		// replace); teardown errors are swallowed there.
		_, err := m.Connect(ctx, *cfg)
		if err == nil {
			m.events.BroadcastStatus(domain.ConnectionStatusEvent{
				ConnectionID: id,
				Status:       domain.StatusConnected,
				Timestamp:    time.Now(),
			})
			return true
		}
		m.logger.Warn("reconnect attempt failed",
			slog.String("connection_id", id),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)

		if attempt < maxReconnectAttempts {
			// 1s, 2s, 4s, 8s before attempts 2..5.
			delay := m.backoffBase << (attempt - 1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return false
			}
		}
	}

	m.events.BroadcastStatus(domain.ConnectionStatusEvent{
		ConnectionID: id,
		Status:       domain.StatusError,
		Error:        reconnectExhaustedMessage,
		Timestamp:    time.Now(),
	})
	return false
}
