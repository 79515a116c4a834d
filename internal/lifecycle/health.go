package lifecycle

import (
	"context"
	"log/slog"
	"time"
)

// healthHandle is the cancellable handle of one connection's recurring
// health check. stop blocks until the tick goroutine has exited, so a new
// timer for the same id can never overlap the old one.
type healthHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (h *healthHandle) stop() {
	h.cancel()
	<-h.done
}

// startHealthCheck arms the recurring health check for id. Caller holds m.mu.
func (m *Manager) startHealthCheck(id string) *healthHandle {
	ctx, cancel := context.WithCancel(context.Background())
	h := &healthHandle{cancel: cancel, done: make(chan struct{})}
	go m.healthLoop(ctx, id, h)
	return h
}

func (m *Manager) healthLoop(ctx context.Context, id string, h *healthHandle) {
	defer close(h.done)

	ticker := time.NewTicker(m.healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// The registry is the source of truth: if the connection is
			// gone, stop scheduling ticks permanently.
			drv := m.GetConnection(id)
			if drv == nil {
				return
			}

			// A tick must not pile a second reconnect on an in-flight one.
			if _, busy := m.reconnecting.Load(id); busy {
				continue
			}

			pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
			alive := drv.Ping(pingCtx)
			cancel()

			if !alive {
				m.logger.Warn("health check failed, triggering reconnect",
					slog.String("connection_id", id),
				)
				// Fire and forget: the tick itself never blocks on
				// reconnect completion.
				go m.Reconnect(context.Background(), id)
			}
		}
	}
}
