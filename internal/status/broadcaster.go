// Package status fans connection status and query log events out to the
// process's sinks: structured logs, the WebSocket feed, and the query
// history writer. Broadcasts are fire-and-forget.
package status

import (
	"log/slog"

	"github.com/zequel-labs/zequel/internal/core/domain"
	"github.com/zequel-labs/zequel/internal/core/port"
)

// Fanout delivers every event to each sink in order. Sinks must not block.
type Fanout struct {
	sinks []port.StatusBroadcaster
}

// NewFanout builds a fanout over the given sinks.
func NewFanout(sinks ...port.StatusBroadcaster) *Fanout {
	return &Fanout{sinks: sinks}
}

func (f *Fanout) BroadcastStatus(ev domain.ConnectionStatusEvent) {
	for _, s := range f.sinks {
		s.BroadcastStatus(ev)
	}
}

func (f *Fanout) BroadcastQueryLog(ev domain.QueryLogEvent) {
	for _, s := range f.sinks {
		s.BroadcastQueryLog(ev)
	}
}

// LogSink writes events to the structured log.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink that logs every event.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (l *LogSink) BroadcastStatus(ev domain.ConnectionStatusEvent) {
	attrs := []any{
		slog.String("connection_id", ev.ConnectionID),
		slog.String("status", string(ev.Status)),
	}
	if ev.Attempt > 0 {
		attrs = append(attrs, slog.Int("attempt", ev.Attempt))
	}
	if ev.Error != "" {
		attrs = append(attrs, slog.String("error", ev.Error))
	}
	l.logger.Info("connection status", attrs...)
}

func (l *LogSink) BroadcastQueryLog(ev domain.QueryLogEvent) {
	l.logger.Debug("query executed",
		slog.String("connection_id", ev.ConnectionID),
		slog.String("sql", ev.SQL),
		slog.Int64("execution_time_ms", ev.ExecutionTime),
	)
}
