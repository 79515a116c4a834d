package status

import (
	"context"
	"log/slog"
	"time"

	"github.com/zequel-labs/zequel/internal/core/domain"
	"github.com/zequel-labs/zequel/internal/core/port"
)

const (
	defaultBatchSize    = 50
	defaultFlushTimeout = 5 * time.Second
	defaultChanBuffer   = 1000
)

// HistoryWriter persists query log events through a buffered channel and a
// background goroutine that batch-inserts into the history repository.
// Status events pass through it untouched.
type HistoryWriter struct {
	repo   port.HistoryRepository
	ch     chan domain.QueryLogEvent
	done   chan struct{}
	logger *slog.Logger
}

// NewHistoryWriter starts the background flusher. The goroutine writes when
// the batch is full or the flush interval elapses, whichever comes first.
func NewHistoryWriter(repo port.HistoryRepository, logger *slog.Logger) *HistoryWriter {
	w := &HistoryWriter{
		repo:   repo,
		ch:     make(chan domain.QueryLogEvent, defaultChanBuffer),
		done:   make(chan struct{}),
		logger: logger,
	}
	go w.run()
	return w
}

func (w *HistoryWriter) BroadcastStatus(domain.ConnectionStatusEvent) {}

// BroadcastQueryLog enqueues the event. Non-blocking; drops the entry when
// the channel is full.
func (w *HistoryWriter) BroadcastQueryLog(ev domain.QueryLogEvent) {
	select {
	case w.ch <- ev:
	default:
		w.logger.Warn("query history channel full, dropping entry",
			slog.String("connection_id", ev.ConnectionID),
		)
	}
}

// Close flushes remaining entries and stops the background writer.
func (w *HistoryWriter) Close() {
	close(w.ch)
	<-w.done
}

func (w *HistoryWriter) run() {
	defer close(w.done)

	batch := make([]domain.QueryLogEvent, 0, defaultBatchSize)
	ticker := time.NewTicker(defaultFlushTimeout)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-w.ch:
			if !ok {
				if len(batch) > 0 {
					w.flush(batch)
				}
				return
			}
			batch = append(batch, ev)
			if len(batch) >= defaultBatchSize {
				w.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(batch)
				batch = batch[:0]
			}
		}
	}
}

func (w *HistoryWriter) flush(batch []domain.QueryLogEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := w.repo.InsertBatch(ctx, batch); err != nil {
		w.logger.Error("failed to flush query history batch",
			slog.Int("count", len(batch)),
			slog.String("error", err.Error()),
		)
	}
}
