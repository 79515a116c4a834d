package status

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zequel-labs/zequel/internal/core/domain"
)

type recordingSink struct {
	mu       sync.Mutex
	statuses []domain.ConnectionStatusEvent
	queries  []domain.QueryLogEvent
}

func (r *recordingSink) BroadcastStatus(ev domain.ConnectionStatusEvent) {
	r.mu.Lock()
	r.statuses = append(r.statuses, ev)
	r.mu.Unlock()
}

func (r *recordingSink) BroadcastQueryLog(ev domain.QueryLogEvent) {
	r.mu.Lock()
	r.queries = append(r.queries, ev)
	r.mu.Unlock()
}

type recordingRepo struct {
	mu      sync.Mutex
	batches [][]domain.QueryLogEvent
	err     error
}

func (r *recordingRepo) InsertBatch(_ context.Context, entries []domain.QueryLogEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	batch := append([]domain.QueryLogEvent(nil), entries...)
	r.batches = append(r.batches, batch)
	return nil
}

func (r *recordingRepo) all() []domain.QueryLogEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.QueryLogEvent
	for _, b := range r.batches {
		out = append(out, b...)
	}
	return out
}

func (r *recordingRepo) batchCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFanoutDeliversToEverySink(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	f := NewFanout(a, b)

	f.BroadcastStatus(domain.ConnectionStatusEvent{ConnectionID: "c1", Status: domain.StatusConnected})
	f.BroadcastQueryLog(domain.QueryLogEvent{ConnectionID: "c1", SQL: "SELECT 1"})

	for _, sink := range []*recordingSink{a, b} {
		require.Len(t, sink.statuses, 1)
		assert.Equal(t, "c1", sink.statuses[0].ConnectionID)
		require.Len(t, sink.queries, 1)
		assert.Equal(t, "SELECT 1", sink.queries[0].SQL)
	}
}

func TestLogSinkWritesStructuredRecords(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	sink := NewLogSink(logger)

	sink.BroadcastStatus(domain.ConnectionStatusEvent{
		ConnectionID: "c1",
		Status:       domain.StatusReconnecting,
		Attempt:      2,
	})
	sink.BroadcastQueryLog(domain.QueryLogEvent{ConnectionID: "c1", SQL: "SELECT 1", ExecutionTime: 4})

	out := buf.String()
	assert.Contains(t, out, `"connection_id":"c1"`)
	assert.Contains(t, out, `"status":"reconnecting"`)
	assert.Contains(t, out, `"attempt":2`)
	assert.Contains(t, out, `"sql":"SELECT 1"`)
}

func TestHistoryWriterFlushesOnClose(t *testing.T) {
	repo := &recordingRepo{}
	w := NewHistoryWriter(repo, discardLogger())

	for i := 0; i < 3; i++ {
		w.BroadcastQueryLog(domain.QueryLogEvent{ConnectionID: "c1", SQL: "SELECT 1"})
	}
	w.Close()

	assert.Len(t, repo.all(), 3)
}

func TestHistoryWriterFlushesFullBatches(t *testing.T) {
	repo := &recordingRepo{}
	w := NewHistoryWriter(repo, discardLogger())
	defer w.Close()

	for i := 0; i < defaultBatchSize; i++ {
		w.BroadcastQueryLog(domain.QueryLogEvent{ConnectionID: "c1", SQL: "SELECT 1"})
	}

	require.Eventually(t, func() bool {
		return len(repo.all()) == defaultBatchSize
	}, 5*time.Second, 10*time.Millisecond, "a full batch flushes without waiting for the ticker")
	assert.Equal(t, 1, repo.batchCount())
}

func TestHistoryWriterIgnoresStatusEvents(t *testing.T) {
	repo := &recordingRepo{}
	w := NewHistoryWriter(repo, discardLogger())

	w.BroadcastStatus(domain.ConnectionStatusEvent{ConnectionID: "c1", Status: domain.StatusError})
	w.Close()

	assert.Empty(t, repo.all())
}

func TestHistoryWriterSurvivesRepoErrors(t *testing.T) {
	repo := &recordingRepo{err: context.DeadlineExceeded}
	w := NewHistoryWriter(repo, discardLogger())

	w.BroadcastQueryLog(domain.QueryLogEvent{ConnectionID: "c1", SQL: "SELECT 1"})
	w.Close()
}
