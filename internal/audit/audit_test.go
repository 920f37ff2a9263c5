package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/team-memory/internal/model"
)

type fakeSink struct {
	mu      sync.Mutex
	entries []model.AuditEntry
	err     error
	calls   int
	block   chan struct{}
}

func (s *fakeSink) InsertAudit(ctx context.Context, e *model.AuditEntry) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, *e)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func closeWriter(t *testing.T, w *Writer) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, w.Close(ctx))
}

func TestWriterDrainsOnClose(t *testing.T) {
	sink := &fakeSink{}
	w := New(sink, Options{Logger: quietLogger()})

	for i := 0; i < 10; i++ {
		w.Record(model.AuditEntry{Action: "store_memory", UserID: "u1"})
	}
	closeWriter(t, w)

	require.Len(t, sink.entries, 10)
	assert.NotEmpty(t, sink.entries[0].ID, "ids are assigned on record")
	assert.NotEqual(t, sink.entries[0].ID, sink.entries[1].ID)
	assert.False(t, sink.entries[0].CreatedAt.IsZero())
	assert.Zero(t, w.Dropped())
}

func TestWriterDropsWhenFull(t *testing.T) {
	sink := &fakeSink{block: make(chan struct{})}
	w := New(sink, Options{QueueSize: 1, Logger: quietLogger()})

	// One entry may be held by the blocked writer, one fits in the queue;
	// the rest must be dropped without blocking.
	for i := 0; i < 5; i++ {
		w.Record(model.AuditEntry{Action: "store_memory"})
	}
	assert.GreaterOrEqual(t, w.Dropped(), int64(3))

	close(sink.block)
	closeWriter(t, w)
}

func TestWriterBreakerOpens(t *testing.T) {
	sink := &fakeSink{err: errors.New("db down")}
	w := New(sink, Options{MaxFailures: 2, OpenTimeout: time.Hour, Logger: quietLogger()})

	for i := 0; i < 6; i++ {
		w.Record(model.AuditEntry{Action: "delete_memory"})
	}
	closeWriter(t, w)

	assert.Equal(t, 2, sink.calls, "open breaker stops calling the sink")
	assert.Equal(t, int64(6), w.Dropped())
}

func TestRecordAfterClose(t *testing.T) {
	w := New(&fakeSink{}, Options{Logger: quietLogger()})
	closeWriter(t, w)

	assert.NotPanics(t, func() { w.Record(model.AuditEntry{Action: "late"}) })
	assert.Equal(t, int64(1), w.Dropped())
	closeWriter(t, w)
}
