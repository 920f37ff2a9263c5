// Package audit writes audit entries asynchronously so that requests never
// wait on, or fail because of, the audit trail.
package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/rcliao/team-memory/internal/model"
)

// Sink persists one audit entry.
type Sink interface {
	InsertAudit(ctx context.Context, e *model.AuditEntry) error
}

// Options tunes a Writer. Zero values take the defaults below.
type Options struct {
	QueueSize int
	// MaxFailures consecutive write errors open the breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout  time.Duration
	WriteTimeout time.Duration
	Logger       *slog.Logger
}

// Writer queues entries and drains them on one goroutine. When the queue is
// full or the breaker is open, entries are dropped and counted.
type Writer struct {
	sink    Sink
	queue   chan model.AuditEntry
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration
	log     *slog.Logger

	mu      sync.RWMutex
	closed  bool
	done    chan struct{}
	dropped atomic.Int64
}

// New starts a Writer over sink.
func New(sink Sink, opts Options) *Writer {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.MaxFailures == 0 {
		opts.MaxFailures = 5
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = 30 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	w := &Writer{
		sink:    sink,
		queue:   make(chan model.AuditEntry, opts.QueueSize),
		timeout: opts.WriteTimeout,
		log:     opts.Logger,
		done:    make(chan struct{}),
	}
	maxFailures := opts.MaxFailures
	w.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "audit",
		MaxRequests: 1,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			w.log.Warn("audit breaker state changed", "from", from.String(), "to", to.String())
		},
	})

	go w.run()
	return w
}

// Record enqueues e without blocking.
func (w *Writer) Record(e model.AuditEntry) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		w.drop(e, "writer closed")
		return
	}
	select {
	case w.queue <- e:
	default:
		w.drop(e, "queue full")
	}
}

// Close stops accepting entries and waits until the queue is drained or
// ctx is done.
func (w *Writer) Close(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dropped reports how many entries were never written.
func (w *Writer) Dropped() int64 { return w.dropped.Load() }

func (w *Writer) run() {
	defer close(w.done)
	for e := range w.queue {
		w.write(e)
	}
}

func (w *Writer) write(e model.AuditEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	_, err := w.breaker.Execute(func() (interface{}, error) {
		return nil, w.sink.InsertAudit(ctx, &e)
	})
	switch {
	case err == nil:
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		w.drop(e, "breaker open")
	default:
		w.dropped.Add(1)
		w.log.Error("audit write failed", "action", e.Action, "error", err)
	}
}

func (w *Writer) drop(e model.AuditEntry, reason string) {
	w.dropped.Add(1)
	w.log.Debug("audit entry dropped", "action", e.Action, "reason", reason)
}
