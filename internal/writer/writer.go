// Package writer buffers enriched events in memory and flushes them to the
// analytics store in batches, on a timer and on a size threshold. Callers
// get an immediate answer; store failures are retried in the background and
// never surface to the original request.
package writer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/flowmetric/ingest-gateway/internal/models"
)

// Sink is the analytics store write interface. Implemented by
// store.ClickHouseStore; mocked in tests.
type Sink interface {
	InsertEvents(ctx context.Context, events []models.EnrichedEvent) error
}

const (
	maxAttempts     = 3
	baseRetryDelay  = time.Second
	attemptTimeout  = 10 * time.Second
	drainPollPeriod = 10 * time.Millisecond
)

// Writer is the asynchronous batching writer. The buffer, the flushing flag
// and the started flag are all guarded by mu; the splice-then-maybe-reprepend
// sequence in Flush is not safely decomposable, so the store write itself is
// the only part done outside the lock.
type Writer struct {
	sink      Sink
	logger    *slog.Logger
	bufferMax int
	flushSize int
	interval  time.Duration

	mu       sync.Mutex
	buf      []models.EnrichedEvent
	flushing bool
	started  bool
	stop     chan struct{}

	sleep func(time.Duration)
}

// New builds a writer flushing up to flushSize events per cycle, refusing
// enqueues that would push the buffer past bufferMax, with a periodic flush
// every interval.
func New(sink Sink, bufferMax, flushSize int, interval time.Duration, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		sink:      sink,
		logger:    logger,
		bufferMax: bufferMax,
		flushSize: flushSize,
		interval:  interval,
		stop:      make(chan struct{}),
		sleep:     time.Sleep,
	}
}

// Enqueue appends events to the buffer and reports whether they were
// accepted. When appending would exceed the buffer ceiling nothing is
// buffered and the caller must shed load (server busy). Crossing the flush
// threshold triggers an immediate asynchronous flush on top of the timer.
func (w *Writer) Enqueue(events []models.EnrichedEvent) bool {
	if len(events) == 0 {
		return true
	}

	w.mu.Lock()
	if len(w.buf)+len(events) > w.bufferMax {
		w.mu.Unlock()
		return false
	}
	w.buf = append(w.buf, events...)
	trigger := len(w.buf) >= w.flushSize
	w.mu.Unlock()

	if trigger {
		go w.Flush()
	}
	return true
}

// Flush drains up to flushSize events from the head of the buffer into the
// sink. Re-entrant calls and calls on an empty buffer return immediately.
// On total retry exhaustion the batch is re-prepended, preserving order for
// the next attempt.
func (w *Writer) Flush() {
	w.mu.Lock()
	if w.flushing || len(w.buf) == 0 {
		w.mu.Unlock()
		return
	}
	w.flushing = true

	n := len(w.buf)
	if n > w.flushSize {
		n = w.flushSize
	}
	batch := make([]models.EnrichedEvent, n)
	copy(batch, w.buf[:n])
	w.buf = append(w.buf[:0:0], w.buf[n:]...)
	w.mu.Unlock()

	err := w.writeWithRetry(batch)

	w.mu.Lock()
	w.flushing = false
	if err != nil {
		rebuilt := make([]models.EnrichedEvent, 0, len(batch)+len(w.buf))
		rebuilt = append(rebuilt, batch...)
		rebuilt = append(rebuilt, w.buf...)
		w.buf = rebuilt
		w.logger.Warn("flush failed, events re-buffered",
			"count", len(batch), "error", err)
	}
	w.mu.Unlock()
}

// writeWithRetry attempts the store write up to maxAttempts times with
// exponentially growing delays (1s, 2s, 4s) between attempts.
func (w *Writer) writeWithRetry(batch []models.EnrichedEvent) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			w.sleep(baseRetryDelay << (attempt - 1))
		}
		ctx, cancel := context.WithTimeout(context.Background(), attemptTimeout)
		lastErr = w.sink.InsertEvents(ctx, batch)
		cancel()
		if lastErr == nil {
			return nil
		}
		w.logger.Warn("analytics store write failed",
			"attempt", attempt+1, "count", len(batch), "error", lastErr)
	}
	return lastErr
}

// Start arms the periodic flush timer. Idempotent.
func (w *Writer) Start() {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()

	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				w.Flush()
			case <-w.stop:
				return
			}
		}
	}()
}

// Shutdown disarms the timer and drains the buffer until empty or the
// deadline elapses. Undrained events at the deadline are deliberately
// dropped and logged; bounded loss is the shutdown contract.
func (w *Writer) Shutdown(timeout time.Duration) {
	w.mu.Lock()
	if w.started {
		w.started = false
		close(w.stop)
	}
	w.mu.Unlock()

	deadline := time.Now().Add(timeout)
	for {
		w.Flush()
		if w.Len() == 0 {
			return
		}
		if time.Now().After(deadline) {
			w.logger.Error("shutdown deadline reached with events undrained",
				"remaining", w.Len())
			return
		}
		w.sleep(drainPollPeriod)
	}
}

// Len returns the number of buffered events.
func (w *Writer) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.buf)
}
