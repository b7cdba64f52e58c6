// buffer.go implements the event buffer that decouples capture from delivery.

package gatey

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultFlushInterval is how often the background flusher sends buffered events.
const DefaultFlushInterval = 5 * time.Second

// BufferOption configures a Buffer.
type BufferOption func(*bufferConfig)

type bufferConfig struct {
	skipBuffering bool
	maxCapacity   int
	flushInterval time.Duration
	exitSignals   []os.Signal
	logger        *zap.Logger
	metrics       *metrics
}

// WithBuffering enables or disables buffering. When disabled (the default),
// every pushed event is sent immediately and send errors are returned.
func WithBuffering(enabled bool) BufferOption {
	return func(c *bufferConfig) {
		c.skipBuffering = !enabled
	}
}

// WithMaxCapacity sets the queue size that triggers a synchronous flush.
// Zero means unbounded.
func WithMaxCapacity(n int) BufferOption {
	return func(c *bufferConfig) {
		if n >= 0 {
			c.maxCapacity = n
		}
	}
}

// WithFlushInterval sets how often buffered events are flushed in the
// background (default 5s). Zero disables the background flusher.
func WithFlushInterval(d time.Duration) BufferOption {
	return func(c *bufferConfig) {
		if d >= 0 {
			c.flushInterval = d
		}
	}
}

// WithExitSignals flushes the buffer once when the process receives one of
// the signals, then restores default handling and re-delivers the signal.
func WithExitSignals(sigs ...os.Signal) BufferOption {
	return func(c *bufferConfig) {
		c.exitSignals = append(c.exitSignals, sigs...)
	}
}

// WithBufferLogger sets the logger used for delivery diagnostics.
func WithBufferLogger(logger *zap.Logger) BufferOption {
	return func(c *bufferConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func withBufferMetrics(m *metrics) BufferOption {
	return func(c *bufferConfig) {
		c.metrics = m
	}
}

// Buffer queues events and passes them to a transport, either immediately or
// in flush rounds.
//
// A flush round is started by the background timer, by a push that fills the
// queue, by SendAll, and by Close. Every round uses the same logic: the queue
// is snapshotted and cleared, entries are sent in order, and the failed ones
// are appended back in their original order for the next round.
type Buffer struct {
	transport     Transport
	skipBuffering bool
	maxCapacity   int
	logger        *zap.Logger
	metrics       *metrics

	mu     sync.Mutex
	queue  []Event
	closed bool

	// flushMu serializes flush rounds.
	flushMu sync.Mutex

	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// NewBuffer creates a buffer in front of transport and starts its background
// flusher when buffering is enabled.
func NewBuffer(transport Transport, opts ...BufferOption) (*Buffer, error) {
	if transport == nil {
		return nil, &ConfigError{Field: "transport", Reason: "buffer requires a transport"}
	}
	cfg := &bufferConfig{
		skipBuffering: true,
		flushInterval: DefaultFlushInterval,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	b := &Buffer{
		transport:     transport,
		skipBuffering: cfg.skipBuffering,
		maxCapacity:   cfg.maxCapacity,
		logger:        cfg.logger.Named("buffer"),
		metrics:       cfg.metrics,
		stop:          make(chan struct{}),
	}

	if !b.skipBuffering && cfg.flushInterval > 0 {
		b.wg.Add(1)
		go b.flushLoop(cfg.flushInterval)
	}
	if len(cfg.exitSignals) > 0 {
		b.wg.Add(1)
		go b.watchSignals(cfg.exitSignals)
	}
	return b, nil
}

// Push hands an event to the buffer.
//
// Without buffering the event is sent immediately and a send failure is
// returned as an error. With buffering the event is queued, a full queue is
// flushed before returning, and Push reports true: failed entries stay queued.
// After Close, events are sent immediately.
func (b *Buffer) Push(ctx context.Context, event Event) (bool, error) {
	b.mu.Lock()
	if b.skipBuffering || b.closed {
		b.mu.Unlock()
		return b.deliver(ctx, event, true)
	}
	b.queue = append(b.queue, event)
	full := b.isFullLocked()
	n := len(b.queue)
	b.mu.Unlock()

	b.metrics.setQueueLength(n)
	if full {
		b.flush(ctx, flushCapacity)
	}
	return true, nil
}

// SendAll flushes the queue and reports whether it is empty afterwards.
func (b *Buffer) SendAll(ctx context.Context) bool {
	return b.flush(ctx, flushManual)
}

// Clear drops all queued events without sending them.
func (b *Buffer) Clear() {
	b.mu.Lock()
	b.queue = nil
	b.mu.Unlock()
	b.metrics.setQueueLength(0)
}

// IsEmpty reports whether no events are queued.
func (b *Buffer) IsEmpty() bool {
	return b.Len() == 0
}

// IsFull reports whether the queue reached its capacity. An unbounded buffer
// is never full.
func (b *Buffer) IsFull() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.isFullLocked()
}

// Len returns the number of queued events.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Pending returns copies of the queued events in queue order.
func (b *Buffer) Pending() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, len(b.queue))
	for i, ev := range b.queue {
		out[i] = ev.Clone()
	}
	return out
}

// Close stops the background flusher and performs the final flush.
// It returns ErrUndelivered when events remain queued afterwards.
// Close is idempotent.
func (b *Buffer) Close() error {
	b.closeOnce.Do(func() {
		close(b.stop)
		b.wg.Wait()

		b.mu.Lock()
		b.closed = true
		b.mu.Unlock()

		if !b.flush(context.Background(), flushExit) {
			n := b.Len()
			b.logger.Warn("buffered events lost at exit", zap.Int("count", n))
			b.closeErr = fmt.Errorf("%w: %d events", ErrUndelivered, n)
		}
	})
	return b.closeErr
}

func (b *Buffer) isFullLocked() bool {
	return b.maxCapacity > 0 && len(b.queue) >= b.maxCapacity
}

// flush runs one flush round and reports whether the queue is empty afterwards.
func (b *Buffer) flush(ctx context.Context, trigger string) bool {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.mu.Lock()
	pending := b.queue
	b.queue = nil
	b.mu.Unlock()

	if len(pending) == 0 {
		return b.IsEmpty()
	}
	b.metrics.observeFlush(trigger)

	var failed []Event
	for _, ev := range pending {
		if ok, _ := b.deliver(ctx, ev, false); !ok {
			failed = append(failed, ev)
		}
	}

	b.mu.Lock()
	b.queue = append(b.queue, failed...)
	n := len(b.queue)
	b.mu.Unlock()
	b.metrics.setQueueLength(n)

	b.logger.Debug("flushed buffered events",
		zap.String("trigger", trigger),
		zap.Int("sent", len(pending)-len(failed)),
		zap.Int("failed", len(failed)),
		zap.Int("queued", n),
	)
	return n == 0
}

// deliver sends one event and records the outcome.
func (b *Buffer) deliver(ctx context.Context, event Event, failFast bool) (bool, error) {
	ok, err := Deliver(ctx, b.transport, event, true)
	b.metrics.observeDelivery(ok)
	if err != nil {
		b.logger.Warn("event delivery failed",
			zap.String("event_id", event.ID),
			zap.String("level", event.Level),
			zap.Error(err),
		)
		if failFast {
			return false, err
		}
	}
	return ok, nil
}

// flushLoop periodically flushes until the buffer is closed.
func (b *Buffer) flushLoop(interval time.Duration) {
	defer b.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			b.flush(context.Background(), flushTimer)
		}
	}
}

// watchSignals flushes once on the first exit signal and re-delivers it.
func (b *Buffer) watchSignals(sigs []os.Signal) {
	defer b.wg.Done()
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)
	defer signal.Stop(ch)

	select {
	case <-b.stop:
		return
	case sig := <-ch:
		b.flush(context.Background(), flushExit)
		signal.Stop(ch)
		if p, err := os.FindProcess(os.Getpid()); err == nil {
			_ = p.Signal(sig)
		}
	}
}
