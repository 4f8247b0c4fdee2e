package bus

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/meadej/edgetech-gdl90/internal/metrics"
)

// Worker is the single consumer that drains a Queue into a Publisher. One
// worker per queue keeps publish order equal to arrival order.
type Worker struct {
	queue   *Queue
	pub     Publisher
	logger  *slog.Logger
	metrics *metrics.Metrics
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// Statistics
	published     uint64
	failed        uint64
	lastError     string
	lastPublishAt time.Time
	mu            sync.RWMutex
}

// WorkerStats represents publish statistics
type WorkerStats struct {
	Published     uint64    `json:"published"`
	Failed        uint64    `json:"failed"`
	LastError     string    `json:"last_error,omitempty"`
	LastPublishAt time.Time `json:"last_publish_at"`
	QueueSize     int       `json:"queue_size"`
	QueueCapacity int       `json:"queue_capacity"`
	QueueDropped  uint64    `json:"queue_dropped"`
}

// NewWorker creates a worker. publishTimeout bounds each Publish call.
func NewWorker(q *Queue, pub Publisher, publishTimeout time.Duration, logger *slog.Logger, m *metrics.Metrics) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	return &Worker{
		queue:   q,
		pub:     pub,
		logger:  logger,
		metrics: m,
		timeout: publishTimeout,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// Start launches the consumer goroutine.
func (w *Worker) Start() {
	go w.run()
}

func (w *Worker) run() {
	defer close(w.done)

	w.logger.Debug("Publish worker started")
	for w.ctx.Err() == nil {
		msg, err := w.queue.Pop(w.ctx)
		if err != nil {
			if !errors.Is(err, ErrQueueClosed) && !errors.Is(err, context.Canceled) {
				w.logger.Warn("Publish worker stopped unexpectedly", slog.String("error", err.Error()))
			}
			w.logger.Debug("Publish worker stopped")
			return
		}
		w.metrics.SetQueueSize(w.queue.Len())
		w.publish(msg)
	}
	w.logger.Debug("Publish worker cancelled")
}

func (w *Worker) publish(msg Message) {
	ctx, cancel := context.WithTimeout(w.ctx, w.timeout)
	defer cancel()

	start := time.Now()
	err := w.pub.Publish(ctx, msg)
	w.metrics.RecordPublish(string(msg.Topic), err, time.Since(start).Seconds())

	w.mu.Lock()
	if err != nil {
		w.failed++
		w.lastError = err.Error()
	} else {
		w.published++
		w.lastPublishAt = time.Now()
	}
	w.mu.Unlock()

	if err != nil {
		w.logger.Warn("Failed to publish message",
			slog.String("topic", string(msg.Topic)),
			slog.String("key", msg.Key),
			slog.String("error", err.Error()),
		)
	}
}

// Drain closes the queue and waits for the worker to publish what is left.
// If ctx ends first, the in-flight publish is cancelled and the remaining
// messages are flushed; the number flushed is returned with ctx's error.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	w.queue.Close()

	select {
	case <-w.done:
		return 0, nil
	case <-ctx.Done():
	}

	w.cancel()
	<-w.done

	flushed := w.queue.Flush()
	w.metrics.RecordQueueFlushed(flushed)
	w.metrics.SetQueueSize(0)
	if flushed > 0 {
		w.logger.Warn("Drain timeout reached, discarding queued messages",
			slog.Int("flushed", flushed),
		)
	}
	return flushed, ctx.Err()
}

// GetStats returns current worker and queue statistics
func (w *Worker) GetStats() WorkerStats {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return WorkerStats{
		Published:     w.published,
		Failed:        w.failed,
		LastError:     w.lastError,
		LastPublishAt: w.lastPublishAt,
		QueueSize:     w.queue.Len(),
		QueueCapacity: w.queue.Cap(),
		QueueDropped:  w.queue.Dropped(),
	}
}
