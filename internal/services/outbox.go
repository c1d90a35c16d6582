package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"boqtrack/internal/amqp"
)

// Publisher sends transaction sync messages to the ledger worker.
type Publisher interface {
	PublishTransactionSync(ctx context.Context, msg *amqp.TransactionSyncMessage) error
}

var _ Publisher = (*amqp.Client)(nil)

// OutboxConfig holds configuration for the outbox retry loop
type OutboxConfig struct {
	// PollInterval is how often pending messages are retried (default: 10s)
	PollInterval time.Duration

	// BatchSize is the max number of messages retried per cycle (default: 10)
	BatchSize int

	// MaxRetries is the number of retries before a message is dropped (default: 5)
	MaxRetries int

	// Capacity bounds the pending queue; the oldest message is dropped when full (default: 1000)
	Capacity int
}

func DefaultOutboxConfig() OutboxConfig {
	return OutboxConfig{
		PollInterval: 10 * time.Second,
		BatchSize:    10,
		MaxRetries:   5,
		Capacity:     1000,
	}
}

type pendingMessage struct {
	msg      *amqp.TransactionSyncMessage
	attempts int
	lastErr  string
}

// Outbox publishes immediately and keeps failed messages in memory for
// retry. It is itself a Publisher; a publish that ends up queued is not an
// error for the caller.
type Outbox struct {
	next   Publisher
	config OutboxConfig

	qmu     sync.Mutex
	pending []pendingMessage
	dropped int

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

var _ Publisher = (*Outbox)(nil)

func NewOutbox(next Publisher, config OutboxConfig) *Outbox {
	if config.BatchSize <= 0 {
		config.BatchSize = 1
	}
	if config.Capacity <= 0 {
		config.Capacity = DefaultOutboxConfig().Capacity
	}
	return &Outbox{next: next, config: config}
}

func (o *Outbox) PublishTransactionSync(ctx context.Context, msg *amqp.TransactionSyncMessage) error {
	if err := o.next.PublishTransactionSync(ctx, msg); err != nil {
		slog.WarnContext(ctx, "Publish failed, queued for retry",
			"message_id", msg.MessageID, "error", err)
		o.enqueue(pendingMessage{msg: msg, attempts: 1, lastErr: err.Error()})
	}
	return nil
}

func (o *Outbox) enqueue(p pendingMessage) {
	o.qmu.Lock()
	defer o.qmu.Unlock()
	if len(o.pending) >= o.config.Capacity {
		o.pending = o.pending[1:]
		o.dropped++
	}
	o.pending = append(o.pending, p)
}

// Start begins the retry loop. Returns an error if already running.
func (o *Outbox) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return fmt.Errorf("outbox is already running")
	}
	o.running = true
	o.stopCh = make(chan struct{})
	o.doneCh = make(chan struct{})
	o.mu.Unlock()

	go o.runLoop(ctx)

	slog.InfoContext(ctx, "Outbox started",
		"poll_interval", o.config.PollInterval,
		"batch_size", o.config.BatchSize)
	return nil
}

// Stop signals the loop and waits for it to finish.
func (o *Outbox) Stop(ctx context.Context) error {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return nil
	}
	o.mu.Unlock()

	close(o.stopCh)

	select {
	case <-o.doneCh:
		slog.InfoContext(ctx, "Outbox stopped gracefully", "pending", o.Pending())
	case <-ctx.Done():
		slog.WarnContext(ctx, "Outbox stop timed out")
		return ctx.Err()
	}

	o.mu.Lock()
	o.running = false
	o.mu.Unlock()
	return nil
}

func (o *Outbox) IsRunning() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// Pending returns the number of messages waiting for retry.
func (o *Outbox) Pending() int {
	o.qmu.Lock()
	defer o.qmu.Unlock()
	return len(o.pending)
}

// Dropped returns how many messages were discarded, either because the
// queue was full or because they ran out of retries.
func (o *Outbox) Dropped() int {
	o.qmu.Lock()
	defer o.qmu.Unlock()
	return o.dropped
}

func (o *Outbox) runLoop(ctx context.Context) {
	defer close(o.doneCh)

	ticker := time.NewTicker(o.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-o.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.Flush(ctx)
		}
	}
}

// Flush retries one batch of pending messages and returns how many were
// delivered.
func (o *Outbox) Flush(ctx context.Context) int {
	o.qmu.Lock()
	n := min(o.config.BatchSize, len(o.pending))
	batch := make([]pendingMessage, n)
	copy(batch, o.pending[:n])
	o.pending = o.pending[n:]
	o.qmu.Unlock()

	delivered := 0
	for i, p := range batch {
		if ctx.Err() != nil {
			for _, rest := range batch[i:] {
				o.enqueue(rest)
			}
			return delivered
		}
		if err := o.next.PublishTransactionSync(ctx, p.msg); err != nil {
			o.handleFailure(ctx, p, err)
			continue
		}
		delivered++
	}
	if delivered > 0 {
		slog.DebugContext(ctx, "Outbox flushed", "delivered", delivered)
	}
	return delivered
}

func (o *Outbox) handleFailure(ctx context.Context, p pendingMessage, err error) {
	p.attempts++
	p.lastErr = err.Error()
	if p.attempts > o.config.MaxRetries {
		o.qmu.Lock()
		o.dropped++
		o.qmu.Unlock()
		slog.ErrorContext(ctx, "Sync message dropped after max retries",
			"message_id", p.msg.MessageID,
			"transaction_id", p.msg.Transaction.ID,
			"attempts", p.attempts,
			"error", p.lastErr)
		return
	}
	slog.WarnContext(ctx, "Sync message retry failed",
		"message_id", p.msg.MessageID,
		"attempt", p.attempts,
		"error", err)
	o.enqueue(p)
}
