package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"boqtrack/internal/amqp"
	"boqtrack/internal/cache"
	"boqtrack/internal/log"
	"boqtrack/internal/sheets"
)

// Bounds of the applied-snapshot index. A redelivery older than either
// bound is written again, which is harmless since upserts replace the row.
const (
	appliedLimit = 10000
	appliedTTL   = 24 * time.Hour
)

// SyncWorker mirrors transaction changes into the ledger sheet.
type SyncWorker struct {
	ledger sheets.LedgerWriter

	mu sync.Mutex
	// applied holds the UpdatedAt of the last snapshot written per
	// transaction so late redeliveries do not overwrite newer rows.
	applied *cache.LRUCache[time.Time]
}

func NewSyncWorker(ledger sheets.LedgerWriter) *SyncWorker {
	return newSyncWorker(ledger, appliedLimit, appliedTTL)
}

func newSyncWorker(ledger sheets.LedgerWriter, limit int, ttl time.Duration) *SyncWorker {
	return &SyncWorker{
		ledger:  ledger,
		applied: cache.NewLRUCache[time.Time](limit, ttl),
	}
}

// Handle is an amqp.Handler.
func (w *SyncWorker) Handle(ctx context.Context, msg *amqp.TransactionSyncMessage) error {
	t := msg.Transaction
	slog.InfoContext(ctx, "Processing sync message",
		log.FieldComponent, log.ComponentWorker,
		"message_id", msg.MessageID,
		"op", msg.Op,
		"transaction_id", t.ID)

	if w.isStale(ctx, t.ID, t.UpdatedAt) {
		slog.InfoContext(ctx, "Skipping stale sync message",
			"message_id", msg.MessageID,
			"transaction_id", t.ID)
		return nil
	}

	switch msg.Op {
	case amqp.OpUpsert:
		if err := w.deleteRow(ctx, t.ID); err != nil {
			return err
		}
		ref, err := w.ledger.AppendTransaction(ctx, t)
		if err != nil {
			return fmt.Errorf("append transaction: %w", err)
		}
		w.markApplied(ctx, t.ID, t.UpdatedAt)
		slog.InfoContext(ctx, "Transaction mirrored",
			"transaction_id", t.ID,
			"ledger_ref", ref)
	case amqp.OpDelete:
		if err := w.deleteRow(ctx, t.ID); err != nil {
			return err
		}
		w.markApplied(ctx, t.ID, time.Now().UTC())
		slog.InfoContext(ctx, "Transaction removed from ledger", "transaction_id", t.ID)
	default:
		return fmt.Errorf("unknown sync op %q", msg.Op)
	}
	return nil
}

// deleteRow treats a missing row as already deleted.
func (w *SyncWorker) deleteRow(ctx context.Context, id string) error {
	err := w.ledger.DeleteTransaction(ctx, id)
	if err == nil || errors.Is(err, sheets.ErrRowNotFound) {
		return nil
	}
	return fmt.Errorf("delete ledger row: %w", err)
}

func (w *SyncWorker) isStale(ctx context.Context, id string, updatedAt time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	last, ok := w.applied.Get(ctx, id)
	return ok && updatedAt.Before(last)
}

func (w *SyncWorker) markApplied(ctx context.Context, id string, at time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if last, ok := w.applied.Get(ctx, id); !ok || at.After(last) {
		w.applied.Set(ctx, id, at)
	}
}
