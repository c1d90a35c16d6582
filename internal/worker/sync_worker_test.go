package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"boqtrack/internal/amqp"
	"boqtrack/internal/core"
	"boqtrack/internal/sheets/memory"
)

func tx(id string, income float64, updated time.Time) core.Transaction {
	return core.Transaction{ID: id, ProjectName: "Tower", Category: "Labour", IncomeAmount: income, UpdatedAt: updated}
}

func TestSyncWorker_UpsertReplacesRow(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewLedger()
	w := NewSyncWorker(ledger)
	t0 := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	if err := w.Handle(ctx, amqp.NewTransactionSyncMessage(amqp.OpUpsert, tx("a", 100, t0))); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := w.Handle(ctx, amqp.NewTransactionSyncMessage(amqp.OpUpsert, tx("a", 250, t0.Add(time.Minute)))); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	rows := ledger.Rows()
	if len(rows) != 1 || rows[0].IncomeAmount != 250 {
		t.Fatalf("expected one row with the latest snapshot, got %+v", rows)
	}
}

func TestSyncWorker_StaleSnapshotIgnored(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewLedger()
	w := NewSyncWorker(ledger)
	t0 := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	_ = w.Handle(ctx, amqp.NewTransactionSyncMessage(amqp.OpUpsert, tx("a", 250, t0.Add(time.Minute))))
	if err := w.Handle(ctx, amqp.NewTransactionSyncMessage(amqp.OpUpsert, tx("a", 100, t0))); err != nil {
		t.Fatalf("stale upsert: %v", err)
	}
	if rows := ledger.Rows(); len(rows) != 1 || rows[0].IncomeAmount != 250 {
		t.Fatalf("stale snapshot overwrote the ledger: %+v", rows)
	}
}

func TestSyncWorker_Delete(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewLedger()
	w := NewSyncWorker(ledger)
	t0 := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	_ = w.Handle(ctx, amqp.NewTransactionSyncMessage(amqp.OpUpsert, tx("a", 100, t0)))
	_ = w.Handle(ctx, amqp.NewTransactionSyncMessage(amqp.OpUpsert, tx("b", 50, t0)))

	if err := w.Handle(ctx, amqp.NewTransactionSyncMessage(amqp.OpDelete, tx("a", 100, t0))); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := w.Handle(ctx, amqp.NewTransactionSyncMessage(amqp.OpDelete, tx("missing", 1, t0))); err != nil {
		t.Fatalf("deleting an absent row should succeed: %v", err)
	}
	rows := ledger.Rows()
	if len(rows) != 1 || rows[0].ID != "b" {
		t.Fatalf("unexpected ledger %+v", rows)
	}

	// a redelivered upsert older than the delete must not resurrect the row
	_ = w.Handle(ctx, amqp.NewTransactionSyncMessage(amqp.OpUpsert, tx("a", 100, t0)))
	if len(ledger.Rows()) != 1 {
		t.Fatalf("deleted transaction came back: %+v", ledger.Rows())
	}
}

type failingLedger struct{ err error }

func (f failingLedger) AppendTransaction(context.Context, core.Transaction) (string, error) {
	return "", f.err
}

func (f failingLedger) DeleteTransaction(context.Context, string) error { return f.err }

func TestSyncWorker_Errors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("quota exceeded")
	w := NewSyncWorker(failingLedger{err: boom})

	err := w.Handle(ctx, amqp.NewTransactionSyncMessage(amqp.OpUpsert, tx("a", 1, time.Now())))
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped ledger error, got %v", err)
	}

	msg := amqp.NewTransactionSyncMessage(amqp.OpUpsert, tx("a", 1, time.Now()))
	msg.Op = "rename"
	if err := NewSyncWorker(memory.NewLedger()).Handle(ctx, msg); err == nil {
		t.Fatal("expected error for unknown op")
	}
}

func TestSyncWorker_AppliedIndexIsBounded(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewLedger()
	w := newSyncWorker(ledger, 2, time.Hour)
	t0 := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	for _, id := range []string{"a", "b", "c"} {
		if err := w.Handle(ctx, amqp.NewTransactionSyncMessage(amqp.OpUpsert, tx(id, 10, t0))); err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
	}
	if n := w.applied.Size(); n != 2 {
		t.Fatalf("applied index holds %d entries, want 2", n)
	}

	// an evicted transaction accepts a redelivery and still has one row
	if err := w.Handle(ctx, amqp.NewTransactionSyncMessage(amqp.OpUpsert, tx("a", 10, t0))); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if rows := ledger.Rows(); len(rows) != 3 {
		t.Fatalf("unexpected ledger %+v", rows)
	}
}
