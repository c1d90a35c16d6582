package memory

import (
	"context"
	"errors"
	"testing"

	"boqtrack/internal/core"
	"boqtrack/internal/ingest"
	ports "boqtrack/internal/sheets"
)

func TestLedgerAppendDelete(t *testing.T) {
	l := NewLedger()
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		if _, err := l.AppendTransaction(ctx, core.Transaction{ID: id}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := l.DeleteTransaction(ctx, "b"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	rows := l.Rows()
	if len(rows) != 2 || rows[0].ID != "a" || rows[1].ID != "c" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	if err := l.DeleteTransaction(ctx, "b"); !errors.Is(err, ports.ErrRowNotFound) {
		t.Fatalf("expected ErrRowNotFound, got %v", err)
	}
}

func TestSheetsReadRange(t *testing.T) {
	s := NewSheets()
	s.Put("sheet", "BOQ!A:F", [][]interface{}{{"Code"}, {"1.1", "Excavation", 100.0}})
	rows, err := s.ReadRange(context.Background(), "sheet", "BOQ!A:F")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(ingest.BudgetRows(rows)) != 1 {
		t.Fatalf("expected one budget row")
	}
	if _, err := s.ReadRange(context.Background(), "sheet", "Other!A:F"); !errors.Is(err, ingest.ErrUnreadableFile) {
		t.Fatalf("expected ErrUnreadableFile, got %v", err)
	}
}
