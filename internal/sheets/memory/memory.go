// Package memory provides in-process spreadsheet adapters for local runs
// and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"boqtrack/internal/core"
	"boqtrack/internal/ingest"
	ports "boqtrack/internal/sheets"
)

// Ledger keeps mirrored transactions in append order.
type Ledger struct {
	mu   sync.Mutex
	rows []core.Transaction
}

var _ ports.LedgerWriter = (*Ledger)(nil)

func NewLedger() *Ledger { return &Ledger{} }

func (l *Ledger) AppendTransaction(_ context.Context, t core.Transaction) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rows = append(l.rows, t)
	return fmt.Sprintf("mem:%d", len(l.rows)), nil
}

func (l *Ledger) DeleteTransaction(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, t := range l.rows {
		if t.ID == id {
			l.rows = append(l.rows[:i], l.rows[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("transaction %s: %w", id, ports.ErrRowNotFound)
}

// Rows returns a copy of the ledger.
func (l *Ledger) Rows() []core.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]core.Transaction, len(l.rows))
	copy(out, l.rows)
	return out
}

// Sheets serves fixed value matrices keyed by spreadsheet ID and range.
type Sheets struct {
	mu     sync.Mutex
	ranges map[string][][]interface{}
}

var _ ports.RangeReader = (*Sheets)(nil)

func NewSheets() *Sheets { return &Sheets{ranges: make(map[string][][]interface{})} }

func (s *Sheets) Put(spreadsheetID, rng string, values [][]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ranges[spreadsheetID+"|"+rng] = values
}

func (s *Sheets) ReadRange(_ context.Context, spreadsheetID, rng string) ([]ingest.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, ok := s.ranges[spreadsheetID+"|"+rng]
	if !ok {
		return nil, fmt.Errorf("%w: range %s not found", ingest.ErrUnreadableFile, rng)
	}
	return ingest.FromValues(values), nil
}
