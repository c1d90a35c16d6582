package sheets

import (
	"context"
	"errors"

	"boqtrack/internal/core"
	"boqtrack/internal/ingest"
)

// ErrRowNotFound is returned when a ledger row for a transaction is absent.
var ErrRowNotFound = errors.New("ledger row not found")

// Ports for spreadsheet adapters.
type (
	// RangeReader reads a BOQ range from a spreadsheet, e.g. "Sheet1!A:F".
	RangeReader interface {
		ReadRange(ctx context.Context, spreadsheetID, rng string) ([]ingest.Row, error)
	}

	// LedgerWriter mirrors transactions into a ledger sheet, one row each.
	LedgerWriter interface {
		AppendTransaction(ctx context.Context, t core.Transaction) (rowRef string, err error)
		DeleteTransaction(ctx context.Context, id string) error
	}
)
