// Package ingest turns spreadsheet rows into records and classifies BOQ
// lines. It is pure apart from the file readers in read.go.
package ingest

// Strategy maps sheet rows to records of type T. Prepare receives the
// header row once and returns the mapper used for every following row.
type Strategy[T any] interface {
	Prepare(header Row) func(Row) T
	IsEmpty(rec T) bool
}

// Ingest drops the first row unconditionally, maps the rest with s and
// filters out empty records. Order is preserved.
func Ingest[T any](rows []Row, s Strategy[T]) []T {
	if len(rows) == 0 {
		return []T{}
	}
	mapRow := s.Prepare(rows[0])
	out := make([]T, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := mapRow(row)
		if s.IsEmpty(rec) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// BudgetLineRow is one BOQ line as read from the sheet.
type BudgetLineRow struct {
	Code          Cell `json:"code"`
	Description   Cell `json:"description"`
	Quantity      Cell `json:"quantity"`
	UnitOfMeasure Cell `json:"unitOfMeasure"`
	Rate          Cell `json:"rate"`
	Amount        Cell `json:"amount"`
}

// Cells returns the six fields in column order.
func (b BudgetLineRow) Cells() [6]Cell {
	return [6]Cell{b.Code, b.Description, b.Quantity, b.UnitOfMeasure, b.Rate, b.Amount}
}

// PositionalMapping reads BOQ columns 0..5 as code, description, quantity,
// unit of measure, rate and amount. Header content is ignored.
type PositionalMapping struct{}

func (PositionalMapping) Prepare(Row) func(Row) BudgetLineRow {
	return func(r Row) BudgetLineRow {
		return BudgetLineRow{
			Code:          r.At(0),
			Description:   r.At(1),
			Quantity:      r.At(2),
			UnitOfMeasure: r.At(3),
			Rate:          r.At(4),
			Amount:        r.At(5),
		}
	}
}

func (PositionalMapping) IsEmpty(rec BudgetLineRow) bool { return IsEmpty(rec) }

// Record is a header-keyed row: header text to cell value.
type Record map[string]Cell

// Get returns the value stored under key, or a missing cell.
func (r Record) Get(key string) Cell {
	if c, ok := r[key]; ok {
		return c
	}
	return Missing()
}

// HeaderKeyedMapping uses the first row's values as field names. Blank
// header cells are skipped; with duplicate names the rightmost column wins.
type HeaderKeyedMapping struct{}

func (HeaderKeyedMapping) Prepare(header Row) func(Row) Record {
	keys := make([]string, len(header))
	for i, c := range header {
		if c.IsBlank() {
			continue
		}
		keys[i] = c.String()
	}
	return func(r Row) Record {
		rec := make(Record, len(keys))
		for i, k := range keys {
			if k == "" {
				continue
			}
			rec[k] = r.At(i)
		}
		return rec
	}
}

func (HeaderKeyedMapping) IsEmpty(rec Record) bool {
	for _, c := range rec {
		if !c.IsBlank() {
			return false
		}
	}
	return true
}

// BudgetRows ingests a BOQ sheet positionally.
func BudgetRows(rows []Row) []BudgetLineRow {
	return Ingest[BudgetLineRow](rows, PositionalMapping{})
}

// Records ingests a sheet keyed by its header row.
func Records(rows []Row) []Record {
	return Ingest[Record](rows, HeaderKeyedMapping{})
}
