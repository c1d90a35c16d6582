package services

import (
	"math"
	"strings"

	"github.com/xuri/excelize/v2"

	"boqtrack/internal/core"
	"boqtrack/internal/ingest"
)

// cellAmount reads a numeric cell. Blank cells are 0; text goes through
// core.ParseAmount so thousands separators are accepted.
func cellAmount(c ingest.Cell) (float64, error) {
	if c.IsBlank() {
		return 0, nil
	}
	if c.Kind() == ingest.KindNumber {
		f, _ := c.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, core.ErrInvalidAmount
		}
		return f, nil
	}
	return core.ParseAmount(c.String())
}

// lenientAmount is cellAmount with unparsable values read as 0.
func lenientAmount(c ingest.Cell) float64 {
	f, err := cellAmount(c)
	if err != nil {
		return 0
	}
	return f
}

// cellDate accepts "YYYY-MM-DD", RFC 3339 text, or a spreadsheet serial
// date number.
func cellDate(c ingest.Cell) (core.Date, error) {
	if c.IsBlank() {
		return core.Date{}, nil
	}
	if c.Kind() == ingest.KindNumber {
		f, _ := c.Float()
		t, err := excelize.ExcelDateToTime(f, false)
		if err != nil {
			return core.Date{}, core.ErrInvalidDate
		}
		return core.NewDate(t.Year(), int(t.Month()), t.Day()), nil
	}
	return core.ParseDate(strings.TrimSpace(c.String()))
}

func cellText(c ingest.Cell) string {
	return strings.TrimSpace(c.String())
}
