// Package format renders numbers for BOQ cells and report totals.
package format

import (
	"math"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"boqtrack/internal/core"
	"boqtrack/internal/ingest"
)

const maxFractionDigits = 3

// Formatter formats numbers with the grouping rules of one locale.
type Formatter struct {
	printer *message.Printer
}

// New returns a formatter for tag.
func New(tag language.Tag) *Formatter {
	return &Formatter{printer: message.NewPrinter(tag)}
}

// NewFromLocale parses a BCP 47 locale such as "en-US" or "it". Invalid
// input falls back to English.
func NewFromLocale(locale string) *Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return New(tag)
}

var defaultFormatter = New(language.English)

// Number groups thousands and keeps at most three fraction digits.
func (f *Formatter) Number(v float64) string {
	return f.printer.Sprintf("%v", number.Decimal(v, number.MaxFractionDigits(maxFractionDigits)))
}

// CurrencyCell formats a BOQ cell. Blank cells render as "" and values that
// are not numbers are returned unchanged. The whole text must parse as a
// number, so "12 m" or "1,234" is kept as written rather than cut down to
// its leading digits.
func (f *Formatter) CurrencyCell(c ingest.Cell) string {
	if c.IsBlank() {
		return ""
	}
	v, ok := c.Float()
	if !ok {
		return c.String()
	}
	return f.Number(v)
}

// SummaryNumber formats a report total. NaN renders as "0".
func (f *Formatter) SummaryNumber(v float64) string {
	if math.IsNaN(v) {
		return "0"
	}
	return f.Number(v)
}

func CurrencyCell(c ingest.Cell) string { return defaultFormatter.CurrencyCell(c) }
func SummaryNumber(v float64) string { return defaultFormatter.SummaryNumber(v) }

// Date renders a calendar day as YYYY-MM-DD; the zero value is "".
func Date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(core.DateLayout)
}
