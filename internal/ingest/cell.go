package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind tells what a spreadsheet cell holds.
type Kind uint8

const (
	KindMissing Kind = iota
	KindText
	KindNumber
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	default:
		return "missing"
	}
}

// Cell is a single spreadsheet value. Cells keep the type they were read
// with; nothing converts "100" into 100 or the other way round.
type Cell struct {
	kind Kind
	text string
	num  float64
	b    bool
}

func Missing() Cell { return Cell{} }
func Text(s string) Cell { return Cell{kind: KindText, text: s} }
func Number(f float64) Cell { return Cell{kind: KindNumber, num: f} }
func Bool(b bool) Cell { return Cell{kind: KindBool, b: b} }
func (c Cell) Kind() Kind { return c.kind }
func (c Cell) IsMissing() bool { return c.kind == KindMissing }

// FromValue wraps a decoded value (Sheets API, JSON) into a Cell.
func FromValue(v interface{}) Cell {
	switch x := v.(type) {
	case nil:
		return Missing()
	case Cell:
		return x
	case string:
		return Text(x)
	case float64:
		return Number(x)
	case float32:
		return Number(float64(x))
	case int:
		return Number(float64(x))
	case int64:
		return Number(float64(x))
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return Number(f)
		}
		return Text(x.String())
	case bool:
		return Bool(x)
	default:
		return Text(fmt.Sprint(x))
	}
}

// IsBlank reports whether the cell is missing or an empty string.
// Zero and false are values, not blanks.
func (c Cell) IsBlank() bool {
	return c.kind == KindMissing || (c.kind == KindText && c.text == "")
}

// Truthy follows spreadsheet-script truthiness: non-empty text, non-zero
// numbers and true are truthy.
func (c Cell) Truthy() bool {
	switch c.kind {
	case KindText:
		return c.text != ""
	case KindNumber:
		return c.num != 0 && !math.IsNaN(c.num)
	case KindBool:
		return c.b
	default:
		return false
	}
}

// Text returns the string content of a text cell.
func (c Cell) Text() (string, bool) {
	if c.kind != KindText {
		return "", false
	}
	return c.text, true
}

// Float returns the numeric value of a number cell, or of a text cell whose
// trimmed content parses as a number.
func (c Cell) Float() (float64, bool) {
	switch c.kind {
	case KindNumber:
		return c.num, true
	case KindText:
		f, err := strconv.ParseFloat(strings.TrimSpace(c.text), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func (c Cell) String() string {
	switch c.kind {
	case KindText:
		return c.text
	case KindNumber:
		return strconv.FormatFloat(c.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(c.b)
	default:
		return ""
	}
}

func (c Cell) MarshalJSON() ([]byte, error) {
	switch c.kind {
	case KindText:
		return json.Marshal(c.text)
	case KindNumber:
		if math.IsNaN(c.num) || math.IsInf(c.num, 0) {
			return []byte("null"), nil
		}
		return json.Marshal(c.num)
	case KindBool:
		return json.Marshal(c.b)
	default:
		return []byte("null"), nil
	}
}

func (c *Cell) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return err
	}
	switch v.(type) {
	case map[string]interface{}, []interface{}:
		return fmt.Errorf("cell: unsupported JSON value %s", data)
	}
	*c = FromValue(v)
	return nil
}

// Row is one sheet row; its length may differ from row to row.
type Row []Cell

// At returns the cell at column i, or a missing cell past the row end.
func (r Row) At(i int) Cell {
	if i < 0 || i >= len(r) {
		return Missing()
	}
	return r[i]
}

// RowOf builds a row from plain values, mostly for tests and JSON input.
func RowOf(values ...interface{}) Row {
	row := make(Row, len(values))
	for i, v := range values {
		row[i] = FromValue(v)
	}
	return row
}

// FromValues converts a Sheets API value matrix into rows.
func FromValues(values [][]interface{}) []Row {
	rows := make([]Row, len(values))
	for i, v := range values {
		rows[i] = RowOf(v...)
	}
	return rows
}
