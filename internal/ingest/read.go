package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnreadableFile is returned, wrapped, when a file cannot be parsed as
// a spreadsheet at all. No rows are returned with it.
var ErrUnreadableFile = errors.New("unreadable spreadsheet file")

// Read parses a spreadsheet, picking the reader from the file extension.
func Read(name string, r io.Reader) ([]Row, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return ReadXLSX(r)
	case ".csv":
		return ReadCSV(r)
	default:
		return nil, fmt.Errorf("%w: unsupported file type %q", ErrUnreadableFile, filepath.Ext(name))
	}
}

// ReadXLSX reads every row of the first sheet of a workbook. Cell kinds
// follow the types stored in the workbook.
func ReadXLSX(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableFile, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrUnreadableFile)
	}
	sheet := sheets[0]
	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %v", ErrUnreadableFile, sheet, err)
	}

	rows := make([]Row, len(raw))
	for i, values := range raw {
		row := make(Row, len(values))
		for j, v := range values {
			if v == "" {
				row[j] = Missing()
				continue
			}
			axis, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrUnreadableFile, err)
			}
			typ, err := f.GetCellType(sheet, axis)
			if err != nil {
				return nil, fmt.Errorf("%w: cell %s: %v", ErrUnreadableFile, axis, err)
			}
			row[j] = xlsxCell(v, typ)
		}
		rows[i] = row
	}
	return rows, nil
}

func xlsxCell(v string, typ excelize.CellType) Cell {
	switch typ {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeError:
		return Text(v)
	case excelize.CellTypeBool:
		return Bool(v == "1" || strings.EqualFold(v, "true"))
	}
	// Numbers, dates and untyped cells carry a raw numeric value; formula
	// results that are not numeric stay text.
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return Number(f)
	}
	return Text(v)
}

// ReadCSV reads a comma separated file. CSV carries no types, so every
// non-empty field becomes text.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableFile, err)
	}
	rows := make([]Row, len(records))
	for i, rec := range records {
		row := make(Row, len(rec))
		for j, v := range rec {
			if v == "" {
				row[j] = Missing()
				continue
			}
			row[j] = Text(v)
		}
		rows[i] = row
	}
	return rows, nil
}

// ReadResult is the outcome of ReadAsync.
type ReadResult struct {
	Rows []Row
	Err  error
}

// ReadAsync parses the file in its own goroutine. The returned channel
// yields exactly one result and is then closed. When ctx ends first the
// result carries ctx.Err(); the parse itself is left to finish and is
// discarded.
func ReadAsync(ctx context.Context, name string, r io.Reader) <-chan ReadResult {
	out := make(chan ReadResult, 1)
	parsed := make(chan ReadResult, 1)
	go func() {
		rows, err := Read(name, r)
		parsed <- ReadResult{Rows: rows, Err: err}
	}()
	go func() {
		defer close(out)
		select {
		case res := <-parsed:
			out <- res
		case <-ctx.Done():
			out <- ReadResult{Err: ctx.Err()}
		}
	}()
	return out
}
