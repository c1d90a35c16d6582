package ingest

import "unicode/utf8"

// Classification is the role of a BOQ line.
type Classification int

const (
	DataRow Classification = iota
	CategoryHeader
	TotalRow
	InvalidRow
)

func (c Classification) String() string {
	switch c {
	case CategoryHeader:
		return "category"
	case TotalRow:
		return "total"
	case InvalidRow:
		return "invalid"
	default:
		return "data"
	}
}

// ParseClassification is the inverse of String. Unknown names map to
// InvalidRow.
func ParseClassification(s string) Classification {
	switch s {
	case "data":
		return DataRow
	case "category":
		return CategoryHeader
	case "total":
		return TotalRow
	default:
		return InvalidRow
	}
}

// Editable reports whether lines of this class accept progress and
// transactions.
func (c Classification) Editable() bool { return c == DataRow }

const (
	codeGrandTotal = "tt"
	codeSubtotal   = "st"
)

// IsCategoryHeader reports a single-character text code.
func IsCategoryHeader(r BudgetLineRow) bool {
	code, ok := r.Code.Text()
	return ok && code != "" && utf8.RuneCountInString(code) == 1
}

// IsTotal reports a grand total ("tt") or subtotal ("st") code.
func IsTotal(r BudgetLineRow) bool {
	code, ok := r.Code.Text()
	return ok && (code == codeGrandTotal || code == codeSubtotal)
}

// IsTotalOrInvalid reports codes that are falsy, not text, or a total
// marker.
func IsTotalOrInvalid(r BudgetLineRow) bool {
	if !r.Code.Truthy() {
		return true
	}
	if _, ok := r.Code.Text(); !ok {
		return true
	}
	return IsTotal(r)
}

// IsEmpty reports a row whose six fields are all missing or "".
func IsEmpty(r BudgetLineRow) bool {
	for _, c := range r.Cells() {
		if !c.IsBlank() {
			return false
		}
	}
	return true
}

// Classify returns the single role of r. Totals are reported as TotalRow
// even though IsTotalOrInvalid also covers them.
func Classify(r BudgetLineRow) Classification {
	switch {
	case IsTotal(r):
		return TotalRow
	case IsTotalOrInvalid(r):
		return InvalidRow
	case IsCategoryHeader(r):
		return CategoryHeader
	default:
		return DataRow
	}
}
