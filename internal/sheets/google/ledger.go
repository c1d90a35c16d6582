package google

import (
	"fmt"
	"strings"

	"boqtrack/internal/core"
)

// Ledger columns: ID, Project, Category, Description, Income, Expense,
// Amount, Date, Payment, Updated.
const lastLedgerColumn = "J"

var ledgerHeader = []interface{}{"ID", "Project", "Category", "Description", "Income", "Expense", "Amount", "Date", "Payment", "Updated"}

func ledgerRow(t core.Transaction) []interface{} {
	return []interface{}{
		t.ID,
		t.ProjectName,
		t.Category,
		t.Description,
		t.IncomeAmount,
		t.ExpenseAmount,
		t.Amount,
		t.Date.String(),
		t.PaymentMethod,
		t.UpdatedAt.UTC().Format("2006-01-02 15:04:05"),
	}
}

// findRow returns the 0-based index of the row whose first cell is id,
// skipping a header row, or -1.
func findRow(values [][]interface{}, id string) int {
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		cell := strings.TrimSpace(fmt.Sprint(row[0]))
		if i == 0 && strings.EqualFold(cell, fmt.Sprint(ledgerHeader[0])) {
			continue
		}
		if cell == id {
			return i
		}
	}
	return -1
}
