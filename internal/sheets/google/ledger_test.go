package google

import (
	"testing"
	"time"

	"boqtrack/internal/core"
)

func TestLedgerRowMatchesHeader(t *testing.T) {
	tx := core.Transaction{
		ID: "t1", ProjectName: "Bridge", Category: "fuel", Description: "diesel",
		ExpenseAmount: 120.5, Amount: 1000, Date: core.NewDate(2024, 2, 1), PaymentMethod: "card",
		UpdatedAt: time.Date(2024, 2, 1, 10, 30, 0, 0, time.UTC),
	}
	row := ledgerRow(tx)
	if len(row) != len(ledgerHeader) {
		t.Fatalf("row has %d cells, header %d", len(row), len(ledgerHeader))
	}
	if row[0] != "t1" || row[5] != 120.5 || row[7] != "2024-02-01" || row[9] != "2024-02-01 10:30:00" {
		t.Fatalf("unexpected row: %v", row)
	}
	if lastLedgerColumn[0]-'A'+1 != byte(len(ledgerHeader)) {
		t.Fatalf("last column %s does not match %d header cells", lastLedgerColumn, len(ledgerHeader))
	}
}

func TestFindRow(t *testing.T) {
	values := [][]interface{}{
		{"ID"},
		{"a1"},
		{},
		{" b2 "},
	}
	cases := []struct {
		id   string
		want int
	}{
		{"a1", 1},
		{"b2", 3},
		{"ID", -1},
		{"zz", -1},
	}
	for _, tc := range cases {
		if got := findRow(values, tc.id); got != tc.want {
			t.Errorf("findRow(%q) = %d, want %d", tc.id, got, tc.want)
		}
	}
	if got := findRow([][]interface{}{{"a1"}}, "a1"); got != 0 {
		t.Errorf("headerless ledger: got %d", got)
	}
}
