// Package report folds project transactions into per-category summaries
// and chart series.
package report

import (
	"math"
	"sort"
	"time"

	"boqtrack/internal/core"
)

// CategorySummary is the fold of every transaction sharing one category.
type CategorySummary struct {
	Category      string             `json:"category"`
	IncomeAmount  float64            `json:"incomeAmount"`
	ExpenseAmount float64            `json:"expenseAmount"`
	Amount        float64            `json:"amount"`
	Profit        float64            `json:"profit"`
	UpdatedAt     time.Time          `json:"updatedAt"`
	Descriptions  []core.Transaction `json:"descriptions"`
}

// Aggregate groups records by exact category string. Income and expense are
// summed, Amount is taken from the last member in input order, UpdatedAt is
// the latest member timestamp. Summaries are sorted most recent first; ties
// keep first-seen order.
func Aggregate(records []core.Transaction) []CategorySummary {
	out := make([]CategorySummary, 0)
	index := make(map[string]int)
	for _, rec := range records {
		i, ok := index[rec.Category]
		if !ok {
			i = len(out)
			index[rec.Category] = i
			out = append(out, CategorySummary{Category: rec.Category, UpdatedAt: rec.UpdatedAt})
		}
		s := &out[i]
		s.IncomeAmount += orZero(rec.IncomeAmount)
		s.ExpenseAmount += orZero(rec.ExpenseAmount)
		s.Amount = rec.Amount
		if rec.UpdatedAt.After(s.UpdatedAt) {
			s.UpdatedAt = rec.UpdatedAt
		}
		s.Descriptions = append(s.Descriptions, rec)
	}
	for i := range out {
		out[i].Profit = out[i].IncomeAmount - out[i].ExpenseAmount
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].UpdatedAt.After(out[b].UpdatedAt)
	})
	return out
}

func orZero(f float64) float64 {
	if math.IsNaN(f) {
		return 0
	}
	return f
}

// SortedDescriptions returns the members of s, most recently updated first.
// s is not modified.
func SortedDescriptions(s CategorySummary) []core.Transaction {
	out := make([]core.Transaction, len(s.Descriptions))
	copy(out, s.Descriptions)
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].UpdatedAt.After(out[b].UpdatedAt)
	})
	return out
}

// ProjectTotals is the project-wide fold of all summaries.
type ProjectTotals struct {
	IncomeAmount  float64 `json:"incomeAmount"`
	ExpenseAmount float64 `json:"expenseAmount"`
	Profit        float64 `json:"profit"`
}

func Totals(summaries []CategorySummary) ProjectTotals {
	var t ProjectTotals
	for _, s := range summaries {
		t.IncomeAmount += s.IncomeAmount
		t.ExpenseAmount += s.ExpenseAmount
	}
	t.Profit = t.IncomeAmount - t.ExpenseAmount
	return t
}
