package report

// DonutSeries has two slices: total income and total expense.
type DonutSeries struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

// BarSeries has one income/expense pair per category, in summary order.
type BarSeries struct {
	Labels  []string  `json:"labels"`
	Income  []float64 `json:"income"`
	Expense []float64 `json:"expense"`
}

func Donut(summaries []CategorySummary) DonutSeries {
	t := Totals(summaries)
	return DonutSeries{
		Labels: []string{"Income", "Expense"},
		Values: []float64{t.IncomeAmount, t.ExpenseAmount},
	}
}

func Bars(summaries []CategorySummary) BarSeries {
	b := BarSeries{
		Labels:  make([]string, 0, len(summaries)),
		Income:  make([]float64, 0, len(summaries)),
		Expense: make([]float64, 0, len(summaries)),
	}
	for _, s := range summaries {
		b.Labels = append(b.Labels, s.Category)
		b.Income = append(b.Income, s.IncomeAmount)
		b.Expense = append(b.Expense, s.ExpenseAmount)
	}
	return b
}
