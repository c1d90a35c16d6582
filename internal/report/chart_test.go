package report

import (
	"reflect"
	"testing"

	"boqtrack/internal/core"
)

func TestChartSeries(t *testing.T) {
	summaries := Aggregate([]core.Transaction{
		tx("fuel", 0, 500, 0, "2024-01-01"),
		tx("fuel", 0, 300, 0, "2024-02-01"),
		tx("labor", 2000, 0, 0, "2024-01-15"),
	})

	donut := Donut(summaries)
	if !reflect.DeepEqual(donut.Values, []float64{2000, 800}) {
		t.Fatalf("donut values = %v", donut.Values)
	}

	bars := Bars(summaries)
	if !reflect.DeepEqual(bars.Labels, []string{"fuel", "labor"}) {
		t.Fatalf("bar labels = %v", bars.Labels)
	}
	if !reflect.DeepEqual(bars.Income, []float64{0, 2000}) || !reflect.DeepEqual(bars.Expense, []float64{800, 0}) {
		t.Fatalf("bar values = %v / %v", bars.Income, bars.Expense)
	}

	totals := Totals(summaries)
	if totals.Profit != 1200 {
		t.Fatalf("profit = %v", totals.Profit)
	}
	if empty := Bars(nil); len(empty.Labels) != 0 || empty.Labels == nil {
		t.Fatalf("empty bars: %#v", empty)
	}
}

func TestSimilarCategories(t *testing.T) {
	summaries := []CategorySummary{
		{Category: "Fuel"}, {Category: "fuel"}, {Category: "Concrete"},
		{Category: "Concret"}, {Category: "ab"}, {Category: "ac"}, {Category: "Labor"},
	}
	got := SimilarCategories(summaries)
	want := []SimilarPair{{A: "Fuel", B: "fuel"}, {A: "Concrete", B: "Concret"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
