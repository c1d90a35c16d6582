// Package storetest holds the behaviour every store.Store implementation
// must share. Implementations call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"boqtrack/internal/core"
	"boqtrack/internal/store"
)

var base = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

// Run exercises s through every port. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("projects", func(t *testing.T) { testProjects(t, newStore(t)) })
	t.Run("categories", func(t *testing.T) { testCategories(t, newStore(t)) })
	t.Run("budget", func(t *testing.T) { testBudget(t, newStore(t)) })
	t.Run("transactions", func(t *testing.T) { testTransactions(t, newStore(t)) })
}

func testProjects(t *testing.T, s store.Store) {
	ctx := context.Background()
	bridge := core.Project{
		ID: "p1", Owner: "u1", Name: "Bridge", Code: "BR-1",
		StartDate: core.NewDate(2024, 1, 1), EndDate: core.NewDate(2024, 12, 31),
		Location: "Riverside", Manager: "Ada", Description: "Footbridge",
		CreatedAt: base, UpdatedAt: base,
	}
	road := core.Project{ID: "p2", Owner: "u1", Name: "Road", CreatedAt: base, UpdatedAt: base.Add(time.Hour)}
	other := core.Project{ID: "p3", Owner: "u2", Name: "Bridge", CreatedAt: base, UpdatedAt: base}
	for _, p := range []core.Project{bridge, road, other} {
		if err := s.CreateProject(ctx, p); err != nil {
			t.Fatalf("create %s: %v", p.ID, err)
		}
	}
	dup := bridge
	dup.ID = "p4"
	if err := s.CreateProject(ctx, dup); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	list, err := s.ListProjects(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Name != "Road" {
		t.Fatalf("expected Road first, got %+v", list)
	}

	if err := s.TouchProject(ctx, "u1", "Bridge", base.Add(2*time.Hour)); err != nil {
		t.Fatalf("touch: %v", err)
	}
	list, _ = s.ListProjects(ctx, "u1")
	if list[0].Name != "Bridge" {
		t.Fatalf("touched project should list first, got %s", list[0].Name)
	}

	got, err := s.GetProjectByName(ctx, "u1", "Bridge")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Code != "BR-1" || got.StartDate != bridge.StartDate || got.EndDate != bridge.EndDate || got.Manager != "Ada" {
		t.Fatalf("fields not round-tripped: %+v", got)
	}
	if _, err := s.GetProjectByName(ctx, "u3", "Bridge"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := s.TouchProject(ctx, "u1", "Tunnel", base); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found on touch, got %v", err)
	}
}

func testCategories(t *testing.T, s store.Store) {
	ctx := context.Background()
	for i, name := range []string{"labor", "fuel"} {
		c := core.Category{ID: "c" + name, Owner: "u1", Name: name, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := s.CreateCategory(ctx, c); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	err := s.CreateCategory(ctx, core.Category{ID: "cx", Owner: "u1", Name: "fuel", CreatedAt: base})
	if !errors.Is(err, core.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	list, err := s.ListCategories(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Name != "fuel" || list[1].Name != "labor" {
		t.Fatalf("unexpected categories: %+v", list)
	}
	if list, _ := s.ListCategories(ctx, "u2"); len(list) != 0 {
		t.Fatalf("categories leaked across owners: %+v", list)
	}
}

func budgetLine(id string, pos int, code string) core.BudgetLine {
	return core.BudgetLine{
		ID: id, Owner: "u1", ProjectName: "Bridge", ImportID: "imp", Position: pos,
		Code: code, Description: "line " + code, Quantity: 100, Unit: "m3", Rate: 20,
		Amount: 2000, Classification: "data", CreatedAt: base, UpdatedAt: base,
	}
}

func testBudget(t *testing.T, s store.Store) {
	ctx := context.Background()
	first := []core.BudgetLine{budgetLine("l2", 1, "1.1"), budgetLine("l1", 0, "1")}
	if err := s.ReplaceBudget(ctx, "u1", "Bridge", first); err != nil {
		t.Fatalf("replace: %v", err)
	}
	lines, err := s.ListBudget(ctx, "u1", "Bridge")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(lines) != 2 || lines[0].ID != "l1" || lines[1].ID != "l2" {
		t.Fatalf("expected position order, got %+v", lines)
	}

	l := lines[1]
	l.Progress = 50
	l.Category = "earthworks"
	l.CurrentAmount = 1000
	l.Spent = 250.5
	l.UpdatedAt = base.Add(time.Hour)
	if err := s.UpdateBudgetLine(ctx, l); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := s.GetBudgetLine(ctx, "u1", "l2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Progress != 50 || got.Category != "earthworks" || got.CurrentAmount != 1000 || got.Spent != 250.5 {
		t.Fatalf("update not stored: %+v", got)
	}
	if !got.UpdatedAt.Equal(base.Add(time.Hour)) {
		t.Fatalf("updatedAt = %v", got.UpdatedAt)
	}
	if _, err := s.GetBudgetLine(ctx, "u2", "l2"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found for other owner, got %v", err)
	}

	if err := s.ReplaceBudget(ctx, "u1", "Bridge", []core.BudgetLine{budgetLine("l3", 0, "2")}); err != nil {
		t.Fatalf("replace again: %v", err)
	}
	lines, _ = s.ListBudget(ctx, "u1", "Bridge")
	if len(lines) != 1 || lines[0].ID != "l3" {
		t.Fatalf("re-import should replace lines, got %+v", lines)
	}
	missing := budgetLine("nope", 0, "9")
	if err := s.UpdateBudgetLine(ctx, missing); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func testTransactions(t *testing.T, s store.Store) {
	ctx := context.Background()
	mk := func(id, project, category string, income, expense float64, at time.Time) core.Transaction {
		return core.Transaction{
			ID: id, Owner: "u1", ProjectName: project, Category: category,
			Description: id, IncomeAmount: income, ExpenseAmount: expense, Amount: 2000,
			Quantity: 2, Unit: "h", Price: 10, PaymentMethod: "cash",
			Date: core.NewDate(2024, 2, 1), CreatedAt: at, UpdatedAt: at,
		}
	}
	t1 := mk("t1", "Bridge", "fuel", 0, 500, base)
	t2 := mk("t2", "Bridge", "labor", 1000, 0, base.Add(time.Minute))
	t2.BudgetLineID = "l1"
	t3 := mk("t3", "Road", "fuel", 0, 20, base.Add(2*time.Minute))
	for _, tx := range []core.Transaction{t1, t2, t3} {
		if err := s.CreateTransaction(ctx, tx); err != nil {
			t.Fatalf("create %s: %v", tx.ID, err)
		}
	}

	bridge, err := s.ListTransactions(ctx, "u1", "Bridge")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(bridge) != 2 || bridge[0].ID != "t1" || bridge[1].ID != "t2" {
		t.Fatalf("unexpected project list: %+v", bridge)
	}
	all, _ := s.ListTransactions(ctx, "u1", "")
	if len(all) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(all))
	}

	got, err := s.FindByBudgetLine(ctx, "u1", "l1")
	if err != nil || got.ID != "t2" {
		t.Fatalf("find by line: %+v %v", got, err)
	}
	if got.Date != core.NewDate(2024, 2, 1) || got.PaymentMethod != "cash" || got.Price != 10 {
		t.Fatalf("fields not round-tripped: %+v", got)
	}

	t1.ExpenseAmount = 750
	t1.UpdatedAt = base.Add(time.Hour)
	if err := s.UpdateTransaction(ctx, t1); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = s.GetTransaction(ctx, "u1", "t1")
	if got.ExpenseAmount != 750 || !got.UpdatedAt.Equal(base.Add(time.Hour)) {
		t.Fatalf("update not stored: %+v", got)
	}

	if err := s.DeleteTransaction(ctx, "u2", "t1"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found for other owner, got %v", err)
	}
	if err := s.DeleteTransaction(ctx, "u1", "t1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetTransaction(ctx, "u1", "t1"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if _, err := s.FindByBudgetLine(ctx, "u1", "zzz"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
