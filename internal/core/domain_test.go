package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestTransactionValidate(t *testing.T) {
	base := Transaction{ProjectName: "Bridge", Category: "fuel", ExpenseAmount: 10}
	cases := []struct {
		name string
		mut  func(*Transaction)
		want error
	}{
		{"valid expense", func(*Transaction) {}, nil},
		{"valid income", func(tx *Transaction) { tx.ExpenseAmount = 0; tx.IncomeAmount = 5 }, nil},
		{"no project", func(tx *Transaction) { tx.ProjectName = " " }, ErrEmptyProject},
		{"no category", func(tx *Transaction) { tx.Category = "" }, ErrEmptyCategory},
		{"both amounts", func(tx *Transaction) { tx.IncomeAmount = 1 }, ErrBothAmounts},
		{"no amount", func(tx *Transaction) { tx.ExpenseAmount = 0 }, ErrInvalidAmount},
		{"negative", func(tx *Transaction) { tx.Price = -1 }, ErrInvalidAmount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tx := base
			tc.mut(&tx)
			err := tx.Validate()
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if tc.want != nil && !IsValidation(err) {
				t.Fatalf("%v should be a validation error", err)
			}
		})
	}
}

func TestProjectValidate(t *testing.T) {
	if err := (Project{}).Validate(); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
	p := Project{Name: "Bridge", StartDate: NewDate(2024, 5, 1), EndDate: NewDate(2024, 4, 1)}
	if err := p.Validate(); !errors.Is(err, ErrInvalidDates) {
		t.Fatalf("expected ErrInvalidDates, got %v", err)
	}
	p.EndDate = Date{}
	if err := p.Validate(); err != nil {
		t.Fatalf("open-ended project should be valid: %v", err)
	}
}

func TestValidateProgress(t *testing.T) {
	for _, p := range []float64{0, 50, 100} {
		if err := ValidateProgress(p); err != nil {
			t.Fatalf("%v: %v", p, err)
		}
	}
	for _, p := range []float64{-1, 100.5} {
		if err := ValidateProgress(p); !errors.Is(err, ErrInvalidProgress) {
			t.Fatalf("%v: expected ErrInvalidProgress, got %v", p, err)
		}
	}
}

func TestDateJSON(t *testing.T) {
	var v struct {
		D Date `json:"d"`
		E Date `json:"e"`
	}
	if err := json.Unmarshal([]byte(`{"d":"2024-02-01","e":"2024-03-05T10:00:00Z"}`), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.D != NewDate(2024, 2, 1) || v.E != NewDate(2024, 3, 5) {
		t.Fatalf("unexpected dates: %v %v", v.D, v.E)
	}
	out, _ := json.Marshal(struct {
		D Date `json:"d"`
	}{})
	if string(out) != `{"d":""}` {
		t.Fatalf("zero date encodes as %s", out)
	}
	if _, err := ParseDate("01/02/2024"); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}
