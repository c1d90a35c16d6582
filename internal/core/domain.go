package core

import (
	"errors"
	"math"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

type (
	// Date is a calendar day without time of day, encoded as YYYY-MM-DD.
	Date struct {
		time.Time
	}

	Project struct {
		ID          string    `json:"id"`
		Owner       string    `json:"owner"`
		Name        string    `json:"name"`
		Code        string    `json:"projectCode"`
		StartDate   Date      `json:"startDate"`
		EndDate     Date      `json:"endDate"`
		Location    string    `json:"location"`
		Manager     string    `json:"manager"`
		Description string    `json:"description"`
		CreatedAt   time.Time `json:"createdAt"`
		UpdatedAt   time.Time `json:"updatedAt"`
	}

	Category struct {
		ID        string    `json:"id"`
		Owner     string    `json:"owner"`
		Name      string    `json:"name"`
		CreatedAt time.Time `json:"createdAt"`
	}

	// BudgetLine is a stored BOQ line. Classification is computed once at
	// import time from the code.
	BudgetLine struct {
		ID             string    `json:"id"`
		Owner          string    `json:"owner"`
		ProjectName    string    `json:"projectName"`
		ImportID       string    `json:"importId"`
		Position       int       `json:"position"`
		Code           string    `json:"code"`
		Description    string    `json:"description"`
		Quantity       float64   `json:"quantity"`
		Unit           string    `json:"unitOfMeasure"`
		Rate           float64   `json:"rate"`
		Amount         float64   `json:"amount"`
		Classification string    `json:"classification"`
		Progress       float64   `json:"progress"`
		Category       string    `json:"category"`
		CurrentAmount  float64   `json:"currentAmount"`
		Spent          float64   `json:"spent"`
		CreatedAt      time.Time `json:"createdAt"`
		UpdatedAt      time.Time `json:"updatedAt"`
	}

	// Transaction is a posted income or expense of a project. Amount is the
	// contract figure of the related budget line, not the posted value.
	Transaction struct {
		ID            string    `json:"id"`
		Owner         string    `json:"owner"`
		ProjectName   string    `json:"projectName"`
		Category      string    `json:"category"`
		Description   string    `json:"description"`
		IncomeAmount  float64   `json:"incomeAmount"`
		ExpenseAmount float64   `json:"expenseAmount"`
		Amount        float64   `json:"amount"`
		Quantity      float64   `json:"quantity"`
		Unit          string    `json:"unit"`
		Price         float64   `json:"price"`
		PaymentMethod string    `json:"paymentMethod"`
		Date          Date      `json:"date"`
		BudgetLineID  string    `json:"budgetLineId,omitempty"`
		CreatedAt     time.Time `json:"createdAt"`
		UpdatedAt     time.Time `json:"updatedAt"`
	}
)

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("already exists")
	ErrEmptyName       = errors.New("empty name")
	ErrEmptyProject    = errors.New("empty project name")
	ErrEmptyCategory   = errors.New("empty category")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrBothAmounts     = errors.New("transaction cannot be both income and expense")
	ErrInvalidProgress = errors.New("progress must be between 0 and 100")
	ErrInvalidDates    = errors.New("end date before start date")
	ErrInvalidDate     = errors.New("invalid date")
	ErrNotEditable     = errors.New("budget line is not editable")
)

// IsValidation reports whether err is one of the input validation errors.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrEmptyName, ErrEmptyProject, ErrEmptyCategory, ErrInvalidAmount,
		ErrBothAmounts, ErrInvalidProgress, ErrInvalidDates, ErrInvalidDate,
		ErrNotEditable,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts YYYY-MM-DD and RFC 3339 timestamps. An empty string is
// the zero date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return Date{Time: t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	y, m, d := t.Date()
	return NewDate(y, int(m), d), nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (p Project) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if !p.StartDate.IsZero() && !p.EndDate.IsZero() && p.EndDate.Before(p.StartDate.Time) {
		return ErrInvalidDates
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

// IsIncome reports a transaction that books income.
func (t Transaction) IsIncome() bool { return t.IncomeAmount > 0 }

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.ProjectName) == "" {
		return ErrEmptyProject
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	for _, v := range []float64{t.IncomeAmount, t.ExpenseAmount, t.Amount, t.Quantity, t.Price} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrInvalidAmount
		}
	}
	if t.IncomeAmount > 0 && t.ExpenseAmount > 0 {
		return ErrBothAmounts
	}
	if t.IncomeAmount == 0 && t.ExpenseAmount == 0 {
		return ErrInvalidAmount
	}
	return nil
}

func ValidateProgress(p float64) error {
	if math.IsNaN(p) || p < 0 || p > 100 {
		return ErrInvalidProgress
	}
	return nil
}

// Remaining is the budget left on the line after recorded expenses.
func (b BudgetLine) Remaining() float64 { return b.Amount - b.Spent }
