package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"boqtrack/internal/amqp"
	"boqtrack/internal/core"
	"boqtrack/internal/ingest"
	"boqtrack/internal/log"
	"boqtrack/internal/store"
)

// Invalidator drops cached report data of a project.
type Invalidator interface {
	Invalidate(ctx context.Context, owner, project string)
}

// TransactionService orchestrates transaction writes across the store, the
// ledger sync queue and the report cache.
type TransactionService struct {
	store     store.Store
	publisher Publisher
	reports   Invalidator
	now       func() time.Time
}

// NewTransactionService wires the service. publisher and reports may be nil.
func NewTransactionService(st store.Store, publisher Publisher, reports Invalidator) *TransactionService {
	return &TransactionService{
		store:     st,
		publisher: publisher,
		reports:   reports,
		now:       time.Now,
	}
}

// Create stores a new transaction. An expense without an explicit amount
// is priced as quantity × price.
func (s *TransactionService) Create(ctx context.Context, owner string, t core.Transaction) (core.Transaction, error) {
	t.Owner = owner
	normalize(&t)
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := s.requireProject(ctx, owner, t.ProjectName); err != nil {
		return core.Transaction{}, err
	}

	now := s.now().UTC()
	t.ID = uuid.NewString()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.Date.IsZero() {
		t.Date = core.NewDate(now.Year(), int(now.Month()), now.Day())
	}

	if err := s.store.CreateTransaction(ctx, t); err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	if t.BudgetLineID != "" && t.ExpenseAmount > 0 {
		s.adjustSpent(ctx, owner, t.BudgetLineID, t.ExpenseAmount)
	}
	s.afterWrite(ctx, amqp.OpUpsert, t, t.ProjectName)
	return t, nil
}

// Update replaces the editable fields of an existing transaction.
func (s *TransactionService) Update(ctx context.Context, owner string, t core.Transaction) (core.Transaction, error) {
	old, err := s.store.GetTransaction(ctx, owner, t.ID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}

	t.Owner = owner
	t.CreatedAt = old.CreatedAt
	if t.BudgetLineID == "" {
		t.BudgetLineID = old.BudgetLineID
	}
	if t.Date.IsZero() {
		t.Date = old.Date
	}
	normalize(&t)
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if t.ProjectName != old.ProjectName {
		if err := s.requireProject(ctx, owner, t.ProjectName); err != nil {
			return core.Transaction{}, err
		}
	}
	t.UpdatedAt = s.now().UTC()

	if err := s.store.UpdateTransaction(ctx, t); err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}

	if old.BudgetLineID != "" && old.ExpenseAmount > 0 {
		s.adjustSpent(ctx, owner, old.BudgetLineID, -old.ExpenseAmount)
	}
	if t.BudgetLineID != "" && t.ExpenseAmount > 0 {
		s.adjustSpent(ctx, owner, t.BudgetLineID, t.ExpenseAmount)
	}
	s.afterWrite(ctx, amqp.OpUpsert, t, t.ProjectName)
	if old.ProjectName != t.ProjectName {
		s.invalidate(ctx, owner, old.ProjectName)
	}
	return t, nil
}

func (s *TransactionService) Delete(ctx context.Context, owner, id string) error {
	old, err := s.store.GetTransaction(ctx, owner, id)
	if err != nil {
		return fmt.Errorf("get transaction: %w", err)
	}
	if err := s.store.DeleteTransaction(ctx, owner, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if old.BudgetLineID != "" && old.ExpenseAmount > 0 {
		s.adjustSpent(ctx, owner, old.BudgetLineID, -old.ExpenseAmount)
	}
	s.afterWrite(ctx, amqp.OpDelete, old, old.ProjectName)
	return nil
}

func (s *TransactionService) Get(ctx context.Context, owner, id string) (core.Transaction, error) {
	t, err := s.store.GetTransaction(ctx, owner, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// List returns the owner's transactions, optionally limited to one project.
func (s *TransactionService) List(ctx context.Context, owner, project string) ([]core.Transaction, error) {
	list, err := s.store.ListTransactions(ctx, owner, strings.TrimSpace(project))
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return list, nil
}

// RowError reports a record that could not be imported. Row is the 1-based
// sheet row, the header being row 1.
type RowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

type ImportSummary struct {
	Created []core.Transaction `json:"created"`
	Failed  []RowError         `json:"failed"`
}

// Import creates one transaction per header-keyed record. Header names are
// matched ignoring case, spaces and underscores. project is used for records
// without a project column. A failing record does not stop the others.
func (s *TransactionService) Import(ctx context.Context, owner, project string, records []ingest.Record) ImportSummary {
	summary := ImportSummary{Created: []core.Transaction{}, Failed: []RowError{}}
	for i, rec := range records {
		row := i + 2
		t, err := transactionFromRecord(rec)
		if err == nil {
			if t.ProjectName == "" {
				t.ProjectName = project
			}
			t, err = s.Create(ctx, owner, t)
		}
		if err != nil {
			summary.Failed = append(summary.Failed, RowError{Row: row, Error: err.Error()})
			continue
		}
		summary.Created = append(summary.Created, t)
	}
	slog.InfoContext(ctx, "Transactions imported", log.FieldComponent, log.ComponentTransaction,
		"owner", owner,
		"created", len(summary.Created),
		"failed", len(summary.Failed))
	return summary
}

// SyncIncome keeps the income transaction of a budget line in step with its
// current amount. A line with nothing due has no income transaction.
func (s *TransactionService) SyncIncome(ctx context.Context, line core.BudgetLine, description string) error {
	existing, err := s.store.FindByBudgetLine(ctx, line.Owner, line.ID)
	found := err == nil
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("find income transaction: %w", err)
	}

	if line.CurrentAmount <= 0 {
		if found {
			return s.Delete(ctx, line.Owner, existing.ID)
		}
		return nil
	}

	if description == "" {
		description = line.Description
	}
	if found {
		existing.Category = line.Category
		existing.Description = description
		existing.IncomeAmount = line.CurrentAmount
		existing.Amount = line.Amount
		_, err = s.Update(ctx, line.Owner, existing)
		return err
	}
	_, err = s.Create(ctx, line.Owner, core.Transaction{
		ProjectName:  line.ProjectName,
		Category:     line.Category,
		Description:  description,
		IncomeAmount: line.CurrentAmount,
		Amount:       line.Amount,
		Quantity:     line.Quantity,
		Unit:         line.Unit,
		Price:        line.Rate,
		BudgetLineID: line.ID,
	})
	return err
}

func (s *TransactionService) requireProject(ctx context.Context, owner, name string) error {
	if _, err := s.store.GetProjectByName(ctx, owner, name); err != nil {
		return fmt.Errorf("get project %q: %w", name, err)
	}
	return nil
}

// adjustSpent is a separate store write; a failure leaves the transaction
// in place and is only logged.
func (s *TransactionService) adjustSpent(ctx context.Context, owner, lineID string, delta float64) {
	line, err := s.store.GetBudgetLine(ctx, owner, lineID)
	if err != nil {
		slog.WarnContext(ctx, "Failed to load budget line for spent update", log.FieldComponent, log.ComponentTransaction,
			"line_id", lineID, "error", err)
		return
	}
	line.Spent = core.Multiply(line.Spent+delta, 1)
	line.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateBudgetLine(ctx, line); err != nil {
		slog.ErrorContext(ctx, "Failed to update budget line spent", log.FieldComponent, log.ComponentTransaction,
			"line_id", lineID, "error", err)
	}
}

func (s *TransactionService) afterWrite(ctx context.Context, op amqp.SyncOp, t core.Transaction, project string) {
	if err := s.store.TouchProject(ctx, t.Owner, project, s.now().UTC()); err != nil {
		slog.WarnContext(ctx, "Failed to touch project", log.FieldComponent, log.ComponentTransaction, "project", project, "error", err)
	}
	s.publish(ctx, op, t)
	s.invalidate(ctx, t.Owner, project)
}

func (s *TransactionService) publish(ctx context.Context, op amqp.SyncOp, t core.Transaction) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "No publisher configured, skipping sync message", log.FieldComponent, log.ComponentTransaction, "id", t.ID)
		return
	}
	if err := s.publisher.PublishTransactionSync(ctx, amqp.NewTransactionSyncMessage(op, t)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message", log.FieldComponent, log.ComponentTransaction,
			"id", t.ID, "op", op, "error", err)
	}
}

func (s *TransactionService) invalidate(ctx context.Context, owner, project string) {
	if s.reports != nil {
		s.reports.Invalidate(ctx, owner, project)
	}
}

func normalize(t *core.Transaction) {
	t.ProjectName = strings.TrimSpace(t.ProjectName)
	t.Category = strings.TrimSpace(t.Category)
	t.Description = strings.TrimSpace(t.Description)
	if t.IncomeAmount == 0 && t.ExpenseAmount == 0 && t.Quantity > 0 && t.Price > 0 {
		t.ExpenseAmount = core.Multiply(t.Quantity, t.Price)
	}
}

// recordKey folds a header name for lookup: "Payment Method",
// "payment_method" and "paymentMethod" all become "paymentmethod".
func recordKey(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

func transactionFromRecord(rec ingest.Record) (core.Transaction, error) {
	fields := make(map[string]ingest.Cell, len(rec))
	for k, c := range rec {
		fields[recordKey(k)] = c
	}
	get := func(keys ...string) ingest.Cell {
		for _, k := range keys {
			if c, ok := fields[k]; ok && !c.IsBlank() {
				return c
			}
		}
		return ingest.Missing()
	}
	amount := func(field string, keys ...string) (float64, error) {
		f, err := cellAmount(get(keys...))
		if err != nil {
			return 0, fmt.Errorf("%s: %w", field, err)
		}
		return f, nil
	}

	var (
		t   core.Transaction
		err error
	)
	t.ProjectName = cellText(get("projectname", "project"))
	t.Category = cellText(get("category"))
	t.Description = cellText(get("description"))
	t.Unit = cellText(get("unit", "unitofmeasure"))
	t.PaymentMethod = cellText(get("paymentmethod", "payment"))
	if t.IncomeAmount, err = amount("income", "incomeamount", "income"); err != nil {
		return t, err
	}
	if t.ExpenseAmount, err = amount("expense", "expenseamount", "expense"); err != nil {
		return t, err
	}
	if t.Amount, err = amount("amount", "amount"); err != nil {
		return t, err
	}
	if t.Quantity, err = amount("quantity", "quantity", "qty"); err != nil {
		return t, err
	}
	if t.Price, err = amount("price", "price", "rate"); err != nil {
		return t, err
	}
	if t.Date, err = cellDate(get("date")); err != nil {
		return t, fmt.Errorf("date: %w", err)
	}
	return t, nil
}
