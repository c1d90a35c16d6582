package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"boqtrack/internal/archive"
	"boqtrack/internal/core"
	"boqtrack/internal/format"
	"boqtrack/internal/ingest"
	"boqtrack/internal/log"
	"boqtrack/internal/store"
)

// DefaultCategory is used for data lines that appear before any category
// header.
const DefaultCategory = "General"

// BudgetService imports BOQ sheets as project budgets and books progress
// on budget lines as income.
type BudgetService struct {
	store        store.Store
	archive      archive.Archive
	transactions *TransactionService
	formatter    *format.Formatter
	now          func() time.Time
}

// NewBudgetService wires the service. arch may be nil; formatter defaults to
// English.
func NewBudgetService(st store.Store, arch archive.Archive, transactions *TransactionService, formatter *format.Formatter) *BudgetService {
	if formatter == nil {
		formatter = format.NewFromLocale("en")
	}
	return &BudgetService{
		store:        st,
		archive:      arch,
		transactions: transactions,
		formatter:    formatter,
		now:          time.Now,
	}
}

// PreviewLine is one ingested BOQ row ready for display.
type PreviewLine struct {
	Position       int    `json:"position"`
	Classification string `json:"classification"`
	Editable       bool   `json:"editable"`
	Code           string `json:"code"`
	Description    string `json:"description"`
	Quantity       string `json:"quantity"`
	UnitOfMeasure  string `json:"unitOfMeasure"`
	Rate           string `json:"rate"`
	Amount         string `json:"amount"`
}

// Preview ingests rows positionally and formats them without storing
// anything.
func (s *BudgetService) Preview(rows []ingest.Row) []PreviewLine {
	lines := ingest.BudgetRows(rows)
	out := make([]PreviewLine, 0, len(lines))
	for i, r := range lines {
		cls := ingest.Classify(r)
		out = append(out, PreviewLine{
			Position:       i,
			Classification: cls.String(),
			Editable:       cls.Editable(),
			Code:           r.Code.String(),
			Description:    r.Description.String(),
			Quantity:       s.formatter.CurrencyCell(r.Quantity),
			UnitOfMeasure:  r.UnitOfMeasure.String(),
			Rate:           s.formatter.CurrencyCell(r.Rate),
			Amount:         s.formatter.CurrencyCell(r.Amount),
		})
	}
	return out
}

type ImportRequest struct {
	Owner    string
	Project  string
	Progress float64
	FileName string
	Rows     []ingest.BudgetLineRow
	// Raw is the uploaded file, archived when present.
	Raw []byte
}

type ImportResult struct {
	ImportID        string `json:"importId"`
	Lines           int    `json:"lines"`
	DataRows        int    `json:"dataRows"`
	CategoryHeaders int    `json:"categoryHeaders"`
	Totals          int    `json:"totals"`
	Invalid         int    `json:"invalid"`
	Archived        string `json:"archived,omitempty"`
}

// Import stores rows as the project's budget, replacing the previous one.
// Income transactions of the replaced lines are removed and data lines with
// an amount due get a fresh one.
func (s *BudgetService) Import(ctx context.Context, req ImportRequest) (ImportResult, error) {
	req.Project = strings.TrimSpace(req.Project)
	if req.Project == "" {
		return ImportResult{}, core.ErrEmptyProject
	}
	if err := core.ValidateProgress(req.Progress); err != nil {
		return ImportResult{}, err
	}
	if _, err := s.store.GetProjectByName(ctx, req.Owner, req.Project); err != nil {
		return ImportResult{}, fmt.Errorf("get project %q: %w", req.Project, err)
	}

	rows := make([]ingest.BudgetLineRow, 0, len(req.Rows))
	for _, r := range req.Rows {
		if !ingest.IsEmpty(r) {
			rows = append(rows, r)
		}
	}

	result := ImportResult{ImportID: uuid.NewString(), Lines: len(rows)}
	now := s.now().UTC()
	lines := make([]core.BudgetLine, 0, len(rows))
	category := DefaultCategory
	for i, r := range rows {
		cls := ingest.Classify(r)
		line := core.BudgetLine{
			ID:             uuid.NewString(),
			Owner:          req.Owner,
			ProjectName:    req.Project,
			ImportID:       result.ImportID,
			Position:       i,
			Code:           cellText(r.Code),
			Description:    cellText(r.Description),
			Quantity:       lenientAmount(r.Quantity),
			Unit:           cellText(r.UnitOfMeasure),
			Rate:           lenientAmount(r.Rate),
			Amount:         lenientAmount(r.Amount),
			Classification: cls.String(),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		switch cls {
		case ingest.CategoryHeader:
			result.CategoryHeaders++
			if line.Description != "" {
				category = line.Description
			}
			line.Category = category
		case ingest.TotalRow:
			result.Totals++
		case ingest.InvalidRow:
			result.Invalid++
		case ingest.DataRow:
			result.DataRows++
			line.Category = category
			line.Progress = req.Progress
			line.CurrentAmount = core.AmountDue(line.Amount, req.Progress)
		}
		lines = append(lines, line)
	}

	if err := s.dropIncome(ctx, req.Owner, req.Project); err != nil {
		return ImportResult{}, err
	}
	if err := s.store.ReplaceBudget(ctx, req.Owner, req.Project, lines); err != nil {
		return ImportResult{}, fmt.Errorf("replace budget: %w", err)
	}
	for _, line := range lines {
		if line.CurrentAmount <= 0 {
			continue
		}
		if err := s.transactions.SyncIncome(ctx, line, ""); err != nil {
			return ImportResult{}, fmt.Errorf("book income for line %d: %w", line.Position, err)
		}
	}
	if err := s.store.TouchProject(ctx, req.Owner, req.Project, now); err != nil {
		slog.WarnContext(ctx, "Failed to touch project", log.FieldComponent, log.ComponentBudget, "project", req.Project, "error", err)
	}

	result.Archived = s.archiveUpload(ctx, req, result.ImportID)

	slog.InfoContext(ctx, "Budget imported", log.FieldComponent, log.ComponentBudget,
		"owner", req.Owner,
		"project", req.Project,
		"import_id", result.ImportID,
		"lines", result.Lines,
		"data_rows", result.DataRows)
	return result, nil
}

// dropIncome removes the income transactions booked against the project's
// current lines.
func (s *BudgetService) dropIncome(ctx context.Context, owner, project string) error {
	old, err := s.store.ListBudget(ctx, owner, project)
	if err != nil {
		return fmt.Errorf("list budget: %w", err)
	}
	for _, line := range old {
		t, err := s.store.FindByBudgetLine(ctx, owner, line.ID)
		if errors.Is(err, core.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("find income transaction: %w", err)
		}
		if err := s.transactions.Delete(ctx, owner, t.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *BudgetService) archiveUpload(ctx context.Context, req ImportRequest, importID string) string {
	if s.archive == nil || len(req.Raw) == 0 {
		return ""
	}
	key := archive.Key(req.Owner, req.Project, importID, req.FileName)
	location, err := s.archive.Put(ctx, key, req.Raw)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to archive upload", log.FieldComponent, log.ComponentBudget,
			"key", key, "error", err)
		return ""
	}
	return location
}

// List returns the project's budget lines by position.
func (s *BudgetService) List(ctx context.Context, owner, project string) ([]core.BudgetLine, error) {
	project = strings.TrimSpace(project)
	if project == "" {
		return nil, core.ErrEmptyProject
	}
	lines, err := s.store.ListBudget(ctx, owner, project)
	if err != nil {
		return nil, fmt.Errorf("list budget: %w", err)
	}
	return lines, nil
}

type UpdateIncomeRequest struct {
	LineID      string  `json:"id"`
	Progress    float64 `json:"progress"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
}

// UpdateIncome records progress on a data line and books the amount due as
// the line's income transaction.
func (s *BudgetService) UpdateIncome(ctx context.Context, owner string, req UpdateIncomeRequest) (core.BudgetLine, error) {
	if err := core.ValidateProgress(req.Progress); err != nil {
		return core.BudgetLine{}, err
	}
	line, err := s.store.GetBudgetLine(ctx, owner, req.LineID)
	if err != nil {
		return core.BudgetLine{}, fmt.Errorf("get budget line: %w", err)
	}
	if !ingest.ParseClassification(line.Classification).Editable() {
		return core.BudgetLine{}, core.ErrNotEditable
	}

	if c := strings.TrimSpace(req.Category); c != "" {
		line.Category = c
	}
	if line.Category == "" {
		line.Category = DefaultCategory
	}
	line.Progress = req.Progress
	line.CurrentAmount = core.AmountDue(line.Amount, req.Progress)
	line.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateBudgetLine(ctx, line); err != nil {
		return core.BudgetLine{}, fmt.Errorf("update budget line: %w", err)
	}

	if err := s.transactions.SyncIncome(ctx, line, strings.TrimSpace(req.Description)); err != nil {
		return core.BudgetLine{}, fmt.Errorf("sync income: %w", err)
	}
	return line, nil
}
