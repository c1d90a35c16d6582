// Package storage is the SQL implementation of store.Store. It runs on
// SQLite (modernc.org/sqlite) or PostgreSQL (pgx stdlib driver) with the
// same queries; placeholders are rebound per dialect.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"boqtrack/internal/core"
	"boqtrack/internal/store"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

func (d Dialect) driverName() string {
	if d == DialectPostgres {
		return "pgx"
	}
	return "sqlite"
}

// timestamps are stored as fixed-width UTC text so they sort as strings
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type Repository struct {
	db      *sql.DB
	dialect Dialect
}

var _ store.Store = (*Repository)(nil)

// NewSQLiteRepository opens (creating if needed) the database file at
// dbPath and migrates it.
func NewSQLiteRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// a single writer avoids SQLITE_BUSY under concurrent requests
	db.SetMaxOpenConns(1)
	return newRepository(db, DialectSQLite, dbPath)
}

// NewPostgresRepository connects with a pgx DSN and migrates the schema.
func NewPostgresRepository(dsn string) (*Repository, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return newRepository(db, DialectPostgres, dsn)
}

func newRepository(db *sql.DB, dialect Dialect, dsn string) (*Repository, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dialect, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Repository{db: db, dialect: dialect}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping is used by the readiness probe.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// rebind turns ? placeholders into $n for PostgreSQL.
func (r *Repository) rebind(query string) string {
	if r.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *Repository) exec(ctx context.Context, e execer, query string, args ...any) (int64, error) {
	res, err := e.ExecContext(ctx, r.rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

const projectColumns = `id, owner, name, code, start_date, end_date, location, manager, description, created_at, updated_at`

func (r *Repository) CreateProject(ctx context.Context, p core.Project) error {
	if _, err := r.GetProjectByName(ctx, p.Owner, p.Name); err == nil {
		return fmt.Errorf("project %q: %w", p.Name, core.ErrConflict)
	} else if !errors.Is(err, core.ErrNotFound) {
		return err
	}
	_, err := r.exec(ctx, r.db, `INSERT INTO projects (`+projectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Owner, p.Name, p.Code, p.StartDate.String(), p.EndDate.String(),
		p.Location, p.Manager, p.Description, formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	slog.InfoContext(ctx, "Project saved", "id", p.ID, "owner", p.Owner, "name", p.Name)
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(s scanner) (core.Project, error) {
	var p core.Project
	var start, end, created, updated string
	if err := s.Scan(&p.ID, &p.Owner, &p.Name, &p.Code, &start, &end, &p.Location, &p.Manager, &p.Description, &created, &updated); err != nil {
		return core.Project{}, err
	}
	var err error
	if p.StartDate, err = core.ParseDate(start); err != nil {
		return core.Project{}, fmt.Errorf("project %s start date: %w", p.ID, err)
	}
	if p.EndDate, err = core.ParseDate(end); err != nil {
		return core.Project{}, fmt.Errorf("project %s end date: %w", p.ID, err)
	}
	if p.CreatedAt, err = parseTime(created); err != nil {
		return core.Project{}, fmt.Errorf("project %s created_at: %w", p.ID, err)
	}
	if p.UpdatedAt, err = parseTime(updated); err != nil {
		return core.Project{}, fmt.Errorf("project %s updated_at: %w", p.ID, err)
	}
	return p, nil
}

func (r *Repository) ListProjects(ctx context.Context, owner string) ([]core.Project, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(`SELECT `+projectColumns+` FROM projects WHERE owner = ? ORDER BY updated_at DESC, name`), owner)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()
	out := make([]core.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) GetProjectByName(ctx context.Context, owner, name string) (core.Project, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(`SELECT `+projectColumns+` FROM projects WHERE owner = ? AND name = ?`), owner, name)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Project{}, fmt.Errorf("project %q: %w", name, core.ErrNotFound)
	}
	if err != nil {
		return core.Project{}, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

func (r *Repository) TouchProject(ctx context.Context, owner, name string, at time.Time) error {
	n, err := r.exec(ctx, r.db, `UPDATE projects SET updated_at = ? WHERE owner = ? AND name = ?`, formatTime(at), owner, name)
	if err != nil {
		return fmt.Errorf("touch project: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("project %q: %w", name, core.ErrNotFound)
	}
	return nil
}

func (r *Repository) CreateCategory(ctx context.Context, c core.Category) error {
	var exists int
	err := r.db.QueryRowContext(ctx, r.rebind(`SELECT COUNT(*) FROM categories WHERE owner = ? AND name = ?`), c.Owner, c.Name).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check category: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("category %q: %w", c.Name, core.ErrConflict)
	}
	if _, err := r.exec(ctx, r.db, `INSERT INTO categories (id, owner, name, created_at) VALUES (?, ?, ?, ?)`,
		c.ID, c.Owner, c.Name, formatTime(c.CreatedAt)); err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

func (r *Repository) ListCategories(ctx context.Context, owner string) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(`SELECT id, owner, name, created_at FROM categories WHERE owner = ? ORDER BY name`), owner)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()
	out := make([]core.Category, 0)
	for rows.Next() {
		var c core.Category
		var created string
		if err := rows.Scan(&c.ID, &c.Owner, &c.Name, &created); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		if c.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("category %s created_at: %w", c.ID, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const lineColumns = `id, owner, project_name, import_id, position, code, description, quantity, unit, rate, amount, classification, progress, category, current_amount, spent, created_at, updated_at`

func scanLine(s scanner) (core.BudgetLine, error) {
	var l core.BudgetLine
	var created, updated string
	if err := s.Scan(&l.ID, &l.Owner, &l.ProjectName, &l.ImportID, &l.Position, &l.Code, &l.Description,
		&l.Quantity, &l.Unit, &l.Rate, &l.Amount, &l.Classification, &l.Progress, &l.Category,
		&l.CurrentAmount, &l.Spent, &created, &updated); err != nil {
		return core.BudgetLine{}, err
	}
	var err error
	if l.CreatedAt, err = parseTime(created); err != nil {
		return core.BudgetLine{}, fmt.Errorf("budget line %s created_at: %w", l.ID, err)
	}
	if l.UpdatedAt, err = parseTime(updated); err != nil {
		return core.BudgetLine{}, fmt.Errorf("budget line %s updated_at: %w", l.ID, err)
	}
	return l, nil
}

func (r *Repository) ReplaceBudget(ctx context.Context, owner, project string, lines []core.BudgetLine) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace budget: %w", err)
	}
	defer tx.Rollback()

	if _, err := r.exec(ctx, tx, `DELETE FROM budget_lines WHERE owner = ? AND project_name = ?`, owner, project); err != nil {
		return fmt.Errorf("delete budget lines: %w", err)
	}
	insert := `INSERT INTO budget_lines (` + lineColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	for _, l := range lines {
		if _, err := r.exec(ctx, tx, insert,
			l.ID, l.Owner, l.ProjectName, l.ImportID, l.Position, l.Code, l.Description,
			l.Quantity, l.Unit, l.Rate, l.Amount, l.Classification, l.Progress, l.Category,
			l.CurrentAmount, l.Spent, formatTime(l.CreatedAt), formatTime(l.UpdatedAt)); err != nil {
			return fmt.Errorf("insert budget line %d: %w", l.Position, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace budget: %w", err)
	}
	slog.InfoContext(ctx, "Budget replaced", "owner", owner, "project", project, "lines", len(lines))
	return nil
}

func (r *Repository) ListBudget(ctx context.Context, owner, project string) ([]core.BudgetLine, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(`SELECT `+lineColumns+` FROM budget_lines WHERE owner = ? AND project_name = ? ORDER BY position`), owner, project)
	if err != nil {
		return nil, fmt.Errorf("list budget: %w", err)
	}
	defer rows.Close()
	out := make([]core.BudgetLine, 0)
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget line: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *Repository) GetBudgetLine(ctx context.Context, owner, id string) (core.BudgetLine, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(`SELECT `+lineColumns+` FROM budget_lines WHERE owner = ? AND id = ?`), owner, id)
	l, err := scanLine(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.BudgetLine{}, fmt.Errorf("budget line %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.BudgetLine{}, fmt.Errorf("get budget line: %w", err)
	}
	return l, nil
}

func (r *Repository) UpdateBudgetLine(ctx context.Context, l core.BudgetLine) error {
	n, err := r.exec(ctx, r.db, `UPDATE budget_lines SET progress = ?, category = ?, current_amount = ?, spent = ?, updated_at = ? WHERE owner = ? AND id = ?`,
		l.Progress, l.Category, l.CurrentAmount, l.Spent, formatTime(l.UpdatedAt), l.Owner, l.ID)
	if err != nil {
		return fmt.Errorf("update budget line: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("budget line %s: %w", l.ID, core.ErrNotFound)
	}
	return nil
}

const txColumns = `id, owner, project_name, category, description, income_amount, expense_amount, amount, quantity, unit, price, payment_method, tx_date, budget_line_id, created_at, updated_at`

func scanTransaction(s scanner) (core.Transaction, error) {
	var t core.Transaction
	var date, created, updated string
	if err := s.Scan(&t.ID, &t.Owner, &t.ProjectName, &t.Category, &t.Description, &t.IncomeAmount,
		&t.ExpenseAmount, &t.Amount, &t.Quantity, &t.Unit, &t.Price, &t.PaymentMethod, &date,
		&t.BudgetLineID, &created, &updated); err != nil {
		return core.Transaction{}, err
	}
	var err error
	if t.Date, err = core.ParseDate(date); err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s date: %w", t.ID, err)
	}
	if t.CreatedAt, err = parseTime(created); err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s created_at: %w", t.ID, err)
	}
	if t.UpdatedAt, err = parseTime(updated); err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s updated_at: %w", t.ID, err)
	}
	return t, nil
}

func (r *Repository) CreateTransaction(ctx context.Context, t core.Transaction) error {
	_, err := r.exec(ctx, r.db, `INSERT INTO transactions (`+txColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Owner, t.ProjectName, t.Category, t.Description, t.IncomeAmount, t.ExpenseAmount,
		t.Amount, t.Quantity, t.Unit, t.Price, t.PaymentMethod, t.Date.String(), t.BudgetLineID,
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	slog.InfoContext(ctx, "Transaction saved",
		"id", t.ID,
		"project", t.ProjectName,
		"category", t.Category,
		"income", t.IncomeAmount,
		"expense", t.ExpenseAmount)
	return nil
}

func (r *Repository) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	n, err := r.exec(ctx, r.db, `UPDATE transactions SET project_name = ?, category = ?, description = ?, income_amount = ?, expense_amount = ?, amount = ?, quantity = ?, unit = ?, price = ?, payment_method = ?, tx_date = ?, budget_line_id = ?, updated_at = ? WHERE owner = ? AND id = ?`,
		t.ProjectName, t.Category, t.Description, t.IncomeAmount, t.ExpenseAmount, t.Amount,
		t.Quantity, t.Unit, t.Price, t.PaymentMethod, t.Date.String(), t.BudgetLineID,
		formatTime(t.UpdatedAt), t.Owner, t.ID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %s: %w", t.ID, core.ErrNotFound)
	}
	return nil
}

func (r *Repository) DeleteTransaction(ctx context.Context, owner, id string) error {
	n, err := r.exec(ctx, r.db, `DELETE FROM transactions WHERE owner = ? AND id = ?`, owner, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (r *Repository) GetTransaction(ctx context.Context, owner, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(`SELECT `+txColumns+` FROM transactions WHERE owner = ? AND id = ?`), owner, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

func (r *Repository) FindByBudgetLine(ctx context.Context, owner, lineID string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(`SELECT `+txColumns+` FROM transactions WHERE owner = ? AND budget_line_id = ? AND income_amount > 0 ORDER BY created_at LIMIT 1`), owner, lineID)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction for line %s: %w", lineID, core.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("find transaction by line: %w", err)
	}
	return t, nil
}

func (r *Repository) ListTransactions(ctx context.Context, owner, project string) ([]core.Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions WHERE owner = ?`
	args := []any{owner}
	if project != "" {
		query += ` AND project_name = ?`
		args = append(args, project)
	}
	query += ` ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()
	out := make([]core.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
