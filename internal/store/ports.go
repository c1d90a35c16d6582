// Package store defines the persistence ports of the service. Every method
// is scoped by owner; an entity of another owner is reported as
// core.ErrNotFound.
package store

import (
	"context"
	"time"

	"boqtrack/internal/core"
)

type (
	ProjectStore interface {
		CreateProject(ctx context.Context, p core.Project) error
		// ListProjects returns the owner's projects, most recently updated first.
		ListProjects(ctx context.Context, owner string) ([]core.Project, error)
		GetProjectByName(ctx context.Context, owner, name string) (core.Project, error)
		TouchProject(ctx context.Context, owner, name string, at time.Time) error
	}

	CategoryStore interface {
		CreateCategory(ctx context.Context, c core.Category) error
		// ListCategories returns categories sorted by name.
		ListCategories(ctx context.Context, owner string) ([]core.Category, error)
	}

	BudgetStore interface {
		// ReplaceBudget drops the project's previous lines and stores lines.
		ReplaceBudget(ctx context.Context, owner, project string, lines []core.BudgetLine) error
		// ListBudget returns the project's lines by position.
		ListBudget(ctx context.Context, owner, project string) ([]core.BudgetLine, error)
		GetBudgetLine(ctx context.Context, owner, id string) (core.BudgetLine, error)
		UpdateBudgetLine(ctx context.Context, line core.BudgetLine) error
	}

	TransactionStore interface {
		CreateTransaction(ctx context.Context, t core.Transaction) error
		UpdateTransaction(ctx context.Context, t core.Transaction) error
		DeleteTransaction(ctx context.Context, owner, id string) error
		GetTransaction(ctx context.Context, owner, id string) (core.Transaction, error)
		// FindByBudgetLine returns the transaction linked to a budget line.
		FindByBudgetLine(ctx context.Context, owner, lineID string) (core.Transaction, error)
		// ListTransactions returns transactions oldest first; an empty
		// project lists every project of the owner.
		ListTransactions(ctx context.Context, owner, project string) ([]core.Transaction, error)
	}

	Store interface {
		ProjectStore
		CategoryStore
		BudgetStore
		TransactionStore
		Close() error
	}
)
