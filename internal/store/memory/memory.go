// Package memory is a mutex-guarded in-process Store, used for local runs
// and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"boqtrack/internal/core"
	"boqtrack/internal/store"
)

type Store struct {
	mu           sync.Mutex
	projects     map[string]core.Project
	categories   map[string]core.Category
	lines        map[string]core.BudgetLine
	transactions map[string]core.Transaction
	// insertion sequence of transactions, to list oldest first on ties
	txSeq map[string]int
	seq   int
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		projects:     make(map[string]core.Project),
		categories:   make(map[string]core.Category),
		lines:        make(map[string]core.BudgetLine),
		transactions: make(map[string]core.Transaction),
		txSeq:        make(map[string]int),
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) CreateProject(_ context.Context, p core.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.projects {
		if existing.Owner == p.Owner && existing.Name == p.Name {
			return fmt.Errorf("project %q: %w", p.Name, core.ErrConflict)
		}
	}
	s.projects[p.ID] = p
	return nil
}

func (s *Store) ListProjects(_ context.Context, owner string) ([]core.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Project, 0)
	for _, p := range s.projects {
		if p.Owner == owner {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].Name < out[j].Name
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *Store) GetProjectByName(_ context.Context, owner, name string) (core.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.projects {
		if p.Owner == owner && p.Name == name {
			return p, nil
		}
	}
	return core.Project{}, fmt.Errorf("project %q: %w", name, core.ErrNotFound)
}

func (s *Store) TouchProject(_ context.Context, owner, name string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.projects {
		if p.Owner == owner && p.Name == name {
			p.UpdatedAt = at
			s.projects[id] = p
			return nil
		}
	}
	return fmt.Errorf("project %q: %w", name, core.ErrNotFound)
}

func (s *Store) CreateCategory(_ context.Context, c core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.categories {
		if existing.Owner == c.Owner && existing.Name == c.Name {
			return fmt.Errorf("category %q: %w", c.Name, core.ErrConflict)
		}
	}
	s.categories[c.ID] = c
	return nil
}

func (s *Store) ListCategories(_ context.Context, owner string) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Category, 0)
	for _, c := range s.categories {
		if c.Owner == owner {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) ReplaceBudget(_ context.Context, owner, project string, lines []core.BudgetLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, l := range s.lines {
		if l.Owner == owner && l.ProjectName == project {
			delete(s.lines, id)
		}
	}
	for _, l := range lines {
		s.lines[l.ID] = l
	}
	return nil
}

func (s *Store) ListBudget(_ context.Context, owner, project string) ([]core.BudgetLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.BudgetLine, 0)
	for _, l := range s.lines {
		if l.Owner == owner && l.ProjectName == project {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *Store) GetBudgetLine(_ context.Context, owner, id string) (core.BudgetLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lines[id]
	if !ok || l.Owner != owner {
		return core.BudgetLine{}, fmt.Errorf("budget line %s: %w", id, core.ErrNotFound)
	}
	return l, nil
}

func (s *Store) UpdateBudgetLine(_ context.Context, line core.BudgetLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.lines[line.ID]
	if !ok || existing.Owner != line.Owner {
		return fmt.Errorf("budget line %s: %w", line.ID, core.ErrNotFound)
	}
	s.lines[line.ID] = line
	return nil
}

func (s *Store) CreateTransaction(_ context.Context, t core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[t.ID]; ok {
		return fmt.Errorf("transaction %s: %w", t.ID, core.ErrConflict)
	}
	s.seq++
	s.transactions[t.ID] = t
	s.txSeq[t.ID] = s.seq
	return nil
}

func (s *Store) UpdateTransaction(_ context.Context, t core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.transactions[t.ID]
	if !ok || existing.Owner != t.Owner {
		return fmt.Errorf("transaction %s: %w", t.ID, core.ErrNotFound)
	}
	s.transactions[t.ID] = t
	return nil
}

func (s *Store) DeleteTransaction(_ context.Context, owner, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.transactions[id]
	if !ok || existing.Owner != owner {
		return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	delete(s.transactions, id)
	delete(s.txSeq, id)
	return nil
}

func (s *Store) GetTransaction(_ context.Context, owner, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[id]
	if !ok || t.Owner != owner {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	return t, nil
}

func (s *Store) FindByBudgetLine(_ context.Context, owner, lineID string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.transactions {
		if t.Owner == owner && t.BudgetLineID == lineID && t.IsIncome() {
			return t, nil
		}
	}
	return core.Transaction{}, fmt.Errorf("transaction for line %s: %w", lineID, core.ErrNotFound)
}

func (s *Store) ListTransactions(_ context.Context, owner, project string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, 0)
	for _, t := range s.transactions {
		if t.Owner == owner && (project == "" || t.ProjectName == project) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return s.txSeq[out[i].ID] < s.txSeq[out[j].ID]
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
