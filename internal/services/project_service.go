package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"boqtrack/internal/core"
	"boqtrack/internal/store"
)

// ProjectService manages projects and categories of an owner.
type ProjectService struct {
	store store.Store
	now   func() time.Time
}

func NewProjectService(st store.Store) *ProjectService {
	return &ProjectService{store: st, now: time.Now}
}

func (s *ProjectService) CreateProject(ctx context.Context, owner string, p core.Project) (core.Project, error) {
	p.Owner = owner
	p.Name = strings.TrimSpace(p.Name)
	if err := p.Validate(); err != nil {
		return core.Project{}, err
	}
	now := s.now().UTC()
	p.ID = uuid.NewString()
	p.CreatedAt = now
	p.UpdatedAt = now
	if err := s.store.CreateProject(ctx, p); err != nil {
		return core.Project{}, fmt.Errorf("create project: %w", err)
	}
	return p, nil
}

func (s *ProjectService) ListProjects(ctx context.Context, owner string) ([]core.Project, error) {
	list, err := s.store.ListProjects(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return list, nil
}

func (s *ProjectService) CreateCategory(ctx context.Context, owner, name string) (core.Category, error) {
	c := core.Category{Owner: owner, Name: strings.TrimSpace(name)}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	c.ID = uuid.NewString()
	c.CreatedAt = s.now().UTC()
	if err := s.store.CreateCategory(ctx, c); err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

func (s *ProjectService) ListCategories(ctx context.Context, owner string) ([]core.Category, error) {
	list, err := s.store.ListCategories(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return list, nil
}
