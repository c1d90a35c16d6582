package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"boqtrack/internal/cache"
	"boqtrack/internal/core"
	"boqtrack/internal/log"
	"boqtrack/internal/report"
	"boqtrack/internal/store"
)

// Summary is the per-project profit and loss report.
type Summary struct {
	Project    string                   `json:"projectName"`
	Categories []report.CategorySummary `json:"categories"`
	Totals     report.ProjectTotals     `json:"totals"`
	Donut      report.DonutSeries       `json:"donut"`
	Bars       report.BarSeries         `json:"bars"`
	Similar    []report.SimilarPair     `json:"similarCategories"`
}

// ReportService builds project reports. Summaries are cached per owner and
// project; concurrent loads of the same key share one store read.
type ReportService struct {
	store store.TransactionStore
	cache cache.Cache[Summary]
	group singleflight.Group

	// gen counts invalidations per key. A load only fills the cache when
	// no invalidation happened while it was reading the store.
	mu  sync.Mutex
	gen map[string]uint64
}

var _ Invalidator = (*ReportService)(nil)

// NewReportService wires the service. c may be nil to disable caching.
func NewReportService(st store.TransactionStore, c cache.Cache[Summary]) *ReportService {
	return &ReportService{store: st, cache: c, gen: make(map[string]uint64)}
}

// Records returns the raw transactions of a project, oldest first.
func (s *ReportService) Records(ctx context.Context, owner, project string) ([]core.Transaction, error) {
	project = strings.TrimSpace(project)
	if project == "" {
		return nil, core.ErrEmptyProject
	}
	list, err := s.store.ListTransactions(ctx, owner, project)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return list, nil
}

func (s *ReportService) Summary(ctx context.Context, owner, project string) (Summary, error) {
	project = strings.TrimSpace(project)
	if project == "" {
		return Summary{}, core.ErrEmptyProject
	}
	key := cacheKey(owner, project)
	if s.cache != nil {
		if sum, ok := s.cache.Get(ctx, key); ok {
			slog.DebugContext(ctx, "Report cache hit", log.FieldComponent, log.ComponentReport, "project", project)
			return sum, nil
		}
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		started := s.generation(key)
		records, err := s.Records(ctx, owner, project)
		if err != nil {
			return Summary{}, err
		}
		sum := Build(project, records)
		if s.cache != nil {
			s.mu.Lock()
			if s.gen[key] == started {
				s.cache.Set(ctx, key, sum)
			}
			s.mu.Unlock()
		}
		return sum, nil
	})
	if err != nil {
		return Summary{}, err
	}
	return v.(Summary), nil
}

// Invalidate drops the cached summary of a project. A load already in
// flight for the same key still answers its callers but does not fill the
// cache, and later callers start a fresh load.
func (s *ReportService) Invalidate(ctx context.Context, owner, project string) {
	key := cacheKey(owner, strings.TrimSpace(project))
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen[key]++
	s.group.Forget(key)
	if s.cache != nil {
		s.cache.Delete(ctx, key)
	}
}

func (s *ReportService) generation(key string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen[key]
}

// Build folds records into a Summary.
func Build(project string, records []core.Transaction) Summary {
	categories := report.Aggregate(records)
	similar := report.SimilarCategories(categories)
	if similar == nil {
		similar = []report.SimilarPair{}
	}
	return Summary{
		Project:    project,
		Categories: categories,
		Totals:     report.Totals(categories),
		Donut:      report.Donut(categories),
		Bars:       report.Bars(categories),
		Similar:    similar,
	}
}

// cacheKey length-prefixes the owner so that no owner and project pair can
// produce another pair's key.
func cacheKey(owner, project string) string {
	return strconv.Itoa(len(owner)) + ":" + owner + "/" + project
}
