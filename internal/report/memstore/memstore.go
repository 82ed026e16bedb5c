// Package memstore provides an in-memory implementation of report.Store.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kawacukennedy/civicsense/internal/report"
)

// Store holds reports and activities in memory. Suitable for dev/testing.
type Store struct {
	mu         sync.RWMutex
	reports    map[string]*report.Report
	activities map[string][]*report.Activity // report ID -> log, append order
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		reports:    make(map[string]*report.Report),
		activities: make(map[string][]*report.Activity),
	}
}

// Create stores a new report together with its first activity record.
func (s *Store) Create(_ context.Context, r *report.Report, a *report.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reports[r.ID]; ok {
		return fmt.Errorf("report %s already exists", r.ID)
	}
	cp := *r
	s.reports[r.ID] = &cp
	ac := *a
	s.activities[r.ID] = append(s.activities[r.ID], &ac)
	return nil
}

// Get retrieves a report by its ID. Returns a copy.
func (s *Store) Get(_ context.Context, id string) (*report.Report, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[id]
	if !ok {
		return nil, false, nil
	}
	cp := *r
	return &cp, true, nil
}

// Query filters and orders reports by priority score descending, then
// creation time descending. Returns copies.
func (s *Store) Query(_ context.Context, f report.Filter) ([]*report.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*report.Report
	for _, r := range s.reports {
		if f.HasBBox && (r.Lat < f.MinLat || r.Lat > f.MaxLat || r.Lng < f.MinLng || r.Lng > f.MaxLng) {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if r.PriorityScore < f.MinPriority {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].PriorityScore != out[j].PriorityScore {
			return out[i].PriorityScore > out[j].PriorityScore
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// Commit atomically updates a report and appends its activity record.
// The stored version must match r.Version; on success both are written
// and the version is bumped. A mismatch means a concurrent transition
// won and surfaces as report.ErrPreconditionFailed.
func (s *Store) Commit(_ context.Context, r *report.Report, a *report.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.reports[r.ID]
	if !ok {
		return report.ErrNotFound
	}
	if stored.Version != r.Version {
		return fmt.Errorf("%w: report %s modified concurrently", report.ErrPreconditionFailed, r.ID)
	}

	r.Version++
	cp := *r
	s.reports[r.ID] = &cp
	ac := *a
	s.activities[r.ID] = append(s.activities[r.ID], &ac)
	return nil
}

// Activities returns the audit log for a report, newest first. Returns copies.
func (s *Store) Activities(_ context.Context, reportID string) ([]*report.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.activities[reportID]
	out := make([]*report.Activity, 0, len(log))
	for i := len(log) - 1; i >= 0; i-- {
		cp := *log[i]
		out = append(out, &cp)
	}
	return out, nil
}
