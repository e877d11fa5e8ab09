// Package store defines persistence for conversion runs.
// Implementations must provide identical semantics across backends:
// the sqlstore package for PostgreSQL and SQLite, Memory for tests and
// runs that need no database.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Memory is an in-process RunStore.
type Memory struct {
	mu   sync.RWMutex
	runs map[string]RunRecord
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory { return &Memory{runs: map[string]RunRecord{}} }

func (m *Memory) SaveRun(_ context.Context, r RunRecord) error {
	if r.ID == "" {
		return fmt.Errorf("run id is empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[r.ID]; ok {
		return fmt.Errorf("run %s already exists", r.ID)
	}
	m.runs[r.ID] = copyRecord(r)
	return nil
}

func (m *Memory) GetRun(_ context.Context, id string) (RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runs[id]
	if !ok {
		return RunRecord{}, ErrNotFound
	}
	return copyRecord(r), nil
}

func (m *Memory) ListRuns(_ context.Context, module string, limit int) ([]RunRecord, error) {
	m.mu.RLock()
	out := make([]RunRecord, 0, len(m.runs))
	for _, r := range m.runs {
		if module == "" || r.Module == module {
			out = append(out, copyRecord(r))
		}
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }

func copyRecord(r RunRecord) RunRecord {
	if r.Report != nil {
		r.Report = append(json.RawMessage(nil), r.Report...)
	}
	return r
}
