package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned by GetRun for unknown run ids.
var ErrNotFound = errors.New("run not found")

// RunRecord is the persisted summary of one conversion run.
// Report holds the full JSON report.
type RunRecord struct {
	ID             string
	Module         string
	Source         string
	Provider       string
	CreatedAt      time.Time
	DurationMS     int64
	Classes        int
	Methods        int
	Functions      int
	Tools          int
	Resources      int
	FallbackGroups int
	Report         json.RawMessage
}

// RunStore persists conversion runs.
type RunStore interface {
	// SaveRun stores r. Saving an existing id fails.
	SaveRun(ctx context.Context, r RunRecord) error
	GetRun(ctx context.Context, id string) (RunRecord, error)
	// ListRuns returns runs newest first. An empty module lists all modules;
	// limit <= 0 means no limit.
	ListRuns(ctx context.Context, module string, limit int) ([]RunRecord, error)
	Close() error
}
