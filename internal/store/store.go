// Package store persists analysis runs, learned rule sets and anomaly
// reports behind a backend-neutral interface.
package store

import (
	"context"

	"github.com/rigsight/wellscan-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status  model.RunStatus `json:"status,omitempty"`
	Listing string          `json:"listing,omitempty"`
	Limit   int             `json:"limit,omitempty"`
	Offset  int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for analysis runs. Rule sets
// are replaced wholesale per source; individual rules are immutable
// once written.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, listing string) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, result *model.RunResult) error
	FailRun(ctx context.Context, runID string, runErr error) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Rule sets
	ReplaceRules(ctx context.Context, source model.Source, rules []model.Rule) error
	LoadRules(ctx context.Context) (map[model.Source][]model.Rule, error)

	// Anomalies
	SaveAnomalies(ctx context.Context, runID string, anomalies []model.AnomalyRecord) error
	ListAnomalies(ctx context.Context, runID string) ([]model.AnomalyRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
