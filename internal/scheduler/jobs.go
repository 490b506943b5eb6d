package scheduler

import (
	"context"
	"fmt"

	"immo-backoffice/internal/cleanup"
	"immo-backoffice/internal/dashboard"
	"immo-backoffice/internal/search"
)

// Job names
const (
	JobReindex   = "search_reindex"
	JobDashboard = "dashboard_recompute"
	JobCleanup   = "snapshot_cleanup"
)

// Reindexer rebuilds the property search index
type Reindexer interface {
	Reindex(ctx context.Context, src search.PropertySource) (int, error)
}

// Recomputer recomputes the dashboard counters
type Recomputer interface {
	Recompute(ctx context.Context) (*dashboard.Stats, error)
}

// Pruner deletes expired match snapshots
type Pruner interface {
	PhysicallyDelete(ctx context.Context, cfg cleanup.CleanupConfig) (*cleanup.CleanupResult, error)
}

// ReindexJob rebuilds the search index from src
func ReindexJob(idx Reindexer, src search.PropertySource) JobFunc {
	return func(ctx context.Context) error {
		if _, err := idx.Reindex(ctx, src); err != nil {
			return fmt.Errorf("reindex: %w", err)
		}
		return nil
	}
}

// DashboardJob recomputes the dashboard counters
func DashboardJob(d Recomputer) JobFunc {
	return func(ctx context.Context) error {
		_, err := d.Recompute(ctx)
		return err
	}
}

// CleanupJob prunes expired snapshots. Partial failures are reported as an error.
func CleanupJob(p Pruner, cfg cleanup.CleanupConfig) JobFunc {
	return func(ctx context.Context) error {
		res, err := p.PhysicallyDelete(ctx, cfg)
		if err != nil {
			return err
		}
		if res.ErrorCount > 0 {
			return fmt.Errorf("cleanup finished with %d errors", res.ErrorCount)
		}
		return nil
	}
}
