// Package store persists jobs, per-vendor results, review items, and the
// taxonomy snapshot behind a driver-neutral interface.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/classify-cli/internal/config"
	"github.com/sells-group/classify-cli/internal/model"
	"github.com/sells-group/classify-cli/internal/taxonomy"
)

// JobFilter specifies criteria for listing jobs.
type JobFilter struct {
	Status model.JobStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for classification jobs.
type Store interface {
	// Jobs
	CreateJob(ctx context.Context, name string, targetLevel, vendorCount int) (*model.Job, error)
	UpdateJobStatus(ctx context.Context, jobID string, status model.JobStatus) error
	UpdateJobProgress(ctx context.Context, jobID string, progress float64, stage string) error
	GetJob(ctx context.Context, jobID string) (*model.Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error)

	// Vendors, as submitted with the job. Re-classification reads these
	// back so the model sees the original attributes, not just the name.
	SaveVendors(ctx context.Context, jobID string, vendors []model.Vendor) error
	GetVendors(ctx context.Context, jobID string) ([]model.Vendor, error)

	// Results and stats
	SaveResults(ctx context.Context, jobID string, results model.ResultSet) error
	GetResults(ctx context.Context, jobID string) (model.ResultSet, error)
	SaveStats(ctx context.Context, jobID string, stats model.StatsSnapshot) error
	GetStats(ctx context.Context, jobID string) (*model.StatsSnapshot, error)

	// Reviews
	SaveReviews(ctx context.Context, jobID string, items []model.ReviewItem) error
	ListReviews(ctx context.Context, jobID string) ([]model.ReviewItem, error)

	// Taxonomy snapshot
	SaveTaxonomy(ctx context.Context, recs []taxonomy.Record) error
	LoadTaxonomy(ctx context.Context) (*taxonomy.Tree, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// New opens the store named by cfg.Driver.
func New(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return NewSQLite(cfg.DatabaseURL)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
