// Package store persists enrichment job records.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/cadastre-cli/internal/config"
	"github.com/sells-group/cadastre-cli/internal/db"
	"github.com/sells-group/cadastre-cli/internal/model"
)

// ErrJobNotFound is matched (via errors.Is) by lookups of unknown job ids.
var ErrJobNotFound = errors.New("job not found")

// JobFilter specifies criteria for listing jobs.
type JobFilter struct {
	Status       model.JobStatus `json:"status,omitempty"`
	CreatedAfter time.Time       `json:"created_after,omitempty"`
	Limit        int             `json:"limit,omitempty"`
	Offset       int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for job records.
type Store interface {
	CreateJob(ctx context.Context, req model.JobRequest) (*model.Job, error)
	MarkRunning(ctx context.Context, id string) error
	CompleteJob(ctx context.Context, id string, result *model.JobResult) error
	FailJob(ctx context.Context, id string, reason string) error
	GetJob(ctx context.Context, id string) (*model.Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// IsNotFound reports whether err marks an unknown job.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrJobNotFound)
}

const defaultListLimit = 100

// Open returns the Store selected by cfg.Driver. Migrations are not run.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		st, err := NewSQLite(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "postgres":
		st, err := NewPostgres(ctx, cfg.DatabaseURL, &db.PoolConfig{
			MaxConns: cfg.MaxConns,
			MinConns: cfg.MinConns,
		})
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
