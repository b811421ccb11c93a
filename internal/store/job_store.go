package store

import (
	"context"
	"errors"
	"time"

	"github.com/reelforge/api/internal/model"
)

var (
	ErrJobNotFound = errors.New("job not found")
	ErrJobExists   = errors.New("job already exists")
	ErrConflict    = errors.New("job was modified concurrently")
)

// MutateFunc edits a freshly read job. It returns false when nothing changed,
// in which case no write happens. It may run more than once under contention.
type MutateFunc func(job *model.VideoJob) (bool, error)

// JobStore persists pipeline runs.
type JobStore interface {
	Create(ctx context.Context, job *model.VideoJob) error
	Get(ctx context.Context, id string) (*model.VideoJob, error)
	Update(ctx context.Context, id string, fn MutateFunc) (*model.VideoJob, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*model.VideoJob, error)
	// AcquireAdvanceLock serializes stage transitions of one job across replicas.
	// ok is false when another caller holds the lock.
	AcquireAdvanceLock(ctx context.Context, id string, ttl time.Duration) (release func(), ok bool, err error)
}
