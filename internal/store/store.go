package store

import (
	"context"

	"github.com/me/ossched/pkg/model"
)

// Store defines the persistence layer for simulation traces.
type Store interface {
	// Recording, called by the simulator while a run is in progress.
	BeginRun(ctx context.Context, run *model.Run) error
	RecordDispatch(ctx context.Context, runID string, d model.Dispatch) error
	FinishRun(ctx context.Context, run *model.Run) error

	// Queries
	GetRun(ctx context.Context, id string) (*model.Run, error)
	ListRuns(ctx context.Context, opts model.ListOptions) ([]*model.Run, int, error)
	ListDispatches(ctx context.Context, runID string) ([]model.Dispatch, error)
	DeleteRun(ctx context.Context, id string) error

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
