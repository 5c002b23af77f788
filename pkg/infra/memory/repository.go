package memory

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagship/pkg/domain/model"
	"github.com/m-mizutani/tagship/pkg/domain/types"
)

type lock struct {
	runID     types.RunID
	expiresAt time.Time
}

// Repository keeps runs and locks in process memory
type Repository struct {
	mu    sync.Mutex
	runs  map[types.RunID]*model.Run
	locks map[string]lock
	now   func() time.Time
}

// New creates an empty Repository
func New() *Repository {
	return &Repository{
		runs:  make(map[types.RunID]*model.Run),
		locks: make(map[string]lock),
		now:   time.Now,
	}
}

// PutRun stores a copy of run
func (r *Repository) PutRun(ctx context.Context, run *model.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = copyRun(run)
	return nil
}

// GetRun returns a copy of the stored run
func (r *Repository) GetRun(ctx context.Context, id types.RunID) (*model.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[id]
	if !ok {
		return nil, goerr.New("run not found", goerr.V("run_id", id), goerr.T(types.ErrTagNotFound))
	}
	return copyRun(run), nil
}

// AcquireLock takes the tag lock unless another run holds an unexpired one
func (r *Repository) AcquireLock(ctx context.Context, tag string, runID types.RunID, ttl time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if current, ok := r.locks[tag]; ok && current.runID != runID && now.Before(current.expiresAt) {
		return false, nil
	}

	r.locks[tag] = lock{runID: runID, expiresAt: now.Add(ttl)}
	return true, nil
}

// ReleaseLock drops the tag lock if runID holds it
func (r *Repository) ReleaseLock(ctx context.Context, tag string, runID types.RunID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.locks[tag]; ok && current.runID == runID {
		delete(r.locks, tag)
	}
	return nil
}

func copyRun(run *model.Run) *model.Run {
	c := *run
	c.Steps = append([]model.StepRecord(nil), run.Steps...)
	c.Artifacts = append([]string(nil), run.Artifacts...)
	return &c
}
