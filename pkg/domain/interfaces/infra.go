package interfaces

import (
	"context"
	"time"

	"github.com/m-mizutani/tagship/pkg/domain/model"
	"github.com/m-mizutani/tagship/pkg/domain/types"
)

// SourceFetcher materializes a repository revision on local disk
type SourceFetcher interface {
	Checkout(ctx context.Context, req *model.CheckoutRequest) (*model.Checkout, error)
}

// CommandRunner executes external tools. A non-zero exit is reported in the
// result, not as an error.
type CommandRunner interface {
	Run(ctx context.Context, cmd *model.Command) (*model.CommandResult, error)
}

// Registry reads distribution files and uploads them to a package index
type Registry interface {
	// Inspect reads the metadata and digests of a distribution file
	Inspect(ctx context.Context, path string) (*model.Artifact, error)

	// Upload sends one artifact. It is never retried.
	Upload(ctx context.Context, artifact *model.Artifact) error
}

// RunRepository stores run records and the per-tag run lock
type RunRepository interface {
	PutRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, id types.RunID) (*model.Run, error)

	// AcquireLock takes the lock for tag on behalf of runID. It returns false
	// when another run holds an unexpired lock.
	AcquireLock(ctx context.Context, tag string, runID types.RunID, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, tag string, runID types.RunID) error
}

// StatusReporter publishes the run state on the tagged commit
type StatusReporter interface {
	ReportStatus(ctx context.Context, run *model.Run) error
}

// Archiver keeps a copy of published artifacts
type Archiver interface {
	Archive(ctx context.Context, run *model.Run, artifacts []*model.Artifact) error
}

// Notifier announces finished runs
type Notifier interface {
	NotifyRun(ctx context.Context, run *model.Run) error
}
