package usecase

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagship/pkg/domain/interfaces"
	"github.com/m-mizutani/tagship/pkg/domain/model"
	"github.com/m-mizutani/tagship/pkg/domain/types"
)

// DefaultLockTTL bounds how long a crashed run can block its tag
const DefaultLockTTL = time.Hour

// CloneTokenFunc returns a token for cloning the repository
type CloneTokenFunc func(ctx context.Context) (types.Secret, error)

// Release runs the tag-triggered build-and-publish pipeline
type Release struct {
	spec     *model.PipelineSpec
	fetcher  interfaces.SourceFetcher
	runner   interfaces.CommandRunner
	registry interfaces.Registry
	repo     interfaces.RunRepository

	status   interfaces.StatusReporter
	archiver interfaces.Archiver
	notifier interfaces.Notifier

	cloneToken  CloneTokenFunc
	workRoot    string
	lockTTL     time.Duration
	keepWorkDir bool
	now         func() time.Time
}

// ReleaseOption configures Release
type ReleaseOption func(*Release)

// WithStatusReporter posts commit statuses for each run
func WithStatusReporter(r interfaces.StatusReporter) ReleaseOption {
	return func(uc *Release) {
		uc.status = r
	}
}

// WithArchiver keeps a copy of published artifacts
func WithArchiver(a interfaces.Archiver) ReleaseOption {
	return func(uc *Release) {
		uc.archiver = a
	}
}

// WithNotifier announces finished runs
func WithNotifier(n interfaces.Notifier) ReleaseOption {
	return func(uc *Release) {
		uc.notifier = n
	}
}

// WithCloneToken sets the source of the token used to clone the repository
func WithCloneToken(f CloneTokenFunc) ReleaseOption {
	return func(uc *Release) {
		uc.cloneToken = f
	}
}

// WithWorkRoot sets the parent directory of per-run working directories
func WithWorkRoot(dir string) ReleaseOption {
	return func(uc *Release) {
		uc.workRoot = dir
	}
}

// WithLockTTL sets the expiry of the per-tag run lock
func WithLockTTL(ttl time.Duration) ReleaseOption {
	return func(uc *Release) {
		uc.lockTTL = ttl
	}
}

// WithKeepWorkDir leaves working directories in place after every run
func WithKeepWorkDir(keep bool) ReleaseOption {
	return func(uc *Release) {
		uc.keepWorkDir = keep
	}
}

// WithClock replaces the time source
func WithClock(now func() time.Time) ReleaseOption {
	return func(uc *Release) {
		uc.now = now
	}
}

// NewRelease creates the release use case
func NewRelease(
	spec *model.PipelineSpec,
	fetcher interfaces.SourceFetcher,
	runner interfaces.CommandRunner,
	registry interfaces.Registry,
	repo interfaces.RunRepository,
	opts ...ReleaseOption,
) *Release {
	uc := &Release{
		spec:     spec,
		fetcher:  fetcher,
		runner:   runner,
		registry: registry,
		repo:     repo,
		lockTTL:  DefaultLockTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Accepts applies the trigger filter
func (uc *Release) Accepts(ev *model.TriggerEvent) (string, bool) {
	return uc.spec.Trigger.Match(ev.Ref)
}

// GetRun returns a recorded run
func (uc *Release) GetRun(ctx context.Context, id types.RunID) (*model.Run, error) {
	return uc.repo.GetRun(ctx, id)
}

// Execute runs every step in order and stops at the first failure. Refs that
// do not match the trigger filter return (nil, nil) without running anything.
func (uc *Release) Execute(ctx context.Context, ev *model.TriggerEvent) (*model.Run, error) {
	tag, ok := uc.Accepts(ev)
	if !ok {
		ctxlog.From(ctx).Info("Ignoring ref that is not a release tag",
			"ref", ev.Ref,
			"patterns", uc.spec.Trigger.Tags,
		)
		return nil, nil
	}

	run := model.NewRun(tag, ev, uc.now())
	logger := ctxlog.From(ctx).With(
		slog.String("run_id", run.ID.String()),
		slog.String("tag", tag),
	)
	ctx = ctxlog.With(ctx, logger)

	acquired, err := uc.repo.AcquireLock(ctx, tag, run.ID, uc.lockTTL)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to acquire run lock", goerr.V("tag", tag))
	}
	if !acquired {
		logger.Warn("Another run is releasing this tag")
		return nil, goerr.New("another run is releasing this tag",
			goerr.V("tag", tag),
			goerr.T(types.ErrTagConflict),
		)
	}
	defer func() {
		if err := uc.repo.ReleaseLock(context.WithoutCancel(ctx), tag, run.ID); err != nil {
			logger.Warn("Failed to release run lock", "error", err)
		}
	}()

	if err := uc.repo.PutRun(ctx, run); err != nil {
		return nil, goerr.Wrap(err, "failed to record run", goerr.V("tag", tag))
	}

	logger.Info("Release started",
		"ref", ev.Ref,
		"commit_sha", ev.CommitSHA,
		"repository", ev.Repository.FullName(),
	)
	uc.reportStatus(ctx, run)

	state := &runState{run: run, tag: tag, event: ev}
	runErr := uc.runSteps(ctx, state)

	// Side effects below must complete even if the run was cancelled
	ctx = context.WithoutCancel(ctx)
	run.Finish(runErr, uc.now())
	uc.putRun(ctx, run)
	uc.reportStatus(ctx, run)

	if runErr == nil {
		uc.archive(ctx, run, state.artifacts)
		logger.Info("Release succeeded", "artifacts", run.Artifacts)
	}
	uc.notify(ctx, run)
	uc.cleanup(ctx, state)

	if runErr != nil {
		return run, runErr
	}
	return run, nil
}

type stepFunc func(ctx context.Context, state *runState) error

func (uc *Release) steps() []struct {
	name model.StepName
	fn   stepFunc
} {
	return []struct {
		name model.StepName
		fn   stepFunc
	}{
		{model.StepCheckout, uc.checkout},
		{model.StepSetup, uc.setup},
		{model.StepInstall, uc.install},
		{model.StepBuild, uc.build},
		{model.StepPublish, uc.publish},
	}
}

func (uc *Release) runSteps(ctx context.Context, state *runState) error {
	logger := ctxlog.From(ctx)
	run := state.run

	for _, step := range uc.steps() {
		if err := ctx.Err(); err != nil {
			return goerr.Wrap(err, "run cancelled", goerr.V("next_step", step.name))
		}

		run.StartStep(step.name, uc.now())
		uc.putRun(ctx, run)
		logger.Info("Step started", "step", step.name)

		err := step.fn(ctx, state)

		record := &run.Steps[len(run.Steps)-1]
		record.FinishedAt = uc.now()
		if err != nil {
			record.Status = model.RunStatusFailed
			record.Error = err.Error()
			logger.Error("Step failed", "step", step.name, "error", err)
			return goerr.Wrap(err, "step failed", goerr.V("step", step.name))
		}

		record.Status = model.RunStatusSucceeded
		logger.Info("Step succeeded",
			"step", step.name,
			"duration_ms", record.FinishedAt.Sub(record.StartedAt).Milliseconds(),
		)
	}

	return nil
}

func (uc *Release) putRun(ctx context.Context, run *model.Run) {
	if err := uc.repo.PutRun(ctx, run); err != nil {
		ctxlog.From(ctx).Warn("Failed to record run", "error", err)
	}
}

func (uc *Release) reportStatus(ctx context.Context, run *model.Run) {
	if uc.status == nil {
		return
	}
	if err := uc.status.ReportStatus(ctx, run); err != nil {
		ctxlog.From(ctx).Warn("Failed to report commit status", "error", err)
	}
}

func (uc *Release) archive(ctx context.Context, run *model.Run, artifacts []*model.Artifact) {
	if uc.archiver == nil || len(artifacts) == 0 {
		return
	}
	if err := uc.archiver.Archive(ctx, run, artifacts); err != nil {
		ctxlog.From(ctx).Warn("Failed to archive artifacts", "error", err)
	}
}

func (uc *Release) notify(ctx context.Context, run *model.Run) {
	if uc.notifier == nil {
		return
	}
	if err := uc.notifier.NotifyRun(ctx, run); err != nil {
		ctxlog.From(ctx).Warn("Failed to send notification", "error", err)
	}
}

// cleanup removes the working directory. It is kept after a failed publish
// so the built artifacts remain available to the operator.
func (uc *Release) cleanup(ctx context.Context, state *runState) {
	logger := ctxlog.From(ctx)
	if state.workDir == "" {
		return
	}

	failed, _ := state.run.FailedStep()
	if uc.keepWorkDir || failed == model.StepPublish {
		logger.Info("Keeping working directory", "work_dir", state.workDir)
		return
	}

	if err := os.RemoveAll(state.workDir); err != nil {
		logger.Warn("Failed to clean up working directory",
			"work_dir", state.workDir,
			"error", err,
		)
		return
	}
	logger.Debug("Cleaned up working directory", "work_dir", state.workDir)
}
