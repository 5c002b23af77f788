package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/tagship/pkg/domain/model"
	"github.com/m-mizutani/tagship/pkg/domain/types"
	"github.com/m-mizutani/tagship/pkg/infra/memory"
)

func TestRepository_Runs(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	run := model.NewRun("v1.2.0", &model.TriggerEvent{Ref: "refs/tags/v1.2.0"}, time.Now())
	run.StartStep(model.StepCheckout, time.Now())
	gt.NoError(t, repo.PutRun(ctx, run))

	// Stored value is isolated from later mutation
	run.Steps[0].Status = model.RunStatusFailed

	got, err := repo.GetRun(ctx, run.ID)
	gt.NoError(t, err)
	gt.Value(t, got.Tag).Equal("v1.2.0")
	gt.Value(t, got.Steps[0].Status).Equal(model.RunStatusRunning)

	_, err = repo.GetRun(ctx, types.NewRunID())
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, types.ErrTagNotFound))
}

func TestRepository_Lock(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.SetClock(func() time.Time { return now })

	first := types.NewRunID()
	second := types.NewRunID()

	ok, err := repo.AcquireLock(ctx, "v1.2.0", first, time.Hour)
	gt.NoError(t, err)
	gt.True(t, ok)

	ok, err = repo.AcquireLock(ctx, "v1.2.0", second, time.Hour)
	gt.NoError(t, err)
	gt.False(t, ok)

	// Different tag is independent
	ok, err = repo.AcquireLock(ctx, "v1.3.0", second, time.Hour)
	gt.NoError(t, err)
	gt.True(t, ok)

	// Release by non-holder is ignored
	gt.NoError(t, repo.ReleaseLock(ctx, "v1.2.0", second))
	ok, err = repo.AcquireLock(ctx, "v1.2.0", second, time.Hour)
	gt.NoError(t, err)
	gt.False(t, ok)

	gt.NoError(t, repo.ReleaseLock(ctx, "v1.2.0", first))
	ok, err = repo.AcquireLock(ctx, "v1.2.0", second, time.Hour)
	gt.NoError(t, err)
	gt.True(t, ok)
}

func TestRepository_LockExpires(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.SetClock(func() time.Time { return now })

	ok, err := repo.AcquireLock(ctx, "v1.2.0", types.NewRunID(), time.Hour)
	gt.NoError(t, err)
	gt.True(t, ok)

	now = now.Add(2 * time.Hour)
	ok, err = repo.AcquireLock(ctx, "v1.2.0", types.NewRunID(), time.Hour)
	gt.NoError(t, err)
	gt.True(t, ok)
}
