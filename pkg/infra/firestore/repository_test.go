package firestore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/tagship/pkg/domain/model"
	"github.com/m-mizutani/tagship/pkg/domain/types"
	"github.com/m-mizutani/tagship/pkg/infra/firestore"
)

func newTestRepository(t *testing.T) *firestore.Repository {
	t.Helper()
	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")
	if projectID == "" || databaseID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID and TEST_FIRESTORE_DATABASE_ID are not set")
	}

	repo, err := firestore.New(context.Background(), projectID, databaseID)
	gt.NoError(t, err)
	t.Cleanup(func() {
		_ = repo.Close()
	})
	return repo
}

func TestRepository_Runs(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	run := model.NewRun("v0.0.1-test", &model.TriggerEvent{Ref: "refs/tags/v0.0.1-test"}, time.Now().UTC())
	run.StartStep(model.StepCheckout, time.Now().UTC())
	gt.NoError(t, repo.PutRun(ctx, run))

	got, err := repo.GetRun(ctx, run.ID)
	gt.NoError(t, err)
	gt.Value(t, got.Tag).Equal(run.Tag)
	gt.Number(t, len(got.Steps)).Equal(1)
}

func TestRepository_Lock(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	tag := "test/" + types.NewRunID().String()
	first := types.NewRunID()
	second := types.NewRunID()

	ok, err := repo.AcquireLock(ctx, tag, first, time.Minute)
	gt.NoError(t, err)
	gt.True(t, ok)

	ok, err = repo.AcquireLock(ctx, tag, second, time.Minute)
	gt.NoError(t, err)
	gt.False(t, ok)

	gt.NoError(t, repo.ReleaseLock(ctx, tag, first))

	ok, err = repo.AcquireLock(ctx, tag, second, time.Minute)
	gt.NoError(t, err)
	gt.True(t, ok)
	gt.NoError(t, repo.ReleaseLock(ctx, tag, second))
}
