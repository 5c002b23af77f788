package gcs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/tagship/pkg/domain/model"
	"github.com/m-mizutani/tagship/pkg/infra/gcs"
	"google.golang.org/api/option"
)

func TestArchiver_ObjectName(t *testing.T) {
	archiver, err := gcs.New(context.Background(), "bucket", "releases/pkg", option.WithoutAuthentication())
	gt.NoError(t, err)
	defer archiver.Close()

	run := &model.Run{Tag: "v1.2.0"}
	name := archiver.ObjectName(run, &model.Artifact{Filename: "pkg-1.2.0.tar.gz"})
	gt.Value(t, name).Equal("releases/pkg/v1.2.0/pkg-1.2.0.tar.gz")
}

func TestArchiver_Archive(t *testing.T) {
	bucket := os.Getenv("TEST_GCS_BUCKET")
	if bucket == "" {
		t.Skip("TEST_GCS_BUCKET is not set")
	}

	ctx := context.Background()
	archiver, err := gcs.New(ctx, bucket, "tagship-test")
	gt.NoError(t, err)
	defer archiver.Close()

	p := filepath.Join(t.TempDir(), "pkg-0.0.1.tar.gz")
	gt.NoError(t, os.WriteFile(p, []byte("dummy"), 0644))

	run := model.NewRun("v0.0.1", &model.TriggerEvent{}, time.Now())
	gt.NoError(t, archiver.Archive(ctx, run, []*model.Artifact{
		{Path: p, Filename: "pkg-0.0.1.tar.gz", Size: 5},
	}))
}
