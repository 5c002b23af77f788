package gcs

import (
	"context"
	"io"
	"os"
	"path"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagship/pkg/domain/model"
	"google.golang.org/api/option"
)

// Archiver copies artifacts to a Cloud Storage bucket
type Archiver struct {
	client *storage.Client
	bucket string
	prefix string
}

// New creates an Archiver writing to gs://bucket/prefix/
func New(ctx context.Context, bucket, prefix string, opts ...option.ClientOption) (*Archiver, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client", goerr.V("bucket", bucket))
	}
	return &Archiver{client: client, bucket: bucket, prefix: prefix}, nil
}

// Close releases the underlying client
func (a *Archiver) Close() error {
	return a.client.Close()
}

// ObjectName returns the object path of an artifact for a run
func (a *Archiver) ObjectName(run *model.Run, artifact *model.Artifact) string {
	return path.Join(a.prefix, run.Tag, artifact.Filename)
}

// Archive uploads every artifact of the run
func (a *Archiver) Archive(ctx context.Context, run *model.Run, artifacts []*model.Artifact) error {
	logger := ctxlog.From(ctx)

	for _, artifact := range artifacts {
		name := a.ObjectName(run, artifact)
		if err := a.upload(ctx, name, artifact); err != nil {
			return err
		}
		logger.Info("Archived artifact",
			"bucket", a.bucket,
			"object", name,
			"size", artifact.Size,
		)
	}
	return nil
}

func (a *Archiver) upload(ctx context.Context, name string, artifact *model.Artifact) error {
	f, err := os.Open(artifact.Path)
	if err != nil {
		return goerr.Wrap(err, "failed to open artifact", goerr.V("path", artifact.Path))
	}
	defer f.Close()

	w := a.client.Bucket(a.bucket).Object(name).NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	w.Metadata = map[string]string{
		"sha256":  artifact.SHA256,
		"package": artifact.Metadata.Name,
		"version": artifact.Metadata.Version,
	}

	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return goerr.Wrap(err, "failed to write object", goerr.V("bucket", a.bucket), goerr.V("object", name))
	}
	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to finalize object", goerr.V("bucket", a.bucket), goerr.V("object", name))
	}
	return nil
}
