package config

import (
	"context"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagship/pkg/domain/interfaces"
	"github.com/m-mizutani/tagship/pkg/domain/types"
	"github.com/m-mizutani/tagship/pkg/infra/firestore"
	"github.com/m-mizutani/tagship/pkg/infra/gcs"
	"github.com/m-mizutani/tagship/pkg/infra/memory"
	"github.com/urfave/cli/v3"
)

// Store holds the run ledger and artifact archive configuration
type Store struct {
	FirestoreProjectID  string
	FirestoreDatabaseID string
	ArchiveBucket       string
	ArchivePrefix       string
}

// Flags returns CLI flags for storage configuration
func (c *Store) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "firestore-project-id",
			Usage:       "Google Cloud project of the Firestore run ledger, in-memory when omitted",
			Destination: &c.FirestoreProjectID,
			Sources:     cli.EnvVars("TAGSHIP_FIRESTORE_PROJECT_ID"),
		},
		&cli.StringFlag{
			Name:        "firestore-database-id",
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Destination: &c.FirestoreDatabaseID,
			Sources:     cli.EnvVars("TAGSHIP_FIRESTORE_DATABASE_ID"),
		},
		&cli.StringFlag{
			Name:        "archive-bucket",
			Usage:       "Cloud Storage bucket receiving a copy of published artifacts",
			Destination: &c.ArchiveBucket,
			Sources:     cli.EnvVars("TAGSHIP_ARCHIVE_BUCKET"),
		},
		&cli.StringFlag{
			Name:        "archive-prefix",
			Usage:       "Object name prefix in the archive bucket",
			Value:       "releases",
			Destination: &c.ArchivePrefix,
			Sources:     cli.EnvVars("TAGSHIP_ARCHIVE_PREFIX"),
		},
	}
}

// NewRunRepository returns the Firestore ledger when a project is set and an
// in-memory one otherwise. The returned func closes it.
func (c *Store) NewRunRepository(ctx context.Context) (interfaces.RunRepository, func(), error) {
	if c.FirestoreProjectID == "" {
		ctxlog.From(ctx).Debug("Using in-memory run ledger")
		return memory.New(), func() {}, nil
	}

	repo, err := firestore.New(ctx, c.FirestoreProjectID, c.FirestoreDatabaseID)
	if err != nil {
		return nil, nil, err
	}
	ctxlog.From(ctx).Info("Using Firestore run ledger",
		"project_id", c.FirestoreProjectID,
		"database_id", c.FirestoreDatabaseID,
	)
	return repo, func() {
		if err := repo.Close(); err != nil {
			ctxlog.From(ctx).Warn("Failed to close firestore client", "error", err)
		}
	}, nil
}

// NewArchiver returns the Cloud Storage archiver, or nil when no bucket is set
func (c *Store) NewArchiver(ctx context.Context) (*gcs.Archiver, error) {
	if c.ArchiveBucket == "" {
		return nil, nil
	}
	return gcs.New(ctx, c.ArchiveBucket, c.ArchivePrefix)
}

// Migrate applies the Firestore ledger schema, including the TTL policy of
// lock documents
func (c *Store) Migrate(ctx context.Context, dryRun bool) error {
	if c.FirestoreProjectID == "" {
		return goerr.New("firestore project ID is not set, use --firestore-project-id or TAGSHIP_FIRESTORE_PROJECT_ID",
			goerr.T(types.ErrTagConfig))
	}

	logger := ctxlog.From(ctx)
	logger.Info("Migrating Firestore schema",
		"project_id", c.FirestoreProjectID,
		"database_id", c.FirestoreDatabaseID,
		"dry_run", dryRun,
	)
	return firestore.Migrate(ctx, c.FirestoreProjectID, c.FirestoreDatabaseID, dryRun, logger)
}
