package firestore

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/fireconf"
	"github.com/m-mizutani/goerr/v2"
)

// Schema declares the collection settings of the ledger. Lock documents
// expire through a TTL policy on expires_at.
func Schema() *fireconf.Config {
	return &fireconf.Config{
		Collections: []fireconf.Collection{
			{
				Name: collectionLocks,
				TTL:  &fireconf.TTL{Field: fieldExpiresAt},
			},
		},
	}
}

// Migrate applies Schema to the database. With dryRun the planned changes
// are only logged.
func Migrate(ctx context.Context, projectID, databaseID string, dryRun bool, logger *slog.Logger) error {
	client, err := fireconf.New(ctx, projectID, databaseID, Schema(),
		fireconf.WithLogger(logger),
		fireconf.WithDryRun(dryRun),
	)
	if err != nil {
		return goerr.Wrap(err, "failed to create fireconf client",
			goerr.V("project_id", projectID),
			goerr.V("database_id", databaseID),
		)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("Failed to close fireconf client", "error", err)
		}
	}()

	if err := client.Migrate(ctx); err != nil {
		return goerr.Wrap(err, "failed to migrate firestore schema",
			goerr.V("project_id", projectID),
			goerr.V("database_id", databaseID),
		)
	}
	return nil
}
