package firestore_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/tagship/pkg/infra/firestore"
)

func TestSchema(t *testing.T) {
	schema := firestore.Schema()
	gt.NoError(t, schema.Validate())

	gt.Number(t, len(schema.Collections)).Equal(1)
	locks := schema.Collections[0]
	gt.Value(t, locks.Name).Equal("locks")
	gt.Value(t, locks.TTL).NotNil()
	gt.Value(t, locks.TTL.Field).Equal("expires_at")
}

func TestMigrate_DryRun(t *testing.T) {
	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")
	if projectID == "" || databaseID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID and TEST_FIRESTORE_DATABASE_ID are not set")
	}

	err := firestore.Migrate(context.Background(), projectID, databaseID, true, slog.New(slog.DiscardHandler))
	gt.NoError(t, err)
}
