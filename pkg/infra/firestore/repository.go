package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagship/pkg/domain/model"
	"github.com/m-mizutani/tagship/pkg/domain/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	collectionRuns  = "runs"
	collectionLocks = "locks"

	fieldExpiresAt = "expires_at"
)

type lockDoc struct {
	RunID     types.RunID `firestore:"run_id"`
	Tag       string      `firestore:"tag"`
	ExpiresAt time.Time   `firestore:"expires_at"`
}

// Repository stores runs and tag locks in Firestore
type Repository struct {
	client *firestore.Client
}

// New connects to the Firestore database
func New(ctx context.Context, projectID, databaseID string) (*Repository, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project_id", projectID),
			goerr.V("database_id", databaseID),
		)
	}
	return &Repository{client: client}, nil
}

// Close releases the underlying client
func (r *Repository) Close() error {
	return r.client.Close()
}

func (r *Repository) PutRun(ctx context.Context, run *model.Run) error {
	if _, err := r.client.Collection(collectionRuns).Doc(run.ID.String()).Set(ctx, run); err != nil {
		return goerr.Wrap(err, "failed to put run", goerr.V("run_id", run.ID))
	}
	return nil
}

func (r *Repository) GetRun(ctx context.Context, id types.RunID) (*model.Run, error) {
	snap, err := r.client.Collection(collectionRuns).Doc(id.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(err, "run not found", goerr.V("run_id", id), goerr.T(types.ErrTagNotFound))
		}
		return nil, goerr.Wrap(err, "failed to get run", goerr.V("run_id", id))
	}

	var run model.Run
	if err := snap.DataTo(&run); err != nil {
		return nil, goerr.Wrap(err, "failed to decode run", goerr.V("run_id", id))
	}
	return &run, nil
}

// AcquireLock creates or takes over the lock document of tag in a transaction
func (r *Repository) AcquireLock(ctx context.Context, tag string, runID types.RunID, ttl time.Duration) (bool, error) {
	ref := r.client.Collection(collectionLocks).Doc(lockKey(tag))
	acquired := false

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		acquired = false
		now := time.Now()

		snap, err := tx.Get(ref)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if err == nil && snap.Exists() {
			var current lockDoc
			if err := snap.DataTo(&current); err != nil {
				return err
			}
			if current.RunID != runID && now.Before(current.ExpiresAt) {
				return nil
			}
		}

		acquired = true
		return tx.Set(ref, &lockDoc{
			RunID:     runID,
			Tag:       tag,
			ExpiresAt: now.Add(ttl),
		})
	})
	if err != nil {
		return false, goerr.Wrap(err, "failed to acquire lock", goerr.V("tag", tag), goerr.V("run_id", runID))
	}
	return acquired, nil
}

// ReleaseLock deletes the lock document of tag if runID holds it
func (r *Repository) ReleaseLock(ctx context.Context, tag string, runID types.RunID) error {
	ref := r.client.Collection(collectionLocks).Doc(lockKey(tag))

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return nil
			}
			return err
		}

		var current lockDoc
		if err := snap.DataTo(&current); err != nil {
			return err
		}
		if current.RunID != runID {
			return nil
		}
		return tx.Delete(ref)
	})
	if err != nil {
		return goerr.Wrap(err, "failed to release lock", goerr.V("tag", tag), goerr.V("run_id", runID))
	}
	return nil
}

// lockKey makes a tag usable as a document ID, which may not contain "/"
func lockKey(tag string) string {
	key := make([]rune, 0, len(tag))
	for _, c := range tag {
		if c == '/' {
			c = '~'
		}
		key = append(key, c)
	}
	return string(key)
}
