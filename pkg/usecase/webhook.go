package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/go-github/v75/github"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagship/pkg/domain/interfaces"
	"github.com/m-mizutani/tagship/pkg/domain/model"
	"github.com/m-mizutani/tagship/pkg/utils/async"
)

type webhookUseCase struct {
	releaseUC  interfaces.ReleaseUseCase
	runTimeout time.Duration
}

// WebhookOption configures the webhook use case
type WebhookOption func(*webhookUseCase)

// WithRunTimeout bounds each dispatched run. Zero means no limit.
func WithRunTimeout(d time.Duration) WebhookOption {
	return func(uc *webhookUseCase) {
		uc.runTimeout = d
	}
}

// NewWebhook creates a new instance of WebhookUseCase
func NewWebhook(releaseUC interfaces.ReleaseUseCase, opts ...WebhookOption) *webhookUseCase {
	uc := &webhookUseCase{releaseUC: releaseUC}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// ProcessEvent turns a push into a trigger event and starts a run in the
// background when the pushed ref is a release tag
func (uc *webhookUseCase) ProcessEvent(ctx context.Context, event *model.WebhookEvent) error {
	logger := ctxlog.From(ctx)

	logger.Info("Processing webhook event",
		"id", event.ID,
		"type", event.Type,
		"ref", event.Ref,
		"repository", event.Repository,
		"sender", event.Sender,
		"supported", event.IsSupportedEvent(),
	)

	if !event.IsSupportedEvent() {
		logger.Info("Ignoring event",
			"type", event.Type,
			"deleted", event.Deleted,
		)
		return nil
	}

	var push github.PushEvent
	if err := json.Unmarshal(event.RawPayload, &push); err != nil {
		return goerr.Wrap(err, "failed to parse push event", goerr.V("delivery_id", event.ID))
	}

	trigger := triggerFromPush(&push, event.ID)
	tag, ok := uc.releaseUC.Accepts(trigger)
	if !ok {
		logger.Info("Ignoring ref that is not a release tag", "ref", trigger.Ref)
		return nil
	}

	logger.Info("Dispatching release",
		"tag", tag,
		"commit_sha", trigger.CommitSHA,
		"repository", trigger.Repository.FullName(),
	)

	async.Dispatch(ctx, func(ctx context.Context) error {
		if uc.runTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, uc.runTimeout)
			defer cancel()
		}

		if _, err := uc.releaseUC.Execute(ctx, trigger); err != nil {
			return goerr.Wrap(err, "release failed",
				goerr.V("tag", tag),
				goerr.V("delivery_id", event.ID))
		}
		return nil
	})

	return nil
}

func triggerFromPush(push *github.PushEvent, deliveryID string) *model.TriggerEvent {
	repo := push.GetRepo()
	owner := repo.GetOwner().GetLogin()
	if owner == "" {
		owner = repo.GetOwner().GetName()
	}

	pusher := push.GetPusher().GetName()
	if pusher == "" {
		pusher = push.GetSender().GetLogin()
	}

	// For annotated tags "after" is the tag object, head_commit the commit
	commit := push.GetHeadCommit().GetID()
	if commit == "" {
		commit = push.GetAfter()
	}

	return &model.TriggerEvent{
		Ref:       push.GetRef(),
		CommitSHA: commit,
		Repository: model.Repository{
			Owner:    owner,
			Name:     repo.GetName(),
			CloneURL: repo.GetCloneURL(),
		},
		Pusher:     pusher,
		DeliveryID: deliveryID,
	}
}
