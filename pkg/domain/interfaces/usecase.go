package interfaces

import (
	"context"

	"github.com/m-mizutani/tagship/pkg/domain/model"
	"github.com/m-mizutani/tagship/pkg/domain/types"
)

// WebhookUseCase defines the interface for webhook event processing
type WebhookUseCase interface {
	// ProcessEvent processes a webhook event
	ProcessEvent(ctx context.Context, event *model.WebhookEvent) error
}

// ReleaseUseCase runs the release pipeline
type ReleaseUseCase interface {
	// Accepts returns the tag name when the event should start a run
	Accepts(ev *model.TriggerEvent) (string, bool)

	// Execute runs the pipeline synchronously. It returns a nil Run when the
	// event does not match the trigger filter.
	Execute(ctx context.Context, ev *model.TriggerEvent) (*model.Run, error)

	// GetRun returns a recorded run
	GetRun(ctx context.Context, id types.RunID) (*model.Run, error)
}
