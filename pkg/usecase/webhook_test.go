package usecase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/tagship/pkg/domain/model"
	"github.com/m-mizutani/tagship/pkg/domain/types"
	"github.com/m-mizutani/tagship/pkg/usecase"
)

type mockRelease struct {
	mu       sync.Mutex
	executed chan *model.TriggerEvent
	spec     model.TriggerSpec
	deadline bool
}

func newMockRelease() *mockRelease {
	return &mockRelease{
		executed: make(chan *model.TriggerEvent, 4),
		spec:     model.TriggerSpec{Tags: []string{"v*"}},
	}
}

func (m *mockRelease) Accepts(ev *model.TriggerEvent) (string, bool) {
	return m.spec.Match(ev.Ref)
}

func (m *mockRelease) Execute(ctx context.Context, ev *model.TriggerEvent) (*model.Run, error) {
	m.mu.Lock()
	_, m.deadline = ctx.Deadline()
	m.mu.Unlock()
	m.executed <- ev
	return &model.Run{Tag: ev.Ref}, nil
}

func (m *mockRelease) GetRun(ctx context.Context, id types.RunID) (*model.Run, error) {
	return nil, nil
}

const pushPayload = `{
  "ref": "refs/tags/v1.2.0",
  "after": "0123456789abcdef0123456789abcdef01234567",
  "deleted": false,
  "repository": {
    "name": "demo",
    "full_name": "example/demo",
    "clone_url": "https://github.com/example/demo.git",
    "owner": {"name": "example", "login": "example"}
  },
  "pusher": {"name": "octocat", "email": "octocat@example.com"},
  "sender": {"login": "octocat"}
}`

const annotatedTagPushPayload = `{
  "ref": "refs/tags/v1.2.0",
  "after": "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
  "deleted": false,
  "head_commit": {"id": "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", "message": "release v1.2.0"},
  "repository": {
    "name": "demo",
    "full_name": "example/demo",
    "clone_url": "https://github.com/example/demo.git",
    "owner": {"name": "example", "login": "example"}
  },
  "pusher": {"name": "octocat", "email": "octocat@example.com"},
  "sender": {"login": "octocat"}
}`

func pushEvent(ref, payload string) *model.WebhookEvent {
	return &model.WebhookEvent{
		ID:         "test-delivery-1",
		Type:       model.EventTypePush,
		Ref:        ref,
		Repository: "example/demo",
		Sender:     "octocat",
		ReceivedAt: time.Now(),
		RawPayload: []byte(payload),
	}
}

func waitExecuted(t *testing.T, m *mockRelease) *model.TriggerEvent {
	t.Helper()
	select {
	case ev := <-m.executed:
		return ev
	case <-time.After(time.Second):
		t.Fatal("release was not executed")
		return nil
	}
}

func TestWebhookUseCase_ProcessEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("release tag push dispatches a run", func(t *testing.T) {
		release := newMockRelease()
		uc := usecase.NewWebhook(release)

		gt.NoError(t, uc.ProcessEvent(ctx, pushEvent("refs/tags/v1.2.0", pushPayload)))

		ev := waitExecuted(t, release)
		gt.Value(t, ev.Ref).Equal("refs/tags/v1.2.0")
		gt.Value(t, ev.CommitSHA).Equal("0123456789abcdef0123456789abcdef01234567")
		gt.Value(t, ev.Repository).Equal(model.Repository{
			Owner:    "example",
			Name:     "demo",
			CloneURL: "https://github.com/example/demo.git",
		})
		gt.Value(t, ev.Pusher).Equal("octocat")
		gt.Value(t, ev.DeliveryID).Equal("test-delivery-1")
	})

	t.Run("annotated tag uses the head commit", func(t *testing.T) {
		release := newMockRelease()
		uc := usecase.NewWebhook(release)

		gt.NoError(t, uc.ProcessEvent(ctx, pushEvent("refs/tags/v1.2.0", annotatedTagPushPayload)))

		ev := waitExecuted(t, release)
		gt.Value(t, ev.CommitSHA).Equal("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	})

	t.Run("run timeout sets a deadline", func(t *testing.T) {
		release := newMockRelease()
		uc := usecase.NewWebhook(release, usecase.WithRunTimeout(time.Minute))

		gt.NoError(t, uc.ProcessEvent(ctx, pushEvent("refs/tags/v1.2.0", pushPayload)))
		waitExecuted(t, release)

		release.mu.Lock()
		defer release.mu.Unlock()
		gt.True(t, release.deadline)
	})

	t.Run("non-release tag is ignored", func(t *testing.T) {
		release := newMockRelease()
		uc := usecase.NewWebhook(release)
		payload := `{"ref":"refs/tags/release-1.2.0","after":"abc","repository":{"name":"demo"}}`

		gt.NoError(t, uc.ProcessEvent(ctx, pushEvent("refs/tags/release-1.2.0", payload)))

		select {
		case <-release.executed:
			t.Fatal("release must not run")
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("branch push is ignored", func(t *testing.T) {
		release := newMockRelease()
		uc := usecase.NewWebhook(release)
		payload := `{"ref":"refs/heads/main","after":"abc","repository":{"name":"demo"}}`

		gt.NoError(t, uc.ProcessEvent(ctx, pushEvent("refs/heads/main", payload)))
		gt.Number(t, len(release.executed)).Equal(0)
	})

	t.Run("deleted tag is ignored", func(t *testing.T) {
		release := newMockRelease()
		uc := usecase.NewWebhook(release)
		event := pushEvent("refs/tags/v1.2.0", pushPayload)
		event.Deleted = true

		gt.NoError(t, uc.ProcessEvent(ctx, event))
		gt.Number(t, len(release.executed)).Equal(0)
	})

	t.Run("ping and unknown events are ignored", func(t *testing.T) {
		release := newMockRelease()
		uc := usecase.NewWebhook(release)

		for _, typ := range []model.WebhookEventType{model.EventTypePing, model.EventTypeUnknown} {
			event := pushEvent("", `{}`)
			event.Type = typ
			gt.NoError(t, uc.ProcessEvent(ctx, event))
		}
		gt.Number(t, len(release.executed)).Equal(0)
	})

	t.Run("broken payload is an error", func(t *testing.T) {
		release := newMockRelease()
		uc := usecase.NewWebhook(release)
		gt.Error(t, uc.ProcessEvent(ctx, pushEvent("refs/tags/v1.2.0", `{`)))
	})
}
