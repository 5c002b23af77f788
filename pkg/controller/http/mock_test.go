package http_test

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagship/pkg/domain/model"
	"github.com/m-mizutani/tagship/pkg/domain/types"
)

type mockWebhookUC struct {
	mu     sync.Mutex
	events []*model.WebhookEvent
	err    error
}

func (m *mockWebhookUC) ProcessEvent(ctx context.Context, event *model.WebhookEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.err
}

type mockReleaseUC struct {
	runs map[types.RunID]*model.Run
	err  error
}

func (m *mockReleaseUC) Accepts(ev *model.TriggerEvent) (string, bool) {
	return "", false
}

func (m *mockReleaseUC) Execute(ctx context.Context, ev *model.TriggerEvent) (*model.Run, error) {
	return nil, nil
}

func (m *mockReleaseUC) GetRun(ctx context.Context, id types.RunID) (*model.Run, error) {
	if m.err != nil {
		return nil, m.err
	}
	run, ok := m.runs[id]
	if !ok {
		return nil, goerr.New("run not found", goerr.T(types.ErrTagNotFound))
	}
	return run, nil
}
