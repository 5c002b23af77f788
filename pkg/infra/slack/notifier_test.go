package slack_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/tagship/pkg/domain/model"
	slackinfra "github.com/m-mizutani/tagship/pkg/infra/slack"
)

func TestNotifier_NotifyRun(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	now := time.Now()
	run := model.NewRun("v1.2.0", &model.TriggerEvent{
		CommitSHA:  "abc123",
		Repository: model.Repository{Owner: "octo", Name: "pkg"},
	}, now)
	step := run.StartStep(model.StepPublish, now)
	step.Status = model.RunStatusFailed
	run.Finish(io.ErrUnexpectedEOF, now)

	notifier := slackinfra.New(server.URL)
	gt.NoError(t, notifier.NotifyRun(context.Background(), run))

	gt.Value(t, body["text"]).Equal("Release of v1.2.0 failed")
	attachments, ok := body["attachments"].([]any)
	gt.True(t, ok)
	gt.Number(t, len(attachments)).Equal(1)

	raw, err := json.Marshal(attachments[0])
	gt.NoError(t, err)
	gt.String(t, string(raw)).Contains("publish")
	gt.String(t, string(raw)).Contains("octo/pkg")
}

func TestNotifier_NotifyRun_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	run := model.NewRun("v1.2.0", &model.TriggerEvent{}, time.Now())
	run.Finish(nil, time.Now())

	err := slackinfra.New(server.URL).NotifyRun(context.Background(), run)
	gt.Error(t, err)
}
