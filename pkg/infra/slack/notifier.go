package slack

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagship/pkg/domain/model"
	"github.com/slack-go/slack"
)

// Notifier posts run results to a Slack incoming webhook
type Notifier struct {
	webhookURL string
}

// New creates a Notifier for webhookURL
func New(webhookURL string) *Notifier {
	return &Notifier{webhookURL: webhookURL}
}

// NotifyRun posts the final state of run
func (n *Notifier) NotifyRun(ctx context.Context, run *model.Run) error {
	if err := slack.PostWebhookContext(ctx, n.webhookURL, buildMessage(run)); err != nil {
		return goerr.Wrap(err, "failed to post slack message", goerr.V("run_id", run.ID))
	}
	return nil
}

func buildMessage(run *model.Run) *slack.WebhookMessage {
	color := "good"
	title := fmt.Sprintf("Released %s", run.Tag)
	if run.Status != model.RunStatusSucceeded {
		color = "danger"
		title = fmt.Sprintf("Release of %s %s", run.Tag, run.Status)
	}

	repo := run.Repository.FullName()
	if repo == "" {
		repo = "-"
	}

	fields := []slack.AttachmentField{
		{Title: "Repository", Value: repo, Short: true},
		{Title: "Run ID", Value: run.ID.String(), Short: true},
	}
	if run.CommitSHA != "" {
		fields = append(fields, slack.AttachmentField{Title: "Commit", Value: run.CommitSHA, Short: true})
	}
	if step, ok := run.FailedStep(); ok {
		fields = append(fields, slack.AttachmentField{Title: "Failed step", Value: string(step), Short: true})
	}
	if len(run.Artifacts) > 0 {
		fields = append(fields, slack.AttachmentField{Title: "Artifacts", Value: strings.Join(run.Artifacts, "\n")})
	}

	attachment := slack.Attachment{
		Color:  color,
		Title:  title,
		Fields: fields,
	}
	if run.Error != "" {
		attachment.Text = run.Error
	}

	return &slack.WebhookMessage{
		Text:        title,
		Attachments: []slack.Attachment{attachment},
	}
}
