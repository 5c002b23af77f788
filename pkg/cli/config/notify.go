package config

import (
	"github.com/m-mizutani/tagship/pkg/infra/slack"
	"github.com/urfave/cli/v3"
)

// Notify holds notification configuration
type Notify struct {
	SlackWebhookURL string
}

// Flags returns CLI flags for notification configuration
func (c *Notify) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-webhook-url",
			Usage:       "Slack incoming webhook URL for run notifications",
			Destination: &c.SlackWebhookURL,
			Sources:     cli.EnvVars("TAGSHIP_SLACK_WEBHOOK_URL"),
		},
	}
}

// NewNotifier returns the Slack notifier, or nil when not configured
func (c *Notify) NewNotifier() *slack.Notifier {
	if c.SlackWebhookURL == "" {
		return nil
	}
	return slack.New(c.SlackWebhookURL)
}
