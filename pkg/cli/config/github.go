package config

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagship/pkg/domain/types"
	"github.com/m-mizutani/tagship/pkg/infra/github"
	"github.com/urfave/cli/v3"
)

// GitHub holds GitHub configuration
type GitHub struct {
	WebhookSecret  string
	AppID          int64
	InstallationID int64
	PrivateKey     string
	Token          string
}

// Flags returns CLI flags for GitHub configuration. The webhook secret is
// only needed by serve.
func (c *GitHub) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.Int64Flag{
			Name:        "github-app-id",
			Usage:       "GitHub App ID used for commit statuses and clone tokens",
			Destination: &c.AppID,
			Sources:     cli.EnvVars("TAGSHIP_GITHUB_APP_ID"),
		},
		&cli.Int64Flag{
			Name:        "github-app-installation-id",
			Usage:       "GitHub App installation ID",
			Destination: &c.InstallationID,
			Sources:     cli.EnvVars("TAGSHIP_GITHUB_APP_INSTALLATION_ID"),
		},
		&cli.StringFlag{
			Name:        "github-app-private-key",
			Usage:       "GitHub App private key (PEM)",
			Destination: &c.PrivateKey,
			Sources:     cli.EnvVars("TAGSHIP_GITHUB_APP_PRIVATE_KEY"),
		},
		&cli.StringFlag{
			Name:        "git-token",
			Usage:       "Token for cloning private repositories when no GitHub App is configured",
			Destination: &c.Token,
			Sources:     cli.EnvVars("TAGSHIP_GIT_TOKEN"),
		},
	}
}

// WebhookFlags returns the flags needed to receive webhooks
func (c *GitHub) WebhookFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "github-webhook-secret",
			Usage:       "GitHub webhook secret",
			Required:    true,
			Destination: &c.WebhookSecret,
			Sources:     cli.EnvVars("TAGSHIP_GITHUB_WEBHOOK_SECRET"),
		},
	}
}

// Secret returns the webhook secret
func (c *GitHub) Secret() types.Secret {
	return types.Secret(c.WebhookSecret)
}

// Secrets returns every credential that must not appear in tool output
func (c *GitHub) Secrets() []types.Secret {
	return []types.Secret{types.Secret(c.WebhookSecret), types.Secret(c.Token), types.Secret(c.PrivateKey)}
}

// AppEnabled reports whether GitHub App credentials are configured
func (c *GitHub) AppEnabled() bool {
	return c.AppID != 0 || c.InstallationID != 0 || c.PrivateKey != ""
}

// NewClient creates the GitHub App client, or nil when no App is configured
func (c *GitHub) NewClient() (*github.Client, error) {
	if !c.AppEnabled() {
		return nil, nil
	}
	if c.AppID == 0 || c.InstallationID == 0 || c.PrivateKey == "" {
		return nil, goerr.New("github-app-id, github-app-installation-id and github-app-private-key must be set together",
			goerr.T(types.ErrTagConfig))
	}
	return github.NewClient(c.AppID, c.InstallationID, []byte(c.PrivateKey))
}

// CloneToken returns the source of the clone token. An App installation token
// takes precedence over a static token.
func (c *GitHub) CloneToken(client *github.Client) func(ctx context.Context) (types.Secret, error) {
	if client != nil {
		return client.CloneToken
	}
	if c.Token == "" {
		return nil
	}
	token := types.Secret(c.Token)
	return func(ctx context.Context) (types.Secret, error) {
		return token, nil
	}
}
