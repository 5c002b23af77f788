package config

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagship/pkg/domain/model"
	"github.com/m-mizutani/tagship/pkg/domain/types"
	"github.com/m-mizutani/tagship/pkg/infra/pypi"
	"github.com/urfave/cli/v3"
)

// Registry holds the package index credential
type Registry struct {
	Token string
	URL   string
}

// Flags returns CLI flags for registry configuration
func (c *Registry) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "registry-token",
			Usage:       "API token for uploading to the package index",
			Destination: &c.Token,
			Sources:     cli.EnvVars("TAGSHIP_REGISTRY_TOKEN"),
		},
		&cli.StringFlag{
			Name:        "registry-url",
			Usage:       "Upload endpoint, overrides publish.repository_url of the pipeline file",
			Destination: &c.URL,
			Sources:     cli.EnvVars("TAGSHIP_REGISTRY_URL"),
		},
	}
}

// Secret returns the upload token
func (c *Registry) Secret() types.Secret {
	return types.Secret(c.Token)
}

// NewClient creates the package index client for spec
func (c *Registry) NewClient(spec *model.PipelineSpec) (*pypi.Client, error) {
	if c.Token == "" {
		return nil, goerr.New("registry token is not set", goerr.T(types.ErrTagConfig))
	}
	if c.URL != "" {
		spec.Publish.RepositoryURL = c.URL
	}

	return pypi.New(spec.Publish.RepositoryURL, model.Credential{
		Username: spec.Publish.Username,
		Token:    c.Secret(),
	}), nil
}
