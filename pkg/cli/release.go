package cli

import (
	"context"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagship/pkg/cli/config"
	"github.com/m-mizutani/tagship/pkg/domain/model"
	"github.com/m-mizutani/tagship/pkg/infra/command"
	"github.com/m-mizutani/tagship/pkg/infra/git"
	"github.com/m-mizutani/tagship/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// releaseConfig gathers everything needed to assemble the release use case
type releaseConfig struct {
	pipeline  config.Pipeline
	registry  config.Registry
	github    config.GitHub
	store     config.Store
	notify    config.Notify
	execution config.Execution
}

func (c *releaseConfig) Flags() []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, c.pipeline.Flags()...)
	flags = append(flags, c.registry.Flags()...)
	flags = append(flags, c.github.Flags()...)
	flags = append(flags, c.store.Flags()...)
	flags = append(flags, c.notify.Flags()...)
	flags = append(flags, c.execution.Flags()...)
	return flags
}

// build wires the release use case. The returned func releases clients.
func (c *releaseConfig) build(ctx context.Context, spec *model.PipelineSpec) (*usecase.Release, func(), error) {
	logger := ctxlog.From(ctx)
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	registry, err := c.registry.NewClient(spec)
	if err != nil {
		return nil, nil, err
	}

	repo, closeRepo, err := c.store.NewRunRepository(ctx)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to set up run ledger")
	}
	closers = append(closers, closeRepo)

	ghClient, err := c.github.NewClient()
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	opts := c.execution.Options()
	if ghClient != nil {
		opts = append(opts, usecase.WithStatusReporter(ghClient))
	}
	if tokenFunc := c.github.CloneToken(ghClient); tokenFunc != nil {
		opts = append(opts, usecase.WithCloneToken(tokenFunc))
	}

	archiver, err := c.store.NewArchiver(ctx)
	if err != nil {
		cleanup()
		return nil, nil, goerr.Wrap(err, "failed to set up artifact archive")
	}
	if archiver != nil {
		opts = append(opts, usecase.WithArchiver(archiver))
		closers = append(closers, func() {
			if err := archiver.Close(); err != nil {
				logger.Warn("Failed to close storage client", "error", err)
			}
		})
	}

	if notifier := c.notify.NewNotifier(); notifier != nil {
		opts = append(opts, usecase.WithNotifier(notifier))
	}

	secrets := append(c.github.Secrets(), c.registry.Secret())
	runner := command.NewRunner(command.WithSecrets(secrets...))

	logger.Debug("Release pipeline configured",
		"tags", spec.Trigger.Tags,
		"interpreter", spec.Runtime.Interpreter,
		"python_version", spec.Runtime.Version,
		"build_command", spec.Build.Command,
		"repository_url", spec.Publish.RepositoryURL,
		"status_report", ghClient != nil,
		"archive", archiver != nil,
	)

	uc := usecase.NewRelease(spec, git.NewFetcher(), runner, registry, repo, opts...)
	return uc, cleanup, nil
}
