package cli

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagship/pkg/domain/model"
	"github.com/m-mizutani/tagship/pkg/domain/types"
	"github.com/urfave/cli/v3"
)

// trigger holds the pushed ref given on the command line, typically by a CI job
type trigger struct {
	Ref       string
	CommitSHA string
	RepoURL   string
	RepoOwner string
	RepoName  string
}

func (t *trigger) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "ref",
			Usage:       "Pushed ref, e.g. refs/tags/v1.2.0",
			Required:    true,
			Destination: &t.Ref,
			Sources:     cli.EnvVars("TAGSHIP_REF", "GITHUB_REF"),
		},
		&cli.StringFlag{
			Name:        "commit",
			Usage:       "Expected commit of the tag, verified after checkout",
			Destination: &t.CommitSHA,
			Sources:     cli.EnvVars("TAGSHIP_COMMIT", "GITHUB_SHA"),
		},
		&cli.StringFlag{
			Name:        "repo-url",
			Usage:       "Clone URL of the repository, derived from GITHUB_SERVER_URL and GITHUB_REPOSITORY when omitted",
			Destination: &t.RepoURL,
			Sources:     cli.EnvVars("TAGSHIP_REPO_URL"),
		},
		&cli.StringFlag{
			Name:        "repo-owner",
			Usage:       "Repository owner, for commit statuses",
			Destination: &t.RepoOwner,
			Sources:     cli.EnvVars("TAGSHIP_REPO_OWNER", "GITHUB_REPOSITORY_OWNER"),
		},
		&cli.StringFlag{
			Name:        "repo-name",
			Usage:       "Repository name, for commit statuses, derived from GITHUB_REPOSITORY when omitted",
			Destination: &t.RepoName,
			Sources:     cli.EnvVars("TAGSHIP_REPO_NAME"),
		},
	}
}

// Event builds the trigger event. Repository fields left empty fall back to
// the GitHub Actions environment.
func (t *trigger) Event() (*model.TriggerEvent, error) {
	owner, name, cloneURL := t.RepoOwner, t.RepoName, t.RepoURL

	if fullName := os.Getenv("GITHUB_REPOSITORY"); fullName != "" {
		if o, n, ok := strings.Cut(fullName, "/"); ok {
			if owner == "" {
				owner = o
			}
			if name == "" {
				name = n
			}
		}
		if cloneURL == "" {
			serverURL := os.Getenv("GITHUB_SERVER_URL")
			if serverURL == "" {
				serverURL = "https://github.com"
			}
			cloneURL = strings.TrimSuffix(serverURL, "/") + "/" + fullName + ".git"
		}
	}

	if cloneURL == "" {
		return nil, goerr.New("repository URL is not set, use --repo-url or TAGSHIP_REPO_URL",
			goerr.T(types.ErrTagConfig))
	}

	return &model.TriggerEvent{
		Ref:       t.Ref,
		CommitSHA: t.CommitSHA,
		Repository: model.Repository{
			Owner:    owner,
			Name:     name,
			CloneURL: cloneURL,
		},
		Pusher: os.Getenv("GITHUB_ACTOR"),
	}, nil
}

func cmdRun() *cli.Command {
	var (
		releaseCfg releaseConfig
		triggerCfg trigger
	)

	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Run the release pipeline once for a pushed ref",
		Flags:   append(triggerCfg.Flags(), releaseCfg.Flags()...),
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := ctxlog.From(ctx)

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			if timeout := releaseCfg.execution.RunTimeout; timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			spec, err := releaseCfg.pipeline.Load()
			if err != nil {
				return err
			}

			// Decide before any credential or client is required
			if _, ok := spec.Trigger.Match(triggerCfg.Ref); !ok {
				logger.Info("Nothing to release", "ref", triggerCfg.Ref, "patterns", spec.Trigger.Tags)
				printSkipped(os.Stdout, triggerCfg.Ref)
				return nil
			}

			ev, err := triggerCfg.Event()
			if err != nil {
				return err
			}

			releaseUC, cleanup, err := releaseCfg.build(ctx, spec)
			if err != nil {
				return err
			}
			defer cleanup()

			run, err := releaseUC.Execute(ctx, ev)
			if run != nil {
				printSummary(os.Stdout, run)
			}
			if err != nil {
				if goerr.HasTag(err, types.ErrTagConflict) {
					return goerr.Wrap(err, "release already in progress", goerr.V("ref", ev.Ref))
				}
				return err
			}
			return nil
		},
	}
}
