package cli

import (
	"context"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/tagship/pkg/cli/config"
	"github.com/urfave/cli/v3"
)

func cmdMigrate() *cli.Command {
	var (
		storeCfg config.Store
		dryRun   bool
	)

	flags := append(storeCfg.Flags(), &cli.BoolFlag{
		Name:        "dry-run",
		Usage:       "Show planned changes without applying them",
		Destination: &dryRun,
		Sources:     cli.EnvVars("TAGSHIP_MIGRATE_DRY_RUN"),
	})

	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply the Firestore run ledger schema (lock TTL policy)",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := storeCfg.Migrate(ctx, dryRun); err != nil {
				return err
			}
			ctxlog.From(ctx).Info("Firestore schema is up to date", "dry_run", dryRun)
			return nil
		},
	}
}
