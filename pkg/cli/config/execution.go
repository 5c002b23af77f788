package config

import (
	"time"

	"github.com/m-mizutani/tagship/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// Execution holds per-run resource settings
type Execution struct {
	WorkRoot    string
	KeepWorkDir bool
	RunTimeout  time.Duration
	LockTTL     time.Duration
}

// Flags returns CLI flags for run execution
func (c *Execution) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "work-root",
			Usage:       "Parent directory of per-run working directories, system temp dir when omitted",
			Destination: &c.WorkRoot,
			Sources:     cli.EnvVars("TAGSHIP_WORK_ROOT"),
		},
		&cli.BoolFlag{
			Name:        "keep-workdir",
			Usage:       "Keep working directories after every run",
			Destination: &c.KeepWorkDir,
			Sources:     cli.EnvVars("TAGSHIP_KEEP_WORKDIR"),
		},
		&cli.DurationFlag{
			Name:        "run-timeout",
			Usage:       "Abort a run after this duration, 0 for no limit",
			Destination: &c.RunTimeout,
			Sources:     cli.EnvVars("TAGSHIP_RUN_TIMEOUT"),
		},
		&cli.DurationFlag{
			Name:        "lock-ttl",
			Usage:       "Expiry of the per-tag run lock",
			Value:       usecase.DefaultLockTTL,
			Destination: &c.LockTTL,
			Sources:     cli.EnvVars("TAGSHIP_LOCK_TTL"),
		},
	}
}

// Options returns the release use case options for these settings
func (c *Execution) Options() []usecase.ReleaseOption {
	opts := []usecase.ReleaseOption{
		usecase.WithWorkRoot(c.WorkRoot),
		usecase.WithKeepWorkDir(c.KeepWorkDir),
	}
	if c.LockTTL > 0 {
		opts = append(opts, usecase.WithLockTTL(c.LockTTL))
	}
	return opts
}
