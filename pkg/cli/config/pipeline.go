package config

import (
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagship/pkg/domain/model"
	"github.com/m-mizutani/tagship/pkg/domain/types"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"
)

// Pipeline holds the location of the pipeline definition file
type Pipeline struct {
	File string
}

// Flags returns CLI flags for pipeline configuration
func (c *Pipeline) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "pipeline-file",
			Usage:       "Pipeline definition in TOML, built-in defaults when omitted",
			Destination: &c.File,
			Sources:     cli.EnvVars("TAGSHIP_PIPELINE_FILE"),
		},
	}
}

// pipelineFile mirrors the TOML layout. Nil fields keep their defaults.
type pipelineFile struct {
	Trigger struct {
		Tags []string `toml:"tags"`
	} `toml:"trigger"`
	Runtime struct {
		Interpreter *string `toml:"interpreter"`
		Version     *string `toml:"version"`
	} `toml:"runtime"`
	Install struct {
		UpgradeInstaller *bool    `toml:"upgrade_installer"`
		Packages         []string `toml:"packages"`
	} `toml:"install"`
	Build struct {
		Command       []string `toml:"command"`
		OutputDir     *string  `toml:"output_dir"`
		VerifyVersion *bool    `toml:"verify_version"`
	} `toml:"build"`
	Publish struct {
		RepositoryURL *string `toml:"repository_url"`
		Username      *string `toml:"username"`
	} `toml:"publish"`
}

// Load reads the pipeline file over the defaults and validates the result
func (c *Pipeline) Load() (*model.PipelineSpec, error) {
	spec := model.DefaultPipelineSpec()

	if c.File != "" {
		f, err := os.Open(c.File)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to open pipeline file",
				goerr.V("path", c.File),
				goerr.T(types.ErrTagConfig))
		}
		defer f.Close()

		var file pipelineFile
		if err := toml.NewDecoder(f).DisallowUnknownFields().Decode(&file); err != nil {
			return nil, goerr.Wrap(err, "failed to parse pipeline file",
				goerr.V("path", c.File),
				goerr.T(types.ErrTagConfig))
		}
		file.apply(spec)
	}

	if err := spec.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid pipeline definition",
			goerr.V("path", c.File),
			goerr.T(types.ErrTagConfig))
	}
	return spec, nil
}

func (x *pipelineFile) apply(spec *model.PipelineSpec) {
	if x.Trigger.Tags != nil {
		spec.Trigger.Tags = x.Trigger.Tags
	}

	setString(&spec.Runtime.Interpreter, x.Runtime.Interpreter)
	setString(&spec.Runtime.Version, x.Runtime.Version)

	if x.Install.UpgradeInstaller != nil {
		spec.Install.UpgradeInstaller = *x.Install.UpgradeInstaller
	}
	if x.Install.Packages != nil {
		spec.Install.Packages = x.Install.Packages
	}

	if x.Build.Command != nil {
		spec.Build.Command = x.Build.Command
	}
	setString(&spec.Build.OutputDir, x.Build.OutputDir)
	if x.Build.VerifyVersion != nil {
		spec.Build.VerifyVersion = *x.Build.VerifyVersion
	}

	setString(&spec.Publish.RepositoryURL, x.Publish.RepositoryURL)
	setString(&spec.Publish.Username, x.Publish.Username)
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
