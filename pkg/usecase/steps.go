package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagship/pkg/domain/model"
	"github.com/m-mizutani/tagship/pkg/domain/types"
)

// diagnosticLines is how much of a failing tool's output is kept in errors
const diagnosticLines = 20

// runState carries what earlier steps produced to later ones
type runState struct {
	run   *model.Run
	tag   string
	event *model.TriggerEvent

	workDir   string
	sourceDir string
	python    string
	artifacts []*model.Artifact
}

func (uc *Release) checkout(ctx context.Context, state *runState) error {
	if state.event.Repository.CloneURL == "" {
		return goerr.New("repository clone URL is unknown", goerr.T(types.ErrTagProvisioning))
	}

	workDir, err := os.MkdirTemp(uc.workRoot, "tagship-run-")
	if err != nil {
		return goerr.Wrap(err, "failed to create working directory",
			goerr.V("work_root", uc.workRoot),
			goerr.T(types.ErrTagProvisioning))
	}
	state.workDir = workDir

	var token types.Secret
	if uc.cloneToken != nil {
		token, err = uc.cloneToken(ctx)
		if err != nil {
			return goerr.Wrap(err, "failed to get clone token", goerr.T(types.ErrTagProvisioning))
		}
	}

	co, err := uc.fetcher.Checkout(ctx, &model.CheckoutRequest{
		CloneURL:  state.event.Repository.CloneURL,
		Tag:       state.tag,
		CommitSHA: state.event.CommitSHA,
		Dir:       filepath.Join(workDir, "checkout"),
		Token:     token,
	})
	if err != nil {
		return goerr.Wrap(err, "failed to check out tag", goerr.V("tag", state.tag))
	}

	state.sourceDir = co.Dir
	state.run.CommitSHA = co.CommitSHA
	ctxlog.From(ctx).Info("Checked out source",
		"commit_sha", co.CommitSHA,
		"dir", co.Dir,
	)
	return nil
}

func (uc *Release) setup(ctx context.Context, state *runState) error {
	rt := uc.spec.Runtime

	res, err := uc.runTool(ctx, &model.Command{
		Path: rt.Interpreter,
		Args: []string{"--version"},
		Dir:  state.workDir,
	}, goerr.T(types.ErrTagProvisioning))
	if err != nil {
		return err
	}

	// Old interpreters print their version to stderr
	output := strings.TrimSpace(string(res.Stdout) + "\n" + string(res.Stderr))
	version, err := model.ParseInterpreterVersion(output)
	if err != nil {
		return goerr.Wrap(err, "failed to read interpreter version", goerr.T(types.ErrTagProvisioning))
	}
	if !rt.Matches(version) {
		return goerr.New("interpreter version does not match the pinned version",
			goerr.V("interpreter", rt.Interpreter),
			goerr.V("want", rt.Version),
			goerr.V("got", version),
			goerr.T(types.ErrTagProvisioning))
	}
	ctxlog.From(ctx).Info("Interpreter found", "interpreter", rt.Interpreter, "version", version)

	venv := filepath.Join(state.workDir, "venv")
	if _, err := uc.runTool(ctx, &model.Command{
		Path: rt.Interpreter,
		Args: []string{"-m", "venv", venv},
		Dir:  state.workDir,
	}, goerr.T(types.ErrTagProvisioning)); err != nil {
		return err
	}

	state.python = filepath.Join(venv, "bin", "python")
	return nil
}

func (uc *Release) install(ctx context.Context, state *runState) error {
	spec := uc.spec.Install

	if spec.UpgradeInstaller {
		if _, err := uc.runTool(ctx, &model.Command{
			Path: state.python,
			Args: []string{"-m", "pip", "install", "--upgrade", "pip"},
			Dir:  state.sourceDir,
		}, goerr.T(types.ErrTagProvisioning)); err != nil {
			return err
		}
	}

	if len(spec.Packages) == 0 {
		return nil
	}

	args := append([]string{"-m", "pip", "install"}, spec.Packages...)
	if _, err := uc.runTool(ctx, &model.Command{
		Path: state.python,
		Args: args,
		Dir:  state.sourceDir,
	}, goerr.T(types.ErrTagProvisioning)); err != nil {
		return err
	}

	ctxlog.From(ctx).Info("Installed packaging tools", "packages", spec.Packages)
	return nil
}

func (uc *Release) build(ctx context.Context, state *runState) error {
	spec := uc.spec.Build

	path := spec.Command[0]
	if path == "python" || path == "python3" {
		path = state.python
	}
	if _, err := uc.runTool(ctx, &model.Command{
		Path: path,
		Args: spec.Command[1:],
		Dir:  state.sourceDir,
	}, goerr.T(types.ErrTagBuild)); err != nil {
		return err
	}

	outDir := filepath.Join(state.sourceDir, spec.OutputDir)
	entries, err := os.ReadDir(outDir)
	if err != nil {
		if os.IsNotExist(err) {
			return goerr.New("build produced no artifacts",
				goerr.V("output_dir", spec.OutputDir),
				goerr.T(types.ErrTagBuild))
		}
		return goerr.Wrap(err, "failed to read output directory",
			goerr.V("output_dir", spec.OutputDir),
			goerr.T(types.ErrTagBuild))
	}

	var artifacts []*model.Artifact
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		artifact, err := uc.registry.Inspect(ctx, filepath.Join(outDir, entry.Name()))
		if err != nil {
			return goerr.Wrap(err, "failed to inspect artifact",
				goerr.V("file", entry.Name()),
				goerr.T(types.ErrTagBuild))
		}
		artifacts = append(artifacts, artifact)
	}

	if len(artifacts) == 0 {
		return goerr.New("build produced no artifacts",
			goerr.V("output_dir", spec.OutputDir),
			goerr.T(types.ErrTagBuild))
	}

	if spec.VerifyVersion {
		for _, artifact := range artifacts {
			if !artifact.MatchesTag(state.tag) {
				return goerr.New("artifact version does not match tag",
					goerr.V("file", artifact.Filename),
					goerr.V("version", artifact.Metadata.Version),
					goerr.V("tag", state.tag),
					goerr.T(types.ErrTagBuild))
			}
		}
	}

	state.artifacts = artifacts
	for _, artifact := range artifacts {
		state.run.Artifacts = append(state.run.Artifacts, artifact.Filename)
	}
	ctxlog.From(ctx).Info("Build produced artifacts", "artifacts", state.run.Artifacts)
	return nil
}

func (uc *Release) publish(ctx context.Context, state *runState) error {
	logger := ctxlog.From(ctx)

	if len(state.artifacts) == 0 {
		return goerr.New("nothing to publish", goerr.T(types.ErrTagPublish))
	}

	for _, artifact := range state.artifacts {
		logger.Info("Uploading artifact",
			"file", artifact.Filename,
			"size", artifact.Size,
			"sha256", artifact.SHA256,
		)
		if err := uc.registry.Upload(ctx, artifact); err != nil {
			return goerr.Wrap(err, "failed to upload artifact",
				goerr.V("file", artifact.Filename),
				goerr.T(types.ErrTagPublish))
		}
	}

	logger.Info("Published artifacts", "count", len(state.artifacts))
	return nil
}

// runTool runs an external tool and turns a non-zero exit into an error
// carrying the tail of its output
func (uc *Release) runTool(ctx context.Context, cmd *model.Command, tag goerr.Option) (*model.CommandResult, error) {
	logger := ctxlog.From(ctx)
	logger.Debug("Running tool", "path", cmd.Path, "args", cmd.Args, "dir", cmd.Dir)

	res, err := uc.runner.Run(ctx, cmd)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to run tool",
			goerr.V("path", cmd.Path),
			tag)
	}

	logger.Debug("Tool finished",
		"path", cmd.Path,
		"exit_code", res.ExitCode,
		"duration_ms", res.Duration.Milliseconds(),
		"stdout", tail(string(res.Stdout), diagnosticLines),
	)

	if !res.Success() {
		diag := tail(string(res.Stderr), diagnosticLines)
		if diag == "" {
			diag = tail(string(res.Stdout), diagnosticLines)
		}
		logger.Error("Tool failed",
			"path", cmd.Path,
			"exit_code", res.ExitCode,
			"output", diag,
		)
		return res, goerr.New(fmt.Sprintf("%s exited with status %d: %s", filepath.Base(cmd.Path), res.ExitCode, lastLine(diag)),
			goerr.V("path", cmd.Path),
			goerr.V("args", cmd.Args),
			goerr.V("exit_code", res.ExitCode),
			goerr.V("output", diag),
			tag)
	}

	return res, nil
}

func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
