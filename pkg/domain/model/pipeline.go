package model

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// DefaultRegistryURL is the legacy upload endpoint of the Python Package Index
const DefaultRegistryURL = "https://upload.pypi.org/legacy/"

// DefaultRegistryUsername is the identity used with API token authentication
const DefaultRegistryUsername = "__token__"

// PipelineSpec describes how a tag is turned into published artifacts
type PipelineSpec struct {
	Trigger TriggerSpec
	Runtime RuntimeSpec
	Install InstallSpec
	Build   BuildSpec
	Publish PublishSpec
}

// RuntimeSpec pins the interpreter used to build the package
type RuntimeSpec struct {
	Interpreter string // executable name or path
	Version     string // pinned version, "x" or "*" components match anything
}

// InstallSpec lists the packaging tools installed before building
type InstallSpec struct {
	UpgradeInstaller bool
	Packages         []string
}

// BuildSpec describes the packaging command and where it writes artifacts
type BuildSpec struct {
	Command       []string
	OutputDir     string
	VerifyVersion bool
}

// PublishSpec describes the registry artifacts are uploaded to
type PublishSpec struct {
	RepositoryURL string
	Username      string
}

// DefaultPipelineSpec returns the pipeline used when no definition file is given
func DefaultPipelineSpec() *PipelineSpec {
	return &PipelineSpec{
		Trigger: TriggerSpec{Tags: []string{"v*"}},
		Runtime: RuntimeSpec{Interpreter: "python3", Version: "3.x"},
		Install: InstallSpec{
			UpgradeInstaller: true,
			Packages:         []string{"setuptools", "wheel"},
		},
		Build: BuildSpec{
			Command:       []string{"python", "setup.py", "sdist", "bdist_wheel"},
			OutputDir:     "dist",
			VerifyVersion: true,
		},
		Publish: PublishSpec{
			RepositoryURL: DefaultRegistryURL,
			Username:      DefaultRegistryUsername,
		},
	}
}

// Validate checks the spec for configuration errors
func (x *PipelineSpec) Validate() error {
	if err := x.Trigger.Validate(); err != nil {
		return err
	}
	if x.Runtime.Interpreter == "" {
		return goerr.New("runtime interpreter is empty")
	}
	if x.Runtime.Version == "" {
		return goerr.New("runtime version is empty")
	}
	if len(x.Build.Command) == 0 || x.Build.Command[0] == "" {
		return goerr.New("build command is empty")
	}
	if x.Build.OutputDir == "" {
		return goerr.New("build output directory is empty")
	}
	if strings.Contains(x.Build.OutputDir, "..") {
		return goerr.New("build output directory must stay inside the checkout",
			goerr.V("output_dir", x.Build.OutputDir))
	}
	if x.Publish.RepositoryURL == "" {
		return goerr.New("publish repository URL is empty")
	}
	if x.Publish.Username == "" {
		return goerr.New("publish username is empty")
	}
	return nil
}

// Matches reports whether the version reported by the interpreter satisfies the
// pinned version. "3.x" accepts any 3 release, "3.11" any 3.11 patch release.
func (x RuntimeSpec) Matches(actual string) bool {
	want := strings.Split(strings.TrimSpace(x.Version), ".")
	got := strings.Split(strings.TrimSpace(actual), ".")
	if len(want) == 0 || want[0] == "" || len(got) < len(want) {
		return false
	}

	for i, component := range want {
		if component == "x" || component == "*" {
			continue
		}
		if component != got[i] {
			return false
		}
	}
	return true
}

// ParseInterpreterVersion extracts the version from `python --version` output,
// e.g. "Python 3.11.4" -> "3.11.4"
func ParseInterpreterVersion(output string) (string, error) {
	fields := strings.Fields(output)
	if len(fields) < 2 || !strings.EqualFold(fields[0], "python") {
		return "", goerr.New("unexpected interpreter version output", goerr.V("output", output))
	}
	return fields[1], nil
}
