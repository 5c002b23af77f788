package command

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagship/pkg/domain/model"
	"github.com/m-mizutani/tagship/pkg/domain/types"
)

const redacted = "[REDACTED]"

// passthroughEnv is the set of host variables visible to tools. Everything
// else must be declared on the command.
var passthroughEnv = []string{"PATH", "HOME", "TMPDIR", "LANG", "LC_ALL", "SSL_CERT_FILE", "PIP_INDEX_URL"}

// Runner executes external tools as child processes
type Runner struct {
	secrets []string
}

// Option configures a Runner
type Option func(*Runner)

// WithSecrets registers values that are scrubbed from captured output
func WithSecrets(secrets ...types.Secret) Option {
	return func(r *Runner) {
		for _, s := range secrets {
			if !s.IsEmpty() {
				r.secrets = append(r.secrets, s.Unsafe())
			}
		}
	}
}

// NewRunner creates a Runner
func NewRunner(opts ...Option) *Runner {
	r := &Runner{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run starts the command and waits for it. Cancelling ctx kills the whole
// process group of the command.
func (r *Runner) Run(ctx context.Context, cmd *model.Command) (*model.CommandResult, error) {
	if cmd == nil || cmd.Path == "" {
		return nil, goerr.New("command is empty")
	}
	logger := ctxlog.From(ctx)

	c := exec.Command(cmd.Path, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = buildEnv(cmd.Env)
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	logger.Debug("Starting command",
		"path", cmd.Path,
		"args", r.Scrub(strings.Join(cmd.Args, " ")),
		"dir", cmd.Dir,
	)

	start := time.Now()
	if err := c.Start(); err != nil {
		return nil, goerr.Wrap(err, "failed to start command", goerr.V("path", cmd.Path))
	}

	done := make(chan error, 1)
	go func() {
		done <- c.Wait()
	}()

	var err error
	select {
	case <-ctx.Done():
		if c.Process != nil {
			_ = syscall.Kill(-c.Process.Pid, syscall.SIGKILL)
		}
		<-done
		return nil, goerr.Wrap(ctx.Err(), "command cancelled", goerr.V("path", cmd.Path))
	case err = <-done:
	}

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, goerr.Wrap(err, "failed to execute command", goerr.V("path", cmd.Path))
		}
		exitCode = exitErr.ExitCode()
	}

	result := &model.CommandResult{
		ExitCode: exitCode,
		Stdout:   []byte(r.Scrub(stdout.String())),
		Stderr:   []byte(r.Scrub(stderr.String())),
		Duration: time.Since(start),
	}

	logger.Debug("Command finished",
		"path", cmd.Path,
		"exit_code", result.ExitCode,
		"duration_ms", result.Duration.Milliseconds(),
	)

	return result, nil
}

// Scrub replaces every registered secret in s
func (r *Runner) Scrub(s string) string {
	for _, secret := range r.secrets {
		s = strings.ReplaceAll(s, secret, redacted)
	}
	return s
}

func buildEnv(declared map[string]string) []string {
	env := make(map[string]string, len(passthroughEnv)+len(declared))
	for _, key := range passthroughEnv {
		if v, ok := os.LookupEnv(key); ok {
			env[key] = v
		}
	}
	for k, v := range declared {
		env[k] = v
	}

	result := make([]string, 0, len(env))
	for k, v := range env {
		result = append(result, k+"="+v)
	}
	sort.Strings(result)
	return result
}
