package provision

import (
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/juju/errors"
)

// Runner executes system commands. Tests substitute a recording fake.
type Runner interface {
	Run(ctx context.Context, stdin string, name string, args ...string) ([]byte, error)
	LookPath(name string) (string, error)
}

// ExecRunner runs commands with os/exec, non-interactively.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, stdin string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), "DEBIAN_FRONTEND=noninteractive")
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, errors.Errorf("%s %v failed: %v output=%s", name, args, err, strings.TrimSpace(string(out)))
	}
	return out, nil
}

func (ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}
