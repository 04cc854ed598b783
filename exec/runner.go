package exec

import (
	"context"
	"errors"
	osexec "os/exec"

	"github.com/merlin-labs/merlin/resolve"
)

// Runner executes one rendered command line in a working directory and
// reports the exit code with combined output. Tests substitute a stub.
type Runner interface {
	Run(ctx context.Context, command, dir string) (exitCode int, output []byte, err error)
}

// ShellRunner runs commands through the platform shell.
type ShellRunner struct {
	Shell resolve.Shell
}

// Run executes the command via the shell adapter's invocation form. A
// non-zero exit is reported through the exit code, not the error; the error
// is reserved for failures to start or context expiry.
func (r ShellRunner) Run(ctx context.Context, command, dir string) (int, []byte, error) {
	bin, args := r.Shell.Invocation(command)
	cmd := osexec.CommandContext(ctx, bin, args...)
	cmd.Dir = dir

	output, err := cmd.CombinedOutput()
	if err == nil {
		return 0, output, nil
	}
	var exitErr *osexec.ExitError
	if errors.As(err, &exitErr) {
		// Context expiry surfaces as a killed process; report it as an
		// error so the executor can tag the step as timed out.
		if ctx.Err() != nil {
			return exitErr.ExitCode(), output, ctx.Err()
		}
		return exitErr.ExitCode(), output, nil
	}
	return -1, output, err
}
