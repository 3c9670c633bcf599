package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/alessio/shellescape"

	"github.com/oshokin/cleo-build/internal/logger"
)

// ErrStepFailed is matched by every *StepError.
var ErrStepFailed = errors.New("returned a non-zero exit code")

// Step is one external tool invocation.
type Step struct {
	// Name identifies the tool in error messages ("cargo build", "ldid").
	Name string
	// Program is the executable path or name looked up in PATH.
	Program string
	// Args are passed verbatim, no shell is involved.
	Args []string
	// Dir is the working directory; empty means the current one.
	Dir string
}

// CommandLine renders the step the way a user would type it.
func (s Step) CommandLine() string {
	return shellescape.QuoteCommand(append([]string{s.Program}, s.Args...))
}

// StepError reports a tool that could not be started or exited non-zero.
type StepError struct {
	// Name is the Step name.
	Name string
	// ExitCode is the exit status, or -1 if the tool never ran.
	ExitCode int
	// Err is the underlying exec error.
	Err error
}

// Error implements error.
func (e *StepError) Error() string {
	return fmt.Sprintf("'%s' %s (exit code %d)", e.Name, ErrStepFailed, e.ExitCode)
}

// Unwrap exposes the exec error.
func (e *StepError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrStepFailed) hold.
func (e *StepError) Is(target error) bool {
	return target == ErrStepFailed
}

// Runner runs a single step to completion.
type Runner interface {
	Run(ctx context.Context, step Step) error
}

// ExecRunner runs steps as child processes.
type ExecRunner struct {
	// Stdout and Stderr receive the child's output; nil means the process streams.
	Stdout io.Writer
	Stderr io.Writer
	// Echo receives the command line before execution when Verbose or DryRun is set.
	Echo io.Writer
	// Verbose prints every command line.
	Verbose bool
	// DryRun prints the command line and skips execution.
	DryRun bool
}

// Run executes step and blocks until it exits.
func (r *ExecRunner) Run(ctx context.Context, step Step) error {
	line := step.CommandLine()

	logger.DebugKV(ctx, "Running step", "step", step.Name, "command", line)

	if r.Verbose || r.DryRun {
		_, _ = fmt.Fprintln(r.echo(), line)
	}

	if r.DryRun {
		return nil
	}

	//nolint:gosec // Running user-configured tools is the whole point.
	cmd := exec.CommandContext(ctx, step.Program, step.Args...)
	cmd.Dir = step.Dir
	cmd.Stdout = writerOr(r.Stdout, os.Stdout)
	cmd.Stderr = writerOr(r.Stderr, os.Stderr)

	if err := cmd.Run(); err != nil {
		exitCode := -1

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}

		return &StepError{Name: step.Name, ExitCode: exitCode, Err: err}
	}

	return nil
}

func (r *ExecRunner) echo() io.Writer {
	return writerOr(r.Echo, os.Stderr)
}

func writerOr(w, fallback io.Writer) io.Writer {
	if w != nil {
		return w
	}

	return fallback
}
