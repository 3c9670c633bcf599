package runner

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestCommandLine checks quoting of arguments that need it.
func TestCommandLine(t *testing.T) {
	t.Parallel()

	step := Step{
		Program: "/opt/My Tools/clang",
		Args:    []string{"-fpic", "-o", "out.dylib", "it's", ""},
	}

	require.Equal(t, `'/opt/My Tools/clang' -fpic -o out.dylib 'it'"'"'s' ''`, step.CommandLine())
}

// TestStepError checks the message and matching helpers.
func TestStepError(t *testing.T) {
	t.Parallel()

	inner := errors.New("exit status 2")
	err := error(&StepError{Name: "dpkg-deb", ExitCode: 2, Err: inner})

	require.EqualError(t, err, "'dpkg-deb' returned a non-zero exit code (exit code 2)")
	require.ErrorIs(t, err, ErrStepFailed)
	require.ErrorIs(t, err, inner)

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	require.Equal(t, "dpkg-deb", stepErr.Name)
}

// TestExecRunner runs real processes through a POSIX shell.
func TestExecRunner(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}

	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	var stdout, echo bytes.Buffer

	r := &ExecRunner{Stdout: &stdout, Stderr: &stdout, Echo: &echo, Verbose: true}

	err := r.Run(context.Background(), Step{Name: "echo", Program: "sh", Args: []string{"-c", "echo built"}})
	require.NoError(t, err)
	require.Equal(t, "built\n", stdout.String())
	require.Equal(t, "sh -c 'echo built'\n", echo.String())

	err = r.Run(context.Background(), Step{Name: "cargo build", Program: "sh", Args: []string{"-c", "exit 3"}})

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	require.Equal(t, "cargo build", stepErr.Name)
	require.Equal(t, 3, stepErr.ExitCode)
}

// TestExecRunnerMissingProgram reports tools that cannot start.
func TestExecRunnerMissingProgram(t *testing.T) {
	t.Parallel()

	r := &ExecRunner{Stdout: new(bytes.Buffer), Stderr: new(bytes.Buffer)}

	err := r.Run(context.Background(), Step{Name: "ldid", Program: "/nonexistent/ldid-for-tests"})

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	require.Equal(t, -1, stepErr.ExitCode)
}

// TestExecRunnerDryRun prints without executing.
func TestExecRunnerDryRun(t *testing.T) {
	t.Parallel()

	var echo bytes.Buffer

	r := &ExecRunner{Echo: &echo, DryRun: true}

	err := r.Run(context.Background(), Step{Name: "ldid", Program: "/nonexistent/ldid-for-tests", Args: []string{"-S", "lib.dylib"}})
	require.NoError(t, err)
	require.Equal(t, "/nonexistent/ldid-for-tests -S lib.dylib\n", echo.String())
}

// TestRecorder covers recording, failures and hooks.
func TestRecorder(t *testing.T) {
	t.Parallel()

	hooked := false

	rec := NewRecorder().
		FailOn("ssh", 255).
		OnStep("scp", func(Step) error {
			hooked = true
			return nil
		})

	ctx := context.Background()

	require.NoError(t, rec.Run(ctx, Step{Name: "scp"}))
	require.True(t, hooked)

	err := rec.Run(ctx, Step{Name: "ssh"})
	require.ErrorIs(t, err, ErrStepFailed)
	require.Equal(t, []string{"scp", "ssh"}, rec.Names())

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	require.ErrorIs(t, rec.Run(cancelled, Step{Name: "cargo build"}), context.Canceled)
	require.Len(t, rec.Steps(), 2)
}
