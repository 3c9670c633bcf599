package cmd

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/oshokin/cleo-build/internal/config"
	"github.com/oshokin/cleo-build/internal/logger"
	"github.com/oshokin/cleo-build/internal/runner"
)

// execute runs the command tree with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	err := root.Execute()

	return out.String(), err
}

// TestPlan prints stages for the selected flags.
func TestPlan(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, "plan", "--dir", dir, "--release", "--rootless", "--package")
	require.NoError(t, err)
	require.Contains(t, out, "profile:  release")
	require.Contains(t, out, "scheme:   rootless")
	require.Contains(t, out, filepath.Join(dir, "target", "aarch64-apple-ios", "release", "cleo.rootless.deb"))
	require.Contains(t, out, "package")
	require.NotContains(t, out, "install")
}

// TestPlanUsesConfig picks up a settings file in the project directory.
func TestPlanUsesConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, config.DefaultConfigFilename),
		[]byte("crate: cleo_core\n"),
		0o600))

	out, err := execute(t, "plan", "-C", dir)
	require.NoError(t, err)
	require.Contains(t, out, "libcleo_core.dylib")
}

// TestDirOverridesConfigProjectDir lets --dir win over project_dir in the file.
func TestDirOverridesConfigProjectDir(t *testing.T) {
	dir := t.TempDir()
	elsewhere := t.TempDir()

	configPath := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("project_dir: "+elsewhere+"\n"), 0o600))

	out, err := execute(t, "plan", "--config", configPath, "--dir", dir)
	require.NoError(t, err)
	require.Contains(t, out, filepath.Join(dir, "target", "aarch64-apple-ios", "debug"))
	require.NotContains(t, out, elsewhere)

	out, err = execute(t, "plan", "--config", configPath)
	require.NoError(t, err)
	require.Contains(t, out, filepath.Join(elsewhere, "target", "aarch64-apple-ios", "debug"))
}

// TestDebugLevelEchoesCommands prints command lines when the log level is debug.
func TestDebugLevelEchoesCommands(t *testing.T) {
	t.Cleanup(func() { logger.SetLevel(zapcore.InfoLevel) })

	s := &settings{projectDir: t.TempDir(), logLevel: "debug"}

	opts, err := s.options(io.Discard, io.Discard)
	require.NoError(t, err)
	require.True(t, opts.Runner.(*runner.ExecRunner).Verbose)

	s.logLevel = "info"

	opts, err = s.options(io.Discard, io.Discard)
	require.NoError(t, err)
	require.False(t, opts.Runner.(*runner.ExecRunner).Verbose)
}

// TestExplicitConfigMustExist rejects a missing --config file.
func TestExplicitConfigMustExist(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, "plan", "-C", dir, "--config", filepath.Join(dir, "nope.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestUnknownLogLevel is reported before anything runs.
func TestUnknownLogLevel(t *testing.T) {
	_, err := execute(t, "plan", "-C", t.TempDir(), "--log-level", "chatty")
	require.ErrorContains(t, err, "chatty")
}

// TestDryRun prints the commands without executing them.
func TestDryRun(t *testing.T) {
	dir := t.TempDir()

	t.Setenv(config.EnvClang, "/toolchain/clang")
	t.Setenv(config.EnvIOSSDK, "/sdk")
	t.Setenv(config.EnvLdid, "/bin/ldid")

	out, err := execute(t, "--dry-run", "-C", dir)
	require.NoError(t, err)
	require.Contains(t, out, "cargo ")
	require.Contains(t, out, "/bin/ldid -S ")
	require.NoFileExists(t, filepath.Join(dir, "target", "aarch64-apple-ios", "debug", "cleo-build.yaml"))
}

// TestVersion is attached to the root command.
func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	require.Contains(t, out, "cleo-build")
}

// TestInit writes default settings once.
func TestInit(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, "init", "-C", dir)
	require.NoError(t, err)
	require.Contains(t, out, config.DefaultConfigFilename)

	cfg, err := config.Load(filepath.Join(dir, config.DefaultConfigFilename), false)
	require.NoError(t, err)
	require.Equal(t, config.DefaultTarget, cfg.Target)
	require.Empty(t, cfg.ProjectDir)

	_, err = execute(t, "init", "-C", dir)
	require.ErrorContains(t, err, "already exists")
}
