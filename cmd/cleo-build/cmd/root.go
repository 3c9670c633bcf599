package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/oshokin/cleo-build/internal/config"
	"github.com/oshokin/cleo-build/internal/logger"
	"github.com/oshokin/cleo-build/internal/runner"
	"github.com/oshokin/cleo-build/internal/service/build"
	"github.com/oshokin/cleo-build/internal/version"
)

// settings collects the flag values of one invocation.
type settings struct {
	configPath string
	projectDir string
	logLevel   string
	flags      build.Flags
}

// newRootCmd builds the cleo-build command tree.
func newRootCmd() *cobra.Command {
	s := new(settings)

	rootCmd := &cobra.Command{
		Use:   "cleo-build",
		Short: "Build, sign, package and install the CLEO tweak.",
		Long: `Builds the CLEO crate for aarch64-apple-ios and turns it into a signed tweak.

On macOS cargo produces the dylib directly. Elsewhere the static archive is
linked with $CLEO_CLANG against $CLEO_IOS_SDK. The dylib is always signed with
$CLEO_LDID. --package wraps it into a .deb, --install sends it to
$CLEO_INSTALL_HOST over scp and ssh.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			opts, err := s.options(cmd.OutOrStdout(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			return build.Run(ctx, opts)
		},
	}

	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the stages and paths the selected flags lead to.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := s.options(cmd.OutOrStdout(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			plan, err := build.Describe(cmd.Context(), opts)
			if err != nil {
				return err
			}

			return plan.Print(cmd.OutOrStdout())
		},
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a settings file with the default values.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			projectDir, err := s.resolveProjectDir()
			if err != nil {
				return err
			}

			path := s.configPath
			if path == "" {
				path = filepath.Join(projectDir, config.DefaultConfigFilename)
			}

			if _, err = os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}

			if err = config.Save(path, config.New("")); err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), "wrote", path)

			return err
		},
	}

	rootCmd.AddCommand(planCmd, initCmd)
	version.AttachCobraVersionCommand(rootCmd)

	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&s.flags.Verbose, "verbose", "v", false, "print every command before running it")
	flags.BoolVar(&s.flags.Rootless, "rootless", false, "target the rootless (/var/jb) layout")
	flags.BoolVar(&s.flags.Release, "release", false, "build the release profile instead of debug")
	flags.BoolVar(&s.flags.Package, "package", false, "wrap the signed dylib into a .deb")
	flags.BoolVar(&s.flags.Install, "install", false, "install on $CLEO_INSTALL_HOST")
	flags.BoolVar(&s.flags.DryRun, "dry-run", false, "print the commands without running them")
	flags.StringVarP(&s.configPath, "config", "c", "", "path to configuration file (default <dir>/"+config.DefaultConfigFilename+")")
	flags.StringVarP(&s.projectDir, "dir", "C", "", "CLEO project directory (default current directory)")
	flags.StringVar(&s.logLevel, "log-level", "", "log level: debug, info, warn, error")

	return rootCmd
}

// options turns flags, configuration file and environment into build options.
func (s *settings) options(stdout, stderr io.Writer) (*build.Options, error) {
	if err := s.applyLogLevel(); err != nil {
		return nil, err
	}

	projectDir, err := s.resolveProjectDir()
	if err != nil {
		return nil, err
	}

	// The default file is optional, an explicit one is not.
	configPath, optional := s.configPath, false
	if configPath == "" {
		configPath, optional = filepath.Join(projectDir, config.DefaultConfigFilename), true
	}

	cfg, err := config.Load(configPath, optional)
	if err != nil {
		return nil, err
	}

	// --dir wins over the file; a relative project_dir is relative to the file.
	switch {
	case s.projectDir != "" || cfg.ProjectDir == "":
		cfg.ProjectDir = projectDir
	case !filepath.IsAbs(cfg.ProjectDir):
		cfg.ProjectDir = filepath.Join(filepath.Dir(configPath), cfg.ProjectDir)
	}

	return &build.Options{
		Config: cfg,
		Env:    config.NewEnv(nil),
		Runner: &runner.ExecRunner{
			Stdout:  stdout,
			Stderr:  stderr,
			Echo:    stdout,
			Verbose: s.flags.Verbose || logger.Level() == zapcore.DebugLevel,
			DryRun:  s.flags.DryRun,
		},
		Flags: s.flags,
	}, nil
}

func (s *settings) applyLogLevel() error {
	level := zapcore.InfoLevel
	if s.flags.Verbose {
		level = zapcore.DebugLevel
	}

	if s.logLevel != "" {
		parsed, ok := logger.ParseLogLevel(s.logLevel)
		if !ok {
			return fmt.Errorf("unknown log level %q", s.logLevel)
		}

		level = parsed
	}

	logger.SetLevel(level)

	return nil
}

func (s *settings) resolveProjectDir() (string, error) {
	dir := s.projectDir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("working directory: %w", err)
		}

		dir = wd
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("project directory: %w", err)
	}

	return abs, nil
}

// Execute runs the cleo-build CLI and exits with non-zero status on error.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		logger.Error(context.Background(), err)
		os.Exit(1)
	}
}
