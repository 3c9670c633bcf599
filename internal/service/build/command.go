package build

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/oshokin/cleo-build/internal/config"
	"github.com/oshokin/cleo-build/internal/domain/layout"
	"github.com/oshokin/cleo-build/internal/dylib"
	"github.com/oshokin/cleo-build/internal/logger"
	"github.com/oshokin/cleo-build/internal/repository/lock"
	"github.com/oshokin/cleo-build/internal/repository/record"
	"github.com/oshokin/cleo-build/internal/runner"
	"github.com/oshokin/cleo-build/internal/service/deployer"
	"github.com/oshokin/cleo-build/internal/service/packager"
	"github.com/oshokin/cleo-build/internal/version"
)

var (
	errConfigRequired = errors.New("configuration must be set")
	errRunnerRequired = errors.New("runner must be set")
)

// Flags mirror the command-line switches of cleo-build.
type Flags struct {
	Verbose  bool
	Rootless bool
	Release  bool
	Package  bool
	Install  bool
	DryRun   bool
}

// Options contains inputs for the build entry point.
type Options struct {
	// Config holds project settings; ProjectDir must be absolute.
	Config *config.Config
	// Env resolves CLEO_* variables.
	Env *config.Env
	// Runner executes external tools.
	Runner runner.Runner
	// Flags select the pipeline branches.
	Flags Flags
	// GOOS decides whether cargo can emit a dylib directly; defaults to runtime.GOOS.
	GOOS string
	// Verify inspects the produced library; defaults to dylib.Verify.
	// It is skipped in dry runs.
	Verify func(path string, requireSigned bool) error
	// Records keeps the build receipt; defaults to a file in the output directory.
	Records record.Repository
}

// pipeline holds the resolved state of one run.
type pipeline struct {
	opts      *Options
	cfg       *config.Config
	scheme    layout.Scheme
	outputDir string
	dylib     string
	deb       string
	host      string
	records   record.Repository
}

// Run executes the pipeline selected by opts.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "cleo-build")

	p, err := newPipeline(opts)
	if err != nil {
		return err
	}

	ctx = logger.WithKV(ctx,
		"profile", layout.Profile(opts.Flags.Release),
		"scheme", p.scheme.String())

	if !opts.Flags.DryRun {
		held, lockErr := lock.NewLocker(layout.TargetDir(p.cfg.ProjectDir)).Acquire(ctx)
		if lockErr != nil {
			return lockErr
		}

		defer func() {
			if releaseErr := held.Release(); releaseErr != nil {
				logger.WarnKV(ctx, "Unable to release build lock", "error", releaseErr)
			}
		}()
	}

	started := time.Now()

	for _, stage := range p.stages() {
		logger.DebugKV(ctx, "Stage started", "stage", stage.name)

		if err = stage.run(ctx); err != nil {
			return fmt.Errorf("%s: %w", stage.name, err)
		}
	}

	logger.InfoKV(ctx, "Build finished", "dylib", p.dylib, "elapsed", time.Since(started).Round(time.Millisecond))

	return nil
}

func newPipeline(opts *Options) (*pipeline, error) {
	if opts.Config == nil {
		return nil, errConfigRequired
	}

	if opts.Runner == nil {
		return nil, errRunnerRequired
	}

	if opts.Env == nil {
		opts.Env = config.NewEnv(nil)
	}

	if opts.GOOS == "" {
		opts.GOOS = runtime.GOOS
	}

	if opts.Verify == nil {
		opts.Verify = dylib.Verify
	}

	cfg := opts.Config
	outputDir := layout.OutputDir(cfg.ProjectDir, cfg.Target, opts.Flags.Release)

	records := opts.Records
	if records == nil {
		records = record.NewFileRepository(outputDir)
	}

	return &pipeline{
		opts:      opts,
		cfg:       cfg,
		scheme:    layout.Scheme(opts.Flags.Rootless),
		outputDir: outputDir,
		dylib:     layout.Dylib(outputDir, cfg.Crate),
		records:   records,
	}, nil
}

// stage is a named unit of the pipeline.
type stage struct {
	name string
	run  func(ctx context.Context) error
}

// stages returns the stages selected by the flags, in execution order.
func (p *pipeline) stages() []stage {
	stages := []stage{{"build", p.cargoBuild}}

	if !p.buildsDylibDirectly() {
		stages = append(stages, stage{"link", p.link})
	}

	stages = append(stages,
		stage{"inspect", p.inspect(false)},
		stage{"sign", p.sign},
		stage{"verify signature", p.inspect(true)},
	)

	switch {
	case p.opts.Flags.Package:
		stages = append(stages, stage{"package", p.pack})
		if p.opts.Flags.Install {
			stages = append(stages, stage{"install package", p.installPackage})
		}
	case p.opts.Flags.Install:
		stages = append(stages, stage{"install files", p.installFiles})
	}

	stages = append(stages, stage{"record", p.record})

	return stages
}

// buildsDylibDirectly reports whether cargo emits a dylib itself (macOS hosts).
func (p *pipeline) buildsDylibDirectly() bool {
	return p.opts.GOOS == "darwin"
}

func (p *pipeline) cargoBuild(ctx context.Context) error {
	return p.opts.Runner.Run(ctx, CargoStep(p.cfg, p.opts.Flags.Release, p.buildsDylibDirectly()))
}

func (p *pipeline) link(ctx context.Context) error {
	clang, err := p.opts.Env.Require(config.EnvClang)
	if err != nil {
		return err
	}

	sdk, err := p.opts.Env.Require(config.EnvIOSSDK)
	if err != nil {
		return err
	}

	return p.opts.Runner.Run(ctx, LinkStep(p.cfg, clang, sdk, p.outputDir))
}

func (p *pipeline) inspect(signed bool) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if p.opts.Flags.DryRun {
			return nil
		}

		if err := p.opts.Verify(p.dylib, signed); err != nil {
			return err
		}

		logger.DebugKV(ctx, "Library inspected", "dylib", p.dylib, "signed", signed)

		return nil
	}
}

func (p *pipeline) sign(ctx context.Context) error {
	ldid, err := p.opts.Env.Require(config.EnvLdid)
	if err != nil {
		return err
	}

	return p.opts.Runner.Run(ctx, SignStep(ldid, p.dylib))
}

func (p *pipeline) pack(ctx context.Context) error {
	deb, err := packager.Run(ctx, &packager.Options{
		ProjectDir:  p.cfg.ProjectDir,
		OutputDir:   p.outputDir,
		Dylib:       p.dylib,
		Product:     p.cfg.Product,
		Scheme:      p.scheme,
		Compression: p.cfg.Compression,
		Runner:      p.opts.Runner,
		DryRun:      p.opts.Flags.DryRun,
	})
	if err != nil {
		return err
	}

	p.deb = deb

	return nil
}

func (p *pipeline) deployer() (*deployer.Deployer, error) {
	host, err := p.opts.Env.Require(config.EnvInstallHost)
	if err != nil {
		return nil, err
	}

	p.host = host

	return deployer.New(host, p.cfg.RemoteUser, p.opts.Runner)
}

func (p *pipeline) installPackage(ctx context.Context) error {
	d, err := p.deployer()
	if err != nil {
		return err
	}

	return d.InstallPackage(ctx, p.deb, p.cfg.RemotePackagePath)
}

func (p *pipeline) installFiles(ctx context.Context) error {
	d, err := p.deployer()
	if err != nil {
		return err
	}

	return d.InstallFiles(ctx, layout.PlistSource(p.cfg.ProjectDir), p.dylib, p.scheme, p.cfg.Product)
}

// record stores the receipt. Failing to write it does not fail the build.
func (p *pipeline) record(ctx context.Context) error {
	if p.opts.Flags.DryRun {
		return nil
	}

	rec := &record.Record{
		Tool:        version.Short(),
		FinishedAt:  time.Now().UTC(),
		Profile:     layout.Profile(p.opts.Flags.Release),
		Scheme:      p.scheme.String(),
		Dylib:       p.dylib,
		Package:     p.deb,
		InstalledTo: p.host,
	}

	if actor, err := record.DetectActor(); err == nil {
		rec.Actor = actor
	}

	sum, err := record.Checksum(p.dylib)
	if err != nil {
		logger.WarnKV(ctx, "Unable to checksum library", "error", err)
	}

	rec.DylibSHA512 = sum

	if err = p.records.Save(ctx, rec); err != nil {
		logger.WarnKV(ctx, "Unable to save build record", "error", err)
		return nil
	}

	logger.DebugKV(ctx, "Build record saved", "output", p.outputDir)

	return nil
}
