package packager

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"howett.net/plist"

	"github.com/oshokin/cleo-build/internal/domain/layout"
	"github.com/oshokin/cleo-build/internal/logger"
	"github.com/oshokin/cleo-build/internal/runner"
)

// DpkgDeb is the packaging tool invoked on the staged tree.
const DpkgDeb = "dpkg-deb"

// dryRunStage stands in for the staging directory in printed commands.
const dryRunStage = "<staging-dir>"

const (
	dirMode     os.FileMode = 0o755
	controlMode os.FileMode = 0o644
	dylibMode   os.FileMode = 0o755
)

var (
	// ErrInvalidControl is returned when the control file lacks mandatory fields.
	ErrInvalidControl = errors.New("invalid control file")
	// ErrInvalidFilter is returned when the filter plist has no Filter dictionary.
	ErrInvalidFilter = errors.New("invalid filter plist")

	errRunnerRequired = errors.New("runner must be set")
)

// requiredControlFields must appear in every control variant.
var requiredControlFields = []string{"Package", "Version", "Architecture"}

// Options contains inputs for a packaging run.
type Options struct {
	// ProjectDir holds deb/control.<scheme> and deb/cleo.plist.
	ProjectDir string
	// OutputDir receives the .deb.
	OutputDir string
	// Dylib is the signed library to ship.
	Dylib string
	// Product is the installed file stem (CLEO).
	Product string
	// Scheme picks the control variant, install directory and package name.
	Scheme layout.Scheme
	// Compression is passed to dpkg-deb -Z.
	Compression string
	// Runner executes dpkg-deb.
	Runner runner.Runner
	// DryRun hands dpkg-deb to the runner without staging anything or
	// touching an existing package.
	DryRun bool
}

// packager holds the state of one staging run.
type packager struct {
	opts  *Options
	stage string
}

// Run stages the package tree, builds the .deb and returns its path.
func Run(ctx context.Context, opts *Options) (string, error) {
	ctx = logger.WithName(ctx, "packager")

	if opts.Runner == nil {
		return "", errRunnerRequired
	}

	controlPath := layout.ControlSource(opts.ProjectDir, opts.Scheme)
	if err := ValidateControl(controlPath); err != nil {
		return "", err
	}

	plistPath := layout.PlistSource(opts.ProjectDir)
	if err := ValidateFilter(plistPath); err != nil {
		return "", err
	}

	if opts.DryRun {
		p := &packager{opts: opts, stage: dryRunStage}
		return p.build(ctx)
	}

	stage, err := os.MkdirTemp("", "cleo-package-")
	if err != nil {
		return "", fmt.Errorf("create staging directory: %w", err)
	}

	defer func() {
		if removeErr := os.RemoveAll(stage); removeErr != nil {
			logger.WarnKV(ctx, "Unable to remove staging directory", "path", stage, "error", removeErr)
		}
	}()

	p := &packager{opts: opts, stage: stage}

	logger.InfoKV(ctx, "Staging package", "scheme", opts.Scheme.String(), "stage", stage)

	if err = p.populate(controlPath, plistPath); err != nil {
		return "", err
	}

	return p.build(ctx)
}

// populate lays out DEBIAN/ and the MobileSubstrate directory inside the stage.
func (p *packager) populate(controlPath, plistPath string) error {
	controlDir := filepath.Join(p.stage, layout.ControlDir)
	if err := os.Mkdir(controlDir, dirMode); err != nil {
		return fmt.Errorf("create %s: %w", layout.ControlDir, err)
	}

	substrateDir := filepath.Join(p.stage, filepath.FromSlash(layout.SubstrateDir(p.opts.Scheme)))
	if err := os.MkdirAll(substrateDir, dirMode); err != nil {
		return fmt.Errorf("create substrate directory: %w", err)
	}

	copies := []struct {
		src, dst string
		mode     os.FileMode
	}{
		{controlPath, filepath.Join(controlDir, layout.ControlFilename), controlMode},
		{plistPath, filepath.Join(substrateDir, p.opts.Product+".plist"), controlMode},
		{p.opts.Dylib, filepath.Join(substrateDir, p.opts.Product+".dylib"), dylibMode},
	}

	for _, c := range copies {
		if err := copyFile(c.src, c.dst, c.mode); err != nil {
			return err
		}
	}

	return nil
}

// build removes an outdated package and runs dpkg-deb.
func (p *packager) build(ctx context.Context) (string, error) {
	debPath := layout.DebPath(p.opts.OutputDir, p.opts.Scheme)

	if !p.opts.DryRun {
		if err := os.Remove(debPath); err == nil {
			logger.DebugKV(ctx, "Removed previous package", "deb", debPath)
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("remove previous package: %w", err)
		}
	}

	step := runner.Step{
		Name:    DpkgDeb,
		Program: DpkgDeb,
		Args:    []string{"-Z", p.opts.Compression, "-b", p.stage, debPath},
	}

	if err := p.opts.Runner.Run(ctx, step); err != nil {
		return "", err
	}

	if !p.opts.DryRun {
		logger.InfoKV(ctx, "Package built", "deb", debPath)
	}

	return debPath, nil
}

// ValidateControl checks that the control file carries the mandatory fields.
func ValidateControl(path string) error {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("read control file: %w", err)
	}

	fields := make(map[string]string)

	scanner := bufio.NewScanner(bytes.NewReader(contents))
	for scanner.Scan() {
		line := scanner.Text()
		// Continuation lines belong to the previous field.
		if line == "" || strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") {
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return fmt.Errorf("%s: line %q: %w", path, line, ErrInvalidControl)
		}

		fields[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	if err = scanner.Err(); err != nil {
		return fmt.Errorf("scan control file: %w", err)
	}

	for _, name := range requiredControlFields {
		if fields[name] == "" {
			return fmt.Errorf("%s: missing %s: %w", path, name, ErrInvalidControl)
		}
	}

	return nil
}

// ValidateFilter checks that the MobileSubstrate filter plist parses and
// contains a Filter dictionary. Any plist format is accepted.
func ValidateFilter(path string) error {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("read filter plist: %w", err)
	}

	var document map[string]any
	if _, err = plist.Unmarshal(contents, &document); err != nil {
		return fmt.Errorf("%s: %w: %w", path, ErrInvalidFilter, err)
	}

	filter, ok := document["Filter"].(map[string]any)
	if !ok || len(filter) == 0 {
		return fmt.Errorf("%s: no Filter dictionary: %w", path, ErrInvalidFilter)
	}

	return nil
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return fmt.Errorf("copy into stage: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(filepath.Clean(dst), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("copy into stage: %w", err)
	}

	if _, err = io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy into stage: %w", err)
	}

	if err = out.Close(); err != nil {
		return fmt.Errorf("close staged file: %w", err)
	}

	return nil
}
