package build

import (
	"github.com/oshokin/cleo-build/internal/config"
	"github.com/oshokin/cleo-build/internal/domain/layout"
	"github.com/oshokin/cleo-build/internal/runner"
)

const (
	// Cargo builds the crate.
	Cargo = "cargo"
	// Clang links the static archive into a dylib.
	Clang = "clang"
	// Ldid signs the dylib.
	Ldid = "ldid"

	// debugFeature switches CLEO into its debug code paths.
	debugFeature = "debug"
	// cdylibOverride replaces the staticlib crate type from Cargo.toml.
	cdylibOverride = `lib.crate-type=["cdylib"]`
)

// CargoStep builds the crate for the configured target.
func CargoStep(cfg *config.Config, release, dylib bool) runner.Step {
	args := make([]string, 0, 8)

	if dylib {
		args = append(args, "--config", cdylibOverride)
	}

	args = append(args, "build", "--target", cfg.Target)

	if release {
		args = append(args, "--release")
	} else {
		args = append(args, "--features", debugFeature)
	}

	return runner.Step{
		Name:    "cargo build",
		Program: Cargo,
		Args:    args,
		Dir:     cfg.ProjectDir,
	}
}

// LinkStep turns lib<crate>.a into lib<crate>.dylib with every object force-loaded.
func LinkStep(cfg *config.Config, clang, sdk, outputDir string) runner.Step {
	args := []string{
		"-fpic", "-shared", "-Wl,-all_load",
		layout.Archive(outputDir, cfg.Crate),
		"-o", layout.Dylib(outputDir, cfg.Crate),
		"-isysroot", sdk,
		"-target", cfg.LinkTarget,
	}

	for _, framework := range cfg.Frameworks {
		args = append(args, "-framework", framework)
	}

	return runner.Step{
		Name:    Clang,
		Program: clang,
		Args:    args,
	}
}

// SignStep fake-signs the dylib so the device accepts it.
func SignStep(ldid, dylib string) runner.Step {
	return runner.Step{
		Name:    Ldid,
		Program: ldid,
		Args:    []string{"-S", dylib},
	}
}
