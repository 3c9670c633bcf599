package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/oshokin/cleo-build/internal/domain/layout"
	"github.com/oshokin/cleo-build/internal/repository/record"
)

// Plan describes what Run would do without doing it.
type Plan struct {
	// Profile is "release" or "debug".
	Profile string
	// Scheme is "rootless" or "rootful".
	Scheme string
	// OutputDir is the cargo output directory of the profile.
	OutputDir string
	// Dylib is the library that gets signed.
	Dylib string
	// Package is the .deb path, empty when not packaging.
	Package string
	// Stages are the stage names in execution order.
	Stages []string
	// Previous is the last build record of the profile, if any.
	Previous *record.Record
}

// Describe resolves the stages and paths selected by opts.
func Describe(ctx context.Context, opts *Options) (*Plan, error) {
	p, err := newPipeline(opts)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		Profile:   layout.Profile(opts.Flags.Release),
		Scheme:    p.scheme.String(),
		OutputDir: p.outputDir,
		Dylib:     p.dylib,
	}

	if opts.Flags.Package {
		plan.Package = layout.DebPath(p.outputDir, p.scheme)
	}

	for _, s := range p.stages() {
		plan.Stages = append(plan.Stages, s.name)
	}

	previous, err := p.records.Load(ctx)

	switch {
	case err == nil:
		plan.Previous = previous
	case errors.Is(err, record.ErrNotFound):
	default:
		return nil, err
	}

	return plan, nil
}

// Print writes a human-readable rendering of the plan.
func (p *Plan) Print(w io.Writer) error {
	var b strings.Builder

	fmt.Fprintf(&b, "profile:  %s\n", p.Profile)
	fmt.Fprintf(&b, "scheme:   %s\n", p.Scheme)
	fmt.Fprintf(&b, "output:   %s\n", p.OutputDir)
	fmt.Fprintf(&b, "dylib:    %s\n", p.Dylib)

	if p.Package != "" {
		fmt.Fprintf(&b, "package:  %s\n", p.Package)
	}

	fmt.Fprintf(&b, "stages:   %s\n", strings.Join(p.Stages, " -> "))

	if p.Previous != nil {
		fmt.Fprintf(&b, "previous: %s by cleo-build %s",
			p.Previous.FinishedAt.Format("2006-01-02 15:04:05 MST"), p.Previous.Tool)

		if p.Previous.InstalledTo != "" {
			fmt.Fprintf(&b, ", installed to %s", p.Previous.InstalledTo)
		}

		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())

	return err
}
