package deployer

import (
	"context"
	"errors"
	"fmt"

	"github.com/alessio/shellescape"

	"github.com/oshokin/cleo-build/internal/domain/layout"
	"github.com/oshokin/cleo-build/internal/logger"
	"github.com/oshokin/cleo-build/internal/runner"
)

const (
	// Scp copies files to the device.
	Scp = "scp"
	// SSH runs the remote install command.
	SSH = "ssh"
)

var (
	errHostRequired   = errors.New("install host must be set")
	errRunnerRequired = errors.New("runner must be set")
)

// Deployer talks to one device.
type Deployer struct {
	host   string
	user   string
	runner runner.Runner
}

// New returns a Deployer for user@host.
func New(host, user string, r runner.Runner) (*Deployer, error) {
	if host == "" {
		return nil, errHostRequired
	}

	if r == nil {
		return nil, errRunnerRequired
	}

	return &Deployer{host: host, user: user, runner: r}, nil
}

// Destination renders the scp/ssh destination.
func (d *Deployer) Destination() string {
	if d.user == "" {
		return d.host
	}

	return d.user + "@" + d.host
}

// Copy uploads a local file to remote.
func (d *Deployer) Copy(ctx context.Context, local, remote string) error {
	logger.DebugKV(ctx, "Copying to device", "local", local, "remote", remote)

	return d.runner.Run(ctx, runner.Step{
		Name:    Scp,
		Program: Scp,
		Args:    []string{"-q", local, d.Destination() + ":" + remote},
	})
}

// InstallPackage uploads deb to remotePath and installs it with dpkg through a login shell.
func (d *Deployer) InstallPackage(ctx context.Context, deb, remotePath string) error {
	ctx = logger.WithName(ctx, "deployer")

	if err := d.Copy(ctx, deb, remotePath); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Installing package", "host", d.host, "deb", remotePath)

	return d.runner.Run(ctx, runner.Step{
		Name:    SSH,
		Program: SSH,
		Args:    []string{d.Destination(), InstallCommand(remotePath)},
	})
}

// InstallFiles overwrites the tweak on the device without going through dpkg.
// The plist goes first so the dylib never loads with a stale filter.
func (d *Deployer) InstallFiles(ctx context.Context, plistPath, dylib string, scheme layout.Scheme, product string) error {
	ctx = logger.WithName(ctx, "deployer")

	stem := layout.RemoteStem(scheme, product)

	logger.InfoKV(ctx, "Replacing tweak files", "host", d.host, "target", stem)

	if err := d.Copy(ctx, plistPath, stem+".plist"); err != nil {
		return err
	}

	return d.Copy(ctx, dylib, stem+".dylib")
}

// InstallCommand is the remote command line run by ssh. A login shell is
// used so that dpkg is found on rootless PATHs. The path is quoted for the
// inner shell and the whole command again for the login shell.
func InstallCommand(remotePath string) string {
	path := shellescape.Quote(remotePath)
	install := fmt.Sprintf("dpkg -i %s && rm -f %s", path, path)

	return "exec $SHELL -l -c " + shellescape.Quote(install)
}
