// Package deployer pushes a build to a jailbroken device over scp and ssh.
//
// Two modes exist: installing a .deb through dpkg on the device, or
// overwriting the tweak's dylib and filter plist in place when no package
// was built.
package deployer
