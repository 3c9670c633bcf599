// Command cleo-build compiles, signs, packages and deploys the CLEO tweak.
package main

import "github.com/oshokin/cleo-build/cmd/cleo-build/cmd"

func main() {
	cmd.Execute()
}
