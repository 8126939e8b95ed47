// SPDX-License-Identifier: MPL-2.0

// Command packdeploy deploys a behavior pack and resource pack into a world.
package main

import cmd "github.com/questsystem/packdeploy/cmd/packdeploy"

func main() {
	cmd.Execute()
}
