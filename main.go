// SPDX-License-Identifier: MPL-2.0

// ntcomp keeps NodeTool's locally installed components current.
package main

import cmd "github.com/nodetool-ai/ntcomp/cmd/ntcomp"

func main() {
	cmd.Execute()
}
