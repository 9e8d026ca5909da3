////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package cmd

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// SEMVER is the version of the node
const SEMVER = "0.1.0"

// GITVERSION is set at build time with
// -ldflags "-X gitlab.com/elixxir/plume/cmd.GITVERSION=$(git rev-parse HEAD)"
var GITVERSION = "unknown"

func init() {
	rootCmd.AddCommand(versionCmd)
}

func printVersion() {
	fmt.Printf("Plume Node v%s -- %s\n\n", SEMVER, GITVERSION)
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	fmt.Printf("Dependencies:\n\n")
	for _, dep := range info.Deps {
		fmt.Printf("%s %s\n", dep.Path, dep.Version)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of the Plume Node",
	Long: `Print the version number of the Plume Node. This also prints
the versions of all of its dependencies.`,
	Run: func(cmd *cobra.Command, args []string) {
		printVersion()
	},
}
