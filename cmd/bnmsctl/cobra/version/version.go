/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package version

import (
	"fmt"
	"runtime"

	"github.com/hyperledger-labs/fabric-bnms/membership/services/protocol"
	"github.com/spf13/cobra"
)

const ProgramName = "bnmsctl"

// Version is set at build time.
var Version = "latest"

// Cmd returns the Cobra Command for Version
func Cmd() *cobra.Command {
	return cobraCommand
}

var cobraCommand = &cobra.Command{
	Use:   "version",
	Short: "Print current version of bnmsctl.",
	Long:  `Print current version of bnmsctl.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 {
			return fmt.Errorf("trailing args detected")
		}
		// Parsing of the command line is done so silence cmd usage
		cmd.SilenceUsage = true
		cmd.Println(GetInfo())
		return nil
	},
}

// GetInfo returns version information for bnmsctl.
func GetInfo() string {
	return fmt.Sprintf("%s:\n Version: %s\n Protocol version: %d\n Go version: %s\n OS/Arch: %s\n",
		ProgramName, Version, protocol.CurrentVersion, runtime.Version(), fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH))
}
