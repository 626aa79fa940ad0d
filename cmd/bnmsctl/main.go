/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"os"

	"github.com/hyperledger-labs/fabric-bnms/cmd/bnmsctl/cobra/config"
	"github.com/hyperledger-labs/fabric-bnms/cmd/bnmsctl/cobra/demo"
	"github.com/hyperledger-labs/fabric-bnms/cmd/bnmsctl/cobra/schema"
	"github.com/hyperledger-labs/fabric-bnms/cmd/bnmsctl/cobra/version"
	"github.com/spf13/cobra"
)

// The main command describes the service and
// defaults to printing the help message.
var mainCmd = &cobra.Command{Use: "bnmsctl"}

func main() {
	mainCmd.AddCommand(version.Cmd())
	mainCmd.AddCommand(schema.Cmd())
	mainCmd.AddCommand(config.Cmd())
	mainCmd.AddCommand(demo.Cmd())

	// On failure Cobra prints the usage message and error string, so we only
	// need to exit with a non-0 status
	if mainCmd.Execute() != nil {
		os.Exit(1)
	}
}
