/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package schema

import (
	"fmt"
	"io"
	"strings"

	"github.com/hyperledger-labs/fabric-bnms/membership/services/db/sql/common"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// TablePrefix is the prefix of the tables of the membership store
var TablePrefix string

// Cmd returns the Cobra Command for Schema
func Cmd() *cobra.Command {
	flags := cobraCommand.Flags()
	flags.StringVarP(&TablePrefix, "prefix", "p", "", "table prefix")

	return cobraCommand
}

var cobraCommand = &cobra.Command{
	Use:   "schema",
	Short: "Print the SQL schema of the membership store.",
	Long: `Print the SQL schema of the membership store.
The statements are understood by both sqlite and postgres.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 {
			return fmt.Errorf("trailing args detected")
		}
		// Parsing of the command line is done so silence cmd usage
		cmd.SilenceUsage = true
		return Print(cmd.OutOrStdout(), TablePrefix)
	},
}

// Print writes the schema statements for the passed table prefix.
func Print(w io.Writer, prefix string) error {
	tables, err := common.GetTableNames(prefix)
	if err != nil {
		return errors.WithMessage(err, "failed to compute table names")
	}
	for _, stmt := range common.Schema(tables) {
		if _, err := fmt.Fprintf(w, "%s;\n\n", strings.TrimSpace(stmt)); err != nil {
			return err
		}
	}
	return nil
}
