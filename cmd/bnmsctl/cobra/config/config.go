/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package config

import (
	"fmt"
	"io"

	"github.com/hyperledger-labs/fabric-bnms/membership"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/config"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/db/sql/memory"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/db/sql/postgres"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/db/sql/sqlite"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v2"
)

var drivers = []string{memory.Persistence, sqlite.Persistence, postgres.Persistence}

// ConfigPath is the configuration file, or the directory containing bnms.yaml
var ConfigPath string

// Cmd returns the Cobra Command for Config
func Cmd() *cobra.Command {
	flags := checkCommand.Flags()
	flags.StringVarP(&ConfigPath, "path", "p", ".", "configuration file or directory")

	configCommand.AddCommand(checkCommand)
	return configCommand
}

var configCommand = &cobra.Command{
	Use:   "config",
	Short: "Inspect the membership service configuration.",
}

var checkCommand = &cobra.Command{
	Use:   "check",
	Short: "Validate a configuration and print what it resolves to.",
	Long: `Validate a configuration and print what it resolves to.
Party names are not resolved against a network.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 {
			return fmt.Errorf("trailing args detected")
		}
		// Parsing of the command line is done so silence cmd usage
		cmd.SilenceUsage = true
		return Check(cmd.OutOrStdout(), ConfigPath)
	},
}

// Report is what a configuration resolves to.
type Report struct {
	Notary           string                   `yaml:"notary"`
	AutoActivate     bool                     `yaml:"autoActivate"`
	BusinessNetworks []config.BusinessNetwork `yaml:"businessNetworks"`
	Operators        []string                 `yaml:"operators"`
	DB               config.DB                `yaml:"db"`
	CacheMaxCost     int64                    `yaml:"cacheMaxCost"`
}

// Check loads the configuration at path, validates it and writes the report as YAML.
func Check(w io.Writer, path string) error {
	cp, err := config.NewProvider(path)
	if err != nil {
		return err
	}
	s, err := config.NewService(cp, offlineDirectory{})
	if err != nil {
		return errors.WithMessagef(err, "invalid configuration [%s]", path)
	}
	if len(s.NotaryName()) == 0 {
		return errors.Errorf("invalid configuration [%s]: no notary", path)
	}
	db := s.DB()
	if !slices.Contains(drivers, db.Driver) {
		return errors.Errorf("invalid configuration [%s]: unknown driver [%s], expected one of %v", path, db.Driver, drivers)
	}
	if db.Driver != memory.Persistence && len(db.DataSource) == 0 {
		return errors.Errorf("invalid configuration [%s]: driver [%s] needs a data source", path, db.Driver)
	}

	report := &Report{
		Notary:           s.NotaryName(),
		AutoActivate:     s.AutoActivate(),
		BusinessNetworks: s.RawBusinessNetworks(),
		DB:               db,
		CacheMaxCost:     s.CacheMaxCost(),
	}
	for _, operator := range s.Operators() {
		report.Operators = append(report.Operators, operator.Name)
	}
	raw, err := yaml.Marshal(report)
	if err != nil {
		return errors.Wrap(err, "failed to marshal report")
	}
	_, err = w.Write(raw)
	return err
}

// offlineDirectory resolves every name to a party without identity.
type offlineDirectory struct{}

func (offlineDirectory) WellKnownParty(name string) (membership.Party, bool) {
	return membership.Party{Name: name}, true
}

func (offlineDirectory) IsKnown(membership.Party) bool { return true }

func (offlineDirectory) Parties() []membership.Party { return nil }
