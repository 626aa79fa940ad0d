/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package memory

import (
	"github.com/hashicorp/go-uuid"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/db/driver"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/db/sql/sqlite"
	"github.com/pkg/errors"
)

const Persistence = "memory"

// Driver opens private in-memory sqlite databases. Each store gets its own database,
// served by a single connection so that it lives as long as the store.
type Driver struct{}

func NewNamedDriver() driver.NamedDriver {
	return driver.NamedDriver{Name: Persistence, Driver: &Driver{}}
}

func (d *Driver) Open(opts driver.Opts) (driver.Store, error) {
	name, err := uuid.GenerateUUID()
	if err != nil {
		return nil, errors.Wrap(err, "failed generating database name")
	}
	return sqlite.Open(driver.Opts{
		DataSource:   "file:" + name + "?mode=memory",
		TablePrefix:  opts.TablePrefix,
		MaxOpenConns: 1,
		CreateSchema: true,
	}, true)
}
