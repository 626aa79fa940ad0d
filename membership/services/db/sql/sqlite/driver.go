/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package sqlite

import (
	"database/sql"
	"strconv"
	"strings"

	"github.com/hyperledger-labs/fabric-bnms/membership/services/db/driver"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/db/sql/common"
	"github.com/pkg/errors"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	Persistence = "sqlite"
	driverName  = "sqlite"

	busyTimeoutMillis = 5000
)

type Driver struct {
	// SkipPragmas leaves the journal mode of the database untouched.
	SkipPragmas bool
}

func NewNamedDriver() driver.NamedDriver {
	return driver.NamedDriver{Name: Persistence, Driver: &Driver{}}
}

func (d *Driver) Open(opts driver.Opts) (driver.Store, error) {
	return Open(opts, d.SkipPragmas)
}

// Open opens a sqlite backed store. Unless skipPragmas is set, every connection runs in
// WAL mode with a busy timeout, so concurrent writers wait instead of failing.
func Open(opts driver.Opts, skipPragmas bool) (*common.Store, error) {
	if len(opts.DataSource) == 0 {
		return nil, errors.New("sqlite data source not set")
	}
	tables, err := common.GetTableNames(opts.TablePrefix)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driverName, DataSource(opts.DataSource, skipPragmas))
	if err != nil {
		return nil, errors.Wrapf(err, "failed opening sqlite database [%s]", opts.DataSource)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if err := db.Ping(); err != nil {
		common.Close(db)
		return nil, errors.Wrapf(err, "failed connecting to sqlite database [%s]", opts.DataSource)
	}
	store := common.NewStore(db, tables, IsDuplicate)
	if opts.CreateSchema {
		if err := store.CreateSchema(); err != nil {
			common.Close(db)
			return nil, err
		}
	}
	return store, nil
}

// DataSource appends the connection pragmas to the data source.
func DataSource(dataSource string, skipPragmas bool) string {
	pragmas := []string{"_pragma=busy_timeout(" + strconv.Itoa(busyTimeoutMillis) + ")"}
	if !skipPragmas {
		pragmas = append(pragmas, "_pragma=journal_mode(WAL)")
	}
	separator := "?"
	if strings.Contains(dataSource, "?") {
		separator = "&"
	}
	return dataSource + separator + strings.Join(pragmas, "&")
}

// IsDuplicate reports unique and primary key violations.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
