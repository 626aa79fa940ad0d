/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package postgres

import (
	"database/sql"

	"github.com/hyperledger-labs/fabric-bnms/membership/services/db/driver"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/db/sql/common"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"
)

const (
	Persistence = "postgres"
	driverName  = "pgx"

	pgErrUniqueViolation = "23505"
)

type Driver struct{}

func NewNamedDriver() driver.NamedDriver {
	return driver.NamedDriver{Name: Persistence, Driver: &Driver{}}
}

func (d *Driver) Open(opts driver.Opts) (driver.Store, error) {
	if len(opts.DataSource) == 0 {
		return nil, errors.New("postgres data source not set")
	}
	db, err := sql.Open(driverName, opts.DataSource)
	if err != nil {
		return nil, errors.Wrap(err, "failed opening postgres database")
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if err := db.Ping(); err != nil {
		common.Close(db)
		return nil, errors.Wrap(err, "failed connecting to postgres")
	}
	store, err := NewStore(db, opts.TablePrefix)
	if err != nil {
		common.Close(db)
		return nil, err
	}
	if opts.CreateSchema {
		if err := store.CreateSchema(); err != nil {
			common.Close(db)
			return nil, err
		}
	}
	return store, nil
}

// NewStore returns a store over an open postgres connection pool.
func NewStore(db *sql.DB, tablePrefix string) (*common.Store, error) {
	tables, err := common.GetTableNames(tablePrefix)
	if err != nil {
		return nil, err
	}
	return common.NewStore(db, tables, IsDuplicate), nil
}

// IsDuplicate reports unique violations.
func IsDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrUniqueViolation
	}
	return false
}
