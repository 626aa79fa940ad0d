/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package driver

import (
	"context"

	"github.com/hyperledger-labs/fabric-bnms/membership"
	"github.com/pkg/errors"
)

// ErrDuplicateKey is returned when a row with the same key already exists.
var ErrDuplicateKey = errors.New("duplicate key")

// Filter selects membership records of one business network.
type Filter struct {
	BusinessNetworkID string
	// Statuses, if not empty, keeps only the records with one of these statuses.
	Statuses []membership.Status
	// ExcludeMember drops the record of the member with this name.
	ExcludeMember string
}

// Store persists the latest known membership record for each member of each business network,
// and the markers of the membership requests in flight.
type Store interface {
	// Get returns the record of member in the business network, nil if there is none.
	Get(ctx context.Context, businessNetworkID, member string) (*membership.Record, error)
	List(ctx context.Context, filter Filter) ([]*membership.Record, error)
	// Upsert stores the record if it is newer than the stored one, and tells whether it did.
	Upsert(ctx context.Context, record *membership.Record) (bool, error)
	// CreatePendingRequest fails with ErrDuplicateKey if a marker for member exists already.
	CreatePendingRequest(ctx context.Context, member string) error
	DeletePendingRequest(ctx context.Context, member string) error
	Projections(ctx context.Context, businessNetworkID string) ([]membership.Projection, error)
	Close() error
}

// Opts configures a store.
type Opts struct {
	DataSource   string
	TablePrefix  string
	MaxOpenConns int
	CreateSchema bool
}

// Driver opens stores.
type Driver interface {
	Open(opts Opts) (Store, error)
}

// NamedDriver binds a driver to the name used in the configuration.
type NamedDriver struct {
	Name   string
	Driver Driver
}
