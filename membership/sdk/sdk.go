/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package sdk

import (
	"context"
	errors2 "errors"

	"github.com/hyperledger-labs/fabric-bnms/membership"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/bno"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/cache"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/config"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/db"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/db/driver"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/db/sql/memory"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/db/sql/postgres"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/db/sql/sqlite"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/logging"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/member"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/metrics"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/protocol"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/view"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"
)

var logger = logging.MustGetLogger("sdk")

const dbDriversGroup = "db-drivers"

// Node is the platform node the membership services are installed on.
type Node interface {
	view.Registry
	Party() membership.Party
	Ledger() view.Ledger
	Directory() view.Directory
}

type SDK struct {
	container  *dig.Container
	node       Node
	cp         config.Provider
	registerer prometheus.Registerer
	version    int

	operator *bno.Operator
	member   *member.Member
	index    *db.Service
	config   *config.Service
}

type Option func(*SDK)

// WithRegisterer exports the metrics to registerer. Metrics are disabled otherwise.
func WithRegisterer(registerer prometheus.Registerer) Option {
	return func(s *SDK) { s.registerer = registerer }
}

// WithProtocolVersion sets the protocol version advertised by the responders.
func WithProtocolVersion(version int) Option {
	return func(s *SDK) { s.version = version }
}

func NewSDK(node Node, cp config.Provider, opts ...Option) *SDK {
	s := &SDK{
		container: dig.New(),
		node:      node,
		cp:        cp,
		version:   protocol.CurrentVersion,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SDK) Container() *dig.Container { return s.container }

type dbDrivers struct {
	dig.In
	Drivers []driver.NamedDriver `group:"db-drivers"`
}

// Install wires the membership services and installs the responders on the node.
// The operator responders are installed only if the node operates a whitelisted business network.
func (s *SDK) Install(ctx context.Context) error {
	err := errors2.Join(
		s.container.Provide(func() config.Provider { return s.cp }),
		s.container.Provide(func() Node { return s.node }),
		s.container.Provide(func(node Node) view.Directory { return node.Directory() }),
		s.container.Provide(config.NewService),
		s.container.Provide(func(c *config.Service) bno.Configuration { return c }),
		s.container.Provide(func(c *config.Service) member.Configuration { return c }),
		s.container.Provide(s.newMetricsProvider),
		s.container.Provide(sqlite.NewNamedDriver, dig.Group(dbDriversGroup)),
		s.container.Provide(postgres.NewNamedDriver, dig.Group(dbDriversGroup)),
		s.container.Provide(memory.NewNamedDriver, dig.Group(dbDriversGroup)),
		s.container.Provide(func(c *config.Service, in dbDrivers) (driver.Store, error) {
			return db.NewStore(c.DB(), in.Drivers...)
		}),
		s.container.Provide(func(store driver.Store, c *config.Service) (*db.Service, error) {
			return db.NewService(store, c.CacheMaxCost())
		}),
		s.container.Provide(func(index *db.Service) bno.MembershipIndex { return index }),
		s.container.Provide(cache.NewMembershipsCache),
		s.container.Provide(bno.NewOperator),
		s.container.Provide(member.NewMember),
	)
	if err != nil {
		return errors.WithMessage(err, "failed providing membership services")
	}

	err = s.container.Invoke(func(c *config.Service, index *db.Service, operator *bno.Operator, m *member.Member) {
		s.config = c
		s.index = index
		s.operator = operator
		s.member = m
	})
	if err != nil {
		return errors.WithMessage(err, "failed building membership services")
	}
	logging.Init(s.config.Logging())

	if err := member.Install(s.node, s.member, s.version); err != nil {
		return err
	}
	operated := s.config.BusinessNetworksByOperator(s.node.Party())
	if len(operated) == 0 {
		logger.Infof("[%s] operates no business network, skipping operator responders", s.node.Party())
		return nil
	}
	logger.Infof("[%s] operates [%d] business networks, installing operator responders", s.node.Party(), len(operated))
	// subscribe first, records landing during the rebuild are indexed once or skipped as not newer
	s.node.Ledger().Subscribe(s.index)
	if err := s.index.Rebuild(ctx, s.node.Ledger()); err != nil {
		return errors.WithMessage(err, "failed rebuilding the membership index")
	}
	return bno.Install(s.node, s.operator, s.version)
}

func (s *SDK) newMetricsProvider() metrics.Provider {
	if s.registerer == nil {
		return metrics.NewDisabledProvider()
	}
	return metrics.NewPromProvider(s.registerer)
}

// Operator returns the services of the operator flows. Install must have been called.
func (s *SDK) Operator() *bno.Operator { return s.operator }

// Member returns the services of the member flows. Install must have been called.
func (s *SDK) Member() *member.Member { return s.member }

// Index returns the membership index of the operator. Install must have been called.
func (s *SDK) Index() *db.Service { return s.index }

func (s *SDK) Config() *config.Service { return s.config }

// Close releases the membership index.
func (s *SDK) Close() error {
	if s.index == nil {
		return nil
	}
	return s.index.Close()
}
