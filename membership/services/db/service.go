/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package db

import (
	"context"
	"sync"

	"github.com/hyperledger-labs/fabric-bnms/membership"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/config"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/db/driver"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/logging"
	"github.com/pkg/errors"
	"go.uber.org/zap/zapcore"
)

var logger = logging.MustGetLogger("db")

// NewStore opens the store selected by the configuration with one of the passed drivers.
func NewStore(cfg config.DB, drivers ...driver.NamedDriver) (driver.Store, error) {
	name := cfg.Driver
	if len(name) == 0 {
		name = config.DefaultDriver
	}
	for _, d := range drivers {
		if d.Name == name {
			logger.Infof("opening membership store with driver [%s]", name)
			return d.Driver.Open(driver.Opts{
				DataSource:   cfg.DataSource,
				TablePrefix:  cfg.TablePrefix,
				MaxOpenConns: cfg.MaxOpenConns,
				CreateSchema: cfg.CreateSchema,
			})
		}
	}
	return nil, errors.Errorf("driver [%s] not found", name)
}

// Service is the operator's index over the membership records of its vault.
// It is fed by the vault through OnRecord and guards concurrent membership requests
// with pending request markers.
type Service struct {
	store driver.Store
	cache *recordCache
	// lock orders cache loads after the writes they could otherwise overtake
	lock sync.RWMutex
}

func NewService(store driver.Store, cacheMaxCost int64) (*Service, error) {
	if cacheMaxCost <= 0 {
		cacheMaxCost = config.DefaultCacheMaxCost
	}
	cache, err := newRecordCache(cacheMaxCost)
	if err != nil {
		return nil, errors.Wrap(err, "failed creating membership cache")
	}
	return &Service{store: store, cache: cache}, nil
}

// GetMembership returns the record of party in the business network, nil if there is none.
func (s *Service) GetMembership(ctx context.Context, party membership.Party, bn membership.BusinessNetwork) (*membership.Record, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	record, err := s.cache.getOrLoad(cacheKey(bn.ID, party.Name), func() (*membership.Record, error) {
		return s.store.Get(ctx, bn.ID, party.Name)
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "failed loading membership of [%s] in [%s]", party, bn)
	}
	if record == nil || !record.State.Member.Equal(party) {
		return nil, nil
	}
	return record, nil
}

func (s *Service) GetAllMemberships(ctx context.Context, bn membership.BusinessNetwork) ([]*membership.Record, error) {
	return s.list(ctx, driver.Filter{BusinessNetworkID: bn.ID})
}

func (s *Service) GetActiveMemberships(ctx context.Context, bn membership.BusinessNetwork) ([]*membership.Record, error) {
	return s.list(ctx, driver.Filter{BusinessNetworkID: bn.ID, Statuses: []membership.Status{membership.Active}})
}

// GetActiveMembershipsExceptOperator returns the active records of the members other than the operator.
func (s *Service) GetActiveMembershipsExceptOperator(ctx context.Context, bn membership.BusinessNetwork) ([]*membership.Record, error) {
	return s.list(ctx, driver.Filter{
		BusinessNetworkID: bn.ID,
		Statuses:          []membership.Status{membership.Active},
		ExcludeMember:     bn.Operator.Name,
	})
}

func (s *Service) list(ctx context.Context, filter driver.Filter) ([]*membership.Record, error) {
	records, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed listing memberships of [%s]", filter.BusinessNetworkID)
	}
	return records, nil
}

// CreatePendingRequestMarker fails with membership.ErrRequestAlreadyExists if a request of party is in flight.
// Every successful call must be paired with DeletePendingRequestMarker.
func (s *Service) CreatePendingRequestMarker(ctx context.Context, party membership.Party) error {
	if err := s.store.CreatePendingRequest(ctx, party.Name); err != nil {
		if errors.Is(err, driver.ErrDuplicateKey) {
			return membership.NewRequestAlreadyExistsError(party)
		}
		return errors.WithMessagef(err, "failed creating pending request marker for [%s]", party)
	}
	logger.Debugf("pending request marker for [%s] created", party)
	return nil
}

func (s *Service) DeletePendingRequestMarker(ctx context.Context, party membership.Party) error {
	if err := s.store.DeletePendingRequest(ctx, party.Name); err != nil {
		return errors.WithMessagef(err, "failed deleting pending request marker for [%s]", party)
	}
	logger.Debugf("pending request marker for [%s] deleted", party)
	return nil
}

// OnRecord stores a record of the vault. Records older than the indexed ones are ignored.
func (s *Service) OnRecord(ctx context.Context, record *membership.Record) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	key := cacheKey(record.State.BusinessNetwork.ID, record.State.Member.Name)
	applied, err := s.store.Upsert(ctx, record)
	if err != nil {
		s.cache.delete(key)
		return errors.WithMessagef(err, "failed indexing membership [%s]", record)
	}
	if !applied {
		if logger.IsEnabledFor(zapcore.DebugLevel) {
			logger.Debugf("membership [%s] is not newer than the indexed one, skip", record)
		}
		return nil
	}
	s.cache.add(key, record)
	return nil
}

// Vault lists the membership records that have not been consumed yet.
type Vault interface {
	Unconsumed(ctx context.Context) ([]*membership.Record, error)
}

// Rebuild indexes the unconsumed records of the vault.
func (s *Service) Rebuild(ctx context.Context, vault Vault) error {
	records, err := vault.Unconsumed(ctx)
	if err != nil {
		return errors.WithMessage(err, "failed listing unconsumed memberships")
	}
	for _, record := range records {
		if err := s.OnRecord(ctx, record); err != nil {
			return err
		}
	}
	logger.Infof("membership index rebuilt from [%d] records", len(records))
	return nil
}

func (s *Service) Projections(ctx context.Context, bn membership.BusinessNetwork) ([]membership.Projection, error) {
	projections, err := s.store.Projections(ctx, bn.ID)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed loading projections of [%s]", bn)
	}
	return projections, nil
}

func (s *Service) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.cache.clear()
	s.cache.close()
	return s.store.Close()
}
