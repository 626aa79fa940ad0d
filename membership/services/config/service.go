/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package config

import (
	"strings"
	"sync"

	"github.com/hyperledger-labs/fabric-bnms/membership"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/logging"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/view"
	"github.com/pkg/errors"
)

var logger = logging.MustGetLogger("config")

const RootKey = "bnms"

var (
	NotaryPath           = Join(RootKey, "notary")
	BusinessNetworksPath = Join(RootKey, "businessNetworks")
	DBPath               = Join(RootKey, "db")
	CachePath            = Join(RootKey, "cache")
	AutoActivatePath     = Join(RootKey, "autoActivate")
	LoggingPath          = Join(RootKey, "logging")
)

// Join composes a configuration key.
func Join(keys ...string) string {
	return strings.Join(keys, ".")
}

// Provider gives access to the configuration keys.
type Provider interface {
	UnmarshalKey(key string, rawVal interface{}) error
	GetString(key string) string
	GetBool(key string) bool
	IsSet(key string) bool
	MergeConfig(raw []byte) error
	Reload(path string) error
}

// BusinessNetwork is a whitelisted business network as written in the configuration.
type BusinessNetwork struct {
	ID       string `mapstructure:"id" yaml:"id"`
	Name     string `mapstructure:"name" yaml:"name,omitempty"`
	Operator string `mapstructure:"operator" yaml:"operator"`
}

// DB configures the persistence of the membership index.
type DB struct {
	Driver       string `mapstructure:"driver" yaml:"driver"`
	DataSource   string `mapstructure:"dataSource" yaml:"dataSource"`
	TablePrefix  string `mapstructure:"tablePrefix" yaml:"tablePrefix,omitempty"`
	MaxOpenConns int    `mapstructure:"maxOpenConns" yaml:"maxOpenConns,omitempty"`
	CreateSchema bool   `mapstructure:"createSchema" yaml:"createSchema"`
}

// Cache configures the read cache in front of the membership index.
type Cache struct {
	MaxCost int64 `mapstructure:"maxCost" yaml:"maxCost"`
}

const (
	DefaultDriver       = "memory"
	DefaultCacheMaxCost = 10000
)

type snapshot struct {
	notary           string
	businessNetworks []BusinessNetwork
	db               DB
	cache            Cache
	autoActivate     bool
	logging          logging.Config
}

// Service resolves business networks, operators and the notary from the configuration.
// Names are resolved through the directory every time, so parties joining later are picked up.
type Service struct {
	cp        Provider
	directory view.Directory

	mutex sync.RWMutex
	s     *snapshot
}

func NewService(cp Provider, directory view.Directory) (*Service, error) {
	s := &Service{cp: cp, directory: directory}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) load() error {
	snap := &snapshot{
		notary:       s.cp.GetString(NotaryPath),
		autoActivate: s.cp.GetBool(AutoActivatePath),
		db:           DB{Driver: DefaultDriver, CreateSchema: true},
		cache:        Cache{MaxCost: DefaultCacheMaxCost},
	}
	if err := s.cp.UnmarshalKey(BusinessNetworksPath, &snap.businessNetworks); err != nil {
		return errors.WithMessage(err, "failed loading business networks")
	}
	seen := map[string]bool{}
	for _, bn := range snap.businessNetworks {
		if err := membership.ValidateID(bn.ID); err != nil {
			return err
		}
		if seen[bn.ID] {
			return errors.Errorf("business network [%s] configured twice", bn.ID)
		}
		seen[bn.ID] = true
		if len(bn.Operator) == 0 {
			return errors.Errorf("business network [%s] has no operator", bn.ID)
		}
	}
	if err := s.cp.UnmarshalKey(DBPath, &snap.db); err != nil {
		return errors.WithMessage(err, "failed loading db configuration")
	}
	if err := s.cp.UnmarshalKey(CachePath, &snap.cache); err != nil {
		return errors.WithMessage(err, "failed loading cache configuration")
	}
	if err := s.cp.UnmarshalKey(LoggingPath, &snap.logging); err != nil {
		return errors.WithMessage(err, "failed loading logging configuration")
	}

	s.mutex.Lock()
	s.s = snap
	s.mutex.Unlock()
	logger.Debugf("loaded [%d] business networks, notary [%s]", len(snap.businessNetworks), snap.notary)
	return nil
}

func (s *Service) current() *snapshot {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.s
}

// Reload replaces the configuration with the one at path. The previous configuration
// stays in place if the new one cannot be loaded.
func (s *Service) Reload(path string) error {
	if err := s.cp.Reload(path); err != nil {
		return err
	}
	return s.load()
}

// RawBusinessNetworks returns the business networks as configured, resolved or not.
func (s *Service) RawBusinessNetworks() []BusinessNetwork {
	return append([]BusinessNetwork(nil), s.current().businessNetworks...)
}

// BusinessNetworks returns the configured business networks whose operator can be resolved.
func (s *Service) BusinessNetworks() []membership.BusinessNetwork {
	var res []membership.BusinessNetwork
	for _, raw := range s.current().businessNetworks {
		operator, ok := s.directory.WellKnownParty(raw.Operator)
		if !ok {
			logger.Warnf("operator [%s] of business network [%s] cannot be resolved on the network", logging.Printable(raw.Operator), raw.ID)
			continue
		}
		res = append(res, membership.BusinessNetwork{ID: raw.ID, Name: raw.Name, Operator: operator})
	}
	return res
}

// WhitelistedBusinessNetworks is the set of business networks this node accepts to deal with.
func (s *Service) WhitelistedBusinessNetworks() []membership.BusinessNetwork {
	return s.BusinessNetworks()
}

// Operators returns the operators of the whitelisted business networks.
func (s *Service) Operators() []membership.Party {
	var res []membership.Party
	for _, bn := range s.BusinessNetworks() {
		if !membership.ContainsParty(res, bn.Operator) {
			res = append(res, bn.Operator)
		}
	}
	return res
}

// IsWhitelistedOperator reports whether party operates at least one whitelisted business network.
func (s *Service) IsWhitelistedOperator(party membership.Party) bool {
	return membership.ContainsParty(s.Operators(), party)
}

// BusinessNetworkByID returns the whitelisted business network with the passed id.
func (s *Service) BusinessNetworkByID(id string) (membership.BusinessNetwork, error) {
	for _, bn := range s.BusinessNetworks() {
		if bn.ID == id {
			return bn, nil
		}
	}
	return membership.BusinessNetwork{}, membership.NewBusinessNetworkNotWhitelistedError(id)
}

// BusinessNetworksByOperator returns the whitelisted business networks run by operator.
func (s *Service) BusinessNetworksByOperator(operator membership.Party) []membership.BusinessNetwork {
	var res []membership.BusinessNetwork
	for _, bn := range s.BusinessNetworks() {
		if bn.Operator.Equal(operator) {
			res = append(res, bn)
		}
	}
	return res
}

// ResolveBusinessNetwork returns the business network with the passed id, checking it is
// run by expectedOperator. Without an id, the operator must run exactly one business network.
func (s *Service) ResolveBusinessNetwork(id string, expectedOperator membership.Party) (membership.BusinessNetwork, error) {
	if len(id) != 0 {
		bn, err := s.BusinessNetworkByID(id)
		if err != nil {
			return membership.BusinessNetwork{}, err
		}
		if !bn.Operator.Equal(expectedOperator) {
			return membership.BusinessNetwork{}, membership.NewOperatorMismatchError(id, expectedOperator)
		}
		return bn, nil
	}
	bns := s.BusinessNetworksByOperator(expectedOperator)
	switch len(bns) {
	case 1:
		return bns[0], nil
	case 0:
		return membership.BusinessNetwork{}, membership.NewBusinessNetworkNotFoundError("", expectedOperator)
	default:
		return membership.BusinessNetwork{}, membership.NewAmbiguousBusinessNetworkError(expectedOperator, len(bns))
	}
}

// Notary returns the configured notary.
func (s *Service) Notary() (membership.Party, error) {
	name := s.current().notary
	if len(name) == 0 {
		return membership.Party{}, membership.NewNotaryNotFoundError(name)
	}
	notary, ok := s.directory.WellKnownParty(name)
	if !ok {
		return membership.Party{}, membership.NewNotaryNotFoundError(name)
	}
	return notary, nil
}

func (s *Service) NotaryName() string {
	return s.current().notary
}

// AutoActivate tells whether membership requests are activated as soon as they are accepted.
func (s *Service) AutoActivate() bool {
	return s.current().autoActivate
}

func (s *Service) DB() DB {
	return s.current().db
}

func (s *Service) CacheMaxCost() int64 {
	return s.current().cache.MaxCost
}

func (s *Service) Logging() logging.Config {
	return s.current().logging
}
