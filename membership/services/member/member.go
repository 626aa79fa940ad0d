/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package member

import (
	"github.com/hyperledger-labs/fabric-bnms/membership"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/cache"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/logging"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/metrics"
)

var logger = logging.MustGetLogger("member")

// Configuration is what the member flows need from the configuration service.
type Configuration interface {
	IsWhitelistedOperator(party membership.Party) bool
	// ResolveBusinessNetwork fails unless expectedOperator is the whitelisted operator of the business network.
	ResolveBusinessNetwork(id string, expectedOperator membership.Party) (membership.BusinessNetwork, error)
}

// Member holds the services of the member flows.
type Member struct {
	Config  Configuration
	Cache   *cache.MembershipsCache
	Metrics *Metrics
}

func NewMember(config Configuration, c *cache.MembershipsCache, provider metrics.Provider) *Member {
	if provider == nil {
		provider = metrics.NewDisabledProvider()
	}
	if c == nil {
		c = cache.NewMembershipsCache()
	}
	return &Member{Config: config, Cache: c, Metrics: NewMetrics(provider)}
}
