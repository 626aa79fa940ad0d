/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package cache

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hyperledger-labs/fabric-bnms/membership"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/logging"
	"github.com/pkg/errors"
	"go.uber.org/zap/zapcore"
)

var logger = logging.MustGetLogger("cache")

// ErrMixedBusinessNetworks is returned when a snapshot carries records of another business network.
var ErrMixedBusinessNetworks = errors.New("snapshot mixes business networks")

type network struct {
	records       map[string]*membership.Record
	lastRefreshed time.Time
}

// MembershipsCache is the member-side view of the memberships of the business networks the node
// belongs to. Updates are merged by modification time, so that late or repeated deliveries
// never replace a newer record. The cache is advisory: it never denies anything on staleness.
type MembershipsCache struct {
	lock     sync.RWMutex
	networks map[string]*network
	now      func() time.Time
}

func NewMembershipsCache() *MembershipsCache {
	return &MembershipsCache{networks: map[string]*network{}, now: time.Now}
}

// GetMembership returns the cached record of party, nil if there is none.
func (c *MembershipsCache) GetMembership(bn membership.BusinessNetwork, party membership.Party) *membership.Record {
	c.lock.RLock()
	defer c.lock.RUnlock()

	n, ok := c.networks[bn.ID]
	if !ok {
		return nil
	}
	r, ok := n.records[party.Name]
	if !ok || !r.State.Member.Equal(party) {
		return nil
	}
	return r
}

// GetMembershipsFor returns the cached records of the business network sorted by member name.
func (c *MembershipsCache) GetMembershipsFor(bn membership.BusinessNetwork) []*membership.Record {
	c.lock.RLock()
	defer c.lock.RUnlock()

	n, ok := c.networks[bn.ID]
	if !ok {
		return nil
	}
	res := make([]*membership.Record, 0, len(n.records))
	for _, r := range n.records {
		res = append(res, r)
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].State.Member.Name < res[j].State.Member.Name
	})
	return res
}

// UpdateMembership merges record and tells whether it replaced the cached one.
func (c *MembershipsCache) UpdateMembership(record *membership.Record) bool {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.merge(c.network(record.State.BusinessNetwork.ID), record)
}

// ApplySnapshot merges the records of a full snapshot of the business network and marks it as refreshed.
// Either all records are merged or none.
func (c *MembershipsCache) ApplySnapshot(bn membership.BusinessNetwork, records []*membership.Record) error {
	for _, r := range records {
		if r.State.BusinessNetwork.ID != bn.ID {
			return errors.Wrapf(ErrMixedBusinessNetworks, "record [%s] does not belong to [%s]", r, bn)
		}
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	n := c.network(bn.ID)
	for _, r := range records {
		c.merge(n, r)
	}
	now := c.now()
	if now.After(n.lastRefreshed) {
		n.lastRefreshed = now
	}
	logger.Debugf("snapshot of [%d] records applied to [%s]", len(records), bn)
	return nil
}

// LastRefreshed returns when the last snapshot of the business network was applied, zero if never.
func (c *MembershipsCache) LastRefreshed(bn membership.BusinessNetwork) time.Time {
	c.lock.RLock()
	defer c.lock.RUnlock()

	if n, ok := c.networks[bn.ID]; ok {
		return n.lastRefreshed
	}
	return time.Time{}
}

// Reset drops the records and the refresh time of the business network.
func (c *MembershipsCache) Reset(bn membership.BusinessNetwork) {
	c.lock.Lock()
	defer c.lock.Unlock()

	delete(c.networks, bn.ID)
	logger.Infof("memberships of [%s] reset", bn)
}

func (c *MembershipsCache) network(id string) *network {
	n, ok := c.networks[id]
	if !ok {
		n = &network{records: map[string]*membership.Record{}}
		c.networks[id] = n
	}
	return n
}

func (c *MembershipsCache) merge(n *network, record *membership.Record) bool {
	key := record.State.Member.Name
	existing, ok := n.records[key]
	if ok && !record.Newer(existing) {
		if logger.IsEnabledFor(zapcore.DebugLevel) {
			logger.Debugf("keep [%s], [%s] is not newer", existing, record)
		}
		return false
	}
	n.records[key] = record
	return true
}

func (c *MembershipsCache) String() string {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return fmt.Sprintf("memberships cache of [%d] business networks", len(c.networks))
}
