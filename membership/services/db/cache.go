/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package db

import (
	"github.com/dgraph-io/ristretto/v2"
	"github.com/hyperledger-labs/fabric-bnms/membership"
	"golang.org/x/sync/singleflight"
)

const (
	// zeroCost makes ristretto use the Cost function of its configuration
	zeroCost = 0

	defaultNumCounters = 1e6
	defaultBufferItems = 64
)

// recordCache is a bounded read cache of membership records keyed by business network and
// member. Concurrent loads of the same key are collapsed into one.
type recordCache struct {
	cache *ristretto.Cache[string, *membership.Record]
	sfg   singleflight.Group
}

func newRecordCache(maxCost int64) (*recordCache, error) {
	c, err := ristretto.NewCache[string, *membership.Record](&ristretto.Config[string, *membership.Record]{
		NumCounters: defaultNumCounters,
		MaxCost:     maxCost,
		BufferItems: defaultBufferItems,
		Cost: func(value *membership.Record) int64 {
			return 1
		},
	})
	if err != nil {
		return nil, err
	}
	return &recordCache{cache: c}, nil
}

func cacheKey(businessNetworkID, member string) string {
	return businessNetworkID + "/" + member
}

func (c *recordCache) get(key string) (*membership.Record, bool) {
	return c.cache.Get(key)
}

func (c *recordCache) add(key string, record *membership.Record) {
	c.cache.Set(key, record, zeroCost)
	c.cache.Wait()
}

func (c *recordCache) delete(key string) {
	c.cache.Del(key)
	c.cache.Wait()
}

func (c *recordCache) clear() {
	c.cache.Clear()
	c.cache.Wait()
}

// getOrLoad returns the cached record or runs the loader. Only found records are cached.
func (c *recordCache) getOrLoad(key string, loader func() (*membership.Record, error)) (*membership.Record, error) {
	if record, found := c.get(key); found {
		return record, nil
	}
	res, err, _ := c.sfg.Do(key, func() (interface{}, error) {
		record, err := loader()
		if err != nil {
			return nil, err
		}
		if record != nil {
			c.add(key, record)
		}
		return record, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*membership.Record), nil
}

func (c *recordCache) close() {
	c.cache.Close()
}
