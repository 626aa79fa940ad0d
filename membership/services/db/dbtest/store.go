/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package dbtest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hyperledger-labs/fabric-bnms/membership"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/db/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// StoreCases collects test functions that store implementations can use for integration tests
var StoreCases = []struct {
	Name string
	Fn   func(*testing.T, driver.Store)
}{
	{"TestUpsertAndGet", TestUpsertAndGet},
	{"TestUpsertMovesForward", TestUpsertMovesForward},
	{"TestList", TestList},
	{"TestPendingRequests", TestPendingRequests},
	{"TestConcurrentPendingRequests", TestConcurrentPendingRequests},
	{"TestProjections", TestProjections},
}

// StoreTest runs every case on a fresh store.
func StoreTest(t *testing.T, open func(name string) driver.Store) {
	for _, c := range StoreCases {
		t.Run(c.Name, func(t *testing.T) {
			store := open(c.Name)
			defer func() {
				assert.NoError(t, store.Close())
			}()
			c.Fn(t, store)
		})
	}
}

var t0 = time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)

// Fixture is a business network with its operator.
type Fixture struct {
	Operator        membership.Party
	BusinessNetwork membership.BusinessNetwork
}

func NewFixture(t *testing.T) *Fixture {
	operator, err := membership.NewSigningIdentity("O=BNO,L=New York,C=US")
	require.NoError(t, err)
	bn, err := membership.NewBusinessNetwork("trade", operator.Party)
	require.NoError(t, err)
	return &Fixture{Operator: operator.Party, BusinessNetwork: bn}
}

// Member returns a fresh party with the passed name.
func (f *Fixture) Member(t *testing.T, name string) membership.Party {
	id, err := membership.NewSigningIdentity(name)
	require.NoError(t, err)
	return id.Party
}

// Record returns a record of member with the passed status, issued at t0.
func (f *Fixture) Record(t *testing.T, member membership.Party, status membership.Status, txID string) *membership.Record {
	st, err := membership.NewState(member, f.BusinessNetwork, membership.MustMetadata(membership.SimpleMetadata{Role: "trader"}), status, t0)
	require.NoError(t, err)
	return &membership.Record{State: st, Ref: membership.StateRef{TxID: txID}, Contract: membership.DefaultContractName}
}

// Evolve returns the next version of record with the passed status, modified after d.
func Evolve(record *membership.Record, status membership.Status, d time.Duration, txID string) *membership.Record {
	return &membership.Record{
		State:    record.State.WithStatus(status, record.State.Modified.Add(d)),
		Ref:      membership.StateRef{TxID: txID},
		Contract: record.Contract,
	}
}

func TestUpsertAndGet(t *testing.T, store driver.Store) {
	ctx := context.Background()
	f := NewFixture(t)
	alice := f.Member(t, "O=Alice,L=London,C=GB")

	r, err := store.Get(ctx, f.BusinessNetwork.ID, alice.Name)
	assert.NoError(t, err)
	assert.Nil(t, r)

	record := f.Record(t, alice, membership.Pending, "tx1")
	applied, err := store.Upsert(ctx, record)
	assert.NoError(t, err)
	assert.True(t, applied)

	r, err = store.Get(ctx, f.BusinessNetwork.ID, alice.Name)
	assert.NoError(t, err)
	require.NotNil(t, r)
	assert.True(t, r.State.Member.Equal(alice))
	assert.Equal(t, membership.Pending, r.State.Status)
	assert.Equal(t, record.Ref, r.Ref)
	assert.True(t, r.State.Metadata.Equal(record.State.Metadata))
	assert.True(t, r.State.Modified.Equal(record.State.Modified))

	r, err = store.Get(ctx, "another", alice.Name)
	assert.NoError(t, err)
	assert.Nil(t, r)
}

func TestUpsertMovesForward(t *testing.T, store driver.Store) {
	ctx := context.Background()
	f := NewFixture(t)
	alice := f.Member(t, "O=Alice,L=London,C=GB")

	pending := f.Record(t, alice, membership.Pending, "tx1")
	active := Evolve(pending, membership.Active, time.Minute, "tx2")

	applied, err := store.Upsert(ctx, active)
	assert.NoError(t, err)
	assert.True(t, applied)

	// an older version arriving late is ignored
	applied, err = store.Upsert(ctx, pending)
	assert.NoError(t, err)
	assert.False(t, applied)

	// so is the same version
	applied, err = store.Upsert(ctx, active)
	assert.NoError(t, err)
	assert.False(t, applied)

	r, err := store.Get(ctx, f.BusinessNetwork.ID, alice.Name)
	assert.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, membership.Active, r.State.Status)
	assert.Equal(t, "tx2", r.Ref.TxID)
}

func TestList(t *testing.T, store driver.Store) {
	ctx := context.Background()
	f := NewFixture(t)
	other := NewFixture(t)

	records := []*membership.Record{
		f.Record(t, f.Operator, membership.Active, "tx0"),
		f.Record(t, f.Member(t, "O=Alice,L=London,C=GB"), membership.Active, "tx1"),
		f.Record(t, f.Member(t, "O=Bob,L=Paris,C=FR"), membership.Pending, "tx2"),
		f.Record(t, f.Member(t, "O=Charlie,L=Rome,C=IT"), membership.Suspended, "tx3"),
		other.Record(t, other.Operator, membership.Active, "tx4"),
	}
	for _, r := range records {
		_, err := store.Upsert(ctx, r)
		require.NoError(t, err)
	}

	all, err := store.List(ctx, driver.Filter{BusinessNetworkID: f.BusinessNetwork.ID})
	assert.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, []string{"O=Alice,L=London,C=GB", "O=BNO,L=New York,C=US", "O=Bob,L=Paris,C=FR", "O=Charlie,L=Rome,C=IT"}, names(all))

	active, err := store.List(ctx, driver.Filter{BusinessNetworkID: f.BusinessNetwork.ID, Statuses: []membership.Status{membership.Active}})
	assert.NoError(t, err)
	assert.Equal(t, []string{"O=Alice,L=London,C=GB", "O=BNO,L=New York,C=US"}, names(active))

	members, err := store.List(ctx, driver.Filter{
		BusinessNetworkID: f.BusinessNetwork.ID,
		Statuses:          []membership.Status{membership.Active},
		ExcludeMember:     f.Operator.Name,
	})
	assert.NoError(t, err)
	assert.Equal(t, []string{"O=Alice,L=London,C=GB"}, names(members))

	notActive, err := store.List(ctx, driver.Filter{BusinessNetworkID: f.BusinessNetwork.ID, Statuses: []membership.Status{membership.Pending, membership.Suspended}})
	assert.NoError(t, err)
	assert.Equal(t, []string{"O=Bob,L=Paris,C=FR", "O=Charlie,L=Rome,C=IT"}, names(notActive))

	none, err := store.List(ctx, driver.Filter{BusinessNetworkID: "unknown"})
	assert.NoError(t, err)
	assert.Empty(t, none)
}

func TestPendingRequests(t *testing.T, store driver.Store) {
	ctx := context.Background()

	assert.NoError(t, store.CreatePendingRequest(ctx, "O=Alice,L=London,C=GB"))
	err := store.CreatePendingRequest(ctx, "O=Alice,L=London,C=GB")
	assert.ErrorIs(t, err, driver.ErrDuplicateKey)
	assert.NoError(t, store.CreatePendingRequest(ctx, "O=Bob,L=Paris,C=FR"))

	assert.NoError(t, store.DeletePendingRequest(ctx, "O=Alice,L=London,C=GB"))
	assert.NoError(t, store.CreatePendingRequest(ctx, "O=Alice,L=London,C=GB"))

	// deleting a missing marker is not an error
	assert.NoError(t, store.DeletePendingRequest(ctx, "O=Charlie,L=Rome,C=IT"))
}

func TestConcurrentPendingRequests(t *testing.T, store driver.Store) {
	ctx := context.Background()
	const n = 8

	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- store.CreatePendingRequest(ctx, "O=Alice,L=London,C=GB")
		}()
	}
	wg.Wait()
	close(results)

	created := 0
	for err := range results {
		if err == nil {
			created++
			continue
		}
		assert.ErrorIs(t, err, driver.ErrDuplicateKey)
	}
	assert.Equal(t, 1, created)
}

func TestProjections(t *testing.T, store driver.Store) {
	ctx := context.Background()
	f := NewFixture(t)
	alice := f.Member(t, "O=Alice,L=London,C=GB")

	pending := f.Record(t, alice, membership.Pending, "tx1")
	for _, r := range []*membership.Record{
		f.Record(t, f.Operator, membership.Active, "tx0"),
		pending,
		Evolve(pending, membership.Active, time.Second, "tx2"),
	} {
		_, err := store.Upsert(ctx, r)
		require.NoError(t, err)
	}

	projections, err := store.Projections(ctx, f.BusinessNetwork.ID)
	assert.NoError(t, err)
	assert.Equal(t, []membership.Projection{
		{
			MemberName:          alice.Name,
			BusinessNetworkID:   f.BusinessNetwork.ID,
			BusinessNetworkName: "trade",
			OperatorName:        f.Operator.Name,
			Status:              membership.Active,
		},
		{
			MemberName:          f.Operator.Name,
			BusinessNetworkID:   f.BusinessNetwork.ID,
			BusinessNetworkName: "trade",
			OperatorName:        f.Operator.Name,
			Status:              membership.Active,
		},
	}, projections)
}

func names(records []*membership.Record) []string {
	res := make([]string, len(records))
	for i, r := range records {
		res[i] = r.State.Member.Name
	}
	return res
}
