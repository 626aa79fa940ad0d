/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package db_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hyperledger-labs/fabric-bnms/membership"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/config"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/db"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/db/dbtest"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/db/sql/memory"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/db/sql/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) *db.Service {
	store, err := db.NewStore(config.DB{Driver: memory.Persistence}, memory.NewNamedDriver(), sqlite.NewNamedDriver())
	require.NoError(t, err)
	s, err := db.NewService(store, 100)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, s.Close())
	})
	return s
}

func TestNewStoreUnknownDriver(t *testing.T) {
	_, err := db.NewStore(config.DB{Driver: "mongo"}, memory.NewNamedDriver())
	assert.EqualError(t, err, "driver [mongo] not found")
}

func TestGetMembership(t *testing.T) {
	ctx := context.Background()
	s := newService(t)
	f := dbtest.NewFixture(t)
	alice := f.Member(t, "O=Alice,L=London,C=GB")

	r, err := s.GetMembership(ctx, alice, f.BusinessNetwork)
	assert.NoError(t, err)
	assert.Nil(t, r)

	pending := f.Record(t, alice, membership.Pending, "tx1")
	require.NoError(t, s.OnRecord(ctx, pending))
	r, err = s.GetMembership(ctx, alice, f.BusinessNetwork)
	assert.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, membership.Pending, r.State.Status)

	// a party with the same name and another key is not the member
	impostor := f.Member(t, alice.Name)
	r, err = s.GetMembership(ctx, impostor, f.BusinessNetwork)
	assert.NoError(t, err)
	assert.Nil(t, r)

	// the cached version is replaced by a newer one
	active := dbtest.Evolve(pending, membership.Active, time.Second, "tx2")
	require.NoError(t, s.OnRecord(ctx, active))
	r, err = s.GetMembership(ctx, alice, f.BusinessNetwork)
	assert.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, membership.Active, r.State.Status)

	// and is not replaced by an older one
	require.NoError(t, s.OnRecord(ctx, pending))
	r, err = s.GetMembership(ctx, alice, f.BusinessNetwork)
	assert.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "tx2", r.Ref.TxID)
}

func TestListMemberships(t *testing.T) {
	ctx := context.Background()
	s := newService(t)
	f := dbtest.NewFixture(t)

	for _, r := range []*membership.Record{
		f.Record(t, f.Operator, membership.Active, "tx0"),
		f.Record(t, f.Member(t, "O=Alice,L=London,C=GB"), membership.Active, "tx1"),
		f.Record(t, f.Member(t, "O=Bob,L=Paris,C=FR"), membership.Pending, "tx2"),
	} {
		require.NoError(t, s.OnRecord(ctx, r))
	}

	all, err := s.GetAllMemberships(ctx, f.BusinessNetwork)
	assert.NoError(t, err)
	assert.Len(t, all, 3)

	active, err := s.GetActiveMemberships(ctx, f.BusinessNetwork)
	assert.NoError(t, err)
	assert.Len(t, active, 2)

	members, err := s.GetActiveMembershipsExceptOperator(ctx, f.BusinessNetwork)
	assert.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "O=Alice,L=London,C=GB", members[0].State.Member.Name)

	projections, err := s.Projections(ctx, f.BusinessNetwork)
	assert.NoError(t, err)
	assert.Len(t, projections, 3)
}

func TestPendingRequestMarker(t *testing.T) {
	ctx := context.Background()
	s := newService(t)
	f := dbtest.NewFixture(t)
	alice := f.Member(t, "O=Alice,L=London,C=GB")

	require.NoError(t, s.CreatePendingRequestMarker(ctx, alice))
	err := s.CreatePendingRequestMarker(ctx, alice)
	assert.ErrorIs(t, err, membership.ErrRequestAlreadyExists)
	assert.Contains(t, err.Error(), alice.Name)

	require.NoError(t, s.DeletePendingRequestMarker(ctx, alice))
	assert.NoError(t, s.CreatePendingRequestMarker(ctx, alice))
}

func TestConcurrentReadsAndWrites(t *testing.T) {
	ctx := context.Background()
	s := newService(t)
	f := dbtest.NewFixture(t)
	alice := f.Member(t, "O=Alice,L=London,C=GB")

	versions := []*membership.Record{f.Record(t, alice, membership.Pending, "tx0")}
	for i := 1; i < 20; i++ {
		status := membership.Active
		if i%2 == 0 {
			status = membership.Suspended
		}
		versions = append(versions, dbtest.Evolve(versions[i-1], status, time.Second, "tx"+string(rune('a'+i))))
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for _, v := range versions {
			assert.NoError(t, s.OnRecord(ctx, v))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			_, err := s.GetMembership(ctx, alice, f.BusinessNetwork)
			assert.NoError(t, err)
		}
	}()
	wg.Wait()

	r, err := s.GetMembership(ctx, alice, f.BusinessNetwork)
	assert.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, versions[len(versions)-1].Ref, r.Ref)
}

type fakeLedger struct {
	records []*membership.Record
}

func (l *fakeLedger) Unconsumed(context.Context) ([]*membership.Record, error) {
	return l.records, nil
}

func TestRebuild(t *testing.T) {
	ctx := context.Background()
	s := newService(t)
	f := dbtest.NewFixture(t)
	ledger := &fakeLedger{records: []*membership.Record{
		f.Record(t, f.Operator, membership.Active, "tx0"),
		f.Record(t, f.Member(t, "O=Alice,L=London,C=GB"), membership.Active, "tx1"),
	}}

	require.NoError(t, s.Rebuild(ctx, ledger))
	all, err := s.GetAllMemberships(ctx, f.BusinessNetwork)
	assert.NoError(t, err)
	assert.Len(t, all, 2)
}
