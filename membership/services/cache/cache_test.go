/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/hyperledger-labs/fabric-bnms/membership"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	operator membership.Party
	bn       membership.BusinessNetwork
}

func newFixture(t *testing.T) *fixture {
	operator, err := membership.NewSigningIdentity("O=BNO,L=New York,C=US")
	require.NoError(t, err)
	bn, err := membership.NewBusinessNetwork("trade", operator.Party)
	require.NoError(t, err)
	return &fixture{operator: operator.Party, bn: bn}
}

func (f *fixture) party(t *testing.T, name string) membership.Party {
	id, err := membership.NewSigningIdentity(name)
	require.NoError(t, err)
	return id.Party
}

func (f *fixture) record(t *testing.T, member membership.Party, status membership.Status, md interface{}) *membership.Record {
	st, err := membership.NewState(member, f.bn, membership.MustMetadata(md), status, t0)
	require.NoError(t, err)
	return &membership.Record{State: st, Ref: membership.StateRef{TxID: "tx-" + member.Name}, Contract: membership.DefaultContractName}
}

func evolve(r *membership.Record, status membership.Status, d time.Duration) *membership.Record {
	return &membership.Record{State: r.State.WithStatus(status, r.State.Modified.Add(d)), Ref: membership.StateRef{TxID: r.Ref.TxID + "'"}, Contract: r.Contract}
}

func TestUpdateMembershipIsIdempotent(t *testing.T) {
	f := newFixture(t)
	c := NewMembershipsCache()
	alice := f.party(t, "O=Alice,L=London,C=GB")
	r := f.record(t, alice, membership.Active, membership.SimpleMetadata{Role: "trader"})

	assert.True(t, c.UpdateMembership(r))
	once := c.GetMembershipsFor(f.bn)
	assert.False(t, c.UpdateMembership(r))
	assert.Equal(t, once, c.GetMembershipsFor(f.bn))
	assert.Equal(t, r, c.GetMembership(f.bn, alice))
}

func TestMergeKeepsNewest(t *testing.T) {
	f := newFixture(t)
	alice := f.party(t, "O=Alice,L=London,C=GB")
	older := f.record(t, alice, membership.Pending, membership.SimpleMetadata{Role: "trader"})
	newer := evolve(older, membership.Active, time.Second)

	for _, order := range [][]*membership.Record{{older, newer}, {newer, older}} {
		c := NewMembershipsCache()
		for _, r := range order {
			c.UpdateMembership(r)
		}
		assert.Equal(t, newer, c.GetMembership(f.bn, alice))
	}
}

func TestGetMembershipChecksIdentity(t *testing.T) {
	f := newFixture(t)
	c := NewMembershipsCache()
	alice := f.party(t, "O=Alice,L=London,C=GB")
	c.UpdateMembership(f.record(t, alice, membership.Active, membership.SimpleMetadata{}))

	assert.Nil(t, c.GetMembership(f.bn, f.party(t, alice.Name)))
	assert.Nil(t, c.GetMembership(newFixture(t).bn, alice))
}

func TestApplySnapshot(t *testing.T) {
	f := newFixture(t)
	c := NewMembershipsCache()
	now := t0
	c.now = func() time.Time { return now }

	assert.True(t, c.LastRefreshed(f.bn).IsZero())

	records := []*membership.Record{
		f.record(t, f.operator, membership.Active, membership.RolesMetadata{Roles: []membership.Role{membership.OperatorRole}}),
		f.record(t, f.party(t, "O=Alice,L=London,C=GB"), membership.Active, membership.SimpleMetadata{Role: "trader"}),
		f.record(t, f.party(t, "O=Bob,L=Paris,C=FR"), membership.Pending, membership.SimpleMetadata{Role: "bank"}),
	}
	require.NoError(t, c.ApplySnapshot(f.bn, records))
	assert.ElementsMatch(t, records, c.GetMembershipsFor(f.bn))
	assert.Equal(t, t0, c.LastRefreshed(f.bn))

	now = t0.Add(time.Minute)
	require.NoError(t, c.ApplySnapshot(f.bn, records))
	assert.ElementsMatch(t, records, c.GetMembershipsFor(f.bn))
	assert.Equal(t, t0.Add(time.Minute), c.LastRefreshed(f.bn))

	// the refresh time never goes back
	now = t0
	require.NoError(t, c.ApplySnapshot(f.bn, nil))
	assert.Equal(t, t0.Add(time.Minute), c.LastRefreshed(f.bn))
}

func TestEmptySnapshotMarksRefreshed(t *testing.T) {
	f := newFixture(t)
	c := NewMembershipsCache()
	require.NoError(t, c.ApplySnapshot(f.bn, nil))
	assert.False(t, c.LastRefreshed(f.bn).IsZero())
	assert.Empty(t, c.GetMembershipsFor(f.bn))
}

func TestApplySnapshotRejectsMixedNetworks(t *testing.T) {
	f := newFixture(t)
	other := newFixture(t)
	c := NewMembershipsCache()
	alice := f.party(t, "O=Alice,L=London,C=GB")

	err := c.ApplySnapshot(f.bn, []*membership.Record{
		f.record(t, alice, membership.Active, membership.SimpleMetadata{}),
		other.record(t, other.operator, membership.Active, membership.SimpleMetadata{}),
	})
	assert.ErrorIs(t, err, ErrMixedBusinessNetworks)
	assert.Nil(t, c.GetMembership(f.bn, alice))
	assert.True(t, c.LastRefreshed(f.bn).IsZero())
}

func TestReset(t *testing.T) {
	f := newFixture(t)
	other := newFixture(t)
	c := NewMembershipsCache()
	require.NoError(t, c.ApplySnapshot(f.bn, []*membership.Record{f.record(t, f.operator, membership.Active, membership.SimpleMetadata{})}))
	require.NoError(t, c.ApplySnapshot(other.bn, []*membership.Record{other.record(t, other.operator, membership.Active, membership.SimpleMetadata{})}))

	c.Reset(f.bn)
	assert.Empty(t, c.GetMembershipsFor(f.bn))
	assert.True(t, c.LastRefreshed(f.bn).IsZero())
	assert.Len(t, c.GetMembershipsFor(other.bn), 1)
	assert.False(t, c.LastRefreshed(other.bn).IsZero())
}

func TestConcurrentUpdates(t *testing.T) {
	f := newFixture(t)
	c := NewMembershipsCache()
	alice := f.party(t, "O=Alice,L=London,C=GB")

	versions := []*membership.Record{f.record(t, alice, membership.Pending, membership.SimpleMetadata{})}
	for i := 1; i < 32; i++ {
		versions = append(versions, evolve(versions[i-1], membership.Active, time.Second))
	}

	var wg sync.WaitGroup
	for i := len(versions) - 1; i >= 0; i-- {
		wg.Add(1)
		go func(r *membership.Record) {
			defer wg.Done()
			c.UpdateMembership(r)
		}(versions[i])
	}
	wg.Wait()
	assert.Equal(t, versions[len(versions)-1], c.GetMembership(f.bn, alice))
}

func TestMetadataQueries(t *testing.T) {
	f := newFixture(t)
	operator := f.record(t, f.operator, membership.Active, membership.RolesMetadata{Roles: []membership.Role{membership.OperatorRole}})
	alice := f.record(t, f.party(t, "O=Alice,L=London,C=GB"), membership.Active, membership.SimpleMetadata{Role: "trader", DisplayedName: "Alice"})
	bob := f.record(t, f.party(t, "O=Bob,L=Paris,C=FR"), membership.Active, membership.SimpleMetadata{Role: "bank", DisplayedName: "Bob"})
	records := []*membership.Record{operator, alice, bob}

	assert.Equal(t, []*membership.Record{alice, bob}, OfMetadataType(records, "bnms.SimpleMetadata"))
	assert.Equal(t, []*membership.Record{operator}, OfMetadataType(records, "bnms.RolesMetadata"))
	assert.Empty(t, OfMetadataType(records, "unknown"))

	assert.Equal(t, []*membership.Record{alice}, FilterByMetadataField(records, "role", "trader"))
	assert.Equal(t, []*membership.Record{bob}, FilterByMetadataField(records, "displayedName", "Bob"))
	assert.Equal(t, []*membership.Record{operator}, FilterByMetadataField(records, "roles.[0].name", "BNO"))
	assert.Empty(t, FilterByMetadataField(records, "role", "auditor"))
}
