/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package member

import (
	"github.com/hyperledger-labs/fabric-bnms/membership"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/protocol"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/view"
	"github.com/pkg/errors"
)

// Memberships maps the name of the members to their membership.
type Memberships map[string]*membership.Record

// Get returns the membership of party, nil if party is not in the map.
func (m Memberships) Get(party membership.Party) *membership.Record {
	r, ok := m[party.Name]
	if !ok || !r.State.Member.Equal(party) {
		return nil
	}
	return r
}

// GetMembershipsView returns the active memberships of a business network. The cached memberships
// are used unless force is set or the business network was never refreshed. With filterStaleParties,
// the members unknown to the network are dropped.
type GetMembershipsView struct {
	member             *Member
	id                 string
	operator           membership.Party
	force              bool
	filterStaleParties bool
}

func NewGetMembershipsView(member *Member, id string, operator membership.Party, force, filterStaleParties bool) *GetMembershipsView {
	return &GetMembershipsView{member: member, id: id, operator: operator, force: force, filterStaleParties: filterStaleParties}
}

func (g *GetMembershipsView) Call(context view.Context) (res interface{}, err error) {
	defer func() { g.member.Metrics.observeFlow("get_memberships", err) }()

	bn, err := g.member.Config.ResolveBusinessNetwork(g.id, g.operator)
	if err != nil {
		return nil, err
	}
	if g.force || g.member.Cache.LastRefreshed(bn).IsZero() {
		if err := g.refresh(context, bn); err != nil {
			return nil, err
		}
	}

	memberships := Memberships{}
	directory := context.Directory()
	for _, r := range g.member.Cache.GetMembershipsFor(bn) {
		if !r.State.IsActive() {
			continue
		}
		if g.filterStaleParties && !directory.IsKnown(r.State.Member) {
			logger.Debugf("[%s] has left the network, skip its membership", r.State.Member)
			continue
		}
		memberships[r.State.Member.Name] = r
	}
	return memberships, nil
}

func (g *GetMembershipsView) refresh(context view.Context, bn membership.BusinessNetwork) error {
	session, err := view.OpenJSession(context, protocol.New(protocol.GetMemberships), g.operator)
	if err != nil {
		return err
	}
	if err := session.Send(&protocol.MembershipListRequest{BusinessNetworkID: bn.ID}); err != nil {
		return errors.WithMessagef(err, "failed requesting memberships of [%s]", bn)
	}
	response := &protocol.MembershipListResponse{}
	if err := session.Receive(response); err != nil {
		return errors.WithMessagef(err, "failed receiving memberships of [%s]", bn)
	}
	if err := g.member.Cache.ApplySnapshot(bn, response.Records); err != nil {
		return err
	}
	g.member.Metrics.setCached(bn.ID, len(response.Records))
	logger.Debugf("memberships of [%s] refreshed with [%d] records", bn, len(response.Records))
	return nil
}

// VerifyCounterpartyMembership checks that counterparty is an active member of the business
// network. Responders serving business flows call it before serving their initiator.
func VerifyCounterpartyMembership(context view.Context, member *Member, id string, operator, counterparty membership.Party) (*membership.Record, error) {
	res, err := context.RunView(NewGetMembershipsView(member, id, operator, false, false))
	if err != nil {
		return nil, err
	}
	record := res.(Memberships).Get(counterparty)
	if record == nil {
		return nil, membership.NewNotAMemberError(counterparty)
	}
	return record, nil
}
