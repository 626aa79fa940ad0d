/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package bno

import (
	"github.com/hyperledger-labs/fabric-bnms/membership"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/protocol"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/view"
	"github.com/pkg/errors"
	"github.com/sourcegraph/conc/pool"
)

// NotifyMemberView pushes a membership change to a party and waits for the acknowledgement.
type NotifyMemberView struct {
	operator *Operator
	changed  *membership.Record
	party    membership.Party
}

func NewNotifyMemberView(operator *Operator, changed *membership.Record, party membership.Party) *NotifyMemberView {
	return &NotifyMemberView{operator: operator, changed: changed, party: party}
}

func (n *NotifyMemberView) Call(context view.Context) (res interface{}, err error) {
	defer func() { n.operator.Metrics.observeNotification(err) }()
	session, err := view.OpenJSession(context, protocol.New(protocol.NotifyMember), n.party)
	if err != nil {
		return nil, err
	}
	if err := session.Send(&protocol.MembershipChangedNotification{Changed: n.changed}); err != nil {
		return nil, errors.WithMessagef(err, "failed notifying [%s]", n.party)
	}
	ack := &protocol.NotificationAck{}
	if err := session.Receive(ack); err != nil {
		return nil, errors.WithMessagef(err, "failed receiving notification acknowledgement from [%s]", n.party)
	}
	if ack.TxID != n.changed.Ref.TxID {
		return nil, errors.Errorf("[%s] acknowledged [%s] instead of [%s]", n.party, ack.TxID, n.changed.Ref.TxID)
	}
	return ack, nil
}

// NotifyActiveMembersView notifies a membership change to the active members of the business
// network, but the operator, and to the additional parties. A failed notification is logged and
// does not fail the view.
type NotifyActiveMembersView struct {
	operator *Operator
	bn       membership.BusinessNetwork
	changed  *membership.Record
	extra    []membership.Party
}

func NewNotifyActiveMembersView(operator *Operator, bn membership.BusinessNetwork, changed *membership.Record, extra ...membership.Party) *NotifyActiveMembersView {
	return &NotifyActiveMembersView{operator: operator, bn: bn, changed: changed, extra: extra}
}

// Call returns the parties that have been notified.
func (n *NotifyActiveMembersView) Call(context view.Context) (interface{}, error) {
	records, err := n.operator.Index.GetActiveMembershipsExceptOperator(context.Context(), n.bn)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed listing active members of [%s]", n.bn)
	}
	var recipients []membership.Party
	for _, r := range records {
		recipients = append(recipients, r.State.Member)
	}
	for _, p := range n.extra {
		if !membership.ContainsParty(recipients, p) {
			recipients = append(recipients, p)
		}
	}

	maxNotifiers := n.operator.MaxNotifiers
	if maxNotifiers <= 0 {
		maxNotifiers = defaultMaxNotifiers
	}
	p := pool.NewWithResults[*membership.Party]().WithMaxGoroutines(maxNotifiers)
	for _, recipient := range recipients {
		recipient := recipient
		p.Go(func() *membership.Party {
			if _, err := context.RunView(NewNotifyMemberView(n.operator, n.changed, recipient)); err != nil {
				logger.Warnf("failed notifying [%s] of [%s]: %s", recipient, n.changed, err)
				return nil
			}
			return &recipient
		})
	}
	var notified []membership.Party
	for _, r := range p.Wait() {
		if r != nil {
			notified = append(notified, *r)
		}
	}
	logger.Debugf("notified [%d] of [%d] members of [%s]", len(notified), len(recipients), n.bn)
	return notified, nil
}
