/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package member

import (
	"github.com/hyperledger-labs/fabric-bnms/membership"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/protocol"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/ttx"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/view"
	"github.com/pkg/errors"
)

// FinalityResponderView records a transaction finalised by the operator.
type FinalityResponderView struct {
	statesToRecord view.StatesToRecord
}

func NewFinalityResponderView(statesToRecord view.StatesToRecord) *FinalityResponderView {
	return &FinalityResponderView{statesToRecord: statesToRecord}
}

func (f *FinalityResponderView) Call(context view.Context) (interface{}, error) {
	return context.RunView(ttx.NewReceiveFinalityView(view.FromContext(context), "", f.statesToRecord))
}

// NewActivateMembershipResponderView records activations with all their states, making this node
// an observer of the memberships of the others.
func NewActivateMembershipResponderView() *FinalityResponderView {
	return NewFinalityResponderView(view.AllVisible)
}

// NotifyMemberResponderView applies the membership changes pushed by a whitelisted operator.
type NotifyMemberResponderView struct {
	member *Member
}

func NewNotifyMemberResponderView(member *Member) *NotifyMemberResponderView {
	return &NotifyMemberResponderView{member: member}
}

func (n *NotifyMemberResponderView) Call(context view.Context) (res interface{}, err error) {
	defer func() { n.member.Metrics.observeFlow("notify_member", err) }()
	session := view.FromContext(context)
	operator := session.Info().Counterparty
	// only whitelisted operators are listened to, nothing is read from the others
	if !n.member.Config.IsWhitelistedOperator(operator) {
		return nil, membership.NewOperatorNotWhitelistedError(operator)
	}

	notification := &protocol.MembershipChangedNotification{}
	if err := session.Receive(notification); err != nil {
		return nil, errors.WithMessagef(err, "failed receiving notification from [%s]", operator)
	}
	changed := notification.Changed
	if changed == nil || changed.State == nil {
		return nil, membership.NewInvalidTransactionError("empty notification from [%s]", operator)
	}
	// the operator must also be the one of the changed business network
	bn, err := n.member.Config.ResolveBusinessNetwork(changed.State.BusinessNetwork.ID, operator)
	if err != nil {
		return nil, err
	}
	if changed.State.BusinessNetwork.HasDifferentOperator(bn) {
		return nil, membership.NewOperatorsDifferError(bn.Operator, changed.State.BusinessNetwork.Operator)
	}

	if changed.State.Member.Equal(context.Me()) && changed.State.IsSuspended() {
		// a suspended member receives no more notifications
		n.member.Cache.Reset(bn)
		n.member.Metrics.setCached(bn.ID, 0)
	} else {
		n.member.Cache.UpdateMembership(changed)
	}

	if err := session.Send(&protocol.NotificationAck{TxID: changed.Ref.TxID}); err != nil {
		return nil, errors.WithMessagef(err, "failed acknowledging notification from [%s]", operator)
	}
	return notification, nil
}
