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
)

// statusChange is a transition of a membership decided by the operator alone.
type statusChange struct {
	flow     string
	protocol string
	command  membership.Command
	status   membership.Status
	// notifyMember sends the notification to the member even if it is not active anymore
	notifyMember bool
}

var (
	activation = statusChange{
		flow:     "activate_membership",
		protocol: protocol.ActivateMembership,
		command:  membership.Activate,
		status:   membership.Active,
	}
	suspension = statusChange{
		flow:         "suspend_membership",
		protocol:     protocol.SuspendMembership,
		command:      membership.Suspend,
		status:       membership.Suspended,
		notifyMember: true,
	}
)

// ActivateMembershipView activates a pending or suspended membership. The transaction is
// distributed to the member and to the other active members, that observe it.
type ActivateMembershipView struct {
	*changeStatusView
}

func NewActivateMembershipView(operator *Operator, id string, record *membership.Record) *ActivateMembershipView {
	return &ActivateMembershipView{changeStatusView: &changeStatusView{operator: operator, id: id, record: record, change: activation}}
}

// SuspendMembershipView suspends an active membership. The transaction is distributed to
// the member and to the other active members.
type SuspendMembershipView struct {
	*changeStatusView
}

func NewSuspendMembershipView(operator *Operator, id string, record *membership.Record) *SuspendMembershipView {
	return &SuspendMembershipView{changeStatusView: &changeStatusView{operator: operator, id: id, record: record, change: suspension}}
}

type changeStatusView struct {
	operator *Operator
	id       string
	record   *membership.Record
	change   statusChange
}

func (c *changeStatusView) Call(context view.Context) (res interface{}, err error) {
	defer func() { c.operator.Metrics.observeFlow(c.change.flow, err) }()
	tracker := view.NewProgressTracker(c.change.flow)
	ctx := context.Context()

	tracker.SetCurrentStep(view.StepVerifyingRequest)
	bn, err := c.operator.VerifyThatWeAreOperator(context, c.id, c.record.State)
	if err != nil {
		return nil, err
	}
	operatorRecord, err := c.operator.OperatorMembership(ctx, bn)
	if err != nil {
		return nil, err
	}
	notary, err := c.operator.Config.Notary()
	if err != nil {
		return nil, err
	}

	tracker.SetCurrentStep(view.StepBuildingTransaction)
	me := context.Me()
	tx, err := membership.NewTransactionBuilder(notary).
		AddInputState(c.record).
		AddOutputState(c.record.State.WithStatus(c.change.status, context.Ledger().Now()), c.record.Contract).
		AddCommand(c.change.command, me.Identity).
		AddReferenceState(operatorRecord).
		ToTransaction()
	if err != nil {
		return nil, err
	}
	tracker.SetCurrentStep(view.StepSigning)
	stx, err := signInitial(context, tx)
	if err != nil {
		return nil, err
	}

	tracker.SetCurrentStep(view.StepFinalising)
	member := c.record.State.Member
	sessions, err := c.sessions(context, bn, member)
	if err != nil {
		return nil, err
	}
	notarised, err := finalise(context, stx, sessions...)
	if err != nil {
		return nil, err
	}

	tracker.SetCurrentStep(view.StepNotifying)
	changed, err := outputRecord(notarised)
	if err != nil {
		return nil, err
	}
	var direct []membership.Party
	if c.change.notifyMember {
		direct = append(direct, member)
	}
	if _, err := context.RunView(NewNotifyActiveMembersView(c.operator, bn, changed, direct...)); err != nil {
		return nil, err
	}
	tracker.SetCurrentStep(view.StepDone)
	logger.Infof("membership of [%s] in [%s] is now [%s]", member, bn, c.change.status)
	return notarised, nil
}

// sessions opens the sessions the finalised transaction is distributed to: the member first, then
// the other active members. A member running the legacy protocol gets no session at all.
func (c *changeStatusView) sessions(context view.Context, bn membership.BusinessNetwork, member membership.Party) ([]*view.JSession, error) {
	p := protocol.New(c.change.protocol)
	memberSession, err := view.OpenJSession(context, p, member)
	if err != nil {
		return nil, err
	}
	if protocol.IsLegacy(memberSession.Info()) {
		logger.Debugf("[%s] runs the legacy protocol, finalise without counterparties", member)
		memberSession.Session().Close()
		return nil, nil
	}
	sessions := []*view.JSession{memberSession}

	others, err := c.operator.Index.GetActiveMembershipsExceptOperator(context.Context(), bn)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed listing active members of [%s]", bn)
	}
	for _, r := range others {
		observer := r.State.Member
		if observer.Equal(member) {
			continue
		}
		s, err := view.OpenJSession(context, p, observer)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

// ActivateMembershipForPartyView activates the membership of a party.
type ActivateMembershipForPartyView struct {
	operator *Operator
	id       string
	party    membership.Party
}

func NewActivateMembershipForPartyView(operator *Operator, id string, party membership.Party) *ActivateMembershipForPartyView {
	return &ActivateMembershipForPartyView{operator: operator, id: id, party: party}
}

func (a *ActivateMembershipForPartyView) Call(context view.Context) (interface{}, error) {
	record, err := findForParty(context, a.operator, a.id, a.party)
	if err != nil {
		return nil, err
	}
	return context.RunView(NewActivateMembershipView(a.operator, a.id, record))
}

// SuspendMembershipForPartyView suspends the membership of a party.
type SuspendMembershipForPartyView struct {
	operator *Operator
	id       string
	party    membership.Party
}

func NewSuspendMembershipForPartyView(operator *Operator, id string, party membership.Party) *SuspendMembershipForPartyView {
	return &SuspendMembershipForPartyView{operator: operator, id: id, party: party}
}

func (s *SuspendMembershipForPartyView) Call(context view.Context) (interface{}, error) {
	record, err := findForParty(context, s.operator, s.id, s.party)
	if err != nil {
		return nil, err
	}
	return context.RunView(NewSuspendMembershipView(s.operator, s.id, record))
}

func findForParty(context view.Context, operator *Operator, id string, party membership.Party) (*membership.Record, error) {
	bn, err := operator.BusinessNetwork(context, id)
	if err != nil {
		return nil, err
	}
	return operator.FindMembership(context.Context(), party, bn)
}
