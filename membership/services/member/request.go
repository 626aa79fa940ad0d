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

// RequestMembershipView asks the operator to issue a pending membership for this node.
// It returns the finalised transaction, or the transaction signed by this node if the operator
// runs the legacy protocol.
type RequestMembershipView struct {
	member   *Member
	id       string
	operator membership.Party
	metadata membership.Metadata
}

func NewRequestMembershipView(member *Member, id string, operator membership.Party, metadata membership.Metadata) *RequestMembershipView {
	return &RequestMembershipView{member: member, id: id, operator: operator, metadata: metadata}
}

func (r *RequestMembershipView) Call(context view.Context) (res interface{}, err error) {
	defer func() { r.member.Metrics.observeFlow("request_membership", err) }()
	tracker := view.NewProgressTracker("RequestMembership")

	bn, err := r.member.Config.ResolveBusinessNetwork(r.id, r.operator)
	if err != nil {
		return nil, err
	}
	session, err := view.OpenJSession(context, protocol.New(protocol.RequestMembership), r.operator)
	if err != nil {
		return nil, err
	}
	tracker.SetCurrentStep(view.StepVerifyingRequest)
	if err := session.Send(&protocol.OnBoardingRequest{BusinessNetworkID: bn.ID, BusinessNetwork: bn, Metadata: r.metadata}); err != nil {
		return nil, errors.WithMessagef(err, "failed sending on-boarding request to [%s]", r.operator)
	}

	tracker.SetCurrentStep(view.StepAwaitingSignature)
	return signAndReceiveFinality(context, tracker, session, checkProposal(context, membership.Request, r.operator))
}

// AmendMembershipMetadataView asks the operator to replace the metadata of the active membership of this node.
type AmendMembershipMetadataView struct {
	member   *Member
	id       string
	operator membership.Party
	metadata membership.Metadata
}

func NewAmendMembershipMetadataView(member *Member, id string, operator membership.Party, metadata membership.Metadata) *AmendMembershipMetadataView {
	return &AmendMembershipMetadataView{member: member, id: id, operator: operator, metadata: metadata}
}

func (a *AmendMembershipMetadataView) Call(context view.Context) (res interface{}, err error) {
	defer func() { a.member.Metrics.observeFlow("amend_metadata", err) }()
	tracker := view.NewProgressTracker("AmendMembershipMetadata")

	bn, err := a.member.Config.ResolveBusinessNetwork(a.id, a.operator)
	if err != nil {
		return nil, err
	}
	session, err := view.OpenJSession(context, protocol.New(protocol.AmendMetadata), a.operator)
	if err != nil {
		return nil, err
	}
	tracker.SetCurrentStep(view.StepVerifyingRequest)
	if err := session.Send(&protocol.AmendMetadataRequest{BusinessNetworkID: bn.ID, BusinessNetwork: bn, Metadata: a.metadata}); err != nil {
		return nil, errors.WithMessagef(err, "failed sending metadata change to [%s]", a.operator)
	}

	tracker.SetCurrentStep(view.StepAwaitingSignature)
	return signAndReceiveFinality(context, tracker, session, checkProposal(context, membership.Amend, a.operator))
}

// checkProposal checks the transaction proposed by the operator before this node signs it.
// The contracts are run afterwards by the ledger.
func checkProposal(context view.Context, command membership.Command, operator membership.Party) func(stx *membership.SignedTransaction) error {
	return func(stx *membership.SignedTransaction) error {
		tx := stx.Tx
		if len(tx.Commands) != 1 || tx.Commands[0].Command != command {
			return membership.NewInvalidTransactionError("only the [%s] command is allowed in [%s]", command, stx.ID())
		}
		outputs := tx.MembershipOutputs()
		if len(outputs) != 1 {
			return membership.NewInvalidTransactionError("transaction [%s] must have a single membership output", stx.ID())
		}
		output := outputs[0]
		if !output.BusinessNetwork.Operator.Equal(operator) {
			return membership.NewOperatorsDifferError(operator, output.BusinessNetwork.Operator)
		}
		if me := context.Me(); !output.Member.Equal(me) {
			return membership.NewInvalidTransactionError("wrong member [%s] in [%s], expected [%s]", output.Member, stx.ID(), me)
		}
		return nil
	}
}

func signAndReceiveFinality(
	context view.Context,
	tracker *view.ProgressTracker,
	session *view.JSession,
	check func(stx *membership.SignedTransaction) error,
) (*membership.SignedTransaction, error) {
	tracker.SetCurrentStep(view.StepSigning)
	res, err := context.RunView(ttx.NewSignTransactionView(session, check))
	if err != nil {
		return nil, err
	}
	signed := res.(*membership.SignedTransaction)
	if protocol.IsLegacy(session.Info()) {
		tracker.SetCurrentStep(view.StepDone)
		return signed, nil
	}

	tracker.SetCurrentStep(view.StepAwaitingFinality)
	res, err = context.RunView(ttx.NewReceiveFinalityView(session, signed.ID(), view.OnlyRelevant))
	if err != nil {
		return nil, err
	}
	tracker.SetCurrentStep(view.StepDone)
	logger.Infof("membership transaction [%s] finalised", signed.ID())
	return res.(*membership.SignedTransaction), nil
}
