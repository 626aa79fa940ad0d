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

// RequestMembershipResponderView issues the pending membership requested by the counterparty.
// At most one request per party is served at a time.
type RequestMembershipResponderView struct {
	operator *Operator
}

func NewRequestMembershipResponderView(operator *Operator) *RequestMembershipResponderView {
	return &RequestMembershipResponderView{operator: operator}
}

func (r *RequestMembershipResponderView) Call(context view.Context) (res interface{}, err error) {
	defer func() { r.operator.Metrics.observeFlow("request_membership", err) }()
	tracker := view.NewProgressTracker("RequestMembershipResponder")
	session := view.FromContext(context)
	counterparty := session.Info().Counterparty

	tracker.SetCurrentStep(view.StepVerifyingRequest)
	request := &protocol.OnBoardingRequest{}
	if err := session.Receive(request); err != nil {
		return nil, errors.WithMessagef(err, "failed receiving on-boarding request from [%s]", counterparty)
	}
	bn, err := r.operator.BusinessNetwork(context, request.BusinessNetworkID)
	if err != nil {
		return nil, err
	}
	if err := verifyRequestedNetwork(bn, request.BusinessNetwork); err != nil {
		return nil, err
	}
	operatorRecord, err := r.operator.OperatorMembership(context.Context(), bn)
	if err != nil {
		return nil, err
	}
	existing, err := r.operator.Index.GetMembership(context.Context(), counterparty, bn)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, membership.NewMembershipAlreadyExistsError(counterparty, bn)
	}

	if err := r.operator.Index.CreatePendingRequestMarker(context.Context(), counterparty); err != nil {
		logger.Warnf("cannot accept the membership request of [%s]: %s", counterparty, err)
		return nil, err
	}
	stx, err := r.issue(context, tracker, session, bn, operatorRecord, request.Metadata)
	if err != nil {
		return nil, err
	}

	record, err := outputRecord(stx)
	if err != nil {
		return nil, err
	}
	if r.operator.autoActivate(record.State) {
		logger.Infof("auto-activating membership of [%s]", counterparty)
		if _, err := context.RunView(NewActivateMembershipView(r.operator, bn.ID, record)); err != nil {
			return nil, errors.WithMessagef(err, "failed auto-activating membership of [%s]", counterparty)
		}
	}
	tracker.SetCurrentStep(view.StepDone)
	return stx, nil
}

// issue issues the pending membership, releasing the pending request marker whatever the outcome.
func (r *RequestMembershipResponderView) issue(
	context view.Context,
	tracker *view.ProgressTracker,
	session *view.JSession,
	bn membership.BusinessNetwork,
	operatorRecord *membership.Record,
	metadata membership.Metadata,
) (*membership.SignedTransaction, error) {
	counterparty := session.Info().Counterparty
	defer func() {
		logger.Infof("removing the pending request of [%s]", counterparty)
		if err := r.operator.Index.DeletePendingRequestMarker(context.Context(), counterparty); err != nil {
			logger.Warnf("failed removing the pending request of [%s]: %s", counterparty, err)
		}
	}()

	// a request holding the marker may have completed since the first lookup
	existing, err := r.operator.Index.GetMembership(context.Context(), counterparty, bn)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, membership.NewMembershipAlreadyExistsError(counterparty, bn)
	}

	notary, err := r.operator.Config.Notary()
	if err != nil {
		return nil, err
	}
	tracker.SetCurrentStep(view.StepBuildingTransaction)
	me := context.Me()
	state, err := membership.NewState(counterparty, bn, metadata, membership.Pending, context.Ledger().Now())
	if err != nil {
		return nil, err
	}
	tx, err := membership.NewTransactionBuilder(notary).
		AddOutputState(state, membership.DefaultContractName).
		AddCommand(membership.Request, counterparty.Identity, me.Identity).
		AddReferenceState(operatorRecord).
		ToTransaction()
	if err != nil {
		return nil, err
	}

	tracker.SetCurrentStep(view.StepVerifyingTransaction)
	if err := runVerifier(context, r.operator.VerifyRequest, tx); err != nil {
		return nil, err
	}
	tracker.SetCurrentStep(view.StepSigning)
	stx, err := signInitial(context, tx, counterparty)
	if err != nil {
		return nil, err
	}
	tracker.SetCurrentStep(view.StepCollectingSignatures)
	stx, err = collectSignatures(context, stx, session)
	if err != nil {
		return nil, err
	}

	tracker.SetCurrentStep(view.StepFinalising)
	if protocol.IsLegacy(session.Info()) {
		return finalise(context, stx)
	}
	return finalise(context, stx, session)
}
