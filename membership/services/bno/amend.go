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

// AmendMetadataResponderView changes the metadata of the active membership of the counterparty
// and notifies the active members of the change.
type AmendMetadataResponderView struct {
	operator *Operator
}

func NewAmendMetadataResponderView(operator *Operator) *AmendMetadataResponderView {
	return &AmendMetadataResponderView{operator: operator}
}

func (a *AmendMetadataResponderView) Call(context view.Context) (res interface{}, err error) {
	defer func() { a.operator.Metrics.observeFlow("amend_metadata", err) }()
	tracker := view.NewProgressTracker("AmendMetadataResponder")
	session := view.FromContext(context)
	counterparty := session.Info().Counterparty
	ctx := context.Context()

	tracker.SetCurrentStep(view.StepVerifyingRequest)
	request := &protocol.AmendMetadataRequest{}
	if err := session.Receive(request); err != nil {
		return nil, errors.WithMessagef(err, "failed receiving metadata change from [%s]", counterparty)
	}
	bn, err := a.operator.BusinessNetwork(context, request.BusinessNetworkID)
	if err != nil {
		return nil, err
	}
	if err := verifyRequestedNetwork(bn, request.BusinessNetwork); err != nil {
		return nil, err
	}
	record, err := a.operator.VerifyAndGetMembership(ctx, counterparty, bn)
	if err != nil {
		return nil, err
	}
	operatorRecord, err := a.operator.OperatorMembership(ctx, bn)
	if err != nil {
		return nil, err
	}
	notary, err := a.operator.Config.Notary()
	if err != nil {
		return nil, err
	}

	tracker.SetCurrentStep(view.StepBuildingTransaction)
	me := context.Me()
	tx, err := membership.NewTransactionBuilder(notary).
		AddInputState(record).
		AddOutputState(record.State.WithMetadata(request.Metadata, context.Ledger().Now()), record.Contract).
		AddCommand(membership.Amend, counterparty.Identity, me.Identity).
		AddReferenceState(operatorRecord).
		ToTransaction()
	if err != nil {
		return nil, err
	}
	tracker.SetCurrentStep(view.StepVerifyingTransaction)
	if err := runVerifier(context, a.operator.VerifyAmend, tx); err != nil {
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
	var notarised *membership.SignedTransaction
	if protocol.IsLegacy(session.Info()) {
		notarised, err = finalise(context, stx)
	} else {
		notarised, err = finalise(context, stx, session)
	}
	if err != nil {
		return nil, err
	}

	tracker.SetCurrentStep(view.StepNotifying)
	amended, err := outputRecord(notarised)
	if err != nil {
		return nil, err
	}
	if _, err := context.RunView(NewNotifyActiveMembersView(a.operator, bn, amended)); err != nil {
		return nil, err
	}
	tracker.SetCurrentStep(view.StepDone)
	return notarised, nil
}
