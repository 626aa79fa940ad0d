/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package bno

import (
	"github.com/hyperledger-labs/fabric-bnms/membership"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/view"
)

// RegisterBNOView issues the active membership of the operator in an empty business network.
type RegisterBNOView struct {
	operator *Operator
	id       string
	metadata membership.Metadata
	// Verifier runs additional checks on the registration transaction.
	Verifier TransactionVerifier
}

func NewRegisterBNOView(operator *Operator, id string, metadata membership.Metadata) *RegisterBNOView {
	return &RegisterBNOView{operator: operator, id: id, metadata: metadata}
}

func (r *RegisterBNOView) Call(context view.Context) (res interface{}, err error) {
	defer func() { r.operator.Metrics.observeFlow("register_bno", err) }()
	tracker := view.NewProgressTracker("RegisterBNO")

	tracker.SetCurrentStep(view.StepVerifyingRequest)
	bn, err := r.operator.BusinessNetwork(context, r.id)
	if err != nil {
		return nil, err
	}
	empty, err := r.operator.IsEmpty(context.Context(), bn)
	if err != nil {
		return nil, err
	}
	if !empty {
		return nil, membership.NewNonEmptyBusinessNetworkError(bn.ID)
	}
	notary, err := r.operator.Config.Notary()
	if err != nil {
		return nil, err
	}

	tracker.SetCurrentStep(view.StepBuildingTransaction)
	me := context.Me()
	state, err := membership.NewState(me, bn, r.metadata, membership.Active, context.Ledger().Now())
	if err != nil {
		return nil, err
	}
	tx, err := membership.NewTransactionBuilder(notary).
		AddOutputState(state, membership.DefaultContractName).
		AddCommand(membership.RegisterBNO, me.Identity).
		ToTransaction()
	if err != nil {
		return nil, err
	}

	tracker.SetCurrentStep(view.StepVerifyingTransaction)
	if err := runVerifier(context, r.Verifier, tx); err != nil {
		return nil, err
	}
	tracker.SetCurrentStep(view.StepSigning)
	stx, err := signInitial(context, tx)
	if err != nil {
		return nil, err
	}

	tracker.SetCurrentStep(view.StepFinalising)
	notarised, err := finalise(context, stx)
	if err != nil {
		return nil, err
	}
	tracker.SetCurrentStep(view.StepDone)
	logger.Infof("operator [%s] registered in [%s] with [%s]", me, bn, notarised.ID())
	return notarised, nil
}
