/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package bno

import (
	"context"

	"github.com/hyperledger-labs/fabric-bnms/membership"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/logging"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/metrics"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/ttx"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/view"
	"github.com/pkg/errors"
)

var logger = logging.MustGetLogger("bno")

const defaultMaxNotifiers = 8

// Configuration is what the operator flows need from the configuration service.
type Configuration interface {
	ResolveBusinessNetwork(id string, expectedOperator membership.Party) (membership.BusinessNetwork, error)
	Notary() (membership.Party, error)
	AutoActivate() bool
}

// MembershipIndex is the operator's index of the memberships of its business networks.
type MembershipIndex interface {
	GetMembership(ctx context.Context, party membership.Party, bn membership.BusinessNetwork) (*membership.Record, error)
	GetAllMemberships(ctx context.Context, bn membership.BusinessNetwork) ([]*membership.Record, error)
	GetActiveMemberships(ctx context.Context, bn membership.BusinessNetwork) ([]*membership.Record, error)
	GetActiveMembershipsExceptOperator(ctx context.Context, bn membership.BusinessNetwork) ([]*membership.Record, error)
	CreatePendingRequestMarker(ctx context.Context, party membership.Party) error
	DeletePendingRequestMarker(ctx context.Context, party membership.Party) error
}

// AutoActivatePolicy decides whether a freshly issued pending membership is activated right away.
type AutoActivatePolicy func(state *membership.State, config Configuration) bool

// TransactionVerifier runs additional checks on a transaction built by the operator before it is signed.
type TransactionVerifier func(context view.Context, tx *membership.Transaction) error

// ConfigAutoActivate activates memberships when the configuration says so.
func ConfigAutoActivate(_ *membership.State, config Configuration) bool {
	return config.AutoActivate()
}

// Operator holds the services and the policies of the operator flows.
type Operator struct {
	Config  Configuration
	Index   MembershipIndex
	Metrics *Metrics

	// AutoActivate defaults to ConfigAutoActivate.
	AutoActivate AutoActivatePolicy
	// VerifyRequest and VerifyAmend may reject the transactions issuing or amending memberships.
	VerifyRequest TransactionVerifier
	VerifyAmend   TransactionVerifier
	// MaxNotifiers bounds the notifications sent concurrently.
	MaxNotifiers int
}

func NewOperator(config Configuration, index MembershipIndex, provider metrics.Provider) *Operator {
	if provider == nil {
		provider = metrics.NewDisabledProvider()
	}
	return &Operator{
		Config:       config,
		Index:        index,
		Metrics:      NewMetrics(provider),
		AutoActivate: ConfigAutoActivate,
		MaxNotifiers: defaultMaxNotifiers,
	}
}

// BusinessNetwork returns the business network with the passed id run by this node.
// If id is empty, this node must run exactly one business network.
func (o *Operator) BusinessNetwork(context view.Context, id string) (membership.BusinessNetwork, error) {
	return o.Config.ResolveBusinessNetwork(id, context.Me())
}

// VerifyThatWeAreOperator checks that the business network of state is the one with the passed id
// and that this node runs it.
func (o *Operator) VerifyThatWeAreOperator(context view.Context, id string, state *membership.State) (membership.BusinessNetwork, error) {
	bn, err := o.BusinessNetwork(context, id)
	if err != nil {
		return membership.BusinessNetwork{}, err
	}
	if !bn.Equal(state.BusinessNetwork) {
		return membership.BusinessNetwork{}, membership.NewBusinessNetworksDifferError(bn.ID, state.BusinessNetwork.ID)
	}
	if bn.HasDifferentOperator(state.BusinessNetwork) {
		return membership.BusinessNetwork{}, membership.NewOperatorsDifferError(bn.Operator, state.BusinessNetwork.Operator)
	}
	if !context.Me().Equal(state.BusinessNetwork.Operator) {
		return membership.BusinessNetwork{}, membership.NewNotOperatorError(state)
	}
	return bn, nil
}

// verifyRequestedNetwork checks the business network a member asked for against the resolved one.
func verifyRequestedNetwork(bn, requested membership.BusinessNetwork) error {
	if len(requested.ID) == 0 {
		return nil
	}
	if !bn.Equal(requested) {
		return membership.NewBusinessNetworksDifferError(bn.ID, requested.ID)
	}
	if bn.HasDifferentOperator(requested) {
		return membership.NewOperatorsDifferError(bn.Operator, requested.Operator)
	}
	return nil
}

// OperatorMembership returns the active membership of the operator, the reference of every
// transaction on the memberships of the business network.
func (o *Operator) OperatorMembership(ctx context.Context, bn membership.BusinessNetwork) (*membership.Record, error) {
	record, err := o.Index.GetMembership(ctx, bn.Operator, bn)
	if err != nil {
		return nil, err
	}
	if record == nil || !record.State.IsActive() {
		return nil, membership.NewNoOperatorRegisteredError(bn)
	}
	return record, nil
}

func (o *Operator) FindMembership(ctx context.Context, party membership.Party, bn membership.BusinessNetwork) (*membership.Record, error) {
	record, err := o.Index.GetMembership(ctx, party, bn)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, membership.NewMembershipNotFoundError(party)
	}
	return record, nil
}

// VerifyAndGetMembership returns the membership of party, failing unless it is active.
func (o *Operator) VerifyAndGetMembership(ctx context.Context, party membership.Party, bn membership.BusinessNetwork) (*membership.Record, error) {
	logger.Infof("verifying membership status of [%s] in [%s]", party, bn)
	record, err := o.Index.GetMembership(ctx, party, bn)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, membership.NewNotAMemberError(party)
	}
	if !record.State.IsActive() {
		return nil, membership.NewMembershipNotActiveError(party)
	}
	return record, nil
}

func (o *Operator) IsEmpty(ctx context.Context, bn membership.BusinessNetwork) (bool, error) {
	records, err := o.Index.GetAllMemberships(ctx, bn)
	if err != nil {
		return false, err
	}
	return len(records) == 0, nil
}

func (o *Operator) autoActivate(state *membership.State) bool {
	if o.AutoActivate == nil {
		return false
	}
	return o.AutoActivate(state, o.Config)
}

// signInitial signs tx with the key of this node and verifies it, allowing the signatures of
// the passed parties to be missing.
func signInitial(context view.Context, tx *membership.Transaction, counterparties ...membership.Party) (*membership.SignedTransaction, error) {
	stx := (&membership.SignedTransaction{Tx: tx}).WithSignature(context.Ledger().Sign(tx))
	missing := make([]membership.Identity, len(counterparties))
	for i, p := range counterparties {
		missing[i] = p.Identity
	}
	if err := context.Ledger().Verify(stx, missing...); err != nil {
		return nil, membership.NewTransactionRejectedError(stx.ID(), err)
	}
	return stx, nil
}

func runVerifier(context view.Context, verifier TransactionVerifier, tx *membership.Transaction) error {
	if verifier == nil {
		return nil
	}
	if err := verifier(context, tx); err != nil {
		return membership.NewTransactionRejectedError(tx.ID(), err)
	}
	return nil
}

func collectSignatures(context view.Context, stx *membership.SignedTransaction, sessions ...*view.JSession) (*membership.SignedTransaction, error) {
	res, err := context.RunView(ttx.NewCollectSignaturesView(stx, sessions...))
	if err != nil {
		return nil, err
	}
	return res.(*membership.SignedTransaction), nil
}

// finalise notarises stx and distributes it to the sessions.
func finalise(context view.Context, stx *membership.SignedTransaction, sessions ...*view.JSession) (*membership.SignedTransaction, error) {
	res, err := context.RunView(ttx.NewFinalityView(stx, sessions...))
	if err != nil {
		return nil, err
	}
	return res.(*membership.SignedTransaction), nil
}

func outputRecord(stx *membership.SignedTransaction) (*membership.Record, error) {
	for _, r := range stx.Tx.OutputRecords() {
		if r.State != nil {
			return r, nil
		}
	}
	return nil, errors.Errorf("transaction [%s] has no membership output", stx.ID())
}
