/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package inmem

import (
	"context"
	"sync"

	"github.com/hyperledger-labs/fabric-bnms/membership"
	"github.com/pkg/errors"
)

// Notary is a uniqueness notary: it signs a transaction only if none of its inputs
// and references has been consumed by another transaction.
type Notary struct {
	signer   *membership.SigningIdentity
	registry *membership.ContractRegistry

	mutex    sync.Mutex
	consumed map[membership.StateRef]string
}

func newNotary(signer *membership.SigningIdentity, registry *membership.ContractRegistry) *Notary {
	return &Notary{signer: signer, registry: registry, consumed: map[membership.StateRef]string{}}
}

func (n *Notary) Party() membership.Party {
	return n.signer.Party
}

func (n *Notary) Notarize(_ context.Context, stx *membership.SignedTransaction) (*membership.SignedTransaction, error) {
	txID := stx.ID()
	if !stx.Tx.Notary.Equal(n.Party()) {
		return nil, errors.Errorf("transaction [%s] is assigned to notary [%s], not [%s]", txID, stx.Tx.Notary, n.Party())
	}
	if err := n.registry.Verify(stx.Tx); err != nil {
		return nil, membership.NewTransactionRejectedError(txID, err)
	}
	if err := stx.VerifySignatures(); err != nil {
		return nil, membership.NewTransactionRejectedError(txID, err)
	}

	n.mutex.Lock()
	defer n.mutex.Unlock()
	for _, in := range stx.Tx.Inputs {
		if by, ok := n.consumed[in.Ref]; ok && by != txID {
			return nil, membership.NewTransactionRejectedError(txID, errors.Errorf("input [%s] already consumed by [%s]", in.Ref, by))
		}
	}
	for _, ref := range stx.Tx.References {
		if by, ok := n.consumed[ref.Ref]; ok && by != txID {
			return nil, membership.NewTransactionRejectedError(txID, errors.Errorf("reference [%s] already consumed by [%s]", ref.Ref, by))
		}
	}
	for _, in := range stx.Tx.Inputs {
		n.consumed[in.Ref] = txID
	}
	sig := membership.SignTransaction(stx.Tx, n.signer)
	return &membership.SignedTransaction{Tx: stx.Tx, Signatures: stx.Signatures, NotarySignature: &sig}, nil
}
