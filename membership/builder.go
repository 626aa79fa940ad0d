/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package membership

import (
	"github.com/hashicorp/go-uuid"
	"github.com/pkg/errors"
)

// TransactionBuilder assembles a membership transaction.
type TransactionBuilder struct {
	tx *Transaction
}

func NewTransactionBuilder(notary Party) *TransactionBuilder {
	return &TransactionBuilder{tx: &Transaction{Notary: notary}}
}

// AddInputState consumes the passed record.
func (b *TransactionBuilder) AddInputState(record *Record) *TransactionBuilder {
	b.tx.Inputs = append(b.tx.Inputs, *record)
	return b
}

// AddOutputState produces the passed state, to be verified by the named contract.
func (b *TransactionBuilder) AddOutputState(state *State, contract string) *TransactionBuilder {
	b.tx.Outputs = append(b.tx.Outputs, TxState{Contract: contract, Membership: state})
	return b
}

// AddOpaqueOutput produces a state the membership contract does not look into.
func (b *TransactionBuilder) AddOpaqueOutput(contract, typ string, data []byte) *TransactionBuilder {
	b.tx.Outputs = append(b.tx.Outputs, TxState{Contract: contract, Type: typ, Data: data})
	return b
}

// AddReferenceState adds a read-only witness.
func (b *TransactionBuilder) AddReferenceState(record *Record) *TransactionBuilder {
	b.tx.References = append(b.tx.References, *record)
	return b
}

func (b *TransactionBuilder) AddCommand(cmd Command, signers ...Identity) *TransactionBuilder {
	b.tx.Commands = append(b.tx.Commands, CommandWithSigners{Command: cmd, Signers: signers})
	return b
}

// ToTransaction seals the builder and returns the transaction with a fresh nonce.
func (b *TransactionBuilder) ToTransaction() (*Transaction, error) {
	nonce, err := uuid.GenerateUUID()
	if err != nil {
		return nil, errors.Wrap(err, "failed generating transaction nonce")
	}
	tx := *b.tx
	tx.Nonce = nonce
	return &tx, nil
}

// Verify runs the contracts named by the transaction states against the current content
// of the builder.
func (b *TransactionBuilder) Verify(registry *ContractRegistry) error {
	return registry.Verify(b.tx)
}

// Sign seals the builder and signs the resulting transaction.
func (b *TransactionBuilder) Sign(signer *SigningIdentity) (*SignedTransaction, error) {
	tx, err := b.ToTransaction()
	if err != nil {
		return nil, err
	}
	return NewSignedTransaction(tx, signer), nil
}
