/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package membership

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/crypto/sha3"
)

// Command is the intent of a membership transaction. The set is closed.
type Command int

const (
	RegisterBNO Command = iota + 1
	Request
	Activate
	Suspend
	Amend
)

var commandNames = map[Command]string{
	RegisterBNO: "RegisterBNO",
	Request:     "Request",
	Activate:    "Activate",
	Suspend:     "Suspend",
	Amend:       "Amend",
}

func (c Command) String() string {
	if n, ok := commandNames[c]; ok {
		return n
	}
	return fmt.Sprintf("Command(%d)", int(c))
}

func (c Command) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Command) UnmarshalText(text []byte) error {
	for k, v := range commandNames {
		if v == string(text) {
			*c = k
			return nil
		}
	}
	return errors.Errorf("unknown command [%s]", string(text))
}

// CommandWithSigners is a command together with the identities required to sign for it.
type CommandWithSigners struct {
	Command Command    `json:"command"`
	Signers []Identity `json:"signers"`
}

// HasSigners reports whether the signers of the command are exactly the passed identities,
// regardless of order and repetitions.
func (c CommandWithSigners) HasSigners(ids ...Identity) bool {
	return sameIdentities(c.Signers, ids)
}

// TxState is an output of a transaction. Outputs that are not memberships are carried
// opaquely in Type and Data.
type TxState struct {
	Contract   string          `json:"contract"`
	Membership *State          `json:"membership,omitempty"`
	Type       string          `json:"type,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// Transaction is the proposed ledger update: consumed inputs, produced outputs,
// read-only references and commands.
type Transaction struct {
	Notary     Party                `json:"notary"`
	Inputs     []Record             `json:"inputs,omitempty"`
	Outputs    []TxState            `json:"outputs"`
	References []Record             `json:"references,omitempty"`
	Commands   []CommandWithSigners `json:"commands"`
	Nonce      string               `json:"nonce"`
}

// ID returns the hex encoded SHA3-256 digest of the canonical encoding of the transaction.
func (t *Transaction) ID() string {
	raw, err := t.Bytes()
	if err != nil {
		panic(fmt.Sprintf("transaction cannot be encoded: %s", err))
	}
	digest := sha3.Sum256(raw)
	return hex.EncodeToString(digest[:])
}

// Bytes returns the canonical encoding of the transaction.
func (t *Transaction) Bytes() ([]byte, error) {
	return json.Marshal(t)
}

// MembershipOutputs returns the membership states produced by the transaction.
func (t *Transaction) MembershipOutputs() []*State {
	var res []*State
	for _, o := range t.Outputs {
		if o.Membership != nil {
			res = append(res, o.Membership)
		}
	}
	return res
}

// MembershipInputs returns the membership records consumed by the transaction.
func (t *Transaction) MembershipInputs() []Record {
	var res []Record
	for _, in := range t.Inputs {
		if in.State != nil {
			res = append(res, in)
		}
	}
	return res
}

// MembershipReferences returns the membership records referenced by the transaction.
func (t *Transaction) MembershipReferences() []Record {
	var res []Record
	for _, ref := range t.References {
		if ref.State != nil {
			res = append(res, ref)
		}
	}
	return res
}

// OutputRecords returns the records the transaction produces once committed under txID.
func (t *Transaction) OutputRecords() []*Record {
	txID := t.ID()
	var res []*Record
	for i, o := range t.Outputs {
		if o.Membership == nil {
			continue
		}
		res = append(res, &Record{State: o.Membership, Ref: StateRef{TxID: txID, Index: i}, Contract: o.Contract})
	}
	return res
}

// RequiredSigners returns the union of the signers of all commands.
func (t *Transaction) RequiredSigners() []Identity {
	var res []Identity
	for _, c := range t.Commands {
		for _, s := range c.Signers {
			if !containsIdentity(res, s) {
				res = append(res, s)
			}
		}
	}
	return res
}

// Signature binds a signer to its signature over a transaction id.
type Signature struct {
	Signer Identity `json:"signer"`
	Value  []byte   `json:"value"`
}

// SignedTransaction is a transaction with the signatures collected so far.
type SignedTransaction struct {
	Tx              *Transaction `json:"tx"`
	Signatures      []Signature  `json:"signatures"`
	NotarySignature *Signature   `json:"notarySignature,omitempty"`
}

// NewSignedTransaction signs tx with the passed signer.
func NewSignedTransaction(tx *Transaction, signer *SigningIdentity) *SignedTransaction {
	stx := &SignedTransaction{Tx: tx}
	return stx.WithSignature(SignTransaction(tx, signer))
}

// SignTransaction returns the signature of signer over the id of tx.
func SignTransaction(tx *Transaction, signer *SigningIdentity) Signature {
	return Signature{Signer: signer.Identity, Value: signer.Sign([]byte(tx.ID()))}
}

func (s *SignedTransaction) ID() string {
	return s.Tx.ID()
}

// WithSignature returns a copy of the transaction carrying the additional signature.
// A signature by a signer that already signed replaces the previous one.
func (s *SignedTransaction) WithSignature(sig Signature) *SignedTransaction {
	res := &SignedTransaction{Tx: s.Tx, NotarySignature: s.NotarySignature}
	for _, existing := range s.Signatures {
		if !existing.Signer.Equal(sig.Signer) {
			res.Signatures = append(res.Signatures, existing)
		}
	}
	res.Signatures = append(res.Signatures, sig)
	return res
}

// MissingSigners returns the required signers that have not signed yet.
func (s *SignedTransaction) MissingSigners() []Identity {
	var res []Identity
	for _, required := range s.Tx.RequiredSigners() {
		if !s.hasSigned(required) {
			res = append(res, required)
		}
	}
	return res
}

func (s *SignedTransaction) hasSigned(id Identity) bool {
	for _, sig := range s.Signatures {
		if sig.Signer.Equal(id) {
			return true
		}
	}
	return false
}

// VerifySignatures checks every attached signature and that every required signer,
// except the allowed missing ones, has signed.
func (s *SignedTransaction) VerifySignatures(allowedMissing ...Identity) error {
	txID := s.ID()
	required := s.Tx.RequiredSigners()
	for _, sig := range s.Signatures {
		if !containsIdentity(required, sig.Signer) {
			return errors.Errorf("signature by [%s] is not required by transaction [%s]", sig.Signer, txID)
		}
		if err := VerifySignature(sig.Signer, []byte(txID), sig.Value); err != nil {
			return errors.WithMessagef(err, "invalid signature on transaction [%s]", txID)
		}
	}
	for _, missing := range s.MissingSigners() {
		if !containsIdentity(allowedMissing, missing) {
			return errors.Errorf("transaction [%s] is missing the signature of [%s]", txID, missing)
		}
	}
	return nil
}

func containsIdentity(ids []Identity, id Identity) bool {
	for _, candidate := range ids {
		if candidate.Equal(id) {
			return true
		}
	}
	return false
}

func sameIdentities(a, b []Identity) bool {
	for _, id := range a {
		if !containsIdentity(b, id) {
			return false
		}
	}
	for _, id := range b {
		if !containsIdentity(a, id) {
			return false
		}
	}
	return true
}
