/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package membership

import (
	"sync"

	"github.com/pkg/errors"
)

// DefaultContractName is the name membership outputs carry unless an adopter registers its own contract.
const DefaultContractName = "bnms.MembershipContract"

// Rules checked by the membership contract. A ContractViolation carries one of them.
const (
	RuleOneCommand             = "membership transaction must have exactly one command"
	RuleOneOutput              = "membership transaction must have exactly one membership output"
	RuleModifiedAfterIssued    = "output modified timestamp must not be before issued timestamp"
	RuleParticipants           = "output participants must be the member and the operator"
	RuleOneInput               = "membership transaction must have at most one membership input"
	RuleInputParticipants      = "input and output participants must be the same"
	RuleInputIssued            = "input and output issued timestamps must be the same"
	RuleInputLinearID          = "input and output linear ids must be the same"
	RuleInputModified          = "output modified timestamp must be after input modified timestamp"
	RuleOneReference           = "membership transaction must reference exactly one membership"
	RuleReferenceOperator      = "referenced membership must be the active membership of the operator"
	RuleOutputNotOperator      = "output must not be the membership of the operator"
	RuleOperatorSigner         = "operator must be the only signer"
	RuleMemberAndOperatorSigns = "member and operator must both sign"
	RuleNoInput                = "membership transaction must not have inputs"
	RuleInputRequired          = "membership transaction must have an input"
	RuleOutputActive           = "output membership must be active"
	RuleOutputPending          = "output membership must be pending"
	RuleOutputSuspended        = "output membership must be suspended"
	RuleMemberIsOperator       = "output member must be the business network operator"
	RuleInputNotActive         = "input membership must not be active"
	RuleInputNotSuspended      = "input membership must not be suspended"
	RuleInputActive            = "input membership must be active"
	RuleMetadataUnchanged      = "metadata must be unchanged"
	RuleMetadataChanged        = "metadata must change"
	RuleMetadataSameType       = "metadata type must be unchanged"
)

// ContractViolation reports the rule a transaction breaks.
type ContractViolation struct {
	Rule string
}

func (c *ContractViolation) Error() string {
	return "failed requirement: " + c.Rule
}

func violation(rule string) error {
	return &ContractViolation{Rule: rule}
}

func requireThat(cond bool, rule string) error {
	if cond {
		return nil
	}
	return violation(rule)
}

// Verification is what a per-command check looks at.
type Verification struct {
	Tx        *Transaction
	Command   CommandWithSigners
	Input     *State
	Output    *State
	Reference *State
}

// Operator returns the operator of the business network the output belongs to.
func (v *Verification) Operator() Party {
	return v.Output.BusinessNetwork.Operator
}

// Verifier holds one check per command. Adopters add checks by embedding BaseVerifier
// and overriding single methods, delegating to the embedded implementation.
type Verifier interface {
	VerifyRegisterBNO(v *Verification) error
	VerifyRequest(v *Verification) error
	VerifyActivate(v *Verification) error
	VerifySuspend(v *Verification) error
	VerifyAmend(v *Verification) error
}

// BaseVerifier enforces the per-command rules of the membership lifecycle.
type BaseVerifier struct{}

func (BaseVerifier) VerifyRegisterBNO(v *Verification) error {
	return firstViolation(
		requireThat(v.Command.HasSigners(v.Operator().Identity), RuleOperatorSigner),
		requireThat(v.Input == nil, RuleNoInput),
		requireThat(v.Output.IsActive(), RuleOutputActive),
		requireThat(v.Output.IsOperator(), RuleMemberIsOperator),
	)
}

func (BaseVerifier) VerifyRequest(v *Verification) error {
	return firstViolation(
		requireThat(v.Command.HasSigners(v.Output.Member.Identity, v.Operator().Identity), RuleMemberAndOperatorSigns),
		requireThat(v.Input == nil, RuleNoInput),
		requireThat(v.Output.IsPending(), RuleOutputPending),
	)
}

func (BaseVerifier) VerifyActivate(v *Verification) error {
	if v.Input == nil {
		return violation(RuleInputRequired)
	}
	return firstViolation(
		requireThat(v.Command.HasSigners(v.Operator().Identity), RuleOperatorSigner),
		requireThat(!v.Input.IsActive(), RuleInputNotActive),
		requireThat(v.Output.IsActive(), RuleOutputActive),
		requireThat(v.Input.Metadata.Equal(v.Output.Metadata), RuleMetadataUnchanged),
	)
}

func (BaseVerifier) VerifySuspend(v *Verification) error {
	if v.Input == nil {
		return violation(RuleInputRequired)
	}
	return firstViolation(
		requireThat(v.Command.HasSigners(v.Operator().Identity), RuleOperatorSigner),
		requireThat(!v.Input.IsSuspended(), RuleInputNotSuspended),
		requireThat(v.Output.IsSuspended(), RuleOutputSuspended),
		requireThat(v.Input.Metadata.Equal(v.Output.Metadata), RuleMetadataUnchanged),
	)
}

func (BaseVerifier) VerifyAmend(v *Verification) error {
	if v.Input == nil {
		return violation(RuleInputRequired)
	}
	return firstViolation(
		requireThat(v.Input.IsActive(), RuleInputActive),
		requireThat(v.Output.IsActive(), RuleOutputActive),
		requireThat(v.Command.HasSigners(v.Output.Member.Identity, v.Operator().Identity), RuleMemberAndOperatorSigns),
		requireThat(!v.Input.Metadata.Equal(v.Output.Metadata), RuleMetadataChanged),
		requireThat(v.Input.Metadata.SameType(v.Output.Metadata), RuleMetadataSameType),
	)
}

func firstViolation(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Contract validates membership transactions: a common layer first, then the check
// of the transaction's single command.
type Contract struct {
	Name     string
	Verifier Verifier
}

// NewContract returns a contract using the passed verifier, or BaseVerifier if nil.
func NewContract(name string, verifier Verifier) *Contract {
	if verifier == nil {
		verifier = BaseVerifier{}
	}
	return &Contract{Name: name, Verifier: verifier}
}

// Verify accepts the transaction or returns the reason it is rejected.
func (c *Contract) Verify(tx *Transaction) error {
	v, err := c.common(tx)
	if err != nil {
		return err
	}
	switch v.Command.Command {
	case RegisterBNO:
		return c.Verifier.VerifyRegisterBNO(v)
	case Request:
		return c.Verifier.VerifyRequest(v)
	case Activate:
		return c.Verifier.VerifyActivate(v)
	case Suspend:
		return c.Verifier.VerifySuspend(v)
	case Amend:
		return c.Verifier.VerifyAmend(v)
	default:
		return newError(KindUnknownCommand, "unknown membership command [%s]", v.Command.Command)
	}
}

func (c *Contract) common(tx *Transaction) (*Verification, error) {
	if len(tx.Commands) != 1 {
		return nil, violation(RuleOneCommand)
	}
	outputs := tx.MembershipOutputs()
	if len(outputs) != 1 {
		return nil, violation(RuleOneOutput)
	}
	v := &Verification{Tx: tx, Command: tx.Commands[0], Output: outputs[0]}
	output := v.Output

	if output.Modified.Before(output.Issued) {
		return nil, violation(RuleModifiedAfterIssued)
	}
	if !sameParties(output.Participants(), []Party{output.Member, output.BusinessNetwork.Operator}) {
		return nil, violation(RuleParticipants)
	}

	inputs := tx.MembershipInputs()
	if len(inputs) > 1 {
		return nil, violation(RuleOneInput)
	}
	if len(inputs) == 1 {
		input := inputs[0].State
		if err := firstViolation(
			requireThat(sameParties(input.Participants(), output.Participants()), RuleInputParticipants),
			requireThat(input.Issued.Equal(output.Issued), RuleInputIssued),
			requireThat(input.LinearID == output.LinearID, RuleInputLinearID),
			requireThat(output.Modified.After(input.Modified), RuleInputModified),
		); err != nil {
			return nil, err
		}
		v.Input = input
	}

	if v.Command.Command != RegisterBNO {
		refs := tx.MembershipReferences()
		if len(refs) != 1 {
			return nil, violation(RuleOneReference)
		}
		ref := refs[0].State
		if err := firstViolation(
			requireThat(ref.IsOperator() && ref.IsActive() && ref.BusinessNetwork.Equal(output.BusinessNetwork) &&
				ref.Member.Equal(output.BusinessNetwork.Operator), RuleReferenceOperator),
			requireThat(!output.IsOperator(), RuleOutputNotOperator),
		); err != nil {
			return nil, err
		}
		v.Reference = ref
	}
	return v, nil
}

func sameParties(a, b []Party) bool {
	for _, p := range a {
		if !ContainsParty(b, p) {
			return false
		}
	}
	for _, p := range b {
		if !ContainsParty(a, p) {
			return false
		}
	}
	return true
}

// ContractRegistry holds the contracts available for verification, by name.
type ContractRegistry struct {
	mutex     sync.RWMutex
	contracts map[string]*Contract
}

// NewContractRegistry returns a registry holding the default contract and the passed ones.
func NewContractRegistry(contracts ...*Contract) *ContractRegistry {
	r := &ContractRegistry{contracts: map[string]*Contract{}}
	r.Register(NewContract(DefaultContractName, nil))
	for _, c := range contracts {
		r.Register(c)
	}
	return r
}

// Register adds or replaces a contract.
func (r *ContractRegistry) Register(c *Contract) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.contracts[c.Name] = c
}

func (r *ContractRegistry) Get(name string) (*Contract, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	c, ok := r.contracts[name]
	if !ok {
		return nil, errors.Errorf("contract [%s] is not registered", name)
	}
	return c, nil
}

// Verify runs every contract named by the membership states of the transaction.
// Membership inputs must name a contract that one of the outputs names too.
func (r *ContractRegistry) Verify(tx *Transaction) error {
	var names []string
	seen := map[string]bool{}
	for _, o := range tx.Outputs {
		if o.Membership == nil || seen[o.Contract] {
			continue
		}
		seen[o.Contract] = true
		names = append(names, o.Contract)
	}
	for _, in := range tx.MembershipInputs() {
		if !seen[in.Contract] {
			return NewInvalidTransactionError("input [%s] is governed by contract [%s] that no output names", in.Ref, in.Contract)
		}
	}
	if len(names) == 0 {
		return NewInvalidTransactionError("transaction has no membership output")
	}
	for _, name := range names {
		c, err := r.Get(name)
		if err != nil {
			return NewInvalidTransactionError("%s", err)
		}
		if err := c.Verify(tx); err != nil {
			return errors.WithMessagef(err, "contract [%s] rejected transaction", name)
		}
	}
	return nil
}
