/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package membership

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	bno      *SigningIdentity
	member   *SigningIdentity
	bn       BusinessNetwork
	operator *Record
}

func newFixture(t *testing.T) *fixture {
	bno, err := NewSigningIdentity("O=BNO,L=New York,C=US")
	require.NoError(t, err)
	member, err := NewSigningIdentity("O=Member,L=London,C=GB")
	require.NoError(t, err)
	bn, err := NewBusinessNetwork("trade", bno.Party)
	require.NoError(t, err)
	state, err := NewState(bno.Party, bn, MustMetadata(SimpleMetadata{Role: "BNO"}), Active, t0)
	require.NoError(t, err)
	return &fixture{
		bno:      bno,
		member:   member,
		bn:       bn,
		operator: &Record{State: state, Ref: StateRef{TxID: "register", Index: 0}, Contract: DefaultContractName},
	}
}

func (f *fixture) memberState(t *testing.T, status Status) *State {
	s, err := NewState(f.member.Party, f.bn, MustMetadata(SimpleMetadata{Role: "Bank", DisplayedName: "member"}), status, t0)
	require.NoError(t, err)
	return s
}

func record(s *State) *Record {
	return &Record{State: s, Ref: StateRef{TxID: "prev", Index: 0}, Contract: DefaultContractName}
}

func (f *fixture) tx(t *testing.T, cmd Command, input, output *State, withRef bool, signers ...Identity) *Transaction {
	b := NewTransactionBuilder(Party{Name: "notary"})
	if input != nil {
		b.AddInputState(record(input))
	}
	b.AddOutputState(output, DefaultContractName)
	if withRef {
		b.AddReferenceState(f.operator)
	}
	b.AddCommand(cmd, signers...)
	tx, err := b.ToTransaction()
	require.NoError(t, err)
	return tx
}

func assertViolation(t *testing.T, err error, rule string) {
	t.Helper()
	require.Error(t, err)
	var cv *ContractViolation
	require.True(t, errors.As(err, &cv), "expected a contract violation, got [%s]", err)
	assert.Equal(t, rule, cv.Rule)
	assert.Contains(t, err.Error(), rule)
}

func TestRegisterBNO(t *testing.T) {
	f := newFixture(t)
	c := NewContract(DefaultContractName, nil)
	op := f.operator.State

	assert.NoError(t, c.Verify(f.tx(t, RegisterBNO, nil, op, false, f.bno.Identity)))
	assertViolation(t, c.Verify(f.tx(t, RegisterBNO, nil, op, false, f.bno.Identity, f.member.Identity)), RuleOperatorSigner)
	assertViolation(t, c.Verify(f.tx(t, RegisterBNO, nil, f.memberState(t, Active), false, f.bno.Identity)), RuleMemberIsOperator)
	assertViolation(t, c.Verify(f.tx(t, RegisterBNO, nil, op.WithStatus(Pending, t0), false, f.bno.Identity)), RuleOutputActive)
}

func TestRequest(t *testing.T) {
	f := newFixture(t)
	c := NewContract(DefaultContractName, nil)
	pending := f.memberState(t, Pending)

	assert.NoError(t, c.Verify(f.tx(t, Request, nil, pending, true, f.member.Identity, f.bno.Identity)))
	assertViolation(t, c.Verify(f.tx(t, Request, nil, pending, true, f.bno.Identity)), RuleMemberAndOperatorSigns)
	assertViolation(t, c.Verify(f.tx(t, Request, nil, pending, true, f.member.Identity)), RuleMemberAndOperatorSigns)
	assertViolation(t, c.Verify(f.tx(t, Request, nil, pending, false, f.member.Identity, f.bno.Identity)), RuleOneReference)
	assertViolation(t, c.Verify(f.tx(t, Request, nil, f.memberState(t, Active), true, f.member.Identity, f.bno.Identity)), RuleOutputPending)
	assertViolation(t, c.Verify(f.tx(t, Request, pending, pending.WithMetadata(pending.Metadata, t0.Add(time.Second)), true, f.member.Identity, f.bno.Identity)), RuleNoInput)
}

func TestActivateAndSuspend(t *testing.T) {
	f := newFixture(t)
	c := NewContract(DefaultContractName, nil)
	pending := f.memberState(t, Pending)
	active := pending.WithStatus(Active, t0.Add(time.Second))
	suspended := active.WithStatus(Suspended, t0.Add(2*time.Second))

	assert.NoError(t, c.Verify(f.tx(t, Activate, pending, active, true, f.bno.Identity)))
	assert.NoError(t, c.Verify(f.tx(t, Suspend, active, suspended, true, f.bno.Identity)))
	assert.NoError(t, c.Verify(f.tx(t, Activate, suspended, suspended.WithStatus(Active, t0.Add(3*time.Second)), true, f.bno.Identity)))

	assertViolation(t, c.Verify(f.tx(t, Activate, nil, active, true, f.bno.Identity)), RuleInputRequired)
	assertViolation(t, c.Verify(f.tx(t, Activate, pending, active, true, f.bno.Identity, f.member.Identity)), RuleOperatorSigner)
	assertViolation(t, c.Verify(f.tx(t, Activate, active, active.WithStatus(Active, t0.Add(time.Minute)), true, f.bno.Identity)), RuleInputNotActive)
	assertViolation(t, c.Verify(f.tx(t, Suspend, suspended, suspended.WithStatus(Suspended, t0.Add(time.Minute)), true, f.bno.Identity)), RuleInputNotSuspended)
	assertViolation(t, c.Verify(f.tx(t, Suspend, active, active.WithStatus(Active, t0.Add(time.Minute)), true, f.bno.Identity)), RuleOutputSuspended)

	changed := pending.WithStatus(Active, t0.Add(time.Second))
	changed.Metadata = MustMetadata(SimpleMetadata{Role: "Insurer"})
	assertViolation(t, c.Verify(f.tx(t, Activate, pending, changed, true, f.bno.Identity)), RuleMetadataUnchanged)
	changed = active.WithStatus(Suspended, t0.Add(time.Minute))
	changed.Metadata = MustMetadata(SimpleMetadata{Role: "Insurer"})
	assertViolation(t, c.Verify(f.tx(t, Suspend, active, changed, true, f.bno.Identity)), RuleMetadataUnchanged)
}

func TestAmend(t *testing.T) {
	f := newFixture(t)
	c := NewContract(DefaultContractName, nil)
	active := f.memberState(t, Active)
	amended := active.WithMetadata(MustMetadata(SimpleMetadata{Role: "Bank", DisplayedName: "renamed"}), t0.Add(time.Second))

	assert.NoError(t, c.Verify(f.tx(t, Amend, active, amended, true, f.member.Identity, f.bno.Identity)))
	assertViolation(t, c.Verify(f.tx(t, Amend, active, amended, true, f.bno.Identity)), RuleMemberAndOperatorSigns)
	assertViolation(t, c.Verify(f.tx(t, Amend, active, active.WithMetadata(active.Metadata, t0.Add(time.Second)), true, f.member.Identity, f.bno.Identity)), RuleMetadataChanged)
	retyped := active.WithMetadata(MustMetadata(RolesMetadata{Roles: []Role{OperatorRole}}), t0.Add(time.Second))
	assertViolation(t, c.Verify(f.tx(t, Amend, active, retyped, true, f.member.Identity, f.bno.Identity)), RuleMetadataSameType)
	assertViolation(t, c.Verify(f.tx(t, Amend, active, amended.WithStatus(Suspended, t0.Add(time.Minute)), true, f.member.Identity, f.bno.Identity)), RuleOutputActive)
}

func TestAmendPendingIsRejectedRegardlessOfSigners(t *testing.T) {
	f := newFixture(t)
	c := NewContract(DefaultContractName, nil)
	pending := f.memberState(t, Pending)
	amended := pending.WithMetadata(MustMetadata(SimpleMetadata{Role: "Other"}), t0.Add(time.Second))

	for _, signers := range [][]Identity{
		{f.member.Identity, f.bno.Identity},
		{f.bno.Identity},
		{f.member.Identity},
		nil,
	} {
		err := c.Verify(f.tx(t, Amend, pending, amended, true, signers...))
		assertViolation(t, err, RuleInputActive)
		assert.Contains(t, err.Error(), "must be active")
	}
}

func TestCommonRules(t *testing.T) {
	f := newFixture(t)
	c := NewContract(DefaultContractName, nil)
	pending := f.memberState(t, Pending)

	bad := *pending
	bad.Modified = bad.Issued.Add(-time.Second)
	assertViolation(t, c.Verify(f.tx(t, Request, nil, &bad, true, f.member.Identity, f.bno.Identity)), RuleModifiedAfterIssued)

	next := pending.WithStatus(Active, t0.Add(time.Second))
	next.Issued = next.Issued.Add(time.Millisecond)
	assertViolation(t, c.Verify(f.tx(t, Activate, pending, next, true, f.bno.Identity)), RuleInputIssued)

	next = pending.WithStatus(Active, t0.Add(time.Second))
	next.LinearID = LinearID{ID: "other"}
	assertViolation(t, c.Verify(f.tx(t, Activate, pending, next, true, f.bno.Identity)), RuleInputLinearID)

	next = pending.WithStatus(Active, t0.Add(time.Second))
	next.Modified = pending.Modified
	assertViolation(t, c.Verify(f.tx(t, Activate, pending, next, true, f.bno.Identity)), RuleInputModified)

	other, err := NewSigningIdentity("O=Other,L=Paris,C=FR")
	require.NoError(t, err)
	next = pending.WithStatus(Active, t0.Add(time.Second))
	next.Member = other.Party
	assertViolation(t, c.Verify(f.tx(t, Activate, pending, next, true, f.bno.Identity)), RuleInputParticipants)

	// the operator's reference must be active
	suspendedOperator := *f.operator
	suspendedOperator.State = f.operator.State.WithStatus(Suspended, t0.Add(time.Second))
	tx := f.tx(t, Request, nil, pending, false, f.member.Identity, f.bno.Identity)
	tx.References = []Record{suspendedOperator}
	assertViolation(t, c.Verify(tx), RuleReferenceOperator)

	// a member record cannot be used as reference
	tx = f.tx(t, Request, nil, pending, false, f.member.Identity, f.bno.Identity)
	tx.References = []Record{*record(f.memberState(t, Active))}
	assertViolation(t, c.Verify(tx), RuleReferenceOperator)

	// only RegisterBNO can produce the operator's membership
	assertViolation(t, c.Verify(f.tx(t, Activate, f.operator.State.WithStatus(Suspended, t0.Add(time.Second)), f.operator.State.WithStatus(Active, t0.Add(2*time.Second)), true, f.bno.Identity)), RuleOutputNotOperator)

	tx = f.tx(t, Request, nil, pending, true, f.member.Identity, f.bno.Identity)
	tx.Commands = append(tx.Commands, CommandWithSigners{Command: Activate, Signers: []Identity{f.bno.Identity}})
	assertViolation(t, c.Verify(tx), RuleOneCommand)

	tx = f.tx(t, Request, nil, pending, true, f.member.Identity, f.bno.Identity)
	tx.Outputs = append(tx.Outputs, TxState{Contract: DefaultContractName, Membership: f.memberState(t, Pending)})
	assertViolation(t, c.Verify(tx), RuleOneOutput)

	// opaque outputs do not count as memberships
	tx = f.tx(t, Request, nil, pending, true, f.member.Identity, f.bno.Identity)
	tx.Outputs = append(tx.Outputs, TxState{Contract: "cash", Type: "Cash", Data: []byte(`{"amount":10}`)})
	assert.NoError(t, c.Verify(tx))
}

func TestUnknownCommand(t *testing.T) {
	f := newFixture(t)
	c := NewContract(DefaultContractName, nil)
	err := c.Verify(f.tx(t, Command(42), nil, f.memberState(t, Pending), true, f.bno.Identity))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownCommand))
	var cv *ContractViolation
	assert.False(t, errors.As(err, &cv))
}

type noSelfPromotion struct {
	BaseVerifier
}

func (n noSelfPromotion) VerifyAmend(v *Verification) error {
	if err := n.BaseVerifier.VerifyAmend(v); err != nil {
		return err
	}
	md, err := DecodeMetadata[SimpleMetadata](v.Output.Metadata)
	if err != nil {
		return err
	}
	if md.Role == "BNO" {
		return &ContractViolation{Rule: "members cannot take the BNO role"}
	}
	return nil
}

func TestExtendedVerifier(t *testing.T) {
	f := newFixture(t)
	c := NewContract("custom", noSelfPromotion{})
	active := f.memberState(t, Active)

	promoted := active.WithMetadata(MustMetadata(SimpleMetadata{Role: "BNO"}), t0.Add(time.Second))
	assertViolation(t, c.Verify(f.tx(t, Amend, active, promoted, true, f.member.Identity, f.bno.Identity)), "members cannot take the BNO role")

	// base rules still apply
	assertViolation(t, c.Verify(f.tx(t, Amend, active, promoted, true, f.bno.Identity)), RuleMemberAndOperatorSigns)

	renamed := active.WithMetadata(MustMetadata(SimpleMetadata{Role: "Bank", DisplayedName: "x"}), t0.Add(time.Second))
	assert.NoError(t, c.Verify(f.tx(t, Amend, active, renamed, true, f.member.Identity, f.bno.Identity)))
}

func TestContractRegistry(t *testing.T) {
	f := newFixture(t)
	registry := NewContractRegistry(NewContract("custom", noSelfPromotion{}))
	active := f.memberState(t, Active)
	promoted := active.WithMetadata(MustMetadata(SimpleMetadata{Role: "BNO"}), t0.Add(time.Second))

	tx := f.tx(t, Amend, active, promoted, true, f.member.Identity, f.bno.Identity)
	assert.NoError(t, registry.Verify(tx))

	tx.Outputs[0].Contract = "custom"
	err := registry.Verify(tx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTransaction), "input governed by another contract")

	tx.Inputs[0].Contract = "custom"
	assertViolation(t, registry.Verify(tx), "members cannot take the BNO role")

	tx.Outputs[0].Contract = "missing"
	tx.Inputs[0].Contract = "missing"
	assert.True(t, errors.Is(registry.Verify(tx), ErrInvalidTransaction))

	_, err = registry.Get(DefaultContractName)
	assert.NoError(t, err)
}
