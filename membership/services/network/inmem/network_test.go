/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package inmem

import (
	"context"
	"testing"
	"time"

	"github.com/hyperledger-labs/fabric-bnms/membership"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ping struct {
	Value string `json:"value"`
}

type echoResponder struct{}

func (echoResponder) Call(context view.Context) (interface{}, error) {
	s := view.FromContext(context)
	msg := &ping{}
	if err := s.Receive(msg); err != nil {
		return nil, err
	}
	if msg.Value == "fail" {
		return nil, membership.NewNotAMemberError(s.Info().Counterparty)
	}
	return nil, s.Send(&ping{Value: msg.Value + "-" + context.Me().Name})
}

type echoInitiator struct {
	to    membership.Party
	value string
}

func (e *echoInitiator) Call(context view.Context) (interface{}, error) {
	s, err := view.OpenJSession(context, view.Protocol{Name: "echo", Version: 1}, e.to)
	if err != nil {
		return nil, err
	}
	if s.Info().CounterpartyVersion != 2 {
		return nil, membership.NewInvalidTransactionError("unexpected version [%d]", s.Info().CounterpartyVersion)
	}
	if err := s.Send(&ping{Value: e.value}); err != nil {
		return nil, err
	}
	reply := &ping{}
	if err := s.Receive(reply); err != nil {
		return nil, err
	}
	return reply.Value, nil
}

func TestSessions(t *testing.T) {
	network := NewNetwork(membership.NewContractRegistry())
	alice, err := network.AddNode("alice")
	require.NoError(t, err)
	bob, err := network.AddNode("bob")
	require.NoError(t, err)
	require.NoError(t, bob.RegisterResponder(view.Protocol{Name: "echo", Version: 2}, func() view.View { return echoResponder{} }))
	assert.Error(t, bob.RegisterResponder(view.Protocol{Name: "echo", Version: 2}, func() view.View { return echoResponder{} }))

	res, err := alice.Run(context.Background(), &echoInitiator{to: bob.Party(), value: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello-bob", res)

	// a responder failure reaches the initiator with its type
	_, err = alice.Run(context.Background(), &echoInitiator{to: bob.Party(), value: "fail"})
	require.Error(t, err)
	assert.ErrorIs(t, err, membership.ErrNotAMember)
	assert.Contains(t, err.Error(), "alice")

	// no responder
	_, err = bob.Run(context.Background(), &echoInitiator{to: alice.Party(), value: "hello"})
	assert.Error(t, err)

	network.RemoveNode("bob")
	_, err = alice.Run(context.Background(), &echoInitiator{to: bob.Party(), value: "hello"})
	assert.ErrorIs(t, err, membership.ErrPartyNotFound)
	network.Wait()
}

func TestDirectory(t *testing.T) {
	network := NewNetwork(membership.NewContractRegistry())
	alice, err := network.AddNode("alice")
	require.NoError(t, err)
	notary, err := network.AddNotary("notary")
	require.NoError(t, err)
	_, err = network.AddNode("notary")
	assert.Error(t, err)

	p, ok := network.WellKnownParty("notary")
	require.True(t, ok)
	assert.True(t, p.Equal(notary.Party()))
	assert.True(t, network.IsKnown(alice.Party()))
	assert.False(t, network.IsKnown(membership.Party{Name: "alice"}))
	assert.Len(t, network.Parties(), 2)
}

func registerTx(t *testing.T, notary membership.Party, bno *Node, now time.Time) *membership.SignedTransaction {
	bn, err := membership.NewBusinessNetwork("", bno.Party())
	require.NoError(t, err)
	state, err := membership.NewState(bno.Party(), bn, membership.MustMetadata(membership.SimpleMetadata{Role: "BNO"}), membership.Active, now)
	require.NoError(t, err)
	tx, err := membership.NewTransactionBuilder(notary).
		AddOutputState(state, membership.DefaultContractName).
		AddCommand(membership.RegisterBNO, bno.Party().Identity).
		ToTransaction()
	require.NoError(t, err)
	return &membership.SignedTransaction{Tx: tx, Signatures: []membership.Signature{bno.Ledger().Sign(tx)}}
}

type recorder struct {
	records []*membership.Record
}

func (r *recorder) OnRecord(_ context.Context, record *membership.Record) error {
	r.records = append(r.records, record)
	return nil
}

func TestNotaryAndVault(t *testing.T) {
	network := NewNetwork(membership.NewContractRegistry())
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	network.SetClock(func() time.Time { return now })
	notary, err := network.AddNotary("notary")
	require.NoError(t, err)
	bno, err := network.AddNode("bno")
	require.NoError(t, err)
	ctx := context.Background()
	l := bno.Ledger()
	assert.Equal(t, now, l.Now())

	rec := &recorder{}
	l.Subscribe(rec)

	stx := registerTx(t, notary.Party(), bno, l.Now())
	require.NoError(t, l.Verify(stx))
	assert.Error(t, l.Record(ctx, stx, view.OnlyRelevant), "not notarised")

	notarised, err := l.Notarize(ctx, stx)
	require.NoError(t, err)
	require.NoError(t, l.Record(ctx, notarised, view.OnlyRelevant))
	require.NoError(t, l.Record(ctx, notarised, view.OnlyRelevant))
	require.Len(t, rec.records, 1)

	unconsumed, err := l.Unconsumed(ctx)
	require.NoError(t, err)
	require.Len(t, unconsumed, 1)
	operator := unconsumed[0]

	// suspend the operator to consume the record, then try to consume it again
	next := operator.State.WithStatus(membership.Suspended, now)
	build := func() *membership.SignedTransaction {
		tx, err := membership.NewTransactionBuilder(notary.Party()).
			AddInputState(operator).
			AddOutputState(next, membership.DefaultContractName).
			AddCommand(membership.RegisterBNO, bno.Party().Identity).
			ToTransaction()
		require.NoError(t, err)
		return &membership.SignedTransaction{Tx: tx, Signatures: []membership.Signature{l.Sign(tx)}}
	}
	// RegisterBNO cannot consume an input
	_, err = l.Notarize(ctx, build())
	assert.ErrorIs(t, err, membership.ErrTransactionRejected)

	// transactions assigned to unknown notaries are rejected
	other := registerTx(t, membership.Party{Name: "ghost"}, bno, now)
	_, err = l.Notarize(ctx, other)
	assert.ErrorIs(t, err, membership.ErrNotaryNotFound)
}

func TestNotaryRejectsDoubleSpend(t *testing.T) {
	network := NewNetwork(membership.NewContractRegistry())
	notary, err := network.AddNotary("notary")
	require.NoError(t, err)
	bno, err := network.AddNode("bno")
	require.NoError(t, err)
	member, err := network.AddNode("member")
	require.NoError(t, err)
	ctx := context.Background()
	l := bno.Ledger()

	notarised, err := l.Notarize(ctx, registerTx(t, notary.Party(), bno, l.Now()))
	require.NoError(t, err)
	require.NoError(t, l.Record(ctx, notarised, view.OnlyRelevant))
	operator := notarised.Tx.OutputRecords()[0]

	bn := operator.State.BusinessNetwork
	pending, err := membership.NewState(member.Party(), bn, membership.MustMetadata(membership.SimpleMetadata{}), membership.Pending, l.Now())
	require.NoError(t, err)
	tx, err := membership.NewTransactionBuilder(notary.Party()).
		AddOutputState(pending, membership.DefaultContractName).
		AddReferenceState(operator).
		AddCommand(membership.Request, member.Party().Identity, bno.Party().Identity).
		ToTransaction()
	require.NoError(t, err)
	stx := &membership.SignedTransaction{Tx: tx}
	stx = stx.WithSignature(member.Ledger().Sign(tx)).WithSignature(l.Sign(tx))
	notarised, err = l.Notarize(ctx, stx)
	require.NoError(t, err)
	require.NoError(t, l.Record(ctx, notarised, view.OnlyRelevant))
	pendingRecord := notarised.Tx.OutputRecords()[0]

	activate := func() *membership.SignedTransaction {
		tx, err := membership.NewTransactionBuilder(notary.Party()).
			AddInputState(pendingRecord).
			AddOutputState(pending.WithStatus(membership.Active, l.Now()), membership.DefaultContractName).
			AddReferenceState(operator).
			AddCommand(membership.Activate, bno.Party().Identity).
			ToTransaction()
		require.NoError(t, err)
		return (&membership.SignedTransaction{Tx: tx}).WithSignature(l.Sign(tx))
	}
	first, err := l.Notarize(ctx, activate())
	require.NoError(t, err)
	// notarising the same transaction again is accepted
	_, err = l.Notarize(ctx, first)
	require.NoError(t, err)

	_, err = l.Notarize(ctx, activate())
	require.Error(t, err)
	assert.ErrorIs(t, err, membership.ErrTransactionRejected)
	assert.Contains(t, err.Error(), "already consumed")

	require.NoError(t, l.Record(ctx, first, view.OnlyRelevant))
	unconsumed, err := l.Unconsumed(ctx)
	require.NoError(t, err)
	require.Len(t, unconsumed, 2)
	assert.True(t, unconsumed[1].State.IsActive())
	_, ok := bno.Vault().Transaction(first.ID())
	assert.True(t, ok)
}
