/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package view

import (
	"context"
	"time"

	"github.com/hyperledger-labs/fabric-bnms/membership"
)

// Protocol identifies a conversation between an initiating view and its responder.
// Version is the version advertised by the side that opens or serves the conversation.
type Protocol struct {
	Name    string
	Version int
}

type MessageStatus int

const (
	OK MessageStatus = iota
	ERROR
)

// Message is what travels on a session.
type Message struct {
	SessionID string
	Caller    membership.Party
	Status    MessageStatus
	Payload   []byte
}

// SessionInfo describes a session from the point of view of one of its ends.
type SessionInfo struct {
	ID       string
	Protocol string
	// Counterparty is the party at the other end of the session.
	Counterparty membership.Party
	// CounterpartyVersion is the protocol version the counterparty runs.
	CounterpartyVersion int
	Closed              bool
}

// Session is an ordered, reliable, point-to-point channel between two parties.
type Session interface {
	Info() SessionInfo
	Send(ctx context.Context, payload []byte) error
	SendError(ctx context.Context, payload []byte) error
	Receive() <-chan *Message
	Close()
}

// View is a step of a protocol.
type View interface {
	Call(context Context) (interface{}, error)
}

// Factory returns a fresh responder view for every incoming session.
type Factory func() View

// Context is the environment a view runs in.
type Context interface {
	Context() context.Context
	// Me is the party running the view.
	Me() membership.Party
	// Session is the session that started this view, nil for initiators.
	Session() Session
	// GetSession opens a session with party, where the counterparty is served by the
	// responder registered for protocol.Name.
	GetSession(protocol Protocol, party membership.Party) (Session, error)
	RunView(v View) (interface{}, error)
	Ledger() Ledger
	Directory() Directory
}

// StatesToRecord selects which outputs of a transaction are stored in the vault.
type StatesToRecord int

const (
	// OnlyRelevant stores the outputs the node is a participant of.
	OnlyRelevant StatesToRecord = iota
	// AllVisible stores every output, making the node an observer.
	AllVisible
)

// RecordListener is notified of the membership records stored in the vault.
type RecordListener interface {
	OnRecord(ctx context.Context, record *membership.Record) error
}

// Ledger gives access to signing, verification, notarisation and the vault of the node.
type Ledger interface {
	Now() time.Time
	// Sign signs tx with the key of the node.
	Sign(tx *membership.Transaction) membership.Signature
	// Verify runs the contracts named by the transaction and checks its signatures.
	Verify(stx *membership.SignedTransaction, allowedMissing ...membership.Identity) error
	// Notarize asks the notary of the transaction to check and sign it.
	Notarize(ctx context.Context, stx *membership.SignedTransaction) (*membership.SignedTransaction, error)
	// Record stores a notarised transaction and its outputs.
	Record(ctx context.Context, stx *membership.SignedTransaction, statesToRecord StatesToRecord) error
	// Unconsumed returns the membership records in the vault that have not been consumed.
	Unconsumed(ctx context.Context) ([]*membership.Record, error)
	Subscribe(listener RecordListener)
}

// Directory resolves well-known names to parties.
type Directory interface {
	WellKnownParty(name string) (membership.Party, bool)
	IsKnown(party membership.Party) bool
	Parties() []membership.Party
}

// Registry is where responders are installed.
type Registry interface {
	RegisterResponder(protocol Protocol, factory Factory) error
}

// RunCall runs a function as a sub-view.
func RunCall(context Context, f func(context Context) (interface{}, error)) (interface{}, error) {
	return context.RunView(NewFuncView(f))
}

// NewFuncView wraps a function into a view.
func NewFuncView(f func(context Context) (interface{}, error)) View {
	return &funcView{f: f}
}

type funcView struct {
	f func(context Context) (interface{}, error)
}

func (v *funcView) Call(context Context) (interface{}, error) {
	return v.f(context)
}
