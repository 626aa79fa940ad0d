/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/hyperledger-labs/fabric-bnms/membership"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/logging"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/view"
	"github.com/pkg/errors"
	"github.com/sourcegraph/conc"
)

type responder struct {
	version int
	factory view.Factory
}

// Node is a party of the network running views.
type Node struct {
	network *Network
	signer  *membership.SigningIdentity
	vault   *Vault
	ledger  *ledger

	mutex      sync.RWMutex
	responders map[string]responder
	wg         *conc.WaitGroup
}

func newNode(network *Network, signer *membership.SigningIdentity) *Node {
	n := &Node{
		network:    network,
		signer:     signer,
		vault:      newVault(signer.Party),
		responders: map[string]responder{},
		wg:         conc.NewWaitGroup(),
	}
	n.ledger = &ledger{node: n}
	return n
}

func (n *Node) Party() membership.Party {
	return n.signer.Party
}

func (n *Node) Vault() *Vault {
	return n.vault
}

func (n *Node) Ledger() view.Ledger {
	return n.ledger
}

func (n *Node) Directory() view.Directory {
	return n.network
}

// RegisterResponder serves sessions opened for protocol.Name with views built by factory.
// protocol.Version is the version advertised to initiators.
func (n *Node) RegisterResponder(protocol view.Protocol, factory view.Factory) error {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	if _, ok := n.responders[protocol.Name]; ok {
		return errors.Errorf("responder for [%s] already registered on [%s]", protocol.Name, n.Party())
	}
	n.responders[protocol.Name] = responder{version: protocol.Version, factory: factory}
	logger.Debugf("responders on [%s]: %s", n.Party(), logging.Keys(n.responders))
	return nil
}

func (n *Node) responder(protocol string) (responder, bool) {
	n.mutex.RLock()
	defer n.mutex.RUnlock()
	r, ok := n.responders[protocol]
	return r, ok
}

// Run runs an initiating view and returns its result.
func (n *Node) Run(ctx context.Context, v view.View) (interface{}, error) {
	c := &viewContext{ctx: ctx, node: n}
	res, err := v.Call(c)
	c.finish(err)
	return res, err
}

// Wait blocks until the responders running on this node return.
func (n *Node) Wait() {
	n.wg.Wait()
}

func (n *Node) serve(session view.Session, r responder) {
	n.wg.Go(func() {
		c := &viewContext{ctx: n.network.ctx, node: n, session: session}
		_, err := r.factory().Call(c)
		if err != nil {
			logger.Debugf("responder [%s] on [%s] failed: %s", session.Info().Protocol, n.Party(), err)
		}
		c.finish(err)
	})
}

type viewContext struct {
	ctx     context.Context
	node    *Node
	session view.Session

	mutex  sync.Mutex
	opened []view.Session
}

func (c *viewContext) Context() context.Context { return c.ctx }

func (c *viewContext) Me() membership.Party { return c.node.Party() }

func (c *viewContext) Session() view.Session { return c.session }

func (c *viewContext) Ledger() view.Ledger { return c.node.ledger }

func (c *viewContext) Directory() view.Directory { return c.node.network }

func (c *viewContext) RunView(v view.View) (interface{}, error) {
	return v.Call(c)
}

func (c *viewContext) GetSession(protocol view.Protocol, party membership.Party) (view.Session, error) {
	target, err := c.node.network.node(party)
	if err != nil {
		return nil, err
	}
	r, ok := target.responder(protocol.Name)
	if !ok {
		return nil, errors.Errorf("[%s] does not serve [%s]", party, protocol.Name)
	}
	ch, err := newLocalChannel(protocol.Name, c.node.Party(), protocol.Version, target.Party(), r.version)
	if err != nil {
		return nil, err
	}
	c.mutex.Lock()
	c.opened = append(c.opened, ch.left)
	c.mutex.Unlock()
	target.serve(ch.right, r)
	return ch.left, nil
}

// finish reports the failure of the view to every counterparty and closes its sessions.
func (c *viewContext) finish(err error) {
	c.mutex.Lock()
	sessions := append([]view.Session(nil), c.opened...)
	c.mutex.Unlock()
	if c.session != nil {
		sessions = append(sessions, c.session)
	}
	for _, s := range sessions {
		if err != nil {
			if sendErr := s.SendError(context.Background(), view.ToError(err).Marshal()); sendErr != nil {
				logger.Debugf("failed reporting error to [%s]: %s", s.Info().Counterparty, sendErr)
			}
		}
		s.Close()
	}
}

type ledger struct {
	node *Node
}

func (l *ledger) Now() time.Time {
	return l.node.network.now()
}

func (l *ledger) Sign(tx *membership.Transaction) membership.Signature {
	return membership.SignTransaction(tx, l.node.signer)
}

func (l *ledger) Verify(stx *membership.SignedTransaction, allowedMissing ...membership.Identity) error {
	if err := l.node.network.registry.Verify(stx.Tx); err != nil {
		return err
	}
	return stx.VerifySignatures(allowedMissing...)
}

func (l *ledger) Notarize(ctx context.Context, stx *membership.SignedTransaction) (*membership.SignedTransaction, error) {
	notary, err := l.node.network.notary(stx.Tx.Notary)
	if err != nil {
		return nil, err
	}
	return notary.Notarize(ctx, stx)
}

func (l *ledger) Record(ctx context.Context, stx *membership.SignedTransaction, statesToRecord view.StatesToRecord) error {
	txID := stx.ID()
	if stx.NotarySignature == nil {
		return errors.Errorf("transaction [%s] is not notarised", txID)
	}
	if !stx.NotarySignature.Signer.Equal(stx.Tx.Notary.Identity) {
		return errors.Errorf("transaction [%s] is not signed by its notary [%s]", txID, stx.Tx.Notary)
	}
	if err := membership.VerifySignature(stx.NotarySignature.Signer, []byte(txID), stx.NotarySignature.Value); err != nil {
		return errors.WithMessagef(err, "invalid notary signature on [%s]", txID)
	}
	return l.node.vault.Record(ctx, stx, statesToRecord)
}

func (l *ledger) Unconsumed(context.Context) ([]*membership.Record, error) {
	return l.node.vault.Unconsumed(), nil
}

func (l *ledger) Subscribe(listener view.RecordListener) {
	l.node.vault.Subscribe(listener)
}
