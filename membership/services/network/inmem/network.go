/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package inmem is an in-process ledger platform: nodes exchange messages over local
// sessions, a uniqueness notary orders transactions, and each node keeps a vault.
package inmem

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hyperledger-labs/fabric-bnms/membership"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/logging"
	"github.com/pkg/errors"
)

var logger = logging.MustGetLogger("network", "inmem")

// Network connects nodes and notaries, and resolves their names.
type Network struct {
	ctx      context.Context
	cancel   context.CancelFunc
	registry *membership.ContractRegistry

	mutex    sync.RWMutex
	nodes    map[string]*Node
	notaries map[string]*Notary
	clock    func() time.Time
}

// NewNetwork returns an empty network whose ledgers verify transactions with the passed contracts.
func NewNetwork(registry *membership.ContractRegistry) *Network {
	ctx, cancel := context.WithCancel(context.Background())
	return &Network{
		ctx:      ctx,
		cancel:   cancel,
		registry: registry,
		nodes:    map[string]*Node{},
		notaries: map[string]*Notary{},
		clock:    time.Now,
	}
}

// SetClock replaces the clock of every ledger of the network.
func (n *Network) SetClock(clock func() time.Time) {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	n.clock = clock
}

func (n *Network) now() time.Time {
	n.mutex.RLock()
	defer n.mutex.RUnlock()
	return n.clock().UTC()
}

func (n *Network) AddNode(name string) (*Node, error) {
	signer, err := membership.NewSigningIdentity(name)
	if err != nil {
		return nil, err
	}
	n.mutex.Lock()
	defer n.mutex.Unlock()
	if err := n.checkFree(name); err != nil {
		return nil, err
	}
	node := newNode(n, signer)
	n.nodes[name] = node
	logger.Debugf("node [%s] joined the network", name)
	return node, nil
}

func (n *Network) AddNotary(name string) (*Notary, error) {
	signer, err := membership.NewSigningIdentity(name)
	if err != nil {
		return nil, err
	}
	n.mutex.Lock()
	defer n.mutex.Unlock()
	if err := n.checkFree(name); err != nil {
		return nil, err
	}
	notary := newNotary(signer, n.registry)
	n.notaries[name] = notary
	return notary, nil
}

func (n *Network) checkFree(name string) error {
	_, isNode := n.nodes[name]
	_, isNotary := n.notaries[name]
	if isNode || isNotary {
		return errors.Errorf("party [%s] already exists", name)
	}
	return nil
}

// RemoveNode makes the party unknown to the directory. Its node stops being reachable.
func (n *Network) RemoveNode(name string) {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	delete(n.nodes, name)
}

func (n *Network) Node(name string) (*Node, bool) {
	n.mutex.RLock()
	defer n.mutex.RUnlock()
	node, ok := n.nodes[name]
	return node, ok
}

func (n *Network) node(party membership.Party) (*Node, error) {
	node, ok := n.Node(party.Name)
	if !ok || !node.Party().Equal(party) {
		return nil, membership.NewPartyNotFoundError(party.Name)
	}
	return node, nil
}

func (n *Network) notary(party membership.Party) (*Notary, error) {
	n.mutex.RLock()
	defer n.mutex.RUnlock()
	notary, ok := n.notaries[party.Name]
	if !ok || !notary.Party().Equal(party) {
		return nil, membership.NewNotaryNotFoundError(party.Name)
	}
	return notary, nil
}

func (n *Network) WellKnownParty(name string) (membership.Party, bool) {
	n.mutex.RLock()
	defer n.mutex.RUnlock()
	if node, ok := n.nodes[name]; ok {
		return node.Party(), true
	}
	if notary, ok := n.notaries[name]; ok {
		return notary.Party(), true
	}
	return membership.Party{}, false
}

func (n *Network) IsKnown(party membership.Party) bool {
	p, ok := n.WellKnownParty(party.Name)
	return ok && p.Equal(party)
}

// Parties returns every known party, sorted by name.
func (n *Network) Parties() []membership.Party {
	n.mutex.RLock()
	res := make([]membership.Party, 0, len(n.nodes)+len(n.notaries))
	for _, node := range n.nodes {
		res = append(res, node.Party())
	}
	for _, notary := range n.notaries {
		res = append(res, notary.Party())
	}
	n.mutex.RUnlock()
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res
}

// Wait blocks until no responder is running on any node.
func (n *Network) Wait() {
	n.mutex.RLock()
	nodes := make([]*Node, 0, len(n.nodes))
	for _, node := range n.nodes {
		nodes = append(nodes, node)
	}
	n.mutex.RUnlock()
	for _, node := range nodes {
		node.Wait()
	}
}

// Stop cancels the context of every responder.
func (n *Network) Stop() {
	n.cancel()
	n.Wait()
}
