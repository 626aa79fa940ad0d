/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package inmem

import (
	"context"
	"sort"
	"sync"

	"github.com/hyperledger-labs/fabric-bnms/membership"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/view"
	"github.com/pkg/errors"
)

// Vault stores the transactions a node has recorded and the membership records they produced.
type Vault struct {
	me membership.Party

	mutex     sync.RWMutex
	txs       map[string]*membership.SignedTransaction
	states    map[membership.StateRef]*membership.Record
	consumed  map[membership.StateRef]bool
	listeners []view.RecordListener
}

func newVault(me membership.Party) *Vault {
	return &Vault{
		me:       me,
		txs:      map[string]*membership.SignedTransaction{},
		states:   map[membership.StateRef]*membership.Record{},
		consumed: map[membership.StateRef]bool{},
	}
}

// Record stores the transaction. Recording the same transaction twice is a no-op.
func (v *Vault) Record(ctx context.Context, stx *membership.SignedTransaction, statesToRecord view.StatesToRecord) error {
	txID := stx.ID()
	v.mutex.Lock()
	if _, ok := v.txs[txID]; ok {
		v.mutex.Unlock()
		return nil
	}
	v.txs[txID] = stx
	for _, in := range stx.Tx.Inputs {
		delete(v.states, in.Ref)
		v.consumed[in.Ref] = true
	}
	var recorded []*membership.Record
	for _, r := range stx.Tx.OutputRecords() {
		if v.consumed[r.Ref] {
			continue
		}
		if statesToRecord == view.AllVisible || membership.ContainsParty(r.State.Participants(), v.me) {
			v.states[r.Ref] = r
			recorded = append(recorded, r)
		}
	}
	listeners := append([]view.RecordListener(nil), v.listeners...)
	v.mutex.Unlock()

	for _, r := range recorded {
		for _, l := range listeners {
			if err := l.OnRecord(ctx, r); err != nil {
				return errors.WithMessagef(err, "listener failed on record [%s]", r.Ref)
			}
		}
	}
	return nil
}

func (v *Vault) Subscribe(listener view.RecordListener) {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	v.listeners = append(v.listeners, listener)
}

// Unconsumed returns the membership records not consumed yet, oldest first.
func (v *Vault) Unconsumed() []*membership.Record {
	v.mutex.RLock()
	res := make([]*membership.Record, 0, len(v.states))
	for _, r := range v.states {
		res = append(res, r)
	}
	v.mutex.RUnlock()
	sort.Slice(res, func(i, j int) bool {
		return res[i].State.Modified.Before(res[j].State.Modified)
	})
	return res
}

// Transaction returns a recorded transaction.
func (v *Vault) Transaction(txID string) (*membership.SignedTransaction, bool) {
	v.mutex.RLock()
	defer v.mutex.RUnlock()
	stx, ok := v.txs[txID]
	return stx, ok
}
