/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ttx

import (
	"github.com/hyperledger-labs/fabric-bnms/membership"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/view"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/trace"
)

// FinalityView verifies a fully signed transaction, notarises it, records it locally and
// distributes it to the passed sessions, waiting for each acknowledgement.
type FinalityView struct {
	stx      *membership.SignedTransaction
	sessions []*view.JSession
}

func NewFinalityView(stx *membership.SignedTransaction, sessions ...*view.JSession) *FinalityView {
	return &FinalityView{stx: stx, sessions: sessions}
}

func (f *FinalityView) Call(context view.Context) (interface{}, error) {
	span := trace.SpanFromContext(context.Context())
	txID := f.stx.ID()
	ledger := context.Ledger()

	if err := ledger.Verify(f.stx); err != nil {
		return nil, membership.NewTransactionRejectedError(txID, err)
	}
	span.AddEvent("notarize")
	notarised, err := ledger.Notarize(context.Context(), f.stx)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed notarising transaction [%s]", txID)
	}
	if err := ledger.Record(context.Context(), notarised, view.OnlyRelevant); err != nil {
		return nil, errors.WithMessagef(err, "failed recording transaction [%s]", txID)
	}
	logger.Debugf("transaction [%s] notarised and recorded, distribute to [%d] parties", txID, len(f.sessions))

	span.AddEvent("distribute")
	for _, session := range f.sessions {
		counterparty := session.Info().Counterparty
		if err := session.Send(notarised); err != nil {
			return nil, errors.WithMessagef(err, "failed sending transaction [%s] to [%s]", txID, counterparty)
		}
		ack := &Ack{}
		if err := session.Receive(ack); err != nil {
			return nil, errors.WithMessagef(err, "failed receiving acknowledgement of [%s] from [%s]", txID, counterparty)
		}
		if ack.TxID != txID {
			return nil, errors.Errorf("[%s] acknowledged [%s] instead of [%s]", counterparty, ack.TxID, txID)
		}
	}
	return notarised, nil
}

// ReceiveFinalityView receives a notarised transaction, verifies and records it, then
// acknowledges its reception. If expectedTxID is set, any other transaction is rejected.
type ReceiveFinalityView struct {
	session        *view.JSession
	expectedTxID   string
	statesToRecord view.StatesToRecord
}

func NewReceiveFinalityView(session *view.JSession, expectedTxID string, statesToRecord view.StatesToRecord) *ReceiveFinalityView {
	return &ReceiveFinalityView{session: session, expectedTxID: expectedTxID, statesToRecord: statesToRecord}
}

func (r *ReceiveFinalityView) Call(context view.Context) (interface{}, error) {
	stx := &membership.SignedTransaction{}
	if err := r.session.Receive(stx); err != nil {
		return nil, errors.WithMessage(err, "failed receiving finalised transaction")
	}
	if stx.Tx == nil {
		return nil, membership.NewInvalidTransactionError("received an empty transaction")
	}
	txID := stx.ID()
	if len(r.expectedTxID) != 0 && txID != r.expectedTxID {
		return nil, membership.NewInvalidTransactionError("expected transaction [%s], received [%s]", r.expectedTxID, txID)
	}
	if err := context.Ledger().Verify(stx); err != nil {
		return nil, membership.NewTransactionRejectedError(txID, err)
	}
	if err := context.Ledger().Record(context.Context(), stx, r.statesToRecord); err != nil {
		return nil, errors.WithMessagef(err, "failed recording transaction [%s]", txID)
	}
	if err := r.session.Send(&Ack{TxID: txID}); err != nil {
		return nil, errors.WithMessagef(err, "failed acknowledging transaction [%s]", txID)
	}
	return stx, nil
}
