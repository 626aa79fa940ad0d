/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ttx

import (
	"github.com/hyperledger-labs/fabric-bnms/membership"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/logging"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/view"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap/zapcore"
)

// CollectSignaturesView sends a partially signed transaction to each counterparty and
// collects their signatures. Each counterparty must be a required signer.
type CollectSignaturesView struct {
	stx      *membership.SignedTransaction
	sessions []*view.JSession
}

func NewCollectSignaturesView(stx *membership.SignedTransaction, sessions ...*view.JSession) *CollectSignaturesView {
	return &CollectSignaturesView{stx: stx, sessions: sessions}
}

func (c *CollectSignaturesView) Call(context view.Context) (interface{}, error) {
	span := trace.SpanFromContext(context.Context())
	stx := c.stx
	txID := stx.ID()
	required := stx.Tx.RequiredSigners()
	for _, session := range c.sessions {
		counterparty := session.Info().Counterparty
		if !contains(required, counterparty.Identity) {
			return nil, errors.Errorf("[%s] is not a required signer of transaction [%s]", counterparty, txID)
		}
		if logger.IsEnabledFor(zapcore.DebugLevel) {
			logger.Debugf("collect signature of [%s:%s] on [%s]", counterparty, logging.Prefix(counterparty.Identity.String()), txID)
		}
		span.AddEvent("collect signature")
		if err := session.Send(stx); err != nil {
			return nil, errors.WithMessagef(err, "failed sending transaction [%s] to [%s]", txID, counterparty)
		}
		response := &SignatureResponse{}
		if err := session.Receive(response); err != nil {
			return nil, errors.WithMessagef(err, "failed receiving signature of [%s] on [%s]", counterparty, txID)
		}
		sig := response.Signature
		if !sig.Signer.Equal(counterparty.Identity) {
			return nil, errors.Errorf("signature on [%s] is not by the expected party [%s]", txID, counterparty)
		}
		if err := membership.VerifySignature(sig.Signer, []byte(txID), sig.Value); err != nil {
			return nil, errors.WithMessagef(err, "invalid signature of [%s] on [%s]", counterparty, txID)
		}
		stx = stx.WithSignature(sig)
	}
	return stx, nil
}

// SignTransactionView receives a transaction to countersign. The check callback runs the
// caller's own verification before the ledger verification. Nothing is signed unless both pass,
// a failure reaches the counterparty through the platform.
type SignTransactionView struct {
	session *view.JSession
	check   func(stx *membership.SignedTransaction) error
}

func NewSignTransactionView(session *view.JSession, check func(stx *membership.SignedTransaction) error) *SignTransactionView {
	return &SignTransactionView{session: session, check: check}
}

func (s *SignTransactionView) Call(context view.Context) (interface{}, error) {
	stx := &membership.SignedTransaction{}
	if err := s.session.Receive(stx); err != nil {
		return nil, errors.WithMessage(err, "failed receiving transaction to sign")
	}
	if stx.Tx == nil {
		return nil, membership.NewInvalidTransactionError("received an empty transaction")
	}
	txID := stx.ID()
	me := context.Me()
	if !contains(stx.Tx.RequiredSigners(), me.Identity) {
		return nil, membership.NewInvalidTransactionError("[%s] is not a required signer of transaction [%s]", me, txID)
	}
	if s.check != nil {
		if err := s.check(stx); err != nil {
			return nil, err
		}
	}
	if err := context.Ledger().Verify(stx, me.Identity); err != nil {
		return nil, membership.NewTransactionRejectedError(txID, err)
	}
	sig := context.Ledger().Sign(stx.Tx)
	if err := s.session.Send(&SignatureResponse{Signature: sig}); err != nil {
		return nil, errors.WithMessagef(err, "failed sending signature on [%s]", txID)
	}
	return stx.WithSignature(sig), nil
}

func contains(ids []membership.Identity, id membership.Identity) bool {
	for _, candidate := range ids {
		if candidate.Equal(id) {
			return true
		}
	}
	return false
}
