/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package view

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hyperledger-labs/fabric-bnms/membership"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/logging"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/trace"
)

var logger = logging.MustGetLogger("view")

// JSession exchanges JSON encoded messages over a session.
// Receive waits until a message arrives or the context is done: there are no timeouts.
type JSession struct {
	s       Session
	context context.Context
}

// NewJSession returns a JSON-based session wrapping the passed session.
func NewJSession(ctx context.Context, s Session) *JSession {
	info := s.Info()
	span := trace.SpanFromContext(ctx)
	span.AddEvent(fmt.Sprintf("open json session [%s] with [%s]", info.ID, info.Counterparty))
	return &JSession{s: s, context: ctx}
}

// OpenJSession opens a JSON-based session to the passed party.
func OpenJSession(context Context, protocol Protocol, party membership.Party) (*JSession, error) {
	s, err := context.GetSession(protocol, party)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed opening session to [%s] for [%s]", party, protocol.Name)
	}
	return NewJSession(context.Context(), s), nil
}

// FromContext returns a JSON-based session wrapping the session that started the view.
func FromContext(context Context) *JSession {
	return NewJSession(context.Context(), context.Session())
}

// Receive waits for the next message and decodes it into state.
// An error message sent by the counterparty is returned as a *membership.Error.
func (j *JSession) Receive(state interface{}) error {
	raw, err := j.ReceiveRaw()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, state); err != nil {
		return errors.Wrapf(err, "failed decoding message from [%s]", j.s.Info().Counterparty)
	}
	return nil
}

func (j *JSession) ReceiveRaw() ([]byte, error) {
	span := trace.SpanFromContext(j.context)
	span.AddEvent("wait to receive")
	select {
	case msg, ok := <-j.s.Receive():
		span.AddEvent("received message")
		if !ok || msg == nil {
			return nil, errors.Errorf("session [%s] with [%s] closed", j.s.Info().ID, j.s.Info().Counterparty)
		}
		if msg.Status == ERROR {
			remote := membership.UnmarshalError(msg.Payload)
			span.RecordError(remote)
			logger.Debugf("received error from [%s]: %s", j.s.Info().Counterparty, remote)
			return nil, remote
		}
		return msg.Payload, nil
	case <-j.context.Done():
		span.AddEvent("context done")
		err := errors.Errorf("context done [%s]", j.context.Err())
		span.RecordError(err)
		return nil, err
	}
}

func (j *JSession) Send(state interface{}) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return errors.Wrapf(err, "failed encoding message of type [%T]", state)
	}
	return j.s.Send(j.context, raw)
}

// SendError reports err to the counterparty. Typed membership errors keep their kind.
func (j *JSession) SendError(err error) error {
	span := trace.SpanFromContext(j.context)
	span.RecordError(err)
	return j.s.SendError(j.context, ToError(err).Marshal())
}

func (j *JSession) Session() Session {
	return j.s
}

func (j *JSession) Info() SessionInfo {
	return j.s.Info()
}

// ToError extracts the typed error carried by err, or wraps its text as a remote error.
func ToError(err error) *membership.Error {
	var typed *membership.Error
	if errors.As(err, &typed) {
		return typed
	}
	return &membership.Error{Kind: membership.KindRemote, Message: err.Error()}
}
