/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package inmem

import (
	"context"
	"sync"

	"github.com/hashicorp/go-uuid"
	"github.com/hyperledger-labs/fabric-bnms/membership"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/view"
	"github.com/pkg/errors"
)

const pipeBuffer = 100

// pipe is one direction of a local session. Closing it lets the reader drain
// what was already sent.
type pipe struct {
	mutex  sync.Mutex
	ch     chan *view.Message
	closed bool
}

func newPipe() *pipe {
	return &pipe{ch: make(chan *view.Message, pipeBuffer)}
}

func (p *pipe) send(ctx context.Context, msg *view.Message) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.closed {
		return errors.New("session is closed")
	}
	select {
	case p.ch <- msg:
		return nil
	case <-ctx.Done():
		return errors.Errorf("context done [%s]", ctx.Err())
	}
}

func (p *pipe) close() {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if !p.closed {
		p.closed = true
		close(p.ch)
	}
}

// localChannel simulates a session between two views running in the same process.
type localChannel struct {
	left  *localSession
	right *localSession
}

// newLocalChannel connects the initiator to the responder. Each end reports the
// protocol version of the other one.
func newLocalChannel(protocol string, initiator membership.Party, initiatorVersion int, responder membership.Party, responderVersion int) (*localChannel, error) {
	id, err := uuid.GenerateUUID()
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate session ID")
	}
	lr := newPipe()
	rl := newPipe()
	return &localChannel{
		left: &localSession{
			info: view.SessionInfo{
				ID:                  id,
				Protocol:            protocol,
				Counterparty:        responder,
				CounterpartyVersion: responderVersion,
			},
			me:    initiator,
			read:  rl,
			write: lr,
		},
		right: &localSession{
			info: view.SessionInfo{
				ID:                  id,
				Protocol:            protocol,
				Counterparty:        initiator,
				CounterpartyVersion: initiatorVersion,
			},
			me:    responder,
			read:  lr,
			write: rl,
		},
	}, nil
}

type localSession struct {
	mutex sync.RWMutex
	info  view.SessionInfo
	me    membership.Party
	read  *pipe
	write *pipe
}

func (s *localSession) Info() view.SessionInfo {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.info
}

func (s *localSession) Send(ctx context.Context, payload []byte) error {
	return s.write.send(ctx, &view.Message{
		SessionID: s.info.ID,
		Caller:    s.me,
		Status:    view.OK,
		Payload:   payload,
	})
}

func (s *localSession) SendError(ctx context.Context, payload []byte) error {
	return s.write.send(ctx, &view.Message{
		SessionID: s.info.ID,
		Caller:    s.me,
		Status:    view.ERROR,
		Payload:   payload,
	})
}

func (s *localSession) Receive() <-chan *view.Message {
	return s.read.ch
}

func (s *localSession) Close() {
	s.mutex.Lock()
	s.info.Closed = true
	s.mutex.Unlock()
	s.write.close()
}
