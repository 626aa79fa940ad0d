/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package view

import (
	"sync"

	"github.com/hyperledger-labs/fabric-bnms/membership/services/logging"
)

// Step is a named suspension point of a protocol.
type Step string

const (
	StepNone                 Step = ""
	StepVerifyingRequest     Step = "Verifying request"
	StepBuildingTransaction  Step = "Building transaction"
	StepVerifyingTransaction Step = "Verifying transaction"
	StepSigning              Step = "Signing transaction"
	StepCollectingSignatures Step = "Collecting signatures"
	StepAwaitingSignature    Step = "Awaiting counterparty signature"
	StepFinalising           Step = "Finalising transaction"
	StepAwaitingFinality     Step = "Awaiting finalised transaction"
	StepNotifying            Step = "Notifying members"
	StepDone                 Step = "Done"
)

// ProgressTracker records the current step of a flow and logs every transition.
type ProgressTracker struct {
	mutex   sync.RWMutex
	flow    string
	logger  logging.Logger
	current Step
	history []Step
}

func NewProgressTracker(flow string) *ProgressTracker {
	return &ProgressTracker{flow: flow, logger: logger.Named("progress")}
}

func (p *ProgressTracker) SetCurrentStep(step Step) {
	p.mutex.Lock()
	p.current = step
	p.history = append(p.history, step)
	p.mutex.Unlock()
	p.logger.Debugf("[%s] %s", p.flow, step)
}

func (p *ProgressTracker) Current() Step {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.current
}

// History returns the steps visited so far, in order.
func (p *ProgressTracker) History() []Step {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return append([]Step(nil), p.history...)
}
