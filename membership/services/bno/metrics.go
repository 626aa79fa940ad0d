/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package bno

import (
	"github.com/hyperledger-labs/fabric-bnms/membership/services/metrics"
)

var (
	flowsOpts = metrics.CounterOpts{
		Namespace:  "bnms",
		Subsystem:  "bno",
		Name:       "flows",
		Help:       "The number of operator flows by outcome.",
		LabelNames: []string{"flow", "outcome"},
	}
	notificationsOpts = metrics.CounterOpts{
		Namespace:  "bnms",
		Subsystem:  "bno",
		Name:       "notifications",
		Help:       "The number of membership notifications sent by outcome.",
		LabelNames: []string{"outcome"},
	}
)

type Metrics struct {
	Flows         metrics.Counter
	Notifications metrics.Counter
}

func NewMetrics(p metrics.Provider) *Metrics {
	return &Metrics{
		Flows:         p.NewCounter(flowsOpts),
		Notifications: p.NewCounter(notificationsOpts),
	}
}

func (m *Metrics) observeFlow(flow string, err error) {
	if m == nil {
		return
	}
	m.Flows.With("flow", flow, "outcome", outcome(err)).Add(1)
}

func (m *Metrics) observeNotification(err error) {
	if m == nil {
		return
	}
	m.Notifications.With("outcome", outcome(err)).Add(1)
}

func outcome(err error) string {
	if err != nil {
		return "failed"
	}
	return "ok"
}
