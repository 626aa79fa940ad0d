/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package member

import (
	"github.com/hyperledger-labs/fabric-bnms/membership/services/metrics"
)

var (
	flowsOpts = metrics.CounterOpts{
		Namespace:  "bnms",
		Subsystem:  "member",
		Name:       "flows",
		Help:       "The number of member flows by outcome.",
		LabelNames: []string{"flow", "outcome"},
	}
	cachedMembershipsOpts = metrics.GaugeOpts{
		Namespace:  "bnms",
		Subsystem:  "member",
		Name:       "cached_memberships",
		Help:       "The number of memberships cached for a business network.",
		LabelNames: []string{"network"},
	}
)

type Metrics struct {
	Flows             metrics.Counter
	CachedMemberships metrics.Gauge
}

func NewMetrics(p metrics.Provider) *Metrics {
	return &Metrics{
		Flows:             p.NewCounter(flowsOpts),
		CachedMemberships: p.NewGauge(cachedMembershipsOpts),
	}
}

func (m *Metrics) observeFlow(flow string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	m.Flows.With("flow", flow, "outcome", outcome).Add(1)
}

func (m *Metrics) setCached(network string, n int) {
	if m == nil {
		return
	}
	m.CachedMemberships.With("network", network).Set(float64(n))
}
