/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package metrics_test

import (
	"testing"

	"github.com/hyperledger-labs/fabric-bnms/membership/services/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

var flowsOpts = metrics.CounterOpts{
	Namespace:  "bnms",
	Name:       "flows",
	Help:       "The number of flows",
	LabelNames: []string{"flow", "outcome"},
}

func TestPromCounter(t *testing.T) {
	registry := prometheus.NewRegistry()
	p := metrics.NewPromProvider(registry)

	c := p.NewCounter(flowsOpts).With("flow", "activate")
	c.With("outcome", "ok").Add(1)
	c.With("outcome", "ok").Add(2)
	c.With("outcome", "failed").Add(1)

	// registering again returns the same collector
	p.NewCounter(flowsOpts).With("flow", "activate", "outcome", "ok").Add(1)

	count, err := testutil.GatherAndCount(registry, "bnms_flows")
	assert.NoError(t, err)
	assert.Equal(t, 2, count)

	mfs, err := registry.Gather()
	assert.NoError(t, err)
	values := map[string]float64{}
	for _, m := range mfs[0].GetMetric() {
		for _, l := range m.GetLabel() {
			if l.GetName() == "outcome" {
				values[l.GetValue()] = m.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, map[string]float64{"ok": 4, "failed": 1}, values)
}

func TestPromGaugeAndHistogram(t *testing.T) {
	registry := prometheus.NewRegistry()
	p := metrics.NewPromProvider(registry)

	g := p.NewGauge(metrics.GaugeOpts{Namespace: "bnms", Name: "cached_memberships", Help: "cached", LabelNames: []string{"network"}})
	g.With("network", "trade").Set(3)
	g.With("network", "trade").Add(2)

	h := p.NewHistogram(metrics.HistogramOpts{Namespace: "bnms", Name: "flow_duration", Help: "duration", LabelNames: []string{"flow"}})
	h.With("flow", "request").Observe(12)

	count, err := testutil.GatherAndCount(registry, "bnms_cached_memberships", "bnms_flow_duration")
	assert.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestOddLabelValuesPanic(t *testing.T) {
	p := metrics.NewPromProvider(prometheus.NewRegistry())
	assert.Panics(t, func() {
		p.NewCounter(flowsOpts).With("flow")
	})
}

func TestDisabledProvider(t *testing.T) {
	p := metrics.NewDisabledProvider()
	assert.NotPanics(t, func() {
		p.NewCounter(flowsOpts).With("flow", "x").Add(1)
		p.NewGauge(metrics.GaugeOpts{}).With().Set(1)
		p.NewHistogram(metrics.HistogramOpts{}).With().Observe(1)
	})
}
