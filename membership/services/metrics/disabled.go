/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package metrics

// DisabledProvider creates metrics that record nothing.
type DisabledProvider struct{}

func NewDisabledProvider() Provider {
	return &DisabledProvider{}
}

func (*DisabledProvider) NewCounter(CounterOpts) Counter       { return &disabledCounter{} }
func (*DisabledProvider) NewGauge(GaugeOpts) Gauge             { return &disabledGauge{} }
func (*DisabledProvider) NewHistogram(HistogramOpts) Histogram { return &disabledHistogram{} }

type disabledCounter struct{}

func (c *disabledCounter) With(...string) Counter { return c }
func (c *disabledCounter) Add(float64)            {}

type disabledGauge struct{}

func (g *disabledGauge) With(...string) Gauge { return g }
func (g *disabledGauge) Add(float64)          {}
func (g *disabledGauge) Set(float64)          {}

type disabledHistogram struct{}

func (h *disabledHistogram) With(...string) Histogram { return h }
func (h *disabledHistogram) Observe(float64)          {}
