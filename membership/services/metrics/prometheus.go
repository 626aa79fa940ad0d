/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package metrics

import (
	"github.com/hyperledger-labs/fabric-bnms/membership/services/logging"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

var logger = logging.MustGetLogger("metrics")

// PromProvider creates prometheus metrics registered on its registerer.
// Creating the same metric twice returns the registered one.
type PromProvider struct {
	registerer prometheus.Registerer
}

func NewPromProvider(registerer prometheus.Registerer) *PromProvider {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &PromProvider{registerer: registerer}
}

func (p *PromProvider) NewCounter(o CounterOpts) Counter {
	cv := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: o.Namespace,
		Subsystem: o.Subsystem,
		Name:      o.Name,
		Help:      o.Help,
	}, o.LabelNames)
	return &promCounter{cv: register(p.registerer, cv)}
}

func (p *PromProvider) NewGauge(o GaugeOpts) Gauge {
	gv := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: o.Namespace,
		Subsystem: o.Subsystem,
		Name:      o.Name,
		Help:      o.Help,
	}, o.LabelNames)
	return &promGauge{gv: register(p.registerer, gv)}
}

func (p *PromProvider) NewHistogram(o HistogramOpts) Histogram {
	hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: o.Namespace,
		Subsystem: o.Subsystem,
		Name:      o.Name,
		Help:      o.Help,
		Buckets:   o.Buckets,
	}, o.LabelNames)
	return &promHistogram{hv: register(p.registerer, hv)}
}

func register[C prometheus.Collector](registerer prometheus.Registerer, c C) C {
	err := registerer.Register(c)
	if err == nil {
		return c
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			logger.Debugf("metric already registered, reuse it")
			return existing
		}
	}
	panic(errors.Wrap(err, "failed registering metric"))
}

type promCounter struct {
	cv     *prometheus.CounterVec
	labels prometheus.Labels
}

func (c *promCounter) With(labelValues ...string) Counter {
	return &promCounter{cv: c.cv, labels: merge(c.labels, labelValues)}
}

func (c *promCounter) Add(delta float64) {
	c.cv.With(c.labels).Add(delta)
}

type promGauge struct {
	gv     *prometheus.GaugeVec
	labels prometheus.Labels
}

func (g *promGauge) With(labelValues ...string) Gauge {
	return &promGauge{gv: g.gv, labels: merge(g.labels, labelValues)}
}

func (g *promGauge) Add(delta float64) {
	g.gv.With(g.labels).Add(delta)
}

func (g *promGauge) Set(value float64) {
	g.gv.With(g.labels).Set(value)
}

type promHistogram struct {
	hv     *prometheus.HistogramVec
	labels prometheus.Labels
}

func (h *promHistogram) With(labelValues ...string) Histogram {
	return &promHistogram{hv: h.hv, labels: merge(h.labels, labelValues)}
}

func (h *promHistogram) Observe(value float64) {
	h.hv.With(h.labels).Observe(value)
}

func merge(labels prometheus.Labels, labelValues []string) prometheus.Labels {
	if len(labelValues)%2 != 0 {
		panic(errors.Errorf("odd number of label values [%v]", labelValues))
	}
	res := make(prometheus.Labels, len(labels)+len(labelValues)/2)
	for k, v := range labels {
		res[k] = v
	}
	for i := 0; i < len(labelValues); i += 2 {
		res[labelValues[i]] = labelValues[i+1]
	}
	return res
}
