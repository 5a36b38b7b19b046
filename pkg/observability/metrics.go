// Copyright © 2024 Meroxa, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package observability connects Prometheus metrics and OpenTelemetry traces
// to the event buses of a receive transport. Observers only record, they
// never influence how the transport behaves.
package observability

import (
	"context"
	"sync"

	"github.com/conduitio/conduit-subscriber/pkg/eventbus"
	"github.com/conduitio/conduit-subscriber/pkg/retry"
	"github.com/conduitio/conduit-subscriber/pkg/transport"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultNamespace = "subscriber"

	labelSubscription = "subscription"
	labelOutcome      = "outcome"
	labelStage        = "stage"
)

// Metrics records receive and endpoint events as Prometheus metrics. All
// metrics carry the transport address as the subscription label.
type Metrics struct {
	received  *prometheus.CounterVec
	consumed  *prometheus.CounterVec
	faulted   *prometheus.CounterVec
	abandoned *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	faults    *prometheus.CounterVec
	inFlight  *prometheus.GaugeVec
	retries   *prometheus.CounterVec
	collected []prometheus.Collector
}

// NewMetrics creates the collectors and registers them with reg. If reg is
// nil prometheus.DefaultRegisterer is used.
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}

	m := &Metrics{
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Number of messages handed to the handler.",
		}, []string{labelSubscription}),
		consumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_consumed_total",
			Help:      "Number of messages handled and completed.",
		}, []string{labelSubscription}),
		faulted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_faulted_total",
			Help:      "Number of messages whose handler or settlement failed.",
		}, []string{labelSubscription}),
		abandoned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_abandoned_total",
			Help:      "Number of messages given back because the stop deadline interrupted the handler.",
		}, []string{labelSubscription}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "message_duration_seconds",
			Help:      "Time spent in the handler in seconds by outcome.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2.5, 12), // 1ms .. ~60s
		}, []string{labelSubscription, labelOutcome}),
		faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "endpoint_faults_total",
			Help:      "Number of failed connection attempts reported as faults.",
		}, []string{labelSubscription}),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "messages_in_flight",
			Help:      "Number of messages currently in the handler.",
		}, []string{labelSubscription}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Number of scheduled retries by stage.",
		}, []string{labelSubscription, labelStage}),
	}
	m.collected = []prometheus.Collector{
		m.received, m.consumed, m.faulted, m.abandoned, m.duration, m.faults, m.inFlight, m.retries,
	}
	for _, c := range m.collected {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveReceive records a single receive event.
func (m *Metrics) ObserveReceive(_ context.Context, e transport.ReceiveEvent) {
	if e.Context == nil {
		return
	}
	sub := e.Context.Address.String()
	switch e.Kind {
	case transport.MessageReceived:
		m.received.WithLabelValues(sub).Inc()
		m.inFlight.WithLabelValues(sub).Inc()
	case transport.MessageConsumed:
		m.consumed.WithLabelValues(sub).Inc()
		m.inFlight.WithLabelValues(sub).Dec()
		m.duration.WithLabelValues(sub, e.Kind.String()).Observe(e.Duration.Seconds())
	case transport.MessageFaulted:
		m.faulted.WithLabelValues(sub).Inc()
		m.inFlight.WithLabelValues(sub).Dec()
		m.duration.WithLabelValues(sub, e.Kind.String()).Observe(e.Duration.Seconds())
	case transport.MessageAbandoned:
		m.abandoned.WithLabelValues(sub).Inc()
		m.inFlight.WithLabelValues(sub).Dec()
	}
}

// ObserveEndpoint records endpoint faults, other endpoint events are ignored.
func (m *Metrics) ObserveEndpoint(_ context.Context, e transport.EndpointEvent) {
	if e.Kind != transport.EndpointFaulted {
		return
	}
	m.faults.WithLabelValues(e.Address.String()).Inc()
}

// RetryObserver returns an observer counting retries of the transport with
// the supplied address. Pass it to transport.WithRetryObserver.
func (m *Metrics) RetryObserver(addr transport.Address) transport.RetryObserver {
	counter := m.retries.MustCurryWith(prometheus.Labels{labelSubscription: addr.String()})
	return func(_ context.Context, stage string, _ retry.Attempt) {
		counter.WithLabelValues(stage).Inc()
	}
}

// Connect subscribes the metrics to both buses of t. Disconnecting the
// returned handle stops recording.
func (m *Metrics) Connect(t *transport.ReceiveTransport) *Connection {
	return &Connection{handles: []*eventbus.Handle{
		t.ConnectReceiveObserver(m.ObserveReceive),
		t.ConnectEndpointObserver(m.ObserveEndpoint),
	}}
}

// Unregister removes all collectors from reg.
func (m *Metrics) Unregister(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range m.collected {
		reg.Unregister(c)
	}
}

// Connection groups the bus registrations of one observer.
type Connection struct {
	once    sync.Once
	handles []*eventbus.Handle
}

// Disconnect removes all registrations, it is safe to call more than once.
func (c *Connection) Disconnect() {
	c.once.Do(func() {
		for _, h := range c.handles {
			h.Disconnect()
		}
	})
}
