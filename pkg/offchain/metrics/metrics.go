/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace of every off-chain metric.
const Namespace = "offchain"

// Metrics records the activity of the off-chain channels of a VASP.
type Metrics interface {
	IncRequests(peer string, own bool)
	IncResponses(peer, status string)
	IncProtocolErrors(peer, code string)
	IncCommandErrors(peer, code string)
	IncRetransmissions(peer string)
	IncRejectedEnvelopes(peer string)
	SetPending(peer string, pending int)
	ObserveSequencing(peer string, d time.Duration)
}

type channelMetrics struct {
	requests         *prometheus.CounterVec
	responses        *prometheus.CounterVec
	protocolErrors   *prometheus.CounterVec
	commandErrors    *prometheus.CounterVec
	retransmissions  *prometheus.CounterVec
	rejectedEnvelope *prometheus.CounterVec
	pending          *prometheus.GaugeVec
	sequencing       *prometheus.HistogramVec
}

// New creates the channel metrics and registers them with registerer.
func New(registerer prometheus.Registerer) Metrics {
	m := &channelMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: Namespace, Subsystem: "channel",
			Name: "requests_total", Help: "Command requests sequenced, by origin"}, []string{"peer", "origin"}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: Namespace, Subsystem: "channel",
			Name: "responses_total", Help: "Command responses received, by status"}, []string{"peer", "status"}),
		protocolErrors: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: Namespace, Subsystem: "channel",
			Name: "protocol_errors_total", Help: "Protocol errors received, by code"}, []string{"peer", "code"}),
		commandErrors: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: Namespace, Subsystem: "channel",
			Name: "command_errors_total", Help: "Commands sequenced as failed, by code"}, []string{"peer", "code"}),
		retransmissions: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: Namespace, Subsystem: "channel",
			Name: "retransmissions_total", Help: "Requests sent again"}, []string{"peer"}),
		rejectedEnvelope: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: Namespace, Subsystem: "envelope",
			Name: "rejected_total", Help: "Inbound envelopes dropped on verification"}, []string{"peer"}),
		pending: prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: Namespace, Subsystem: "channel",
			Name: "pending_requests", Help: "Local requests waiting for a response"}, []string{"peer"}),
		sequencing: prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: Namespace, Subsystem: "channel",
			Name: "sequencing_seconds", Help: "Time from local submission to the final response",
			Buckets: []float64{.005, .01, .05, .1, .5, 1, 5, 10, 30, 60}}, []string{"peer"}),
	}

	registerer.MustRegister(m.requests, m.responses, m.protocolErrors, m.commandErrors, m.retransmissions,
		m.rejectedEnvelope, m.pending, m.sequencing)

	return m
}

func origin(own bool) string {
	if own {
		return "local"
	}

	return "remote"
}

func (m *channelMetrics) IncRequests(peer string, own bool) {
	m.requests.WithLabelValues(peer, origin(own)).Inc()
}

func (m *channelMetrics) IncResponses(peer, status string) {
	m.responses.WithLabelValues(peer, status).Inc()
}

func (m *channelMetrics) IncProtocolErrors(peer, code string) {
	m.protocolErrors.WithLabelValues(peer, code).Inc()
}

func (m *channelMetrics) IncCommandErrors(peer, code string) {
	m.commandErrors.WithLabelValues(peer, code).Inc()
}

func (m *channelMetrics) IncRetransmissions(peer string) {
	m.retransmissions.WithLabelValues(peer).Inc()
}

func (m *channelMetrics) IncRejectedEnvelopes(peer string) {
	m.rejectedEnvelope.WithLabelValues(peer).Inc()
}

func (m *channelMetrics) SetPending(peer string, pending int) {
	m.pending.WithLabelValues(peer).Set(float64(pending))
}

func (m *channelMetrics) ObserveSequencing(peer string, d time.Duration) {
	m.sequencing.WithLabelValues(peer).Observe(d.Seconds())
}

// Noop discards every measurement.
type Noop struct{}

// IncRequests does nothing.
func (Noop) IncRequests(string, bool) {}

// IncResponses does nothing.
func (Noop) IncResponses(string, string) {}

// IncProtocolErrors does nothing.
func (Noop) IncProtocolErrors(string, string) {}

// IncCommandErrors does nothing.
func (Noop) IncCommandErrors(string, string) {}

// IncRetransmissions does nothing.
func (Noop) IncRetransmissions(string) {}

// IncRejectedEnvelopes does nothing.
func (Noop) IncRejectedEnvelopes(string) {}

// SetPending does nothing.
func (Noop) SetPending(string, int) {}

// ObserveSequencing does nothing.
func (Noop) ObserveSequencing(string, time.Duration) {}
