// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package metrics holds the Prometheus collectors of the control plane.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "meet_bot"

// Outcome labels
const (
	OutcomeSuccess          = "success"
	OutcomeError            = "error"
	OutcomeNotReady         = "not_ready"
	OutcomeAnswered         = "answered"
	OutcomeTimeout          = "timeout"
	OutcomeScheduled        = "scheduled"
	OutcomeAlreadyScheduled = "already_scheduled"
)

var registry = prometheus.NewRegistry()

var (
	// CommandsPublished counts publish attempts by command and outcome.
	CommandsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "commands_published_total",
		Help:      "Bot commands handed to the bus, by command and outcome.",
	}, []string{"command", "outcome"})

	// BusState is 0 disconnected, 1 connecting, 2 ready.
	BusState = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "bus_state",
		Help:      "Current state of the command bus session (0 disconnected, 1 connecting, 2 ready).",
	})

	// BusConnects counts established bus sessions.
	BusConnects = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bus_connects_total",
		Help:      "Bus sessions established since start.",
	})

	// StatusRequestsPending is the size of the pending status request table.
	StatusRequestsPending = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "status_requests_pending",
		Help:      "Live status requests waiting for a bot answer.",
	})

	// StatusRequests counts live status requests by outcome.
	StatusRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "status_requests_total",
		Help:      "Live status requests by outcome.",
	}, []string{"outcome"})

	// SchedulingRequests counts calendar scheduling requests by outcome.
	SchedulingRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scheduling_requests_total",
		Help:      "Calendar scheduling requests by outcome.",
	}, []string{"outcome"})

	// ActiveInstances is the last computed number of busy bot instances.
	ActiveInstances = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_instances",
		Help:      "Bot instances with a fresh heartbeat at the last count.",
	})
)

func init() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		CommandsPublished,
		BusState,
		BusConnects,
		StatusRequestsPending,
		StatusRequests,
		SchedulingRequests,
		ActiveInstances,
	)
}

// Registry returns the registry holding every collector of the service.
func Registry() *prometheus.Registry {
	return registry
}

// Handler serves the collectors in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}
