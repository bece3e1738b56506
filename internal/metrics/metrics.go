// Package metrics holds Prometheus instruments that are used across the
// dashboard.  All collectors are registered with the global registry, so
// importing this package in main.go is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	DeployEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waypost_deploy_events_total",
			Help: "Inbound deploy webhook events by outcome (triggered, skipped, unauthorized).",
		},
		[]string{"outcome"})

	DeployCallFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "waypost_deploy_call_failures_total",
			Help: "Operator-API calls in the deploy sequence that failed.",
		})

	RemapRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waypost_remap_requests_total",
			Help: "Port-remap requests by outcome (ok, partial_failure, rejected).",
		},
		[]string{"outcome"})

	RemapSitesUpdatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "waypost_remap_sites_updated_total",
			Help: "Site records whose URLs were rewritten by the remap engine.",
		})

	NavCacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waypost_nav_cache_total",
			Help: "Navigation payload cache lookups by result (hit, miss, bypass).",
		},
		[]string{"result"})
)

func init() {
	prometheus.MustRegister(
		DeployEventsTotal,
		DeployCallFailuresTotal,
		RemapRequestsTotal,
		RemapSitesUpdatedTotal,
		NavCacheHitsTotal,
	)
}
