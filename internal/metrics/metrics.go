// Package metrics holds Prometheus instruments that are used across the
// service.  All collectors are registered with the global registry, so
// importing this package in main.go is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ResetCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soldout_reset_cycles_total",
			Help: "Completed sold-out reset cycles by mode.",
		}, []string{"mode"})

	ResetCycleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "soldout_reset_cycle_duration_seconds",
			Help:    "Wall time of one sold-out reset cycle.",
			Buckets: prometheus.DefBuckets,
		}, []string{"mode"})

	TenantsResetTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "soldout_tenants_reset_total",
			Help: "Cumulative number of tenant resets committed.",
		})

	ItemsResetTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "soldout_items_reset_total",
			Help: "Cumulative number of menu items returned to stock.",
		})

	TenantResetErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soldout_tenant_reset_errors_total",
			Help: "Per-tenant reset failures by reason.",
		}, []string{"reason"})

	UnknownTimezoneTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "soldout_unknown_timezone_total",
			Help: "Tenant timezone lookups that fell back to UTC.",
		})

	TriggerRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "soldout_trigger_rejected_total",
			Help: "Trigger invocations rejected for a bad or missing secret.",
		})

	CatalogEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "prep_catalog_entries",
			Help: "Number of restaurant prep-time snapshots held in memory.",
		})

	CatalogLoadTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "prep_catalog_load_total",
			Help: "Cumulative number of prep-time snapshots loaded.",
		})

	CatalogLoadErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "prep_catalog_load_errors_total",
			Help: "Cumulative number of prep-time snapshot load errors.",
		})

	CatalogEvictTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "prep_catalog_evict_total",
			Help: "Cumulative number of prep-time snapshots evicted.",
		})
)

func init() {
	prometheus.MustRegister(
		ResetCyclesTotal,
		ResetCycleDuration,
		TenantsResetTotal,
		ItemsResetTotal,
		TenantResetErrorsTotal,
		UnknownTimezoneTotal,
		TriggerRejectedTotal,
		CatalogEntries,
		CatalogLoadTotal,
		CatalogLoadErrorsTotal,
		CatalogEvictTotal,
	)
}
