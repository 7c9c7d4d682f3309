// Package metrics exposes prometheus counters for the connection caches.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetch sources.
const (
	SourceOverride = "override"
	SourceCache    = "cache"
	SourceRemote   = "remote"
)

var (
	// FetchTotal counts enumeration calls by category and where the result came from.
	FetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "virtconn",
		Subsystem: "fetch",
		Name:      "total",
		Help:      "Enumeration calls by category and result source (override, cache, remote).",
	}, []string{"category", "source"})

	// FetchErrorsTotal counts enumeration calls that failed.
	FetchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "virtconn",
		Subsystem: "fetch",
		Name:      "errors_total",
		Help:      "Enumeration calls that failed, by category.",
	}, []string{"category"})

	// FetchItemsSkippedTotal counts objects dropped from an enumeration because
	// their description could not be fetched.
	FetchItemsSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "virtconn",
		Subsystem: "fetch",
		Name:      "items_skipped_total",
		Help:      "Objects skipped during enumeration because describing them failed.",
	}, []string{"category"})

	// SupportChecksTotal counts feature lookups by whether they were answered from cache.
	SupportChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "virtconn",
		Subsystem: "support",
		Name:      "checks_total",
		Help:      "Feature support lookups, by feature and result (cached, evaluated).",
	}, []string{"feature", "result"})

	// VersionLookupFailuresTotal counts version lookups that fell back to the zero sentinel.
	VersionLookupFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "virtconn",
		Subsystem: "version",
		Name:      "lookup_failures_total",
		Help:      "Version lookups that failed and were recorded as unknown.",
	}, []string{"kind"})
)

// RecordFetch records an enumeration call served from source.
func RecordFetch(category, source string) {
	FetchTotal.WithLabelValues(category, source).Inc()
}

// RecordFetchError records a failed enumeration call.
func RecordFetchError(category string) {
	FetchErrorsTotal.WithLabelValues(category).Inc()
}

// RecordSkipped records one object skipped during enumeration.
func RecordSkipped(category string) {
	FetchItemsSkippedTotal.WithLabelValues(category).Inc()
}

// RecordSupportCheck records a feature lookup.
func RecordSupportCheck(feature string, cached bool) {
	result := "evaluated"
	if cached {
		result = "cached"
	}
	SupportChecksTotal.WithLabelValues(feature, result).Inc()
}

// RecordVersionFailure records a version lookup that failed.
func RecordVersionFailure(kind string) {
	VersionLookupFailuresTotal.WithLabelValues(kind).Inc()
}

// WriteFile writes every registered metric to path in the text exposition
// format, for a node_exporter textfile collector. The file is replaced
// atomically.
func WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
