// Package metrics exposes primlab's Prometheus instruments.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	caseResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "primlab",
			Subsystem: "runner",
			Name:      "cases_total",
			Help:      "Count of executed test cases classified by stage and outcome",
		},
		[]string{"kind", "outcome"},
	)

	caseSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "primlab",
			Subsystem: "runner",
			Name:      "case_duration_seconds",
			Help:      "Time spent executing a single test case",
			Buckets:   []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1, 5},
		},
	)

	equivalenceFindings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "primlab",
			Subsystem: "equivalence",
			Name:      "findings_total",
			Help:      "Count of inputs on which backends of a primitive disagreed",
		},
		[]string{"primitive"},
	)

	timingFindings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "primlab",
			Subsystem: "ctaudit",
			Name:      "findings_total",
			Help:      "Count of constant-time findings classified by evidence kind",
		},
		[]string{"primitive", "evidence"},
	)

	suiteStatus = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "primlab",
			Subsystem: "suite",
			Name:      "status",
			Help:      "Status of the last completed run: 0 green, 1 yellow, 2 red",
		},
	)

	suiteRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "primlab",
			Subsystem: "suite",
			Name:      "runs_total",
			Help:      "Count of suite runs classified by status",
		},
		[]string{"status"},
	)
)

func ensureRegistered() {
	registerOnce.Do(func() {
		prometheus.MustRegister(caseResults, caseSeconds, equivalenceFindings, timingFindings, suiteStatus, suiteRuns)
	})
}

func CaseCounter() *prometheus.CounterVec {
	ensureRegistered()
	return caseResults
}

func CaseObserver() prometheus.Observer {
	ensureRegistered()
	return caseSeconds
}

func EquivalenceCounter() *prometheus.CounterVec {
	ensureRegistered()
	return equivalenceFindings
}

func TimingCounter() *prometheus.CounterVec {
	ensureRegistered()
	return timingFindings
}

func StatusGauge() prometheus.Gauge {
	ensureRegistered()
	return suiteStatus
}

func RunCounter() *prometheus.CounterVec {
	ensureRegistered()
	return suiteRuns
}
