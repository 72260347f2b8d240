// Package metrics holds the Prometheus collectors, registered on controller-runtime's registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

const namespace = "ykddns"

// Result label values.
const (
	ResultSuccess  = "success"
	ResultError    = "error"
	ResultNotFound = "not_found"
)

var (
	Polls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "polls_total",
		Help:      "Address polls by result.",
	}, []string{"result"})

	AddressChanges = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "address_changes_total",
		Help:      "Detected public address changes.",
	})

	RecordUpdates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "record_updates_total",
		Help:      "Record update attempts by result.",
	}, []string{"result"})

	LastChange = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_change_timestamp_seconds",
		Help:      "Unix time of the last detected address change.",
	})
)

func init() {
	metrics.Registry.MustRegister(Polls, AddressChanges, RecordUpdates, LastChange)
}
