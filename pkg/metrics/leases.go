package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	LeasesAdded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "xleases_leases_added_total",
		Help: "Total number of leases added to the index",
	})

	LeasesRemoved = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "xleases_leases_removed_total",
		Help: "Total number of leases removed from the index",
	})

	IndexRebuilds = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "xleases_index_rebuilds_total",
		Help: "Total number of index rebuilds from the resource area",
	})

	IndexIOErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "xleases_index_io_errors_total",
		Help: "Total number of failed index reads and writes",
	})

	LeasesInIndex = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "xleases_index_leases",
		Help: "Number of leases observed in the index at the last enumeration",
	})

	OpLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "xleases_operation_latency_seconds",
		Help:    "Histogram of lease operation latency",
		Buckets: prometheus.DefBuckets,
	})
)
