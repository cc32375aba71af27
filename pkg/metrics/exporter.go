package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func init() {
	prometheus.MustRegister(LeasesAdded, LeasesRemoved, IndexRebuilds, IndexIOErrors, LeasesInIndex, OpLatency)
}

func StartMetricsServer(port int) {
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		addr := fmt.Sprintf(":%d", port)
		fmt.Println("[METRICS] Prometheus exporter listening on", addr)
		if err := http.ListenAndServe(addr, nil); err != nil {
			fmt.Printf("[METRICS] Failed to start metrics server: %v\n", err)
		}
	}()
}

// RecordOp updates the counters and latency histogram for one finished
// lease operation.
func RecordOp(op string, elapsedSeconds float64) {
	switch op {
	case "add":
		LeasesAdded.Inc()
	case "remove":
		LeasesRemoved.Inc()
	case "rebuild":
		IndexRebuilds.Inc()
	}
	OpLatency.Observe(elapsedSeconds)
}

// SetLeaseCount publishes how many leases the last enumeration observed.
func SetLeaseCount(n int) {
	LeasesInIndex.Set(float64(n))
}
