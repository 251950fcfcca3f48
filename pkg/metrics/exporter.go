package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/downfa11-org/go-backup/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func init() {
	prometheus.MustRegister(BackupRPCTotal, BackupRPCLatency, BackupBytesWritten, BackupHosts)
	prometheus.MustRegister(ServerRequestsTotal, StoredSegments, StoredBytes, SegmentsCommitted, SegmentsFreed, ActiveConnections)
	prometheus.MustRegister(SessionWindowFull, SessionOutstanding)
}

func StartMetricsServer(port int) {
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		addr := fmt.Sprintf(":%d", port)
		util.Info("Prometheus exporter listening on %s", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			util.Error("Failed to start metrics server: %v", err)
		}
	}()
}

// ObserveRPC records the outcome and latency of one client RPC.
func ObserveRPC(op, result string, elapsed time.Duration) {
	BackupRPCTotal.WithLabelValues(op, result).Inc()
	BackupRPCLatency.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObserveRequest records one request handled by the backup server.
func ObserveRequest(op, result string) {
	ServerRequestsTotal.WithLabelValues(op, result).Inc()
}
