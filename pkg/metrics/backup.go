package metrics

import "github.com/prometheus/client_golang/prometheus"

// master-side RPC stubs
var (
	BackupRPCTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backup_client_rpcs_total",
			Help: "Total number of backup RPCs issued by masters",
		},
		[]string{"op", "result"},
	)

	BackupRPCLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backup_client_rpc_latency_seconds",
			Help:    "Round trip latency of backup RPCs",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	BackupBytesWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "backup_client_bytes_written_total",
		Help: "Segment bytes shipped to backups by write RPCs",
	})

	BackupHosts = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "backup_client_hosts",
		Help: "Number of backup hosts attached to the replication client",
	})
)

// backup server
var (
	ServerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backup_server_requests_total",
			Help: "Total number of backup requests served",
		},
		[]string{"op", "result"},
	)

	StoredSegments = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "backup_server_segments",
		Help: "Segments currently held by the backup",
	})

	StoredBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "backup_server_segment_bytes",
		Help: "Raw segment bytes currently held by the backup",
	})

	SegmentsCommitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "backup_server_segments_committed_total",
		Help: "Total number of segments committed",
	})

	SegmentsFreed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "backup_server_segments_freed_total",
		Help: "Total number of segments freed",
	})

	ActiveConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "backup_server_active_connections",
		Help: "Master connections currently being served",
	})
)

// linearizable sessions
var (
	SessionWindowFull = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rpc_session_window_full_total",
		Help: "Times an RPC id was refused because the outstanding window was full",
	})

	SessionOutstanding = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rpc_session_outstanding",
			Help: "RPC ids issued but not yet finished",
		},
		[]string{"session"},
	)
)
