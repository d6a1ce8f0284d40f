/*
Package metrics provides Prometheus metrics collection and exposition for
Rain's server process.

The metrics package defines and registers every metric using the
Prometheus client library, giving observability into graph state, worker
placement, scheduler latency, and the RPC surface. Metrics are exposed via
an HTTP endpoint for scraping by Prometheus servers.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Metric Categories               │          │
	│  │                                              │          │
	│  │  Graph state: tasks/objects by lifecycle    │          │
	│  │    state, workers total, sessions total     │          │
	│  │  Placement: assigned tasks per worker       │          │
	│  │  Scheduler: scheduling latency, tasks sched │          │
	│  │  RPC surface: sent-RPC count, handling time │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          HTTP Metrics Endpoint               │          │
	│  │  - Path: /metrics (dashboard listener)      │          │
	│  │  - Format: Prometheus text exposition       │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Metrics Catalog

rain_tasks_by_state{state}:
  - Type: Gauge
  - Description: Tasks by lifecycle state (NotAssigned/Ready/Running/...)
  - Set periodically by pkg/driver.CollectGraphMetrics

rain_objects_by_state{state}:
  - Type: Gauge
  - Description: Data objects by lifecycle state (Unfinished/Finished)
  - Set periodically by pkg/driver.CollectGraphMetrics

rain_workers_total / rain_sessions_total:
  - Type: Gauge
  - Description: Current count, updated inline at every add/remove mutation

rain_worker_assigned_tasks{worker}:
  - Type: Gauge
  - Description: Tasks currently assigned to a worker, watched against its
    overbook ceiling

rain_scheduling_latency_seconds:
  - Type: Histogram
  - Description: Time taken by one scheduler invocation

rain_tasks_scheduled_total / rain_sessions_failed_total:
  - Type: Counter

rain_rpc_sent_total{method} / rain_rpc_request_duration_seconds{method}:
  - Type: Counter / Histogram
  - Description: Outbound worker-control RPCs sent, and inbound RPC
    handling duration, both by method name. The duration histogram is
    registered and exported, but no code path observes it, so it stays
    empty.

# Usage

	import "github.com/cuemby/rain/pkg/metrics"

	metrics.WorkersTotal.Set(float64(len(graph.Workers)))
	metrics.TasksScheduled.Inc()

	timer := metrics.NewTimer()
	// ... run the scheduler ...
	timer.ObserveDuration(metrics.SchedulingLatency)

	http.Handle("/metrics", metrics.Handler())

# Integration Points

pkg/driver updates the event-driven gauges inline at mutation sites
(mutations.go, placement.go) and the state-distribution gauges
periodically (metrics.go); pkg/rpcapi exposes the handler at /metrics on
the dashboard listener.

# Design Patterns

Package init registration: all metrics are registered in init(); a
package-level var per metric is accessible from any package without
passing a collector around.

Label discipline: label sets are bounded (task/object state, worker id,
RPC method name) — no unbounded or per-request identifiers as labels.

# See Also

  - Prometheus documentation: https://prometheus.io/docs/
  - Prometheus client library: https://github.com/prometheus/client_golang
*/
package metrics
