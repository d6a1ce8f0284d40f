package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Graph state gauges
	TasksByState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rain_tasks_by_state",
			Help: "Total number of tasks by lifecycle state",
		},
		[]string{"state"},
	)

	ObjectsByState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rain_objects_by_state",
			Help: "Total number of data objects by lifecycle state",
		},
		[]string{"state"},
	)

	WorkersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rain_workers_total",
			Help: "Total number of registered workers",
		},
	)

	SessionsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rain_sessions_total",
			Help: "Total number of open sessions",
		},
	)

	WorkerAssignedTasks = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rain_worker_assigned_tasks",
			Help: "Number of tasks currently assigned to a worker, watched against the overbook ceiling",
		},
		[]string{"worker"},
	)

	// Scheduler / driver metrics
	SchedulingLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rain_scheduling_latency_seconds",
			Help:    "Time taken by one scheduler invocation in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	TasksScheduled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rain_tasks_scheduled_total",
			Help: "Total number of tasks the scheduler assigned a worker to",
		},
	)

	SessionsFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rain_sessions_failed_total",
			Help: "Total number of sessions that entered the failed terminal state",
		},
	)

	// RPC surface metrics
	RPCSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rain_rpc_sent_total",
			Help: "Total number of outbound worker-control RPCs sent, by method",
		},
		[]string{"method"},
	)

	RPCRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rain_rpc_request_duration_seconds",
			Help:    "Inbound RPC handling duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(TasksByState)
	prometheus.MustRegister(ObjectsByState)
	prometheus.MustRegister(WorkersTotal)
	prometheus.MustRegister(SessionsTotal)
	prometheus.MustRegister(WorkerAssignedTasks)
	prometheus.MustRegister(SchedulingLatency)
	prometheus.MustRegister(TasksScheduled)
	prometheus.MustRegister(SessionsFailedTotal)
	prometheus.MustRegister(RPCSentTotal)
	prometheus.MustRegister(RPCRequestDuration)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
