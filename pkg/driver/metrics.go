package driver

import "github.com/cuemby/rain/pkg/metrics"

// CollectGraphMetrics scans the graph and sets the state-distribution
// gauges (spec.md §3's lifecycle states). Event-driven sites in mutations.go
// and placement.go keep the point-in-time counters (WorkersTotal,
// SessionsTotal, ...) current as mutations happen; a full state
// distribution needs a scan, which only makes sense run periodically
// rather than on every mutation.
func (d *Driver) CollectGraphMetrics() {
	taskCounts := make(map[string]int)
	for _, t := range d.Graph.Tasks {
		taskCounts[t.State.String()]++
	}
	for state, count := range taskCounts {
		metrics.TasksByState.WithLabelValues(state).Set(float64(count))
	}

	objectCounts := make(map[string]int)
	for _, o := range d.Graph.Objects {
		objectCounts[o.State.String()]++
	}
	for state, count := range objectCounts {
		metrics.ObjectsByState.WithLabelValues(state).Set(float64(count))
	}
}
